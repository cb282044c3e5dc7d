package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// ReportKind tags the concrete report variant
type ReportKind string

const (
	ReportKindGeneral     ReportKind = "general"
	ReportKindMeetingPrep ReportKind = "meeting_prep"
)

// Report is either a *GeneralReport or a *MeetingPrepReport.
// Consumers switch on the concrete type.
type Report interface {
	Kind() ReportKind
	report()
}

// GeneralReport is produced for general research tasks
type GeneralReport struct {
	Summary     string   `json:"summary"`
	KeyFindings []string `json:"key_findings"`
	NextSteps   []string `json:"next_steps"`
}

func (*GeneralReport) Kind() ReportKind { return ReportKindGeneral }
func (*GeneralReport) report()          {}

// MeetingPrepReport is produced for meeting-prep tasks
type MeetingPrepReport struct {
	Summary         string   `json:"summary"`
	ProspectProfile string   `json:"prospect_profile"`
	CompanyOverview string   `json:"company_overview"`
	TalkingPoints   []string `json:"talking_points"`
	QuestionsToAsk  []string `json:"questions_to_ask"`
	RecentNews      []string `json:"recent_news"`
}

func (*MeetingPrepReport) Kind() ReportKind { return ReportKindMeetingPrep }
func (*MeetingPrepReport) report()          {}

// ReportSummary returns the headline of either variant
func ReportSummary(r Report) string {
	switch v := r.(type) {
	case *GeneralReport:
		return v.Summary
	case *MeetingPrepReport:
		return v.Summary
	default:
		return ""
	}
}

// ReportEnvelope stores a Report as {"kind": ..., "data": ...}
type ReportEnvelope struct {
	Report Report
}

type envelopeJSON struct {
	Kind ReportKind      `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func (e ReportEnvelope) MarshalJSON() ([]byte, error) {
	if e.Report == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(e.Report)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelopeJSON{Kind: e.Report.Kind(), Data: data})
}

func (e *ReportEnvelope) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		e.Report = nil
		return nil
	}
	var env envelopeJSON
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}

	switch env.Kind {
	case ReportKindGeneral:
		var r GeneralReport
		if err := json.Unmarshal(env.Data, &r); err != nil {
			return fmt.Errorf("decode general report: %w", err)
		}
		e.Report = &r
	case ReportKindMeetingPrep:
		var r MeetingPrepReport
		if err := json.Unmarshal(env.Data, &r); err != nil {
			return fmt.Errorf("decode meeting prep report: %w", err)
		}
		e.Report = &r
	default:
		return fmt.Errorf("unknown report kind %q", env.Kind)
	}
	return nil
}

// Value implements driver.Valuer
func (e ReportEnvelope) Value() (driver.Value, error) {
	b, err := e.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (e *ReportEnvelope) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		e.Report = nil
		return nil
	case []byte:
		return e.UnmarshalJSON(v)
	case string:
		return e.UnmarshalJSON([]byte(v))
	default:
		return errors.New(fmt.Sprint("failed to scan report envelope: ", value))
	}
}

// GormDataType stores the envelope in a JSON column
func (ReportEnvelope) GormDataType() string {
	return "json"
}
