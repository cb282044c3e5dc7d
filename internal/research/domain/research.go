package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Status is the pipeline position of a task's research
type Status string

const (
	StatusNotStarted  Status = "not_started"
	StatusClassifying Status = "classifying"
	StatusPlanning    Status = "planning"
	StatusExecuting   Status = "executing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// PlanStatus tracks a single plan through execution
type PlanStatus string

const (
	PlanPending    PlanStatus = "pending"
	PlanInProgress PlanStatus = "in_progress"
	PlanCompleted  PlanStatus = "completed"
	PlanFailed     PlanStatus = "failed"
)

// Type selects the planning and report shape
type Type string

const (
	TypeGeneral     Type = "general_research"
	TypeMeetingPrep Type = "meeting_prep"
)

// Intent is what the owner is trying to get out of the research
type Intent string

const (
	IntentInvestigate Intent = "investigate"
	IntentCompare     Intent = "compare"
	IntentLearn       Intent = "learn"
	IntentDecide      Intent = "decide"
	IntentMeetingPrep Intent = "meeting_prep"
)

// Classification is the classifier verdict for a piece of task text
type Classification struct {
	Eligible bool `json:"eligible"`
	Type     Type `json:"type"`
}

// TrackingRecord is the per-task state machine row
type TrackingRecord struct {
	TaskID    string    `json:"task_id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	Eligible  bool      `json:"eligible"`
	Type      Type      `json:"type"`
	Intent    Intent    `json:"intent"`
	Status    Status    `json:"status" gorm:"default:not_started"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TrackingRecord) TableName() string {
	return "research_tracking"
}

// Subtask is one named search query produced by the planner
type Subtask struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Query string `json:"query"`
}

// Plan holds the subtasks generated for one research request
type Plan struct {
	ID        string                       `json:"id" gorm:"primaryKey"`
	TaskID    string                       `json:"task_id" gorm:"index;not null"`
	UserID    string                       `json:"user_id" gorm:"index;not null"`
	Intent    Intent                       `json:"intent"`
	Type      Type                         `json:"type"`
	Subtasks  datatypes.JSONSlice[Subtask] `json:"subtasks"`
	Status    PlanStatus                   `json:"status"`
	CreatedAt time.Time                    `json:"created_at"`
	UpdatedAt time.Time                    `json:"updated_at"`
}

func (Plan) TableName() string {
	return "research_plans"
}

// Source is a deduplicated search hit attributed to one subtask
type Source struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SubtaskResult keeps the sources found for one subtask, in plan order
type SubtaskResult struct {
	SubtaskID string   `json:"subtask_id"`
	Title     string   `json:"title"`
	Query     string   `json:"query"`
	Sources   []Source `json:"sources"`
}

// RecommendedPage is a source worth reading in full
type RecommendedPage struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Reason string `json:"reason,omitempty"`
}

// Result is the output of one successful pipeline run
type Result struct {
	ID               string                               `json:"id" gorm:"primaryKey"`
	TaskID           string                               `json:"task_id" gorm:"index;not null"`
	PlanID           string                               `json:"plan_id" gorm:"index;not null"`
	UserID           string                               `json:"user_id" gorm:"index;not null"`
	Report           ReportEnvelope                       `json:"report"`
	RecommendedPages datatypes.JSONSlice[RecommendedPage] `json:"recommended_pages"`
	SubtaskResults   datatypes.JSONSlice[SubtaskResult]   `json:"subtask_results"`
	SourcesCount     int                                  `json:"sources_count"`
	PagesAnalyzed    int                                  `json:"pages_analyzed"`
	CreatedAt        time.Time                            `json:"created_at"`
}

func (Result) TableName() string {
	return "research_results"
}

// MeetingContext describes the meeting behind a meeting-prep task
type MeetingContext struct {
	EventID       string    `json:"event_id"`
	MeetingTitle  string    `json:"meeting_title"`
	MeetingStart  time.Time `json:"meeting_start"`
	ProspectName  string    `json:"prospect_name"`
	ProspectEmail string    `json:"prospect_email"`
	ProspectRole  string    `json:"prospect_role,omitempty"`
	Company       string    `json:"company"`
}
