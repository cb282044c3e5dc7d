package repository

import (
	"errors"
	"fmt"
	"time"

	"taskflow-backend/internal/calendar/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// mutableEventColumns are refreshed from the provider on every sync
var mutableEventColumns = []string{
	"summary", "description", "location", "start_time", "end_time", "all_day", "attendees",
	"organizer_email", "conference_url", "html_link", "status", "is_meeting", "updated_at",
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a GORM-backed EventRepository
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Upsert(event *domain.CalendarEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Status == "" {
		event.Status = domain.EventConfirmed
	}
	event.UpdatedAt = time.Now()

	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "calendar_id"}, {Name: "external_event_id"},
		},
		DoUpdates: clause.AssignmentColumns(mutableEventColumns),
	}).Create(event).Error
	if err != nil {
		return fmt.Errorf("upsert event %s: %w", event.ExternalEventID, err)
	}
	return nil
}

func (r *eventRepository) MarkCancelled(userID, calendarID, externalEventID string) (bool, error) {
	res := r.db.Model(&domain.CalendarEvent{}).
		Where("user_id = ? AND calendar_id = ? AND external_event_id = ?", userID, calendarID, externalEventID).
		Updates(map[string]interface{}{"status": domain.EventCancelled, "updated_at": time.Now()})
	if res.Error != nil {
		return false, fmt.Errorf("cancel event %s: %w", externalEventID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *eventRepository) FindByID(id string) (*domain.CalendarEvent, error) {
	var event domain.CalendarEvent
	if err := r.db.Where("id = ?", id).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find event %s: %w", id, err)
	}
	return &event, nil
}

func (r *eventRepository) FindByUser(userID string, filter EventFilter) ([]*domain.CalendarEvent, error) {
	query := r.db.Where("user_id = ?", userID)
	if filter.From != nil {
		query = query.Where("start_time >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("start_time <= ?", *filter.To)
	}
	if filter.MeetingsOnly {
		query = query.Where("is_meeting = ?", true)
	}
	if !filter.IncludeCancelled {
		query = query.Where("status <> ?", domain.EventCancelled)
	}

	var events []*domain.CalendarEvent
	if err := query.Order("start_time ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (r *eventRepository) FindPrepCandidates(userID string, from, to time.Time) ([]*domain.CalendarEvent, error) {
	var events []*domain.CalendarEvent
	err := r.db.
		Where("user_id = ? AND is_meeting = ? AND prep_task_created = ? AND status <> ?", userID, true, false, domain.EventCancelled).
		Where("start_time >= ? AND start_time <= ?", from, to).
		Order("start_time ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("find prep candidates: %w", err)
	}
	return events, nil
}

func (r *eventRepository) FindByPrepTask(taskID string) (*domain.CalendarEvent, error) {
	var event domain.CalendarEvent
	if err := r.db.Where("prep_task_id = ?", taskID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find event for prep task %s: %w", taskID, err)
	}
	return &event, nil
}

func (r *eventRepository) MarkPrepTaskCreated(eventID, taskID string) error {
	err := r.db.Model(&domain.CalendarEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{"prep_task_created": true, "prep_task_id": taskID}).Error
	if err != nil {
		return fmt.Errorf("mark prep task on event %s: %w", eventID, err)
	}
	return nil
}

func (r *eventRepository) ClearPrepTask(taskID string) error {
	err := r.db.Model(&domain.CalendarEvent{}).
		Where("prep_task_id = ?", taskID).
		Update("prep_task_id", nil).Error
	if err != nil {
		return fmt.Errorf("clear prep task %s: %w", taskID, err)
	}
	return nil
}
