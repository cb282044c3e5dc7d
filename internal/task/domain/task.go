package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Priority represents task priority level
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Source records who created a task
type Source string

const (
	SourceManual      Source = "manual"
	SourceMeetingPrep Source = "meeting_prep"
)

const (
	TagMeetingPrep   = "meeting-prep"
	TagAutoGenerated = "auto-generated"
)

// Task represents a to-do item created by the owner or generated from a calendar meeting
type Task struct {
	ID           string                      `json:"id" gorm:"primaryKey"`
	UserID       string                      `json:"user_id" gorm:"index;not null"`
	Title        string                      `json:"title" gorm:"not null"`
	Description  string                      `json:"description,omitempty"`
	DueDate      *time.Time                  `json:"due_date,omitempty"`
	Priority     Priority                    `json:"priority" gorm:"default:medium"`
	Status       TaskStatus                  `json:"status" gorm:"default:pending"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
	Source       Source                      `json:"source" gorm:"default:manual"`
	ReminderAt   *time.Time                  `json:"reminder_at,omitempty"`            // When to send FCM reminder
	ReminderSent bool                        `json:"reminder_sent" gorm:"default:false"` // Track if reminder was sent
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// HasTag reports whether the task carries tag
func (t *Task) HasTag(tag string) bool {
	for _, v := range t.Tags {
		if v == tag {
			return true
		}
	}
	return false
}
