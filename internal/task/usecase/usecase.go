package usecase

import (
	"context"
	"errors"
	"time"

	"taskflow-backend/internal/task/domain"
	"taskflow-backend/pkg/fcm"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
)

// TaskUsecase defines the interface for task business logic
type TaskUsecase interface {
	// CreateTask creates a new task and hands it to research
	CreateTask(userID string, req CreateTaskRequest) (*domain.Task, error)

	// GetTaskByID retrieves a task by ID (with ownership check)
	GetTaskByID(userID, taskID string) (*domain.Task, error)

	// GetUserTasks lists one page of the user's tasks and the total matching count
	GetUserTasks(userID string, q ListQuery) ([]*domain.Task, int64, error)

	// SearchTasks fuzzy-matches open tasks on title, description and tags
	SearchTasks(userID, query string, limit int) ([]*domain.Task, error)

	// UpdateTask updates an existing task. A changed title or description re-triggers research.
	UpdateTask(userID, taskID string, updates TaskUpdateRequest) (*domain.Task, error)

	// DeleteTask deletes a task and everything hanging off it
	DeleteTask(userID, taskID string) error

	// SendDueReminders pushes reminders that are due at now and returns how many were handled
	SendDueReminders(ctx context.Context, now time.Time) (int, error)
}

// CreateTaskRequest represents the request body for creating a task
type CreateTaskRequest struct {
	Title       string        `json:"title" binding:"required"`
	Description string        `json:"description"`
	DueDate     *string       `json:"due_date"`
	Priority    string        `json:"priority"`
	ReminderAt  *string       `json:"reminder_at"`
	Tags        []string      `json:"tags"`
	Source      domain.Source `json:"-"`
}

// ListQuery carries the list filters accepted on GET /api/tasks
type ListQuery struct {
	Status string `form:"status"`
	Source string `form:"source"`
	Tag    string `form:"tag"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// TaskUpdateRequest represents the fields that can be updated
type TaskUpdateRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	DueDate     *string   `json:"due_date,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	Status      *string   `json:"status,omitempty"`
	ReminderAt  *string   `json:"reminder_at,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

// ResearchTrigger accepts task ids whose research should be (re)run.
// Enqueue must not block; it reports false when the work was rejected.
type ResearchTrigger interface {
	Enqueue(taskID string) bool
}

// DeleteHook removes data owned by a task before the task row goes away
type DeleteHook func(taskID string) error

// Pusher delivers a push notification to every device of a user
type Pusher interface {
	Push(ctx context.Context, userID string, n fcm.NotificationData) error
}
