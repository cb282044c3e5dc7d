package repository

import (
	"time"

	"taskflow-backend/internal/task/domain"
)

// ListFilter narrows a task listing. Zero values match everything.
type ListFilter struct {
	Status domain.TaskStatus
	Source domain.Source
	Tag    string
	Limit  int
	Offset int
}

// TaskRepository is the persistence boundary of the task package.
// Lookups return (nil, nil) when the row does not exist.
type TaskRepository interface {
	Create(task *domain.Task) error
	FindByID(id string) (*domain.Task, error)
	Update(task *domain.Task) error
	Delete(id string) error

	// List returns one page of the user's tasks plus the unpaged total
	List(userID string, f ListFilter) ([]*domain.Task, int64, error)

	// ListOpen returns every task of the user that is not completed
	ListOpen(userID string) ([]*domain.Task, error)

	// DueReminders returns open tasks whose reminder is at or before now and not yet sent
	DueReminders(now time.Time) ([]*domain.Task, error)
	MarkReminderSent(id string) error
}
