package usecase

import (
	"context"
	"time"

	caldomain "taskflow-backend/internal/calendar/domain"
	calrepo "taskflow-backend/internal/calendar/repository"
	researchdomain "taskflow-backend/internal/research/domain"
	taskdomain "taskflow-backend/internal/task/domain"
	taskusecase "taskflow-backend/internal/task/usecase"
	"taskflow-backend/pkg/config"
	"taskflow-backend/pkg/fcm"
)

// MeetingPrepUsecase turns upcoming external meetings into prep tasks
type MeetingPrepUsecase interface {
	// Detect returns meetings inside the lead window that still need a prep task
	Detect(userID string) ([]*caldomain.CalendarEvent, error)
	// Run creates prep tasks for every detected meeting of the owner
	Run(ctx context.Context, userID string) (*RunResult, error)
	// RunAll runs the sweep for every connected owner, continuing past failures
	RunAll(ctx context.Context) (created, failed int, err error)
	// ResolveMeeting returns the meeting behind a prep task, or nil
	ResolveMeeting(taskID string) (*researchdomain.MeetingContext, error)
	// Upcoming lists meetings in the next hours with their prep task and research status
	Upcoming(userID string, hours int) ([]*PrepItem, error)
}

// RunResult reports one sweep for one owner
type RunResult struct {
	Detected int                `json:"detected"`
	Created  []*taskdomain.Task `json:"created"`
	Skipped  int                `json:"skipped"`
}

// PrepItem is an upcoming meeting joined with its prep task and research progress
type PrepItem struct {
	Event          *caldomain.CalendarEvent `json:"event"`
	Prospect       *Prospect                `json:"prospect,omitempty"`
	PrepTask       *taskdomain.Task         `json:"prep_task,omitempty"`
	ResearchStatus researchdomain.Status    `json:"research_status,omitempty"`
}

// TaskCreator creates tasks. The task usecase satisfies it.
type TaskCreator interface {
	CreateTask(userID string, req taskusecase.CreateTaskRequest) (*taskdomain.Task, error)
}

// TaskReader loads tasks. The task repository satisfies it.
type TaskReader interface {
	FindByID(id string) (*taskdomain.Task, error)
}

// ResearchStatusReader returns tracking records keyed by task id
type ResearchStatusReader interface {
	FindTrackingByTasks(taskIDs []string) (map[string]*researchdomain.TrackingRecord, error)
}

// OwnerLister lists owners with a connected calendar
type OwnerLister interface {
	Owners() ([]string, error)
}

// ResearchTrigger queues research for a task
type ResearchTrigger interface {
	Enqueue(taskID string) bool
}

// Pusher delivers a push notification to every device of a user
type Pusher interface {
	Push(ctx context.Context, userID string, n fcm.NotificationData) error
}

// Deps groups the collaborators. Research, Trigger and Pusher are optional.
type Deps struct {
	Events   calrepo.EventRepository
	Creator  TaskCreator
	Tasks    TaskReader
	Research ResearchStatusReader
	Owners   OwnerLister
	Trigger  ResearchTrigger
	Pusher   Pusher
	Window   config.MeetingPrepWindow
	Now      func() time.Time
}
