package usecase

import (
	"context"
	"errors"

	"taskflow-backend/internal/research/domain"
	taskdomain "taskflow-backend/internal/task/domain"
	"taskflow-backend/pkg/fcm"
	"taskflow-backend/pkg/search"
)

// Outcome error codes
const (
	CodeTaskNotFound   = "TASK_NOT_FOUND"
	CodeNotEligible    = "NOT_ELIGIBLE"
	CodeResearchFailed = "RESEARCH_FAILED"
)

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrForbidden      = errors.New("task belongs to another user")
	ErrResultNotFound = errors.New("no research result for task")
)

// ResearchUsecase runs and reads task research
type ResearchUsecase interface {
	// RequestResearch runs the whole pipeline for a task. It never returns an error;
	// failures are reported in the Outcome and recorded on the tracking record.
	RequestResearch(ctx context.Context, taskID string) Outcome

	// GetResults returns the latest result with the intent of the plan that produced it
	GetResults(userID, taskID string) (*ResultView, error)

	// GetStatus returns the tracking record, or a not_started placeholder
	GetStatus(userID, taskID string) (*domain.TrackingRecord, error)

	// Preview classifies and plans draft task text without persisting anything
	Preview(ctx context.Context, userID, title, description string) (*Preview, error)

	// CheckOwner verifies the task exists and belongs to userID
	CheckOwner(userID, taskID string) error

	// DeleteForTask removes all research artifacts of a task
	DeleteForTask(taskID string) error

	// PruneHistory applies the retention policy and returns how many plans were removed
	PruneHistory() (int64, error)
}

// OutcomeError is the structured failure of a research request
type OutcomeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Outcome reports how a research request ended
type Outcome struct {
	Success        bool                  `json:"success"`
	Classification domain.Classification `json:"classification"`
	Plan           *domain.Plan          `json:"plan,omitempty"`
	Result         *domain.Result        `json:"result,omitempty"`
	Error          *OutcomeError         `json:"error,omitempty"`
}

// ResultView is the read model returned to clients
type ResultView struct {
	Result *domain.Result `json:"result"`
	Intent domain.Intent  `json:"intent"`
	Type   domain.Type    `json:"type"`
}

// Preview is a dry-run of classification and planning
type Preview struct {
	Classification domain.Classification `json:"classification"`
	Intent         domain.Intent         `json:"intent"`
	Subtasks       []domain.Subtask      `json:"subtasks"`
}

// TaskReader loads tasks. The task repository satisfies it.
type TaskReader interface {
	FindByID(id string) (*taskdomain.Task, error)
}

// ProfileReader returns the owner's role hint. The auth usecase satisfies it.
type ProfileReader interface {
	RoleHint(userID string) (string, error)
}

// ContextResolver finds meeting details for a meeting-prep task. It returns nil when the
// task is not tied to a meeting.
type ContextResolver interface {
	ResolveMeeting(taskID string) (*domain.MeetingContext, error)
}

// KnowledgeIndexer stores sources of completed research for later search
type KnowledgeIndexer interface {
	IndexSources(ctx context.Context, ownerID, taskID string, sources []search.RawResult) error
}

// Pusher delivers a push notification to every device of a user
type Pusher interface {
	Push(ctx context.Context, userID string, n fcm.NotificationData) error
}
