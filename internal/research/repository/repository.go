package repository

import "taskflow-backend/internal/research/domain"

// ResearchRepository persists tracking records, plans and results
type ResearchRepository interface {
	// GetOrCreateTracking returns the task's tracking row, creating it on first use
	GetOrCreateTracking(taskID, userID string) (*domain.TrackingRecord, error)
	FindTracking(taskID string) (*domain.TrackingRecord, error)
	FindTrackingByTasks(taskIDs []string) (map[string]*domain.TrackingRecord, error)
	UpdateTracking(rec *domain.TrackingRecord) error

	CreatePlan(plan *domain.Plan) error
	UpdatePlanStatus(planID string, status domain.PlanStatus) error
	FindPlan(planID string) (*domain.Plan, error)

	SaveResult(result *domain.Result) error
	// LatestResult returns the newest result for the task, or nil
	LatestResult(taskID string) (*domain.Result, error)

	// DeleteByTask removes every research artifact of a task
	DeleteByTask(taskID string) error
	// PruneHistory keeps the newest keep plans per task and deletes the rest with their results
	PruneHistory(keep int) (int64, error)
}
