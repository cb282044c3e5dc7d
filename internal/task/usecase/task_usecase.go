package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"taskflow-backend/internal/task/domain"
	"taskflow-backend/internal/task/repository"
	"taskflow-backend/pkg/fcm"
	"taskflow-backend/pkg/fuzzy"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// taskUsecase implements TaskUsecase interface
type taskUsecase struct {
	taskRepo repository.TaskRepository
	research ResearchTrigger
	pusher   Pusher
	onDelete []DeleteHook
	logger   *zap.Logger
}

// NewTaskUsecase creates a new instance of taskUsecase. research and pusher may be nil.
func NewTaskUsecase(taskRepo repository.TaskRepository, research ResearchTrigger, pusher Pusher, logger *zap.Logger, onDelete ...DeleteHook) TaskUsecase {
	return &taskUsecase{
		taskRepo: taskRepo,
		research: research,
		pusher:   pusher,
		onDelete: onDelete,
		logger:   logger.Named("task"),
	}
}

func (u *taskUsecase) CreateTask(userID string, req CreateTaskRequest) (*domain.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	source := req.Source
	if source == "" {
		source = domain.SourceManual
	}

	task := &domain.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       title,
		Description: req.Description,
		Priority:    parsePriority(req.Priority),
		Status:      domain.TaskStatusPending,
		Tags:        normalizeTags(req.Tags),
		Source:      source,
	}

	if req.DueDate != nil && *req.DueDate != "" {
		t, err := time.Parse(time.RFC3339, *req.DueDate)
		if err != nil {
			return nil, fmt.Errorf("%w: due_date must be RFC3339", ErrInvalidInput)
		}
		task.DueDate = &t
	}

	if req.ReminderAt != nil && *req.ReminderAt != "" {
		t, err := time.Parse(time.RFC3339, *req.ReminderAt)
		if err != nil {
			return nil, fmt.Errorf("%w: reminder_at must be RFC3339", ErrInvalidInput)
		}
		task.ReminderAt = &t
	}

	if err := u.taskRepo.Create(task); err != nil {
		return nil, err
	}

	u.triggerResearch(task.ID)
	return task, nil
}

func (u *taskUsecase) GetTaskByID(userID, taskID string) (*domain.Task, error) {
	task, err := u.taskRepo.FindByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if task.UserID != userID {
		return nil, ErrUnauthorized
	}
	return task, nil
}

func (u *taskUsecase) GetUserTasks(userID string, q ListQuery) ([]*domain.Task, int64, error) {
	f := repository.ListFilter{
		Source: domain.Source(q.Source),
		Tag:    strings.ToLower(strings.TrimSpace(q.Tag)),
		Limit:  q.Limit,
		Offset: max(q.Offset, 0),
	}
	if q.Status != "" {
		status, ok := parseStatus(q.Status)
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, q.Status)
		}
		f.Status = status
	}
	if f.Limit <= 0 || f.Limit > maxPageSize {
		f.Limit = defaultPageSize
	}
	return u.taskRepo.List(userID, f)
}

func (u *taskUsecase) SearchTasks(userID, query string, limit int) ([]*domain.Task, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}

	tasks, err := u.taskRepo.ListOpen(userID)
	if err != nil {
		return nil, err
	}

	type scored struct {
		task  *domain.Task
		score float64
	}
	q := fuzzy.NewQuery(query)
	var hits []scored
	for _, t := range tasks {
		if !q.Matches(t.Title, t.Description, t.Tags) {
			continue
		}
		hits = append(hits, scored{task: t, score: q.Score(t.Title, t.Description, t.Tags)})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]*domain.Task, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.task)
	}
	return out, nil
}

func (u *taskUsecase) UpdateTask(userID, taskID string, updates TaskUpdateRequest) (*domain.Task, error) {
	task, err := u.GetTaskByID(userID, taskID)
	if err != nil {
		return nil, err
	}

	textChanged := false
	if updates.Title != nil {
		title := strings.TrimSpace(*updates.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
		}
		textChanged = textChanged || title != task.Title
		task.Title = title
	}
	if updates.Description != nil {
		textChanged = textChanged || *updates.Description != task.Description
		task.Description = *updates.Description
	}
	if updates.Priority != nil {
		task.Priority = parsePriority(*updates.Priority)
	}
	if updates.Status != nil {
		status, ok := parseStatus(*updates.Status)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *updates.Status)
		}
		task.Status = status
	}
	if updates.Tags != nil {
		task.Tags = normalizeTags(*updates.Tags)
	}
	if updates.DueDate != nil {
		if *updates.DueDate == "" {
			task.DueDate = nil
		} else if t, err := time.Parse(time.RFC3339, *updates.DueDate); err == nil {
			task.DueDate = &t
		} else {
			return nil, fmt.Errorf("%w: due_date must be RFC3339", ErrInvalidInput)
		}
	}
	if updates.ReminderAt != nil {
		if *updates.ReminderAt == "" {
			task.ReminderAt = nil
			task.ReminderSent = false
		} else if t, err := time.Parse(time.RFC3339, *updates.ReminderAt); err == nil {
			task.ReminderAt = &t
			task.ReminderSent = false // Reset reminder status when time changes
		} else {
			return nil, fmt.Errorf("%w: reminder_at must be RFC3339", ErrInvalidInput)
		}
	}

	if err := u.taskRepo.Update(task); err != nil {
		return nil, err
	}

	if textChanged {
		u.triggerResearch(task.ID)
	}
	return task, nil
}

func (u *taskUsecase) DeleteTask(userID, taskID string) error {
	task, err := u.GetTaskByID(userID, taskID)
	if err != nil {
		return err
	}

	for _, hook := range u.onDelete {
		if err := hook(task.ID); err != nil {
			return fmt.Errorf("cleanup for task %s: %w", task.ID, err)
		}
	}
	return u.taskRepo.Delete(task.ID)
}

func (u *taskUsecase) SendDueReminders(ctx context.Context, now time.Time) (int, error) {
	if u.pusher == nil {
		return 0, nil
	}

	tasks, err := u.taskRepo.DueReminders(now)
	if err != nil {
		return 0, err
	}

	for _, task := range tasks {
		if err := u.pusher.Push(ctx, task.UserID, reminderNotification(task)); err != nil {
			u.logger.Warn("reminder push failed", zap.String("task_id", task.ID), zap.Error(err))
		}

		// Mark as sent regardless of delivery so a dead device does not get spammed
		if err := u.taskRepo.MarkReminderSent(task.ID); err != nil {
			u.logger.Error("mark reminder sent", zap.String("task_id", task.ID), zap.Error(err))
		}
	}
	return len(tasks), nil
}

func (u *taskUsecase) triggerResearch(taskID string) {
	if u.research == nil {
		return
	}
	if !u.research.Enqueue(taskID) {
		u.logger.Warn("research queue rejected task", zap.String("task_id", taskID))
	}
}

func reminderNotification(task *domain.Task) fcm.NotificationData {
	badge := "🟡"
	switch task.Priority {
	case domain.PriorityHigh:
		badge = "🔴"
	case domain.PriorityLow:
		badge = "🟢"
	}

	body := task.Description
	if body == "" {
		body = "You have a task waiting"
	}
	if task.DueDate != nil {
		body = fmt.Sprintf("%s\n📅 Due: %s", body, task.DueDate.Format("Jan 2, 15:04"))
	}

	return fcm.NotificationData{
		Title: badge + " Reminder: " + task.Title,
		Body:  body,
		Data: map[string]string{
			"type":     "task_reminder",
			"task_id":  task.ID,
			"priority": string(task.Priority),
		},
		ClickAction: "/tasks/" + task.ID,
	}
}

func parsePriority(p string) domain.Priority {
	switch strings.ToLower(p) {
	case "high":
		return domain.PriorityHigh
	case "low":
		return domain.PriorityLow
	default:
		return domain.PriorityMedium
	}
}

func parseStatus(s string) (domain.TaskStatus, bool) {
	switch domain.TaskStatus(s) {
	case domain.TaskStatusPending, domain.TaskStatusInProgress, domain.TaskStatusCompleted:
		return domain.TaskStatus(s), true
	}
	return "", false
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
