package repository

import (
	"errors"
	"fmt"
	"time"

	"taskflow-backend/internal/task/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// dueDateOrder sorts dated tasks first, soonest first, then newest
const dueDateOrder = "CASE WHEN due_date IS NULL THEN 1 ELSE 0 END, due_date ASC, created_at DESC"

type gormTaskRepository struct {
	db *gorm.DB
}

func NewGormTaskRepository(db *gorm.DB) TaskRepository {
	return &gormTaskRepository{db: db}
}

func (r *gormTaskRepository) Create(task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	if err := r.db.Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *gormTaskRepository) FindByID(id string) (*domain.Task, error) {
	var task domain.Task
	err := r.db.First(&task, "id = ?", id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("find task %s: %w", id, err)
	}
	return &task, nil
}

func (r *gormTaskRepository) Update(task *domain.Task) error {
	task.UpdatedAt = time.Now()
	if err := r.db.Save(task).Error; err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	return nil
}

func (r *gormTaskRepository) Delete(id string) error {
	if err := r.db.Delete(&domain.Task{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func (r *gormTaskRepository) List(userID string, f ListFilter) ([]*domain.Task, int64, error) {
	scope := r.db.Model(&domain.Task{}).Where("user_id = ?", userID)
	if f.Status != "" {
		scope = scope.Where("status = ?", f.Status)
	}
	if f.Source != "" {
		scope = scope.Where("source = ?", f.Source)
	}
	if f.Tag != "" {
		// tags is a JSON array column; the text form works on sqlite and postgres alike
		scope = scope.Where("CAST(tags AS TEXT) LIKE ?", fmt.Sprintf("%%%q%%", f.Tag))
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	var tasks []*domain.Task
	page := scope.Order(dueDateOrder).Offset(f.Offset)
	if f.Limit > 0 {
		page = page.Limit(f.Limit)
	}
	if err := page.Find(&tasks).Error; err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, total, nil
}

func (r *gormTaskRepository) ListOpen(userID string) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := r.db.Where("user_id = ? AND status <> ?", userID, domain.TaskStatusCompleted).
		Order("created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list open tasks: %w", err)
	}
	return tasks, nil
}

func (r *gormTaskRepository) DueReminders(now time.Time) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := r.db.Where("reminder_at IS NOT NULL AND reminder_at <= ?", now).
		Where("reminder_sent = ? AND status <> ?", false, domain.TaskStatusCompleted).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("due reminders: %w", err)
	}
	return tasks, nil
}

func (r *gormTaskRepository) MarkReminderSent(id string) error {
	return r.db.Model(&domain.Task{}).Where("id = ?", id).
		UpdateColumns(map[string]any{"reminder_sent": true, "updated_at": time.Now()}).Error
}
