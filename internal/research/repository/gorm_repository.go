package repository

import (
	"errors"
	"fmt"
	"time"

	"taskflow-backend/internal/research/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormResearchRepository struct {
	db *gorm.DB
}

// NewGormResearchRepository creates a GORM-backed ResearchRepository
func NewGormResearchRepository(db *gorm.DB) ResearchRepository {
	return &gormResearchRepository{db: db}
}

func (r *gormResearchRepository) GetOrCreateTracking(taskID, userID string) (*domain.TrackingRecord, error) {
	rec := &domain.TrackingRecord{
		TaskID: taskID,
		UserID: userID,
		Status: domain.StatusNotStarted,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_id"}},
		DoNothing: true,
	}).Create(rec).Error
	if err != nil {
		return nil, fmt.Errorf("create tracking for task %s: %w", taskID, err)
	}

	var stored domain.TrackingRecord
	if err := r.db.Where("task_id = ?", taskID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("load tracking for task %s: %w", taskID, err)
	}
	return &stored, nil
}

func (r *gormResearchRepository) FindTracking(taskID string) (*domain.TrackingRecord, error) {
	var rec domain.TrackingRecord
	err := r.db.Where("task_id = ?", taskID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find tracking for task %s: %w", taskID, err)
	}
	return &rec, nil
}

func (r *gormResearchRepository) FindTrackingByTasks(taskIDs []string) (map[string]*domain.TrackingRecord, error) {
	out := make(map[string]*domain.TrackingRecord, len(taskIDs))
	if len(taskIDs) == 0 {
		return out, nil
	}

	var recs []*domain.TrackingRecord
	if err := r.db.Where("task_id IN ?", taskIDs).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("find tracking records: %w", err)
	}
	for _, rec := range recs {
		out[rec.TaskID] = rec
	}
	return out, nil
}

func (r *gormResearchRepository) UpdateTracking(rec *domain.TrackingRecord) error {
	rec.UpdatedAt = time.Now()
	if err := r.db.Save(rec).Error; err != nil {
		return fmt.Errorf("update tracking for task %s: %w", rec.TaskID, err)
	}
	return nil
}

func (r *gormResearchRepository) CreatePlan(plan *domain.Plan) error {
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if err := r.db.Create(plan).Error; err != nil {
		return fmt.Errorf("create plan for task %s: %w", plan.TaskID, err)
	}
	return nil
}

func (r *gormResearchRepository) UpdatePlanStatus(planID string, status domain.PlanStatus) error {
	err := r.db.Model(&domain.Plan{}).Where("id = ?", planID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("update plan %s: %w", planID, err)
	}
	return nil
}

func (r *gormResearchRepository) FindPlan(planID string) (*domain.Plan, error) {
	var plan domain.Plan
	err := r.db.Where("id = ?", planID).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find plan %s: %w", planID, err)
	}
	return &plan, nil
}

func (r *gormResearchRepository) SaveResult(result *domain.Result) error {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if err := r.db.Create(result).Error; err != nil {
		return fmt.Errorf("save result for task %s: %w", result.TaskID, err)
	}
	return nil
}

func (r *gormResearchRepository) LatestResult(taskID string) (*domain.Result, error) {
	var result domain.Result
	err := r.db.Where("task_id = ?", taskID).Order("created_at DESC").First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest result for task %s: %w", taskID, err)
	}
	return &result, nil
}

func (r *gormResearchRepository) DeleteByTask(taskID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&domain.Result{}).Error; err != nil {
			return fmt.Errorf("delete results for task %s: %w", taskID, err)
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&domain.Plan{}).Error; err != nil {
			return fmt.Errorf("delete plans for task %s: %w", taskID, err)
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&domain.TrackingRecord{}).Error; err != nil {
			return fmt.Errorf("delete tracking for task %s: %w", taskID, err)
		}
		return nil
	})
}

func (r *gormResearchRepository) PruneHistory(keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}

	var taskIDs []string
	err := r.db.Model(&domain.Plan{}).
		Select("task_id").
		Group("task_id").
		Having("COUNT(*) > ?", keep).
		Pluck("task_id", &taskIDs).Error
	if err != nil {
		return 0, fmt.Errorf("find tasks over history limit: %w", err)
	}

	var pruned int64
	for _, taskID := range taskIDs {
		var planIDs []string
		err := r.db.Model(&domain.Plan{}).
			Where("task_id = ?", taskID).
			Order("created_at DESC").
			Pluck("id", &planIDs).Error
		if err != nil {
			return pruned, fmt.Errorf("list plans for task %s: %w", taskID, err)
		}
		if len(planIDs) <= keep {
			continue
		}
		stale := planIDs[keep:]

		// Results go first so no result is ever left pointing at a missing plan
		err = r.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("plan_id IN ?", stale).Delete(&domain.Result{}).Error; err != nil {
				return err
			}
			res := tx.Where("id IN ?", stale).Delete(&domain.Plan{})
			if res.Error != nil {
				return res.Error
			}
			pruned += res.RowsAffected
			return nil
		})
		if err != nil {
			return pruned, fmt.Errorf("prune history for task %s: %w", taskID, err)
		}
	}
	return pruned, nil
}
