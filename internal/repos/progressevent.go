package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/autodevhq/autodev-backend/internal/platform/logger"
	"github.com/autodevhq/autodev-backend/internal/types"
)

type ProgressEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, event *types.ProgressEvent) (*types.ProgressEvent, error)
	ListByUser(ctx context.Context, tx *gorm.DB, repoID, userID string, limit int) ([]*types.ProgressEvent, error)
	ListUserIDs(ctx context.Context, tx *gorm.DB, repoID string) ([]string, error)
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type progressEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressEventRepo(db *gorm.DB, baseLog *logger.Logger) ProgressEventRepo {
	return &progressEventRepo{db: db, log: baseLog.With("repo", "ProgressEventRepo")}
}

func (r *progressEventRepo) Create(ctx context.Context, tx *gorm.DB, event *types.ProgressEvent) (*types.ProgressEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if event == nil {
		return nil, nil
	}

	if err := transaction.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

// ListByUser returns events in chronological order; the scoring engine
// relies on that ordering and does not re-sort.
func (r *progressEventRepo) ListByUser(ctx context.Context, tx *gorm.DB, repoID, userID string, limit int) ([]*types.ProgressEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ProgressEvent
	if repoID == "" || userID == "" {
		return results, nil
	}
	if limit <= 0 {
		limit = 200
	}

	if err := transaction.WithContext(ctx).
		Where("repo_id = ? AND user_id = ?", repoID, userID).
		Order("occurred_at ASC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *progressEventRepo) ListUserIDs(ctx context.Context, tx *gorm.DB, repoID string) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []string
	if repoID == "" {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Model(&types.ProgressEvent{}).
		Distinct("user_id").
		Where("repo_id = ?", repoID).
		Pluck("user_id", &results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *progressEventRepo) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Where("occurred_at < ?", cutoff).
		Delete(&types.ProgressEvent{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
