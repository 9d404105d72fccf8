package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/autodevhq/autodev-backend/internal/platform/logger"
	"github.com/autodevhq/autodev-backend/internal/types"
)

type AnalysisRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *types.AnalysisRecord) (*types.AnalysisRecord, error)
	GetLatestByKindPrefix(ctx context.Context, tx *gorm.DB, repoID, kindPrefix string) (*types.AnalysisRecord, error)
}

type analysisRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisRecordRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisRecordRepo {
	return &analysisRecordRepo{db: db, log: baseLog.With("repo", "AnalysisRecordRepo")}
}

func (r *analysisRecordRepo) Create(ctx context.Context, tx *gorm.DB, record *types.AnalysisRecord) (*types.AnalysisRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if record == nil {
		return nil, nil
	}

	if err := transaction.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// GetLatestByKindPrefix returns the most recent version for an analysis kind.
// Kinds are stored timestamp-suffixed ("architecture#<iso>"); reading back
// latest-first is what the blob-store fallback path depends on.
func (r *analysisRecordRepo) GetLatestByKindPrefix(ctx context.Context, tx *gorm.DB, repoID, kindPrefix string) (*types.AnalysisRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if repoID == "" || kindPrefix == "" {
		return nil, nil
	}

	var result types.AnalysisRecord
	if err := transaction.WithContext(ctx).
		Where("repo_id = ? AND kind LIKE ?", repoID, kindPrefix+"%").
		Order("generated_at DESC").
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}
