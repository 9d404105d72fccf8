package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/autodevhq/autodev-backend/internal/platform/logger"
	"github.com/autodevhq/autodev-backend/internal/types"
)

type RepoRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, repoID string) (*types.Repo, error)
	Upsert(ctx context.Context, tx *gorm.DB, repo *types.Repo) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, repoID, userID, status string, extra map[string]any) error
	ListAll(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Repo, error)
}

type repoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepoRepo(db *gorm.DB, baseLog *logger.Logger) RepoRepo {
	return &repoRepo{db: db, log: baseLog.With("repo", "RepoRepo")}
}

func (r *repoRepo) GetByID(ctx context.Context, tx *gorm.DB, repoID string) (*types.Repo, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if repoID == "" {
		return nil, nil
	}

	var result types.Repo
	if err := transaction.WithContext(ctx).
		Where("repo_id = ?", repoID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *repoRepo) Upsert(ctx context.Context, tx *gorm.DB, repo *types.Repo) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if repo == nil {
		return nil
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "repo_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "repo_url", "default_branch", "analysis_status", "file_count", "updated_at"}),
		}).
		Create(repo).Error
}

// UpdateStatus writes the analysis status plus any extra metadata columns.
// The row is created if it does not exist yet so a status transition never
// fails on an unknown repo.
func (r *repoRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, repoID, userID, status string, extra map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	updates := map[string]any{
		"analysis_status": status,
		"updated_at":      time.Now().UTC(),
	}
	if status == types.AnalysisStatusCompleted {
		updates["last_analyzed_at"] = time.Now().UTC()
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := transaction.WithContext(ctx).
		Model(&types.Repo{}).
		Where("repo_id = ?", repoID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	row := &types.Repo{
		RepoID:         repoID,
		UserID:         userID,
		AnalysisStatus: status,
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	if len(extra) > 0 || status == types.AnalysisStatusCompleted {
		return transaction.WithContext(ctx).
			Model(&types.Repo{}).
			Where("repo_id = ?", repoID).
			Updates(updates).Error
	}
	return nil
}

func (r *repoRepo) ListAll(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Repo, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if limit <= 0 {
		limit = 50
	}

	var results []*types.Repo
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
