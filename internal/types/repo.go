package types

import (
	"time"

	"gorm.io/datatypes"
)

const (
	AnalysisStatusPending   = "pending"
	AnalysisStatusAnalyzing = "analyzing"
	AnalysisStatusCompleted = "completed"
	AnalysisStatusFailed    = "failed"
)

// Repo is one tracked repository, keyed by its "owner/name" id. Only the
// analysis orchestrator mutates analysis_status.
type Repo struct {
	RepoID         string         `gorm:"column:repo_id;primaryKey" json:"repoId"`
	UserID         string         `gorm:"not null;index" json:"userId"`
	RepoURL        string         `gorm:"column:repo_url" json:"repoUrl"`
	DefaultBranch  string         `gorm:"default:main" json:"defaultBranch"`
	AnalysisStatus string         `gorm:"not null;default:pending;index" json:"analysisStatus"`
	LastAnalyzedAt *time.Time     `json:"lastAnalyzedAt,omitempty"`
	FileCount      int            `json:"fileCount"`
	TechStack      datatypes.JSON `gorm:"type:jsonb" json:"techStack,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updatedAt"`
}

func (Repo) TableName() string { return "repo" }
