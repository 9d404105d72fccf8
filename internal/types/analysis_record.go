package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Analysis artifact kinds. Stored Kind values carry a timestamp suffix
// ("architecture#2026-01-02T15:04:05.000Z") so each run is a new version.
const (
	KindArchitecture = "architecture"
	KindConventions  = "conventions"
	KindWalkthrough  = "walkthrough"
	KindEnvSetup     = "env-setup"
)

// AnalysisRecord is the durable, versioned copy of one analysis artifact.
// Rows are insert-only; new runs create new versions.
type AnalysisRecord struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RepoID      string         `gorm:"not null;index:idx_analysis_repo_kind" json:"repoId"`
	Kind        string         `gorm:"not null;index:idx_analysis_repo_kind" json:"kind"`
	Version     int            `gorm:"not null;default:1" json:"version"`
	Content     datatypes.JSON `gorm:"type:jsonb" json:"content"`
	GeneratedAt time.Time      `gorm:"not null;index" json:"generatedAt"`
	ModelUsed   string         `json:"modelUsed"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"createdAt"`
}

func (AnalysisRecord) TableName() string { return "analysis_record" }
