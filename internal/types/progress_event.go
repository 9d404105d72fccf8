package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/autodevhq/autodev-backend/internal/domain"
)

// isoMillis matches JS Date.toISOString(): fixed-width milliseconds keep the
// rendered timestamps lexicographically ordered.
const isoMillis = "2006-01-02T15:04:05.000Z"

// ProgressEvent is one recorded developer interaction. Rows are append-only
// and swept after the retention window.
type ProgressEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RepoID      string    `gorm:"not null;index:idx_progress_repo_user" json:"repoId"`
	UserID      string    `gorm:"not null;index:idx_progress_repo_user" json:"userId"`
	EventType   string    `gorm:"not null" json:"eventType"`
	TargetID    string    `json:"targetId,omitempty"`
	TargetLabel string    `json:"targetLabel,omitempty"`
	Area        string    `json:"area,omitempty"`
	DurationMs  int64     `json:"durationMs,omitempty"`
	OccurredAt  time.Time `gorm:"not null;index" json:"occurredAt"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"createdAt"`
}

func (ProgressEvent) TableName() string { return "progress_event" }

// Domain converts the row into the scoring engine's event shape.
func (e *ProgressEvent) Domain() domain.ProgressEvent {
	return domain.ProgressEvent{
		ID:          e.ID.String(),
		UserID:      e.UserID,
		RepoID:      e.RepoID,
		EventType:   e.EventType,
		TargetID:    e.TargetID,
		TargetLabel: e.TargetLabel,
		Area:        domain.SkillArea(e.Area),
		Timestamp:   e.OccurredAt.UTC().Format(isoMillis),
		DurationMs:  e.DurationMs,
	}
}
