package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/autodevhq/autodev-backend/internal/domain"
	"github.com/autodevhq/autodev-backend/internal/platform/apierr"
	"github.com/autodevhq/autodev-backend/internal/platform/envutil"
	"github.com/autodevhq/autodev-backend/internal/platform/logger"
	"github.com/autodevhq/autodev-backend/internal/repos"
	"github.com/autodevhq/autodev-backend/internal/scoring"
	"github.com/autodevhq/autodev-backend/internal/types"
)

// ProgressService records developer interactions and serves the derived
// progress views. Scores are never stored; every read recomputes them from
// the event history so scoring changes apply retroactively.
type ProgressService struct {
	log      *logger.Logger
	events   repos.ProgressEventRepo
	analysis *AnalysisService
}

func NewProgressService(log *logger.Logger, events repos.ProgressEventRepo, analysis *AnalysisService) *ProgressService {
	return &ProgressService{
		log:      log.With("service", "ProgressService"),
		events:   events,
		analysis: analysis,
	}
}

// RecordEventInput carries one interaction report from the client.
type RecordEventInput struct {
	RepoID      string `json:"repoId"`
	UserID      string `json:"userId"`
	EventType   string `json:"eventType"`
	TargetID    string `json:"targetId"`
	TargetLabel string `json:"targetLabel"`
	Area        string `json:"area"`
	DurationMs  int64  `json:"durationMs"`
	Timestamp   string `json:"timestamp"`
}

// RecordEvent validates and appends one interaction. The area, when omitted,
// is classified from the target label at write time so stored rows are
// self-describing.
func (s *ProgressService) RecordEvent(ctx context.Context, in RecordEventInput) (*types.ProgressEvent, error) {
	if strings.TrimSpace(in.RepoID) == "" || strings.TrimSpace(in.UserID) == "" {
		return nil, apierr.BadRequest("MISSING_FIELDS", fmt.Errorf("repoId and userId are required"))
	}
	if !domain.IsValidEventType(in.EventType) {
		return nil, apierr.BadRequest("INVALID_EVENT_TYPE",
			fmt.Errorf("eventType must be one of %s", strings.Join(domain.ValidEventTypes, ", ")))
	}
	if in.DurationMs < 0 {
		return nil, apierr.BadRequest("INVALID_DURATION", fmt.Errorf("durationMs must be non-negative"))
	}

	occurredAt := time.Now().UTC()
	if in.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, in.Timestamp)
		if err != nil {
			return nil, apierr.BadRequest("INVALID_TIMESTAMP", fmt.Errorf("timestamp must be RFC 3339"))
		}
		occurredAt = parsed.UTC()
	}

	area := in.Area
	if area == "" {
		area = string(scoring.ClassifyArea(in.TargetLabel))
	}

	event := &types.ProgressEvent{
		RepoID:      in.RepoID,
		UserID:      in.UserID,
		EventType:   in.EventType,
		TargetID:    in.TargetID,
		TargetLabel: in.TargetLabel,
		Area:        area,
		DurationMs:  in.DurationMs,
		OccurredAt:  occurredAt,
	}
	created, err := s.events.Create(ctx, nil, event)
	if err != nil {
		return nil, fmt.Errorf("record progress event: %w", err)
	}
	return created, nil
}

// ListEvents returns a user's raw event history, oldest first.
func (s *ProgressService) ListEvents(ctx context.Context, repoID, userID string, limit int) ([]domain.ProgressEvent, error) {
	rows, err := s.events.ListByUser(ctx, nil, repoID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list progress events: %w", err)
	}
	out := make([]domain.ProgressEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Domain())
	}
	return out, nil
}

// GetDeveloperProgress computes one developer's full progress report. The
// architecture map is optional context; without it coverage falls back to
// single-module areas.
func (s *ProgressService) GetDeveloperProgress(ctx context.Context, repoID, userID string) (*domain.DeveloperProgress, error) {
	events, err := s.ListEvents(ctx, repoID, userID, 0)
	if err != nil {
		return nil, err
	}
	archMap, err := s.analysis.GetArchitecture(ctx, repoID)
	if err != nil {
		s.log.Warn("progress computed without architecture map", "repo_id", repoID, "error", err.Error())
	}
	progress := scoring.ComputeDeveloperProgress(userID, repoID, events, archMap)
	return &progress, nil
}

// GetTeamProgress aggregates every developer with recorded activity on the
// repo.
func (s *ProgressService) GetTeamProgress(ctx context.Context, repoID string) (*domain.TeamProgress, error) {
	members, err := s.memberReports(ctx, repoID)
	if err != nil {
		return nil, err
	}
	team := scoring.ComputeTeamProgress(repoID, members)
	return &team, nil
}

// GetLeaderboard ranks the repo's developers by overall score.
func (s *ProgressService) GetLeaderboard(ctx context.Context, repoID string) ([]domain.LeaderboardEntry, error) {
	members, err := s.memberReports(ctx, repoID)
	if err != nil {
		return nil, err
	}
	return scoring.Leaderboard(members), nil
}

func (s *ProgressService) memberReports(ctx context.Context, repoID string) ([]domain.DeveloperProgress, error) {
	userIDs, err := s.events.ListUserIDs(ctx, nil, repoID)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	archMap, err := s.analysis.GetArchitecture(ctx, repoID)
	if err != nil {
		s.log.Warn("team progress computed without architecture map", "repo_id", repoID, "error", err.Error())
	}

	members := make([]domain.DeveloperProgress, 0, len(userIDs))
	for _, userID := range userIDs {
		events, err := s.ListEvents(ctx, repoID, userID, 0)
		if err != nil {
			return nil, err
		}
		members = append(members, scoring.ComputeDeveloperProgress(userID, repoID, events, archMap))
	}
	return members, nil
}

// StartRetentionSweep deletes events older than the retention window on a
// daily cadence until the context is canceled.
func (s *ProgressService) StartRetentionSweep(ctx context.Context) {
	retentionDays := envutil.Int("PROGRESS_RETENTION_DAYS", 90)
	interval := envutil.Duration("PROGRESS_SWEEP_INTERVAL", 24*time.Hour)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
				deleted, err := s.events.DeleteOlderThan(ctx, nil, cutoff)
				if err != nil {
					s.log.Error("progress retention sweep failed", "error", err.Error())
					continue
				}
				if deleted > 0 {
					s.log.Info("progress retention sweep", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
				}
			}
		}
	}()
}
