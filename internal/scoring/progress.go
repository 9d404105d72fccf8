package scoring

import (
	"strings"
	"time"

	"github.com/autodevhq/autodev-backend/internal/domain"
)

const isoMillis = "2006-01-02T15:04:05.000Z"

func nowISO() string {
	return time.Now().UTC().Format(isoMillis)
}

func eventDescription(ev domain.ProgressEvent) string {
	desc := strings.ReplaceAll(ev.EventType, "_", " ")
	if ev.TargetLabel != "" {
		desc += ": " + ev.TargetLabel
	}
	return desc
}

// ComputeDeveloperProgress turns a chronological event history into a full
// progress report: blended skill scores, engagement counters, and a score
// timeline reconstructed by rescoring growing prefixes of the history.
func ComputeDeveloperProgress(userID, repoID string, events []domain.ProgressEvent, archMap *domain.ArchitectureMap) domain.DeveloperProgress {
	skills := ComputeSkillScores(events, archMap)

	var totalTime int64
	walkthroughs := make(map[string]struct{})
	modules := make(map[string]struct{})
	questions := 0
	conventions := 0
	for _, ev := range events {
		totalTime += ev.DurationMs
		switch ev.EventType {
		case domain.EventWalkthroughViewed:
			if ev.TargetID != "" {
				walkthroughs[ev.TargetID] = struct{}{}
			}
		case domain.EventModuleExplored:
			if ev.TargetID != "" {
				modules[ev.TargetID] = struct{}{}
			}
		case domain.EventQAAsked:
			questions++
		case domain.EventConventionViewed:
			conventions++
		}
	}

	first, last := nowISO(), nowISO()
	if len(events) > 0 {
		first = events[0].Timestamp
		last = events[len(events)-1].Timestamp
	}

	return domain.DeveloperProgress{
		UserID:                userID,
		RepoID:                repoID,
		OverallScore:          OverallScore(skills),
		Skills:                skills,
		TotalTimeSpentMs:      totalTime,
		WalkthroughsCompleted: len(walkthroughs),
		QuestionsAsked:        questions,
		ModulesExplored:       len(modules),
		ConventionsViewed:     conventions,
		FirstActivity:         first,
		LastActivity:          last,
		Timeline:              buildTimeline(events, archMap),
	}
}

// buildTimeline samples the history at a stride of len/10 (minimum 1),
// starting at the first event, rescoring each prefix from scratch.
// Recomputing prefixes is quadratic but histories are small and it keeps
// every snapshot consistent with the scoring rules in effect at read time.
// A final snapshot over the full history is appended when the stride did not
// already land on the last event.
func buildTimeline(events []domain.ProgressEvent, archMap *domain.ArchitectureMap) []domain.ProgressSnapshot {
	if len(events) == 0 {
		return []domain.ProgressSnapshot{}
	}

	step := len(events) / 10
	if step < 1 {
		step = 1
	}

	timeline := make([]domain.ProgressSnapshot, 0, len(events)/step+2)
	for i := 0; i < len(events); i += step {
		prefix := events[:i+1]
		timeline = append(timeline, domain.ProgressSnapshot{
			Timestamp:        events[i].Timestamp,
			OverallScore:     OverallScore(ComputeSkillScores(prefix, archMap)),
			EventDescription: eventDescription(events[i]),
		})
	}

	lastTS := events[len(events)-1].Timestamp
	if len(timeline) == 0 || timeline[len(timeline)-1].Timestamp != lastTS {
		timeline = append(timeline, domain.ProgressSnapshot{
			Timestamp:        lastTS,
			OverallScore:     OverallScore(ComputeSkillScores(events, archMap)),
			EventDescription: eventDescription(events[len(events)-1]),
		})
	}
	return timeline
}
