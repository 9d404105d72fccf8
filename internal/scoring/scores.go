package scoring

import (
	"math"

	"github.com/autodevhq/autodev-backend/internal/domain"
)

// eventWeights assigns activity points per event type. Unlisted types score
// the default weight so new event kinds never zero out a developer's history.
var eventWeights = map[string]int{
	domain.EventWalkthroughViewed: 15,
	domain.EventQAAsked:           10,
	domain.EventModuleExplored:    20,
	domain.EventConventionViewed:  8,
	domain.EventEnvSetupViewed:    12,
	domain.EventAnimatedViewed:    10,
}

const defaultEventWeight = 5

func weightOf(eventType string) int {
	if w, ok := eventWeights[eventType]; ok {
		return w
	}
	return defaultEventWeight
}

func clampScore(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}

// dedupKey identifies an event for scoring purposes. Repeating the same
// interaction with the same target never earns additional points.
func dedupKey(ev domain.ProgressEvent) string {
	target := ev.TargetID
	if target == "" {
		target = ev.TargetLabel
	}
	return ev.EventType + ":" + target
}

// ComputeSkillScores folds a developer's event history into per-area scores.
// Each area blends module coverage (40%) with deduplicated activity points
// (60%), both capped at 100 before blending. Every standard area is present
// in the result even when untouched; the "other" bucket is accumulated but
// excluded from the returned slice.
func ComputeSkillScores(events []domain.ProgressEvent, archMap *domain.ArchitectureMap) []domain.SkillScore {
	areaModules := AreasFromArchitecture(archMap)

	type areaAccum struct {
		activity     int
		interactions map[string]struct{}
		lastSeen     string
	}
	accums := make(map[domain.SkillArea]*areaAccum)
	areaOf := func(area domain.SkillArea) *areaAccum {
		acc, ok := accums[area]
		if !ok {
			acc = &areaAccum{interactions: make(map[string]struct{})}
			accums[area] = acc
		}
		return acc
	}

	for _, ev := range events {
		area := ev.Area
		if area == "" {
			area = ClassifyArea(ev.TargetLabel)
		}
		acc := areaOf(area)

		// Dedup is scoped per area: the same interaction key in two areas
		// counts once in each.
		key := dedupKey(ev)
		if _, dup := acc.interactions[key]; !dup {
			acc.interactions[key] = struct{}{}
			acc.activity += weightOf(ev.EventType)
		}
		if ev.Timestamp > acc.lastSeen {
			acc.lastSeen = ev.Timestamp
		}
	}

	scores := make([]domain.SkillScore, 0, len(domain.StandardAreas))
	for _, area := range domain.StandardAreas {
		acc := accums[area]
		if acc == nil {
			acc = &areaAccum{interactions: make(map[string]struct{})}
		}

		// Without an architecture map there is a single notional module per
		// area so any exploration counts as full coverage.
		totalModules := len(areaModules[area])
		if totalModules == 0 {
			totalModules = 1
		}

		coverage := math.Min(100, 100*float64(len(acc.interactions))/float64(totalModules))
		activity := math.Min(100, float64(acc.activity))
		score := clampScore(0.4*coverage + 0.6*activity)

		scores = append(scores, domain.SkillScore{
			Area:            area,
			Score:           score,
			ModulesExplored: len(acc.interactions),
			TotalModules:    totalModules,
			LastActivity:    acc.lastSeen,
		})
	}
	return scores
}

// OverallScore is the rounded mean across all standard areas. Idle areas
// count as zero, so early progress reads low by construction.
func OverallScore(scores []domain.SkillScore) int {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s.Score
	}
	return int(math.Round(float64(sum) / float64(len(scores))))
}
