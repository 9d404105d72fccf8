package scoring

import (
	"fmt"
	"testing"

	"github.com/autodevhq/autodev-backend/internal/domain"
)

func TestComputeDeveloperProgressEmpty(t *testing.T) {
	p := ComputeDeveloperProgress("u1", "acme/api", nil, nil)
	if p.OverallScore != 0 {
		t.Errorf("overall = %d, want 0", p.OverallScore)
	}
	if len(p.Skills) != len(domain.StandardAreas) {
		t.Errorf("skills = %d, want %d", len(p.Skills), len(domain.StandardAreas))
	}
	if len(p.Timeline) != 0 {
		t.Errorf("timeline should be empty, got %d snapshots", len(p.Timeline))
	}
	if p.FirstActivity == "" || p.LastActivity == "" {
		t.Error("first/last activity should default to the current time")
	}
}

func TestComputeDeveloperProgressCounters(t *testing.T) {
	events := []domain.ProgressEvent{
		{EventType: domain.EventWalkthroughViewed, TargetID: "wt-1", Timestamp: ts(0), DurationMs: 1000},
		{EventType: domain.EventWalkthroughViewed, TargetID: "wt-1", Timestamp: ts(1), DurationMs: 2000},
		{EventType: domain.EventWalkthroughViewed, TargetID: "wt-2", Timestamp: ts(2), DurationMs: 3000},
		{EventType: domain.EventQAAsked, TargetLabel: "how does auth work", Timestamp: ts(3)},
		{EventType: domain.EventModuleExplored, TargetID: "m1", Timestamp: ts(4)},
		{EventType: domain.EventConventionViewed, TargetID: "c1", Timestamp: ts(5)},
	}
	p := ComputeDeveloperProgress("u1", "acme/api", events, nil)
	if p.WalkthroughsCompleted != 2 {
		t.Errorf("walkthroughsCompleted = %d, want 2", p.WalkthroughsCompleted)
	}
	if p.QuestionsAsked != 1 {
		t.Errorf("questionsAsked = %d, want 1", p.QuestionsAsked)
	}
	if p.ModulesExplored != 1 {
		t.Errorf("modulesExplored = %d, want 1", p.ModulesExplored)
	}
	if p.ConventionsViewed != 1 {
		t.Errorf("conventionsViewed = %d, want 1", p.ConventionsViewed)
	}
	if p.TotalTimeSpentMs != 6000 {
		t.Errorf("totalTimeSpentMs = %d, want 6000", p.TotalTimeSpentMs)
	}
	if p.FirstActivity != ts(0) || p.LastActivity != ts(5) {
		t.Errorf("activity span = [%s, %s], want [%s, %s]", p.FirstActivity, p.LastActivity, ts(0), ts(5))
	}
}

func TestBuildTimelineEndsAtFinalState(t *testing.T) {
	var events []domain.ProgressEvent
	for i := 0; i < 23; i++ {
		events = append(events, domain.ProgressEvent{
			EventType:   domain.EventModuleExplored,
			TargetID:    fmt.Sprintf("m%d", i),
			TargetLabel: "api handler",
			Timestamp:   ts(i),
		})
	}
	timeline := buildTimeline(events, nil)
	if len(timeline) == 0 {
		t.Fatal("timeline should not be empty")
	}

	last := timeline[len(timeline)-1]
	if last.Timestamp != events[len(events)-1].Timestamp {
		t.Errorf("last snapshot at %s, want %s", last.Timestamp, events[len(events)-1].Timestamp)
	}
	full := OverallScore(ComputeSkillScores(events, nil))
	if last.OverallScore != full {
		t.Errorf("final snapshot score = %d, want full recompute %d", last.OverallScore, full)
	}

	for i := 1; i < len(timeline); i++ {
		if timeline[i].Timestamp < timeline[i-1].Timestamp {
			t.Fatal("timeline timestamps must be non-decreasing")
		}
	}
}

func TestBuildTimelineStartsAtFirstEvent(t *testing.T) {
	var events []domain.ProgressEvent
	for i := 0; i < 20; i++ {
		events = append(events, domain.ProgressEvent{
			EventType:   domain.EventModuleExplored,
			TargetID:    fmt.Sprintf("m%d", i),
			TargetLabel: "api handler",
			Timestamp:   ts(i),
		})
	}
	timeline := buildTimeline(events, nil)
	if timeline[0].Timestamp != events[0].Timestamp {
		t.Errorf("first snapshot at %s, want the very first event %s", timeline[0].Timestamp, events[0].Timestamp)
	}
	// Stride 2 over 20 events samples indices 0,2,...,18, plus the appended
	// final state.
	if len(timeline) != 11 {
		t.Errorf("got %d snapshots, want 11", len(timeline))
	}
}

func TestBuildTimelineSingleEvent(t *testing.T) {
	events := []domain.ProgressEvent{
		{EventType: domain.EventQAAsked, TargetLabel: "auth flow", Timestamp: ts(0)},
	}
	timeline := buildTimeline(events, nil)
	if len(timeline) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(timeline))
	}
	if timeline[0].EventDescription != "qa asked: auth flow" {
		t.Errorf("description = %q", timeline[0].EventDescription)
	}
}
