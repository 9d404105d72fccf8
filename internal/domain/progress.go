package domain

// SkillArea is one of the coarse buckets used to group both architecture
// nodes and interaction events.
type SkillArea string

const (
	AreaArchitecture   SkillArea = "architecture"
	AreaAPI            SkillArea = "api"
	AreaAuth           SkillArea = "auth"
	AreaDatabase       SkillArea = "database"
	AreaFrontend       SkillArea = "frontend"
	AreaInfrastructure SkillArea = "infrastructure"
	AreaTesting        SkillArea = "testing"
	AreaDevops         SkillArea = "devops"
	AreaOther          SkillArea = "other"
)

// StandardAreas are the eight areas every score set reports, even with zero
// events. "other" accumulates but is never reported.
var StandardAreas = []SkillArea{
	AreaArchitecture,
	AreaAPI,
	AreaAuth,
	AreaDatabase,
	AreaFrontend,
	AreaInfrastructure,
	AreaTesting,
	AreaDevops,
}

const (
	EventWalkthroughViewed = "walkthrough_viewed"
	EventQAAsked           = "qa_asked"
	EventModuleExplored    = "module_explored"
	EventConventionViewed  = "convention_viewed"
	EventEnvSetupViewed    = "env_setup_viewed"
	EventAnimatedViewed    = "animated_viewed"
)

// ValidEventTypes is the closed set a recorded event must belong to.
var ValidEventTypes = []string{
	EventWalkthroughViewed,
	EventQAAsked,
	EventModuleExplored,
	EventConventionViewed,
	EventEnvSetupViewed,
	EventAnimatedViewed,
}

func IsValidEventType(t string) bool {
	for _, v := range ValidEventTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ProgressEvent is one developer interaction, as fed to the scoring engine.
// Timestamp is an ISO-8601 string; callers supply events in chronological
// order and the engine compares timestamps lexicographically.
type ProgressEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	RepoID      string    `json:"repoId"`
	EventType   string    `json:"eventType"`
	TargetID    string    `json:"targetId,omitempty"`
	TargetLabel string    `json:"targetLabel,omitempty"`
	Area        SkillArea `json:"area,omitempty"`
	Timestamp   string    `json:"timestamp"`
	DurationMs  int64     `json:"durationMs,omitempty"`
}

type SkillScore struct {
	Area            SkillArea `json:"area"`
	Score           int       `json:"score"`
	ModulesExplored int       `json:"modulesExplored"`
	TotalModules    int       `json:"totalModules"`
	LastActivity    string    `json:"lastActivity"`
}

type ProgressSnapshot struct {
	Timestamp        string `json:"timestamp"`
	OverallScore     int    `json:"overallScore"`
	EventDescription string `json:"eventDescription"`
}

type DeveloperProgress struct {
	UserID                string             `json:"userId"`
	RepoID                string             `json:"repoId"`
	OverallScore          int                `json:"overallScore"`
	Skills                []SkillScore       `json:"skills"`
	TotalTimeSpentMs      int64              `json:"totalTimeSpentMs"`
	WalkthroughsCompleted int                `json:"walkthroughsCompleted"`
	QuestionsAsked        int                `json:"questionsAsked"`
	ModulesExplored       int                `json:"modulesExplored"`
	ConventionsViewed     int                `json:"conventionsViewed"`
	FirstActivity         string             `json:"firstActivity"`
	LastActivity          string             `json:"lastActivity"`
	Timeline              []ProgressSnapshot `json:"timeline"`
}

type TeamProgress struct {
	RepoID               string              `json:"repoId"`
	Members              []DeveloperProgress `json:"members"`
	AverageScore         int                 `json:"averageScore"`
	AverageTimeToOnboard int64               `json:"averageTimeToOnboard"`
	TopAreas             []SkillScore        `json:"topAreas"`
	WeakAreas            []SkillScore        `json:"weakAreas"`
}

type LeaderboardEntry struct {
	Rank                  int    `json:"rank"`
	UserID                string `json:"userId"`
	OverallScore          int    `json:"overallScore"`
	TotalTimeSpentMs      int64  `json:"totalTimeSpentMs"`
	WalkthroughsCompleted int    `json:"walkthroughsCompleted"`
	QuestionsAsked        int    `json:"questionsAsked"`
	ModulesExplored       int    `json:"modulesExplored"`
	StrongestArea         string `json:"strongestArea"`
}
