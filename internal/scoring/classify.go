package scoring

import (
	"strings"

	"github.com/autodevhq/autodev-backend/internal/domain"
)

type keywordArea struct {
	keyword string
	area    domain.SkillArea
}

// keywordTable maps label substrings to skill areas. It is an ordered list,
// not a priority scheme: first match wins, which keeps classification
// deterministic for labels that would otherwise be ambiguous.
var keywordTable = []keywordArea{
	{"auth", domain.AreaAuth},
	{"authentication", domain.AreaAuth},
	{"authorization", domain.AreaAuth},
	{"login", domain.AreaAuth},
	{"session", domain.AreaAuth},
	{"jwt", domain.AreaAuth},
	{"oauth", domain.AreaAuth},
	{"api", domain.AreaAPI},
	{"route", domain.AreaAPI},
	{"routes", domain.AreaAPI},
	{"endpoint", domain.AreaAPI},
	{"controller", domain.AreaAPI},
	{"handler", domain.AreaAPI},
	{"middleware", domain.AreaAPI},
	{"database", domain.AreaDatabase},
	{"db", domain.AreaDatabase},
	{"model", domain.AreaDatabase},
	{"schema", domain.AreaDatabase},
	{"migration", domain.AreaDatabase},
	{"dynamodb", domain.AreaDatabase},
	{"postgres", domain.AreaDatabase},
	{"mongo", domain.AreaDatabase},
	{"redis", domain.AreaDatabase},
	{"frontend", domain.AreaFrontend},
	{"component", domain.AreaFrontend},
	{"page", domain.AreaFrontend},
	{"view", domain.AreaFrontend},
	{"ui", domain.AreaFrontend},
	{"style", domain.AreaFrontend},
	{"css", domain.AreaFrontend},
	{"react", domain.AreaFrontend},
	{"next", domain.AreaFrontend},
	{"infra", domain.AreaInfrastructure},
	{"infrastructure", domain.AreaInfrastructure},
	{"deploy", domain.AreaInfrastructure},
	{"docker", domain.AreaInfrastructure},
	{"ci", domain.AreaInfrastructure},
	{"cd", domain.AreaInfrastructure},
	{"pipeline", domain.AreaInfrastructure},
	{"aws", domain.AreaInfrastructure},
	{"cloud", domain.AreaInfrastructure},
	{"terraform", domain.AreaInfrastructure},
	{"cdk", domain.AreaInfrastructure},
	{"sam", domain.AreaInfrastructure},
	{"test", domain.AreaTesting},
	{"testing", domain.AreaTesting},
	{"spec", domain.AreaTesting},
	{"jest", domain.AreaTesting},
	{"vitest", domain.AreaTesting},
	{"e2e", domain.AreaTesting},
	{"devops", domain.AreaDevops},
	{"monitoring", domain.AreaDevops},
	{"logging", domain.AreaDevops},
	{"observability", domain.AreaDevops},
}

// ClassifyArea buckets a free-text label into a skill area by substring
// containment, case-insensitively. Unrecognized labels land in "other".
func ClassifyArea(label string) domain.SkillArea {
	lower := strings.ToLower(label)
	for _, kw := range keywordTable {
		if strings.Contains(lower, kw.keyword) {
			return kw.area
		}
	}
	return domain.AreaOther
}

// AreasFromArchitecture groups architecture node ids by the area their label
// classifies into. The per-area group sizes are the coverage denominators.
func AreasFromArchitecture(archMap *domain.ArchitectureMap) map[domain.SkillArea][]string {
	areaModules := make(map[domain.SkillArea][]string)
	if archMap == nil {
		return areaModules
	}
	for _, node := range archMap.Nodes {
		area := ClassifyArea(node.Label)
		areaModules[area] = append(areaModules[area], node.ID)
	}
	return areaModules
}
