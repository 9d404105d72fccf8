package scoring

import (
	"testing"

	"github.com/autodevhq/autodev-backend/internal/domain"
)

func TestClassifyArea(t *testing.T) {
	cases := []struct {
		label string
		want  domain.SkillArea
	}{
		{"Auth Service", domain.AreaAuth},
		{"login-handler", domain.AreaAuth},
		{"JWT Middleware", domain.AreaAuth},
		{"API Routes", domain.AreaAPI},
		{"UserController", domain.AreaAPI},
		{"Database Models", domain.AreaDatabase},
		{"postgres-adapter", domain.AreaDatabase},
		{"redis cache", domain.AreaDatabase},
		{"React Components", domain.AreaFrontend},
		{"styles/main.css", domain.AreaFrontend},
		{"Dockerfile", domain.AreaInfrastructure},
		{"terraform modules", domain.AreaInfrastructure},
		{"unit tests", domain.AreaTesting},
		{"e2e flows", domain.AreaTesting},
		{"monitoring dashboards", domain.AreaDevops},
		// First match wins on table order: "ui" inside "suite" beats "e2e".
		{"e2e suite", domain.AreaFrontend},
		{"README", domain.AreaOther},
		{"", domain.AreaOther},
	}
	for _, tc := range cases {
		if got := ClassifyArea(tc.label); got != tc.want {
			t.Errorf("ClassifyArea(%q) = %q, want %q", tc.label, got, tc.want)
		}
	}
}

func TestClassifyAreaCaseInsensitive(t *testing.T) {
	if ClassifyArea("AUTH MODULE") != ClassifyArea("auth module") {
		t.Fatal("classification should be case-insensitive")
	}
}

func TestAreasFromArchitecture(t *testing.T) {
	archMap := &domain.ArchitectureMap{
		Nodes: []domain.ArchitectureNode{
			{ID: "n1", Label: "Auth Service"},
			{ID: "n2", Label: "Login Flow"},
			{ID: "n3", Label: "API Gateway"},
		},
	}
	groups := AreasFromArchitecture(archMap)
	if got := len(groups[domain.AreaAuth]); got != 2 {
		t.Errorf("auth group size = %d, want 2", got)
	}
	if got := len(groups[domain.AreaAPI]); got != 1 {
		t.Errorf("api group size = %d, want 1", got)
	}
	if groups := AreasFromArchitecture(nil); len(groups) != 0 {
		t.Errorf("nil map should produce no groups, got %d", len(groups))
	}
}
