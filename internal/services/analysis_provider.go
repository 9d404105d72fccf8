package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/autodevhq/autodev-backend/internal/domain"
	"github.com/autodevhq/autodev-backend/internal/platform/logger"
)

// AnalysisProvider generates the structured analysis artifacts for a repo's
// code index. All methods are model-backed and can take minutes.
type AnalysisProvider interface {
	AnalyzeArchitecture(ctx context.Context, files []domain.RepoFile) (*domain.ArchitectureMap, error)
	DetectConventions(ctx context.Context, archMap *domain.ArchitectureMap, files []domain.RepoFile) ([]domain.Convention, error)
	GenerateWalkthroughs(ctx context.Context, repoID string, archMap *domain.ArchitectureMap, files []domain.RepoFile) ([]domain.Walkthrough, error)
	AnswerWalkthrough(ctx context.Context, repoID, question string, archMap *domain.ArchitectureMap, files []domain.RepoFile) (*domain.Walkthrough, error)
	AnalyzeEnvSetup(ctx context.Context, files []domain.RepoFile) (*domain.EnvSetupGuide, error)
	Model() string
}

type analysisProvider struct {
	log *logger.Logger
	ai  AIClient
}

func NewAnalysisProvider(log *logger.Logger, ai AIClient) AnalysisProvider {
	return &analysisProvider{
		log: log.With("service", "AnalysisProvider"),
		ai:  ai,
	}
}

func (p *analysisProvider) Model() string { return p.ai.Model() }

const architectureSystemPrompt = `You are an expert software architect analyzing a codebase to help new developers onboard quickly.
Your goal is to identify the major modules, services, and components and how they connect.

Return a JSON object with this EXACT structure (no markdown, no explanation, only valid JSON):

{
  "nodes": [{"id": "unique-slug", "label": "Human Readable Name", "type": "module|service|config|entry|util|database|external", "files": ["src/path/file.go"], "description": "1-2 sentence description"}],
  "edges": [{"source": "node-id", "target": "node-id", "label": "imports|calls|reads|writes|extends"}],
  "techStack": {"runtime": "...", "framework": "...", "language": "..."},
  "summary": "2-3 sentence overview of the entire project architecture",
  "entryPoints": ["src/index.ts"],
  "keyPatterns": ["pattern 1 used in the codebase", "pattern 2"]
}

Guidelines:
- Group related files into logical nodes, never one node per file
- Create 5-15 nodes for most projects
- Mark external services as type "external"
- Return ONLY valid JSON.`

const conventionsSystemPrompt = `You are an expert code reviewer analyzing a codebase to detect its coding conventions, patterns, and best practices, so new developers understand "how we do things here".

Return a JSON array with this EXACT structure (no markdown, only valid JSON):

[{"category": "Architecture|Error Handling|Naming|Testing|Styling|API Design|State Management|Security|Other", "pattern": "Short pattern name", "description": "2-3 sentence explanation", "examples": ["src/services/user.go:15 - constructor injection"], "confidence": 0.95}]

Guidelines:
- Detect 5-15 conventions for most codebases
- Include concrete file:line examples from the actual codebase
- Confidence is 0.0-1.0 based on how consistently the pattern appears
- Return ONLY a valid JSON array.`

const walkthroughSystemPrompt = `You are an expert developer mentor. Given a codebase architecture analysis and source files, identify the 3-5 most important flows a new developer should understand first and generate a step-by-step walkthrough for each.

Return a JSON array (no markdown, only valid JSON):

[{"id": "walkthrough-slug", "question": "What flow does this explain?", "steps": [{"stepNumber": 1, "file": "src/path/file.go", "lineRange": {"start": 1, "end": 20}, "title": "Step title", "explanation": "Clear explanation for a new developer", "codeSnippet": "relevant code", "nextStepHint": "Next we'll see..."}]}]

Focus on the entry point and request lifecycle, the core business logic, persistence patterns, and auth if present. Include 4-10 steps per walkthrough. Return ONLY a valid JSON array.`

const walkthroughAnswerSystemPrompt = `You are an expert developer mentor generating a step-by-step code walkthrough that answers a specific developer question about a codebase.

Return ONE JSON object (no markdown, only valid JSON):

{"id": "walkthrough-slug", "question": "the question", "steps": [{"stepNumber": 1, "file": "src/path/file.go", "lineRange": {"start": 1, "end": 20}, "title": "Step title", "explanation": "Clear explanation", "codeSnippet": "relevant code", "nextStepHint": "..."}]}

Start from the most logical entry point, follow the flow, explain WHY and not just WHAT. Return ONLY valid JSON.`

const envSetupSystemPrompt = `You are an expert DevOps engineer and onboarding specialist. Analyze a repository's configuration files to generate a complete, verified environment setup guide for new developers: step-by-step setup, conflicts between config sources, and missing setup pieces.

Return a JSON object with this EXACT structure (no markdown, only valid JSON):

{
  "setupSteps": [{"order": 1, "title": "Install Go 1.22", "command": "...", "description": "..."}],
  "conflicts": [{"type": "error|warning", "description": "...", "resolution": "..."}],
  "missingPieces": [{"name": "...", "reason": "...", "suggestion": "..."}],
  "envVariables": [{"name": "DATABASE_URL", "required": true, "description": "...", "example": "..."}],
  "dockerSupport": {"hasDockerfile": true, "hasCompose": true, "notes": "..."},
  "estimatedSetupTime": "15 minutes",
  "requiredTools": ["go", "docker"],
  "summary": "2-3 sentence overview"
}

Cross-reference README instructions with actual config files, flag conflicts between sources of truth, and order steps logically. Return ONLY valid JSON.`

// ---- Architecture (two-pass) ----

// AnalyzeArchitecture runs the two-pass flow: pass 1 sees the file tree plus
// configuration contents, pass 2 refines the result against prioritized
// source files.
func (p *analysisProvider) AnalyzeArchitecture(ctx context.Context, files []domain.RepoFile) (*domain.ArchitectureMap, error) {
	tree := buildFileTree(files)
	configs := buildConfigContents(files)

	pass1User := fmt.Sprintf("## Pass 1: File Tree & Configuration Analysis\n\nFile tree:\n\n%s\n\nConfiguration files:\n\n%s\n\nIdentify the major modules, detect the tech stack, and map the high-level architecture. Return the analysis as JSON.", tree, configs)
	pass1Raw, err := p.ai.GenerateJSON(ctx, architectureSystemPrompt, pass1User)
	if err != nil {
		return nil, fmt.Errorf("architecture pass 1: %w", err)
	}

	keyFiles := buildKeyFileContents(files, 50000)
	pass2User := fmt.Sprintf("## Pass 2: Deep File Analysis\n\nPreliminary analysis from pass 1:\n%s\n\nKey source files:\n\n%s\n\nVerify module boundaries, add missing edges based on actual imports, improve descriptions, and identify design patterns. Return the COMPLETE updated analysis as JSON.", string(pass1Raw), keyFiles)
	pass2Raw, err := p.ai.GenerateJSON(ctx, architectureSystemPrompt, pass2User)
	if err != nil {
		// Pass 1 already produced a usable map; degrade rather than fail.
		p.log.Warn("architecture pass 2 failed, using pass 1 result", "error", err.Error())
		pass2Raw = pass1Raw
	}

	var archMap domain.ArchitectureMap
	if err := json.Unmarshal(pass2Raw, &archMap); err != nil {
		return nil, fmt.Errorf("parse architecture map: %w", err)
	}
	p.normalizeArchitecture(&archMap)
	return &archMap, nil
}

// normalizeArchitecture fills defaults and warns on graph defects instead of
// rejecting the artifact. Model output is best-effort and a map with a
// dangling edge is still useful to render.
func (p *analysisProvider) normalizeArchitecture(m *domain.ArchitectureMap) {
	if m.Nodes == nil {
		m.Nodes = []domain.ArchitectureNode{}
	}
	if m.Edges == nil {
		m.Edges = []domain.ArchitectureEdge{}
	}
	if m.Summary == "" {
		m.Summary = "Architecture analysis complete."
	}

	ids := make(map[string]int, len(m.Nodes))
	for _, n := range m.Nodes {
		ids[n.ID]++
	}
	for id, count := range ids {
		if count > 1 {
			p.log.Warn("architecture map has duplicate node id", "node_id", id, "count", count)
		}
	}
	for _, e := range m.Edges {
		if ids[e.Source] == 0 || ids[e.Target] == 0 {
			p.log.Warn("architecture map has dangling edge", "source", e.Source, "target", e.Target)
		}
	}
}

// ---- Conventions ----

func (p *analysisProvider) DetectConventions(ctx context.Context, archMap *domain.ArchitectureMap, files []domain.RepoFile) ([]domain.Convention, error) {
	user := fmt.Sprintf("## Convention Detection\n\n### Architecture Overview\n%s\n\n### Source Files to Analyze\n%s\n\nDetect the coding conventions, patterns, and best practices a new developer needs to write consistent code here.",
		architectureContext(archMap), buildKeyFileContents(files, 50000))

	raw, err := p.ai.GenerateJSON(ctx, conventionsSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("detect conventions: %w", err)
	}
	conventions, err := decodeArrayLenient[domain.Convention](raw, "conventions")
	if err != nil {
		return nil, fmt.Errorf("parse conventions: %w", err)
	}
	return conventions, nil
}

// ---- Walkthroughs ----

func (p *analysisProvider) GenerateWalkthroughs(ctx context.Context, repoID string, archMap *domain.ArchitectureMap, files []domain.RepoFile) ([]domain.Walkthrough, error) {
	user := fmt.Sprintf("## Auto-Generate Onboarding Walkthroughs\n\n### Architecture Analysis\n%s\n\n### Key Source Files\n%s\n\nGenerate 3-5 walkthroughs covering the most important flows a new developer needs to understand.",
		architectureContext(archMap), buildKeyFileContents(files, 40000))

	raw, err := p.ai.GenerateJSON(ctx, walkthroughSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("generate walkthroughs: %w", err)
	}
	walkthroughs, err := decodeArrayLenient[domain.Walkthrough](raw, "walkthroughs")
	if err != nil {
		return nil, fmt.Errorf("parse walkthroughs: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i := range walkthroughs {
		walkthroughs[i].RepoID = repoID
		if walkthroughs[i].GeneratedAt == "" {
			walkthroughs[i].GeneratedAt = now
		}
		if walkthroughs[i].ID == "" {
			walkthroughs[i].ID = fmt.Sprintf("walkthrough-%d", i+1)
		}
	}
	return walkthroughs, nil
}

func (p *analysisProvider) AnswerWalkthrough(ctx context.Context, repoID, question string, archMap *domain.ArchitectureMap, files []domain.RepoFile) (*domain.Walkthrough, error) {
	user := fmt.Sprintf("## Walkthrough Request\n\nThe developer wants to understand: %q\n\n### Architecture Context\n%s\n\n### Relevant Source Files\n%s\n\nGenerate a step-by-step walkthrough answering the question, starting from the most logical entry point.",
		question, architectureContext(archMap), buildKeyFileContents(files, 40000))

	raw, err := p.ai.GenerateJSON(ctx, walkthroughAnswerSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("answer walkthrough: %w", err)
	}
	var wt domain.Walkthrough
	if err := json.Unmarshal(raw, &wt); err != nil {
		return nil, fmt.Errorf("parse walkthrough: %w", err)
	}
	wt.RepoID = repoID
	wt.Question = question
	if wt.GeneratedAt == "" {
		wt.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return &wt, nil
}

// ---- Environment setup ----

func (p *analysisProvider) AnalyzeEnvSetup(ctx context.Context, files []domain.RepoFile) (*domain.EnvSetupGuide, error) {
	configFiles, readmeFiles, sourceFiles := categorizeFiles(files)
	p.log.Info("analyzing environment setup",
		"config_files", len(configFiles),
		"doc_files", len(readmeFiles),
		"source_files", len(sourceFiles),
	)

	user := fmt.Sprintf("## Environment Setup Analysis\n\n### Configuration Files\n%s\n\n### README / Documentation\n%s\n\n### Source File Sample (for detecting undocumented dependencies)\n%s\n\nGenerate a complete setup guide, detect conflicts between sources, and flag missing setup documentation.",
		formatConfigFiles(configFiles), formatReadme(readmeFiles), formatSourceSample(sourceFiles))

	raw, err := p.ai.GenerateJSON(ctx, envSetupSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("analyze env setup: %w", err)
	}
	var guide domain.EnvSetupGuide
	if err := json.Unmarshal(raw, &guide); err != nil {
		return nil, fmt.Errorf("parse env setup guide: %w", err)
	}
	normalizeEnvGuide(&guide)
	return &guide, nil
}

func normalizeEnvGuide(g *domain.EnvSetupGuide) {
	if g.SetupSteps == nil {
		g.SetupSteps = []domain.SetupStep{}
	}
	if g.Conflicts == nil {
		g.Conflicts = []domain.SetupConflict{}
	}
	if g.MissingPieces == nil {
		g.MissingPieces = []domain.MissingPiece{}
	}
	if g.EnvVariables == nil {
		g.EnvVariables = []domain.EnvVariable{}
	}
	if g.RequiredTools == nil {
		g.RequiredTools = []string{}
	}
	if g.EstimatedSetupTime == "" {
		g.EstimatedSetupTime = "Unknown"
	}
	if g.Summary == "" {
		g.Summary = "Environment setup analysis complete."
	}
}

// decodeArrayLenient accepts either a bare JSON array or an object wrapping
// the array under the given key, which JSON-mode models frequently produce.
func decodeArrayLenient[T any](raw json.RawMessage, key string) ([]T, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, err
	}
	inner, ok := wrapper[key]
	if !ok {
		// Fall back to the first array-valued field.
		for _, v := range wrapper {
			if strings.HasPrefix(strings.TrimSpace(string(v)), "[") {
				inner = v
				ok = true
				break
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("no %q array in model output", key)
	}
	var out []T
	if err := json.Unmarshal(inner, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func architectureContext(m *domain.ArchitectureMap) string {
	if m == nil {
		return "No architecture analysis available."
	}
	var b strings.Builder
	b.WriteString(m.Summary)
	b.WriteString("\n\nModules:\n")
	for _, n := range m.Nodes {
		fmt.Fprintf(&b, "- %s (%s): %s\n", n.Label, n.Type, n.Description)
	}
	return b.String()
}

// ---- File selection heuristics ----

var configFilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\.nvmrc$`),
	regexp.MustCompile(`^\.node-version$`),
	regexp.MustCompile(`^\.python-version$`),
	regexp.MustCompile(`^\.ruby-version$`),
	regexp.MustCompile(`^\.tool-versions$`),
	regexp.MustCompile(`^package\.json$`),
	regexp.MustCompile(`^requirements\.txt$`),
	regexp.MustCompile(`^pyproject\.toml$`),
	regexp.MustCompile(`^go\.mod$`),
	regexp.MustCompile(`^Cargo\.toml$`),
	regexp.MustCompile(`^Gemfile$`),
	regexp.MustCompile(`(?i)^Dockerfile$`),
	regexp.MustCompile(`^docker-compose.*\.ya?ml$`),
	regexp.MustCompile(`^\.env\.(example|sample|template)$`),
	regexp.MustCompile(`^Makefile$`),
	regexp.MustCompile(`^Procfile$`),
	regexp.MustCompile(`^\.eslintrc`),
	regexp.MustCompile(`^tsconfig.*\.json$`),
	regexp.MustCompile(`^(vite|webpack|next|tailwind)\.config`),
	regexp.MustCompile(`^pnpm-workspace\.yaml$`),
	regexp.MustCompile(`^(lerna|nx|turbo)\.json$`),
}

var readmeFilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^README\.md$`),
	regexp.MustCompile(`(?i)^CONTRIBUTING\.md$`),
	regexp.MustCompile(`(?i)^SETUP\.md$`),
	regexp.MustCompile(`(?i)^INSTALL\.md$`),
	regexp.MustCompile(`(?i)^docs/.*setup`),
	regexp.MustCompile(`(?i)^docs/.*getting.?started`),
}

func matchesAny(patterns []*regexp.Regexp, path string) bool {
	base := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		base = path[idx+1:]
	}
	for _, p := range patterns {
		if p.MatchString(base) || p.MatchString(path) {
			return true
		}
	}
	return false
}

// categorizeFiles splits a code index into setup configs, docs, and source,
// the three ingredient groups of the environment analysis prompt.
func categorizeFiles(files []domain.RepoFile) (configFiles, readmeFiles, sourceFiles []domain.RepoFile) {
	for _, f := range files {
		switch {
		case matchesAny(configFilePatterns, f.Path):
			configFiles = append(configFiles, f)
		case matchesAny(readmeFilePatterns, f.Path):
			readmeFiles = append(readmeFiles, f)
		default:
			sourceFiles = append(sourceFiles, f)
		}
	}
	return configFiles, readmeFiles, sourceFiles
}

func formatConfigFiles(files []domain.RepoFile) string {
	if len(files) == 0 {
		return "No configuration files found."
	}
	parts := make([]string, 0, len(files))
	for _, f := range files {
		parts = append(parts, fmt.Sprintf("--- %s ---\n%s", f.Path, truncateContent(f.Content, 5000)))
	}
	return strings.Join(parts, "\n\n")
}

func formatReadme(files []domain.RepoFile) string {
	if len(files) == 0 {
		return "No README or setup documentation found."
	}
	parts := make([]string, 0, len(files))
	for _, f := range files {
		parts = append(parts, fmt.Sprintf("--- %s ---\n%s", f.Path, truncateContent(f.Content, 8000)))
	}
	return strings.Join(parts, "\n\n")
}

var importLineRe = regexp.MustCompile(`^\s*(import|from|require|using|include|#include)\b|^\s*const\s+.*=\s*require\(`)

// formatSourceSample extracts import lines from up to 30 source files so the
// model can spot dependencies that no config or doc mentions.
func formatSourceSample(files []domain.RepoFile) string {
	sampled := files
	if len(sampled) > 30 {
		sampled = sampled[:30]
	}
	var parts []string
	for _, f := range sampled {
		var imports []string
		for _, line := range strings.Split(f.Content, "\n") {
			if importLineRe.MatchString(line) {
				imports = append(imports, line)
			}
		}
		if len(imports) > 0 {
			parts = append(parts, fmt.Sprintf("--- %s ---\n%s", f.Path, strings.Join(imports, "\n")))
		}
	}
	if len(parts) == 0 {
		return "No source files with imports found."
	}
	return strings.Join(parts, "\n\n")
}

func buildFileTree(files []domain.RepoFile) string {
	sorted := make([]domain.RepoFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	lines := make([]string, 0, len(sorted))
	for _, f := range sorted {
		lines = append(lines, fmt.Sprintf("%s (%s)", f.Path, formatSize(f.Size)))
	}
	return strings.Join(lines, "\n")
}

var archConfigRe = regexp.MustCompile(`(?i)(package\.json|tsconfig.*\.json|\.env\.example|README\.md|Dockerfile|docker-compose.*\.ya?ml|\.eslintrc|next\.config|vite\.config|webpack\.config|tailwind\.config|prisma/schema\.prisma|requirements\.txt|pyproject\.toml|Cargo\.toml|go\.mod)$`)

func buildConfigContents(files []domain.RepoFile) string {
	var parts []string
	for _, f := range files {
		if archConfigRe.MatchString(f.Path) {
			parts = append(parts, fmt.Sprintf("--- %s ---\n%s", f.Path, truncateContent(f.Content, 3000)))
		}
	}
	if len(parts) == 0 {
		return "No configuration files found."
	}
	return strings.Join(parts, "\n\n")
}

var nonSourceExtRe = regexp.MustCompile(`\.(json|ya?ml|toml|lock|env)$`)

// buildKeyFileContents selects prioritized source files up to a character
// budget: entry points first, then handlers, services, models, and so on.
func buildKeyFileContents(files []domain.RepoFile, maxTotalChars int) string {
	prioritized := make([]domain.RepoFile, 0, len(files))
	for _, f := range files {
		if nonSourceExtRe.MatchString(f.Path) || strings.HasSuffix(f.Path, "Dockerfile") {
			continue
		}
		prioritized = append(prioritized, f)
	}
	sort.SliceStable(prioritized, func(i, j int) bool {
		return filePriority(prioritized[i].Path) > filePriority(prioritized[j].Path)
	})

	total := 0
	var parts []string
	for _, f := range prioritized {
		entry := fmt.Sprintf("--- %s ---\n%s", f.Path, truncateContent(f.Content, 5000))
		if total+len(entry) > maxTotalChars {
			break
		}
		parts = append(parts, entry)
		total += len(entry)
	}
	return strings.Join(parts, "\n\n")
}

var (
	entryFileRe  = regexp.MustCompile(`(index|main|app|server)\.(go|ts|js|tsx|jsx|py)$`)
	routeFileRe  = regexp.MustCompile(`(?i)route|handler|controller`)
	svcFileRe    = regexp.MustCompile(`(?i)service|provider|client`)
	modelFileRe  = regexp.MustCompile(`(?i)model|schema|type`)
	middleFileRe = regexp.MustCompile(`(?i)middleware|hook|util`)
	uiFileRe     = regexp.MustCompile(`(?i)component|page|view`)
)

func filePriority(path string) int {
	switch {
	case entryFileRe.MatchString(path):
		return 100
	case routeFileRe.MatchString(path):
		return 80
	case svcFileRe.MatchString(path):
		return 75
	case modelFileRe.MatchString(path):
		return 70
	case middleFileRe.MatchString(path):
		return 65
	case uiFileRe.MatchString(path):
		return 60
	}
	depth := strings.Count(path, "/") + 1
	if p := 50 - depth*5; p > 10 {
		return p
	}
	return 10
}

func truncateContent(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "\n... (truncated)"
}

func formatSize(bytes int) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%dB", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1fKB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1fMB", float64(bytes)/(1024*1024))
	}
}
