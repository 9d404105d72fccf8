package domain

// ArchitectureNode is one box on the architecture map. Node ids are expected
// to be unique within a map; readers tolerate violations.
type ArchitectureNode struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Files       []string `json:"files,omitempty"`
	Description string   `json:"description,omitempty"`
}

type ArchitectureEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// ArchitectureMap is the primary analysis artifact: a module graph plus
// tech-stack metadata the provider extracted from the codebase.
type ArchitectureMap struct {
	Nodes       []ArchitectureNode `json:"nodes"`
	Edges       []ArchitectureEdge `json:"edges"`
	TechStack   map[string]string  `json:"techStack,omitempty"`
	Summary     string             `json:"summary"`
	EntryPoints []string           `json:"entryPoints,omitempty"`
	KeyPatterns []string           `json:"keyPatterns,omitempty"`
}

// RepoFile is one file of an ingested code index.
type RepoFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Size    int    `json:"size"`
}

type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Convention struct {
	Category    string   `json:"category"`
	Pattern     string   `json:"pattern"`
	Description string   `json:"description"`
	Examples    []string `json:"examples,omitempty"`
	Confidence  float64  `json:"confidence"`
}

type WalkthroughStep struct {
	StepNumber   int        `json:"stepNumber"`
	File         string     `json:"file"`
	LineRange    *LineRange `json:"lineRange,omitempty"`
	Title        string     `json:"title"`
	Explanation  string     `json:"explanation"`
	CodeSnippet  string     `json:"codeSnippet,omitempty"`
	NextStepHint string     `json:"nextStepHint,omitempty"`
}

type Walkthrough struct {
	ID          string            `json:"id"`
	RepoID      string            `json:"repoId"`
	Question    string            `json:"question"`
	Steps       []WalkthroughStep `json:"steps"`
	GeneratedAt string            `json:"generatedAt"`
}

type SetupStep struct {
	Order       int    `json:"order"`
	Title       string `json:"title"`
	Command     string `json:"command,omitempty"`
	Description string `json:"description,omitempty"`
}

type SetupConflict struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Resolution  string `json:"resolution,omitempty"`
}

type MissingPiece struct {
	Name       string `json:"name"`
	Reason     string `json:"reason,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

type EnvVariable struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Example     string `json:"example,omitempty"`
}

type DockerSupport struct {
	HasDockerfile bool   `json:"hasDockerfile"`
	HasCompose    bool   `json:"hasCompose"`
	Notes         string `json:"notes,omitempty"`
}

type EnvSetupGuide struct {
	SetupSteps         []SetupStep     `json:"setupSteps"`
	Conflicts          []SetupConflict `json:"conflicts"`
	MissingPieces      []MissingPiece  `json:"missingPieces"`
	EnvVariables       []EnvVariable   `json:"envVariables"`
	DockerSupport      DockerSupport   `json:"dockerSupport"`
	EstimatedSetupTime string          `json:"estimatedSetupTime"`
	RequiredTools      []string        `json:"requiredTools"`
	Summary            string          `json:"summary"`
}
