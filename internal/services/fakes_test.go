package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/autodevhq/autodev-backend/internal/domain"
	"github.com/autodevhq/autodev-backend/internal/platform/logger"
	"github.com/autodevhq/autodev-backend/internal/types"
)

func testLogger(t interface{ Fatalf(string, ...any) }) *logger.Logger {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init test logger: %v", err)
	}
	return log
}

// ---- KV store fake ----

type fakeKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	failSet bool
	failGet bool
	sets    chan string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string][]byte{}, sets: make(chan string, 16)}
}

func (f *fakeKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return nil, false, fmt.Errorf("kv get unavailable")
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return fmt.Errorf("kv set unavailable")
	}
	f.data[key] = value
	select {
	case f.sets <- key:
	default:
	}
	return nil
}

func (f *fakeKV) Close() error { return nil }

func (f *fakeKV) awaitSet(timeout time.Duration) (string, bool) {
	select {
	case key := <-f.sets:
		return key, true
	case <-time.After(timeout):
		return "", false
	}
}

// ---- Blob store fake ----

type fakeBlob struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failGet  map[string]bool
	failPut  map[string]bool
	getCalls []string
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{
		objects: map[string][]byte{},
		failGet: map[string]bool{},
		failPut: map[string]bool{},
	}
}

func (f *fakeBlob) PutJSON(ctx context.Context, key string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut[key] {
		return fmt.Errorf("blob put %s unavailable", key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.objects[key] = raw
	return nil
}

func (f *fakeBlob) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls = append(f.getCalls, key)
	if f.failGet[key] {
		return false, fmt.Errorf("blob get %s unavailable", key)
	}
	raw, ok := f.objects[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (f *fakeBlob) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeBlob) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

// ---- Repo store fakes ----

type fakeRepoRepo struct {
	mu       sync.Mutex
	rows     map[string]*types.Repo
	statuses []string
	failNext bool
}

func newFakeRepoRepo() *fakeRepoRepo {
	return &fakeRepoRepo{rows: map[string]*types.Repo{}}
}

func (f *fakeRepoRepo) GetByID(ctx context.Context, tx *gorm.DB, repoID string) (*types.Repo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[repoID]
	if !ok {
		return nil, nil
	}
	clone := *row
	return &clone, nil
}

func (f *fakeRepoRepo) Upsert(ctx context.Context, tx *gorm.DB, repo *types.Repo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *repo
	f.rows[repo.RepoID] = &clone
	return nil
}

func (f *fakeRepoRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, repoID, userID, status string, extra map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return fmt.Errorf("repo store unavailable")
	}
	row, ok := f.rows[repoID]
	if !ok {
		row = &types.Repo{RepoID: repoID, UserID: userID}
		f.rows[repoID] = row
	}
	row.AnalysisStatus = status
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeRepoRepo) ListAll(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Repo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.Repo, 0, len(f.rows))
	for _, row := range f.rows {
		clone := *row
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeRepoRepo) statusHistory() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statuses...)
}

type fakeRecordRepo struct {
	mu      sync.Mutex
	records []*types.AnalysisRecord
}

func (f *fakeRecordRepo) Create(ctx context.Context, tx *gorm.DB, record *types.AnalysisRecord) (*types.AnalysisRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *record
	f.records = append(f.records, &clone)
	return &clone, nil
}

func (f *fakeRecordRepo) GetLatestByKindPrefix(ctx context.Context, tx *gorm.DB, repoID, kindPrefix string) (*types.AnalysisRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *types.AnalysisRecord
	for _, r := range f.records {
		if r.RepoID != repoID || len(r.Kind) < len(kindPrefix) || r.Kind[:len(kindPrefix)] != kindPrefix {
			continue
		}
		if latest == nil || r.GeneratedAt.After(latest.GeneratedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (f *fakeRecordRepo) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r.Kind)
	}
	return out
}

// ---- Provider fake ----

type fakeProvider struct {
	mu sync.Mutex

	archMap   *domain.ArchitectureMap
	archErr   error
	convErr   error
	wtErr     error
	envErr    error
	answerErr error
	archCalls int
	convCalls int
	wtCalls   int
	envCalls  int
	qaCalls   int
}

func (f *fakeProvider) AnalyzeArchitecture(ctx context.Context, files []domain.RepoFile) (*domain.ArchitectureMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archCalls++
	if f.archErr != nil {
		return nil, f.archErr
	}
	if f.archMap != nil {
		return f.archMap, nil
	}
	return &domain.ArchitectureMap{
		Nodes:   []domain.ArchitectureNode{{ID: "api", Label: "API Layer", Type: "module"}},
		Edges:   []domain.ArchitectureEdge{},
		Summary: "A small service.",
	}, nil
}

func (f *fakeProvider) DetectConventions(ctx context.Context, archMap *domain.ArchitectureMap, files []domain.RepoFile) ([]domain.Convention, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convCalls++
	if f.convErr != nil {
		return nil, f.convErr
	}
	return []domain.Convention{{Category: "Naming", Pattern: "snake_case tables", Confidence: 0.9}}, nil
}

func (f *fakeProvider) GenerateWalkthroughs(ctx context.Context, repoID string, archMap *domain.ArchitectureMap, files []domain.RepoFile) ([]domain.Walkthrough, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wtCalls++
	if f.wtErr != nil {
		return nil, f.wtErr
	}
	return []domain.Walkthrough{{ID: "wt-1", RepoID: repoID, Question: "How does a request flow?"}}, nil
}

func (f *fakeProvider) AnswerWalkthrough(ctx context.Context, repoID, question string, archMap *domain.ArchitectureMap, files []domain.RepoFile) (*domain.Walkthrough, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qaCalls++
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	return &domain.Walkthrough{ID: "wt-answer", RepoID: repoID, Question: question}, nil
}

func (f *fakeProvider) AnalyzeEnvSetup(ctx context.Context, files []domain.RepoFile) (*domain.EnvSetupGuide, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envCalls++
	if f.envErr != nil {
		return nil, f.envErr
	}
	return &domain.EnvSetupGuide{
		SetupSteps:         []domain.SetupStep{{Order: 1, Title: "Install Go"}},
		EstimatedSetupTime: "10 minutes",
		Summary:            "Standard Go setup.",
	}, nil
}

func (f *fakeProvider) Model() string { return "fake-model" }

// ---- AI client fake ----

type fakeAI struct {
	mu         sync.Mutex
	embedCalls int
	embedErr   error
	// vecFor lets tests pin specific embeddings per input substring.
	vecFor func(input string) []float32
}

func (f *fakeAI) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		if f.vecFor != nil {
			out[i] = f.vecFor(in)
			continue
		}
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (f *fakeAI) Model() string { return "fake-embed-model" }
