package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/autodevhq/autodev-backend/internal/domain"
	"github.com/autodevhq/autodev-backend/internal/jobs"
	"github.com/autodevhq/autodev-backend/internal/platform/apierr"
	"github.com/autodevhq/autodev-backend/internal/types"
)

func newAnalysisFixture(t *testing.T) (*AnalysisService, *fakeRepoRepo, *fakeRecordRepo, *fakeBlob, *fakeProvider, *jobs.Runner) {
	t.Helper()
	log := testLogger(t)
	repoRepo := newFakeRepoRepo()
	records := &fakeRecordRepo{}
	blob := newFakeBlob()
	provider := &fakeProvider{}
	runner := jobs.NewRunner(log, 4)
	svc := NewAnalysisService(log, repoRepo, records, blob, provider, runner, NewCacheService(log, newFakeKV()))
	return svc, repoRepo, records, blob, provider, runner
}

func sampleFiles() []domain.RepoFile {
	return []domain.RepoFile{
		{Path: "main.go", Content: "package main", Size: 12},
		{Path: "internal/api/handler.go", Content: "package api", Size: 11},
	}
}

func TestRunArchitectureAnalysisHappyPath(t *testing.T) {
	svc, repoRepo, records, blob, provider, runner := newAnalysisFixture(t)
	ctx := context.Background()

	archMap, err := svc.RunArchitectureAnalysis(ctx, "acme/api", sampleFiles())
	if err != nil {
		t.Fatalf("RunArchitectureAnalysis: %v", err)
	}
	if archMap == nil || len(archMap.Nodes) == 0 {
		t.Fatal("expected a populated architecture map")
	}
	runner.Wait()

	statuses := repoRepo.statusHistory()
	if len(statuses) < 2 || statuses[0] != types.AnalysisStatusAnalyzing || statuses[1] != types.AnalysisStatusCompleted {
		t.Errorf("status history = %v, want [analyzing completed ...]", statuses)
	}

	// Both persistence tiers hold the artifact.
	if !blob.has("acme/api/analysis/architecture.json") {
		t.Error("architecture blob missing")
	}
	foundArchRecord := false
	for _, kind := range records.kinds() {
		if strings.HasPrefix(kind, types.KindArchitecture+"#") {
			foundArchRecord = true
		}
	}
	if !foundArchRecord {
		t.Errorf("no versioned architecture record, kinds: %v", records.kinds())
	}

	// The cascade ran all three secondary stages.
	if provider.convCalls != 1 || provider.wtCalls != 1 || provider.envCalls != 1 {
		t.Errorf("cascade calls = conv %d wt %d env %d, want 1 each",
			provider.convCalls, provider.wtCalls, provider.envCalls)
	}
	for _, key := range []string{
		"acme/api/analysis/conventions.json",
		"acme/api/analysis/walkthroughs.json",
		"acme/api/analysis/env-setup.json",
	} {
		if !blob.has(key) {
			t.Errorf("cascade blob %s missing", key)
		}
	}
}

func TestRunArchitectureAnalysisFailureMarksFailed(t *testing.T) {
	svc, repoRepo, _, _, provider, _ := newAnalysisFixture(t)
	provider.archErr = fmt.Errorf("model unavailable")

	_, err := svc.RunArchitectureAnalysis(context.Background(), "acme/api", sampleFiles())
	if err == nil {
		t.Fatal("expected the provider failure to surface")
	}

	statuses := repoRepo.statusHistory()
	if len(statuses) == 0 || statuses[len(statuses)-1] != types.AnalysisStatusFailed {
		t.Errorf("status history = %v, want trailing failed", statuses)
	}
}

func TestRunArchitectureAnalysisFailureStatusWriteIsBestEffort(t *testing.T) {
	svc, repoRepo, _, _, provider, _ := newAnalysisFixture(t)
	provider.archErr = fmt.Errorf("model unavailable")

	// Fail the analyzing write too; the original error must still surface.
	repoRepo.failNext = true
	_, err := svc.RunArchitectureAnalysis(context.Background(), "acme/api", sampleFiles())
	if err == nil {
		t.Fatal("expected an error")
	}
	if strings.Contains(err.Error(), "model unavailable") {
		t.Fatal("analyzing-write failure should surface before the provider runs")
	}
}

func TestRunArchitectureAnalysisNoCodeIndex(t *testing.T) {
	svc, repoRepo, _, _, _, _ := newAnalysisFixture(t)

	_, err := svc.RunArchitectureAnalysis(context.Background(), "acme/api", nil)
	if err == nil || !strings.Contains(err.Error(), "no code index") {
		t.Fatalf("err = %v, want no-code-index error", err)
	}
	statuses := repoRepo.statusHistory()
	if statuses[len(statuses)-1] != types.AnalysisStatusFailed {
		t.Errorf("status history = %v, want trailing failed", statuses)
	}
}

func TestRunArchitectureAnalysisResolvesStoredIndex(t *testing.T) {
	svc, _, _, blob, provider, runner := newAnalysisFixture(t)
	ctx := context.Background()

	if err := blob.PutJSON(ctx, "acme/api/latest/index.json", sampleFiles()); err != nil {
		t.Fatalf("seed index: %v", err)
	}
	if _, err := svc.RunArchitectureAnalysis(ctx, "acme/api", nil); err != nil {
		t.Fatalf("RunArchitectureAnalysis: %v", err)
	}
	runner.Wait()
	if provider.archCalls != 1 {
		t.Errorf("archCalls = %d, want 1", provider.archCalls)
	}
}

func TestCascadeStagesFailIndependently(t *testing.T) {
	svc, repoRepo, _, blob, provider, runner := newAnalysisFixture(t)
	provider.convErr = fmt.Errorf("conventions stage down")

	if _, err := svc.RunArchitectureAnalysis(context.Background(), "acme/api", sampleFiles()); err != nil {
		t.Fatalf("primary analysis should not see cascade failures: %v", err)
	}
	runner.Wait()

	if blob.has("acme/api/analysis/conventions.json") {
		t.Error("failed stage should not have persisted an artifact")
	}
	if !blob.has("acme/api/analysis/walkthroughs.json") || !blob.has("acme/api/analysis/env-setup.json") {
		t.Error("sibling stages should complete despite the failure")
	}

	statuses := repoRepo.statusHistory()
	if statuses[len(statuses)-1] != types.AnalysisStatusCompleted {
		t.Errorf("cascade failure must not change repo status, history = %v", statuses)
	}
}

func TestGetArchitectureBlobFirst(t *testing.T) {
	svc, _, records, blob, _, _ := newAnalysisFixture(t)
	ctx := context.Background()

	fromBlob := &domain.ArchitectureMap{Summary: "from blob"}
	if err := blob.PutJSON(ctx, "acme/api/analysis/architecture.json", fromBlob); err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	got, err := svc.GetArchitecture(ctx, "acme/api")
	if err != nil {
		t.Fatalf("GetArchitecture: %v", err)
	}
	if got == nil || got.Summary != "from blob" {
		t.Fatalf("got %+v, want the blob copy", got)
	}
	if len(records.kinds()) != 0 {
		t.Error("record store should not be consulted on a blob hit")
	}
}

func TestGetArchitectureFallsBackToRecords(t *testing.T) {
	svc, _, records, blob, provider, runner := newAnalysisFixture(t)
	ctx := context.Background()

	if _, err := svc.RunArchitectureAnalysis(ctx, "acme/api", sampleFiles()); err != nil {
		t.Fatalf("RunArchitectureAnalysis: %v", err)
	}
	runner.Wait()
	_ = provider

	// Simulate blob loss; the durable record should still answer.
	if err := blob.Delete(ctx, "acme/api/analysis/architecture.json"); err != nil {
		t.Fatalf("delete blob: %v", err)
	}
	got, err := svc.GetArchitecture(ctx, "acme/api")
	if err != nil {
		t.Fatalf("GetArchitecture: %v", err)
	}
	if got == nil {
		t.Fatalf("fallback read failed, record kinds: %v", records.kinds())
	}
}

func TestGetArchitectureBlobErrorFallsThrough(t *testing.T) {
	svc, _, records, blob, _, _ := newAnalysisFixture(t)
	ctx := context.Background()

	blob.failGet["acme/api/analysis/architecture.json"] = true
	record := &types.AnalysisRecord{
		RepoID:  "acme/api",
		Kind:    types.KindArchitecture + "#2026-01-01T00:00:00.000Z",
		Content: []byte(`{"nodes":[],"edges":[],"summary":"from record"}`),
	}
	if _, err := records.Create(ctx, nil, record); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	got, err := svc.GetArchitecture(ctx, "acme/api")
	if err != nil {
		t.Fatalf("GetArchitecture: %v", err)
	}
	if got == nil || got.Summary != "from record" {
		t.Fatalf("got %+v, want record fallback", got)
	}
}

func TestGetArchitectureMissingEverywhere(t *testing.T) {
	svc, _, _, _, _, _ := newAnalysisFixture(t)
	got, err := svc.GetArchitecture(context.Background(), "acme/api")
	if err != nil || got != nil {
		t.Fatalf("got (%v, %v), want (nil, nil) miss", got, err)
	}
}

func TestIngestCodeIndex(t *testing.T) {
	svc, repoRepo, _, blob, _, _ := newAnalysisFixture(t)
	ctx := context.Background()

	err := svc.IngestCodeIndex(ctx, "acme/api", "u1", "https://github.com/acme/api", "", "abc123", sampleFiles())
	if err != nil {
		t.Fatalf("IngestCodeIndex: %v", err)
	}

	if !blob.has("acme/api/latest/index.json") {
		t.Error("latest index copy missing")
	}
	if !blob.has("acme/api/abc123/index.json") {
		t.Error("versioned index copy missing")
	}

	row, _ := repoRepo.GetByID(ctx, nil, "acme/api")
	if row == nil || row.AnalysisStatus != types.AnalysisStatusPending {
		t.Errorf("repo row = %+v, want pending", row)
	}
	if row.DefaultBranch != "main" {
		t.Errorf("defaultBranch = %q, want main default", row.DefaultBranch)
	}
	if row.FileCount != 2 {
		t.Errorf("fileCount = %d, want 2", row.FileCount)
	}

	if err := svc.IngestCodeIndex(ctx, "acme/api", "u1", "", "", "", nil); err == nil {
		t.Error("empty index must be rejected")
	}
}

func TestAnswerQuestion(t *testing.T) {
	log := testLogger(t)
	kv := newFakeKV()
	blob := newFakeBlob()
	provider := &fakeProvider{}
	svc := NewAnalysisService(log, newFakeRepoRepo(), &fakeRecordRepo{}, blob, provider, jobs.NewRunner(log, 2), NewCacheService(log, kv))
	ctx := context.Background()

	if err := blob.PutJSON(ctx, "acme/api/latest/index.json", sampleFiles()); err != nil {
		t.Fatalf("seed code index: %v", err)
	}

	wt, err := svc.AnswerQuestion(ctx, "acme/api", "How does auth work?")
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if wt == nil || wt.Question != "How does auth work?" {
		t.Fatalf("walkthrough = %+v, want answer for the question", wt)
	}
	if provider.qaCalls != 1 {
		t.Fatalf("qaCalls = %d, want 1", provider.qaCalls)
	}

	// The answer persists in the background; once it lands, a repeat of the
	// same question (modulo case and whitespace) never reaches the provider.
	if _, ok := kv.awaitSet(time.Second); !ok {
		t.Fatal("answer was never cached")
	}
	if _, err := svc.AnswerQuestion(ctx, "acme/api", "  how does AUTH work? "); err != nil {
		t.Fatalf("cached AnswerQuestion: %v", err)
	}
	if provider.qaCalls != 1 {
		t.Errorf("qaCalls = %d after cache hit, want 1", provider.qaCalls)
	}
}

func TestAnswerQuestionValidation(t *testing.T) {
	svc, _, _, _, _, _ := newAnalysisFixture(t)

	_, err := svc.AnswerQuestion(context.Background(), "acme/api", "   ")
	if err == nil {
		t.Fatal("blank question must be rejected")
	}
	if got := apierr.StatusOf(err); got != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", got)
	}
	if got := apierr.CodeOf(err); got != "MISSING_QUESTION" {
		t.Errorf("code = %q, want MISSING_QUESTION", got)
	}
}

func TestAnswerQuestionRequiresCodeIndex(t *testing.T) {
	svc, _, _, _, provider, _ := newAnalysisFixture(t)

	_, err := svc.AnswerQuestion(context.Background(), "acme/api", "where do requests enter?")
	if err == nil {
		t.Fatal("expected error without a code index")
	}
	if provider.qaCalls != 0 {
		t.Errorf("qaCalls = %d, want 0", provider.qaCalls)
	}
}

func TestAnswerQuestionProviderFailure(t *testing.T) {
	svc, _, _, blob, provider, _ := newAnalysisFixture(t)
	ctx := context.Background()

	if err := blob.PutJSON(ctx, "acme/api/latest/index.json", sampleFiles()); err != nil {
		t.Fatalf("seed code index: %v", err)
	}
	provider.answerErr = fmt.Errorf("model overloaded")

	if _, err := svc.AnswerQuestion(ctx, "acme/api", "how does auth work?"); err == nil {
		t.Fatal("provider failure must surface")
	}
}

func TestListAndGetRepos(t *testing.T) {
	svc, _, _, _, _, _ := newAnalysisFixture(t)
	ctx := context.Background()

	repos, err := svc.ListRepos(ctx, 0)
	if err != nil {
		t.Fatalf("ListRepos: %v", err)
	}
	if len(repos) != 0 {
		t.Fatalf("got %d repos before any ingest, want 0", len(repos))
	}

	if err := svc.IngestCodeIndex(ctx, "acme/api", "u1", "https://github.com/acme/api", "", "", sampleFiles()); err != nil {
		t.Fatalf("IngestCodeIndex: %v", err)
	}

	repos, err = svc.ListRepos(ctx, 0)
	if err != nil {
		t.Fatalf("ListRepos: %v", err)
	}
	if len(repos) != 1 || repos[0].RepoID != "acme/api" {
		t.Fatalf("repos = %+v, want the ingested repo", repos)
	}

	row, err := svc.GetRepo(ctx, "acme/api")
	if err != nil {
		t.Fatalf("GetRepo: %v", err)
	}
	if row == nil || row.AnalysisStatus != types.AnalysisStatusPending {
		t.Errorf("row = %+v, want pending repo", row)
	}

	missing, err := svc.GetRepo(ctx, "acme/unknown")
	if err != nil || missing != nil {
		t.Errorf("unknown repo = (%v, %v), want (nil, nil)", missing, err)
	}
}
