package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/autodevhq/autodev-backend/internal/clients/gcs"
	"github.com/autodevhq/autodev-backend/internal/domain"
	"github.com/autodevhq/autodev-backend/internal/jobs"
	"github.com/autodevhq/autodev-backend/internal/platform/apierr"
	"github.com/autodevhq/autodev-backend/internal/platform/logger"
	"github.com/autodevhq/autodev-backend/internal/repos"
	"github.com/autodevhq/autodev-backend/internal/types"
)

// AnalysisService coordinates the full analysis pipeline for a repo: code
// index ingestion, the primary architecture pass, the secondary analysis
// cascade, and artifact reads.
//
// Artifacts are persisted twice on every run: an insert-only versioned record
// in Postgres and a single overwritten current-copy blob per (repo, kind) for
// fast reads. The blob is the read fast path; the record store is the
// fallback and the history.
type AnalysisService struct {
	log      *logger.Logger
	repoRepo repos.RepoRepo
	records  repos.AnalysisRecordRepo
	blob     gcs.BlobStore
	provider AnalysisProvider
	runner   *jobs.Runner
	cache    *CacheService
}

func NewAnalysisService(
	log *logger.Logger,
	repoRepo repos.RepoRepo,
	records repos.AnalysisRecordRepo,
	blob gcs.BlobStore,
	provider AnalysisProvider,
	runner *jobs.Runner,
	cache *CacheService,
) *AnalysisService {
	return &AnalysisService{
		log:      log.With("service", "AnalysisService"),
		repoRepo: repoRepo,
		records:  records,
		blob:     blob,
		provider: provider,
		runner:   runner,
		cache:    cache,
	}
}

func analysisBlobKey(repoID, kind string) string {
	return fmt.Sprintf("%s/analysis/%s.json", repoID, kind)
}

func latestIndexKey(repoID string) string {
	return fmt.Sprintf("%s/latest/index.json", repoID)
}

func versionedIndexKey(repoID, commitSHA string) string {
	return fmt.Sprintf("%s/%s/index.json", repoID, commitSHA)
}

// IngestCodeIndex stores an uploaded code index (versioned by commit when a
// SHA is supplied, plus the overwritten latest copy), registers the repo as
// pending analysis, and drops any embeddings computed from the previous
// index.
func (s *AnalysisService) IngestCodeIndex(ctx context.Context, repoID, userID, repoURL, defaultBranch, commitSHA string, files []domain.RepoFile) error {
	if len(files) == 0 {
		return fmt.Errorf("code index for %s has no files", repoID)
	}

	if commitSHA != "" {
		if err := s.blob.PutJSON(ctx, versionedIndexKey(repoID, commitSHA), files); err != nil {
			return fmt.Errorf("store versioned code index: %w", err)
		}
	}
	if err := s.blob.PutJSON(ctx, latestIndexKey(repoID), files); err != nil {
		return fmt.Errorf("store latest code index: %w", err)
	}

	if defaultBranch == "" {
		defaultBranch = "main"
	}
	repo := &types.Repo{
		RepoID:         repoID,
		UserID:         userID,
		RepoURL:        repoURL,
		DefaultBranch:  defaultBranch,
		AnalysisStatus: types.AnalysisStatusPending,
		FileCount:      len(files),
	}
	if err := s.repoRepo.Upsert(ctx, nil, repo); err != nil {
		return fmt.Errorf("register repo: %w", err)
	}

	// Embeddings of the old index are stale now. Best effort.
	if err := s.blob.Delete(ctx, embeddingsBlobKey(repoID)); err != nil {
		s.log.Warn("failed to invalidate embeddings", "repo_id", repoID, "error", err.Error())
	}

	s.log.Info("code index ingested", "repo_id", repoID, "files", len(files), "commit", commitSHA)
	return nil
}

// ListRepos returns the most recently registered repos, newest first.
func (s *AnalysisService) ListRepos(ctx context.Context, limit int) ([]*types.Repo, error) {
	rows, err := s.repoRepo.ListAll(ctx, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	return rows, nil
}

// GetRepo returns a repo row, or nil when the repo was never registered.
func (s *AnalysisService) GetRepo(ctx context.Context, repoID string) (*types.Repo, error) {
	return s.repoRepo.GetByID(ctx, nil, repoID)
}

// LatestCodeIndex loads the most recently ingested file set for a repo.
func (s *AnalysisService) LatestCodeIndex(ctx context.Context, repoID string) ([]domain.RepoFile, error) {
	var files []domain.RepoFile
	found, err := s.blob.GetJSON(ctx, latestIndexKey(repoID), &files)
	if err != nil {
		return nil, fmt.Errorf("load code index: %w", err)
	}
	if !found {
		return nil, nil
	}
	return files, nil
}

// RunArchitectureAnalysis drives the primary pipeline: mark the repo
// analyzing, resolve files, run the two-pass analysis, persist the artifact
// to both tiers, mark completed, then fire the secondary cascade without
// waiting on it. A failure anywhere marks the repo failed and re-raises; the
// failure-path status write itself is best effort.
func (s *AnalysisService) RunArchitectureAnalysis(ctx context.Context, repoID string, files []domain.RepoFile) (*domain.ArchitectureMap, error) {
	repo, err := s.repoRepo.GetByID(ctx, nil, repoID)
	if err != nil {
		return nil, fmt.Errorf("look up repo: %w", err)
	}
	userID := "system"
	if repo != nil && repo.UserID != "" {
		userID = repo.UserID
	}

	archMap, err := s.runArchitecture(ctx, repoID, userID, files)
	if err != nil {
		s.log.Error("architecture analysis failed", "repo_id", repoID, "error", err.Error())
		if stErr := s.repoRepo.UpdateStatus(ctx, nil, repoID, userID, types.AnalysisStatusFailed, nil); stErr != nil {
			s.log.Warn("failed to mark repo failed", "repo_id", repoID, "error", stErr.Error())
		}
		return nil, err
	}
	return archMap, nil
}

func (s *AnalysisService) runArchitecture(ctx context.Context, repoID, userID string, files []domain.RepoFile) (*domain.ArchitectureMap, error) {
	if err := s.repoRepo.UpdateStatus(ctx, nil, repoID, userID, types.AnalysisStatusAnalyzing, nil); err != nil {
		return nil, fmt.Errorf("mark analyzing: %w", err)
	}

	if files == nil {
		stored, err := s.LatestCodeIndex(ctx, repoID)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, fmt.Errorf("no code index found for %s", repoID)
		}
		files = stored
	}

	s.log.Info("starting architecture analysis", "repo_id", repoID, "files", len(files))
	archMap, err := s.provider.AnalyzeArchitecture(ctx, files)
	if err != nil {
		return nil, err
	}
	s.log.Info("architecture analysis complete",
		"repo_id", repoID,
		"nodes", len(archMap.Nodes),
		"edges", len(archMap.Edges),
	)

	if err := s.persistArtifact(ctx, repoID, types.KindArchitecture, types.KindArchitecture, archMap); err != nil {
		return nil, err
	}

	techStack, _ := json.Marshal(archMap.TechStack)
	extra := map[string]any{
		"tech_stack": datatypes.JSON(techStack),
		"file_count": len(files),
	}
	if err := s.repoRepo.UpdateStatus(ctx, nil, repoID, userID, types.AnalysisStatusCompleted, extra); err != nil {
		// The artifact is persisted; a status bookkeeping failure should not
		// fail the analysis.
		s.log.Warn("failed to mark repo completed", "repo_id", repoID, "error", err.Error())
	}

	s.cascade(repoID, files)
	return archMap, nil
}

// cascade fires the secondary analyses as detached background tasks. Each
// stage fails independently; none of them affect the repo's analysis status.
func (s *AnalysisService) cascade(repoID string, files []domain.RepoFile) {
	s.runner.Submit("conventions:"+repoID, func(ctx context.Context) error {
		_, err := s.RunConventionAnalysis(ctx, repoID, files)
		return err
	})
	s.runner.Submit("walkthroughs:"+repoID, func(ctx context.Context) error {
		_, err := s.RunWalkthroughGeneration(ctx, repoID, files)
		return err
	})
	s.runner.Submit("env-setup:"+repoID, func(ctx context.Context) error {
		_, err := s.RunEnvSetupAnalysis(ctx, repoID, files)
		return err
	})
}

// persistArtifact writes both persistence tiers: a new versioned record and
// the overwritten current-copy blob. Kind values in the record store carry a
// timestamp suffix so each run is a distinct version; the blob key does not,
// so it always holds exactly the newest copy.
func (s *AnalysisService) persistArtifact(ctx context.Context, repoID, kind, blobKind string, content any) error {
	payload, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("marshal %s artifact: %w", kind, err)
	}

	now := time.Now().UTC()
	record := &types.AnalysisRecord{
		RepoID:      repoID,
		Kind:        fmt.Sprintf("%s#%s", kind, now.Format("2006-01-02T15:04:05.000Z")),
		Version:     1,
		Content:     datatypes.JSON(payload),
		GeneratedAt: now,
		ModelUsed:   s.provider.Model(),
	}
	if _, err := s.records.Create(ctx, nil, record); err != nil {
		return fmt.Errorf("store %s record: %w", kind, err)
	}

	if err := s.blob.PutJSON(ctx, analysisBlobKey(repoID, blobKind), content); err != nil {
		return fmt.Errorf("store %s blob: %w", kind, err)
	}
	return nil
}

// ---- Secondary stages ----

func (s *AnalysisService) RunConventionAnalysis(ctx context.Context, repoID string, files []domain.RepoFile) ([]domain.Convention, error) {
	files, err := s.resolveFiles(ctx, repoID, files)
	if err != nil {
		return nil, err
	}
	s.log.Info("starting convention detection", "repo_id", repoID)

	archMap, err := s.GetArchitecture(ctx, repoID)
	if err != nil {
		s.log.Warn("conventions running without architecture context", "repo_id", repoID, "error", err.Error())
	}
	conventions, err := s.provider.DetectConventions(ctx, archMap, files)
	if err != nil {
		return nil, err
	}
	if err := s.persistArtifact(ctx, repoID, types.KindConventions, types.KindConventions, conventions); err != nil {
		return nil, err
	}
	s.log.Info("convention detection complete", "repo_id", repoID, "conventions", len(conventions))
	return conventions, nil
}

func (s *AnalysisService) RunWalkthroughGeneration(ctx context.Context, repoID string, files []domain.RepoFile) ([]domain.Walkthrough, error) {
	files, err := s.resolveFiles(ctx, repoID, files)
	if err != nil {
		return nil, err
	}
	s.log.Info("generating walkthroughs", "repo_id", repoID)

	archMap, err := s.GetArchitecture(ctx, repoID)
	if err != nil {
		s.log.Warn("walkthroughs running without architecture context", "repo_id", repoID, "error", err.Error())
	}
	walkthroughs, err := s.provider.GenerateWalkthroughs(ctx, repoID, archMap, files)
	if err != nil {
		return nil, err
	}
	if err := s.persistArtifact(ctx, repoID, types.KindWalkthrough+"#auto", "walkthroughs", walkthroughs); err != nil {
		return nil, err
	}
	s.log.Info("walkthrough generation complete", "repo_id", repoID, "walkthroughs", len(walkthroughs))
	return walkthroughs, nil
}

func (s *AnalysisService) RunEnvSetupAnalysis(ctx context.Context, repoID string, files []domain.RepoFile) (*domain.EnvSetupGuide, error) {
	files, err := s.resolveFiles(ctx, repoID, files)
	if err != nil {
		return nil, err
	}
	s.log.Info("analyzing environment setup", "repo_id", repoID)

	guide, err := s.provider.AnalyzeEnvSetup(ctx, files)
	if err != nil {
		return nil, err
	}
	if err := s.persistArtifact(ctx, repoID, types.KindEnvSetup, types.KindEnvSetup, guide); err != nil {
		return nil, err
	}
	s.log.Info("environment analysis complete", "repo_id", repoID, "steps", len(guide.SetupSteps))
	return guide, nil
}

// AnswerQuestion generates an on-demand walkthrough answering a free-form
// developer question about the codebase. Answers are cached per normalized
// question; the architecture map is supplied as context when one exists but
// its absence does not block the answer.
func (s *AnalysisService) AnswerQuestion(ctx context.Context, repoID, question string) (*domain.Walkthrough, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apierr.BadRequest("MISSING_QUESTION", errors.New("question is required"))
	}

	return Through(ctx, s.cache, CacheNamespaceQA, repoID, question, defaultCacheTTL,
		func(ctx context.Context) (*domain.Walkthrough, error) {
			files, err := s.resolveFiles(ctx, repoID, nil)
			if err != nil {
				return nil, err
			}
			archMap, err := s.GetArchitecture(ctx, repoID)
			if err != nil {
				s.log.Warn("answering without architecture context", "repo_id", repoID, "error", err.Error())
			}
			return s.provider.AnswerWalkthrough(ctx, repoID, question, archMap, files)
		})
}

func (s *AnalysisService) resolveFiles(ctx context.Context, repoID string, files []domain.RepoFile) ([]domain.RepoFile, error) {
	if files != nil {
		return files, nil
	}
	stored, err := s.LatestCodeIndex(ctx, repoID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("no code index for %s", repoID)
	}
	return stored, nil
}

// ---- Artifact reads (blob first, record store fallback) ----

// GetArchitecture returns the current architecture map, or (nil, nil) when
// the repo has never completed an analysis.
func (s *AnalysisService) GetArchitecture(ctx context.Context, repoID string) (*domain.ArchitectureMap, error) {
	var archMap domain.ArchitectureMap
	if ok := s.readArtifact(ctx, repoID, types.KindArchitecture, types.KindArchitecture, &archMap); !ok {
		return nil, nil
	}
	return &archMap, nil
}

func (s *AnalysisService) GetConventions(ctx context.Context, repoID string) ([]domain.Convention, error) {
	var conventions []domain.Convention
	if ok := s.readArtifact(ctx, repoID, types.KindConventions, types.KindConventions, &conventions); !ok {
		return nil, nil
	}
	return conventions, nil
}

func (s *AnalysisService) GetWalkthroughs(ctx context.Context, repoID string) ([]domain.Walkthrough, error) {
	var walkthroughs []domain.Walkthrough
	if ok := s.readArtifact(ctx, repoID, types.KindWalkthrough, "walkthroughs", &walkthroughs); !ok {
		return nil, nil
	}
	return walkthroughs, nil
}

func (s *AnalysisService) GetEnvSetup(ctx context.Context, repoID string) (*domain.EnvSetupGuide, error) {
	var guide domain.EnvSetupGuide
	if ok := s.readArtifact(ctx, repoID, types.KindEnvSetup, types.KindEnvSetup, &guide); !ok {
		return nil, nil
	}
	return &guide, nil
}

// readArtifact resolves an artifact blob-first. Blob errors fall through to
// the record store instead of surfacing; a missing artifact in both tiers is
// a plain miss.
func (s *AnalysisService) readArtifact(ctx context.Context, repoID, kind, blobKind string, out any) bool {
	found, err := s.blob.GetJSON(ctx, analysisBlobKey(repoID, blobKind), out)
	if err != nil {
		s.log.Warn("blob read failed, falling back to record store",
			"repo_id", repoID, "kind", kind, "error", err.Error())
	} else if found {
		return true
	}

	record, err := s.records.GetLatestByKindPrefix(ctx, nil, repoID, kind)
	if err != nil {
		s.log.Warn("record read failed", "repo_id", repoID, "kind", kind, "error", err.Error())
		return false
	}
	if record == nil || len(record.Content) == 0 {
		return false
	}
	if err := json.Unmarshal(record.Content, out); err != nil {
		s.log.Warn("record content corrupt", "repo_id", repoID, "kind", kind, "error", err.Error())
		return false
	}
	return true
}
