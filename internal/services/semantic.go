package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/autodevhq/autodev-backend/internal/clients/gcs"
	"github.com/autodevhq/autodev-backend/internal/domain"
	"github.com/autodevhq/autodev-backend/internal/platform/logger"
)

const (
	chunkSize    = 2000
	chunkOverlap = 200

	// Index-wide limits keep embedding cost bounded on large repos.
	minEmbedFileChars = 50
	maxEmbedFileChars = 50_000
	maxEmbedFiles     = 100

	embedBatchSize = 5
	defaultTopK    = 10
	maxEmbedInput  = 8192
	embedWorkers   = 4
)

// SemanticSearchService ranks code chunks against natural-language queries by
// embedding cosine similarity. Chunk embeddings are computed once per code
// index and cached as a blob next to the analysis artifacts.
type SemanticSearchService struct {
	log      *logger.Logger
	blob     gcs.BlobStore
	ai       AIClient
	analysis *AnalysisService
	cache    *CacheService
}

func NewSemanticSearchService(log *logger.Logger, blob gcs.BlobStore, ai AIClient, analysis *AnalysisService, cache *CacheService) *SemanticSearchService {
	return &SemanticSearchService{
		log:      log.With("service", "SemanticSearchService"),
		blob:     blob,
		ai:       ai,
		analysis: analysis,
		cache:    cache,
	}
}

func embeddingsBlobKey(repoID string) string {
	return fmt.Sprintf("%s/analysis/embeddings.json", repoID)
}

// Search embeds the query, resolves the repo's chunk embeddings, and returns
// the topK highest-scoring chunks with at most one result per file. The
// query embedding itself is cached since onboarding questions repeat.
func (s *SemanticSearchService) Search(ctx context.Context, repoID, query string, topK int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []domain.SearchResult{}, nil
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	queryVec, err := Through(ctx, s.cache, CacheNamespaceEmbeddingQuery, repoID, query, 0,
		func(ctx context.Context) ([]float32, error) {
			vecs, err := s.ai.Embed(ctx, []string{clip(query, maxEmbedInput)})
			if err != nil {
				return nil, err
			}
			return vecs[0], nil
		})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := s.getOrCreateEmbeddings(ctx, repoID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		s.log.Warn("no embeddings available", "repo_id", repoID)
		return []domain.SearchResult{}, nil
	}

	results := rankChunks(queryVec, chunks, topK)
	s.log.Info("semantic search complete", "repo_id", repoID, "results", len(results))
	return results, nil
}

// InvalidateEmbeddings drops the cached chunk embeddings so the next search
// recomputes them from the current code index.
func (s *SemanticSearchService) InvalidateEmbeddings(ctx context.Context, repoID string) error {
	return s.blob.Delete(ctx, embeddingsBlobKey(repoID))
}

func (s *SemanticSearchService) getOrCreateEmbeddings(ctx context.Context, repoID string) ([]domain.EmbeddedChunk, error) {
	var cached []domain.EmbeddedChunk
	found, err := s.blob.GetJSON(ctx, embeddingsBlobKey(repoID), &cached)
	if err != nil {
		s.log.Warn("cached embeddings unreadable, regenerating", "repo_id", repoID, "error", err.Error())
	} else if found && len(cached) > 0 {
		s.log.Debug("using cached embeddings", "repo_id", repoID, "chunks", len(cached))
		return cached, nil
	}

	files, err := s.analysis.LatestCodeIndex(ctx, repoID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	codeFiles := filterEmbeddable(files)
	s.log.Info("generating embeddings", "repo_id", repoID, "files", len(codeFiles))

	chunks, err := s.embedFiles(ctx, codeFiles)
	if err != nil {
		return nil, err
	}

	if err := s.blob.PutJSON(ctx, embeddingsBlobKey(repoID), chunks); err != nil {
		// The next search regenerates; losing the cache is not fatal.
		s.log.Warn("failed to cache embeddings", "repo_id", repoID, "error", err.Error())
	}
	return chunks, nil
}

// embedFiles chunks each file and embeds the chunks in small batches, a few
// files in flight at a time. A failed file is skipped, not fatal.
func (s *SemanticSearchService) embedFiles(ctx context.Context, files []domain.RepoFile) ([]domain.EmbeddedChunk, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)

	perFile := make([][]domain.EmbeddedChunk, len(files))
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			pieces := chunkText(f.Content, chunkSize, chunkOverlap)
			chunks := make([]domain.EmbeddedChunk, 0, len(pieces))
			for start := 0; start < len(pieces); start += embedBatchSize {
				end := start + embedBatchSize
				if end > len(pieces) {
					end = len(pieces)
				}
				inputs := make([]string, 0, end-start)
				for _, piece := range pieces[start:end] {
					inputs = append(inputs, clip(fmt.Sprintf("File: %s\n\n%s", f.Path, piece), maxEmbedInput))
				}
				vecs, err := s.ai.Embed(gctx, inputs)
				if err != nil {
					s.log.Error("failed to embed file", "path", f.Path, "error", err.Error())
					return nil
				}
				for j, vec := range vecs {
					chunks = append(chunks, domain.EmbeddedChunk{
						Path:       f.Path,
						Content:    pieces[start+j],
						Embedding:  vec,
						ChunkIndex: start + j,
					})
				}
			}
			perFile[i] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.EmbeddedChunk
	for _, chunks := range perFile {
		all = append(all, chunks...)
	}
	s.log.Info("embeddings generated", "chunks", len(all), "files", len(files))
	return all, nil
}

func filterEmbeddable(files []domain.RepoFile) []domain.RepoFile {
	out := make([]domain.RepoFile, 0, len(files))
	for _, f := range files {
		if len(f.Content) <= minEmbedFileChars || len(f.Content) >= maxEmbedFileChars {
			continue
		}
		if strings.Contains(f.Path, "node_modules") ||
			strings.HasSuffix(f.Path, ".lock") ||
			strings.HasSuffix(f.Path, ".min.js") {
			continue
		}
		out = append(out, f)
		if len(out) >= maxEmbedFiles {
			break
		}
	}
	return out
}

// chunkText splits content into overlapping windows so a match near a chunk
// boundary is still visible from at least one chunk.
func chunkText(content string, size, overlap int) []string {
	if content == "" {
		return nil
	}
	var chunks []string
	start := 0
	for start < len(content) {
		end := start + size
		if end >= len(content) {
			chunks = append(chunks, content[start:])
			break
		}
		chunks = append(chunks, content[start:end])
		start = end - overlap
	}
	return chunks
}

func rankChunks(query []float32, chunks []domain.EmbeddedChunk, topK int) []domain.SearchResult {
	scored := make([]domain.SearchResult, 0, len(chunks))
	for _, c := range chunks {
		scored = append(scored, domain.SearchResult{
			Path:    c.Path,
			Content: c.Content,
			Score:   cosineSimilarity(query, c.Embedding),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	// One result per file: keep only the best chunk.
	seen := make(map[string]struct{})
	results := make([]domain.SearchResult, 0, topK)
	for _, item := range scored {
		if len(results) >= topK {
			break
		}
		if _, dup := seen[item.Path]; dup {
			continue
		}
		seen[item.Path] = struct{}{}
		results = append(results, item)
	}
	return results
}

func clip(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// cosineSimilarity returns 0 for mismatched lengths or zero-norm vectors
// rather than propagating NaN into sort comparisons.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
