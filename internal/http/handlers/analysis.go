package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/autodevhq/autodev-backend/internal/domain"
	"github.com/autodevhq/autodev-backend/internal/http/response"
	"github.com/autodevhq/autodev-backend/internal/jobs"
	"github.com/autodevhq/autodev-backend/internal/platform/apierr"
	"github.com/autodevhq/autodev-backend/internal/services"
	"github.com/autodevhq/autodev-backend/internal/types"
)

type AnalysisHandler struct {
	analysis *services.AnalysisService
	search   *services.SemanticSearchService
	runner   *jobs.Runner
}

func NewAnalysisHandler(analysis *services.AnalysisService, search *services.SemanticSearchService, runner *jobs.Runner) *AnalysisHandler {
	return &AnalysisHandler{analysis: analysis, search: search, runner: runner}
}

func repoIDFromParams(c *gin.Context) string {
	return c.Param("owner") + "/" + c.Param("repo")
}

// Trigger kicks off the analysis pipeline in the background and returns
// immediately; clients poll the artifact endpoints for results.
func (h *AnalysisHandler) Trigger(c *gin.Context) {
	repoID := repoIDFromParams(c)
	h.runner.Submit("analysis:"+repoID, func(ctx context.Context) error {
		_, err := h.analysis.RunArchitectureAnalysis(ctx, repoID, nil)
		return err
	})
	response.RespondAccepted(c, gin.H{
		"repoId": repoID,
		"status": "analyzing",
	})
}

type ingestIndexRequest struct {
	UserID        string            `json:"userId"`
	RepoURL       string            `json:"repoUrl"`
	DefaultBranch string            `json:"defaultBranch"`
	CommitSHA     string            `json:"commitSha"`
	Files         []domain.RepoFile `json:"files"`
}

// IngestIndex accepts a full code index upload for a repo.
func (h *AnalysisHandler) IngestIndex(c *gin.Context) {
	repoID := repoIDFromParams(c)

	var req ingestIndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	if len(req.Files) == 0 {
		response.RespondError(c, http.StatusBadRequest, "EMPTY_INDEX", fmt.Errorf("files must not be empty"))
		return
	}
	for i := range req.Files {
		if req.Files[i].Size == 0 {
			req.Files[i].Size = len(req.Files[i].Content)
		}
	}

	if err := h.analysis.IngestCodeIndex(c.Request.Context(), repoID, req.UserID, req.RepoURL, req.DefaultBranch, req.CommitSHA, req.Files); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "INGEST_FAILED", err)
		return
	}
	if err := h.search.InvalidateEmbeddings(c.Request.Context(), repoID); err != nil {
		// Stale embeddings self-heal on the next index write; not fatal.
		_ = err
	}
	response.RespondOK(c, gin.H{
		"repoId":    repoID,
		"fileCount": len(req.Files),
		"status":    "pending",
	})
}

// ListRepos returns the tracked repos, newest first.
func (h *AnalysisHandler) ListRepos(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			response.RespondError(c, http.StatusBadRequest, "INVALID_LIMIT", err)
			return
		}
		limit = parsed
	}

	repos, err := h.analysis.ListRepos(c.Request.Context(), limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "LIST_FAILED", err)
		return
	}
	if repos == nil {
		repos = []*types.Repo{}
	}
	response.RespondOK(c, gin.H{"repos": repos, "count": len(repos)})
}

// GetRepo returns a tracked repo's registration and analysis status.
func (h *AnalysisHandler) GetRepo(c *gin.Context) {
	repoID := repoIDFromParams(c)
	repo, err := h.analysis.GetRepo(c.Request.Context(), repoID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "READ_FAILED", err)
		return
	}
	if repo == nil {
		response.RespondError(c, http.StatusNotFound, "NOT_FOUND", fmt.Errorf("repo %s is not tracked", repoID))
		return
	}
	response.RespondOK(c, repo)
}

type askQuestionRequest struct {
	Question string `json:"question"`
}

// AskQuestion returns a generated walkthrough answering a free-form question
// about the codebase. Repeated questions are served from cache.
func (h *AnalysisHandler) AskQuestion(c *gin.Context) {
	repoID := repoIDFromParams(c)

	var req askQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}

	walkthrough, err := h.analysis.AnswerQuestion(c.Request.Context(), repoID, req.Question)
	if err != nil {
		code := apierr.CodeOf(err)
		if code == "" {
			code = "QA_FAILED"
		}
		response.RespondError(c, apierr.StatusOf(err), code, err)
		return
	}
	response.RespondOK(c, walkthrough)
}

func (h *AnalysisHandler) GetArchitecture(c *gin.Context) {
	repoID := repoIDFromParams(c)
	archMap, err := h.analysis.GetArchitecture(c.Request.Context(), repoID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "READ_FAILED", err)
		return
	}
	if archMap == nil {
		response.RespondError(c, http.StatusNotFound, "NOT_FOUND", fmt.Errorf("no architecture analysis for %s", repoID))
		return
	}
	response.RespondOK(c, archMap)
}

func (h *AnalysisHandler) GetConventions(c *gin.Context) {
	repoID := repoIDFromParams(c)
	conventions, err := h.analysis.GetConventions(c.Request.Context(), repoID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "READ_FAILED", err)
		return
	}
	if conventions == nil {
		response.RespondError(c, http.StatusNotFound, "NOT_FOUND", fmt.Errorf("no conventions analysis for %s", repoID))
		return
	}
	response.RespondOK(c, conventions)
}

func (h *AnalysisHandler) GetWalkthroughs(c *gin.Context) {
	repoID := repoIDFromParams(c)
	walkthroughs, err := h.analysis.GetWalkthroughs(c.Request.Context(), repoID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "READ_FAILED", err)
		return
	}
	if walkthroughs == nil {
		response.RespondError(c, http.StatusNotFound, "NOT_FOUND", fmt.Errorf("no walkthroughs for %s", repoID))
		return
	}
	response.RespondOK(c, walkthroughs)
}

func (h *AnalysisHandler) GetEnvSetup(c *gin.Context) {
	repoID := repoIDFromParams(c)
	guide, err := h.analysis.GetEnvSetup(c.Request.Context(), repoID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "READ_FAILED", err)
		return
	}
	if guide == nil {
		response.RespondError(c, http.StatusNotFound, "NOT_FOUND", fmt.Errorf("no environment setup guide for %s", repoID))
		return
	}
	response.RespondOK(c, guide)
}
