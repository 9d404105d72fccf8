package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/autodevhq/autodev-backend/internal/http/response"
	"github.com/autodevhq/autodev-backend/internal/platform/apierr"
	"github.com/autodevhq/autodev-backend/internal/services"
)

type ProgressHandler struct {
	progress *services.ProgressService
}

func NewProgressHandler(progress *services.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// RecordEvent appends one interaction and echoes the stored row back with
// its assigned id and timestamp.
func (h *ProgressHandler) RecordEvent(c *gin.Context) {
	var in services.RecordEventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	in.RepoID = repoIDFromParams(c)

	event, err := h.progress.RecordEvent(c.Request.Context(), in)
	if err != nil {
		response.RespondError(c, apierr.StatusOf(err), apierr.CodeOf(err), err)
		return
	}
	c.JSON(http.StatusCreated, event.Domain())
}

func (h *ProgressHandler) GetDeveloperProgress(c *gin.Context) {
	progress, err := h.progress.GetDeveloperProgress(c.Request.Context(), repoIDFromParams(c), c.Param("userId"))
	if err != nil {
		response.RespondError(c, apierr.StatusOf(err), apierr.CodeOf(err), err)
		return
	}
	response.RespondOK(c, progress)
}

func (h *ProgressHandler) ListEvents(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			response.RespondError(c, http.StatusBadRequest, "INVALID_LIMIT", err)
			return
		}
		limit = parsed
	}

	events, err := h.progress.ListEvents(c.Request.Context(), repoIDFromParams(c), c.Param("userId"), limit)
	if err != nil {
		response.RespondError(c, apierr.StatusOf(err), apierr.CodeOf(err), err)
		return
	}
	response.RespondOK(c, gin.H{"events": events, "count": len(events)})
}

func (h *ProgressHandler) GetTeamProgress(c *gin.Context) {
	team, err := h.progress.GetTeamProgress(c.Request.Context(), repoIDFromParams(c))
	if err != nil {
		response.RespondError(c, apierr.StatusOf(err), apierr.CodeOf(err), err)
		return
	}
	response.RespondOK(c, team)
}

func (h *ProgressHandler) GetLeaderboard(c *gin.Context) {
	entries, err := h.progress.GetLeaderboard(c.Request.Context(), repoIDFromParams(c))
	if err != nil {
		response.RespondError(c, apierr.StatusOf(err), apierr.CodeOf(err), err)
		return
	}
	response.RespondOK(c, gin.H{"leaderboard": entries})
}
