package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/autodevhq/autodev-backend/internal/http/response"
	"github.com/autodevhq/autodev-backend/internal/services"
)

type SearchHandler struct {
	search *services.SemanticSearchService
}

func NewSearchHandler(search *services.SemanticSearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		response.RespondError(c, http.StatusBadRequest, "MISSING_QUERY", fmt.Errorf("query is required"))
		return
	}

	results, err := h.search.Search(c.Request.Context(), repoIDFromParams(c), req.Query, req.TopK)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "SEARCH_FAILED", err)
		return
	}
	response.RespondOK(c, gin.H{"results": results, "count": len(results)})
}
