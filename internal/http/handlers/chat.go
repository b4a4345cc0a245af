package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/floatchat/floatchat-backend/internal/chat"
	"github.com/floatchat/floatchat-backend/internal/http/response"
	"github.com/floatchat/floatchat-backend/internal/repos"
)

type ChatHandler struct {
	service *chat.Service
}

func NewChatHandler(service *chat.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

type queryRequest struct {
	Query string `json:"query"`
}

// Query handles POST /: one natural-language question in, a structured
// answer out.
func (h *ChatHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		response.RespondError(c, http.StatusUnprocessableEntity, "empty_query", errors.New("query is required"))
		return
	}

	resp, err := h.service.Answer(c.Request.Context(), req.Query)
	if err != nil {
		var validation *repos.ValidationError
		if errors.As(err, &validation) {
			response.RespondError(c, http.StatusUnprocessableEntity, "query_rejected", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "query_failed", err)
		return
	}
	response.RespondOK(c, resp)
}
