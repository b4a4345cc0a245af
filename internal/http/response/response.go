package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorEnvelope is the error contract shared by every endpoint:
// { "status": "error", "error": "...", "code": "..." }.
type ErrorEnvelope struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Status: "error",
		Error:  msg,
		Code:   code,
	})
}

func RespondOK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}
