package api

import (
	"net/http"

	"TaskAgent/backend/go/internal/agent"
	"TaskAgent/backend/go/internal/models"
	"TaskAgent/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
)

// API provides handlers for the synchronous submit interface.
type API struct {
	agent  *agent.Agent
	logger *logger.Logger
}

// NewAPI creates a new API handler.
func NewAPI(a *agent.Agent, logger *logger.Logger) *API {
	return &API{agent: a, logger: logger}
}

// SubmitTaskHandler runs one task and returns its result. Task-level
// failures are reported in the body with status 200.
func (a *API) SubmitTaskHandler(c *gin.Context) {
	var req agent.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": string(models.ErrInvalidField), "detail": "invalid request payload"})
		return
	}
	c.JSON(http.StatusOK, a.agent.Call(c.Request.Context(), req))
}

// HealthHandler reports identity, capabilities and queue state.
func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, a.agent.Health())
}
