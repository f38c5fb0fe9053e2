package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/challenges/scheduler/internal/executor"
)

// CronHandler is the trigger surface for the batch executor. One POST runs
// one bounded batch and reports the per-schedule outcomes.
type CronHandler struct {
	executor *executor.Executor
	logger   *zap.Logger
}

func NewCronHandler(exec *executor.Executor, logger *zap.Logger) *CronHandler {
	return &CronHandler{executor: exec, logger: logger}
}

func (h *CronHandler) Execute(c *gin.Context) {
	summary, err := h.executor.Run(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
