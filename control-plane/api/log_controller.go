package api

import (
	"net/http"

	"github.com/QTuan97/HC-API-Plat/control-plane/logger"
	"github.com/QTuan97/HC-API-Plat/control-plane/service"
	"github.com/QTuan97/HC-API-Plat/control-plane/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LogController handles HTTP requests for recorded request logs.
type LogController struct {
	logService *service.LogService
}

// NewLogController creates a new LogController.
func NewLogController(logService *service.LogService) *LogController {
	return &LogController{logService: logService}
}

// List handles GET /api/logs?page=&limit=
func (lc *LogController) List(c *gin.Context) {
	page, ok := intQuery(c, "page")
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}

	result, err := lc.logService.ListLogs(c.Request.Context(), page, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Record handles POST /api/logs, the ingest path used by the mock engine.
func (lc *LogController) Record(c *gin.Context) {
	var entry storage.LogEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		badBody(c, err)
		return
	}

	if err := lc.logService.RecordLog(c.Request.Context(), &entry); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// Clear handles DELETE /api/logs
func (lc *LogController) Clear(c *gin.Context) {
	n, err := lc.logService.ClearLogs(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	logger.WithComponent("api.log").Info("Logs cleared", zap.Int("deleted", n))
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
