package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linkfield/clientd/internal/app"
	"github.com/linkfield/clientd/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	if cfg == nil {
		return
	}

	if !cfg.Monitoring.Health.Enabled || mon == nil || mon.Health() == nil {
		r.GET("/healthz", disabledHealthHandler)
		r.GET("/healthz/detail", disabledHealthHandler)
		return
	}

	manager := mon.Health()

	r.GET("/healthz", func(c *gin.Context) {
		report := manager.Evaluate(c.Request.Context())
		status := http.StatusOK
		if !report.Success {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"success":    report.Success,
			"status":     report.Status,
			"checked_at": time.Now().UTC(),
		})
	})

	r.GET("/healthz/detail", func(c *gin.Context) {
		report := manager.Evaluate(c.Request.Context())
		writeHealthReport(c, report)
	})
}

func disabledHealthHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}

func writeHealthReport(c *gin.Context, report monitoring.HealthReport) {
	status := http.StatusOK
	if !report.Success {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checks":     report.Checks,
		"checked_at": time.Now().UTC(),
	})
}
