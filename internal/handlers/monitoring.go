package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/linkfield/clientd/internal/monitoring"
	"github.com/linkfield/clientd/pkg/response"
)

// MonitoringHandler surfaces the aggregated monitoring summary.
type MonitoringHandler struct {
	prometheusEnabled  bool
	prometheusEndpoint string
}

// NewMonitoringHandler constructs a monitoring handler. The endpoint hint
// tells the UI where scrapeable metrics live.
func NewMonitoringHandler(prometheusEnabled bool, prometheusEndpoint string) *MonitoringHandler {
	endpoint := strings.TrimSpace(prometheusEndpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	return &MonitoringHandler{
		prometheusEnabled:  prometheusEnabled,
		prometheusEndpoint: endpoint,
	}
}

// Summary returns counters and per-topic channel state collected since start.
func (h *MonitoringHandler) Summary(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"summary": monitoring.Snapshot(),
		"prometheus": gin.H{
			"enabled":  h.prometheusEnabled,
			"endpoint": h.prometheusEndpoint,
		},
	})
}
