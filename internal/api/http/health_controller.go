package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"conncheck/agent/internal/domain"
)

// HealthReporter is the slice of the service layer the health endpoints need.
type HealthReporter interface {
	HealthCheck(ctx context.Context) error
	GetStatus() map[string]interface{}
}

type HealthController struct {
	reporter HealthReporter
	agentID  string
}

func NewHealthController(reporter HealthReporter, agentID string) *HealthController {
	return &HealthController{
		reporter: reporter,
		agentID:  agentID,
	}
}

func (h *HealthController) Health(c *gin.Context) {
	if err := h.reporter.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, domain.HealthResponse{
			Status:    domain.HealthStatusUnhealthy,
			Timestamp: time.Now(),
			AgentID:   h.agentID,
			Message:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, domain.HealthResponse{
		Status:    domain.HealthStatusHealthy,
		Timestamp: time.Now(),
		AgentID:   h.agentID,
		Message:   "Agent is running",
	})
}

func (h *HealthController) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.reporter.GetStatus())
}

func (h *HealthController) Ready(c *gin.Context) {
	if err := h.reporter.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"agent":     h.agentID,
			"message":   err.Error(),
			"timestamp": time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"agent":     h.agentID,
		"message":   "Agent is ready to run connectivity checks",
		"timestamp": time.Now(),
	})
}

func (h *HealthController) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"agent_id":  h.agentID,
		"status":    h.reporter.GetStatus(),
		"version":   "1.0.0",
		"timestamp": time.Now(),
		"components": []string{
			"run_registry",
			"tcp_probe",
			"kafka_consumer",
			"websocket_hub",
		},
	})
}
