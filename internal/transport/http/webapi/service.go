package webapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"voice-assistant-go/internal/app/assistant"
	"voice-assistant-go/internal/domain/conversation"
	"voice-assistant-go/internal/platform/logging"
)

// Service exposes the operational HTTP surface: pipeline control,
// conversation history and host diagnostics.
type Service struct {
	orch    *assistant.Orchestrator
	history *conversation.Manager
	logger  *logging.Logger
	started time.Time
}

// NewService builds the web API service.
func NewService(orch *assistant.Orchestrator, history *conversation.Manager, logger *logging.Logger) *Service {
	return &Service{
		orch:    orch,
		history: history,
		logger:  logger,
		started: time.Now(),
	}
}

// Register mounts all routes on the given group.
func (s *Service) Register(_ context.Context, group *gin.RouterGroup) {
	group.POST("/assistant/start", s.handleStart)
	group.POST("/assistant/stop", s.handleStop)
	group.GET("/assistant/status", s.handleStatus)
	group.GET("/conversation", s.handleHistory)
	group.DELETE("/conversation", s.handleClearHistory)
	group.GET("/system/info", s.handleSystemInfo)
}

func (s *Service) handleStart(c *gin.Context) {
	if err := s.orch.Start(c.Request.Context()); err != nil {
		s.logger.ErrorTag("HTTP", "start failed: %v", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (s *Service) handleStop(c *gin.Context) {
	if err := s.orch.Stop(); err != nil {
		s.logger.ErrorTag("HTTP", "stop failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (s *Service) handleStatus(c *gin.Context) {
	events := 0
	if raw := c.Query("events"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "events must be a non-negative integer"})
			return
		}
		events = parsed
	}

	c.JSON(http.StatusOK, gin.H{
		"status": s.orch.Status(),
		"events": s.orch.RecentEvents(events),
	})
}

func (s *Service) handleHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	records, err := s.history.GetHistory(c.Request.Context(), limit)
	if err != nil {
		s.logger.ErrorTag("HTTP", "history query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	summary, err := s.history.Summary(c.Request.Context())
	if err != nil {
		s.logger.ErrorTag("HTTP", "history summary failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(records),
		"summary": summary,
		"history": records,
	})
}

func (s *Service) handleClearHistory(c *gin.Context) {
	if err := s.history.Clear(c.Request.Context()); err != nil {
		s.logger.ErrorTag("HTTP", "history clear failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func (s *Service) handleSystemInfo(c *gin.Context) {
	info := gin.H{
		"uptime_seconds": time.Since(s.started).Seconds(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		info["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info["memory"] = gin.H{
			"total":        vm.Total,
			"used":         vm.Used,
			"used_percent": vm.UsedPercent,
		}
	}
	if h, err := host.Info(); err == nil {
		info["host"] = gin.H{
			"hostname": h.Hostname,
			"os":       h.OS,
			"platform": h.Platform,
			"uptime":   h.Uptime,
		}
	}

	c.JSON(http.StatusOK, info)
}
