package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ifsync/internal/domain/interfaces"
)

// HealthService reports agent health over HTTP
type HealthService struct {
	mu           sync.RWMutex
	clock        interfaces.Clock
	logger       *logrus.Logger
	startTime    time.Time
	dbHealthy    bool
	dbError      error
	configured   int64
	removed      int64
	failed       int64
	backend      string
	lastCycle    time.Time
	lastCycleErr error
}

// HealthStatus represents health check status
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is the health check response body
type HealthResponse struct {
	Status     HealthStatus           `json:"status"`
	Timestamp  string                 `json:"timestamp"`
	LastCycle  string                 `json:"last_cycle,omitempty"`
	Components map[string]interface{} `json:"components"`
	Statistics map[string]interface{} `json:"statistics"`
}

func NewHealthService(clock interfaces.Clock, logger *logrus.Logger) *HealthService {
	return &HealthService{
		clock:     clock,
		logger:    logger,
		startTime: clock.Now(),
	}
}

// UpdateDBHealth records the result of the last database access
func (h *HealthService) UpdateDBHealth(healthy bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dbHealthy = healthy
	h.dbError = err
}

// RecordCycle records the end of a polling cycle
func (h *HealthService) RecordCycle(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastCycle = h.clock.Now()
	h.lastCycleErr = err
}

func (h *HealthService) IncrementConfigured() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.configured++
}

func (h *HealthService) IncrementRemoved() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removed++
}

func (h *HealthService) IncrementFailed() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.failed++
}

// SetBackend records the configuration backend in use
func (h *HealthService) SetBackend(backend string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.backend = backend
}

// ServeHTTP handles the health check endpoint
func (h *HealthService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := h.buildHealthResponse()

	statusCode := http.StatusOK
	if response.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.WithError(err).Error("failed to encode health check response")
	}
}

func (h *HealthService) buildHealthResponse() HealthResponse {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.clock.Now()

	components := map[string]interface{}{
		"database": map[string]interface{}{
			"healthy": h.dbHealthy,
			"error":   formatError(h.dbError),
		},
		"backend": map[string]interface{}{
			"name": h.backend,
		},
		"polling": map[string]interface{}{
			"error": formatError(h.lastCycleErr),
		},
	}

	statistics := map[string]interface{}{
		"configured": h.configured,
		"removed":    h.removed,
		"failed":     h.failed,
		"uptime":     formatUptime(now.Sub(h.startTime)),
	}

	response := HealthResponse{
		Status:     h.determineOverallStatus(),
		Timestamp:  now.Format(time.RFC3339),
		Components: components,
		Statistics: statistics,
	}
	if !h.lastCycle.IsZero() {
		response.LastCycle = h.lastCycle.Format(time.RFC3339)
	}
	return response
}

func (h *HealthService) determineOverallStatus() HealthStatus {
	if !h.dbHealthy {
		return StatusUnhealthy
	}

	// half or more of the records failing
	done := h.configured + h.removed
	if h.failed > 0 && float64(h.failed)/float64(done+h.failed) >= 0.5 {
		return StatusDegraded
	}
	if h.lastCycleErr != nil {
		return StatusDegraded
	}

	return StatusHealthy
}

func formatError(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func formatUptime(duration time.Duration) string {
	days := int(duration.Hours()) / 24
	hours := int(duration.Hours()) % 24
	minutes := int(duration.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd%dh%dm", days, hours, minutes)
	} else if hours > 0 {
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
