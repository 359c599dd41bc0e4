package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/foodcourt/storefront/internal/interfaces/http/dto"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping() error
}

// SessionCounter reports the number of live cart sessions
type SessionCounter interface {
	Len() int
}

// HealthHandler serves the liveness probe and build information
type HealthHandler struct {
	BaseHandler
	db        Pinger
	sessions  SessionCounter
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler. db and sessions may be nil.
func NewHealthHandler(db Pinger, sessions SessionCounter) *HealthHandler {
	return &HealthHandler{db: db, sessions: sessions, startTime: time.Now()}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	dto.HealthResponse
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health reports the service and database state. An unreachable database
// answers 503 so load balancers stop routing to the instance.
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	resp := SystemInfoResponse{
		HealthResponse: dto.HealthResponse{Status: "ok", Database: "ok"},
		GoVersion:      runtime.Version(),
		Uptime:         time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.sessions != nil {
		resp.Sessions = h.sessions.Len()
	}

	status := http.StatusOK
	switch {
	case h.db == nil:
		resp.Database = "disabled"
	case h.db.Ping() != nil:
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.NewSuccessResponse(resp))
}
