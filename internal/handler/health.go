package handler

import (
	"net/http"
	"time"

	"github.com/RahulSriwastaw/backend/internal/repository"
)

// HealthHandler reports service and store health.
type HealthHandler struct {
	users   repository.UserRepository
	started time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(users repository.UserRepository) *HealthHandler {
	return &HealthHandler{users: users, started: time.Now()}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

// HandleHealth answers 200 with "ok" when the store responds to a ping,
// 503 with "degraded" when it does not. The process serving the request
// is itself proof the HTTP side is alive; the database is what varies.
//
// HTTP: GET /health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
		Uptime:   time.Since(h.started).Round(time.Second).String(),
	}

	status := http.StatusOK
	if err := h.users.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = "disconnected"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}
