package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/KOSOTSU-dev/tel-plus/internal/database"
)

type HealthHandler struct {
	db    *database.PostgresDB
	redis *database.RedisDB
}

func NewHealthHandler(db *database.PostgresDB, redisDB *database.RedisDB) *HealthHandler {
	return &HealthHandler{db: db, redis: redisDB}
}

type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	components := map[string]string{"database": "ok", "redis": "ok"}
	healthy := true

	if err := h.db.Health(ctx); err != nil {
		components["database"] = err.Error()
		healthy = false
	}
	if err := h.redis.Health(ctx); err != nil {
		components["redis"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	response := HealthResponse{Status: "ok", Components: components}
	if !healthy {
		status = http.StatusServiceUnavailable
		response.Status = "degraded"
	}
	writeJSON(w, status, response)
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	h.Health(w, r)
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
