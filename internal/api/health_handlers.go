package api

import (
	"log/slog"
	"net/http"
	"time"

	"vodforge/internal/observability/logging"
)

type healthResponse struct {
	Status        string `json:"status"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

// HealthHandler reports process liveness and basic runtime facts.
type HealthHandler struct {
	Environment string
	StartedAt   time.Time
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Environment:   h.Environment,
		UptimeSeconds: int64(time.Since(h.StartedAt).Seconds()),
	})
}

func loggerFor(r *http.Request, fallback *slog.Logger) *slog.Logger {
	if logger := logging.LoggerFromContext(r.Context()); logger != nil {
		return logger
	}
	if fallback != nil {
		return logging.WithContext(r.Context(), fallback)
	}
	return slog.Default()
}
