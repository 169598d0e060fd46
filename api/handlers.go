package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
	Error  string `json:"error,omitempty"`
}

type statsResponse struct {
	Alerts            *int64 `json:"alerts,omitempty"`
	CorrelationAlerts *int64 `json:"correlation_alerts,omitempty"`
	Rules             int    `json:"rules"`
	CatalogVersion    string `json:"catalog_version,omitempty"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
}

func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Time: time.Now().UTC().Format(time.RFC3339)}
	code := http.StatusOK

	if a.health == nil {
		resp.Status = "degraded"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := a.health.HealthCheck(ctx); err != nil {
			a.logger.Warnw("Health check failed", "error", err)
			resp.Status = "unhealthy"
			resp.Error = "store unreachable"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, resp)
}

func (a *API) getStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{UptimeSeconds: int64(time.Since(a.started).Seconds())}

	if a.catalog != nil {
		resp.Rules = a.catalog.Len()
		resp.CatalogVersion = a.catalog.Version()
	}
	if a.counter != nil {
		alerts, err := a.counter.CountAlerts(r.Context())
		if err != nil {
			a.logger.Errorw("Failed to count alerts", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to count alerts")
			return
		}
		correlations, err := a.counter.CountCorrelationAlerts(r.Context())
		if err != nil {
			a.logger.Errorw("Failed to count correlation alerts", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to count correlation alerts")
			return
		}
		resp.Alerts = &alerts
		resp.CorrelationAlerts = &correlations
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
