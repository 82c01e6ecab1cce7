package restapi

import (
	"encoding/json"
	"net/http"

	"tubeboard.app/internal/logging"
)

// HealthResponse represents the JSON response from the health endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Sessions int    `json:"sessions,omitempty"`
}

// healthHandler reports whether the board and its preferences database are
// usable. It never calls TfL so an upstream outage does not fail probes.
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if api.Application == nil || api.Board == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status: "unavailable",
			Detail: "board not initialized",
		})
		return
	}

	if api.Store != nil {
		if err := api.Store.DB().PingContext(r.Context()); err != nil {
			logging.LogError(api.Logger, "preferences DB ping failed", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(HealthResponse{
				Status: "unavailable",
				Detail: "database connection failed",
			})
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:   "ok",
		Sessions: api.Board.SessionCount(),
	})
}
