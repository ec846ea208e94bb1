package api

import (
	"net/http"
	"strconv"

	"github.com/classpower/classpower-core/internal/activity"
)

// queryInt parses an integer query parameter, falling back to a default.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

// handleListAlerts returns a page of alerts, newest first.
//
// Query parameters:
//   - limit: page size (default 50)
//   - offset: pagination offset
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	result, err := s.alerts.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("listing alerts", "error", err)
		writeInternalError(w, "failed to list alerts")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListActivity returns a page of the activity log, newest first.
//
// Query parameters:
//   - device_id: filter by device
//   - triggered_by: filter by trigger source (schedule, system, manual, pir)
//   - limit: page size (default 50)
//   - offset: pagination offset
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	filter := activity.Filter{
		DeviceID:    r.URL.Query().Get("device_id"),
		TriggeredBy: r.URL.Query().Get("triggered_by"),
		Limit:       queryInt(r, "limit", 50),
		Offset:      queryInt(r, "offset", 0),
	}

	result, err := s.activities.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing activity", "error", err)
		writeInternalError(w, "failed to list activity")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
