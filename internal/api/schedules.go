package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classpower/classpower-core/internal/schedule"
)

// scheduleResponse decorates a schedule with its next cron fire time.
// NextRun is nil for disabled schedules.
type scheduleResponse struct {
	*schedule.Schedule
	NextRun *time.Time `json:"next_run,omitempty"`
}

func (s *Server) scheduleResponse(sched *schedule.Schedule) scheduleResponse {
	resp := scheduleResponse{Schedule: sched}
	if next, ok := s.schedules.NextRun(sched.ID); ok {
		resp.NextRun = &next
	}
	return resp
}

// handleListSchedules returns all schedules with their next fire times.
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.schedules.ListSchedules(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list schedules")
		return
	}

	resp := make([]scheduleResponse, 0, len(schedules))
	for i := range schedules {
		resp = append(resp, s.scheduleResponse(&schedules[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": resp, "count": len(resp)})
}

// handleGetSchedule returns a single schedule by ID.
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sched, err := s.schedules.GetSchedule(r.Context(), id)
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			writeNotFound(w, "schedule not found")
			return
		}
		writeInternalError(w, "failed to get schedule")
		return
	}

	writeJSON(w, http.StatusOK, s.scheduleResponse(sched))
}

// handleCreateSchedule creates a new schedule and registers it with the
// cron runner when enabled.
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var sched schedule.Schedule
	if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.schedules.CreateSchedule(r.Context(), &sched); err != nil {
		switch {
		case errors.Is(err, schedule.ErrInvalidSchedule):
			writeBadRequest(w, err.Error())
		case errors.Is(err, schedule.ErrScheduleExists):
			writeConflict(w, "schedule already exists")
		default:
			s.logger.Error("creating schedule", "error", err)
			writeInternalError(w, "failed to create schedule")
		}
		return
	}

	writeJSON(w, http.StatusCreated, s.scheduleResponse(&sched))
}

// handleUpdateSchedule replaces a schedule. The cron registration follows:
// the old entry is always cancelled and a new one added only when the
// updated schedule is enabled.
func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var sched schedule.Schedule
	if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	sched.ID = id

	if err := s.schedules.UpdateSchedule(r.Context(), &sched); err != nil {
		switch {
		case errors.Is(err, schedule.ErrScheduleNotFound):
			writeNotFound(w, "schedule not found")
		case errors.Is(err, schedule.ErrInvalidSchedule):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("updating schedule", "schedule_id", id, "error", err)
			writeInternalError(w, "failed to update schedule")
		}
		return
	}

	writeJSON(w, http.StatusOK, s.scheduleResponse(&sched))
}

// handleDeleteSchedule removes a schedule and cancels its cron entry.
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.schedules.DeleteSchedule(r.Context(), id); err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			writeNotFound(w, "schedule not found")
			return
		}
		s.logger.Error("deleting schedule", "schedule_id", id, "error", err)
		writeInternalError(w, "failed to delete schedule")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}
