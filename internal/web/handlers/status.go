package handlers

import (
	"net/http"

	"github.com/kozaktomas/facetrack/internal/recognizer"
)

// StatusHandler reports the engine summary.
type StatusHandler struct {
	guard *Guard
}

func NewStatusHandler(guard *Guard) *StatusHandler {
	return &StatusHandler{guard: guard}
}

// StatusResponse is the engine summary plus the sampling session, if one is
// active.
type StatusResponse struct {
	recognizer.StatusInfo
	Sampling *recognizer.Sampling `json:"sampling,omitempty"`
}

// Get returns the roster summary.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	var resp StatusResponse
	h.guard.Do(func(e *recognizer.Engine) {
		resp.StatusInfo = e.Status()
		resp.Sampling = e.SamplingStatus()
	})
	respondJSON(w, http.StatusOK, resp)
}
