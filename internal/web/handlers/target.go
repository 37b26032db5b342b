package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kozaktomas/facetrack/internal/recognizer"
)

// TargetHandler manages the tracking target pointer.
type TargetHandler struct {
	guard *Guard
}

func NewTargetHandler(guard *Guard) *TargetHandler {
	return &TargetHandler{guard: guard}
}

func (h *TargetHandler) respondTarget(w http.ResponseWriter, rec *recognizer.PersonRecord) {
	if rec == nil {
		respondJSON(w, http.StatusOK, map[string]any{"target": nil})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"target": toPersonResponse(rec)})
}

// Get returns the current tracking target.
func (h *TargetHandler) Get(w http.ResponseWriter, r *http.Request) {
	var rec *recognizer.PersonRecord
	h.guard.Do(func(e *recognizer.Engine) {
		rec = e.TargetPerson()
	})
	h.respondTarget(w, rec)
}

// Set points the tracking target at a person.
func (h *TargetHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PersonID string `json:"person_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PersonID == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	var setErr error
	var rec *recognizer.PersonRecord
	h.guard.Do(func(e *recognizer.Engine) {
		if setErr = e.SetTargetPerson(req.PersonID); setErr == nil {
			rec = e.TargetPerson()
		}
	})
	if setErr != nil {
		respondEngineError(w, setErr)
		return
	}
	h.respondTarget(w, rec)
}

// Clear drops the tracking target.
func (h *TargetHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.guard.Do(func(e *recognizer.Engine) {
		e.ClearTargetPerson()
	})
	h.respondTarget(w, nil)
}

// Next cycles the target forward through the roster.
func (h *TargetHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.cycle(w, func(e *recognizer.Engine) (*recognizer.PersonRecord, error) {
		return e.NextTarget()
	})
}

// Prev cycles the target backwards through the roster.
func (h *TargetHandler) Prev(w http.ResponseWriter, r *http.Request) {
	h.cycle(w, func(e *recognizer.Engine) (*recognizer.PersonRecord, error) {
		return e.PrevTarget()
	})
}

func (h *TargetHandler) cycle(w http.ResponseWriter, step func(*recognizer.Engine) (*recognizer.PersonRecord, error)) {
	var rec *recognizer.PersonRecord
	var err error
	h.guard.Do(func(e *recognizer.Engine) {
		rec, err = step(e)
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	h.respondTarget(w, rec)
}
