package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facetrack/internal/recognizer"
)

// PersonsHandler manages the enrolled roster.
type PersonsHandler struct {
	guard *Guard
}

func NewPersonsHandler(guard *Guard) *PersonsHandler {
	return &PersonsHandler{guard: guard}
}

// PersonResponse is the JSON projection of one enrolled person.
type PersonResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	SampleCount int       `json:"sample_count"`
}

func toPersonResponse(rec *recognizer.PersonRecord) PersonResponse {
	return PersonResponse{
		ID:          rec.ID,
		Name:        rec.Name,
		CreatedAt:   rec.CreatedAt,
		SampleCount: rec.SampleCount,
	}
}

// List returns the roster in enrollment order.
func (h *PersonsHandler) List(w http.ResponseWriter, r *http.Request) {
	var persons []PersonResponse
	h.guard.Do(func(e *recognizer.Engine) {
		for _, rec := range e.List() {
			persons = append(persons, toPersonResponse(rec))
		}
	})
	if persons == nil {
		persons = []PersonResponse{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"persons": persons})
}

// Get returns one person.
func (h *PersonsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var rec *recognizer.PersonRecord
	h.guard.Do(func(e *recognizer.Engine) {
		rec = e.Get(id)
	})
	if rec == nil {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}
	respondJSON(w, http.StatusOK, toPersonResponse(rec))
}

// Register enrolls a new person from an uploaded frame. The multipart form
// carries the frame file, the person name and an optional x/y/w/h box.
func (h *PersonsHandler) Register(w http.ResponseWriter, r *http.Request) {
	frame, err := decodeFrame(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "missing person name")
		return
	}
	box := parseBox(r)

	var id string
	var regErr error
	h.guard.Do(func(e *recognizer.Engine) {
		id, regErr = e.RegisterPerson(frame, name, box)
	})
	if regErr != nil {
		respondEngineError(w, regErr)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"person_id": id,
		"message":   "registered " + name,
	})
}

// AddSample captures another sample for an enrolled person.
func (h *PersonsHandler) AddSample(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	frame, err := decodeFrame(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	box := parseBox(r)

	var sampleErr error
	var rec *recognizer.PersonRecord
	h.guard.Do(func(e *recognizer.Engine) {
		if sampleErr = e.AddSample(id, frame, box); sampleErr == nil {
			rec = e.Get(id)
		}
	})
	if sampleErr != nil {
		respondEngineError(w, sampleErr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"person_id":    id,
		"sample_count": rec.SampleCount,
	})
}

// Delete removes one person.
func (h *PersonsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var delErr error
	h.guard.Do(func(e *recognizer.Engine) {
		delErr = e.DeletePerson(id)
	})
	if delErr != nil {
		respondEngineError(w, delErr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"person_id": id,
	})
}

// Clear wipes the whole roster.
func (h *PersonsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	var clearErr error
	h.guard.Do(func(e *recognizer.Engine) {
		clearErr = e.ClearAll()
	})
	if clearErr != nil {
		respondEngineError(w, clearErr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Thumbnail serves the first stored sample image of a person.
func (h *PersonsHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var path string
	h.guard.Do(func(e *recognizer.Engine) {
		if paths := e.SamplePaths(id); len(paths) > 0 {
			path = paths[0]
		}
	})
	if path == "" {
		respondError(w, http.StatusNotFound, "no thumbnail stored")
		return
	}
	http.ServeFile(w, r, path)
}
