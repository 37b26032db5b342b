package handlers

import (
	"net/http"

	"github.com/kozaktomas/facetrack/internal/recognizer"
)

// RecognizeHandler answers "who is this face" queries.
type RecognizeHandler struct {
	guard *Guard
}

func NewRecognizeHandler(guard *Guard) *RecognizeHandler {
	return &RecognizeHandler{guard: guard}
}

// RecognizeResponse reports the best match for an uploaded frame. An unknown
// face is a normal negative: person_id stays empty and display_name is
// "unknown".
type RecognizeResponse struct {
	PersonID    string  `json:"person_id,omitempty"`
	Confidence  float64 `json:"confidence"`
	DisplayName string  `json:"display_name"`
}

// Recognize matches an uploaded frame against the roster.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	frame, err := decodeFrame(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	box := parseBox(r)

	var resp RecognizeResponse
	h.guard.Do(func(e *recognizer.Engine) {
		resp.PersonID, resp.Confidence, resp.DisplayName = e.RecognizePerson(frame, box)
	})
	respondJSON(w, http.StatusOK, resp)
}
