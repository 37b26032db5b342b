package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strconv"
	"sync"

	"github.com/kozaktomas/facetrack/internal/recognizer"
)

// maxFrameUpload bounds the multipart form size of one uploaded frame.
const maxFrameUpload = 16 << 20

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// Guard serializes every console request onto the engine. The engine is
// built for a single execution context; the HTTP host is the one
// multi-threaded caller, so it takes one lock around whole operations
// rather than the engine growing fine-grained locking.
type Guard struct {
	mu     sync.Mutex
	engine *recognizer.Engine
}

func NewGuard(engine *recognizer.Engine) *Guard {
	return &Guard{engine: engine}
}

// Do runs fn with exclusive access to the engine.
func (g *Guard) Do(fn func(e *recognizer.Engine)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g.engine)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondEngineError maps the engine's error taxonomy onto HTTP statuses.
func respondEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, recognizer.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, recognizer.ErrCapacityExceeded),
		errors.Is(err, recognizer.ErrDuplicateName):
		status = http.StatusConflict
	case errors.Is(err, recognizer.ErrNoFaceDetected),
		errors.Is(err, recognizer.ErrSampleExtraction):
		status = http.StatusUnprocessableEntity
	}
	respondError(w, status, err.Error())
}

// decodeFrame reads the uploaded camera frame from the "frame" form file.
func decodeFrame(r *http.Request) (image.Image, error) {
	if err := r.ParseMultipartForm(maxFrameUpload); err != nil {
		return nil, fmt.Errorf("parsing upload: %w", err)
	}
	file, _, err := r.FormFile("frame")
	if err != nil {
		return nil, fmt.Errorf("missing frame upload: %w", err)
	}
	defer file.Close()

	frame, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return frame, nil
}

// parseBox reads an optional bounding box from the x/y/w/h form values. A
// missing or non-positive box comes back empty, which asks the backend to
// self-detect.
func parseBox(r *http.Request) image.Rectangle {
	x, errX := strconv.Atoi(r.FormValue("x"))
	y, errY := strconv.Atoi(r.FormValue("y"))
	w, errW := strconv.Atoi(r.FormValue("w"))
	h, errH := strconv.Atoi(r.FormValue("h"))
	if errX != nil || errY != nil || errW != nil || errH != nil || w <= 0 || h <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(x, y, x+w, y+h)
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
