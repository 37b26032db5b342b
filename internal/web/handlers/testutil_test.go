package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facetrack/internal/config"
	"github.com/kozaktomas/facetrack/internal/recognizer"
	"github.com/kozaktomas/facetrack/internal/store"
)

// testGuard builds an engine over a temp directory with the pseudo-feature
// backend, wrapped in the request guard the handlers expect.
func testGuard(t *testing.T) *Guard {
	t.Helper()

	cfg := &config.Config{}
	cfg.Data.Dir = t.TempDir()
	cfg.Engine.MaxPersons = 3
	cfg.Engine.SimilarityThreshold = 0.70
	cfg.Engine.TargetSamples = 5
	cfg.Engine.SampleInterval = 10
	cfg.Engine.ThumbSize = 160

	st, err := store.New(cfg)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	engine, err := recognizer.NewEngine(cfg, recognizer.NewFallbackBackend(), st)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return NewGuard(engine)
}

// testFrame renders a deterministic gradient frame; different seeds produce
// clearly different pixel content.
func testFrame(seed int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{
				uint8((x*7 + seed*31) % 256),
				uint8((y*5 + seed*17) % 256),
				uint8((x + y + seed*53) % 256),
				255,
			})
		}
	}
	return img
}

// frameUpload builds a multipart request carrying the frame as a PNG plus the
// given form fields. The pseudo-feature backend needs an explicit box, so
// callers normally pass x/y/w/h via fields.
func frameUpload(t *testing.T, path string, frame image.Image, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("frame", "frame.png")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if err := png.Encode(part, frame); err != nil {
		t.Fatalf("failed to encode frame: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field %s: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// boxFields is the form encoding of a sample bounding box.
func boxFields(box image.Rectangle) map[string]string {
	return map[string]string{
		"x": strconv.Itoa(box.Min.X),
		"y": strconv.Itoa(box.Min.Y),
		"w": strconv.Itoa(box.Dx()),
		"h": strconv.Itoa(box.Dy()),
	}
}

// registerPerson enrolls a person through the handler and returns the new id.
func registerPerson(t *testing.T, guard *Guard, name string, seed int) string {
	t.Helper()

	handler := NewPersonsHandler(guard)
	fields := boxFields(image.Rect(40, 40, 200, 200))
	fields["name"] = name

	req := frameUpload(t, "/api/v1/persons", testFrame(seed), fields)
	recorder := httptest.NewRecorder()
	handler.Register(recorder, req)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("failed to register %s: status %d, body %s", name, recorder.Code, recorder.Body.String())
	}

	var resp struct {
		PersonID string `json:"person_id"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.PersonID == "" {
		t.Fatal("expected person_id in register response")
	}
	return resp.PersonID
}

// requestWithChiParams attaches chi URL parameters to a request.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// parseJSONResponse parses a JSON response body into the target type.
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code.
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// personID formats the ordinal id the engine assigns.
func personID(n int) string {
	return fmt.Sprintf("person_%02d", n)
}
