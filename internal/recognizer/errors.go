package recognizer

import "errors"

// ErrCapacityExceeded is returned when the roster has no free slot left.
var ErrCapacityExceeded = errors.New("person capacity exceeded")

// ErrDuplicateName is returned when registering a name that is already taken.
var ErrDuplicateName = errors.New("person name already registered")

// ErrNotFound is returned when a person id does not resolve to a record.
var ErrNotFound = errors.New("person not found")

// ErrNoFaceDetected is returned when no usable face region is available,
// either because detection found nothing or no bounding box was supplied.
var ErrNoFaceDetected = errors.New("no face detected")

// ErrBackendUnavailable is returned when no matching backend could be
// constructed. This is fatal to engine construction, never to single calls.
var ErrBackendUnavailable = errors.New("no matching backend available")

// ErrPersistenceCorrupt is returned when persisted state cannot be decoded.
// A corrupt recognizer blob is recoverable (the backend restarts empty); a
// corrupt metadata file is not and surfaces to the caller.
var ErrPersistenceCorrupt = errors.New("persisted state corrupt")

// ErrSampleExtraction is returned when a face region was found but the
// backend failed to derive a feature from it. Callers treat it like
// ErrNoFaceDetected.
var ErrSampleExtraction = errors.New("sample extraction failed")
