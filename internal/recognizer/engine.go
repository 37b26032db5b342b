package recognizer

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/facetrack/internal/config"
	"github.com/kozaktomas/facetrack/internal/store"
)

// UnknownName is the display name returned for unrecognized faces.
const UnknownName = "unknown"

// Sampling tracks an in-progress incremental enrollment session: one person
// collecting features toward a target count. At most one session is active
// at a time.
type Sampling struct {
	PersonID  string
	Collected int
	Target    int
}

// StatusInfo is the read-only roster summary exposed to callers.
type StatusInfo struct {
	MaxPersons          int     `json:"max_persons"`
	RegisteredCount     int     `json:"registered_count"`
	AvailableSlots      int     `json:"available_slots"`
	TotalSamples        int     `json:"total_samples"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	TargetPerson        string  `json:"target_person,omitempty"`
	Backend             string  `json:"backend"`
	Degraded            bool    `json:"degraded"`
	BootID              string  `json:"boot_id"`
}

// Engine orchestrates enrollment, recognition and deletion over one backend,
// one roster and one store. It is the only component that talks to either.
// The engine itself is not safe for concurrent use; a multi-threaded host
// serializes calls with a single mutex around the whole engine.
type Engine struct {
	cfg     *config.Config
	backend Backend
	roster  *Roster
	store   *store.Store

	samples  map[string][]string
	target   string
	sampling *Sampling

	// nextOrdinal is the ordinal of the next person id. It only moves
	// forward within one process run, so a deleted person's id is not
	// handed out again until the roster is cleared.
	nextOrdinal int

	degraded bool
	bootID   string
}

// NewEngine builds the engine around an already selected backend, loads the
// persisted state and reconciles the backend index against the roster.
func NewEngine(cfg *config.Config, backend Backend, st *store.Store) (*Engine, error) {
	if backend == nil {
		return nil, ErrBackendUnavailable
	}

	e := &Engine{
		cfg:         cfg,
		backend:     backend,
		roster:      NewRoster(cfg.Engine.MaxPersons),
		store:       st,
		samples:     make(map[string][]string),
		nextOrdinal: 1,
		bootID:      uuid.NewString(),
	}

	if err := e.restore(); err != nil {
		return nil, err
	}
	return e, nil
}

// restore loads metadata, then the recognizer blob, then reconciles the two.
// Metadata is authoritative: a blob that fails to load is discarded with a
// warning and the backend starts empty, leaving every person enrolled but
// unrecognizable until re-sampled.
func (e *Engine) restore() error {
	meta, err := e.store.LoadMetadata()
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return fmt.Errorf("%w: %v", ErrPersistenceCorrupt, err)
		}
		return err
	}

	for _, id := range sortedPersonIDs(meta.Persons) {
		pm := meta.Persons[id]
		rec := &PersonRecord{
			ID:           id,
			Name:         pm.Name,
			CreatedAt:    pm.CreatedAt,
			SampleCount:  pm.SampleCount,
			BackendLabel: pm.BackendLabel,
		}
		if err := e.roster.Add(rec); err != nil {
			log.Printf("skipping persisted person %s: %v", id, err)
			continue
		}
		e.samples[id] = append([]string(nil), meta.Samples[id]...)
		if ord, ok := personOrdinal(id); ok && ord >= e.nextOrdinal {
			e.nextOrdinal = ord + 1
		}
	}

	if meta.TargetPerson != "" && e.roster.Get(meta.TargetPerson) != nil {
		e.target = meta.TargetPerson
	}

	if err := e.backend.Load(e.store.BlobPath()); err != nil {
		log.Printf("recognizer state unusable, starting with an empty index: %v", err)
		e.backend.Reset()
	}

	live := make([]int64, 0, e.roster.Len())
	for _, rec := range e.roster.List() {
		live = append(live, rec.BackendLabel)
	}
	e.backend.Reconcile(live)
	return nil
}

// RegisterPerson enrolls a new person from a frame. The name must be unused
// and a roster slot must be free; the face is located by the backend when no
// box is supplied. Returns the new person id.
func (e *Engine) RegisterPerson(frame image.Image, name string, box image.Rectangle) (string, error) {
	if e.roster.Available() == 0 {
		return "", fmt.Errorf("%w: all %d slots used", ErrCapacityExceeded, e.cfg.Engine.MaxPersons)
	}
	if e.roster.ContainsName(name) {
		return "", fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	feat, region, err := e.backend.DetectAndExtract(frame, box)
	if err != nil {
		return "", err
	}

	label, err := e.backend.Enroll(feat)
	if err != nil {
		return "", fmt.Errorf("enrolling feature: %w", err)
	}

	id := fmt.Sprintf("person_%02d", e.nextOrdinal)
	rec := &PersonRecord{
		ID:           id,
		Name:         name,
		CreatedAt:    time.Now(),
		SampleCount:  1,
		BackendLabel: label,
	}
	if err := e.roster.Add(rec); err != nil {
		e.backend.Unenroll(label)
		return "", err
	}
	e.nextOrdinal++

	e.recordThumbnail(id, 1, frame, region)
	e.flush()

	log.Printf("registered %s as %s", name, id)
	return id, nil
}

// AddSample captures another feature for an already enrolled person. The
// backend keeps the most recent feature for the handle, which also re-creates
// an entry that was lost with the recognizer blob. An active sampling session
// for this person advances toward its target.
func (e *Engine) AddSample(personID string, frame image.Image, box image.Rectangle) error {
	rec := e.roster.Get(personID)
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, personID)
	}

	feat, region, err := e.backend.DetectAndExtract(frame, box)
	if err != nil {
		return err
	}
	if err := e.backend.Update(rec.BackendLabel, feat); err != nil {
		return fmt.Errorf("updating feature: %w", err)
	}

	rec.SampleCount++
	e.recordThumbnail(personID, rec.SampleCount, frame, region)

	if s := e.sampling; s != nil && s.PersonID == personID {
		s.Collected++
		if s.Collected >= s.Target {
			log.Printf("sampling complete for %s (%d samples)", personID, s.Collected)
			e.sampling = nil
		}
	}

	e.flush()
	return nil
}

// recordThumbnail stores the sample thumbnail and tracks its filename. A
// failed write only costs the UI preview, so it is logged rather than failing
// the enrollment; the filename is tracked either way to keep the sample list
// in step with the sample count.
func (e *Engine) recordThumbnail(personID string, sampleIndex int, frame image.Image, region image.Rectangle) {
	filename, err := e.store.WriteThumbnail(personID, sampleIndex, frame, region)
	if err != nil {
		log.Printf("storing thumbnail for %s: %v", personID, err)
	}
	e.samples[personID] = append(e.samples[personID], filename)
}

// RecognizePerson answers "who is this face". A missing face, an empty index
// or a best match below the similarity threshold are all normal negatives,
// reported as an empty id with the unknown display name.
func (e *Engine) RecognizePerson(frame image.Image, box image.Rectangle) (string, float64, string) {
	label, confidence, ok := e.backend.BestMatch(frame, box)
	if !ok {
		return "", 0, UnknownName
	}

	rec := e.roster.ByLabel(label)
	if rec == nil || confidence < e.cfg.Engine.SimilarityThreshold {
		return "", confidence, UnknownName
	}
	return rec.ID, confidence, rec.Name
}

// DeletePerson removes one person everywhere: backend index, roster,
// thumbnails and, when targeted, the target pointer.
func (e *Engine) DeletePerson(personID string) error {
	rec := e.roster.Get(personID)
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, personID)
	}

	if err := e.backend.Unenroll(rec.BackendLabel); err != nil {
		return fmt.Errorf("unenrolling %s: %w", personID, err)
	}
	if err := e.roster.Remove(personID); err != nil {
		return err
	}
	delete(e.samples, personID)
	if err := e.store.RemovePerson(personID); err != nil {
		log.Printf("removing thumbnails for %s: %v", personID, err)
	}
	if e.target == personID {
		e.target = ""
	}
	if s := e.sampling; s != nil && s.PersonID == personID {
		e.sampling = nil
	}

	e.flush()
	log.Printf("deleted %s (%s)", personID, rec.Name)
	return nil
}

// ClearAll wipes every person, resets the backend index and label counter,
// and restarts ordinal allocation at person_01.
func (e *Engine) ClearAll() error {
	e.backend.Reset()
	e.roster.Clear()
	e.samples = make(map[string][]string)
	e.target = ""
	e.sampling = nil
	e.nextOrdinal = 1

	if err := e.store.RemoveAllThumbnails(); err != nil {
		log.Printf("removing thumbnails: %v", err)
	}

	e.flush()
	log.Println("cleared all persons")
	return nil
}

// SetTargetPerson points the tracking target at an enrolled person.
func (e *Engine) SetTargetPerson(personID string) error {
	if e.roster.Get(personID) == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, personID)
	}
	e.target = personID
	e.flush()
	return nil
}

// ClearTargetPerson drops the tracking target.
func (e *Engine) ClearTargetPerson() {
	e.target = ""
	e.flush()
}

// TargetPerson returns the current tracking target, or nil.
func (e *Engine) TargetPerson() *PersonRecord {
	if e.target == "" {
		return nil
	}
	return e.roster.Get(e.target)
}

// NextTarget advances the tracking target through the roster in insertion
// order, wrapping at the end. With no target set it starts at the first
// person.
func (e *Engine) NextTarget() (*PersonRecord, error) {
	return e.cycleTarget(1)
}

// PrevTarget steps the tracking target backwards, wrapping at the start.
func (e *Engine) PrevTarget() (*PersonRecord, error) {
	return e.cycleTarget(-1)
}

func (e *Engine) cycleTarget(step int) (*PersonRecord, error) {
	records := e.roster.List()
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: roster is empty", ErrNotFound)
	}

	idx := -1
	for i, rec := range records {
		if rec.ID == e.target {
			idx = i
			break
		}
	}

	var next *PersonRecord
	if idx < 0 {
		if step > 0 {
			next = records[0]
		} else {
			next = records[len(records)-1]
		}
	} else {
		next = records[(idx+step+len(records))%len(records)]
	}

	e.target = next.ID
	e.flush()
	return next, nil
}

// BeginSampling starts an incremental enrollment session for one person.
func (e *Engine) BeginSampling(personID string, target int) error {
	if e.roster.Get(personID) == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, personID)
	}
	if e.sampling != nil {
		return fmt.Errorf("sampling already in progress for %s", e.sampling.PersonID)
	}
	if target <= 0 {
		target = e.cfg.Engine.TargetSamples
	}
	e.sampling = &Sampling{PersonID: personID, Target: target}
	return nil
}

// CancelSampling aborts the active sampling session, if any. Samples already
// collected stay enrolled.
func (e *Engine) CancelSampling() {
	e.sampling = nil
}

// SamplingStatus returns a copy of the active sampling session, or nil.
func (e *Engine) SamplingStatus() *Sampling {
	if e.sampling == nil {
		return nil
	}
	s := *e.sampling
	return &s
}

// List returns the enrolled persons in insertion order.
func (e *Engine) List() []*PersonRecord {
	return e.roster.List()
}

// Get returns one enrolled person, or nil.
func (e *Engine) Get(personID string) *PersonRecord {
	return e.roster.Get(personID)
}

// SamplePaths returns the stored thumbnail paths for a person, oldest first.
func (e *Engine) SamplePaths(personID string) []string {
	filenames := e.samples[personID]
	paths := make([]string, 0, len(filenames))
	for _, fn := range filenames {
		paths = append(paths, e.store.ThumbnailPath(personID, fn))
	}
	return paths
}

// Status summarizes the engine for callers.
func (e *Engine) Status() StatusInfo {
	total := 0
	for _, rec := range e.roster.List() {
		total += rec.SampleCount
	}
	return StatusInfo{
		MaxPersons:          e.cfg.Engine.MaxPersons,
		RegisteredCount:     e.roster.Len(),
		AvailableSlots:      e.roster.Available(),
		TotalSamples:        total,
		SimilarityThreshold: e.cfg.Engine.SimilarityThreshold,
		TargetPerson:        e.target,
		Backend:             e.backend.Name(),
		Degraded:            e.degraded,
		BootID:              e.bootID,
	}
}

// flush persists the current state: recognizer blob first, then metadata.
// With that ordering a crash between the two writes leaves metadata
// authoritative, and the next startup prunes backend labels it no longer
// describes. Write failures degrade the engine to in-memory operation
// instead of failing the call; a later successful flush clears the flag.
func (e *Engine) flush() {
	if err := e.backend.Save(e.store.BlobPath()); err != nil {
		e.degrade("saving recognizer state: %v", err)
		return
	}

	meta := store.NewMetadata()
	for _, rec := range e.roster.List() {
		meta.Persons[rec.ID] = store.PersonMeta{
			Name:         rec.Name,
			CreatedAt:    rec.CreatedAt,
			SampleCount:  rec.SampleCount,
			BackendLabel: rec.BackendLabel,
		}
		meta.Samples[rec.ID] = append([]string(nil), e.samples[rec.ID]...)
	}
	meta.TargetPerson = e.target

	if err := e.store.SaveMetadata(meta); err != nil {
		e.degrade("saving metadata: %v", err)
		return
	}

	if e.degraded {
		log.Println("persistence recovered, leaving in-memory-only mode")
		e.degraded = false
	}
}

func (e *Engine) degrade(format string, args ...any) {
	if !e.degraded {
		log.Printf("persistence failing, continuing in memory only: "+format, args...)
		e.degraded = true
	}
}

// personOrdinal parses the NN out of a person_NN id.
func personOrdinal(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, "person_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// sortedPersonIDs orders persisted ids so the roster keeps its enrollment
// order across restarts.
func sortedPersonIDs(persons map[string]store.PersonMeta) []string {
	ids := make([]string, 0, len(persons))
	for id := range persons {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return personIDLess(ids[i], ids[j]) })
	return ids
}

func personIDLess(a, b string) bool {
	oa, aok := personOrdinal(a)
	ob, bok := personOrdinal(b)
	if aok && bok {
		return oa < ob
	}
	return a < b
}
