// Package workflow implements the capture-station state machine that
// mediates between the field extractor, the record model, and the archive.
//
// # Architecture
//
//   - Controller: owns the single session state behind a mutex; every
//     transition funnels through an intent method.
//   - State: immutable snapshot handed to the presentation layer.
//   - Generations: async completions (extraction, append) are tagged with the
//     generation that issued them; a reset or a superseding capture bumps the
//     generation and stale results are discarded on arrival.
//
// There is no cancellation of in-flight collaborator calls — abandoning
// interest is modeled by the generation tag, matching the one-extraction,
// one-save-in-flight ordering guarantees.
package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/arsipdigital/arsipktp/internal/archive"
	"github.com/arsipdigital/arsipktp/internal/extract"
	"github.com/arsipdigital/arsipktp/internal/geo"
	"github.com/arsipdigital/arsipktp/internal/platform/apperr"
	"github.com/arsipdigital/arsipktp/internal/platform/constants"
	"github.com/arsipdigital/arsipktp/internal/platform/metrics"
	"github.com/arsipdigital/arsipktp/internal/record"
	"github.com/arsipdigital/arsipktp/pkg/pointer"
)

// Status is the lifecycle phase of the in-progress capture.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusSaving     Status = "saving"
	StatusSaved      Status = "saved"
	StatusError      Status = "error"
)

// View is the active presentation surface. Switching views is orthogonal to
// the capture lifecycle and never touches Status.
type View string

const (
	ViewScanner View = "scanner"
	ViewHistory View = "history"
)

// noticeSaveFailed is the one-shot transient message set when an archive
// append fails; the record stays editable so the operator can retry.
const noticeSaveFailed = "Gagal menyimpan ke arsip. Periksa koneksi lalu coba simpan lagi."

// State is an immutable snapshot of the workflow, safe to hand out without
// holding the controller lock.
type State struct {
	Version      uint64
	Status       Status
	View         View
	Image        string
	Record       *record.Record
	ErrorMessage string
	Notice       string
	Blockers     []apperr.FieldError
	History      []record.Record
}

// CanSubmit reports whether a submit intent would currently be accepted.
func (s State) CanSubmit() bool {
	return s.Status == StatusSuccess && len(s.Blockers) == 0
}

// Dependencies holds the collaborators injected into the controller.
type Dependencies struct {
	Extractor extract.Extractor
	Store     archive.Store
	// Cache may be nil; history then lives only in memory.
	Cache *archive.SnapshotCache
	// Metrics may be nil (tests); instruments are then skipped.
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Controller owns the single capture-station session.
//
// # Concurrency
//
// All intent methods are safe for concurrent use. At most one extraction and
// one save are in flight at a time, enforced by refusing capture/submit
// intents while the status is processing/saving.
type Controller struct {
	extractor extract.Extractor
	store     archive.Store
	cache     *archive.SnapshotCache
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// refreshGroup collapses concurrent history refreshes into one call.
	refreshGroup singleflight.Group

	mu           sync.Mutex
	status       Status
	view         View
	image        string
	current      *record.Record
	errorMessage string
	notice       string
	history      []record.Record
	coords       *geo.Coordinates
	version      uint64
	generation   uint64
}

// New constructs an idle controller on the scanner view.
func New(deps Dependencies) *Controller {
	return &Controller{
		extractor: deps.Extractor,
		store:     deps.Store,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		status:    StatusIdle,
		view:      ViewScanner,
	}
}

// # Snapshots

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	state := State{
		Version:      c.version,
		Status:       c.status,
		View:         c.view,
		Image:        c.image,
		Record:       c.current,
		ErrorMessage: c.errorMessage,
		Notice:       c.notice,
		History:      c.history,
	}
	if c.status == StatusSuccess && c.current != nil {
		state.Blockers = c.current.SubmitBlockers(c.history)
	}
	return state
}

// # Capture & Extraction

// Capture accepts an image (camera or file picker, base64 or data URL),
// enters processing immediately, and runs extraction in the background.
//
// The intent is refused while another extraction or save is in flight.
func (c *Controller) Capture(image string) (State, error) {
	if image == "" {
		return c.Snapshot(), apperr.ValidationError("Validation failed",
			apperr.FieldError{Field: "image", Message: "This field is required"})
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusProcessing || c.status == StatusSaving {
		return c.snapshotLocked(), apperr.Conflict("A capture is already being processed")
	}

	// Any previous error is cleared before the extractor call begins.
	c.errorMessage = ""
	c.notice = ""
	c.image = image
	c.current = nil
	c.status = StatusProcessing
	c.generation++
	c.version++
	if c.metrics != nil {
		c.metrics.CapturesTotal.Inc()
	}

	go c.runExtraction(c.generation, image)

	return c.snapshotLocked(), nil
}

// runExtraction resolves one capture. Runs detached from the HTTP request
// that issued the intent: the processing state has already been returned.
func (c *Controller) runExtraction(generation uint64, image string) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ExtractionTimeout)
	defer cancel()

	start := time.Now()
	candidate, err := c.extractor.Extract(ctx, image)
	if c.metrics != nil {
		c.metrics.ObserveExtraction(time.Since(start), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		c.logger.Info("stale_extraction_discarded", slog.Uint64("generation", generation))
		return
	}

	if err != nil {
		// The message is stored verbatim; the presentation shows it as-is.
		c.status = StatusError
		c.errorMessage = err.Error()
		c.version++
		c.logger.Warn("extraction_failed", slog.String("reason", err.Error()))
		return
	}

	normalized := record.NormalizeAll(candidate)
	c.current = &normalized
	c.status = StatusSuccess
	c.version++
	c.logger.Info("extraction_succeeded", slog.String("nik", normalized.NIK))
}

// ManualEntry skips extraction entirely: idle goes straight to success with
// an empty record whose nationality and validity are pre-filled.
func (c *Controller) ManualEntry() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusIdle {
		return c.snapshotLocked(), apperr.Conflict("Manual entry is only available from idle")
	}

	manual := record.Manual()
	c.current = &manual
	c.image = ""
	c.errorMessage = ""
	c.notice = ""
	c.status = StatusSuccess
	c.generation++
	c.version++

	return c.snapshotLocked(), nil
}

// # Editing

// EditField replaces the current record with a copy whose named field holds
// the normalized new value. Only valid while a record is being verified.
func (c *Controller) EditField(name, raw string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusSuccess || c.current == nil {
		return c.snapshotLocked(), apperr.Conflict("No record is being edited")
	}

	updated, ok := c.current.WithField(name, raw)
	if !ok {
		return c.snapshotLocked(), apperr.ValidationError("Validation failed",
			apperr.FieldError{Field: name, Message: "Unknown field"})
	}

	c.current = &updated
	c.version++
	return c.snapshotLocked(), nil
}

// # Submission

// Submit archives the current record. The blockers are re-checked
// defensively even though the presentation disables the affordance; an
// invalid submit changes nothing.
func (c *Controller) Submit() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusSaving {
		return c.snapshotLocked(), apperr.Conflict("A save is already in flight")
	}
	if c.status != StatusSuccess || c.current == nil {
		return c.snapshotLocked(), apperr.Conflict("No record is ready for submission")
	}

	if blockers := c.current.SubmitBlockers(c.history); len(blockers) > 0 {
		return c.snapshotLocked(), apperr.Unprocessable("Record is not ready to be archived", blockers...)
	}

	// Stamp provenance onto a copy; the edited record itself stays as-is
	// until the append settles.
	submission := *c.current
	if c.coords != nil {
		submission.Latitude = pointer.To(c.coords.Latitude)
		submission.Longitude = pointer.To(c.coords.Longitude)
	}
	submission.WaktuInput = time.Now().Format(time.RFC3339)

	c.notice = ""
	c.status = StatusSaving
	c.version++

	go c.runSave(c.generation, submission, c.image)

	return c.snapshotLocked(), nil
}

// runSave resolves one append. An append failure is a transient notice, not
// a state change away from success; the operator retries by submitting again.
func (c *Controller) runSave(generation uint64, submission record.Record, image string) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ArchiveTimeout)
	defer cancel()

	err := c.store.Append(ctx, submission, image)

	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		c.logger.Info("stale_save_discarded", slog.Uint64("generation", generation))
		return
	}

	if err != nil {
		c.status = StatusSuccess
		c.notice = noticeSaveFailed
		c.version++
		if c.metrics != nil {
			c.metrics.SaveFailures.Inc()
		}
		c.mu.Unlock()
		c.logger.Warn("archive_append_failed", slog.Any("error", err))
		return
	}

	c.status = StatusSaved
	c.version++
	if c.metrics != nil {
		c.metrics.SavesTotal.Inc()
	}
	c.mu.Unlock()
	c.logger.Info("record_archived", slog.String("nik", submission.NIK))

	// Fire-and-forget: the operator sees "saved" regardless of whether this
	// refresh lands, and a refresh failure keeps the previous history.
	go func() { _ = c.RefreshHistory(context.Background()) }()
}

// # Reset & View

// Reset returns to idle from any state, clearing image, record, error, and
// notice. History and the active view are kept.
func (c *Controller) Reset() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = StatusIdle
	c.image = ""
	c.current = nil
	c.errorMessage = ""
	c.notice = ""
	c.generation++
	c.version++

	return c.snapshotLocked()
}

// SetView switches between the scanner and history surfaces.
func (c *Controller) SetView(view View) (State, error) {
	if view != ViewScanner && view != ViewHistory {
		return c.Snapshot(), apperr.ValidationError("Validation failed",
			apperr.FieldError{Field: "view", Message: "Must be one of: scanner, history"})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = view
	c.version++
	return c.snapshotLocked(), nil
}

// # History

// RefreshHistory replaces the history with a fresh archive listing.
// Concurrent calls are collapsed into a single request. Failure leaves the
// previous history intact and is reported only to the caller (and the log).
func (c *Controller) RefreshHistory(ctx context.Context) error {
	_, err, _ := c.refreshGroup.Do("history", func() (interface{}, error) {
		listCtx, cancel := context.WithTimeout(ctx, constants.ArchiveTimeout)
		defer cancel()

		listing, err := c.store.List(listCtx)
		if err != nil {
			c.logger.Warn("history_refresh_failed", slog.Any("error", err))
			return nil, err
		}

		c.mu.Lock()
		c.history = listing
		c.version++
		c.mu.Unlock()

		if c.metrics != nil {
			c.metrics.HistoryRefreshes.Inc()
		}
		c.logger.Info("history_refreshed", slog.Int("count", len(listing)))

		if cacheErr := c.cache.Save(ctx, listing); cacheErr != nil {
			c.logger.Warn("history_snapshot_save_failed", slog.Any("error", cacheErr))
		}
		return nil, nil
	})
	return err
}

// WarmStart seeds the history from the snapshot cache, if one is available.
// Called once at startup before the first live refresh.
func (c *Controller) WarmStart(ctx context.Context) {
	snapshot := c.cache.Load(ctx)
	if len(snapshot) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) > 0 {
		// A live refresh already landed; it wins.
		return
	}
	c.history = snapshot
	c.version++
	c.logger.Info("history_warm_started", slog.Int("count", len(snapshot)))
}

// History returns the archived records as of the last successful refresh.
func (c *Controller) History() []record.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history
}

// Detail returns the archived record with the given NIK.
func (c *Controller) Detail(nik string) (record.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, archived := range c.history {
		if archived.NIK == nik {
			return archived, true
		}
	}
	return record.Record{}, false
}

// # Geolocation

// SetCoordinates stores the once-per-session capture coordinates. Called at
// most once, after the startup lookup resolves; read-only afterwards.
func (c *Controller) SetCoordinates(coords geo.Coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coords = &coords
}
