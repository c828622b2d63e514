package workflow_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arsipdigital/arsipktp/internal/geo"
	"github.com/arsipdigital/arsipktp/internal/platform/apperr"
	"github.com/arsipdigital/arsipktp/internal/record"
	"github.com/arsipdigital/arsipktp/internal/workflow"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

/*
fakeExtractor returns a canned record or error. When release is non-nil the
call blocks until the channel is closed, which lets tests hold the controller
in the processing state.
*/
type fakeExtractor struct {
	mu      sync.Mutex
	calls   int
	result  record.Record
	err     error
	release chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, imageBase64 string) (record.Record, error) {
	f.mu.Lock()
	f.calls++
	result, err := f.result, f.err
	release := f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return record.Record{}, ctx.Err()
		}
	}
	return result, err
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu        sync.Mutex
	appended  []record.Record
	appendErr error
	listing   []record.Record
	listErr   error
	listCalls int
}

func (f *fakeStore) List(ctx context.Context) ([]record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listing, nil
}

func (f *fakeStore) Append(ctx context.Context, rec record.Record, imageBase64 string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, rec)
	return nil
}

func (f *fakeStore) appendedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appended)
}

func (f *fakeStore) lastAppended(t *testing.T) record.Record {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.appended)
	return f.appended[len(f.appended)-1]
}

func (f *fakeStore) setAppendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendErr = err
}

func newController(extractor *fakeExtractor, store *fakeStore) *workflow.Controller {
	return workflow.New(workflow.Dependencies{
		Extractor: extractor,
		Store:     store,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func completeRecord() record.Record {
	return record.Record{
		NIK:              "3273010101550001",
		Nama:             "BUDI SANTOSO",
		TempatLahir:      "BANDUNG",
		TanggalLahir:     "1955-01-01",
		JenisKelamin:     "LAKI-LAKI",
		Alamat:           "JL. MERDEKA NO. 1",
		RT:               "001",
		RW:               "002",
		KelDesa:          "CITARUM",
		Kecamatan:        "BANDUNG WETAN",
		KotaKabupaten:    "KOTA BANDUNG",
		Agama:            "ISLAM",
		StatusPerkawinan: "KAWIN",
		Pekerjaan:        "PENSIUNAN",
		Kewarganegaraan:  "WNI",
		BerlakuHingga:    "SEUMUR HIDUP",
	}
}

func waitForStatus(t *testing.T, controller *workflow.Controller, want workflow.Status) workflow.State {
	t.Helper()
	require.Eventually(t, func() bool {
		return controller.Snapshot().Status == want
	}, waitFor, tick, "controller never reached status %q", want)
	return controller.Snapshot()
}

/*
TestCapture_Success walks the happy extraction path and checks that the
extractor answer is normalized before it lands in the form.
*/
func TestCapture_Success(t *testing.T) {
	raw := completeRecord()
	raw.Nama = "budi santoso"
	raw.NIK = "3273-0101-0155-0001"
	extractor := &fakeExtractor{result: raw}
	controller := newController(extractor, &fakeStore{})

	state, err := controller.Capture("aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusProcessing, state.Status)
	assert.NotEmpty(t, state.Image)
	assert.Nil(t, state.Record)

	state = waitForStatus(t, controller, workflow.StatusSuccess)
	require.NotNil(t, state.Record)
	assert.Equal(t, "BUDI SANTOSO", state.Record.Nama)
	assert.Equal(t, "3273010101550001", state.Record.NIK)
	assert.Empty(t, state.Blockers)
	assert.True(t, state.CanSubmit())
}

func TestCapture_RequiresImage(t *testing.T) {
	controller := newController(&fakeExtractor{}, &fakeStore{})

	_, err := controller.Capture("")

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 400, appError.HTTPStatus)
	assert.Equal(t, workflow.StatusIdle, controller.Snapshot().Status)
}

/*
TestCapture_WhileProcessing holds the extractor open and checks that a second
capture is refused instead of queued.
*/
func TestCapture_WhileProcessing(t *testing.T) {
	extractor := &fakeExtractor{result: completeRecord(), release: make(chan struct{})}
	controller := newController(extractor, &fakeStore{})

	_, err := controller.Capture("Zmlyc3Q=")
	require.NoError(t, err)

	_, err = controller.Capture("c2Vjb25k")
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 409, appError.HTTPStatus)

	close(extractor.release)
	waitForStatus(t, controller, workflow.StatusSuccess)
	assert.Equal(t, 1, extractor.callCount())
}

/*
TestCapture_ExtractionFailure stores the extractor message verbatim and
clears it again on reset.
*/
func TestCapture_ExtractionFailure(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New("LIMIT_AI: Kuota AI harian telah habis.")}
	controller := newController(extractor, &fakeStore{})

	_, err := controller.Capture("aGVsbG8=")
	require.NoError(t, err)

	state := waitForStatus(t, controller, workflow.StatusError)
	assert.Equal(t, "LIMIT_AI: Kuota AI harian telah habis.", state.ErrorMessage)
	assert.Nil(t, state.Record)
	assert.NotEmpty(t, state.Image, "the captured image is retained through a failed extraction")
	assert.False(t, state.CanSubmit())

	state = controller.Reset()
	assert.Equal(t, workflow.StatusIdle, state.Status)
	assert.Empty(t, state.ErrorMessage)
	assert.Empty(t, state.Image)
}

/*
TestCapture_AfterError verifies a fresh capture clears a previous failure
before the extractor runs again.
*/
func TestCapture_AfterError(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New("upstream down")}
	controller := newController(extractor, &fakeStore{})

	_, err := controller.Capture("Zmlyc3Q=")
	require.NoError(t, err)
	waitForStatus(t, controller, workflow.StatusError)

	extractor.mu.Lock()
	extractor.err = nil
	extractor.result = completeRecord()
	extractor.mu.Unlock()

	state, err := controller.Capture("c2Vjb25k")
	require.NoError(t, err)
	assert.Empty(t, state.ErrorMessage)

	waitForStatus(t, controller, workflow.StatusSuccess)
}

func TestManualEntry(t *testing.T) {
	controller := newController(&fakeExtractor{}, &fakeStore{})

	state, err := controller.ManualEntry()
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSuccess, state.Status)
	require.NotNil(t, state.Record)
	assert.Equal(t, "WNI", state.Record.Kewarganegaraan)
	assert.Equal(t, "SEUMUR HIDUP", state.Record.BerlakuHingga)
	assert.Empty(t, state.Record.NIK)
	assert.False(t, state.CanSubmit(), "empty required fields must block submission")

	_, err = controller.ManualEntry()
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 409, appError.HTTPStatus)
}

func TestEditField(t *testing.T) {
	controller := newController(&fakeExtractor{}, &fakeStore{})
	_, err := controller.ManualEntry()
	require.NoError(t, err)

	state, err := controller.EditField("nama", "siti aminah")
	require.NoError(t, err)
	assert.Equal(t, "SITI AMINAH", state.Record.Nama, "text edits are uppercased")

	state, err = controller.EditField("nik", "32-73 0101x0155=0001999")
	require.NoError(t, err)
	assert.Equal(t, "3273010101550001", state.Record.NIK, "digit fields are stripped and capped")

	_, err = controller.EditField("nomorSepatu", "42")
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 400, appError.HTTPStatus)
}

func TestEditField_RequiresActiveRecord(t *testing.T) {
	controller := newController(&fakeExtractor{}, &fakeStore{})

	_, err := controller.EditField("nama", "BUDI")

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 409, appError.HTTPStatus)
}

/*
TestSubmit_Success archives a complete record, stamps provenance, and kicks
off a history refresh once the append lands.
*/
func TestSubmit_Success(t *testing.T) {
	extractor := &fakeExtractor{result: completeRecord()}
	store := &fakeStore{listing: []record.Record{completeRecord()}}
	controller := newController(extractor, store)
	controller.SetCoordinates(geo.Coordinates{Latitude: -6.914744, Longitude: 107.609810})

	_, err := controller.Capture("aGVsbG8=")
	require.NoError(t, err)
	waitForStatus(t, controller, workflow.StatusSuccess)

	state, err := controller.Submit()
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSaving, state.Status)

	waitForStatus(t, controller, workflow.StatusSaved)

	archived := store.lastAppended(t)
	assert.Equal(t, "3273010101550001", archived.NIK)
	require.NotNil(t, archived.Latitude)
	assert.InDelta(t, -6.914744, *archived.Latitude, 1e-9)
	require.NotNil(t, archived.Longitude)
	assert.InDelta(t, 107.609810, *archived.Longitude, 1e-9)
	require.NotEmpty(t, archived.WaktuInput)
	_, parseErr := time.Parse(time.RFC3339, archived.WaktuInput)
	assert.NoError(t, parseErr)

	require.Eventually(t, func() bool {
		return len(controller.History()) == 1
	}, waitFor, tick, "save should trigger a history refresh")
}

/*
TestSubmit_BlockedByShortNIK keeps the record on screen and reports the
invalid field instead of archiving.
*/
func TestSubmit_BlockedByShortNIK(t *testing.T) {
	extractor := &fakeExtractor{result: completeRecord()}
	store := &fakeStore{}
	controller := newController(extractor, store)

	_, err := controller.Capture("aGVsbG8=")
	require.NoError(t, err)
	waitForStatus(t, controller, workflow.StatusSuccess)

	_, err = controller.EditField("nik", "123")
	require.NoError(t, err)

	state := controller.Snapshot()
	assert.False(t, state.CanSubmit())

	_, err = controller.Submit()
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 422, appError.HTTPStatus)
	require.NotEmpty(t, appError.Details)
	assert.Equal(t, "nik", appError.Details[0].Field)

	assert.Equal(t, workflow.StatusSuccess, controller.Snapshot().Status)
	assert.Zero(t, store.appendedCount())
}

/*
TestSubmit_BlockedByDuplicate refuses a NIK that already exists in the
archive history.
*/
func TestSubmit_BlockedByDuplicate(t *testing.T) {
	extractor := &fakeExtractor{result: completeRecord()}
	store := &fakeStore{listing: []record.Record{completeRecord()}}
	controller := newController(extractor, store)

	require.NoError(t, controller.RefreshHistory(context.Background()))

	_, err := controller.Capture("aGVsbG8=")
	require.NoError(t, err)
	waitForStatus(t, controller, workflow.StatusSuccess)

	state := controller.Snapshot()
	assert.False(t, state.CanSubmit())
	require.NotEmpty(t, state.Blockers)
	assert.Equal(t, "nik", state.Blockers[0].Field)

	_, err = controller.Submit()
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 422, appError.HTTPStatus)
	assert.Zero(t, store.appendedCount())
}

/*
TestEditField_IntoDuplicate flips the duplicate blocker on as soon as the NIK
is edited to match an archived record, and off again when edited away.
*/
func TestEditField_IntoDuplicate(t *testing.T) {
	taken := completeRecord()
	taken.NIK = "9999999999999999"
	extractor := &fakeExtractor{result: completeRecord()}
	store := &fakeStore{listing: []record.Record{taken}}
	controller := newController(extractor, store)
	require.NoError(t, controller.RefreshHistory(context.Background()))

	_, err := controller.Capture("aGVsbG8=")
	require.NoError(t, err)
	state := waitForStatus(t, controller, workflow.StatusSuccess)
	require.True(t, state.CanSubmit())

	state, err = controller.EditField("nik", "9999999999999999")
	require.NoError(t, err)
	assert.False(t, state.CanSubmit())
	require.NotEmpty(t, state.Blockers)
	assert.Equal(t, "nik", state.Blockers[0].Field)

	state, err = controller.EditField("nik", "8888888888888888")
	require.NoError(t, err)
	assert.True(t, state.CanSubmit())
}

/*
TestSubmit_AppendFailure leaves the record editable with a retry notice, and
a second submit after the outage succeeds.
*/
func TestSubmit_AppendFailure(t *testing.T) {
	extractor := &fakeExtractor{result: completeRecord()}
	store := &fakeStore{appendErr: errors.New("archive unreachable")}
	controller := newController(extractor, store)

	_, err := controller.Capture("aGVsbG8=")
	require.NoError(t, err)
	waitForStatus(t, controller, workflow.StatusSuccess)

	_, err = controller.Submit()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		state := controller.Snapshot()
		return state.Status == workflow.StatusSuccess && state.Notice != ""
	}, waitFor, tick, "failed append should return to success with a notice")
	assert.Equal(t, "Gagal menyimpan ke arsip. Periksa koneksi lalu coba simpan lagi.",
		controller.Snapshot().Notice)

	store.setAppendErr(nil)

	state, err := controller.Submit()
	require.NoError(t, err)
	assert.Empty(t, state.Notice, "retrying clears the notice")
	waitForStatus(t, controller, workflow.StatusSaved)
	assert.Equal(t, 1, store.appendedCount())
}

/*
TestReset_DiscardsInFlightExtraction resets while the extractor is still
running and checks the late answer never surfaces.
*/
func TestReset_DiscardsInFlightExtraction(t *testing.T) {
	extractor := &fakeExtractor{result: completeRecord(), release: make(chan struct{})}
	controller := newController(extractor, &fakeStore{})

	_, err := controller.Capture("aGVsbG8=")
	require.NoError(t, err)

	state := controller.Reset()
	assert.Equal(t, workflow.StatusIdle, state.Status)

	close(extractor.release)

	assert.Never(t, func() bool {
		return controller.Snapshot().Status != workflow.StatusIdle
	}, 100*time.Millisecond, tick, "stale extraction result must be discarded")
	assert.Nil(t, controller.Snapshot().Record)
}

func TestReset_FromEveryTerminalState(t *testing.T) {
	t.Run("from error", func(t *testing.T) {
		extractor := &fakeExtractor{err: errors.New("boom")}
		controller := newController(extractor, &fakeStore{})
		_, err := controller.Capture("aGVsbG8=")
		require.NoError(t, err)
		waitForStatus(t, controller, workflow.StatusError)

		state := controller.Reset()
		assert.Equal(t, workflow.StatusIdle, state.Status)
		assert.Empty(t, state.ErrorMessage)
	})

	t.Run("from saved", func(t *testing.T) {
		extractor := &fakeExtractor{result: completeRecord()}
		controller := newController(extractor, &fakeStore{})
		_, err := controller.Capture("aGVsbG8=")
		require.NoError(t, err)
		waitForStatus(t, controller, workflow.StatusSuccess)
		_, err = controller.Submit()
		require.NoError(t, err)
		waitForStatus(t, controller, workflow.StatusSaved)

		state := controller.Reset()
		assert.Equal(t, workflow.StatusIdle, state.Status)
		assert.Nil(t, state.Record)
	})

	t.Run("history survives reset", func(t *testing.T) {
		store := &fakeStore{listing: []record.Record{completeRecord()}}
		controller := newController(&fakeExtractor{}, store)
		require.NoError(t, controller.RefreshHistory(context.Background()))

		state := controller.Reset()
		assert.Len(t, state.History, 1)
	})
}

func TestSetView(t *testing.T) {
	controller := newController(&fakeExtractor{}, &fakeStore{})

	state, err := controller.SetView(workflow.ViewHistory)
	require.NoError(t, err)
	assert.Equal(t, workflow.ViewHistory, state.View)

	_, err = controller.SetView(workflow.View("settings"))
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 400, appError.HTTPStatus)

	// Reset changes the capture lifecycle, not the surface.
	state = controller.Reset()
	assert.Equal(t, workflow.ViewHistory, state.View)
}

/*
TestSetView_KeepsExtractionRunning switches to history mid-extraction and
checks the result still lands.
*/
func TestSetView_KeepsExtractionRunning(t *testing.T) {
	extractor := &fakeExtractor{result: completeRecord(), release: make(chan struct{})}
	controller := newController(extractor, &fakeStore{})

	_, err := controller.Capture("aGVsbG8=")
	require.NoError(t, err)

	_, err = controller.SetView(workflow.ViewHistory)
	require.NoError(t, err)

	close(extractor.release)
	state := waitForStatus(t, controller, workflow.StatusSuccess)
	assert.Equal(t, workflow.ViewHistory, state.View)
}

func TestRefreshHistory_FailureKeepsPrevious(t *testing.T) {
	store := &fakeStore{listing: []record.Record{completeRecord()}}
	controller := newController(&fakeExtractor{}, store)
	require.NoError(t, controller.RefreshHistory(context.Background()))
	require.Len(t, controller.History(), 1)

	store.mu.Lock()
	store.listErr = errors.New("archive unreachable")
	store.mu.Unlock()

	err := controller.RefreshHistory(context.Background())
	require.Error(t, err)
	assert.Len(t, controller.History(), 1, "failed refresh keeps the previous listing")
}

func TestDetail(t *testing.T) {
	store := &fakeStore{listing: []record.Record{completeRecord()}}
	controller := newController(&fakeExtractor{}, store)
	require.NoError(t, controller.RefreshHistory(context.Background()))

	found, ok := controller.Detail("3273010101550001")
	require.True(t, ok)
	assert.Equal(t, "BUDI SANTOSO", found.Nama)

	_, ok = controller.Detail("0000000000000000")
	assert.False(t, ok)
}
