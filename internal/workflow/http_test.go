package workflow_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arsipdigital/arsipktp/internal/record"
	"github.com/arsipdigital/arsipktp/internal/workflow"
)

func newRouter(controller *workflow.Controller) *chi.Mux {
	handler := workflow.NewHandler(controller)
	router := chi.NewRouter()
	router.Route("/scan", handler.RegisterScanRoutes)
	router.Route("/history", handler.RegisterHistoryRoutes)
	return router
}

/*
TestGetState_OmitsImage checks the state projection: the raw capture bytes
never leave the server, only the hasImage flag does.
*/
func TestGetState_OmitsImage(t *testing.T) {
	extractor := &fakeExtractor{result: completeRecord()}
	controller := newController(extractor, &fakeStore{})
	router := newRouter(controller)

	_, err := controller.Capture("aGVsbG8=")
	require.NoError(t, err)
	waitForStatus(t, controller, workflow.StatusSuccess)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/scan", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	var envelope struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Contains(t, envelope.Data, "hasImage")
	assert.Contains(t, envelope.Data, "canSubmit")
	assert.NotContains(t, envelope.Data, "image")
	assert.JSONEq(t, `true`, string(envelope.Data["hasImage"]))
}

func TestCaptureEndpoint(t *testing.T) {
	extractor := &fakeExtractor{result: completeRecord(), release: make(chan struct{})}
	defer close(extractor.release)
	controller := newController(extractor, &fakeStore{})
	router := newRouter(controller)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/scan/capture",
		strings.NewReader(`{"image":"aGVsbG8="}`)))
	assert.Equal(t, http.StatusAccepted, recorder.Code)

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/scan/capture",
		strings.NewReader(`{"image":"c2Vjb25k"}`)))
	assert.Equal(t, http.StatusConflict, recorder.Code, "second capture while processing is refused")

	// Missing image is a plain validation failure.
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/scan/capture",
		strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHistoryDetailEndpoint(t *testing.T) {
	archived := completeRecord()
	archived.LinkFoto = "https://drive.google.com/open?id=PHOTO123"
	store := &fakeStore{listing: []record.Record{archived}}
	controller := newController(&fakeExtractor{}, store)
	require.NoError(t, controller.RefreshHistory(context.Background()))
	router := newRouter(controller)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/history/3273010101550001", nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	var envelope struct {
		Data struct {
			NIK      string `json:"nik"`
			PhotoURL string `json:"photoUrl"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, "3273010101550001", envelope.Data.NIK)
	assert.Equal(t, "https://lh3.googleusercontent.com/d/PHOTO123", envelope.Data.PhotoURL)

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/history/0000000000000000", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}
