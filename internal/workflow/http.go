package workflow

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arsipdigital/arsipktp/internal/platform/apperr"
	requestutil "github.com/arsipdigital/arsipktp/internal/platform/request"
	"github.com/arsipdigital/arsipktp/internal/platform/respond"
	"github.com/arsipdigital/arsipktp/internal/record"
)

// Handler exposes the capture workflow and the archive history over HTTP.
type Handler struct {
	controller *Controller
}

func NewHandler(controller *Controller) *Handler {
	return &Handler{controller: controller}
}

// RegisterScanRoutes mounts the intent endpoints under /scan.
func (handler *Handler) RegisterScanRoutes(router chi.Router) {
	router.Get("/", handler.getState)
	router.Post("/capture", handler.capture)
	router.Post("/manual", handler.manualEntry)
	router.Patch("/record", handler.editField)
	router.Post("/submit", handler.submit)
	router.Post("/reset", handler.reset)
	router.Put("/view", handler.setView)
}

// RegisterHistoryRoutes mounts the read-only archive views under /history.
func (handler *Handler) RegisterHistoryRoutes(router chi.Router) {
	router.Get("/", handler.listHistory)
	router.Get("/{nik}", handler.historyDetail)
}

// # Wire Shapes

// stateResponse is the presentation projection of a [State]. The raw image
// bytes never travel back to the client; HasImage is enough to render the
// thumbnail placeholder.
type stateResponse struct {
	Version      uint64              `json:"version"`
	Status       Status              `json:"status"`
	View         View                `json:"view"`
	HasImage     bool                `json:"hasImage"`
	Record       *record.Record      `json:"record,omitempty"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	Notice       string              `json:"notice,omitempty"`
	Blockers     []apperr.FieldError `json:"blockers,omitempty"`
	CanSubmit    bool                `json:"canSubmit"`
	HistoryCount int                 `json:"historyCount"`
}

func toStateResponse(state State) stateResponse {
	return stateResponse{
		Version:      state.Version,
		Status:       state.Status,
		View:         state.View,
		HasImage:     state.Image != "",
		Record:       state.Record,
		ErrorMessage: state.ErrorMessage,
		Notice:       state.Notice,
		Blockers:     state.Blockers,
		CanSubmit:    state.CanSubmit(),
		HistoryCount: len(state.History),
	}
}

// detailResponse augments an archived record with the derived presentation
// links; the photo URL is empty for the missing-photo fallback.
type detailResponse struct {
	record.Record
	PhotoURL string `json:"photoUrl,omitempty"`
	MapURL   string `json:"mapUrl,omitempty"`
}

type captureRequest struct {
	Image string `json:"image"`
}

type editRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type viewRequest struct {
	View string `json:"view"`
}

// # Scan Intents

func (handler *Handler) getState(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, toStateResponse(handler.controller.Snapshot()))
}

func (handler *Handler) capture(writer http.ResponseWriter, request *http.Request) {
	var body captureRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	state, err := handler.controller.Capture(body.Image)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	// Processing renders immediately; extraction resolves in the background.
	respond.Accepted(writer, toStateResponse(state))
}

func (handler *Handler) manualEntry(writer http.ResponseWriter, request *http.Request) {
	state, err := handler.controller.ManualEntry()
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, toStateResponse(state))
}

func (handler *Handler) editField(writer http.ResponseWriter, request *http.Request) {
	var body editRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	state, err := handler.controller.EditField(body.Field, body.Value)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, toStateResponse(state))
}

func (handler *Handler) submit(writer http.ResponseWriter, request *http.Request) {
	state, err := handler.controller.Submit()
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Accepted(writer, toStateResponse(state))
}

func (handler *Handler) reset(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, toStateResponse(handler.controller.Reset()))
}

func (handler *Handler) setView(writer http.ResponseWriter, request *http.Request) {
	var body viewRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	state, err := handler.controller.SetView(View(body.View))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, toStateResponse(state))
}

// # History Views

func (handler *Handler) listHistory(writer http.ResponseWriter, request *http.Request) {
	history := handler.controller.History()
	if history == nil {
		history = []record.Record{}
	}
	respond.Collection(writer, history, len(history))
}

func (handler *Handler) historyDetail(writer http.ResponseWriter, request *http.Request) {
	nik := requestutil.Param(request, "nik")

	archived, found := handler.controller.Detail(nik)
	if !found {
		respond.Error(writer, request, apperr.NotFound("Record"))
		return
	}

	respond.OK(writer, detailResponse{
		Record:   archived,
		PhotoURL: archived.PhotoURL(),
		MapURL:   archived.MapURL(),
	})
}
