package record

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arsipdigital/arsipktp/internal/platform/respond"
)

// Handler serves the field-descriptor table so the presentation layer can
// render the verification form from the same contract that drives validation.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/", handler.listFields)
}

func (handler *Handler) listFields(writer http.ResponseWriter, request *http.Request) {
	respond.Collection(writer, Fields, len(Fields))
}
