// Package extract turns a captured identity-card image into a candidate
// [record.Record] via an external AI vision service.
//
// The workflow depends only on the [Extractor] interface; the Gemini
// implementation lives beside it. Extraction is single-attempt: a failure is
// terminal for that capture and the message is surfaced to the operator.
package extract

import (
	"context"

	"github.com/arsipdigital/arsipktp/internal/record"
)

// Extractor is the field-extraction contract consumed by the workflow.
//
// Implementations must return best-effort values for all identity fields
// (empty strings for unreadable ones) or an error whose message is safe to
// show the operator verbatim.
type Extractor interface {
	Extract(ctx context.Context, imageBase64 string) (record.Record, error)
}
