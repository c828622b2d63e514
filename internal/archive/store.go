// Package archive talks to the remote, append-only record store — a Google
// Apps Script web app backed by a spreadsheet — and keeps a warm-start
// snapshot of its listing in Redis.
//
// The store is external: this package only consumes its two operations,
// "list all" and "append one". There is no update or delete.
package archive

import (
	"context"

	"github.com/arsipdigital/arsipktp/internal/record"
)

// Store is the archive contract consumed by the workflow.
type Store interface {
	// List returns all archived records in store order. Callers keep their
	// previous history on error.
	List(ctx context.Context) ([]record.Record, error)

	// Append persists one record plus its captured image (base64, empty for
	// manual entry). An error means the submission never left this host;
	// the operator may retry by submitting again.
	Append(ctx context.Context, rec record.Record, imageBase64 string) error
}
