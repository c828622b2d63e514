package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/arsipdigital/arsipktp/internal/record"
)

// listStatusSuccess is the status token the Apps Script backend returns on a
// good listing.
const listStatusSuccess = "success"

// AppsScriptClient implements [Store] against a Google Apps Script web app.
//
// # Wire Format
//
//   - List: GET <url>?t=<unix-ms> (cache-busting); answer {"status","data"}.
//   - Append: POST <url> with the full record JSON plus an "image" field.
//     The response body is not inspected: the backend runs in no-cors style
//     and transport-level success of the submission is the success signal.
//     The server is trusted to persist idempotently per submission.
type AppsScriptClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewAppsScriptClient returns a client for the given web-app URL.
// A nil httpClient falls back to http.DefaultClient.
func NewAppsScriptClient(url string, httpClient *http.Client, logger *slog.Logger) *AppsScriptClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AppsScriptClient{
		url:        url,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

type listResponse struct {
	Status string          `json:"status"`
	Data   []record.Record `json:"data"`
}

// List fetches all archived records; store ordering is preserved, not re-sorted.
func (c *AppsScriptClient) List(ctx context.Context) ([]record.Record, error) {
	url := fmt.Sprintf("%s?t=%d", c.url, c.now().UnixMilli())

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("archive: build list request: %w", err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("archive: list returned HTTP %d", response.StatusCode)
	}

	var decoded listResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("archive: decode listing: %w", err)
	}

	if decoded.Status != listStatusSuccess {
		return nil, fmt.Errorf("archive: list status %q", decoded.Status)
	}

	return decoded.Data, nil
}

// appendPayload is the record plus the captured image, flattened into one
// JSON object the way the spreadsheet backend expects.
type appendPayload struct {
	record.Record
	Image string `json:"image"`
}

// Append submits one record. Only transport-level failures are reported; the
// response body and status are deliberately not inspected (see type doc).
func (c *AppsScriptClient) Append(ctx context.Context, rec record.Record, imageBase64 string) error {
	body, err := json.Marshal(appendPayload{Record: rec, Image: imageBase64})
	if err != nil {
		return fmt.Errorf("archive: encode record: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("archive: build append request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("archive: append: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	// Drain so the connection can be reused; the content is ignored.
	_, _ = io.Copy(io.Discard, response.Body)

	c.logger.Debug("archive_append_submitted", slog.String("nik", rec.NIK))
	return nil
}
