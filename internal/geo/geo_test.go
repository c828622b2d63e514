package geo_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arsipdigital/arsipktp/internal/geo"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

/*
TestLocate_Success decodes coordinates from the ip-api answer shape.
*/
func TestLocate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","lat":-6.914744,"lon":107.609811}`))
	}))
	defer server.Close()

	coords, err := geo.NewIPClient(server.URL, nil, testLogger()).Locate(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, -6.914744, coords.Latitude, 1e-9)
	assert.InDelta(t, 107.609811, coords.Longitude, 1e-9)
}

/*
TestLocate_Failures: provider errors are reported, never panicked on.
*/
func TestLocate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status_fail", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"fail","message":"private range"}`))
		}},
		{"http_error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}},
		{"bad_json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := geo.NewIPClient(server.URL, nil, testLogger()).Locate(context.Background())
			assert.Error(t, err)
		})
	}
}
