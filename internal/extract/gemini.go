package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/arsipdigital/arsipktp/internal/record"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"

	// extractionPrompt instructs the model alongside the inline image part.
	extractionPrompt = "Ekstrak data KTP Indonesia ini ke JSON. Gunakan HURUF KAPITAL. " +
		"NIK harus 16 digit angka. tanggalLahir dalam format YYYY-MM-DD. " +
		"jenisKelamin hanya LAKI-LAKI atau PEREMPUAN. Kolom yang tidak terbaca diisi string kosong."
)

// Operator-facing failure messages. The coded prefixes are part of the UI
// contract: the presentation keys remediation hints off them.
const (
	msgKeyRejected   = "KUNCI_TIDAK_VALID: Kunci API ditolak oleh layanan AI. Salin ulang dari Google AI Studio."
	msgQuotaExceeded = "LIMIT_AI: Kuota layanan AI habis. Coba lagi beberapa saat."
	msgEmptyAnswer   = "Layanan AI tidak mengembalikan teks yang bisa dibaca."
)

// Config holds the construction parameters for the Gemini extractor.
type Config struct {
	// APIKey authenticates against the generativelanguage endpoint. Required.
	APIKey string
	// Model is the Gemini model identifier (e.g. "gemini-2.0-flash").
	Model string
	// BaseURL overrides the API host, used by tests. Empty means production.
	BaseURL string
	// HTTPClient overrides the transport. Nil means http.DefaultClient.
	HTTPClient *http.Client
}

// Gemini extracts identity fields through the Gemini REST API (API-key flavor).
//
// The call requests a JSON response constrained by a schema listing the
// sixteen identity fields, at temperature zero for deterministic output.
type Gemini struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGemini validates the configuration and returns a ready extractor.
// A missing API key fails fast here rather than on the first capture.
func NewGemini(cfg Config, logger *slog.Logger) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("extract: gemini API key is empty")
	}
	if cfg.Model == "" {
		return nil, errors.New("extract: gemini model is empty")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Gemini{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// # Wire Types

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string        `json:"responseMimeType"`
	ResponseSchema   *geminiSchema `json:"responseSchema,omitempty"`
	Temperature      float32       `json:"temperature"`
}

type geminiSchema struct {
	Type       string                  `json:"type"`
	Properties map[string]geminiSchema `json:"properties,omitempty"`
	Required   []string                `json:"required,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// # Extraction

// Extract sends the image to Gemini and decodes the structured answer into a
// candidate record. Data-URL payloads are accepted; the prefix is stripped.
func (g *Gemini) Extract(ctx context.Context, imageBase64 string) (record.Record, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{
					MimeType: "image/jpeg",
					Data:     stripDataURL(imageBase64),
				}},
				{Text: extractionPrompt},
			},
		}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   recordSchema(),
			Temperature:      0,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return record.Record{}, fmt.Errorf("extract: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return record.Record{}, fmt.Errorf("extract: build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := g.httpClient.Do(request)
	if err != nil {
		return record.Record{}, fmt.Errorf("extract: layanan AI tidak dapat dihubungi: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return record.Record{}, fmt.Errorf("extract: read response: %w", err)
	}

	if response.StatusCode != http.StatusOK {
		return record.Record{}, g.mapAPIError(response.StatusCode, raw)
	}

	return decodeCandidate(raw)
}

// mapAPIError turns a non-200 answer into an operator-facing message.
func (g *Gemini) mapAPIError(status int, raw []byte) error {
	var apiErr geminiErrorResponse
	_ = json.Unmarshal(raw, &apiErr)

	g.logger.Warn("gemini_request_rejected",
		slog.Int("status", status),
		slog.String("api_status", apiErr.Error.Status),
	)

	switch {
	case status == http.StatusTooManyRequests || apiErr.Error.Status == "RESOURCE_EXHAUSTED":
		return errors.New(msgQuotaExceeded)
	case strings.Contains(apiErr.Error.Message, "API key not valid"):
		return errors.New(msgKeyRejected)
	case apiErr.Error.Message != "":
		return errors.New(apiErr.Error.Message)
	default:
		return fmt.Errorf("layanan AI menolak permintaan (HTTP %d)", status)
	}
}

// decodeCandidate pulls the JSON text out of the first candidate and decodes
// it into a record.
func decodeCandidate(raw []byte) (record.Record, error) {
	var answer geminiResponse
	if err := json.Unmarshal(raw, &answer); err != nil {
		return record.Record{}, fmt.Errorf("extract: decode response: %w", err)
	}

	if len(answer.Candidates) == 0 || len(answer.Candidates[0].Content.Parts) == 0 {
		return record.Record{}, errors.New(msgEmptyAnswer)
	}

	text := answer.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return record.Record{}, errors.New(msgEmptyAnswer)
	}

	var candidate record.Record
	if err := json.Unmarshal([]byte(text), &candidate); err != nil {
		return record.Record{}, fmt.Errorf("extract: jawaban AI bukan JSON yang valid: %w", err)
	}
	return candidate, nil
}

// recordSchema constrains the model to the sixteen identity fields.
func recordSchema() *geminiSchema {
	properties := make(map[string]geminiSchema, len(record.Fields))
	for _, field := range record.Fields {
		properties[field.Name] = geminiSchema{Type: "STRING"}
	}
	return &geminiSchema{
		Type:       "OBJECT",
		Properties: properties,
		Required:   []string{"nik", "nama"},
	}
}

// stripDataURL removes a leading data:*;base64, prefix when present.
func stripDataURL(image string) string {
	if idx := strings.Index(image, ","); idx >= 0 && strings.HasPrefix(image, "data:") {
		return image[idx+1:]
	}
	return image
}
