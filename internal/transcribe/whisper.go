package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// WhisperProvider calls an OpenAI-compatible Whisper transcription endpoint
// (e.g. faster-whisper-server, or the hosted OpenAI API).
type WhisperProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewWhisperProvider creates a provider against baseURL (no trailing slash
// required) using model for every request.
func NewWhisperProvider(baseURL, apiKey, model string, timeout time.Duration) *WhisperProvider {
	return &WhisperProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *WhisperProvider) Name() string  { return "whisper" }
func (p *WhisperProvider) Model() string { return p.model }

func (p *WhisperProvider) Transcribe(ctx context.Context, audioPath string, opts Opts) (*Response, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create multipart file field: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy audio into request: %w", err)
	}
	_ = mw.WriteField("model", p.model)
	_ = mw.WriteField("response_format", "verbose_json")
	if opts.Language != "" {
		_ = mw.WriteField("language", opts.Language)
	}
	if opts.Prompt != "" {
		_ = mw.WriteField("prompt", opts.Prompt)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("whisper returned %d: %s", resp.StatusCode, body)
	}

	var body struct {
		Text     string  `json:"text"`
		Language string  `json:"language"`
		Duration float64 `json:"duration"`
		Segments []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}

	segments := make([]Segment, 0, len(body.Segments))
	for _, s := range body.Segments {
		segments = append(segments, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}

	return &Response{
		Text:     body.Text,
		Language: body.Language,
		Duration: body.Duration,
		Segments: segments,
	}, nil
}
