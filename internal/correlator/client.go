package correlator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// genRequest mirrors the Ollama /api/generate request body.
type genRequest struct {
	Model   string       `json:"model"`
	Prompt  string       `json:"prompt"`
	Stream  bool         `json:"stream"`
	Options genOptions   `json:"options"`
}

type genOptions struct {
	Temperature   float64  `json:"temperature"`
	NumPredict    int      `json:"num_predict"`
	TopP          float64  `json:"top_p"`
	NumCtx        int      `json:"num_ctx"`
	RepeatPenalty float64  `json:"repeat_penalty"`
	Stop          []string `json:"stop,omitempty"`
}

type genResponse struct {
	Response       string `json:"response"`
	EvalCount      int    `json:"eval_count"`
	PromptEvalCount int   `json:"prompt_eval_count"`
}

// Client talks to an Ollama-compatible generation endpoint.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
}

// NewClient creates a client against baseURL using model for every request.
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

// generate posts prompt to the endpoint and returns the raw response text
// plus the generated token count (used to detect likely truncation).
func (c *Client) generate(ctx context.Context, prompt string, maxResponse, contextWindow int) (text string, evalCount int, err error) {
	reqBody := genRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: genOptions{
			Temperature:   0.4,
			NumPredict:    maxResponse,
			TopP:          0.9,
			NumCtx:        contextWindow,
			RepeatPenalty: 1.1,
			Stop:          []string{"\n\n\n"},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", 0, ErrTimeout
		}
		if ctx.Err() != nil {
			return "", 0, ErrTimeout
		}
		return "", 0, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", 0, fmt.Errorf("generate endpoint returned %d: %s", resp.StatusCode, respBody)
	}

	var gr genResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", 0, fmt.Errorf("decode generate response: %w", err)
	}
	return gr.Response, gr.EvalCount, nil
}

// ErrTimeout and ErrConnection classify transient failures so callers can
// apply the "retain previous state, retry next tick" policy without string
// matching.
var (
	ErrTimeout    = errors.New("llm request timed out")
	ErrConnection = errors.New("cannot connect to llm endpoint")
)
