// Package correlator fuses transcribed ATC transmissions with ADS-B
// surveillance contacts via an LLM generation endpoint.
package correlator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/atcfusion/engine/internal/model"
)

// responseTimeWindow bounds the moving-average latency sample.
const responseTimeWindow = 100

// Stats is a snapshot of cumulative correlator statistics.
type Stats struct {
	APICalls           int64
	TotalTokens        int64
	AvgResponseTimeS   float64
	Errors             int64
	LastPromptTokens   int
	ContextWindow      int
}

// Options configures a Correlator.
type Options struct {
	Client                  *Client
	Budget                  Budget
	AlertConfidenceThreshold float64
	SafetyMargin            int // tokens; response within this of MaxResponse is treated as truncated
	Log                     zerolog.Logger
}

// Correlator queries an LLM to match transmissions against surveillance
// contacts, assembling a budgeted prompt and repairing truncated responses
// on a single request/response cycle per call.
type Correlator struct {
	client *Client
	budget Budget
	alertConfidenceThreshold float64
	safetyMargin             int
	log                      zerolog.Logger

	mu            sync.Mutex
	apiCalls      int64
	totalTokens   int64
	lastPromptTokens int
	errorCount    int64
	responseTimes []float64
}

// New creates a Correlator.
func New(opts Options) *Correlator {
	margin := opts.SafetyMargin
	if margin <= 0 {
		margin = 50
	}
	return &Correlator{
		client:                   opts.Client,
		budget:                   opts.Budget,
		alertConfidenceThreshold: opts.AlertConfidenceThreshold,
		safetyMargin:             margin,
		log:                      opts.Log.With().Str("component", "correlator").Logger(),
	}
}

// Correlate matches contacts against transmissions and returns structured
// correlation/alert records. An empty transmissions slice is a no-op: it
// returns Summary "No transmissions" without an HTTP call.
func (c *Correlator) Correlate(ctx context.Context, contacts []model.Contact, transmissions []model.Transmission) model.CorrelationResult {
	if len(transmissions) == 0 {
		return model.CorrelationResult{Summary: "No transmissions"}
	}

	start := time.Now()
	c.mu.Lock()
	c.apiCalls++
	c.mu.Unlock()

	now := time.Now()
	built := buildPrompt(c.budget, contacts, transmissions, now)

	c.mu.Lock()
	c.totalTokens += int64(built.PromptTokens)
	c.lastPromptTokens = built.PromptTokens
	c.mu.Unlock()

	c.log.Info().Int("contacts", built.NumContacts).Int("transmissions", built.NumTx).
		Int("prompt_tokens_est", built.PromptTokens).Msg("sending correlation request")

	text, evalCount, err := c.client.generate(ctx, built.Prompt, c.budget.MaxResponse, c.budget.ContextWindow)
	elapsed := time.Since(start)

	if err != nil {
		c.recordError()
		switch {
		case errors.Is(err, ErrTimeout):
			c.log.Warn().Msg("LLM request timed out")
		case errors.Is(err, ErrConnection):
			c.log.Warn().Err(err).Msg("cannot connect to LLM endpoint")
		default:
			c.log.Warn().Err(err).Msg("LLM request failed")
		}
		return model.CorrelationResult{Error: err.Error()}
	}

	c.recordResponseTime(elapsed.Seconds())
	c.mu.Lock()
	c.totalTokens += int64(evalCount)
	c.mu.Unlock()

	likelyTruncated := c.budget.MaxResponse-evalCount <= c.safetyMargin
	parsed, err := parseOrRepair(text, likelyTruncated)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to parse LLM response as JSON")
		return model.CorrelationResult{Error: "failed to parse LLM response", Raw: text}
	}

	result := toResult(parsed, c.alertConfidenceThreshold)

	matches := 0
	for _, corr := range result.Correlations {
		if corr.MatchedICAO != model.NoMatch && corr.MatchedICAO != model.Unclear && corr.MatchedICAO != "" {
			matches++
		}
	}
	c.log.Info().Int("matches", matches).Int("total", len(result.Correlations)).
		Int("alerts", len(result.Alerts)).Dur("elapsed", elapsed).Msg("correlation complete")

	return result
}

func toResult(raw rawResult, alertThreshold float64) model.CorrelationResult {
	correlations := make([]model.Correlation, 0, len(raw.Correlations))
	for _, wc := range raw.Correlations {
		flags := make([]model.CorrelationFlag, 0, len(wc.Flags))
		for _, f := range wc.Flags {
			flags = append(flags, model.CorrelationFlag(f))
		}
		correlations = append(correlations, model.Correlation{
			TransmissionID:       wc.TransmissionID,
			ExtractedIdentifier:  wc.ExtractedIdentifier,
			ExtractionConfidence: wc.ExtractionConfidence,
			MatchedICAO:          wc.MatchedICAO,
			MatchedCallsign:      wc.MatchedCallsign,
			MatchConfidence:      wc.MatchConfidence,
			Reasoning:            wc.Reasoning,
			Flags:                flags,
		})
	}

	alerts := make([]model.Alert, 0, len(raw.Alerts))
	for _, wa := range raw.Alerts {
		if wa.Confidence < alertThreshold {
			continue
		}
		alerts = append(alerts, model.Alert{
			Type:       model.AlertType(wa.Type),
			Details:    wa.Details,
			Severity:   model.AlertSeverity(wa.Severity),
			Confidence: wa.Confidence,
		})
	}

	summary := raw.Summary
	if summary == "" {
		summary = "Analysis complete"
	}

	return model.CorrelationResult{Correlations: correlations, Alerts: alerts, Summary: summary}
}

func (c *Correlator) recordError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorCount++
}

func (c *Correlator) recordResponseTime(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseTimes = append(c.responseTimes, seconds)
	if len(c.responseTimes) > responseTimeWindow {
		c.responseTimes = c.responseTimes[len(c.responseTimes)-responseTimeWindow:]
	}
}

// GetStats returns a snapshot of cumulative statistics.
func (c *Correlator) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	avg := 0.0
	if len(c.responseTimes) > 0 {
		sum := 0.0
		for _, t := range c.responseTimes {
			sum += t
		}
		avg = sum / float64(len(c.responseTimes))
	}
	return Stats{
		APICalls:         c.apiCalls,
		TotalTokens:      c.totalTokens,
		AvgResponseTimeS: avg,
		Errors:           c.errorCount,
		LastPromptTokens: c.lastPromptTokens,
		ContextWindow:    c.budget.ContextWindow,
	}
}
