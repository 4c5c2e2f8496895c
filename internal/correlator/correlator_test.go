package correlator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestCorrelator(t *testing.T, handler http.HandlerFunc) (*Correlator, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := NewClient(srv.URL, "test-model", 5*time.Second)
	c := New(Options{
		Client:                   client,
		Budget:                   Budget{ContextWindow: 8192, MaxResponse: 2048, MaxContacts: 100, MaxTx: 10},
		AlertConfidenceThreshold: 0.7,
		Log:                      zerolog.Nop(),
	})
	return c, srv
}

func TestCorrelateNoTransmissionsIsNoOp(t *testing.T) {
	c, srv := newTestCorrelator(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("expected no HTTP call when there are no transmissions")
	})
	defer srv.Close()

	res := c.Correlate(context.Background(), makeContacts(3), nil)
	if res.Summary != "No transmissions" {
		t.Fatalf("unexpected summary: %q", res.Summary)
	}
}

func TestCorrelateParsesSuccessfulResponse(t *testing.T) {
	body := `{"correlations":[{"transmission_id":0,"matched_icao":"abcdef","matched_callsign":"UAL100","match_confidence":0.9}],"alerts":[{"type":"MILITARY","callsign":"REACH31","severity":"HIGH","confidence":0.95}],"summary":"ok"}`
	c, srv := newTestCorrelator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"response": body, "eval_count": 500})
	})
	defer srv.Close()

	res := c.Correlate(context.Background(), makeContacts(1), makeTransmissions(1))
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if len(res.Correlations) != 1 || res.Correlations[0].MatchedCallsign != "UAL100" {
		t.Fatalf("unexpected correlations: %+v", res.Correlations)
	}
	if len(res.Alerts) != 1 {
		t.Fatalf("expected 1 alert, got %+v", res.Alerts)
	}

	stats := c.GetStats()
	if stats.APICalls != 1 {
		t.Fatalf("expected 1 api call recorded, got %d", stats.APICalls)
	}
}

func TestCorrelateFiltersLowConfidenceAlerts(t *testing.T) {
	body := `{"correlations":[],"alerts":[{"type":"MILITARY","confidence":0.5},{"type":"MILITARY","confidence":0.9}],"summary":"ok"}`
	c, srv := newTestCorrelator(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"response": body, "eval_count": 10})
	})
	defer srv.Close()

	res := c.Correlate(context.Background(), nil, makeTransmissions(1))
	if len(res.Alerts) != 1 {
		t.Fatalf("expected exactly 1 alert to survive the 0.7 threshold, got %d", len(res.Alerts))
	}
}

func TestCorrelateHandlesConnectionFailure(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "test-model", 200*time.Millisecond)
	c := New(Options{Client: client, Budget: Budget{ContextWindow: 8192, MaxResponse: 2048}, Log: zerolog.Nop()})

	res := c.Correlate(context.Background(), nil, makeTransmissions(1))
	if res.Error == "" {
		t.Fatal("expected an error result on connection failure")
	}
	if c.GetStats().Errors != 1 {
		t.Fatalf("expected error count to be incremented, got %d", c.GetStats().Errors)
	}
}

func TestCorrelateRepairsTruncatedResponse(t *testing.T) {
	truncated := `{"correlations":[{"transmission_id":0,"matched_icao":"NO_MATCH","reasoning":"garbled"}],"alerts":[` // response cut off mid-array, no closing
	c, srv := newTestCorrelator(t, func(w http.ResponseWriter, r *http.Request) {
		// eval_count close to max_response triggers the truncation heuristic
		_ = json.NewEncoder(w).Encode(map[string]any{"response": truncated, "eval_count": 2040})
	})
	defer srv.Close()

	res := c.Correlate(context.Background(), nil, makeTransmissions(1))
	if res.Error != "" {
		t.Fatalf("expected repair to recover a usable result, got error: %s", res.Error)
	}
	if len(res.Correlations) != 1 {
		t.Fatalf("expected the complete correlation to survive repair, got %+v", res.Correlations)
	}
}
