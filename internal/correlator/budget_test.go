package correlator

import (
	"testing"
	"time"

	"github.com/atcfusion/engine/internal/model"
)

func makeContacts(n int) []model.Contact {
	now := time.Now()
	contacts := make([]model.Contact, n)
	for i := range contacts {
		contacts[i] = model.Contact{ICAO24: "abcdef", Callsign: "UAL100", Timestamp: now}
	}
	return contacts
}

func makeTransmissions(n int) []model.Transmission {
	now := time.Now()
	txs := make([]model.Transmission, n)
	for i := range txs {
		txs[i] = model.Transmission{ChannelID: "twr", Text: "cleared to land runway two seven", TranscribedAt: now}
	}
	return txs
}

func TestBuildPromptRespectsHardCaps(t *testing.T) {
	budget := Budget{ContextWindow: 8192, MaxResponse: 2048, MaxContacts: 5, MaxTx: 3}
	result := buildPrompt(budget, makeContacts(50), makeTransmissions(50), time.Now())

	if result.NumContacts > 5 {
		t.Fatalf("expected at most 5 contacts, got %d", result.NumContacts)
	}
	if result.NumTx > 3 {
		t.Fatalf("expected at most 3 transmissions, got %d", result.NumTx)
	}
}

func TestBuildPromptMaxTxShrinksWithResponseBudget(t *testing.T) {
	// MaxResponse=500 allows floor((500-200)/180) = 1 transmission, well
	// under the MaxTx knob and under the static 10 the old logic returned
	// regardless of MaxResponse.
	budget := Budget{ContextWindow: 8192, MaxResponse: 500, MaxContacts: 10, MaxTx: 25}
	result := buildPrompt(budget, nil, makeTransmissions(50), time.Now())
	if result.NumTx != 1 {
		t.Fatalf("expected response budget to cap transmissions at 1, got %d", result.NumTx)
	}
}

func TestBuildPromptMaxTxHardCappedAtTen(t *testing.T) {
	budget := Budget{ContextWindow: 8192, MaxResponse: 2048, MaxContacts: 1000, MaxTx: 1000}
	result := buildPrompt(budget, nil, makeTransmissions(50), time.Now())
	if result.NumTx > 10 {
		t.Fatalf("expected hard cap of 10 transmissions, got %d", result.NumTx)
	}
}

func TestBuildPromptEmptyInputsProduceValidPrompt(t *testing.T) {
	budget := Budget{ContextWindow: 8192, MaxResponse: 2048, MaxContacts: 10, MaxTx: 10}
	result := buildPrompt(budget, nil, nil, time.Now())
	if result.NumContacts != 0 || result.NumTx != 0 {
		t.Fatalf("expected zero counts for empty inputs, got %+v", result)
	}
	if result.Prompt == "" {
		t.Fatal("expected a non-empty prompt even with no contacts/transmissions")
	}
}

func TestAdmitNewestFirstPreservesChronologicalOrder(t *testing.T) {
	txs := []model.Transmission{
		{ChannelID: "a", Text: "one"},
		{ChannelID: "b", Text: "two"},
		{ChannelID: "c", Text: "three"},
	}
	included := admitNewestFirst(txs, 1_000_000, 10, func(tx model.Transmission) string { return tx.Text })
	if len(included) != 3 {
		t.Fatalf("expected all 3 to fit, got %d", len(included))
	}
	if included[0].ChannelID != "a" || included[2].ChannelID != "c" {
		t.Fatalf("expected original order preserved, got %+v", included)
	}
}

func TestAdmitNewestFirstDropsOldestWhenOverBudget(t *testing.T) {
	txs := []model.Transmission{
		{ChannelID: "old", Text: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		{ChannelID: "new", Text: "b"},
	}
	included := admitNewestFirst(txs, 15, 10, func(tx model.Transmission) string { return tx.Text })
	if len(included) != 1 || included[0].ChannelID != "new" {
		t.Fatalf("expected only the newest item to fit, got %+v", included)
	}
}
