package correlator

import "testing"

func TestExtractJSONObjectFindsOuterBraces(t *testing.T) {
	text := `Here is the result: {"correlations": [], "alerts": [], "summary": "ok"} thanks`
	obj, ok := extractJSONObject(text)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if obj != `{"correlations": [], "alerts": [], "summary": "ok"}` {
		t.Fatalf("unexpected extraction: %q", obj)
	}
}

func TestExtractJSONObjectNoObjectPresent(t *testing.T) {
	if _, ok := extractJSONObject("no json here"); ok {
		t.Fatal("expected extraction to fail")
	}
}

func TestParseOrRepairValidJSONIsIdempotent(t *testing.T) {
	valid := `{"correlations": [{"transmission_id": 0, "matched_icao": "NO_MATCH"}], "alerts": [], "summary": "fine"}`
	res, err := parseOrRepair(valid, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary != "fine" || len(res.Correlations) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	repaired, ok := repairTruncatedJSON(valid)
	if !ok {
		t.Fatal("expected repair to be a no-op success on valid input")
	}
	if repaired != valid {
		t.Fatalf("expected idempotent repair, got %q", repaired)
	}
}

func TestParseOrRepairRecoversTruncatedArray(t *testing.T) {
	truncated := `{"correlations": [{"transmission_id": 0, "matched_icao": "DAL2617", "reasoning": "heard delta two six one seven"},{"transmission_id": 1, "matched_icao": "NO_MATCH"`
	res, err := parseOrRepair(truncated, true)
	if err != nil {
		t.Fatalf("expected repair to recover a valid document, got error: %v", err)
	}
	if len(res.Correlations) != 1 {
		t.Fatalf("expected the single complete correlation to survive repair, got %d", len(res.Correlations))
	}
}

func TestParseOrRepairFailsWithoutTruncationHint(t *testing.T) {
	truncated := `{"correlations": [{"transmission_id": 0`
	if _, err := parseOrRepair(truncated, false); err == nil {
		t.Fatal("expected parse failure when truncation repair isn't attempted")
	}
}

func TestUnmatchedCountsIgnoresBracesInStrings(t *testing.T) {
	braces, brackets := unmatchedCounts(`{"text": "contains { and [ inside a string"}`)
	if braces != 0 || brackets != 0 {
		t.Fatalf("expected balanced counts, got braces=%d brackets=%d", braces, brackets)
	}
}
