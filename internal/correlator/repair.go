package correlator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// rawResult is the wire shape of a correlator response before validation.
type rawResult struct {
	Correlations []wireCorrelation `json:"correlations"`
	Alerts       []wireAlert       `json:"alerts"`
	Summary      string            `json:"summary"`
}

type wireCorrelation struct {
	TransmissionID       int      `json:"transmission_id"`
	ExtractedIdentifier  string   `json:"extracted_identifier"`
	ExtractionConfidence float64  `json:"extraction_confidence"`
	MatchedICAO          string   `json:"matched_icao"`
	MatchedCallsign      string   `json:"matched_callsign"`
	MatchConfidence      float64  `json:"match_confidence"`
	Reasoning            string   `json:"reasoning"`
	Flags                []string `json:"flags"`
}

type wireAlert struct {
	Type       string  `json:"type"`
	Callsign   string  `json:"callsign"`
	Details    string  `json:"details"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
}

// extractJSONObject slices the substring from the first '{' to the last '}',
// mirroring the reference parser's tolerant extraction.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// parseOrRepair attempts to decode text as the correlator's JSON response,
// falling back to a best-effort repair pass when truncation is suspected. It
// returns the decoded result or an error describing why repair could not
// recover a valid document.
func parseOrRepair(text string, likelyTruncated bool) (rawResult, error) {
	candidate, ok := extractJSONObject(text)
	if !ok {
		return rawResult{}, fmt.Errorf("no JSON object found in response")
	}

	if res, err := decodeRaw(candidate); err == nil {
		return res, nil
	} else if !likelyTruncated {
		return rawResult{}, err
	}

	repaired, ok := repairTruncatedJSON(candidate)
	if !ok {
		return rawResult{}, fmt.Errorf("could not repair truncated JSON")
	}
	return decodeRaw(repaired)
}

func decodeRaw(s string) (rawResult, error) {
	var res rawResult
	if err := json.Unmarshal([]byte(s), &res); err != nil {
		return rawResult{}, err
	}
	return res, nil
}

// repairTruncatedJSON trims a truncated JSON document back to the last
// plausible element terminator, then appends the brackets/braces needed to
// balance it. It is idempotent: calling it on already-valid JSON returns the
// input with (at most) the same closers it already had.
func repairTruncatedJSON(s string) (string, bool) {
	openBraces, openBrackets := unmatchedCounts(s)
	if openBraces <= 0 && openBrackets <= 0 {
		return s, true
	}

	terminators := []string{`"},`, `"],`, `"}`, `"]`, `},`, `}`}
	cut := -1
	for _, term := range terminators {
		if idx := strings.LastIndex(s, term); idx != -1 {
			end := idx + len(term)
			if end > cut {
				cut = end
			}
		}
	}
	if cut == -1 {
		return "", false
	}
	trimmed := s[:cut]
	if strings.HasSuffix(trimmed, ",") {
		trimmed = trimmed[:len(trimmed)-1]
	}

	openBraces, openBrackets = unmatchedCounts(trimmed)
	if openBraces < 0 || openBrackets < 0 {
		return "", false
	}

	var closers strings.Builder
	for i := 0; i < openBrackets; i++ {
		closers.WriteByte(']')
	}
	for i := 0; i < openBraces; i++ {
		closers.WriteByte('}')
	}
	return trimmed + closers.String(), true
}

// unmatchedCounts returns the number of unmatched '{' and '[' characters
// outside of string literals.
func unmatchedCounts(s string) (braces, brackets int) {
	inString := false
	escaped := false
	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				braces++
			}
		case '}':
			if !inString {
				braces--
			}
		case '[':
			if !inString {
				brackets++
			}
		case ']':
			if !inString {
				brackets--
			}
		}
	}
	return braces, brackets
}
