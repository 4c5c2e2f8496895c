package correlator

import (
	"fmt"
	"strings"
	"time"

	"github.com/atcfusion/engine/internal/model"
)

// systemPrompt establishes the task vocabulary and output contract for every
// request. It is static: built once and reused across calls.
const systemPrompt = `You are an aviation ATC correlation analyst matching radio transmissions to ADS-B data.

CRITICAL: FLEXIBLE CALLSIGN MATCHING
Airlines use ICAO codes in ADS-B but phonetic names on radio:
- DAL/DL = "Delta" (e.g., DAL2617 = "Delta 26 17" or "Delta 2617")
- UAL/UA = "United"
- AAL/AA = "American"
- SWA/WN = "Southwest"
- JBU/B6 = "JetBlue"
- SKW = "SkyWest"
- ENY = "Envoy"
- RPA = "Republic"
- ASA/AS = "Alaska"
- FFT = "Frontier"
- NKS = "Spirit"
- VIR = "Virgin"

NUMBER MATCHING - BE FLEXIBLE:
- "Delta 26 17" = DAL2617
- "Delta twenty-six seventeen" = DAL2617
- "Delta 2 6 1 7" = DAL2617
- Numbers might be spoken with pauses or grouped differently

GENERAL AVIATION:
- N-numbers: "November 1 2 3 Alpha Bravo" = N123AB
- Cessna/Piper/etc followed by tail number

TRANSCRIPTION QUALITY:
- Expect errors: "data" might be "delta", numbers may be wrong
- Use context clues: altitude, location mentioned
- Partial matches are valuable - note them

ALERTING RULES:
- Match aircraft when reasonably confident (>60%)
- Flag NON_TRANSPONDER only when:
  1. Callsign clearly extracted (not garbled)
  2. Definitely not in ADS-B list (check carefully!)
  3. Confidence > 70%
- Flag MILITARY for: REACH/RCH, VIPER, EAGLE, HAMMER, KING, RESCUE, EVAC, DUKE

OUTPUT FORMAT:
{
  "correlations": [
    {
      "transmission_id": <index>,
      "extracted_identifier": "<what you heard>",
      "extraction_confidence": <0.0-1.0>,
      "matched_icao": "<ICAO or NO_MATCH or UNCLEAR>",
      "matched_callsign": "<ADS-B callsign if matched>",
      "match_confidence": <0.0-1.0>,
      "reasoning": "<explanation including airline code matching>",
      "flags": []
    }
  ],
  "alerts": [
    {
      "type": "<MILITARY|NON_TRANSPONDER>",
      "callsign": "<extracted>",
      "details": "<why alerting>",
      "severity": "<HIGH|MEDIUM|LOW>",
      "confidence": <must be >0.7>
    }
  ],
  "summary": "<brief assessment>"
}`

const analysisTemplate = `CURRENT ADS-B CONTACTS:
%s

RECENT ATC TRANSMISSIONS TO ANALYZE:
%s

Analyze each transmission and respond with JSON matching the specified format.
Remember: Match callsigns flexibly (DAL2617="delta 26 17", UAL="united", AAL="american", SWA="southwest").
Only alert for NON_TRANSPONDER if callsign is CLEARLY extracted AND confirmed absent from ADS-B data.`

func formatContacts(contacts []model.Contact, now time.Time) string {
	if len(contacts) == 0 {
		return "(no contacts)"
	}
	var b strings.Builder
	for i, c := range contacts {
		if i > 0 {
			b.WriteByte('\n')
		}
		callsign := c.Callsign
		if callsign == "" {
			callsign = "--------"
		}
		age := now.Sub(c.Timestamp)
		ageStr := fmt.Sprintf("%ds", int(age.Seconds()))
		if age >= 2*time.Minute {
			ageStr = fmt.Sprintf("%dm", int(age.Minutes()))
		}
		fmt.Fprintf(&b, "%s %-8s %5.0fft %03.0f° %3.0fkt (%s)",
			c.ICAO24, callsign, c.AltitudeFt, c.TrackDeg, c.GroundKts, ageStr)
	}
	return b.String()
}

func formatTransmissions(txs []model.Transmission, now time.Time) string {
	if len(txs) == 0 {
		return "(no transmissions)"
	}
	var b strings.Builder
	for i, tx := range txs {
		if i > 0 {
			b.WriteByte('\n')
		}
		age := now.Sub(tx.TranscribedAt)
		text := tx.Text
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		fmt.Fprintf(&b, "[%d] (%ds) %s: %q", i, int(age.Seconds()), tx.ChannelID, text)
	}
	return b.String()
}
