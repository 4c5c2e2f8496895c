package correlator

import (
	"fmt"
	"time"

	"github.com/atcfusion/engine/internal/model"
)

// charsPerTokenEstimate is deliberately the more conservative (smaller) of
// two plausible chars-per-token figures: fewer assumed characters per token
// means more assumed tokens per character, so the admission estimator never
// underestimates actual usage. charsPerTokenDisplay records the plainer 4.0
// average; no code in this package reads it.
const (
	charsPerTokenEstimate = 3.5
	charsPerTokenDisplay  = 4.0
	tokenEstimateBuffer   = 10
)

// tokensPerCorrelationEntry and responseJSONOverhead are the observed token
// cost of one correlation object in the model's JSON response and the fixed
// overhead of the surrounding envelope (brackets, alert block, field names),
// used to derive how many transmissions a response budget can actually hold.
const (
	tokensPerCorrelationEntry = 180
	responseJSONOverhead      = 200
	maxTxHardCap              = 10
)

// maxTxForResponseBudget returns the largest number of transmissions whose
// correlation results can fit in maxResponse tokens, hard-capped regardless
// of how large the response budget is.
func maxTxForResponseBudget(maxResponse int) int {
	if maxResponse <= 0 {
		return maxTxHardCap
	}
	n := (maxResponse - responseJSONOverhead) / tokensPerCorrelationEntry
	if n > maxTxHardCap {
		n = maxTxHardCap
	}
	if n < 1 {
		n = 1
	}
	return n
}

func estimateTokens(s string) int {
	return int(float64(len(s))/charsPerTokenEstimate) + tokenEstimateBuffer
}

// Budget holds the token-budgeting parameters for one correlator instance.
type Budget struct {
	ContextWindow int // total model context, e.g. 8192
	MaxResponse   int // reserved for the response, e.g. 2048
	MaxContacts   int // hard cap on contacts considered, independent of tokens
	MaxTx         int // hard cap on transmissions considered, independent of tokens
}

func (b Budget) maxPrompt() int { return b.ContextWindow - b.MaxResponse }

// buildResult carries the assembled prompt plus the counts actually included,
// for statistics and test assertions.
type buildResult struct {
	Prompt       string
	NumContacts  int
	NumTx        int
	PromptTokens int
}

// buildPrompt assembles the final prompt within the token budget, admitting
// the newest contacts and transmissions first.
func buildPrompt(budget Budget, contacts []model.Contact, txs []model.Transmission, now time.Time) buildResult {
	systemTokens := estimateTokens(systemPrompt)
	templateTokens := estimateTokens(analysisTemplate)

	available := budget.maxPrompt() - systemTokens - templateTokens
	if available < 0 {
		available = 0
	}

	contactBudget := int(float64(available) * 0.70)
	txBudget := available - contactBudget

	maxTx := maxTxForResponseBudget(budget.MaxResponse)
	if budget.MaxTx > 0 && budget.MaxTx < maxTx {
		maxTx = budget.MaxTx
	}

	includedContacts := admitNewestFirst(contacts, contactBudget, budget.MaxContacts, func(c model.Contact) string {
		return formatContacts([]model.Contact{c}, now)
	})
	includedTx := admitNewestFirst(txs, txBudget, maxTx, func(tx model.Transmission) string {
		return formatTransmissions([]model.Transmission{tx}, now)
	})

	prompt := systemPrompt + "\n\n" + fmt.Sprintf(analysisTemplate,
		formatContacts(includedContacts, now), formatTransmissions(includedTx, now))

	return buildResult{
		Prompt:       prompt,
		NumContacts:  len(includedContacts),
		NumTx:        len(includedTx),
		PromptTokens: estimateTokens(prompt),
	}
}

// admitNewestFirst walks items from the end (newest) and greedily accepts
// them while they fit within tokenBudget and the count cap, preserving the
// original chronological order in the returned slice.
func admitNewestFirst[T any](items []T, tokenBudget, countCap int, format func(T) string) []T {
	if countCap <= 0 || countCap > len(items) {
		countCap = len(items)
	}
	included := make([]T, 0, countCap)
	used := 0
	for i := len(items) - 1; i >= 0 && len(included) < countCap; i-- {
		cost := estimateTokens(format(items[i]))
		if used+cost > tokenBudget {
			break
		}
		included = append([]T{items[i]}, included...)
		used += cost
	}
	return included
}
