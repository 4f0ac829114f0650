package fidelity

import "strings"

// AlertCode classifies a trade outcome for callers. The set is closed:
// whatever the UI says, the result maps to exactly one of these.
type AlertCode string

const (
	AlertSuccess           AlertCode = "SUCCESS"
	AlertNoPosition        AlertCode = "NO_POSITION"
	AlertInsufficientFunds AlertCode = "INSUFFICIENT_FUNDS"
	AlertMarketClosed      AlertCode = "MARKET_CLOSED"
	AlertOrderRejected     AlertCode = "ORDER_REJECTED"
	AlertTimeout           AlertCode = "TIMEOUT"
	AlertUnknown           AlertCode = "UNKNOWN"
)

// Phrase tables are ordered most-specific first; matching is case-insensitive
// substring against the brokerage's known wordings.
var (
	noPositionPhrases = []string{
		"you do not own",
		"you don't own",
		"do not hold",
		"no shares",
		"not held in this account",
		"exceeds the quantity of shares",
	}
	insufficientPhrases = []string{
		"insufficient",
		"buying power",
		"not enough cash",
		"exceeds your available",
		"available balance",
	}
	marketClosedPhrases = []string{
		"market is closed",
		"market closed",
		"not open for trading",
		"outside market hours",
		"session has ended",
	}
	timeoutPhrases = []string{
		"timed out",
		"timeout",
	}
)

// ClassifyError maps a free-text preview/rejection message to an AlertCode.
// It is deterministic and total: any string, including empty, yields exactly
// one code. It never infers success — a positive result is asserted only by
// the engine's explicit confirmation signals.
func ClassifyError(message string) AlertCode {
	m := strings.ToLower(strings.TrimSpace(message))
	if m == "" {
		return AlertUnknown
	}

	for _, p := range noPositionPhrases {
		if strings.Contains(m, p) {
			return AlertNoPosition
		}
	}
	for _, p := range insufficientPhrases {
		if strings.Contains(m, p) {
			return AlertInsufficientFunds
		}
	}
	for _, p := range marketClosedPhrases {
		if strings.Contains(m, p) {
			return AlertMarketClosed
		}
	}
	for _, p := range timeoutPhrases {
		if strings.Contains(m, p) {
			return AlertTimeout
		}
	}
	return AlertOrderRejected
}
