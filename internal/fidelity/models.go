// Package fidelity drives the brokerage's web UI: login with a second
// factor, portfolio scraping, and the order-entry transaction pipeline. All
// page access goes through the dom interfaces so the whole package runs
// against fakes in tests.
package fidelity

import (
	"github.com/shopspring/decimal"
)

// Side is an order direction.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Valid reports whether the side is one of the two accepted literals.
func (s Side) Valid() bool { return s == Buy || s == Sell }

// Title returns the UI label for the side ("Buy" / "Sell").
func (s Side) Title() string {
	if s == Buy {
		return "Buy"
	}
	return "Sell"
}

// Credentials is one login attempt's input. TOTPSecret may be empty (or the
// sentinel "NA", which is treated the same) when the account has no
// authenticator enrolled.
type Credentials struct {
	Username   string
	Password   string
	TOTPSecret string
	SaveDevice bool
}

// LoginOutcome is the two-stage login result. StepOneSucceeded means the
// credentials were accepted; FullyAuthenticated means the session is usable.
// (true, false) is the "password fine, second factor unresolved" case.
type LoginOutcome struct {
	StepOneSucceeded   bool
	FullyAuthenticated bool
}

// Position is one holding inside an account.
type Position struct {
	Ticker    string          `json:"ticker"`
	Quantity  decimal.Decimal `json:"quantity"`
	LastPrice decimal.Decimal `json:"last_price"`
	Value     decimal.Decimal `json:"value"`
}

// Account is one brokerage account with its scraped positions. Balance is
// either read from the page or reconstructed as the sum of position values.
type Account struct {
	Number    string          `json:"account_number"`
	Nickname  string          `json:"nickname,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	Positions []Position      `json:"positions"`
}

// SumPositions returns the total value of the account's positions.
func (a Account) SumPositions() decimal.Decimal {
	total := decimal.Zero
	for _, p := range a.Positions {
		total = total.Add(p.Value)
	}
	return total
}

// TradeRequest is one caller-supplied trade intent. Quantity is entered as
// whole shares; LimitPrice, when set, forces a limit order at that price.
type TradeRequest struct {
	Ticker     string
	Side       Side
	Quantity   int64
	Account    string
	DryRun     bool
	LimitPrice *decimal.Decimal
}

// TradeOutcome is the engine's terminal result. Success=true always carries
// AlertSuccess and an empty error message.
type TradeOutcome struct {
	Success      bool
	ErrorMessage string
	Alert        AlertCode

	// LastPrice is the quote the order-mode decision was based on, when the
	// pipeline got far enough to resolve one.
	LastPrice decimal.Decimal
}

// OrderMode is the resolved order type for one transaction.
type OrderMode string

const (
	ModeMarket OrderMode = "market"
	ModeLimit  OrderMode = "limit"
)

// orderContext is the transient per-transaction state: created when a trade
// attempt starts, discarded when it ends.
type orderContext struct {
	lastPrice decimal.Decimal
	extended  bool
	precision int32
	mode      OrderMode
}
