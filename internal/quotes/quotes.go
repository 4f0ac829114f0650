// Package quotes provides an optional second opinion on scraped prices via
// the Alpaca market-data API. The quote panel is the most fragile scrape in
// the pipeline; comparing it against an independent feed catches selector
// drift before it prices an order wrong.
package quotes

import (
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// Checker fetches reference prices for cross-checking.
type Checker struct {
	client *marketdata.Client
}

// NewChecker creates a checker against the Alpaca data API.
func NewChecker(apiKey, apiSecret string) *Checker {
	return &Checker{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
	}
}

// ReferencePrice returns the latest trade price for the symbol.
func (c *Checker) ReferencePrice(symbol string) (decimal.Decimal, error) {
	trade, err := c.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return decimal.Zero, fmt.Errorf("latest trade for %s: %w", symbol, err)
	}
	return decimal.NewFromFloat(trade.Price), nil
}

// Divergence returns |scraped - reference| / reference. Callers alert above
// a threshold of their choosing.
func Divergence(scraped, reference decimal.Decimal) decimal.Decimal {
	if reference.IsZero() {
		return decimal.Zero
	}
	return scraped.Sub(reference).Abs().Div(reference)
}
