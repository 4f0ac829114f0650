package fidelity

import (
	"log/slog"
	"time"

	"github.com/hadoku/fidelity-worker/internal/dom"
)

// Client drives one authenticated browser session against the brokerage.
// It is not safe for concurrent use: the UI is stateful and a second
// in-flight trade would corrupt the first's ticket. Callers (the session
// manager) serialize access.
type Client struct {
	page dom.Page
	cat  *Catalog
	log  *slog.Logger

	// sidePolicy bounds the retry budget for the buy/sell selector, the
	// flakiest control on the ticket.
	sidePolicy RetryPolicy
}

// NewClient wraps an existing page in a trading client using the given
// element catalog.
func NewClient(page dom.Page, cat *Catalog, log *slog.Logger) *Client {
	if cat == nil {
		cat = DefaultCatalog()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		page:       page,
		cat:        cat,
		log:        log,
		sidePolicy: RetryPolicy{MaxAttempts: 5, Pause: time.Second},
	}
}

// SetSidePolicy overrides the side-selection retry budget. Tests use a
// one-attempt policy for fast failure paths.
func (c *Client) SetSidePolicy(p RetryPolicy) { c.sidePolicy = p }

// Catalog returns the element catalog the client resolves against.
func (c *Client) Catalog() *Catalog { return c.cat }

// waitLoading waits for every known loading indicator to clear. Indicators
// that never rendered count as cleared.
func (c *Client) waitLoading(timeout time.Duration) error {
	for _, d := range c.cat.LoadingSpinners {
		if err := c.page.Find(d).WaitFor(dom.StateHidden, timeout); err != nil {
			return err
		}
	}
	return nil
}
