package fidelity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hadoku/fidelity-worker/internal/dom"
)

// Transaction runs one trade attempt through the order-entry pipeline:
// account, symbol/quote, extended hours, side, quantity, order mode,
// preview, validation, and (unless DryRun) submission. Any stage's failure
// short-circuits to a classified TradeOutcome; no fault escapes the engine.
func (c *Client) Transaction(req TradeRequest) TradeOutcome {
	if !req.Side.Valid() {
		return failure(fmt.Sprintf("invalid side %q", req.Side))
	}
	if req.Quantity <= 0 {
		return failure(fmt.Sprintf("invalid quantity %d", req.Quantity))
	}

	ticker := strings.ToUpper(req.Ticker)
	c.log.Info("transaction start",
		"ticker", ticker, "side", req.Side, "quantity", req.Quantity,
		"account", req.Account, "dry_run", req.DryRun)

	outcome := c.transaction(req, ticker)
	if outcome.Success {
		c.log.Info("transaction complete", "ticker", ticker, "dry_run", req.DryRun)
	} else {
		c.log.Warn("transaction failed",
			"ticker", ticker, "alert", outcome.Alert, "err", outcome.ErrorMessage)
	}
	return outcome
}

func (c *Client) transaction(req TradeRequest, ticker string) TradeOutcome {
	if err := c.gotoTradePage(); err != nil {
		return stageFailure("open order entry page", err)
	}

	if err := c.selectAccount(req.Account); err != nil {
		return stageFailure("select account "+req.Account, err)
	}

	lastPrice, err := c.enterSymbol(ticker)
	if err != nil {
		return stageFailure("resolve quote for "+ticker, err)
	}

	octx := &orderContext{lastPrice: lastPrice, precision: 3}
	if err := c.setupExtendedHours(octx); err != nil {
		return stageFailure("configure extended hours", err)
	}

	if err := c.selectSide(req.Side); err != nil {
		out := failure(err.Error())
		out.LastPrice = octx.lastPrice
		return out
	}

	if err := c.enterQuantity(req.Quantity); err != nil {
		return stageFailure("enter quantity", err)
	}

	if err := c.setOrderMode(octx, req.Side, req.LimitPrice); err != nil {
		return stageFailure("set order mode", err)
	}

	if msg, err := c.previewOrder(); err != nil {
		return stageFailure("preview order", err)
	} else if msg != "" {
		out := failure(msg)
		out.LastPrice = octx.lastPrice
		return out
	}

	if !c.validatePreview(req.Account, ticker, req.Side, req.Quantity) {
		out := failure("order preview doesn't match expected values")
		out.LastPrice = octx.lastPrice
		return out
	}

	if req.DryRun {
		return TradeOutcome{Success: true, Alert: AlertSuccess, LastPrice: octx.lastPrice}
	}

	out := c.submitOrder()
	out.LastPrice = octx.lastPrice
	return out
}

// gotoTradePage navigates to order entry unless the session is already
// there; re-entry is idempotent.
func (c *Client) gotoTradePage() error {
	if c.page.URL() == c.cat.URLs.Trade {
		return nil
	}
	if err := c.page.Goto(c.cat.URLs.Trade); err != nil {
		return err
	}
	if err := c.waitLoading(c.cat.Timeouts.Default); err != nil {
		return err
	}
	c.page.Sleep(time.Second)
	return nil
}

// selectAccount opens the account selector and clicks the option whose label
// contains the account number. One reload-and-retry covers the selector's
// known staleness after a prior transaction.
func (c *Client) selectAccount(account string) error {
	if err := c.page.Find(c.cat.Trade.AccountDropdown).Click(dom.ClickOptions{}); err != nil {
		return err
	}

	option := c.page.Find(c.cat.Trade.AccountOption.WithText(strings.ToUpper(account)))
	if visible, _ := option.Visible(); !visible {
		if err := c.page.Reload(); err != nil {
			return err
		}
		if err := c.waitLoading(c.cat.Timeouts.Default); err != nil {
			return err
		}
		if err := c.page.Find(c.cat.Trade.AccountDropdown).Click(dom.ClickOptions{}); err != nil {
			return err
		}
		option = c.page.Find(c.cat.Trade.AccountOption.WithText(strings.ToUpper(account)))
		if visible, _ := option.Visible(); !visible {
			return fmt.Errorf("account %s not in selector after reload", account)
		}
	}

	if err := option.Click(dom.ClickOptions{}); err != nil {
		return err
	}
	c.page.Sleep(3 * time.Second)
	return nil
}

// enterSymbol types the ticker, confirms it, and reads the quote panel's
// last traded price.
func (c *Client) enterSymbol(ticker string) (decimal.Decimal, error) {
	input := c.page.Find(c.cat.Trade.SymbolInput)
	if err := input.Click(dom.ClickOptions{}); err != nil {
		return decimal.Zero, err
	}
	if err := input.Fill(ticker); err != nil {
		return decimal.Zero, err
	}
	if err := input.Press("Enter"); err != nil {
		return decimal.Zero, err
	}

	if err := c.page.Find(c.cat.Trade.QuotePanel).WaitFor(dom.StateVisible, c.cat.Timeouts.Short); err != nil {
		return decimal.Zero, err
	}

	return c.readLastPrice()
}

func (c *Client) readLastPrice() (decimal.Decimal, error) {
	text, err := c.page.Find(c.cat.Trade.LastPrice).Text()
	if err != nil {
		return decimal.Zero, err
	}
	price, err := parsePrice(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse last price %q: %w", text, err)
	}
	return price, nil
}

// setupExtendedHours enables the extended-hours toggle when present (with a
// legacy text-based fallback), refreshes the quote once extended pricing is
// showing, and expands the compact ticket if an expand control exists.
func (c *Client) setupExtendedHours(octx *orderContext) error {
	toggle := c.page.Find(c.cat.Trade.ExtendedButton)
	if visible, _ := toggle.Visible(); visible {
		class, err := c.page.Find(c.cat.Trade.ExtendedWrapper).Attribute("class")
		if err != nil {
			return err
		}
		if !strings.Contains(class, "pvd-switch--on") {
			if err := toggle.Click(dom.ClickOptions{}); err != nil {
				return err
			}
			c.page.Sleep(time.Second)
		}
		octx.extended = true
		octx.precision = 2
	} else if visible, _ := c.page.Find(c.cat.Trade.ExtendedLegacy).Visible(); visible {
		off := c.page.Find(c.cat.Trade.ExtendedLegacyOn)
		if offVisible, _ := off.Visible(); offVisible {
			if err := off.Check(); err != nil {
				return err
			}
		}
		octx.extended = true
		octx.precision = 2
	}

	// Prefer the fresher extended-session quote when one is rendered.
	if octx.extended {
		if visible, _ := c.page.Find(c.cat.Trade.LastPrice).Visible(); visible {
			if price, err := c.readLastPrice(); err == nil {
				octx.lastPrice = price
			}
		}
	}

	expand := c.page.Find(c.cat.Trade.ExpandTicket)
	if visible, _ := expand.Visible(); visible {
		if err := expand.Click(dom.ClickOptions{}); err != nil {
			return err
		}
		if err := c.page.Find(c.cat.Trade.CalculateShares).WaitFor(dom.StateVisible, c.cat.Timeouts.Short); err != nil {
			return err
		}
	}

	return nil
}

// selectSide picks Buy or Sell. The action selector is the flakiest control
// on the ticket; each attempt force-reopens the dropdown when the option is
// not showing, and the counted policy caps the budget.
func (c *Client) selectSide(side Side) error {
	dropdown := c.page.Find(c.cat.Trade.ActionDropdown)
	option := c.page.Find(dom.Descriptor{By: dom.ByRole, Value: "option", Name: side.Title(), Exact: true})

	return c.sidePolicy.Run(c.page, fmt.Sprintf("select %q", string(side)), func() error {
		if visible, _ := option.Visible(); !visible {
			if err := dropdown.Click(dom.ClickOptions{Force: true}); err != nil {
				return err
			}
			c.page.Sleep(500 * time.Millisecond)
		}
		return option.Click(dom.ClickOptions{Timeout: 3 * time.Second})
	})
}

func (c *Client) enterQuantity(quantity int64) error {
	return c.page.Find(c.cat.Trade.QuantityInput).Fill(strconv.FormatInt(quantity, 10))
}

// setOrderMode resolves market vs. limit and fills the ticket accordingly.
func (c *Client) setOrderMode(octx *orderContext, side Side, explicit *decimal.Decimal) error {
	octx.mode = resolveOrderMode(octx.lastPrice, octx.extended, explicit)
	if octx.mode == ModeMarket {
		if err := c.page.Find(c.cat.Trade.OrderTypeButton).Click(dom.ClickOptions{}); err != nil {
			return err
		}
		return c.page.Find(c.cat.Trade.MarketOption).Click(dom.ClickOptions{})
	}

	price := computeLimitPrice(octx.lastPrice, side, octx.precision)
	if explicit != nil {
		price = *explicit
	}

	if err := c.page.Find(c.cat.Trade.OrderTypeButton).Click(dom.ClickOptions{}); err != nil {
		return err
	}
	if err := c.page.Find(c.cat.Trade.LimitOption).Click(dom.ClickOptions{}); err != nil {
		return err
	}

	input := c.page.Find(c.cat.Trade.LimitPriceInput)
	if err := input.Click(dom.ClickOptions{}); err != nil {
		return err
	}
	return input.Fill(price.String())
}

// previewOrder triggers the preview and races two signals: the Place-order
// control appearing (success, returns "", nil) versus an error surface to
// extract a message from. A non-empty message is a brokerage rejection, not
// an engine fault.
func (c *Client) previewOrder() (string, error) {
	if err := c.page.Find(c.cat.Trade.PreviewButton).Click(dom.ClickOptions{}); err != nil {
		return "", err
	}
	if err := c.waitLoading(c.cat.Timeouts.Default); err != nil {
		return "", err
	}

	err := c.page.Find(c.cat.Trade.PlaceOrderButton).WaitFor(dom.StateVisible, c.cat.Timeouts.Short)
	if err == nil {
		return "", nil
	}
	if !errors.Is(err, dom.ErrTimeout) {
		return "", err
	}

	return c.extractErrorMessage(), nil
}

// extractErrorMessage pulls the rejection text from the known error
// surfaces, tried in order, and dismisses the dialog. When nothing can be
// extracted the page is reloaded — an undismissed modal blocks everything —
// and a generic message is returned.
func (c *Client) extractErrorMessage() string {
	var message string

	region := c.page.Find(c.cat.Trade.ErrorRegion).
		Find(dom.Descriptor{By: dom.ByCSS, Value: "div", HasText: "critical"}).Nth(2)
	if text, err := region.Text(); err == nil && text != "" {
		message = text
		c.dismissErrorDialog()
	}

	if message == "" {
		alert := c.page.Find(c.cat.Trade.InlineAlert)
		if err := alert.WaitFor(dom.StateVisible, 2*time.Second); err == nil {
			if text, err := alert.Text(); err == nil {
				message = text
			}
			c.dismissErrorDialog()
		}
	}

	if message == "" {
		if err := c.page.Reload(); err != nil {
			c.log.Error("reload after undismissed error dialog failed", "err", err)
		}
		return "could not retrieve error message"
	}

	return cleanErrorText(message)
}

func (c *Client) dismissErrorDialog() {
	if err := c.page.Find(c.cat.Trade.DialogClose).Click(dom.ClickOptions{}); err != nil {
		c.log.Warn("could not dismiss error dialog", "err", err)
	}
}

// cleanErrorText collapses whitespace runs and strips the "critical" icon
// label the error region leaks into its text.
func cleanErrorText(text string) string {
	text = strings.ReplaceAll(text, "critical", "")
	return strings.Join(strings.Fields(text), " ")
}

// validatePreview cross-checks the rendered preview ticket against the
// request: account, symbol, action, and quantity must all match before the
// engine will trust the preview. This guards against acting on a stale or
// mis-rendered ticket.
func (c *Client) validatePreview(account, ticker string, side Side, quantity int64) bool {
	checks := []dom.Element{
		c.page.Find(c.cat.Trade.PreviewPanel.WithText(strings.ToUpper(account))),
		c.page.Find(dom.Descriptor{By: dom.ByText, Value: "Symbol" + ticker, Exact: true}),
		c.page.Find(dom.Descriptor{By: dom.ByText, Value: "Action" + side.Title()}),
		c.page.Find(dom.Descriptor{By: dom.ByText, Value: fmt.Sprintf("Quantity%d", quantity)}),
	}
	for _, e := range checks {
		if visible, _ := e.Visible(); !visible {
			return false
		}
	}
	return true
}

// submitOrder places the previewed order and waits for the order-received
// confirmation. Success is only asserted on that explicit positive signal.
func (c *Client) submitOrder() TradeOutcome {
	if err := c.page.Find(c.cat.Trade.PlaceOrderButton).Click(dom.ClickOptions{}); err != nil {
		return stageFailure("place order", err)
	}
	if err := c.waitLoading(c.cat.Timeouts.Default); err != nil {
		return stageFailure("place order", err)
	}

	err := c.page.Find(c.cat.Trade.OrderReceived).WaitFor(dom.StateVisible, c.cat.Timeouts.Submit)
	if err != nil {
		return stageFailure("confirm order", err)
	}

	return TradeOutcome{Success: true, Alert: AlertSuccess}
}

// failure builds a classified failure outcome from a rejection/error
// message.
func failure(message string) TradeOutcome {
	return TradeOutcome{
		Success:      false,
		ErrorMessage: message,
		Alert:        ClassifyError(message),
	}
}

// stageFailure converts a stage's fault into a classified outcome. Bounded
// waits that expired become timeout-classified messages naming the stage;
// anything else is an unexpected fault and classifies as UNKNOWN rather than
// masquerading as a brokerage rejection.
func stageFailure(stage string, err error) TradeOutcome {
	if errors.Is(err, dom.ErrTimeout) {
		return failure(fmt.Sprintf("timed out: %s", stage))
	}
	return TradeOutcome{
		Success:      false,
		ErrorMessage: fmt.Sprintf("%s: %v", stage, err),
		Alert:        AlertUnknown,
	}
}
