package fidelity

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hadoku/fidelity-worker/internal/dom"
	"github.com/hadoku/fidelity-worker/internal/dom/domtest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sideOption(side Side) dom.Descriptor {
	return dom.Descriptor{By: dom.ByRole, Value: "option", Name: side.Title(), Exact: true}
}

// tradePage scripts a page where the given request sails through to a valid
// preview. Tests break individual pieces from there.
func tradePage(cat *Catalog, req TradeRequest, lastPrice string) *domtest.Page {
	page := domtest.NewPage()
	account := strings.ToUpper(req.Account)
	ticker := strings.ToUpper(req.Ticker)

	page.Set(cat.Trade.AccountDropdown, &domtest.Element{})
	page.Set(cat.Trade.AccountOption.WithText(account), &domtest.Element{})
	page.Set(cat.Trade.SymbolInput, &domtest.Element{})
	page.Set(cat.Trade.QuotePanel, &domtest.Element{})
	page.Set(cat.Trade.LastPrice, &domtest.Element{TextValue: lastPrice})
	page.Set(cat.Trade.ActionDropdown, &domtest.Element{})
	page.Set(sideOption(req.Side), &domtest.Element{})
	page.Set(cat.Trade.QuantityInput, &domtest.Element{})
	page.Set(cat.Trade.OrderTypeButton, &domtest.Element{})
	page.Set(cat.Trade.MarketOption, &domtest.Element{})
	page.Set(cat.Trade.LimitOption, &domtest.Element{})
	page.Set(cat.Trade.LimitPriceInput, &domtest.Element{})
	page.Set(cat.Trade.PreviewButton, &domtest.Element{})
	page.Set(cat.Trade.PlaceOrderButton, &domtest.Element{})

	page.Set(cat.Trade.PreviewPanel.WithText(account), &domtest.Element{})
	page.Set(dom.Descriptor{By: dom.ByText, Value: "Symbol" + ticker, Exact: true}, &domtest.Element{})
	page.Set(dom.Descriptor{By: dom.ByText, Value: "Action" + req.Side.Title()}, &domtest.Element{})
	page.Set(dom.Descriptor{By: dom.ByText, Value: fmt.Sprintf("Quantity%d", req.Quantity)}, &domtest.Element{})

	return page
}

func TestTransactionDryRunSuccess(t *testing.T) {
	cat := DefaultCatalog()
	req := TradeRequest{Ticker: "aapl", Side: Buy, Quantity: 5, Account: "Z12345678", DryRun: true}
	page := tradePage(cat, req, "$10.00")
	client := NewClient(page, cat, testLogger())

	out := client.Transaction(req)

	if !out.Success {
		t.Fatalf("expected success, got %q (%s)", out.ErrorMessage, out.Alert)
	}
	if out.Alert != AlertSuccess {
		t.Errorf("alert = %s, want %s", out.Alert, AlertSuccess)
	}
	if out.ErrorMessage != "" {
		t.Errorf("error message = %q, want empty", out.ErrorMessage)
	}
	if !out.LastPrice.Equal(d("10.00")) {
		t.Errorf("last price = %s, want 10.00", out.LastPrice)
	}

	if got := page.Get(cat.Trade.QuantityInput).FillValue; got != "5" {
		t.Errorf("quantity filled = %q, want 5", got)
	}
	if page.Get(cat.Trade.MarketOption).Clicks != 1 {
		t.Error("expected market order type for a liquid name in regular hours")
	}
	if page.Get(cat.Trade.LimitPriceInput).FillValue != "" {
		t.Error("limit price should not be filled for a market order")
	}
	// Dry run must never place the order.
	if page.Get(cat.Trade.PlaceOrderButton).Clicks != 0 {
		t.Error("dry run clicked the place-order button")
	}
}

func TestTransactionSubmitsWhenNotDryRun(t *testing.T) {
	cat := DefaultCatalog()
	req := TradeRequest{Ticker: "AAPL", Side: Buy, Quantity: 1, Account: "Z12345678"}
	page := tradePage(cat, req, "$10.00")
	page.Set(cat.Trade.OrderReceived, &domtest.Element{})
	client := NewClient(page, cat, testLogger())

	out := client.Transaction(req)

	if !out.Success || out.Alert != AlertSuccess {
		t.Fatalf("outcome = %+v, want submitted success", out)
	}
	if page.Get(cat.Trade.PlaceOrderButton).Clicks != 1 {
		t.Error("expected exactly one place-order click")
	}
}

func TestTransactionSubmitWithoutConfirmation(t *testing.T) {
	cat := DefaultCatalog()
	req := TradeRequest{Ticker: "AAPL", Side: Buy, Quantity: 1, Account: "Z12345678"}
	page := tradePage(cat, req, "$10.00")
	// No order-received element: the confirmation never renders.
	client := NewClient(page, cat, testLogger())

	out := client.Transaction(req)

	if out.Success {
		t.Fatal("success asserted without an order-received confirmation")
	}
	if out.Alert != AlertTimeout {
		t.Errorf("alert = %s, want %s", out.Alert, AlertTimeout)
	}
}

func TestTransactionPennyStockUsesLimit(t *testing.T) {
	cat := DefaultCatalog()
	req := TradeRequest{Ticker: "PENY", Side: Buy, Quantity: 100, Account: "Z12345678", DryRun: true}
	page := tradePage(cat, req, "$0.50")
	client := NewClient(page, cat, testLogger())

	out := client.Transaction(req)

	if !out.Success {
		t.Fatalf("expected success, got %q", out.ErrorMessage)
	}
	if page.Get(cat.Trade.MarketOption).Clicks != 0 {
		t.Error("penny stock must not go to market")
	}
	if page.Get(cat.Trade.LimitOption).Clicks != 1 {
		t.Error("expected the limit order type to be selected")
	}
	if got := page.Get(cat.Trade.LimitPriceInput).FillValue; got != "0.51" {
		t.Errorf("limit price filled = %q, want 0.51", got)
	}
}

func TestTransactionExplicitLimitPrice(t *testing.T) {
	cat := DefaultCatalog()
	limit := d("123.45")
	req := TradeRequest{Ticker: "AAPL", Side: Sell, Quantity: 2, Account: "Z12345678", DryRun: true, LimitPrice: &limit}
	page := tradePage(cat, req, "$130.00")
	client := NewClient(page, cat, testLogger())

	out := client.Transaction(req)

	if !out.Success {
		t.Fatalf("expected success, got %q", out.ErrorMessage)
	}
	if got := page.Get(cat.Trade.LimitPriceInput).FillValue; got != "123.45" {
		t.Errorf("limit price filled = %q, want the explicit 123.45", got)
	}
}

func TestTransactionExtendedHours(t *testing.T) {
	cat := DefaultCatalog()
	req := TradeRequest{Ticker: "AAPL", Side: Buy, Quantity: 1, Account: "Z12345678", DryRun: true}

	t.Run("toggle off gets switched on", func(t *testing.T) {
		page := tradePage(cat, req, "$10.00")
		toggle := page.Set(cat.Trade.ExtendedButton, &domtest.Element{})
		page.Set(cat.Trade.ExtendedWrapper, &domtest.Element{Attrs: map[string]string{"class": "pvd-switch"}})
		client := NewClient(page, cat, testLogger())

		out := client.Transaction(req)

		if !out.Success {
			t.Fatalf("expected success, got %q", out.ErrorMessage)
		}
		if toggle.Clicks != 1 {
			t.Errorf("toggle clicks = %d, want 1", toggle.Clicks)
		}
		// Extended hours forces a limit order at 2-decimal precision.
		if got := page.Get(cat.Trade.LimitPriceInput).FillValue; got != "10.01" {
			t.Errorf("limit price filled = %q, want 10.01", got)
		}
	})

	t.Run("toggle already on is left alone", func(t *testing.T) {
		page := tradePage(cat, req, "$10.00")
		toggle := page.Set(cat.Trade.ExtendedButton, &domtest.Element{})
		page.Set(cat.Trade.ExtendedWrapper, &domtest.Element{Attrs: map[string]string{"class": "pvd-switch pvd-switch--on"}})
		client := NewClient(page, cat, testLogger())

		out := client.Transaction(req)

		if !out.Success {
			t.Fatalf("expected success, got %q", out.ErrorMessage)
		}
		if toggle.Clicks != 0 {
			t.Errorf("toggle clicks = %d, want 0", toggle.Clicks)
		}
	})
}

func TestTransactionRejectsInvalidInput(t *testing.T) {
	client := NewClient(domtest.NewPage(), DefaultCatalog(), testLogger())

	out := client.Transaction(TradeRequest{Ticker: "AAPL", Side: "hold", Quantity: 1, Account: "Z12345678"})
	if out.Success || !strings.Contains(out.ErrorMessage, "invalid side") {
		t.Errorf("outcome = %+v, want invalid-side failure", out)
	}

	out = client.Transaction(TradeRequest{Ticker: "AAPL", Side: Buy, Quantity: 0, Account: "Z12345678"})
	if out.Success || !strings.Contains(out.ErrorMessage, "invalid quantity") {
		t.Errorf("outcome = %+v, want invalid-quantity failure", out)
	}
}

// A sell against a position the account doesn't hold surfaces the brokerage's
// rejection text and classifies as NO_POSITION.
func TestTransactionNoPositionRejection(t *testing.T) {
	cat := DefaultCatalog()
	req := TradeRequest{Ticker: "AAPL", Side: Sell, Quantity: 1, Account: "Z12345678", DryRun: true}
	page := tradePage(cat, req, "$10.00")

	// The place-order control never appears; the error region carries the
	// rejection instead.
	page.Set(cat.Trade.PlaceOrderButton, &domtest.Element{Hidden: true})
	region := page.Set(cat.Trade.ErrorRegion, &domtest.Element{})
	region.SetChild(dom.Descriptor{By: dom.ByCSS, Value: "div", HasText: "critical"}, &domtest.Element{
		Rows: []*domtest.Element{
			{}, {},
			{TextValue: "critical   You do not own any shares of AAPL."},
		},
	})
	page.Set(cat.Trade.DialogClose, &domtest.Element{})

	client := NewClient(page, cat, testLogger())
	out := client.Transaction(req)

	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Alert != AlertNoPosition {
		t.Errorf("alert = %s, want %s", out.Alert, AlertNoPosition)
	}
	if out.ErrorMessage != "You do not own any shares of AAPL." {
		t.Errorf("message = %q, want cleaned rejection text", out.ErrorMessage)
	}
	if page.Get(cat.Trade.DialogClose).Clicks != 1 {
		t.Error("error dialog was not dismissed")
	}
}

func TestTransactionInlineAlertFallback(t *testing.T) {
	cat := DefaultCatalog()
	req := TradeRequest{Ticker: "AAPL", Side: Buy, Quantity: 1000, Account: "Z12345678", DryRun: true}
	page := tradePage(cat, req, "$10.00")

	page.Set(cat.Trade.PlaceOrderButton, &domtest.Element{Hidden: true})
	page.Set(cat.Trade.InlineAlert, &domtest.Element{TextValue: "Insufficient buying power for this order."})
	page.Set(cat.Trade.DialogClose, &domtest.Element{})

	client := NewClient(page, cat, testLogger())
	out := client.Transaction(req)

	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Alert != AlertInsufficientFunds {
		t.Errorf("alert = %s, want %s", out.Alert, AlertInsufficientFunds)
	}
}

// When no error surface is readable the page is reloaded so the undismissed
// modal can't wedge the next transaction.
func TestTransactionUnreadableErrorReloads(t *testing.T) {
	cat := DefaultCatalog()
	req := TradeRequest{Ticker: "AAPL", Side: Buy, Quantity: 1, Account: "Z12345678", DryRun: true}
	page := tradePage(cat, req, "$10.00")
	page.Set(cat.Trade.PlaceOrderButton, &domtest.Element{Hidden: true})

	client := NewClient(page, cat, testLogger())
	out := client.Transaction(req)

	if out.Success {
		t.Fatal("expected failure")
	}
	if out.ErrorMessage != "could not retrieve error message" {
		t.Errorf("message = %q", out.ErrorMessage)
	}
	if page.Reloads != 1 {
		t.Errorf("reloads = %d, want 1", page.Reloads)
	}
}

func TestTransactionPreviewMismatch(t *testing.T) {
	cat := DefaultCatalog()
	req := TradeRequest{Ticker: "AAPL", Side: Buy, Quantity: 5, Account: "Z12345678", DryRun: true}
	page := tradePage(cat, req, "$10.00")

	// The preview renders a different quantity than requested.
	page.Set(dom.Descriptor{By: dom.ByText, Value: "Quantity5"}, &domtest.Element{Hidden: true})
	page.Set(dom.Descriptor{By: dom.ByText, Value: "Quantity50"}, &domtest.Element{})

	client := NewClient(page, cat, testLogger())
	out := client.Transaction(req)

	if out.Success {
		t.Fatal("expected failure on preview mismatch")
	}
	if out.ErrorMessage != "order preview doesn't match expected values" {
		t.Errorf("message = %q", out.ErrorMessage)
	}
}

func TestSelectSideRetryBudget(t *testing.T) {
	cat := DefaultCatalog()
	req := TradeRequest{Ticker: "AAPL", Side: Buy, Quantity: 1, Account: "Z12345678", DryRun: true}
	page := tradePage(cat, req, "$10.00")

	dropdown := page.Get(cat.Trade.ActionDropdown)
	option := page.Get(sideOption(Buy))
	option.Hidden = true
	option.ClickErr = fmt.Errorf("%w: option never attached", dom.ErrTimeout)

	client := NewClient(page, cat, testLogger())
	out := client.Transaction(req)

	if out.Success {
		t.Fatal("expected failure")
	}
	want := `could not select "buy" after 5 attempts`
	if out.ErrorMessage != want {
		t.Errorf("message = %q, want %q", out.ErrorMessage, want)
	}
	// Each attempt force-reopens the dropdown once; no 6th attempt.
	if dropdown.Clicks != 5 {
		t.Errorf("dropdown clicks = %d, want exactly 5", dropdown.Clicks)
	}
}

func TestSelectSideRecoversAfterReopen(t *testing.T) {
	cat := DefaultCatalog()
	req := TradeRequest{Ticker: "AAPL", Side: Buy, Quantity: 1, Account: "Z12345678", DryRun: true}
	page := tradePage(cat, req, "$10.00")

	dropdown := page.Get(cat.Trade.ActionDropdown)
	option := page.Get(sideOption(Buy))
	option.Hidden = true
	option.ClickErr = fmt.Errorf("%w: option never attached", dom.ErrTimeout)
	dropdown.OnClick = func() error {
		if dropdown.Clicks == 3 {
			option.Hidden = false
			option.ClickErr = nil
		}
		return nil
	}

	client := NewClient(page, cat, testLogger())
	out := client.Transaction(req)

	if !out.Success {
		t.Fatalf("expected success after recovery, got %q", out.ErrorMessage)
	}
	if dropdown.Clicks != 3 {
		t.Errorf("dropdown clicks = %d, want 3", dropdown.Clicks)
	}
}

// The account selector is allowed one reload when the option list is stale.
func TestSelectAccountReloadRetry(t *testing.T) {
	cat := DefaultCatalog()
	req := TradeRequest{Ticker: "AAPL", Side: Buy, Quantity: 1, Account: "Z12345678", DryRun: true}
	page := tradePage(cat, req, "$10.00")

	option := page.Get(cat.Trade.AccountOption.WithText("Z12345678"))
	option.Hidden = true
	page.OnReload = func() { option.Hidden = false }

	client := NewClient(page, cat, testLogger())
	out := client.Transaction(req)

	if !out.Success {
		t.Fatalf("expected success after reload, got %q", out.ErrorMessage)
	}
	if page.Reloads != 1 {
		t.Errorf("reloads = %d, want 1", page.Reloads)
	}
}

func TestSelectAccountMissingAfterReload(t *testing.T) {
	cat := DefaultCatalog()
	req := TradeRequest{Ticker: "AAPL", Side: Buy, Quantity: 1, Account: "Z99999999", DryRun: true}
	page := tradePage(cat, req, "$10.00")
	page.Get(cat.Trade.AccountOption.WithText("Z99999999")).Hidden = true

	client := NewClient(page, cat, testLogger())
	out := client.Transaction(req)

	if out.Success {
		t.Fatal("expected failure for an account the selector never lists")
	}
	if out.Alert != AlertUnknown {
		t.Errorf("alert = %s, want %s", out.Alert, AlertUnknown)
	}
	if !strings.Contains(out.ErrorMessage, "Z99999999") {
		t.Errorf("message = %q, want it to name the account", out.ErrorMessage)
	}
}

// Success always carries the SUCCESS alert and no error message.
func TestOutcomeInvariant(t *testing.T) {
	cat := DefaultCatalog()
	req := TradeRequest{Ticker: "AAPL", Side: Buy, Quantity: 5, Account: "Z12345678", DryRun: true}
	page := tradePage(cat, req, "$10.00")
	client := NewClient(page, cat, testLogger())

	out := client.Transaction(req)
	if out.Success && (out.Alert != AlertSuccess || out.ErrorMessage != "") {
		t.Errorf("success outcome violates invariant: %+v", out)
	}
}
