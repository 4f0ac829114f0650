package fidelity

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hadoku/fidelity-worker/internal/dom"
)

// Catalog is the versioned table of page URLs, element descriptors, and wait
// bounds for the brokerage's current markup. It is the part of the system
// most likely to break when the site changes, so it is data, not inline
// literals: a YAML file with the same shape can override any entry.
type Catalog struct {
	Version string `yaml:"version"`

	URLs struct {
		Login     string `yaml:"login"`
		Summary   string `yaml:"summary"`
		Positions string `yaml:"positions"`
		Trade     string `yaml:"trade"`
	} `yaml:"urls"`

	// LoadingSpinners are waited to hidden, in order, after navigations and
	// preview/submit actions.
	LoadingSpinners []dom.Descriptor `yaml:"loading_spinners"`

	Login struct {
		Username      dom.Descriptor `yaml:"username"`
		Password      dom.Descriptor `yaml:"password"`
		Submit        dom.Descriptor `yaml:"submit"`
		Widget        dom.Descriptor `yaml:"widget"`
		TotpHeading   dom.Descriptor `yaml:"totp_heading"`
		TotpInput     dom.Descriptor `yaml:"totp_input"`
		TotpContinue  dom.Descriptor `yaml:"totp_continue"`
		TryAnotherWay dom.Descriptor `yaml:"try_another_way"`
		TextMeCode    dom.Descriptor `yaml:"text_me_code"`
		SaveDeviceBox dom.Descriptor `yaml:"save_device_box"`
	} `yaml:"login"`

	Trade struct {
		AccountDropdown  dom.Descriptor `yaml:"account_dropdown"`
		AccountOption    dom.Descriptor `yaml:"account_option"`
		SymbolInput      dom.Descriptor `yaml:"symbol_input"`
		QuotePanel       dom.Descriptor `yaml:"quote_panel"`
		LastPrice        dom.Descriptor `yaml:"last_price"`
		ExtendedWrapper  dom.Descriptor `yaml:"extended_wrapper"`
		ExtendedButton   dom.Descriptor `yaml:"extended_button"`
		ExtendedLegacy   dom.Descriptor `yaml:"extended_legacy"`
		ExtendedLegacyOn dom.Descriptor `yaml:"extended_legacy_on"`
		ExpandTicket     dom.Descriptor `yaml:"expand_ticket"`
		CalculateShares  dom.Descriptor `yaml:"calculate_shares"`
		ActionDropdown   dom.Descriptor `yaml:"action_dropdown"`
		QuantityInput    dom.Descriptor `yaml:"quantity_input"`
		OrderTypeButton  dom.Descriptor `yaml:"order_type_button"`
		LimitOption      dom.Descriptor `yaml:"limit_option"`
		MarketOption     dom.Descriptor `yaml:"market_option"`
		LimitPriceInput  dom.Descriptor `yaml:"limit_price_input"`
		PreviewButton    dom.Descriptor `yaml:"preview_button"`
		PlaceOrderButton dom.Descriptor `yaml:"place_order_button"`
		ErrorRegion      dom.Descriptor `yaml:"error_region"`
		InlineAlert      dom.Descriptor `yaml:"inline_alert"`
		DialogClose      dom.Descriptor `yaml:"dialog_close"`
		PreviewPanel     dom.Descriptor `yaml:"preview_panel"`
		OrderReceived    dom.Descriptor `yaml:"order_received"`
	} `yaml:"trade"`

	Positions struct {
		AccountRow    dom.Descriptor `yaml:"account_row"`
		AccountNumber dom.Descriptor `yaml:"account_number"`
		AccountLabel  dom.Descriptor `yaml:"account_label"`
		Balance       dom.Descriptor `yaml:"balance"`
		PositionRow   dom.Descriptor `yaml:"position_row"`

		// Grid-layout cells, tried first.
		GridTicker   dom.Descriptor `yaml:"grid_ticker"`
		GridQuantity dom.Descriptor `yaml:"grid_quantity"`
		GridPrice    dom.Descriptor `yaml:"grid_price"`
		GridValue    dom.Descriptor `yaml:"grid_value"`

		// Plain-table cells, the fallback layout.
		TableTicker   dom.Descriptor `yaml:"table_ticker"`
		TableQuantity dom.Descriptor `yaml:"table_quantity"`
		TablePrice    dom.Descriptor `yaml:"table_price"`
		TableValue    dom.Descriptor `yaml:"table_value"`
	} `yaml:"positions"`

	Timeouts struct {
		Short   time.Duration `yaml:"short"`
		Default time.Duration `yaml:"default"`
		Login   time.Duration `yaml:"login"`
		Submit  time.Duration `yaml:"submit"`
	} `yaml:"timeouts"`
}

// DefaultCatalog returns the catalog for the site's current markup.
func DefaultCatalog() *Catalog {
	c := &Catalog{Version: "2025-08"}

	c.URLs.Login = "https://digital.fidelity.com/prgw/digital/login/full-page"
	c.URLs.Summary = "https://digital.fidelity.com/ftgw/digital/portfolio/summary"
	c.URLs.Positions = "https://digital.fidelity.com/ftgw/digital/portfolio/positions"
	c.URLs.Trade = "https://digital.fidelity.com/ftgw/digital/trade-equity/index/orderEntry"

	c.LoadingSpinners = []dom.Descriptor{
		{By: dom.ByCSS, Value: "div:nth-child(2) > .loading-spinner-mask-after"},
		{By: dom.ByCSS, Value: ".pvd-spinner__mask-inner"},
		{By: dom.ByCSS, Value: "pvd-loading-spinner"},
	}

	c.Login.Username = dom.Descriptor{By: dom.ByLabel, Value: "Username", Exact: true}
	c.Login.Password = dom.Descriptor{By: dom.ByLabel, Value: "Password", Exact: true}
	c.Login.Submit = dom.Descriptor{By: dom.ByRole, Value: "button", Name: "Log in"}
	c.Login.Widget = dom.Descriptor{By: dom.ByCSS, Value: "#dom-widget div"}
	c.Login.TotpHeading = dom.Descriptor{By: dom.ByRole, Value: "heading", Name: "Enter the code from your"}
	c.Login.TotpInput = dom.Descriptor{By: dom.ByPlaceholder, Value: "XXXXXX"}
	c.Login.TotpContinue = dom.Descriptor{By: dom.ByRole, Value: "button", Name: "Continue"}
	c.Login.TryAnotherWay = dom.Descriptor{By: dom.ByRole, Value: "link", Name: "Try another way"}
	c.Login.TextMeCode = dom.Descriptor{By: dom.ByRole, Value: "button", Name: "Text me the code"}
	c.Login.SaveDeviceBox = dom.Descriptor{By: dom.ByCSS, Value: "label", HasText: "Don't ask me again on this"}

	c.Trade.AccountDropdown = dom.Descriptor{By: dom.ByCSS, Value: "#dest-acct-dropdown"}
	c.Trade.AccountOption = dom.Descriptor{By: dom.ByCSS, Value: "button[role='option']"}
	c.Trade.SymbolInput = dom.Descriptor{By: dom.ByLabel, Value: "Symbol", Exact: true}
	c.Trade.QuotePanel = dom.Descriptor{By: dom.ByCSS, Value: "#quote-panel"}
	c.Trade.LastPrice = dom.Descriptor{By: dom.ByCSS, Value: "#eq-ticket__last-price > span.last-price"}
	c.Trade.ExtendedWrapper = dom.Descriptor{By: dom.ByCSS, Value: ".eq-ticket__extendedhour-toggle"}
	c.Trade.ExtendedButton = dom.Descriptor{By: dom.ByCSS, Value: "#eq-ticket_extendedhour"}
	c.Trade.ExtendedLegacy = dom.Descriptor{By: dom.ByText, Value: "Extended hours trading"}
	c.Trade.ExtendedLegacyOn = dom.Descriptor{By: dom.ByText, Value: "Extended hours trading: OffUntil 8:00 PM ET"}
	c.Trade.ExpandTicket = dom.Descriptor{By: dom.ByRole, Value: "button", Name: "View expanded ticket"}
	c.Trade.CalculateShares = dom.Descriptor{By: dom.ByRole, Value: "button", Name: "Calculate shares"}
	c.Trade.ActionDropdown = dom.Descriptor{By: dom.ByCSS, Value: ".eq-ticket-action-label"}
	c.Trade.QuantityInput = dom.Descriptor{By: dom.ByCSS, Value: "#eqt-shared-quantity"}
	c.Trade.OrderTypeButton = dom.Descriptor{By: dom.ByCSS, Value: "#dest-dropdownlist-button-ordertype > span:nth-child(1)"}
	c.Trade.LimitOption = dom.Descriptor{By: dom.ByRole, Value: "option", Name: "Limit", Exact: true}
	c.Trade.MarketOption = dom.Descriptor{By: dom.ByRole, Value: "option", Name: "Market", Exact: true}
	c.Trade.LimitPriceInput = dom.Descriptor{By: dom.ByLabel, Value: "Limit price"}
	c.Trade.PreviewButton = dom.Descriptor{By: dom.ByRole, Value: "button", Name: "Preview order"}
	c.Trade.PlaceOrderButton = dom.Descriptor{By: dom.ByRole, Value: "button", Name: "Place order"}
	c.Trade.ErrorRegion = dom.Descriptor{By: dom.ByLabel, Value: "Error"}
	c.Trade.InlineAlert = dom.Descriptor{By: dom.ByCSS, Value: `.pvd-inline-alert__content font[color="red"]`}
	c.Trade.DialogClose = dom.Descriptor{By: dom.ByRole, Value: "button", Name: "Close dialog"}
	c.Trade.PreviewPanel = dom.Descriptor{By: dom.ByCSS, Value: "preview"}
	c.Trade.OrderReceived = dom.Descriptor{By: dom.ByText, Value: "Order received", Exact: true}

	c.Positions.AccountRow = dom.Descriptor{By: dom.ByCSS, Value: ".ag-row-group[row-index]"}
	c.Positions.AccountNumber = dom.Descriptor{By: dom.ByCSS, Value: ".posweb-cell-account_secondary"}
	c.Positions.AccountLabel = dom.Descriptor{By: dom.ByCSS, Value: ".posweb-cell-account_primary"}
	c.Positions.Balance = dom.Descriptor{By: dom.ByCSS, Value: ".posweb-cell-account_total"}
	c.Positions.PositionRow = dom.Descriptor{By: dom.ByCSS, Value: ".ag-row[row-id]"}
	c.Positions.GridTicker = dom.Descriptor{By: dom.ByCSS, Value: ".posweb-cell-symbol-name"}
	c.Positions.GridQuantity = dom.Descriptor{By: dom.ByCSS, Value: "[col-id='quantity'] .ag-cell-value"}
	c.Positions.GridPrice = dom.Descriptor{By: dom.ByCSS, Value: "[col-id='lastPrice'] .ag-cell-value"}
	c.Positions.GridValue = dom.Descriptor{By: dom.ByCSS, Value: "[col-id='currentValue'] .ag-cell-value"}
	c.Positions.TableTicker = dom.Descriptor{By: dom.ByCSS, Value: "td.symbol"}
	c.Positions.TableQuantity = dom.Descriptor{By: dom.ByCSS, Value: "td.quantity"}
	c.Positions.TablePrice = dom.Descriptor{By: dom.ByCSS, Value: "td.last-price"}
	c.Positions.TableValue = dom.Descriptor{By: dom.ByCSS, Value: "td.current-value"}

	c.Timeouts.Short = 5 * time.Second
	c.Timeouts.Default = 30 * time.Second
	c.Timeouts.Login = 20 * time.Second
	c.Timeouts.Submit = 10 * time.Second

	return c
}

// LoadCatalog returns the default catalog with overrides from the YAML file
// at path applied on top. Only fields present in the file are replaced.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	return c, nil
}
