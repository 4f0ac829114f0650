package browser

import (
	"errors"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/hadoku/fidelity-worker/internal/dom"
)

// Page adapts a playwright page to dom.Page.
type Page struct {
	page playwright.Page
}

var _ dom.Page = (*Page)(nil)

func (p *Page) Goto(url string) error {
	_, err := p.page.Goto(url)
	return normalizeErr(err)
}

func (p *Page) URL() string { return p.page.URL() }

func (p *Page) Reload() error {
	_, err := p.page.Reload()
	return normalizeErr(err)
}

func (p *Page) Find(d dom.Descriptor) dom.Element {
	return &element{locator: resolvePage(p.page, d)}
}

func (p *Page) WaitForURL(substr string, timeout time.Duration) error {
	err := p.page.WaitForURL("**"+substr+"**", playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return normalizeErr(err)
}

func (p *Page) Sleep(d time.Duration) {
	p.page.WaitForTimeout(float64(d.Milliseconds()))
}

// resolvePage and resolveLocator map one descriptor to a playwright locator;
// they are split because page- and locator-scoped lookups take different
// option types.

func resolvePage(page playwright.Page, d dom.Descriptor) playwright.Locator {
	var l playwright.Locator
	switch d.By {
	case dom.ByRole:
		opts := playwright.PageGetByRoleOptions{Exact: playwright.Bool(d.Exact)}
		if d.Name != "" {
			opts.Name = d.Name
		}
		l = page.GetByRole(playwright.AriaRole(strings.ToLower(d.Value)), opts)
	case dom.ByLabel:
		l = page.GetByLabel(d.Value, playwright.PageGetByLabelOptions{Exact: playwright.Bool(d.Exact)})
	case dom.ByText:
		l = page.GetByText(d.Value, playwright.PageGetByTextOptions{Exact: playwright.Bool(d.Exact)})
	case dom.ByPlaceholder:
		l = page.GetByPlaceholder(d.Value, playwright.PageGetByPlaceholderOptions{Exact: playwright.Bool(d.Exact)})
	default:
		l = page.Locator(d.Value)
	}
	return filterHasText(l, d)
}

func resolveLocator(scope playwright.Locator, d dom.Descriptor) playwright.Locator {
	var l playwright.Locator
	switch d.By {
	case dom.ByRole:
		opts := playwright.LocatorGetByRoleOptions{Exact: playwright.Bool(d.Exact)}
		if d.Name != "" {
			opts.Name = d.Name
		}
		l = scope.GetByRole(playwright.AriaRole(strings.ToLower(d.Value)), opts)
	case dom.ByLabel:
		l = scope.GetByLabel(d.Value, playwright.LocatorGetByLabelOptions{Exact: playwright.Bool(d.Exact)})
	case dom.ByText:
		l = scope.GetByText(d.Value, playwright.LocatorGetByTextOptions{Exact: playwright.Bool(d.Exact)})
	case dom.ByPlaceholder:
		l = scope.GetByPlaceholder(d.Value, playwright.LocatorGetByPlaceholderOptions{Exact: playwright.Bool(d.Exact)})
	default:
		l = scope.Locator(d.Value)
	}
	return filterHasText(l, d)
}

func filterHasText(l playwright.Locator, d dom.Descriptor) playwright.Locator {
	if d.HasText != "" {
		return l.Filter(playwright.LocatorFilterOptions{HasText: d.HasText})
	}
	return l
}

type element struct {
	locator playwright.Locator
}

var _ dom.Element = (*element)(nil)

func (e *element) Click(opts dom.ClickOptions) error {
	options := playwright.LocatorClickOptions{}
	if opts.Force {
		options.Force = playwright.Bool(true)
	}
	if opts.Timeout > 0 {
		options.Timeout = playwright.Float(float64(opts.Timeout.Milliseconds()))
	}
	return normalizeErr(e.locator.First().Click(options))
}

func (e *element) Fill(text string) error {
	return normalizeErr(e.locator.First().Fill(text))
}

func (e *element) Press(key string) error {
	return normalizeErr(e.locator.First().Press(key))
}

func (e *element) Check() error {
	return normalizeErr(e.locator.First().Check())
}

func (e *element) Text() (string, error) {
	text, err := e.locator.First().InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(2000),
	})
	return text, normalizeErr(err)
}

func (e *element) Attribute(name string) (string, error) {
	value, err := e.locator.First().GetAttribute(name)
	return value, normalizeErr(err)
}

func (e *element) Visible() (bool, error) {
	visible, err := e.locator.First().IsVisible()
	return visible, normalizeErr(err)
}

func (e *element) Count() (int, error) {
	n, err := e.locator.Count()
	return n, normalizeErr(err)
}

func (e *element) Nth(i int) dom.Element {
	return &element{locator: e.locator.Nth(i)}
}

func (e *element) Find(d dom.Descriptor) dom.Element {
	return &element{locator: resolveLocator(e.locator, d)}
}

func (e *element) WaitFor(state dom.State, timeout time.Duration) error {
	s := playwright.WaitForSelectorStateVisible
	if state == dom.StateHidden {
		s = playwright.WaitForSelectorStateHidden
	}
	err := e.locator.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   s,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return normalizeErr(err)
}

// normalizeErr folds the runtime's timeout errors into dom.ErrTimeout so the
// core can branch on errors.Is without importing playwright.
func normalizeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) || strings.Contains(err.Error(), "Timeout") {
		return dom.ErrTimeout
	}
	return err
}
