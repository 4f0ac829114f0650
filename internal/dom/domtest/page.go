// Package domtest provides an in-memory dom.Page for driving the trading
// core in tests. Elements are registered by descriptor and can carry click
// hooks that mutate other elements, which is enough to script the order
// ticket's stateful widgets.
package domtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/hadoku/fidelity-worker/internal/dom"
)

// Page is a scripted fake page.
type Page struct {
	CurrentURL string
	Reloads    int

	// OnGoto and OnReload, when set, run after the URL/reload bookkeeping.
	OnGoto   func(url string)
	OnReload func()

	elements map[string]*Element
}

// NewPage returns an empty fake page.
func NewPage() *Page {
	return &Page{elements: make(map[string]*Element)}
}

// Set registers the element under the descriptor's identity. Registering a
// descriptor twice replaces the previous element.
func (p *Page) Set(d dom.Descriptor, e *Element) *Element {
	e.page = p
	p.elements[d.String()] = e
	return e
}

// Get returns the element registered for d, or nil.
func (p *Page) Get(d dom.Descriptor) *Element {
	return p.elements[d.String()]
}

func (p *Page) Goto(url string) error {
	p.CurrentURL = url
	if p.OnGoto != nil {
		p.OnGoto(url)
	}
	return nil
}

func (p *Page) URL() string { return p.CurrentURL }

func (p *Page) Reload() error {
	p.Reloads++
	if p.OnReload != nil {
		p.OnReload()
	}
	return nil
}

func (p *Page) Find(d dom.Descriptor) dom.Element {
	if e, ok := p.elements[d.String()]; ok {
		return e
	}
	return &Element{page: p, missing: true, key: d.String()}
}

func (p *Page) WaitForURL(substr string, _ time.Duration) error {
	if strings.Contains(p.CurrentURL, substr) {
		return nil
	}
	return dom.ErrTimeout
}

func (p *Page) Sleep(time.Duration) {}

// Element is a scripted fake element. The zero value is a visible, empty
// element; Missing and Hidden flip its presence checks.
type Element struct {
	TextValue string
	Attrs     map[string]string
	Hidden    bool

	// FillValue records the last Fill; Clicks counts Click calls; Checked is
	// set by Check.
	FillValue string
	Clicks    int
	Pressed   []string
	Checked   bool

	// ClickErr is returned by every Click. OnClick, when set, runs first and
	// its error (if any) wins; hooks typically mutate sibling elements.
	ClickErr error
	OnClick  func() error

	// Rows backs Count/Nth for collection descriptors.
	Rows []*Element

	// children resolves Find on this element.
	children map[string]*Element

	page    *Page
	missing bool
	key     string
}

// SetChild registers a nested element resolved by Find relative to this one.
func (e *Element) SetChild(d dom.Descriptor, c *Element) *Element {
	if e.children == nil {
		e.children = make(map[string]*Element)
	}
	c.page = e.page
	e.children[d.String()] = c
	return c
}

func (e *Element) Click(_ dom.ClickOptions) error {
	if e.missing {
		return fmt.Errorf("%w: no element for %s", dom.ErrTimeout, e.key)
	}
	e.Clicks++
	if e.OnClick != nil {
		if err := e.OnClick(); err != nil {
			return err
		}
	}
	return e.ClickErr
}

func (e *Element) Fill(text string) error {
	if e.missing {
		return fmt.Errorf("%w: no element for %s", dom.ErrTimeout, e.key)
	}
	e.FillValue = text
	return nil
}

func (e *Element) Press(key string) error {
	if e.missing {
		return fmt.Errorf("%w: no element for %s", dom.ErrTimeout, e.key)
	}
	e.Pressed = append(e.Pressed, key)
	return nil
}

func (e *Element) Check() error {
	if e.missing {
		return fmt.Errorf("%w: no element for %s", dom.ErrTimeout, e.key)
	}
	e.Checked = true
	return nil
}

func (e *Element) Text() (string, error) {
	if e.missing {
		return "", fmt.Errorf("%w: no element for %s", dom.ErrTimeout, e.key)
	}
	return e.TextValue, nil
}

func (e *Element) Attribute(name string) (string, error) {
	if e.missing {
		return "", fmt.Errorf("%w: no element for %s", dom.ErrTimeout, e.key)
	}
	return e.Attrs[name], nil
}

func (e *Element) Visible() (bool, error) {
	return !e.missing && !e.Hidden, nil
}

func (e *Element) Count() (int, error) {
	if e.missing {
		return 0, nil
	}
	if e.Rows != nil {
		return len(e.Rows), nil
	}
	return 1, nil
}

func (e *Element) Nth(i int) dom.Element {
	if e.Rows != nil && i >= 0 && i < len(e.Rows) {
		r := e.Rows[i]
		r.page = e.page
		return r
	}
	return &Element{page: e.page, missing: true, key: fmt.Sprintf("%s[%d]", e.key, i)}
}

func (e *Element) Find(d dom.Descriptor) dom.Element {
	if c, ok := e.children[d.String()]; ok {
		return c
	}
	return &Element{page: e.page, missing: true, key: e.key + ">" + d.String()}
}

// WaitFor resolves immediately against the element's current state: fakes
// have no asynchronous rendering.
func (e *Element) WaitFor(state dom.State, _ time.Duration) error {
	visible := !e.missing && !e.Hidden
	switch state {
	case dom.StateVisible:
		if visible {
			return nil
		}
	case dom.StateHidden:
		if !visible {
			return nil
		}
	}
	return dom.ErrTimeout
}
