// Package dom abstracts the rendered page the trading core drives: locate an
// element by descriptor, read or write its state, and wait (bounded) for a
// visibility condition. The browser runtime implements these interfaces; the
// core never imports it directly, which is what keeps the pipeline testable
// against scripted fakes.
package dom

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned by every bounded wait that expires. Callers branch
// with errors.Is; no raw runtime timeout ever crosses the core boundary.
var ErrTimeout = errors.New("wait timed out")

// Strategy selects how a Descriptor is resolved against the page.
type Strategy string

const (
	ByCSS         Strategy = "css"
	ByRole        Strategy = "role"
	ByLabel       Strategy = "label"
	ByText        Strategy = "text"
	ByPlaceholder Strategy = "placeholder"
)

// State is a visibility condition for WaitFor.
type State string

const (
	StateVisible State = "visible"
	StateHidden  State = "hidden"
)

// Descriptor addresses one element (or set of elements) on a page. Value is
// the selector, label, text, or placeholder depending on the strategy; Name
// carries the accessible name for role lookups. HasText narrows a match to
// elements containing the given text.
type Descriptor struct {
	By      Strategy `yaml:"by"`
	Value   string   `yaml:"value"`
	Name    string   `yaml:"name,omitempty"`
	Exact   bool     `yaml:"exact,omitempty"`
	HasText string   `yaml:"has_text,omitempty"`
}

// String returns a stable identity for the descriptor, used for logging and
// as the lookup key in fakes.
func (d Descriptor) String() string {
	s := fmt.Sprintf("%s:%s", d.By, d.Value)
	if d.Name != "" {
		s += "[name=" + d.Name + "]"
	}
	if d.HasText != "" {
		s += "[hasText=" + d.HasText + "]"
	}
	return s
}

// WithText returns a copy of the descriptor narrowed to elements containing
// the given text.
func (d Descriptor) WithText(text string) Descriptor {
	d.HasText = text
	return d
}

// ClickOptions tunes a click. A zero value is a plain click with the runtime
// default timeout.
type ClickOptions struct {
	Force   bool
	Timeout time.Duration
}

// Element is one located element. Lookups are lazy: a descriptor that matches
// nothing yields an Element whose reads report absence rather than an error
// at Find time.
type Element interface {
	Click(opts ClickOptions) error
	Fill(text string) error
	Press(key string) error
	Check() error

	Text() (string, error)
	Attribute(name string) (string, error)
	Visible() (bool, error)

	Count() (int, error)
	Nth(i int) Element
	Find(d Descriptor) Element

	WaitFor(state State, timeout time.Duration) error
}

// Page is one browser tab, already navigated into the authenticated session.
type Page interface {
	Goto(url string) error
	URL() string
	Reload() error
	Find(d Descriptor) Element

	// WaitForURL blocks until the current URL contains substr or the timeout
	// elapses (ErrTimeout).
	WaitForURL(substr string, timeout time.Duration) error

	// Sleep pauses the flow. Fakes make this a no-op so tests stay fast.
	Sleep(d time.Duration)
}
