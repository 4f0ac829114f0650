package fidelity

import (
	"errors"
	"fmt"
	"time"

	"github.com/hadoku/fidelity-worker/internal/dom"
)

// RetryPolicy is a counted retry budget for a flaky UI interaction: how many
// attempts, how long to pause between them, and which failures count against
// the budget. It exists so tests can inject MaxAttempts=1 policies instead of
// exercising ad-hoc loops.
type RetryPolicy struct {
	MaxAttempts int
	Pause       time.Duration
}

// Retryable reports whether err should consume a retry attempt. Only
// timeout-kind failures do; anything else is a real fault and aborts the
// loop immediately rather than being masked as "selection failed".
func (p RetryPolicy) Retryable(err error) bool {
	return errors.Is(err, dom.ErrTimeout)
}

// Run executes attempt up to the budget, sleeping on the page between tries.
// The returned error names the exhausted action and the attempt count.
func (p RetryPolicy) Run(page dom.Page, action string, attempt func() error) error {
	var err error
	for i := 0; i < p.MaxAttempts; i++ {
		err = attempt()
		if err == nil {
			return nil
		}
		if !p.Retryable(err) {
			return err
		}
		if i < p.MaxAttempts-1 {
			page.Sleep(p.Pause)
		}
	}
	// Deliberately not wrapping the last timeout: exhausting the budget is
	// its own failure kind, named after the action, not a generic timeout.
	return fmt.Errorf("could not %s after %d attempts", action, p.MaxAttempts)
}
