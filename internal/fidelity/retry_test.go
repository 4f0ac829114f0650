package fidelity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hadoku/fidelity-worker/internal/dom"
	"github.com/hadoku/fidelity-worker/internal/dom/domtest"
)

func TestRetryPolicyRun(t *testing.T) {
	timeout := fmt.Errorf("%w: element detached", dom.ErrTimeout)

	t.Run("first attempt succeeds", func(t *testing.T) {
		attempts := 0
		p := RetryPolicy{MaxAttempts: 5}
		err := p.Run(domtest.NewPage(), "select option", func() error {
			attempts++
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("recovers within budget", func(t *testing.T) {
		attempts := 0
		p := RetryPolicy{MaxAttempts: 5}
		err := p.Run(domtest.NewPage(), "select option", func() error {
			attempts++
			if attempts < 3 {
				return timeout
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("exhaustion names action and count", func(t *testing.T) {
		attempts := 0
		p := RetryPolicy{MaxAttempts: 5}
		err := p.Run(domtest.NewPage(), `select "buy"`, func() error {
			attempts++
			return timeout
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if attempts != 5 {
			t.Errorf("attempts = %d, want exactly 5", attempts)
		}
		want := `could not select "buy" after 5 attempts`
		if err.Error() != want {
			t.Errorf("error = %q, want %q", err.Error(), want)
		}
		// Exhausting the budget is its own failure kind, not a timeout.
		if errors.Is(err, dom.ErrTimeout) {
			t.Error("exhaustion error should not unwrap to the timeout sentinel")
		}
	})

	t.Run("non-retryable fault aborts immediately", func(t *testing.T) {
		attempts := 0
		fault := errors.New("page crashed")
		p := RetryPolicy{MaxAttempts: 5}
		err := p.Run(domtest.NewPage(), "select option", func() error {
			attempts++
			return fault
		})
		if !errors.Is(err, fault) {
			t.Fatalf("error = %v, want the original fault", err)
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})
}

func TestRetryPolicyRetryable(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5}
	if !p.Retryable(fmt.Errorf("%w: not visible", dom.ErrTimeout)) {
		t.Error("wrapped timeout should be retryable")
	}
	if p.Retryable(errors.New("connection refused")) {
		t.Error("arbitrary fault should not be retryable")
	}
}
