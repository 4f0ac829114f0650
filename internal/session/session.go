// Package session owns the one authenticated browser session behind the
// service. It replaces the usual module-global client with an explicitly
// owned handle: the manager is created once, passed to the API layer, and
// serializes every operation against the shared browser.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/hadoku/fidelity-worker/internal/browser"
	"github.com/hadoku/fidelity-worker/internal/config"
	"github.com/hadoku/fidelity-worker/internal/fidelity"
	"github.com/hadoku/fidelity-worker/internal/journal"
	"github.com/hadoku/fidelity-worker/internal/quotes"
)

var (
	// ErrNoCredentials means the environment carries no usable login.
	ErrNoCredentials = errors.New("no credentials configured")

	// ErrNotAuthenticated means login was attempted and did not produce a
	// usable session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// divergenceAlert is the scraped-vs-reference price gap worth warning about.
var divergenceAlert = decimal.RequireFromString("0.01")

// Manager guards the browser session. All operations take the mutex: the UI
// is stateful, so trades serialize rather than interleave, and a refresh
// tears the browser down and back up as its own serialization point.
type Manager struct {
	cfg     *config.Config
	catalog *fidelity.Catalog
	log     *slog.Logger
	journal *journal.Journal
	checker *quotes.Checker

	mu            sync.Mutex
	sess          *browser.Session
	client        *fidelity.Client
	authenticated bool

	// launch is swappable for tests.
	launch func() (*browser.Session, error)
}

// NewManager creates an unauthenticated manager. Call Authenticate (or let
// the first trade do it) before trading.
func NewManager(cfg *config.Config, cat *fidelity.Catalog, log *slog.Logger, j *journal.Journal, checker *quotes.Checker) *Manager {
	if cat == nil {
		cat = fidelity.DefaultCatalog()
	}
	m := &Manager{
		cfg:     cfg,
		catalog: cat,
		log:     log,
		journal: j,
		checker: checker,
	}
	m.launch = func() (*browser.Session, error) {
		return browser.Launch(browser.Options{
			Headless:    cfg.Browser.Headless,
			ProfilePath: cfg.Browser.ProfilePath,
			Title:       cfg.Browser.Title,
			Channel:     cfg.Browser.Channel,
		}, log)
	}
	return m
}

// Authenticated reports whether the session is usable.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

// Authenticate logs in, launching the browser first if needed. Missing
// credentials and rejected logins come back as typed errors, not faults.
func (m *Manager) Authenticate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticateLocked()
}

func (m *Manager) authenticateLocked() error {
	if m.authenticated {
		return nil
	}
	if !m.cfg.Fidelity.HasCredentials() {
		return ErrNoCredentials
	}

	if m.sess == nil {
		sess, err := m.launch()
		if err != nil {
			return err
		}
		m.sess = sess
		m.client = fidelity.NewClient(sess.Page(), m.catalog, m.log)
	}

	outcome := m.client.Login(fidelity.Credentials{
		Username:   m.cfg.Fidelity.Username,
		Password:   m.cfg.Fidelity.Password,
		TOTPSecret: m.cfg.Fidelity.TOTPSecret,
	})

	m.authenticated = outcome.StepOneSucceeded && outcome.FullyAuthenticated
	if !m.authenticated {
		m.log.Warn("authentication incomplete",
			"step_one", outcome.StepOneSucceeded, "fully", outcome.FullyAuthenticated)
		return ErrNotAuthenticated
	}

	m.log.Info("authenticated")
	return nil
}

// ExecuteTrade runs one transaction through the engine, journaling the
// outcome and cross-checking the scraped quote when a reference feed is
// configured. Trades serialize on the session mutex.
func (m *Manager) ExecuteTrade(ctx context.Context, req fidelity.TradeRequest) (fidelity.TradeOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.authenticateLocked(); err != nil {
		return fidelity.TradeOutcome{}, err
	}

	outcome := m.client.Transaction(req)
	m.journal.LogTrade(ctx, req, outcome)
	m.crossCheckQuote(req.Ticker, outcome.LastPrice)

	return outcome, nil
}

func (m *Manager) crossCheckQuote(ticker string, scraped decimal.Decimal) {
	if m.checker == nil || scraped.IsZero() {
		return
	}
	ref, err := m.checker.ReferencePrice(strings.ToUpper(ticker))
	if err != nil {
		m.log.Warn("reference quote unavailable", "ticker", ticker, "err", err)
		return
	}
	if d := quotes.Divergence(scraped, ref); d.GreaterThan(divergenceAlert) {
		m.log.Warn("scraped quote diverges from reference",
			"ticker", ticker, "scraped", scraped, "reference", ref, "divergence", d)
	}
}

// Accounts scrapes the portfolio. Requires an authenticated session.
func (m *Manager) Accounts(_ context.Context) (map[string]fidelity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.authenticateLocked(); err != nil {
		return nil, err
	}
	return m.client.AccountInfo(), nil
}

// AccountNumbers returns the known account identifiers, or nil when the
// session is not authenticated. Used by the health endpoint, which must not
// trigger a login.
func (m *Manager) AccountNumbers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.authenticated || m.client == nil {
		return nil
	}
	accounts := m.client.AccountInfo()
	numbers := make([]string, 0, len(accounts))
	for number := range accounts {
		numbers = append(numbers, number)
	}
	return numbers
}

// DefaultAccount returns the configured fallback account, if any.
func (m *Manager) DefaultAccount() string {
	return m.cfg.Fidelity.DefaultAccount
}

// Refresh tears the browser down and authenticates from scratch. It holds
// the mutex for the whole cycle so no trade can slip in against a
// half-rebuilt session.
func (m *Manager) Refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeLocked()
	return m.authenticateLocked()
}

// Close shuts the browser down and forgets the session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *Manager) closeLocked() {
	if m.sess != nil {
		m.sess.Close()
		m.sess = nil
	}
	m.client = nil
	m.authenticated = false
}
