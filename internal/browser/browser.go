// Package browser owns the puppeted browser process: launch, storage-state
// persistence, and the adapter that exposes a playwright page through the
// dom interfaces the trading core consumes.
package browser

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/playwright-community/playwright-go"
)

// Options controls one browser session.
type Options struct {
	Headless bool

	// ProfilePath is the directory holding the storage-state file; Title
	// distinguishes multiple profiles (Fidelity_<title>.json).
	ProfilePath string
	Title       string

	// Channel switches the Chromium channel ("chrome") for deployments that
	// need CDP-level stealth; empty launches stock Firefox, which the target
	// site tolerates best.
	Channel string
}

// Session is one running browser with a single page. It is the shared
// mutable resource behind all trading operations; the session manager
// serializes access to it.
type Session struct {
	pw          *playwright.Playwright
	browser     playwright.Browser
	context     playwright.BrowserContext
	page        playwright.Page
	storagePath string
	log         *slog.Logger
}

// Launch starts the browser, restoring cookies and local storage from the
// profile's storage-state file (created empty when absent).
func Launch(opts Options, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}

	storagePath, err := ensureStorageFile(opts.ProfilePath, opts.Title)
	if err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	var b playwright.Browser
	if opts.Channel != "" {
		b, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(opts.Headless),
			Channel:  playwright.String(opts.Channel),
		})
	} else {
		b, err = pw.Firefox.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(opts.Headless),
			Args:     []string{"--disable-webgl", "--disable-software-rasterizer"},
		})
	}
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	context, err := b.NewContext(playwright.BrowserNewContextOptions{
		StorageStatePath: playwright.String(storagePath),
	})
	if err != nil {
		b.Close()
		pw.Stop()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		b.Close()
		pw.Stop()
		return nil, fmt.Errorf("open page: %w", err)
	}

	return &Session{
		pw:          pw,
		browser:     b,
		context:     context,
		page:        page,
		storagePath: storagePath,
		log:         log,
	}, nil
}

// Page returns the session's page wrapped in the dom adapter.
func (s *Session) Page() *Page {
	return &Page{page: s.page}
}

// SaveStorageState writes the current cookies/local storage to the profile
// file so the next launch can reuse the trusted-device session.
func (s *Session) SaveStorageState() error {
	_, err := s.context.StorageState(s.storagePath)
	return err
}

// Close persists storage state and tears the whole browser down, page to
// process.
func (s *Session) Close() {
	if err := s.SaveStorageState(); err != nil {
		s.log.Warn("could not save storage state", "err", err)
	}
	if err := s.context.Close(); err != nil {
		s.log.Warn("context close", "err", err)
	}
	if err := s.browser.Close(); err != nil {
		s.log.Warn("browser close", "err", err)
	}
	if err := s.pw.Stop(); err != nil {
		s.log.Warn("playwright stop", "err", err)
	}
}

func ensureStorageFile(profilePath, title string) (string, error) {
	base, err := filepath.Abs(profilePath)
	if err != nil {
		return "", err
	}
	name := "Fidelity.json"
	if title != "" {
		name = "Fidelity_" + title + ".json"
	}
	path := filepath.Join(base, name)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
			return "", err
		}
	}
	return path, nil
}
