package fidelity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hadoku/fidelity-worker/internal/dom"
)

func TestLoadCatalogOverrides(t *testing.T) {
	yaml := `
version: "test"
urls:
  trade: "https://example.com/trade"
trade:
  symbol_input:
    by: css
    value: "#symbol"
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	if cat.Version != "test" {
		t.Errorf("version = %q, want test", cat.Version)
	}
	if cat.URLs.Trade != "https://example.com/trade" {
		t.Errorf("trade url = %q, want override", cat.URLs.Trade)
	}
	if cat.Trade.SymbolInput.By != dom.ByCSS || cat.Trade.SymbolInput.Value != "#symbol" {
		t.Errorf("symbol input = %+v, want css override", cat.Trade.SymbolInput)
	}

	// Entries the file doesn't mention keep their defaults.
	def := DefaultCatalog()
	if cat.URLs.Login != def.URLs.Login {
		t.Errorf("login url changed: %q", cat.URLs.Login)
	}
	if cat.Trade.AccountDropdown != def.Trade.AccountDropdown {
		t.Errorf("account dropdown changed: %+v", cat.Trade.AccountDropdown)
	}
	if cat.Timeouts.Short != def.Timeouts.Short {
		t.Errorf("short timeout changed: %v", cat.Timeouts.Short)
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing catalog file")
	}
}

func TestDefaultCatalogComplete(t *testing.T) {
	cat := DefaultCatalog()
	urls := []string{cat.URLs.Login, cat.URLs.Summary, cat.URLs.Positions, cat.URLs.Trade}
	for i, u := range urls {
		if u == "" {
			t.Errorf("url %d is empty", i)
		}
	}
	if len(cat.LoadingSpinners) == 0 {
		t.Error("no loading spinners configured")
	}
	if cat.Timeouts.Short <= 0 || cat.Timeouts.Default <= 0 || cat.Timeouts.Login <= 0 || cat.Timeouts.Submit <= 0 {
		t.Errorf("timeouts not all positive: %+v", cat.Timeouts)
	}
}
