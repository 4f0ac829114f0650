package fidelity

import (
	"testing"

	"github.com/hadoku/fidelity-worker/internal/dom/domtest"
)

// loginPage scripts the credential form. The submit hook decides where the
// "site" lands afterwards.
func loginPage(cat *Catalog, landingURL string) *domtest.Page {
	page := domtest.NewPage()
	page.Set(cat.Login.Username, &domtest.Element{})
	page.Set(cat.Login.Password, &domtest.Element{})
	submit := page.Set(cat.Login.Submit, &domtest.Element{})
	if landingURL != "" {
		submit.OnClick = func() error {
			page.CurrentURL = landingURL
			return nil
		}
	}
	return page
}

func TestLoginTrustedDevice(t *testing.T) {
	cat := DefaultCatalog()
	page := loginPage(cat, cat.URLs.Summary)
	client := NewClient(page, cat, testLogger())

	out := client.Login(Credentials{Username: "user", Password: "pass"})

	if !out.StepOneSucceeded || !out.FullyAuthenticated {
		t.Errorf("outcome = %+v, want fully authenticated", out)
	}
	if got := page.Get(cat.Login.Username).FillValue; got != "user" {
		t.Errorf("username filled = %q", got)
	}
}

func TestLoginRejectedCredentials(t *testing.T) {
	cat := DefaultCatalog()
	// Neither the summary nor the login page: an unrecognized landing spot.
	page := loginPage(cat, "https://digital.fidelity.com/error")
	client := NewClient(page, cat, testLogger())

	out := client.Login(Credentials{Username: "user", Password: "wrong"})

	if out.StepOneSucceeded || out.FullyAuthenticated {
		t.Errorf("outcome = %+v, want rejected", out)
	}
}

func TestLoginTotpChallenge(t *testing.T) {
	cat := DefaultCatalog()
	// Staying on the login page means a second-factor challenge is up.
	page := loginPage(cat, "")
	page.Set(cat.Login.Widget, &domtest.Element{})
	page.Set(cat.Login.TotpHeading, &domtest.Element{})
	input := page.Set(cat.Login.TotpInput, &domtest.Element{})
	cont := page.Set(cat.Login.TotpContinue, &domtest.Element{})
	cont.OnClick = func() error {
		page.CurrentURL = cat.URLs.Summary
		return nil
	}
	client := NewClient(page, cat, testLogger())

	out := client.Login(Credentials{Username: "user", Password: "pass", TOTPSecret: "JBSWY3DPEHPK3PXP"})

	if !out.StepOneSucceeded || !out.FullyAuthenticated {
		t.Fatalf("outcome = %+v, want fully authenticated", out)
	}
	if len(input.FillValue) != 6 {
		t.Errorf("totp code = %q, want a 6-digit code", input.FillValue)
	}
}

func TestLoginTotpTimeout(t *testing.T) {
	cat := DefaultCatalog()
	page := loginPage(cat, "")
	page.Set(cat.Login.Widget, &domtest.Element{})
	page.Set(cat.Login.TotpHeading, &domtest.Element{})
	page.Set(cat.Login.TotpInput, &domtest.Element{})
	// Continue never navigates away: the second factor is left unresolved.
	page.Set(cat.Login.TotpContinue, &domtest.Element{})
	client := NewClient(page, cat, testLogger())

	out := client.Login(Credentials{Username: "user", Password: "pass", TOTPSecret: "JBSWY3DPEHPK3PXP"})

	if !out.StepOneSucceeded {
		t.Error("credentials were accepted; step one should have succeeded")
	}
	if out.FullyAuthenticated {
		t.Error("session must not be usable without the second factor landing")
	}
}

// The "NA" sentinel behaves like an absent secret: no TOTP code is attempted
// even when the TOTP prompt is showing, and the SMS fallback runs instead.
func TestLoginTotpSentinel(t *testing.T) {
	cat := DefaultCatalog()
	page := loginPage(cat, "")
	page.Set(cat.Login.Widget, &domtest.Element{})
	page.Set(cat.Login.TotpHeading, &domtest.Element{})
	input := page.Set(cat.Login.TotpInput, &domtest.Element{})
	textMe := page.Set(cat.Login.TextMeCode, &domtest.Element{})
	client := NewClient(page, cat, testLogger())

	out := client.Login(Credentials{Username: "user", Password: "pass", TOTPSecret: "NA"})

	if !out.StepOneSucceeded || out.FullyAuthenticated {
		t.Errorf("outcome = %+v, want (step one, not authenticated)", out)
	}
	if input.FillValue != "" {
		t.Errorf("totp input filled with %q; sentinel must not generate a code", input.FillValue)
	}
	if textMe.Clicks != 1 {
		t.Errorf("text-me clicks = %d, want 1", textMe.Clicks)
	}
}

func TestLoginSmsFallbackSavesDevice(t *testing.T) {
	cat := DefaultCatalog()
	page := loginPage(cat, "")
	page.Set(cat.Login.Widget, &domtest.Element{})
	tryAnother := page.Set(cat.Login.TryAnotherWay, &domtest.Element{})
	saveBox := page.Set(cat.Login.SaveDeviceBox, &domtest.Element{})
	page.Set(cat.Login.TextMeCode, &domtest.Element{})
	page.Set(cat.Login.TotpInput, &domtest.Element{})
	client := NewClient(page, cat, testLogger())

	out := client.Login(Credentials{Username: "user", Password: "pass", SaveDevice: true})

	if !out.StepOneSucceeded || out.FullyAuthenticated {
		t.Errorf("outcome = %+v, want (step one, not authenticated)", out)
	}
	if tryAnother.Clicks != 1 {
		t.Errorf("try-another clicks = %d, want 1", tryAnother.Clicks)
	}
	if !saveBox.Checked {
		t.Error("save-device box not checked")
	}
}
