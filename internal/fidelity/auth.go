package fidelity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/hadoku/fidelity-worker/internal/dom"
)

// totpSentinel is a legacy "no secret" marker some credential stores emit;
// it is normalized to an absent secret, not treated as a real secret.
const totpSentinel = "NA"

// Login drives the credential and second-factor flow. It never returns an
// error: every fault, including bounded-wait expiry, resolves to a
// LoginOutcome. (false, false) means the credentials were not accepted;
// (true, false) means they were but the session is not yet usable.
func (c *Client) Login(creds Credentials) LoginOutcome {
	outcome, err := c.login(creds)
	if err != nil {
		c.log.Error("login failed", "err", err, "url", c.page.URL())
		return outcome
	}
	return outcome
}

func (c *Client) login(creds Credentials) (LoginOutcome, error) {
	rejected := LoginOutcome{}

	// The login page redirects once while its widget boots; loading it twice
	// defeats the race.
	if err := c.page.Goto(c.cat.URLs.Login); err != nil {
		return rejected, err
	}
	c.page.Sleep(5 * time.Second)
	if err := c.page.Goto(c.cat.URLs.Login); err != nil {
		return rejected, err
	}

	username := c.page.Find(c.cat.Login.Username)
	if err := username.Click(dom.ClickOptions{}); err != nil {
		return rejected, fmt.Errorf("focus username: %w", err)
	}
	if err := username.Fill(creds.Username); err != nil {
		return rejected, fmt.Errorf("fill username: %w", err)
	}

	password := c.page.Find(c.cat.Login.Password)
	if err := password.Click(dom.ClickOptions{}); err != nil {
		return rejected, fmt.Errorf("focus password: %w", err)
	}
	if err := password.Fill(creds.Password); err != nil {
		return rejected, fmt.Errorf("fill password: %w", err)
	}

	if err := c.page.Find(c.cat.Login.Submit).Click(dom.ClickOptions{}); err != nil {
		return rejected, fmt.Errorf("submit credentials: %w", err)
	}

	if err := c.waitLoading(c.cat.Timeouts.Default); err != nil {
		return rejected, err
	}
	c.page.Sleep(time.Second)
	if err := c.waitLoading(c.cat.Timeouts.Default); err != nil {
		return rejected, err
	}

	// A trusted-device session skips the challenge entirely.
	if strings.Contains(c.page.URL(), "summary") {
		return LoginOutcome{StepOneSucceeded: true, FullyAuthenticated: true}, nil
	}

	secret := creds.TOTPSecret
	if secret == totpSentinel {
		secret = ""
	}

	// Still on the login page means the credentials were accepted and a
	// second-factor challenge is up.
	if strings.Contains(c.page.URL(), "login") {
		return c.handleSecondFactor(secret, creds.SaveDevice)
	}

	return rejected, nil
}

// handleSecondFactor resolves the 2FA challenge: TOTP when a secret is on
// hand and the TOTP prompt is shown, otherwise the SMS fallback, which ends
// with the code input focused for out-of-band entry.
func (c *Client) handleSecondFactor(secret string, saveDevice bool) (LoginOutcome, error) {
	stepOne := LoginOutcome{StepOneSucceeded: true}

	if err := c.waitLoading(c.cat.Timeouts.Default); err != nil {
		return stepOne, err
	}
	if err := c.page.Find(c.cat.Login.Widget).WaitFor(dom.StateVisible, c.cat.Timeouts.Short); err != nil {
		return stepOne, err
	}

	totpVisible, err := c.page.Find(c.cat.Login.TotpHeading).Visible()
	if err != nil {
		return stepOne, err
	}
	if secret != "" && totpVisible {
		return c.completeTotp(secret, saveDevice)
	}

	// SMS path. "Try another way" is only present when the account defaults
	// to a different factor.
	tryAnother := c.page.Find(c.cat.Login.TryAnotherWay)
	if visible, _ := tryAnother.Visible(); visible {
		if saveDevice {
			if err := c.checkSaveDevice(); err != nil {
				return stepOne, err
			}
		}
		if err := tryAnother.Click(dom.ClickOptions{}); err != nil {
			return stepOne, err
		}
	}

	if err := c.page.Find(c.cat.Login.TextMeCode).Click(dom.ClickOptions{}); err != nil {
		return stepOne, err
	}
	// Leave the input focused; the caller supplies the SMS code out of band.
	if err := c.page.Find(c.cat.Login.TotpInput).Click(dom.ClickOptions{}); err != nil {
		return stepOne, err
	}

	return stepOne, nil
}

func (c *Client) completeTotp(secret string, saveDevice bool) (LoginOutcome, error) {
	stepOne := LoginOutcome{StepOneSucceeded: true}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		return stepOne, fmt.Errorf("generate totp code: %w", err)
	}

	input := c.page.Find(c.cat.Login.TotpInput)
	if err := input.Click(dom.ClickOptions{}); err != nil {
		return stepOne, err
	}
	if err := input.Fill(code); err != nil {
		return stepOne, err
	}

	if saveDevice {
		if err := c.checkSaveDevice(); err != nil {
			return stepOne, err
		}
	}

	if err := c.page.Find(c.cat.Login.TotpContinue).Click(dom.ClickOptions{}); err != nil {
		return stepOne, err
	}
	if err := c.waitLoading(c.cat.Timeouts.Default); err != nil {
		return stepOne, err
	}

	if err := c.page.WaitForURL("summary", c.cat.Timeouts.Login); err != nil {
		if errors.Is(err, dom.ErrTimeout) {
			// Credentials held up but the second factor never landed.
			c.log.Warn("totp login did not reach summary", "url", c.page.URL())
			return stepOne, nil
		}
		return stepOne, err
	}

	return LoginOutcome{StepOneSucceeded: true, FullyAuthenticated: true}, nil
}

func (c *Client) checkSaveDevice() error {
	return c.page.Find(c.cat.Login.SaveDeviceBox).Check()
}
