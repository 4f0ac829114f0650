package fidelity

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hadoku/fidelity-worker/internal/dom"
)

// Account label patterns: the rendered label is "Nickname (Z1234567)".
var (
	accountNumberRe   = regexp.MustCompile(`\(((?:Z|\d)\d{6,})\)`)
	accountNicknameRe = regexp.MustCompile(`^(.+?)\(`)
)

// positionStrategy extracts one position from a row. Strategies are tried in
// order; the first that yields a ticker wins. Two exist because the site
// ships two layouts for the same data (grid cells and plain table cells).
type positionStrategy struct {
	name     string
	ticker   dom.Descriptor
	quantity dom.Descriptor
	price    dom.Descriptor
	value    dom.Descriptor
}

// AccountInfo scrapes the positions page into Accounts keyed by account
// number. Malformed rows are skipped individually: partial results beat
// none. A read fault resolves to an empty map, never a raised error.
func (c *Client) AccountInfo() map[string]Account {
	accounts, err := c.accountInfo()
	if err != nil {
		c.log.Error("account scrape failed", "err", err, "url", c.page.URL())
		return map[string]Account{}
	}
	return accounts
}

func (c *Client) accountInfo() (map[string]Account, error) {
	if err := c.page.Goto(c.cat.URLs.Positions); err != nil {
		return nil, err
	}
	if err := c.waitLoading(c.cat.Timeouts.Default); err != nil {
		return nil, err
	}
	// The grid renders asynchronously after the spinners clear.
	c.page.Sleep(2 * time.Second)

	strategies := []positionStrategy{
		{
			name:     "grid",
			ticker:   c.cat.Positions.GridTicker,
			quantity: c.cat.Positions.GridQuantity,
			price:    c.cat.Positions.GridPrice,
			value:    c.cat.Positions.GridValue,
		},
		{
			name:     "table",
			ticker:   c.cat.Positions.TableTicker,
			quantity: c.cat.Positions.TableQuantity,
			price:    c.cat.Positions.TablePrice,
			value:    c.cat.Positions.TableValue,
		},
	}

	accounts := make(map[string]Account)

	rows := c.page.Find(c.cat.Positions.AccountRow)
	count, err := rows.Count()
	if err != nil {
		return nil, err
	}

	for i := 0; i < count; i++ {
		row := rows.Nth(i)

		numText, err := row.Find(c.cat.Positions.AccountNumber).Text()
		if err != nil {
			continue
		}
		number := strings.TrimSpace(numText)
		if number == "" {
			continue
		}
		if m := accountNumberRe.FindStringSubmatch(number); m != nil {
			number = m[1]
		}

		account := Account{Number: number}

		if labelText, err := row.Find(c.cat.Positions.AccountLabel).Text(); err == nil {
			if m := accountNicknameRe.FindStringSubmatch(strings.TrimSpace(labelText)); m != nil {
				account.Nickname = strings.TrimSpace(m[1])
			} else if t := strings.TrimSpace(labelText); t != "" {
				account.Nickname = t
			}
		}

		positions := c.readPositions(row, strategies)
		account.Positions = positions

		// Explicit balance when readable, reconstructed from positions
		// otherwise. When both exist they must agree within rounding; a
		// larger gap is logged, not failed.
		summed := account.SumPositions()
		if balText, err := row.Find(c.cat.Positions.Balance).Text(); err == nil {
			if balance, perr := parsePrice(balText); perr == nil {
				account.Balance = balance
				if balance.Sub(summed).Abs().GreaterThan(centStep) && len(positions) > 0 {
					c.log.Warn("balance disagrees with position sum",
						"account", number, "balance", balance, "sum", summed)
				}
			} else {
				account.Balance = summed
			}
		} else {
			account.Balance = summed
		}

		accounts[number] = account
	}

	return accounts, nil
}

// readPositions walks the position rows under an account container, trying
// each layout strategy per row.
func (c *Client) readPositions(container dom.Element, strategies []positionStrategy) []Position {
	positions := []Position{}

	rows := container.Find(c.cat.Positions.PositionRow)
	count, err := rows.Count()
	if err != nil {
		return positions
	}

	for i := 0; i < count; i++ {
		row := rows.Nth(i)
		for _, s := range strategies {
			pos, ok := c.extractPosition(row, s)
			if ok {
				positions = append(positions, pos)
				break
			}
		}
	}

	return positions
}

func (c *Client) extractPosition(row dom.Element, s positionStrategy) (Position, bool) {
	ticker, err := row.Find(s.ticker).Text()
	if err != nil {
		return Position{}, false
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return Position{}, false
	}

	quantity, err := parseNumeric(row, s.quantity)
	if err != nil {
		return Position{}, false
	}
	price, err := parseNumeric(row, s.price)
	if err != nil {
		return Position{}, false
	}
	value, err := parseNumeric(row, s.value)
	if err != nil {
		return Position{}, false
	}

	return Position{Ticker: ticker, Quantity: quantity, LastPrice: price, Value: value}, true
}

func parseNumeric(row dom.Element, d dom.Descriptor) (decimal.Decimal, error) {
	text, err := row.Find(d).Text()
	if err != nil {
		return decimal.Zero, err
	}
	v, err := parsePrice(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %q: %w", text, err)
	}
	return v, nil
}
