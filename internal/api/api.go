// Package api is the HTTP facade over the trading session: health, trade
// execution, account listing, and session refresh. It maps structured
// results to response payloads and reserves protocol-level status codes for
// boundary problems (bad key → 401, no session → 503, facade fault → 500).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/hadoku/fidelity-worker/internal/fidelity"
	"github.com/hadoku/fidelity-worker/internal/session"
)

// Trader is what the facade needs from the session layer. session.Manager
// implements it; tests substitute a stub.
type Trader interface {
	Authenticated() bool
	ExecuteTrade(ctx context.Context, req fidelity.TradeRequest) (fidelity.TradeOutcome, error)
	Accounts(ctx context.Context) (map[string]fidelity.Account, error)
	AccountNumbers() []string
	DefaultAccount() string
	Refresh() error
}

var _ Trader = (*session.Manager)(nil)

// API carries the facade's dependencies.
type API struct {
	Trader     Trader
	APIKey     string
	JWTManager *JWTManager
	Log        *slog.Logger
}

// Router assembles the chi router with middleware and all routes.
func (api *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware)

	r.Get("/health", api.HandleHealth)
	r.Post("/auth/token", api.HandleIssueToken)

	r.Group(func(r chi.Router) {
		r.Use(RequireKey(api.APIKey, api.JWTManager))
		r.Post("/execute-trade", api.HandleExecuteTrade)
		r.Get("/accounts", api.HandleGetAccounts)
		r.Post("/refresh-session", api.HandleRefreshSession)
	})

	return r
}

// TradeRequestBody is the /execute-trade payload. dry_run defaults to true:
// placing a live order requires saying so.
type TradeRequestBody struct {
	Ticker     string   `json:"ticker"`
	Action     string   `json:"action"`
	Quantity   float64  `json:"quantity"`
	Account    string   `json:"account,omitempty"`
	DryRun     *bool    `json:"dry_run,omitempty"`
	LimitPrice *float64 `json:"limit_price,omitempty"`
}

// TradeResponse is the /execute-trade result payload.
type TradeResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Alert   string                 `json:"alert"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status        string   `json:"status"`
	Authenticated bool     `json:"authenticated"`
	Accounts      []string `json:"accounts,omitempty"`
}

func (api *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Authenticated: api.Trader.Authenticated(),
	}
	if resp.Authenticated {
		resp.Accounts = api.Trader.AccountNumbers()
	}
	WriteJSON(w, http.StatusOK, resp)
}

// HandleIssueToken exchanges the API key for a short-lived bearer token.
func (api *API) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIKey  string `json:"api_key"`
		Subject string `json:"subject,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.APIKey != api.APIKey {
		WriteError(w, http.StatusUnauthorized, "Invalid API key")
		return
	}
	if api.JWTManager == nil || !api.JWTManager.Enabled() {
		WriteError(w, http.StatusServiceUnavailable, "Token auth not configured")
		return
	}

	subject := body.Subject
	if subject == "" {
		subject = "api-key"
	}
	token, err := api.JWTManager.GenerateToken(subject, time.Hour)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_in": int(time.Hour.Seconds()),
	})
}

func (api *API) HandleExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var body TradeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	side := fidelity.Side(strings.ToLower(body.Action))
	if !side.Valid() {
		WriteError(w, http.StatusBadRequest, "action must be 'buy' or 'sell'")
		return
	}
	if body.Quantity <= 0 {
		WriteError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}
	if body.Ticker == "" {
		WriteError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	account := body.Account
	if account == "" {
		account = api.Trader.DefaultAccount()
	}
	if account == "" {
		WriteError(w, http.StatusBadRequest, "No account specified and no default account configured")
		return
	}

	dryRun := true
	if body.DryRun != nil {
		dryRun = *body.DryRun
	}

	req := fidelity.TradeRequest{
		Ticker:   strings.ToUpper(body.Ticker),
		Side:     side,
		Quantity: int64(body.Quantity),
		Account:  account,
		DryRun:   dryRun,
	}
	if body.LimitPrice != nil {
		price := decimal.NewFromFloat(*body.LimitPrice)
		req.LimitPrice = &price
	}

	outcome, err := api.Trader.ExecuteTrade(r.Context(), req)
	if err != nil {
		if errors.Is(err, session.ErrNoCredentials) || errors.Is(err, session.ErrNotAuthenticated) {
			WriteError(w, http.StatusServiceUnavailable, "Not authenticated with brokerage. Check credentials.")
			return
		}
		api.Log.Error("trade execution fault", "err", err)
		WriteError(w, http.StatusInternalServerError, "Trade execution error")
		return
	}

	details := map[string]interface{}{
		"ticker":   req.Ticker,
		"action":   string(req.Side),
		"quantity": req.Quantity,
		"account":  req.Account,
		"dry_run":  req.DryRun,
	}

	if outcome.Success {
		actionWord := "executed"
		if req.DryRun {
			actionWord = "previewed"
		}
		WriteJSON(w, http.StatusOK, TradeResponse{
			Success: true,
			Message: "Trade " + actionWord + " successfully",
			Alert:   string(outcome.Alert),
			Details: details,
		})
		return
	}

	message := outcome.ErrorMessage
	if message == "" {
		message = "Trade failed"
	}
	WriteJSON(w, http.StatusOK, TradeResponse{
		Success: false,
		Message: message,
		Alert:   string(outcome.Alert),
		Details: details,
	})
}

func (api *API) HandleGetAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := api.Trader.Accounts(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrNoCredentials) || errors.Is(err, session.ErrNotAuthenticated) {
			WriteError(w, http.StatusServiceUnavailable, "Not authenticated")
			return
		}
		api.Log.Error("account scrape fault", "err", err)
		WriteError(w, http.StatusInternalServerError, "Failed to fetch accounts")
		return
	}

	list := make([]fidelity.Account, 0, len(accounts))
	for _, account := range accounts {
		list = append(list, account)
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"accounts": list})
}

func (api *API) HandleRefreshSession(w http.ResponseWriter, r *http.Request) {
	if err := api.Trader.Refresh(); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "Failed to authenticate")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session refreshed",
	})
}
