// Package api exposes the gateway's request/response surface: JSON POST
// endpoints for sessions, accounts, contracts, orders, positions, trades and bars.
//
// Domain failures are answered with HTTP 200 and success=false plus a
// per-operation error code. Only an undecodable body yields a 4xx.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atmx/gateway-sim/internal/history"
	"github.com/atmx/gateway-sim/internal/model"
	"github.com/atmx/gateway-sim/internal/order"
	"github.com/atmx/gateway-sim/internal/store"
)

// OrderEngine is the order lifecycle surface the handlers drive.
type OrderEngine interface {
	Place(ctx context.Context, req order.PlaceRequest) (int64, error)
	Cancel(ctx context.Context, accountID, orderID int64) error
	Modify(ctx context.Context, req order.ModifyRequest) error
	ClosePosition(ctx context.Context, accountID int64, contractID string) error
	PartialClosePosition(ctx context.Context, accountID int64, contractID string, size int) error
}

// BarSource produces historical bars.
type BarSource interface {
	Bars(ctx context.Context, req history.Request) ([]model.Bar, error)
}

// Handler serves the gateway API.
type Handler struct {
	store    store.Store
	engine   OrderEngine
	bars     BarSource
	sessions SessionManager
	delay    time.Duration
}

// NewHandler creates a Handler. delay is added before every API response.
func NewHandler(st store.Store, engine OrderEngine, bars BarSource, sessions SessionManager, delay time.Duration) *Handler {
	return &Handler{store: st, engine: engine, bars: bars, sessions: sessions, delay: delay}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(h.responseDelay)

		r.Post("/Auth/loginApp", h.LoginApp)
		r.Post("/Auth/loginKey", h.LoginKey)
		r.Post("/Auth/logout", h.Logout)
		r.Post("/Auth/validate", h.Validate)

		r.Post("/Account/search", h.SearchAccounts)

		r.Post("/Contract/search", h.SearchContracts)
		r.Post("/Contract/searchById", h.SearchContractByID)
		r.Post("/Contract/available", h.ListAvailableContracts)

		r.Post("/Order/search", h.SearchOrders)
		r.Post("/Order/searchOpen", h.SearchOpenOrders)
		r.Post("/Order/place", h.PlaceOrder)
		r.Post("/Order/cancel", h.CancelOrder)
		r.Post("/Order/modify", h.ModifyOrder)

		r.Post("/Position/searchOpen", h.SearchOpenPositions)
		r.Post("/Position/closeContract", h.ClosePosition)
		r.Post("/Position/partialCloseContract", h.PartialClosePosition)

		r.Post("/Trade/search", h.SearchTrades)

		r.Post("/History/retrieveBars", h.RetrieveBars)

		r.Get("/Status/ping", h.Ping)
	})
}

// responseDelay holds every response back by the configured delay, giving
// up early when the client goes away.
func (h *Handler) responseDelay(next http.Handler) http.Handler {
	if h.delay <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := time.NewTimer(h.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-r.Context().Done():
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Accounts ---

// SearchAccounts handles POST /api/Account/search
func (h *Handler) SearchAccounts(w http.ResponseWriter, r *http.Request) {
	var req SearchAccountRequest
	if !decode(w, r, &req) {
		return
	}

	// Account search has no failure code.
	accounts, err := h.store.ListAccounts(r.Context(), req.OnlyActiveAccounts)
	if err != nil {
		slog.Error("search accounts", "error", err)
		accounts = nil
	}
	writeJSON(w, SearchAccountResponse{Result: success(), Accounts: nonNil(accounts)})
}

// --- Contracts ---

// SearchContracts handles POST /api/Contract/search
func (h *Handler) SearchContracts(w http.ResponseWriter, r *http.Request) {
	var req SearchContractRequest
	if !decode(w, r, &req) {
		return
	}
	h.writeContracts(w, r, req.SearchText, req.Live)
}

// ListAvailableContracts handles POST /api/Contract/available
func (h *Handler) ListAvailableContracts(w http.ResponseWriter, r *http.Request) {
	var req ListAvailableContractRequest
	if !decode(w, r, &req) {
		return
	}
	h.writeContracts(w, r, "", req.Live)
}

func (h *Handler) writeContracts(w http.ResponseWriter, r *http.Request, text string, live bool) {
	contracts, err := h.store.SearchContracts(r.Context(), text, live)
	if err != nil {
		slog.Error("search contracts", "error", err)
		contracts = nil
	}
	writeJSON(w, SearchContractResponse{Result: success(), Contracts: nonNil(contracts)})
}

// SearchContractByID handles POST /api/Contract/searchById
func (h *Handler) SearchContractByID(w http.ResponseWriter, r *http.Request) {
	var req SearchContractByIDRequest
	if !decode(w, r, &req) {
		return
	}

	c, err := h.store.GetContract(r.Context(), req.ContractID)
	if err != nil {
		writeResult(w, Result{ErrorCode: contractNotFound, ErrorMessage: "contract not found"})
		return
	}
	writeJSON(w, SearchContractByIDResponse{Result: success(), Contract: c})
}

// --- Orders ---

// SearchOrders handles POST /api/Order/search
func (h *Handler) SearchOrders(w http.ResponseWriter, r *http.Request) {
	var req SearchOrderRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	if !h.accountExists(ctx, w, req.AccountID) {
		return
	}
	orders, err := h.store.ListOrders(ctx, req.AccountID, timeOrZero(req.StartTimestamp), timeOrZero(req.EndTimestamp))
	if err != nil {
		writeResult(w, failure(searchAccountNotFound, err))
		return
	}
	writeJSON(w, SearchOrderResponse{Result: success(), Orders: nonNil(orders)})
}

// SearchOpenOrders handles POST /api/Order/searchOpen
func (h *Handler) SearchOpenOrders(w http.ResponseWriter, r *http.Request) {
	var req SearchOpenOrderRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	if !h.accountExists(ctx, w, req.AccountID) {
		return
	}
	orders, err := h.store.ListOpenOrders(ctx, req.AccountID)
	if err != nil {
		writeResult(w, failure(searchAccountNotFound, err))
		return
	}
	writeJSON(w, SearchOrderResponse{Result: success(), Orders: nonNil(orders)})
}

// PlaceOrder handles POST /api/Order/place
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if !decode(w, r, &req) {
		return
	}

	id, err := h.engine.Place(r.Context(), order.PlaceRequest{
		AccountID:  req.AccountID,
		ContractID: req.ContractID,
		Type:       req.Type,
		Side:       req.Side,
		Size:       req.Size,
		LimitPrice: req.LimitPrice,
		StopPrice:  req.StopPrice,
		CustomTag:  req.CustomTag,
	})
	if err != nil {
		writeResult(w, failure(codeFor(err, placeUnknownError, placeCodes), err))
		return
	}
	writeJSON(w, PlaceOrderResponse{Result: success(), OrderID: id})
}

// CancelOrder handles POST /api/Order/cancel
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.engine.Cancel(r.Context(), req.AccountID, req.OrderID); err != nil {
		writeResult(w, failure(codeFor(err, changeUnknownError, changeCodes), err))
		return
	}
	writeResult(w, success())
}

// ModifyOrder handles POST /api/Order/modify
func (h *Handler) ModifyOrder(w http.ResponseWriter, r *http.Request) {
	var req ModifyOrderRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.engine.Modify(r.Context(), order.ModifyRequest{
		AccountID:  req.AccountID,
		OrderID:    req.OrderID,
		Size:       req.Size,
		LimitPrice: req.LimitPrice,
		StopPrice:  req.StopPrice,
	})
	if err != nil {
		writeResult(w, failure(codeFor(err, changeUnknownError, changeCodes), err))
		return
	}
	writeResult(w, success())
}

// --- Positions ---

// SearchOpenPositions handles POST /api/Position/searchOpen
func (h *Handler) SearchOpenPositions(w http.ResponseWriter, r *http.Request) {
	var req SearchPositionRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	if !h.accountExists(ctx, w, req.AccountID) {
		return
	}
	positions, err := h.store.ListPositions(ctx, req.AccountID)
	if err != nil {
		writeResult(w, failure(searchAccountNotFound, err))
		return
	}
	writeJSON(w, SearchPositionResponse{Result: success(), Positions: nonNil(positions)})
}

// ClosePosition handles POST /api/Position/closeContract
func (h *Handler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	var req ClosePositionRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.engine.ClosePosition(r.Context(), req.AccountID, req.ContractID); err != nil {
		writeResult(w, failure(codeFor(err, closeUnknownError, closeCodes), err))
		return
	}
	writeResult(w, success())
}

// PartialClosePosition handles POST /api/Position/partialCloseContract
func (h *Handler) PartialClosePosition(w http.ResponseWriter, r *http.Request) {
	var req PartialClosePositionRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.engine.PartialClosePosition(r.Context(), req.AccountID, req.ContractID, req.Size); err != nil {
		writeResult(w, failure(codeFor(err, partialUnknownError, partialCodes), err))
		return
	}
	writeResult(w, success())
}

// --- Trades ---

// SearchTrades handles POST /api/Trade/search
func (h *Handler) SearchTrades(w http.ResponseWriter, r *http.Request) {
	var req SearchTradeRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	if !h.accountExists(ctx, w, req.AccountID) {
		return
	}
	trades, err := h.store.ListTrades(ctx, req.AccountID, timeOrZero(req.StartTimestamp), timeOrZero(req.EndTimestamp))
	if err != nil {
		writeResult(w, failure(searchAccountNotFound, err))
		return
	}
	writeJSON(w, SearchTradeResponse{Result: success(), Trades: nonNil(trades)})
}

// --- History ---

// RetrieveBars handles POST /api/History/retrieveBars
func (h *Handler) RetrieveBars(w http.ResponseWriter, r *http.Request) {
	var req RetrieveBarRequest
	if !decode(w, r, &req) {
		return
	}

	bars, err := h.bars.Bars(r.Context(), history.Request{
		ContractID: req.ContractID,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Unit:       req.Unit,
		UnitNumber: req.UnitNumber,
		Limit:      req.Limit,
	})
	if err != nil {
		// Every history failure is a validation failure.
		writeResult(w, failure(codeFor(err, barsContractNotFound, barsCodes), err))
		return
	}
	writeJSON(w, RetrieveBarResponse{Result: success(), Bars: nonNil(bars)})
}

// --- Status ---

// Ping handles GET /api/Status/ping
func (h *Handler) Ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "pong")
}

// --- helpers ---

// accountExists writes an AccountNotFound result and reports false when the
// account is unknown.
func (h *Handler) accountExists(ctx context.Context, w http.ResponseWriter, id int64) bool {
	if _, err := h.store.GetAccount(ctx, id); err != nil {
		writeResult(w, Result{ErrorCode: searchAccountNotFound, ErrorMessage: "account not found"})
		return false
	}
	return true
}

// decode reads the JSON body into v. An empty body decodes as an empty
// object.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, "invalid request body", http.StatusBadRequest)
	return false
}

func success() Result {
	return Result{Success: true, ErrorCode: codeSuccess}
}

func failure(code int, err error) Result {
	return Result{ErrorCode: code, ErrorMessage: err.Error()}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func writeResult(w http.ResponseWriter, res Result) {
	writeJSON(w, res)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
