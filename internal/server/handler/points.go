package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// PointsService defines the ledger operations the points handler requires.
type PointsService interface {
	Grant(ctx context.Context, account string) error
	Issue(ctx context.Context, caller, to string, amount int64) error
	Approve(ctx context.Context, owner, spender string, amount int64) error
	BalanceOf(account string) int64
	Allowance(owner, spender string) int64
	TotalSupply() int64
	Escrow() string
}

// PointsHandler serves points ledger HTTP endpoints.
type PointsHandler struct {
	points PointsService
	logger *slog.Logger
}

// NewPointsHandler creates a PointsHandler with the given service and logger.
func NewPointsHandler(points PointsService, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{points: points, logger: logger}
}

type grantRequest struct {
	Account string `json:"account"`
}

// Grant credits the one-time airdrop to an account.
// POST /api/points/grant
func (h *PointsHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, ok := parseAddress(req.Account)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return
	}

	if err := h.points.Grant(r.Context(), account); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"balance": h.points.BalanceOf(account),
	})
}

type issueRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// Issue mints points to an account. Authority only.
// POST /api/points/issue
func (h *PointsHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}
	to, ok := parseAddress(req.To)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid recipient address")
		return
	}

	if err := h.points.Issue(r.Context(), caller, to, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": to,
		"balance": h.points.BalanceOf(to),
	})
}

type approveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  int64  `json:"amount"`
}

// Approve sets the allowance an owner grants a spender. Approving the escrow
// account is the prerequisite for wagering and buying tickets.
// POST /api/points/approve
func (h *PointsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	owner, ok := parseAddress(req.Owner)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid owner address")
		return
	}
	spender, ok := parseAddress(req.Spender)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid spender address")
		return
	}

	if err := h.points.Approve(r.Context(), owner, spender, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":     owner,
		"spender":   spender,
		"allowance": h.points.Allowance(owner, spender),
	})
}

// Balance returns an account's points balance.
// GET /api/points/{account}/balance
func (h *PointsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	account, ok := parseAddress(r.PathValue("account"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"balance": h.points.BalanceOf(account),
	})
}

// AllowanceOf returns what spender may move out of owner's balance.
// GET /api/points/allowance?owner=0x..&spender=0x..
func (h *PointsHandler) AllowanceOf(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAddress(r.URL.Query().Get("owner"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid owner address")
		return
	}
	spender, ok := parseAddress(r.URL.Query().Get("spender"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid spender address")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":     owner,
		"spender":   spender,
		"allowance": h.points.Allowance(owner, spender),
	})
}

// Supply returns the total points in circulation and the escrow identity
// players must approve.
// GET /api/points/supply
func (h *PointsHandler) Supply(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"total_supply": h.points.TotalSupply(),
		"escrow":       h.points.Escrow(),
	})
}
