package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/easybet/internal/domain"
	"github.com/alanyoungcy/easybet/internal/service"
)

// RoundService defines the round lifecycle operations the handler requires.
type RoundService interface {
	CreateRound(ctx context.Context, caller string, p service.CreateRoundParams) (domain.Round, error)
	Rounds() []domain.Round
	Round(roundID int64) (domain.Round, error)
	Wager(ctx context.Context, player string, roundID int64, choice string, count int) (service.WagerReceipt, error)
	Draw(ctx context.Context, caller string, roundID int64, winningChoice string) (domain.Settlement, error)
	Refund(ctx context.Context, caller string, roundID int64) (domain.Settlement, error)
	RecomputeStatus(roundID int64) (domain.RoundStatus, error)
	RecomputeAll()
	ClaimsByRound(roundID int64) []domain.Claim
	JournalByRound(ctx context.Context, roundID int64) ([]domain.JournalEntry, error)
	RecentJournal(ctx context.Context, limit int) ([]domain.JournalEntry, error)
}

// RoundHandler serves round lifecycle HTTP endpoints.
type RoundHandler struct {
	rounds RoundService
	logger *slog.Logger
}

// NewRoundHandler creates a RoundHandler with the given service and logger.
func NewRoundHandler(rounds RoundService, logger *slog.Logger) *RoundHandler {
	return &RoundHandler{rounds: rounds, logger: logger}
}

type createRoundRequest struct {
	Caller         string    `json:"caller"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Choices        []string  `json:"choices"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	AmountPerClaim int64     `json:"amount_per_claim"`
	SeedPool       int64     `json:"seed_pool"`
}

// Create opens a new betting round. Authority only.
// POST /api/rounds
func (h *RoundHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRoundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}

	round, err := h.rounds.CreateRound(r.Context(), caller, service.CreateRoundParams{
		Name:           req.Name,
		Description:    req.Description,
		Choices:        req.Choices,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		AmountPerClaim: req.AmountPerClaim,
		SeedPool:       req.SeedPool,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, round)
}

// List returns every round with live-derived status.
// GET /api/rounds
func (h *RoundHandler) List(w http.ResponseWriter, r *http.Request) {
	rounds := h.rounds.Rounds()
	writeJSON(w, http.StatusOK, map[string]any{
		"rounds": rounds,
		"total":  len(rounds),
	})
}

// Get returns one round by id.
// GET /api/rounds/{id}
func (h *RoundHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return
	}
	round, err := h.rounds.Round(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

type wagerRequest struct {
	Player string `json:"player"`
	Choice string `json:"choice"`
	Count  int    `json:"count"`
}

// Wager stakes tickets on a choice of an open round. The player must have
// approved the escrow account for at least count * amount_per_claim.
// POST /api/rounds/{id}/wager
func (h *RoundHandler) Wager(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return
	}
	var req wagerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	player, ok := parseAddress(req.Player)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid player address")
		return
	}

	receipt, err := h.rounds.Wager(r.Context(), player, id, req.Choice, req.Count)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type drawRequest struct {
	Caller string `json:"caller"`
	Choice string `json:"choice"`
}

// Draw settles the round in favor of the winning choice. Authority only.
// POST /api/rounds/{id}/draw
func (h *RoundHandler) Draw(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return
	}
	var req drawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}

	settlement, err := h.rounds.Draw(r.Context(), caller, id, req.Choice)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

type refundRequest struct {
	Caller string `json:"caller"`
}

// Refund voids the round and returns every stake to its current holder.
// Authority only.
// POST /api/rounds/{id}/refund
func (h *RoundHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return
	}
	var req refundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}

	settlement, err := h.rounds.Refund(r.Context(), caller, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

// Recompute re-derives and persists one round's status against the current
// time. Unprivileged: the status is a function of the clock, not of who asks.
// POST /api/rounds/{id}/recompute
func (h *RoundHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return
	}
	status, err := h.rounds.RecomputeStatus(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"round_id": id,
		"status":   status,
	})
}

// RecomputeAll re-derives the status of every round.
// POST /api/rounds/recompute
func (h *RoundHandler) RecomputeAll(w http.ResponseWriter, r *http.Request) {
	h.rounds.RecomputeAll()
	rounds := h.rounds.Rounds()
	writeJSON(w, http.StatusOK, map[string]any{
		"rounds": rounds,
		"total":  len(rounds),
	})
}

// Claims returns every claim minted for the round.
// GET /api/rounds/{id}/claims
func (h *RoundHandler) Claims(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return
	}
	if _, err := h.rounds.Round(id); err != nil {
		writeDomainError(w, err)
		return
	}
	claims := h.rounds.ClaimsByRound(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"round_id": id,
		"claims":   claims,
		"total":    len(claims),
	})
}

// Journal returns the persisted journal slice for one round.
// GET /api/rounds/{id}/journal
func (h *RoundHandler) Journal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return
	}
	if _, err := h.rounds.Round(id); err != nil {
		writeDomainError(w, err)
		return
	}
	entries, err := h.rounds.JournalByRound(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: round journal failed",
			slog.Int64("round_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	if entries == nil {
		entries = []domain.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"round_id": id,
		"entries":  entries,
	})
}

// RecentJournal returns the newest journal entries across all rounds.
// GET /api/journal?limit=N
func (h *RoundHandler) RecentJournal(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	entries, err := h.rounds.RecentJournal(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: recent journal failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	if entries == nil {
		entries = []domain.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   len(entries),
	})
}
