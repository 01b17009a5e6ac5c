package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/easybet/internal/domain"
)

// TicketService defines the marketplace operations the handler requires.
type TicketService interface {
	ListTicket(ctx context.Context, seller string, claimID, price int64) (domain.Listing, error)
	DelistTicket(ctx context.Context, seller string, claimID int64) error
	BuyTicket(ctx context.Context, buyer string, claimID int64) (domain.Listing, error)
	TicketsOnSale() []domain.SaleItem
	OwnerOf(claimID int64) (string, error)
}

// TicketHandler serves ticket marketplace HTTP endpoints.
type TicketHandler struct {
	tickets TicketService
	logger  *slog.Logger
}

// NewTicketHandler creates a TicketHandler with the given service and logger.
func NewTicketHandler(tickets TicketService, logger *slog.Logger) *TicketHandler {
	return &TicketHandler{tickets: tickets, logger: logger}
}

type listTicketRequest struct {
	Seller string `json:"seller"`
	Price  int64  `json:"price"`
}

// List opens a resale offer for one claim.
// POST /api/tickets/{id}/list
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}
	var req listTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	seller, ok := parseAddress(req.Seller)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid seller address")
		return
	}

	listing, err := h.tickets.ListTicket(r.Context(), seller, id, req.Price)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

type delistTicketRequest struct {
	Seller string `json:"seller"`
}

// Delist withdraws a resale offer.
// POST /api/tickets/{id}/delist
func (h *TicketHandler) Delist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}
	var req delistTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	seller, ok := parseAddress(req.Seller)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid seller address")
		return
	}

	if err := h.tickets.DelistTicket(r.Context(), seller, id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claim_id": id,
		"delisted": true,
	})
}

type buyTicketRequest struct {
	Buyer string `json:"buyer"`
}

// Buy purchases a listed claim at its asking price. The buyer must have
// approved the escrow account for at least the price.
// POST /api/tickets/{id}/buy
func (h *TicketHandler) Buy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}
	var req buyTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	buyer, ok := parseAddress(req.Buyer)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid buyer address")
		return
	}

	listing, err := h.tickets.BuyTicket(r.Context(), buyer, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claim_id": id,
		"buyer":    buyer,
		"seller":   listing.Seller,
		"price":    listing.Price,
	})
}

// OnSale returns every open listing with its claim metadata.
// GET /api/tickets/on-sale
func (h *TicketHandler) OnSale(w http.ResponseWriter, r *http.Request) {
	items := h.tickets.TicketsOnSale()
	writeJSON(w, http.StatusOK, map[string]any{
		"tickets": items,
		"total":   len(items),
	})
}

// Owner returns the current owner of a claim.
// GET /api/tickets/{id}/owner
func (h *TicketHandler) Owner(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}
	owner, err := h.tickets.OwnerOf(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claim_id": id,
		"owner":    owner,
	})
}
