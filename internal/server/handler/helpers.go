// Package handler contains the HTTP handlers for the betting API. Handlers
// declare the service slice they need locally so the package does not depend
// on the concrete service implementation.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/easybet/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps engine errors onto HTTP status codes. Capability
// failures are 403, lifecycle conflicts 409, funds failures 402, lookup
// failures 404, argument failures 400, everything else 500.
func writeDomainError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrNotAuthorized), errors.Is(err, domain.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrRoundNotOpen),
		errors.Is(err, domain.ErrAlreadySettled),
		errors.Is(err, domain.ErrAlreadyGranted),
		errors.Is(err, domain.ErrAlreadyListed),
		errors.Is(err, domain.ErrClaimSettled),
		errors.Is(err, domain.ErrNoWinningClaims):
		status = http.StatusConflict
	case domain.IsFundsError(err):
		status = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrInvalidRound),
		errors.Is(err, domain.ErrNoListing),
		errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidChoice), errors.Is(err, domain.ErrInvalidParameters):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}
	writeError(w, status, err.Error())
}

// decodeJSON reads the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

// parseAddress validates and normalizes a hex account address. The engine
// stores the checksummed form so lookups are case-insensitive at the edge.
func parseAddress(raw string) (string, bool) {
	if !common.IsHexAddress(raw) {
		return "", false
	}
	return common.HexToAddress(raw).Hex(), true
}

// pathID extracts a numeric path parameter using Go 1.22+ built-in routing.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
