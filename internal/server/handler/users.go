package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/easybet/internal/domain"
)

// UserService defines the aggregated read the user handler requires.
type UserService interface {
	UserCompleteInfo(ctx context.Context, account string) (domain.UserInfo, error)
}

// UserHandler serves the aggregated per-account view.
type UserHandler struct {
	users  UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler with the given service and logger.
func NewUserHandler(users UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// Get returns the account's balance, grant flag, and every owned claim with
// its listing state in one consistent snapshot. Unknown accounts return a
// zero snapshot, not an error.
// GET /api/users/{account}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, ok := parseAddress(r.PathValue("account"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return
	}

	info, err := h.users.UserCompleteInfo(r.Context(), account)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: user info failed",
			slog.String("account", account),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to build user info")
		return
	}
	writeJSON(w, http.StatusOK, info)
}
