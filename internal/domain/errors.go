package domain

import "errors"

var (
	// Authorization errors.
	ErrNotAuthorized = errors.New("not authorized")
	ErrNotOwner      = errors.New("not the claim owner")

	// Lifecycle / state errors.
	ErrRoundNotOpen   = errors.New("round not open")
	ErrAlreadySettled = errors.New("round already settled")
	ErrAlreadyGranted = errors.New("airdrop already claimed")
	ErrAlreadyListed  = errors.New("claim already listed")
	ErrNoListing      = errors.New("no listing for claim")
	ErrClaimSettled   = errors.New("claim already settled")

	// Input errors.
	ErrInvalidRound      = errors.New("invalid round id")
	ErrInvalidChoice     = errors.New("invalid choice")
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrNoWinningClaims   = errors.New("no winning claims")

	// Funds errors.
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// Infrastructure errors.
	ErrNotFound = errors.New("not found")
)

// IsFundsError reports whether err is a balance or allowance shortfall. The
// HTTP layer maps these to a distinct status code from plain input errors.
func IsFundsError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrInsufficientAllowance)
}
