package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/easybet/internal/server/handler"
	"github.com/alanyoungcy/easybet/internal/service"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestServer(t *testing.T, readOnly bool) (*Server, *service.BetService, string) {
	t.Helper()

	authority := common.HexToAddress("0xA1").Hex()
	escrow := common.HexToAddress("0xE5").Hex()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := service.NewBetService(authority, escrow, clock, service.Deps{}, slog.Default())
	require.NoError(t, err)

	srv := NewServer(Config{Port: 0, ReadOnly: readOnly}, Handlers{
		Health:  handler.NewHealthHandler(slog.Default()),
		Points:  handler.NewPointsHandler(svc, slog.Default()),
		Rounds:  handler.NewRoundHandler(svc, slog.Default()),
		Tickets: handler.NewTicketHandler(svc, slog.Default()),
		Users:   handler.NewUserHandler(svc, slog.Default()),
	}, nil, nil, slog.Default())
	return srv, svc, authority
}

func serve(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestRouting(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	account := common.HexToAddress("0x01").Hex()

	rec := serve(srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(srv, http.MethodGet, "/api/points/"+account+"/balance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balance":0`)

	rec = serve(srv, http.MethodGet, "/api/journal", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	body := fmt.Sprintf(`{"account":%q}`, account)
	rec = serve(srv, http.MethodPost, "/api/points/grant", body)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecomputeRoutesAreOpenToAnyCaller(t *testing.T) {
	srv, svc, authority := newTestServer(t, false)
	round, err := svc.CreateRound(t.Context(), authority, service.CreateRoundParams{
		Name:           "derby",
		Choices:        []string{"red", "blue"},
		StartTime:      time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
		AmountPerClaim: 100,
	})
	require.NoError(t, err)

	rec := serve(srv, http.MethodPost, fmt.Sprintf("/api/rounds/%d/recompute", round.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"open"`)

	rec = serve(srv, http.MethodPost, "/api/rounds/recompute", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadOnlyModeOmitsMutationRoutes(t *testing.T) {
	srv, _, _ := newTestServer(t, true)
	account := common.HexToAddress("0x01").Hex()

	rec := serve(srv, http.MethodGet, "/api/points/"+account+"/balance", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	body := fmt.Sprintf(`{"account":%q}`, account)
	rec = serve(srv, http.MethodPost, "/api/points/grant", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Status recomputation stays available: it only refreshes derived state.
	rec = serve(srv, http.MethodPost, "/api/rounds/recompute", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
