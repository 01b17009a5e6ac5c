package handler

import (
	"encoding/json"
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

	"github.com/alanyoungcy/easybet/internal/domain"
	"github.com/alanyoungcy/easybet/internal/service"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fixture struct {
	svc       *service.BetService
	clock     *fakeClock
	authority string
	escrow    string
	player    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	authority := common.HexToAddress("0xA1").Hex()
	escrow := common.HexToAddress("0xE5").Hex()
	player := common.HexToAddress("0x01").Hex()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := service.NewBetService(authority, escrow, clock, service.Deps{}, slog.Default())
	require.NoError(t, err)

	return &fixture{
		svc:       svc,
		clock:     clock,
		authority: authority,
		escrow:    escrow,
		player:    player,
	}
}

func (f *fixture) openRound(t *testing.T) domain.Round {
	t.Helper()
	round, err := f.svc.CreateRound(t.Context(), f.authority, service.CreateRoundParams{
		Name:           "derby",
		Choices:        []string{"red", "blue"},
		StartTime:      f.clock.now.Add(-time.Minute),
		EndTime:        f.clock.now.Add(time.Hour),
		AmountPerClaim: 100,
	})
	require.NoError(t, err)
	return round
}

func postJSON(t *testing.T, h http.HandlerFunc, target, body string, pathValues map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestGrantEndpoint(t *testing.T) {
	f := newFixture(t)
	h := NewPointsHandler(f.svc, slog.Default())

	body := fmt.Sprintf(`{"account":%q}`, f.player)
	rec := postJSON(t, h.Grant, "/api/points/grant", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 10_000, resp["balance"])

	// A second grant for the same account conflicts.
	rec = postJSON(t, h.Grant, "/api/points/grant", body, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGrantRejectsMalformedAddress(t *testing.T) {
	f := newFixture(t)
	h := NewPointsHandler(f.svc, slog.Default())

	rec := postJSON(t, h.Grant, "/api/points/grant", `{"account":"not-an-address"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGrantNormalizesAddressCase(t *testing.T) {
	f := newFixture(t)
	h := NewPointsHandler(f.svc, slog.Default())

	lower := strings.ToLower(f.player)
	rec := postJSON(t, h.Grant, "/api/points/grant", fmt.Sprintf(`{"account":%q}`, lower), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The checksummed form holds the balance.
	assert.EqualValues(t, 10_000, f.svc.BalanceOf(f.player))
}

func TestIssueRequiresAuthority(t *testing.T) {
	f := newFixture(t)
	h := NewPointsHandler(f.svc, slog.Default())

	body := fmt.Sprintf(`{"caller":%q,"to":%q,"amount":500}`, f.player, f.player)
	rec := postJSON(t, h.Issue, "/api/points/issue", body, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWagerWithoutApprovalIsPaymentRequired(t *testing.T) {
	f := newFixture(t)
	round := f.openRound(t)
	require.NoError(t, f.svc.Grant(t.Context(), f.player))

	h := NewRoundHandler(f.svc, slog.Default())
	body := fmt.Sprintf(`{"player":%q,"choice":"red","count":1}`, f.player)
	rec := postJSON(t, h.Wager, "/api/rounds/0/wager", body,
		map[string]string{"id": fmt.Sprint(round.ID)})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestWagerHappyPath(t *testing.T) {
	f := newFixture(t)
	round := f.openRound(t)
	require.NoError(t, f.svc.Grant(t.Context(), f.player))
	require.NoError(t, f.svc.Approve(t.Context(), f.player, f.escrow, 1_000))

	h := NewRoundHandler(f.svc, slog.Default())
	body := fmt.Sprintf(`{"player":%q,"choice":"red","count":2}`, f.player)
	rec := postJSON(t, h.Wager, "/api/rounds/0/wager", body,
		map[string]string{"id": fmt.Sprint(round.ID)})
	require.Equal(t, http.StatusOK, rec.Code)

	var receipt service.WagerReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, int64(200), receipt.Cost)
	assert.Len(t, receipt.ClaimIDs, 2)
}

func TestGetRoundNotFound(t *testing.T) {
	f := newFixture(t)
	h := NewRoundHandler(f.svc, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/rounds/42", nil)
	req.SetPathValue("id", "42")
	rec := httptest.NewRecorder()
	h.Get(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDrawBeforeAnyWagerConflicts(t *testing.T) {
	f := newFixture(t)
	round := f.openRound(t)

	h := NewRoundHandler(f.svc, slog.Default())
	body := fmt.Sprintf(`{"caller":%q,"choice":"red"}`, f.authority)
	rec := postJSON(t, h.Draw, "/api/rounds/0/draw", body,
		map[string]string{"id": fmt.Sprint(round.ID)})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRecomputeEndpoint(t *testing.T) {
	f := newFixture(t)
	round := f.openRound(t)
	f.clock.now = f.clock.now.Add(2 * time.Hour) // past endTime

	h := NewRoundHandler(f.svc, slog.Default())
	rec := postJSON(t, h.Recompute, "/api/rounds/0/recompute", "",
		map[string]string{"id": fmt.Sprint(round.ID)})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.RoundStatusClosed), resp["status"])

	rec = postJSON(t, h.Recompute, "/api/rounds/42/recompute", "",
		map[string]string{"id": "42"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecomputeAllEndpoint(t *testing.T) {
	f := newFixture(t)
	f.openRound(t)
	f.clock.now = f.clock.now.Add(2 * time.Hour)

	h := NewRoundHandler(f.svc, slog.Default())
	rec := postJSON(t, h.RecomputeAll, "/api/rounds/recompute", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Rounds []domain.Round `json:"rounds"`
		Total  int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, domain.RoundStatusClosed, resp.Rounds[0].Status)
}

func TestRecentJournalEndpoint(t *testing.T) {
	f := newFixture(t)
	h := NewRoundHandler(f.svc, slog.Default())

	// No journal store configured: an empty slice, never null.
	req := httptest.NewRequest(http.MethodGet, "/api/journal", nil)
	rec := httptest.NewRecorder()
	h.RecentJournal(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries":[],"total":0}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/journal?limit=0", nil)
	rec = httptest.NewRecorder()
	h.RecentJournal(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserInfoForUnknownAccount(t *testing.T) {
	f := newFixture(t)
	h := NewUserHandler(f.svc, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/users/"+f.player, nil)
	req.SetPathValue("account", f.player)
	rec := httptest.NewRecorder()
	h.Get(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var info domain.UserInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Zero(t, info.Balance)
	assert.False(t, info.AirdropClaimed)
	assert.Empty(t, info.Claims)
}
