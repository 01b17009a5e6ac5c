package points

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/easybet/internal/domain"
)

const (
	admin = "0x000000000000000000000000000000000000AD01"
	alice = "0x0000000000000000000000000000000000000A11"
	bob   = "0x0000000000000000000000000000000000000B0B"
)

func TestGrantOnce(t *testing.T) {
	l := NewLedger(admin)

	require.NoError(t, l.Grant(alice))
	assert.Equal(t, GrantAmount, l.BalanceOf(alice))
	assert.True(t, l.HasClaimed(alice))

	err := l.Grant(alice)
	require.ErrorIs(t, err, domain.ErrAlreadyGranted)
	assert.Equal(t, GrantAmount, l.BalanceOf(alice), "second grant must not credit again")
}

func TestIssueAdminOnly(t *testing.T) {
	l := NewLedger(admin)

	require.NoError(t, l.Issue(admin, bob, 5000))
	assert.Equal(t, int64(5000), l.BalanceOf(bob))

	err := l.Issue(alice, bob, 5000)
	require.ErrorIs(t, err, domain.ErrNotAuthorized)
	assert.Equal(t, int64(5000), l.BalanceOf(bob))

	err = l.Issue(admin, bob, 0)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)
}

func TestApproveIsAbsoluteSet(t *testing.T) {
	l := NewLedger(admin)

	require.NoError(t, l.Approve(alice, bob, 300))
	assert.Equal(t, int64(300), l.Allowance(alice, bob))

	require.NoError(t, l.Approve(alice, bob, 100))
	assert.Equal(t, int64(100), l.Allowance(alice, bob), "approve replaces, never adds")

	err := l.Approve(alice, bob, -1)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)
}

func TestTransferFromGating(t *testing.T) {
	l := NewLedger(admin)
	require.NoError(t, l.Grant(alice))

	// No allowance yet.
	err := l.TransferFrom(bob, alice, bob, 100)
	require.ErrorIs(t, err, domain.ErrInsufficientAllowance)

	// Allowance but insufficient balance.
	require.NoError(t, l.Approve(alice, bob, 50_000))
	err = l.TransferFrom(bob, alice, bob, 20_000)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// Nothing moved on the failed attempts.
	assert.Equal(t, GrantAmount, l.BalanceOf(alice))
	assert.Equal(t, int64(0), l.BalanceOf(bob))
	assert.Equal(t, int64(50_000), l.Allowance(alice, bob))

	// A valid transfer decrements balance and allowance together.
	require.NoError(t, l.TransferFrom(bob, alice, bob, 4000))
	assert.Equal(t, GrantAmount-4000, l.BalanceOf(alice))
	assert.Equal(t, int64(4000), l.BalanceOf(bob))
	assert.Equal(t, int64(46_000), l.Allowance(alice, bob))
}

func TestDebitCredit(t *testing.T) {
	l := NewLedger(admin)
	require.NoError(t, l.Grant(alice))

	err := l.Debit(alice, GrantAmount+1)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	require.NoError(t, l.Debit(alice, 2500))
	l.Credit(bob, 2500)

	assert.Equal(t, GrantAmount-2500, l.BalanceOf(alice))
	assert.Equal(t, int64(2500), l.BalanceOf(bob))
	assert.Equal(t, GrantAmount, l.TotalSupply(), "debit+credit conserves supply")
}

func TestSnapshotRestore(t *testing.T) {
	l := NewLedger(admin)
	require.NoError(t, l.Grant(alice))
	require.NoError(t, l.Approve(alice, bob, 750))
	require.NoError(t, l.Issue(admin, bob, 1234))

	accounts := l.Accounts()

	restored := NewLedger(admin)
	restored.Restore(accounts)

	assert.Equal(t, l.BalanceOf(alice), restored.BalanceOf(alice))
	assert.Equal(t, l.BalanceOf(bob), restored.BalanceOf(bob))
	assert.Equal(t, int64(750), restored.Allowance(alice, bob))
	assert.True(t, restored.HasClaimed(alice))
	assert.False(t, restored.HasClaimed(bob))

	err := restored.Grant(alice)
	require.ErrorIs(t, err, domain.ErrAlreadyGranted)
}
