package tokenbank

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerlabs/stakevault/internal/logger"
	"github.com/ledgerlabs/stakevault/pkg/types"
)

const (
	alice = types.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob   = types.Address("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	carol = types.Address("0xcccccccccccccccccccccccccccccccccccccccc")
)

func newTestBank(t *testing.T) *TokenBank {
	return NewTokenBank(logger.NewNopLogger())
}

func Test_MintAndTransfer(t *testing.T) {
	bank := newTestBank(t)

	assert.Nil(t, bank.Mint(alice, big.NewInt(1000)))
	assert.Equal(t, big.NewInt(1000), bank.BalanceOf(alice))
	assert.Equal(t, big.NewInt(1000), bank.TotalSupply())

	assert.Nil(t, bank.Transfer(alice, bob, big.NewInt(400)))
	assert.Equal(t, big.NewInt(600), bank.BalanceOf(alice))
	assert.Equal(t, big.NewInt(400), bank.BalanceOf(bob))
	assert.Equal(t, big.NewInt(1000), bank.TotalSupply())
}

func Test_TransferInsufficientBalance(t *testing.T) {
	bank := newTestBank(t)
	assert.Nil(t, bank.Mint(alice, big.NewInt(100)))

	err := bank.Transfer(alice, bob, big.NewInt(101))
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)

	// Nothing moved.
	assert.Equal(t, big.NewInt(100), bank.BalanceOf(alice))
	assert.Equal(t, big.NewInt(0), bank.BalanceOf(bob))
}

func Test_TransferInvalidAmount(t *testing.T) {
	bank := newTestBank(t)
	assert.Nil(t, bank.Mint(alice, big.NewInt(100)))

	assert.ErrorIs(t, bank.Transfer(alice, bob, nil), types.ErrInvalidAmount)
	assert.ErrorIs(t, bank.Transfer(alice, bob, big.NewInt(0)), types.ErrInvalidAmount)
	assert.ErrorIs(t, bank.Transfer(alice, bob, big.NewInt(-5)), types.ErrInvalidAmount)
}

func Test_ApproveAndTransferFrom(t *testing.T) {
	bank := newTestBank(t)
	assert.Nil(t, bank.Mint(alice, big.NewInt(1000)))
	assert.Nil(t, bank.Approve(alice, bob, big.NewInt(300)))
	assert.Equal(t, big.NewInt(300), bank.Allowance(alice, bob))

	assert.Nil(t, bank.TransferFrom(bob, alice, carol, big.NewInt(200)))
	assert.Equal(t, big.NewInt(100), bank.Allowance(alice, bob))
	assert.Equal(t, big.NewInt(200), bank.BalanceOf(carol))

	err := bank.TransferFrom(bob, alice, carol, big.NewInt(200))
	assert.ErrorIs(t, err, types.ErrInsufficientAllowance)
}

func Test_StateRoundTrip(t *testing.T) {
	bank := newTestBank(t)
	assert.Nil(t, bank.Mint(alice, big.NewInt(1000)))
	assert.Nil(t, bank.Mint(bob, big.NewInt(500)))
	assert.Nil(t, bank.Approve(alice, carol, big.NewInt(50)))

	restored := newTestBank(t)
	assert.Nil(t, restored.RestoreState(bank.ExportState()))

	assert.Equal(t, big.NewInt(1000), restored.BalanceOf(alice))
	assert.Equal(t, big.NewInt(500), restored.BalanceOf(bob))
	assert.Equal(t, big.NewInt(50), restored.Allowance(alice, carol))
	assert.Equal(t, big.NewInt(1500), restored.TotalSupply())
}
