package stakeledger

import (
	"math"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerlabs/stakevault/internal/logger"
	"github.com/ledgerlabs/stakevault/pkg/clock"
	"github.com/ledgerlabs/stakevault/pkg/numbers"
	"github.com/ledgerlabs/stakevault/pkg/tokenbank"
	"github.com/ledgerlabs/stakevault/pkg/types"
)

const (
	alice   = types.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob     = types.Address("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	owner   = types.Address("0x9999999999999999999999999999999999999999")
	custody = types.Address("0x1111111111111111111111111111111111111111")
	pool    = types.Address("0x2222222222222222222222222222222222222222")
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), numbers.ONE)
}

func rate(s string) *big.Int {
	r, err := numbers.RateFromString(s)
	if err != nil {
		panic(err)
	}
	return r
}

type fixture struct {
	ledger *StakeLedger
	bank   *tokenbank.TokenBank
	clock  *clock.Manual
}

func setup(t *testing.T, cfg *StakeLedgerConfig) *fixture {
	l := logger.NewNopLogger()
	bank := tokenbank.NewTokenBank(l)
	manual := clock.NewManual(1_000_000)

	assert.Nil(t, bank.Mint(alice, tokens(10000)))
	assert.Nil(t, bank.Mint(bob, tokens(10000)))
	assert.Nil(t, bank.Mint(pool, tokens(100000)))

	if cfg == nil {
		cfg = &StakeLedgerConfig{
			CustodyAddress:    custody,
			RewardPoolAddress: pool,
			RewardRatePerYear: rate("0.10"),
		}
	}
	ledger, err := NewStakeLedger(cfg, bank, manual, types.NewSingleOwner(owner), nil, nil, l)
	assert.Nil(t, err)
	return &fixture{ledger: ledger, bank: bank, clock: manual}
}

func Test_NewStakeLedger_RejectsRateAbove100Percent(t *testing.T) {
	l := logger.NewNopLogger()
	bank := tokenbank.NewTokenBank(l)
	_, err := NewStakeLedger(&StakeLedgerConfig{
		CustodyAddress:    custody,
		RewardPoolAddress: pool,
		RewardRatePerYear: new(big.Int).Add(numbers.ONE, big.NewInt(1)),
	}, bank, clock.NewManual(0), types.NewSingleOwner(owner), nil, nil, l)
	assert.ErrorIs(t, err, types.ErrInvalidRewardRate)
}

func Test_Deposit(t *testing.T) {
	f := setup(t, nil)

	assert.Nil(t, f.ledger.Deposit(alice, tokens(1000)))

	rec, found, err := f.ledger.Record(alice)
	assert.Nil(t, err)
	assert.True(t, found)
	assert.Equal(t, tokens(1000), rec.Principal)

	assert.Equal(t, tokens(9000), f.bank.BalanceOf(alice))
	assert.Equal(t, tokens(1000), f.bank.BalanceOf(custody))

	global, err := f.ledger.Global()
	assert.Nil(t, err)
	assert.Equal(t, tokens(1000), global.TotalStaked)
}

func Test_Deposit_InvalidAmount(t *testing.T) {
	f := setup(t, nil)

	assert.ErrorIs(t, f.ledger.Deposit(alice, nil), types.ErrInvalidAmount)
	assert.ErrorIs(t, f.ledger.Deposit(alice, big.NewInt(0)), types.ErrInvalidAmount)
	assert.ErrorIs(t, f.ledger.Deposit(alice, big.NewInt(-1)), types.ErrInvalidAmount)
}

func Test_Deposit_InsufficientBalance(t *testing.T) {
	f := setup(t, nil)

	err := f.ledger.Deposit(alice, tokens(10001))
	assert.ErrorIs(t, err, types.ErrTransferFailed)

	// No record appears and custody holds nothing.
	_, found, err := f.ledger.Record(alice)
	assert.Nil(t, err)
	assert.False(t, found)
	assert.Equal(t, big.NewInt(0), f.bank.BalanceOf(custody))

	global, err := f.ledger.Global()
	assert.Nil(t, err)
	assert.Equal(t, big.NewInt(0), global.TotalStaked)
}

func Test_RewardAccrual(t *testing.T) {
	f := setup(t, nil)

	assert.Nil(t, f.ledger.Deposit(alice, tokens(1000)))

	f.clock.Advance(numbers.SecondsPerYear)

	pending, err := f.ledger.PendingReward(alice)
	assert.Nil(t, err)
	assert.Equal(t, tokens(100), pending)

	// Accrual over split intervals matches the single interval.
	assert.Nil(t, f.ledger.Deposit(bob, tokens(1000)))
	f.clock.Advance(numbers.SecondsPerYear / 2)
	// Touch the record mid-way to force a settle.
	assert.Nil(t, f.ledger.Deposit(bob, tokens(1)))
	assert.Nil(t, f.ledger.Withdraw(bob, tokens(1)))
	f.clock.Advance(numbers.SecondsPerYear - numbers.SecondsPerYear/2)

	pendingBob, err := f.ledger.PendingReward(bob)
	assert.Nil(t, err)
	assert.Equal(t, tokens(100), pendingBob)
}

func Test_ClaimRewards(t *testing.T) {
	f := setup(t, nil)

	assert.Nil(t, f.ledger.Deposit(alice, tokens(1000)))
	f.clock.Advance(numbers.SecondsPerYear)

	paid, err := f.ledger.ClaimRewards(alice)
	assert.Nil(t, err)
	assert.Equal(t, tokens(100), paid)
	assert.Equal(t, tokens(9100), f.bank.BalanceOf(alice))
	assert.Equal(t, tokens(99900), f.bank.BalanceOf(pool))

	// Principal is untouched by a rewards claim.
	rec, _, err := f.ledger.Record(alice)
	assert.Nil(t, err)
	assert.Equal(t, tokens(1000), rec.Principal)

	global, err := f.ledger.Global()
	assert.Nil(t, err)
	assert.Equal(t, tokens(100), global.TotalRewardsDistributed)

	// Claiming again immediately is a zero no-op, not an error.
	paid, err = f.ledger.ClaimRewards(alice)
	assert.Nil(t, err)
	assert.Equal(t, big.NewInt(0), paid)
}

func Test_ClaimRewards_NoStake(t *testing.T) {
	f := setup(t, nil)

	paid, err := f.ledger.ClaimRewards(alice)
	assert.Nil(t, err)
	assert.Equal(t, big.NewInt(0), paid)
}

func Test_Withdraw(t *testing.T) {
	f := setup(t, nil)

	assert.Nil(t, f.ledger.Deposit(alice, tokens(1000)))
	assert.Nil(t, f.ledger.Withdraw(alice, tokens(400)))

	rec, _, err := f.ledger.Record(alice)
	assert.Nil(t, err)
	assert.Equal(t, tokens(600), rec.Principal)
	assert.Equal(t, tokens(9400), f.bank.BalanceOf(alice))

	global, err := f.ledger.Global()
	assert.Nil(t, err)
	assert.Equal(t, tokens(600), global.TotalStaked)
}

func Test_Withdraw_Errors(t *testing.T) {
	f := setup(t, nil)
	assert.Nil(t, f.ledger.Deposit(alice, tokens(100)))

	assert.ErrorIs(t, f.ledger.Withdraw(alice, big.NewInt(0)), types.ErrInvalidAmount)
	assert.ErrorIs(t, f.ledger.Withdraw(alice, tokens(101)), types.ErrInsufficientBalance)
	assert.ErrorIs(t, f.ledger.Withdraw(bob, tokens(1)), types.ErrInsufficientBalance)
}

func Test_Withdraw_WhileLocked(t *testing.T) {
	f := setup(t, &StakeLedgerConfig{
		CustodyAddress:    custody,
		RewardPoolAddress: pool,
		RewardRatePerYear: rate("0.10"),
		LockPeriodSeconds: 3600,
	})

	assert.Nil(t, f.ledger.Deposit(alice, tokens(100)))

	err := f.ledger.Withdraw(alice, tokens(100))
	var locked *types.TokensLockedError
	assert.ErrorAs(t, err, &locked)
	assert.Equal(t, f.clock.Now()+3600, locked.Until)

	// The lock expires, the withdrawal succeeds.
	f.clock.Advance(3600)
	assert.Nil(t, f.ledger.Withdraw(alice, tokens(100)))
}

func Test_Deposit_ExtendsLockButNeverShortens(t *testing.T) {
	f := setup(t, &StakeLedgerConfig{
		CustodyAddress:    custody,
		RewardPoolAddress: pool,
		RewardRatePerYear: rate("0.10"),
		LockPeriodSeconds: 3600,
	})

	assert.Nil(t, f.ledger.Deposit(alice, tokens(100)))
	rec, _, _ := f.ledger.Record(alice)
	firstLock := rec.LockUntil

	f.clock.Advance(600)
	assert.Nil(t, f.ledger.Deposit(alice, tokens(100)))
	rec, _, _ = f.ledger.Record(alice)
	assert.Equal(t, firstLock+600, rec.LockUntil)

	// Owner shrinks the lock period; the existing longer lock stays.
	assert.Nil(t, f.ledger.SetLockPeriod(owner, 1))
	assert.Nil(t, f.ledger.Deposit(alice, tokens(100)))
	rec, _, _ = f.ledger.Record(alice)
	assert.Equal(t, firstLock+600, rec.LockUntil)
}

func Test_SetRewardRate(t *testing.T) {
	f := setup(t, nil)

	assert.Nil(t, f.ledger.Deposit(alice, tokens(1000)))
	f.clock.Advance(numbers.SecondsPerYear)

	// Rate change settles existing accrual at the old rate.
	assert.Nil(t, f.ledger.SetRewardRate(owner, rate("0.20")))
	f.clock.Advance(numbers.SecondsPerYear)

	pending, err := f.ledger.PendingReward(alice)
	assert.Nil(t, err)
	assert.Equal(t, tokens(300), pending) // 100 at 10% + 200 at 20%
}

func Test_SetRewardRate_Errors(t *testing.T) {
	f := setup(t, nil)

	assert.ErrorIs(t, f.ledger.SetRewardRate(alice, rate("0.20")), types.ErrNotAuthorized)
	assert.ErrorIs(t, f.ledger.SetRewardRate(owner, nil), types.ErrInvalidRewardRate)
	assert.ErrorIs(t, f.ledger.SetRewardRate(owner, big.NewInt(-1)), types.ErrInvalidRewardRate)
	assert.ErrorIs(t, f.ledger.SetRewardRate(owner, new(big.Int).Add(numbers.ONE, big.NewInt(1))), types.ErrInvalidRewardRate)
}

func Test_SetLockPeriod_RequiresOwner(t *testing.T) {
	f := setup(t, nil)
	assert.ErrorIs(t, f.ledger.SetLockPeriod(alice, 100), types.ErrNotAuthorized)
	assert.Nil(t, f.ledger.SetLockPeriod(owner, 100))
}

// reentrantBank calls back into the ledger from inside Transfer, the way a
// malicious token hook would.
type reentrantBank struct {
	*tokenbank.TokenBank
	ledger   *StakeLedger
	innerErr error
	armed    bool
}

func (rb *reentrantBank) Transfer(from types.Address, to types.Address, amount *big.Int) error {
	if rb.armed {
		rb.armed = false
		_, rb.innerErr = rb.ledger.ClaimRewards(alice)
	}
	return rb.TokenBank.Transfer(from, to, amount)
}

func Test_ReentrantTransferRejected(t *testing.T) {
	l := logger.NewNopLogger()
	inner := tokenbank.NewTokenBank(l)
	assert.Nil(t, inner.Mint(alice, tokens(1000)))

	rb := &reentrantBank{TokenBank: inner}
	ledger, err := NewStakeLedger(&StakeLedgerConfig{
		CustodyAddress:    custody,
		RewardPoolAddress: pool,
		RewardRatePerYear: rate("0.10"),
	}, rb, clock.NewManual(1000), types.NewSingleOwner(owner), nil, nil, l)
	assert.Nil(t, err)
	rb.ledger = ledger
	rb.armed = true

	// The outer deposit succeeds; the nested call is rejected.
	assert.Nil(t, ledger.Deposit(alice, tokens(100)))
	assert.ErrorIs(t, rb.innerErr, types.ErrReentrantCall)

	// The guard clears once the transfer completes.
	_, err = ledger.PendingReward(alice)
	assert.Nil(t, err)
}

// slowBank stalls its first Transfer until released, holding the ledger
// mid-transfer so another goroutine can call in concurrently.
type slowBank struct {
	*tokenbank.TokenBank
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (sb *slowBank) Transfer(from types.Address, to types.Address, amount *big.Int) error {
	sb.once.Do(func() {
		close(sb.entered)
		<-sb.release
	})
	return sb.TokenBank.Transfer(from, to, amount)
}

func Test_ConcurrentCallerSerializedDuringTransfer(t *testing.T) {
	l := logger.NewNopLogger()
	sb := &slowBank{
		TokenBank: tokenbank.NewTokenBank(l),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	assert.Nil(t, sb.Mint(alice, tokens(1000)))
	assert.Nil(t, sb.Mint(bob, tokens(1000)))

	ledger, err := NewStakeLedger(&StakeLedgerConfig{
		CustodyAddress:    custody,
		RewardPoolAddress: pool,
		RewardRatePerYear: rate("0.10"),
	}, sb, clock.NewManual(1000), types.NewSingleOwner(owner), nil, nil, l)
	assert.Nil(t, err)

	first := make(chan error, 1)
	go func() { first <- ledger.Deposit(alice, tokens(100)) }()
	<-sb.entered

	// A second well-behaved caller arriving mid-transfer must queue on the
	// mutex, not be mistaken for a re-entrant callback.
	second := make(chan error, 1)
	go func() { second <- ledger.Deposit(bob, tokens(50)) }()
	time.Sleep(50 * time.Millisecond)
	close(sb.release)

	assert.Nil(t, <-first)
	assert.Nil(t, <-second)

	global, err := ledger.Global()
	assert.Nil(t, err)
	assert.Equal(t, tokens(150), global.TotalStaked)
}

func Test_Deposit_HugeLockPeriodSaturates(t *testing.T) {
	f := setup(t, &StakeLedgerConfig{
		CustodyAddress:    custody,
		RewardPoolAddress: pool,
		LockPeriodSeconds: math.MaxUint64 - 100,
	})

	assert.Nil(t, f.ledger.Deposit(alice, tokens(1000)))

	// now + lockPeriod overflows uint64; the lock must pin to the maximum,
	// not wrap around into the past and unlock immediately.
	err := f.ledger.Withdraw(alice, tokens(1000))
	var locked *types.TokensLockedError
	assert.ErrorAs(t, err, &locked)
	assert.Equal(t, uint64(math.MaxUint64), locked.Until)
}

func Test_StateRoundTrip(t *testing.T) {
	f := setup(t, nil)

	assert.Nil(t, f.ledger.Deposit(alice, tokens(1000)))
	assert.Nil(t, f.ledger.Deposit(bob, tokens(500)))
	f.clock.Advance(numbers.SecondsPerYear / 2)

	st, err := f.ledger.ExportState()
	assert.Nil(t, err)
	assert.Len(t, st.Records, 2)

	l := logger.NewNopLogger()
	restored, err := NewStakeLedger(&StakeLedgerConfig{
		CustodyAddress:    custody,
		RewardPoolAddress: pool,
	}, f.bank, f.clock, types.NewSingleOwner(owner), nil, nil, l)
	assert.Nil(t, err)
	assert.Nil(t, restored.RestoreState(st))

	pending, err := restored.PendingReward(alice)
	assert.Nil(t, err)
	assert.Equal(t, tokens(50), pending)

	global, err := restored.Global()
	assert.Nil(t, err)
	assert.Equal(t, tokens(1500), global.TotalStaked)
}
