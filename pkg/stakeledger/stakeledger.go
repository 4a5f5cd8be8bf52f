// Package stakeledger tracks staked principal and time-weighted reward
// accrual per participant. Reward is computed lazily: every state-changing
// operation first settles the pending reward into the record's accrued debt
// at the current clock reading, so the stored debt always equals the formula
// evaluated up to LastUpdate and is never re-derived retroactively.
package stakeledger

import (
	"math/big"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ledgerlabs/stakevault/internal/metrics"
	"github.com/ledgerlabs/stakevault/internal/metrics/metricsTypes"
	"github.com/ledgerlabs/stakevault/pkg/eventBus/eventBusTypes"
	"github.com/ledgerlabs/stakevault/pkg/numbers"
	"github.com/ledgerlabs/stakevault/pkg/types"
)

// StakeRecord is one participant's position. Records are created lazily on
// first deposit and never deleted; zero principal is a valid terminal state.
type StakeRecord struct {
	Principal   *big.Int
	AccruedDebt *big.Int
	LastUpdate  uint64
	LockUntil   uint64
}

// GlobalStakeConfig is the owner-mutable global state plus the monotonic
// counters. It is only ever mutated through the ledger's admin operations.
type GlobalStakeConfig struct {
	RewardRatePerYear       *big.Int
	LockPeriodSeconds       uint64
	TotalStaked             *big.Int
	TotalRewardsDistributed *big.Int
}

type StakeLedgerConfig struct {
	CustodyAddress    types.Address
	RewardPoolAddress types.Address
	RewardRatePerYear *big.Int
	LockPeriodSeconds uint64
}

type StakeLedger struct {
	mu sync.Mutex
	// Armed while an external transfer is in flight. Only a callback on the
	// transferring goroutine trips it; concurrent callers queue on the mutex.
	guard types.ReentryGuard

	custody    types.Address
	rewardPool types.Address
	global     *GlobalStakeConfig
	records    map[types.Address]*StakeRecord

	bank  types.TokenTransfer
	clock types.Clock
	auth  types.Authorizer
	bus   eventBusTypes.IEventBus
	sink  *metrics.MetricsSink

	logger *zap.Logger
}

func NewStakeLedger(
	cfg *StakeLedgerConfig,
	bank types.TokenTransfer,
	clock types.Clock,
	auth types.Authorizer,
	bus eventBusTypes.IEventBus,
	sink *metrics.MetricsSink,
	l *zap.Logger,
) (*StakeLedger, error) {
	rate := cfg.RewardRatePerYear
	if rate == nil {
		rate = big.NewInt(0)
	}
	if rate.Sign() < 0 || rate.Cmp(numbers.ONE) > 0 {
		return nil, types.ErrInvalidRewardRate
	}
	return &StakeLedger{
		custody:    cfg.CustodyAddress,
		rewardPool: cfg.RewardPoolAddress,
		global: &GlobalStakeConfig{
			RewardRatePerYear:       new(big.Int).Set(rate),
			LockPeriodSeconds:       cfg.LockPeriodSeconds,
			TotalStaked:             big.NewInt(0),
			TotalRewardsDistributed: big.NewInt(0),
		},
		records: make(map[types.Address]*StakeRecord),
		bank:    bank,
		clock:   clock,
		auth:    auth,
		bus:     bus,
		sink:    sink,
		logger:  l,
	}, nil
}

// Deposit moves amount from the participant into ledger custody and adds it
// to their principal. A configured lock period extends, but never shortens,
// an existing lock.
func (sl *StakeLedger) Deposit(participant types.Address, amount *big.Int) error {
	release, err := sl.begin()
	if err != nil {
		return err
	}
	defer release()

	if amount == nil || amount.Sign() <= 0 {
		return types.ErrInvalidAmount
	}

	now := sl.clock.Now()
	rec := sl.records[participant]
	debt := sl.settledDebt(rec, now)

	if err := sl.transfer(participant, sl.custody, amount); err != nil {
		return errors.Wrap(types.ErrTransferFailed, err.Error())
	}

	if rec == nil {
		rec = newStakeRecord()
		sl.records[participant] = rec
	}
	rec.AccruedDebt = debt
	rec.LastUpdate = now
	rec.Principal.Add(rec.Principal, amount)
	sl.global.TotalStaked.Add(sl.global.TotalStaked, amount)
	if sl.global.LockPeriodSeconds > 0 {
		until := numbers.SaturatingAdd(now, sl.global.LockPeriodSeconds)
		if until > rec.LockUntil {
			rec.LockUntil = until
		}
	}

	sl.logger.Sugar().Infow("Deposited stake",
		zap.String("participant", participant.String()),
		zap.String("amount", amount.String()),
		zap.Uint64("lockUntil", rec.LockUntil),
	)
	_ = sl.sink.Incr(metricsTypes.Metric_Incr_StakeDeposit, nil, 1)
	_ = sl.sink.Gauge(metricsTypes.Metric_Gauge_TotalStaked, numbers.AmountToFloat(sl.global.TotalStaked), nil)
	sl.emit(eventBusTypes.Event_StakeDeposited, "deposit", participant, amount, now)
	return nil
}

// Withdraw returns amount of principal to the participant, provided the
// position is unlocked and large enough.
func (sl *StakeLedger) Withdraw(participant types.Address, amount *big.Int) error {
	release, err := sl.begin()
	if err != nil {
		return err
	}
	defer release()

	if amount == nil || amount.Sign() <= 0 {
		return types.ErrInvalidAmount
	}

	now := sl.clock.Now()
	rec := sl.records[participant]
	if rec == nil || rec.Principal.Cmp(amount) < 0 {
		return types.ErrInsufficientBalance
	}
	if rec.LockUntil != 0 && now < rec.LockUntil {
		return &types.TokensLockedError{Until: rec.LockUntil}
	}
	debt := sl.settledDebt(rec, now)

	if err := sl.transfer(sl.custody, participant, amount); err != nil {
		return errors.Wrap(types.ErrTransferFailed, err.Error())
	}

	rec.AccruedDebt = debt
	rec.LastUpdate = now
	rec.Principal.Sub(rec.Principal, amount)
	sl.global.TotalStaked.Sub(sl.global.TotalStaked, amount)

	sl.logger.Sugar().Infow("Withdrew stake",
		zap.String("participant", participant.String()),
		zap.String("amount", amount.String()),
	)
	_ = sl.sink.Incr(metricsTypes.Metric_Incr_StakeWithdraw, nil, 1)
	_ = sl.sink.Gauge(metricsTypes.Metric_Gauge_TotalStaked, numbers.AmountToFloat(sl.global.TotalStaked), nil)
	sl.emit(eventBusTypes.Event_StakeWithdrawn, "withdraw", participant, amount, now)
	return nil
}

// ClaimRewards pays out all settled and pending reward from the reward pool.
// A zero-stake or zero-reward claim is a no-op, not an error. Returns the
// amount paid.
func (sl *StakeLedger) ClaimRewards(participant types.Address) (*big.Int, error) {
	release, err := sl.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	now := sl.clock.Now()
	rec := sl.records[participant]
	pending := sl.settledDebt(rec, now)
	if pending.Sign() == 0 {
		if rec != nil {
			rec.AccruedDebt = pending
			rec.LastUpdate = now
		}
		return big.NewInt(0), nil
	}

	if err := sl.transfer(sl.rewardPool, participant, pending); err != nil {
		return nil, errors.Wrap(types.ErrTransferFailed, err.Error())
	}

	rec.AccruedDebt = big.NewInt(0)
	rec.LastUpdate = now
	sl.global.TotalRewardsDistributed.Add(sl.global.TotalRewardsDistributed, pending)

	sl.logger.Sugar().Infow("Claimed staking rewards",
		zap.String("participant", participant.String()),
		zap.String("amount", pending.String()),
	)
	_ = sl.sink.Incr(metricsTypes.Metric_Incr_RewardsClaimed, nil, 1)
	_ = sl.sink.Gauge(metricsTypes.Metric_Gauge_RewardsDistributed, numbers.AmountToFloat(sl.global.TotalRewardsDistributed), nil)
	sl.emit(eventBusTypes.Event_StakeRewardsClaimed, "claimRewards", participant, pending, now)
	return pending, nil
}

// PendingReward reports what ClaimRewards would pay right now.
func (sl *StakeLedger) PendingReward(participant types.Address) (*big.Int, error) {
	release, err := sl.begin()
	if err != nil {
		return nil, err
	}
	defer release()
	return sl.settledDebt(sl.records[participant], sl.clock.Now()), nil
}

// Record returns a copy of the participant's stake record.
func (sl *StakeLedger) Record(participant types.Address) (*StakeRecord, bool, error) {
	release, err := sl.begin()
	if err != nil {
		return nil, false, err
	}
	defer release()
	rec, ok := sl.records[participant]
	if !ok {
		return nil, false, nil
	}
	return &StakeRecord{
		Principal:   new(big.Int).Set(rec.Principal),
		AccruedDebt: new(big.Int).Set(rec.AccruedDebt),
		LastUpdate:  rec.LastUpdate,
		LockUntil:   rec.LockUntil,
	}, true, nil
}

// Global returns a copy of the global stake config and counters.
func (sl *StakeLedger) Global() (*GlobalStakeConfig, error) {
	release, err := sl.begin()
	if err != nil {
		return nil, err
	}
	defer release()
	return &GlobalStakeConfig{
		RewardRatePerYear:       new(big.Int).Set(sl.global.RewardRatePerYear),
		LockPeriodSeconds:       sl.global.LockPeriodSeconds,
		TotalStaked:             new(big.Int).Set(sl.global.TotalStaked),
		TotalRewardsDistributed: new(big.Int).Set(sl.global.TotalRewardsDistributed),
	}, nil
}

// SetRewardRate changes the annual reward rate, capped at 100%. Every record
// is settled at the current time first so no accrual interval ever spans a
// rate boundary; the change is strictly prospective.
func (sl *StakeLedger) SetRewardRate(caller types.Address, newRate *big.Int) error {
	release, err := sl.begin()
	if err != nil {
		return err
	}
	defer release()

	if !sl.auth.IsOwner(caller) {
		return types.ErrNotAuthorized
	}
	if newRate == nil || newRate.Sign() < 0 || newRate.Cmp(numbers.ONE) > 0 {
		return types.ErrInvalidRewardRate
	}

	now := sl.clock.Now()
	for _, rec := range sl.records {
		rec.AccruedDebt = sl.settledDebt(rec, now)
		rec.LastUpdate = now
	}
	old := sl.global.RewardRatePerYear
	sl.global.RewardRatePerYear = new(big.Int).Set(newRate)

	sl.logger.Sugar().Infow("Changed reward rate",
		zap.String("oldRate", numbers.RateToString(old)),
		zap.String("newRate", numbers.RateToString(newRate)),
		zap.Int("settledRecords", len(sl.records)),
	)
	return nil
}

// SetLockPeriod changes the lock period applied to future deposits. Existing
// locks are untouched.
func (sl *StakeLedger) SetLockPeriod(caller types.Address, seconds uint64) error {
	release, err := sl.begin()
	if err != nil {
		return err
	}
	defer release()

	if !sl.auth.IsOwner(caller) {
		return types.ErrNotAuthorized
	}
	old := sl.global.LockPeriodSeconds
	sl.global.LockPeriodSeconds = seconds
	sl.logger.Sugar().Infow("Changed lock period",
		zap.Uint64("oldSeconds", old),
		zap.Uint64("newSeconds", seconds),
	)
	return nil
}

// settledDebt computes the record's accrued debt as of `now` without
// mutating it: stored debt plus the accrual formula over [LastUpdate, now].
func (sl *StakeLedger) settledDebt(rec *StakeRecord, now uint64) *big.Int {
	if rec == nil {
		return big.NewInt(0)
	}
	debt := new(big.Int).Set(rec.AccruedDebt)
	if now > rec.LastUpdate {
		debt.Add(debt, numbers.AccruedReward(rec.Principal, sl.global.RewardRatePerYear, now-rec.LastUpdate))
	}
	return debt
}

// begin rejects re-entrant calls and serializes everything else.
func (sl *StakeLedger) begin() (func(), error) {
	if sl.guard.Active() {
		return nil, types.ErrReentrantCall
	}
	sl.mu.Lock()
	return sl.mu.Unlock, nil
}

func (sl *StakeLedger) transfer(from types.Address, to types.Address, amount *big.Int) error {
	sl.guard.Enter()
	defer sl.guard.Exit()
	return sl.bank.Transfer(from, to, amount)
}

func (sl *StakeLedger) emit(name eventBusTypes.EventName, op string, participant types.Address, amount *big.Int, now uint64) {
	if sl.bus == nil {
		return
	}
	sl.bus.Publish(&eventBusTypes.Event{
		Name: name,
		Data: &eventBusTypes.LedgerOperation{
			Ledger:     "stake",
			Operation:  op,
			Account:    participant.String(),
			Amount:     numbers.AmountToString(amount),
			OccurredAt: now,
		},
	})
}

func newStakeRecord() *StakeRecord {
	return &StakeRecord{
		Principal:   big.NewInt(0),
		AccruedDebt: big.NewInt(0),
	}
}
