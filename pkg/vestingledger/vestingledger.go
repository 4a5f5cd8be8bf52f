// Package vestingledger manages cliff+linear token release schedules. Each
// schedule escrows its full amount into ledger custody at creation; claims
// draw from custody as the curve releases value, and revocation returns the
// unvested remainder to the creator while paying out what the beneficiary
// had already earned.
package vestingledger

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"

	"github.com/ledgerlabs/stakevault/internal/metrics"
	"github.com/ledgerlabs/stakevault/internal/metrics/metricsTypes"
	"github.com/ledgerlabs/stakevault/pkg/eventBus/eventBusTypes"
	"github.com/ledgerlabs/stakevault/pkg/numbers"
	"github.com/ledgerlabs/stakevault/pkg/types"
)

// VestingSchedule is one grant. Beneficiary and curve parameters are
// immutable after creation; only ClaimedAmount and the revocation flag move.
type VestingSchedule struct {
	Id              string
	Creator         types.Address
	Beneficiary     types.Address
	TotalAmount     *big.Int
	ClaimedAmount   *big.Int
	StartTime       uint64
	CliffDuration   uint64
	VestingDuration uint64
	Revoked         bool
	RevokedAt       uint64
}

// GlobalVestingConfig carries the creation nonce that makes schedule ids
// unique for identical parameters, plus monotonic counters.
type GlobalVestingConfig struct {
	CreationNonce  uint64
	TotalSchedules uint64
	TotalEscrowed  *big.Int
	TotalReleased  *big.Int
	TotalRevoked   *big.Int
}

type VestingLedgerConfig struct {
	CustodyAddress types.Address
}

type VestingLedger struct {
	mu sync.Mutex
	// Armed while an external transfer is in flight. Only a callback on the
	// transferring goroutine trips it; concurrent callers queue on the mutex.
	guard types.ReentryGuard

	custody types.Address
	global  *GlobalVestingConfig
	// Insertion-ordered so ClaimAll and state exports iterate
	// deterministically.
	schedules     *orderedmap.OrderedMap[string, *VestingSchedule]
	byBeneficiary map[types.Address][]string

	bank  types.TokenTransfer
	clock types.Clock
	auth  types.Authorizer
	bus   eventBusTypes.IEventBus
	sink  *metrics.MetricsSink

	logger *zap.Logger
}

func NewVestingLedger(
	cfg *VestingLedgerConfig,
	bank types.TokenTransfer,
	clock types.Clock,
	auth types.Authorizer,
	bus eventBusTypes.IEventBus,
	sink *metrics.MetricsSink,
	l *zap.Logger,
) *VestingLedger {
	return &VestingLedger{
		custody: cfg.CustodyAddress,
		global: &GlobalVestingConfig{
			TotalEscrowed: big.NewInt(0),
			TotalReleased: big.NewInt(0),
			TotalRevoked:  big.NewInt(0),
		},
		schedules:     orderedmap.New[string, *VestingSchedule](),
		byBeneficiary: make(map[types.Address][]string),
		bank:          bank,
		clock:         clock,
		auth:          auth,
		bus:           bus,
		sink:          sink,
		logger:        l,
	}
}

// CreateSchedule escrows totalAmount from the creator and registers a new
// schedule. startTime == 0 means "now". Returns the schedule id.
func (vl *VestingLedger) CreateSchedule(
	creator types.Address,
	beneficiary types.Address,
	totalAmount *big.Int,
	startTime uint64,
	cliffDuration uint64,
	vestingDuration uint64,
) (string, error) {
	release, err := vl.begin()
	if err != nil {
		return "", err
	}
	defer release()

	if beneficiary.IsZero() {
		return "", types.ErrInvalidVestingParameters
	}
	if totalAmount == nil || totalAmount.Sign() <= 0 {
		return "", types.ErrZeroAmount
	}
	if vestingDuration == 0 || cliffDuration > vestingDuration {
		return "", types.ErrInvalidVestingParameters
	}

	now := vl.clock.Now()
	if startTime == 0 {
		startTime = now
	}
	// The curve boundaries startTime+cliffDuration and startTime+vestingDuration
	// must be representable; a wrapped boundary would land in the past and
	// release everything immediately.
	if startTime > math.MaxUint64-vestingDuration {
		return "", types.ErrInvalidVestingParameters
	}
	id := scheduleId(beneficiary, totalAmount, startTime, cliffDuration, vestingDuration, vl.global.CreationNonce)

	if err := vl.transfer(creator, vl.custody, totalAmount); err != nil {
		return "", errors.Wrap(types.ErrTransferFailed, err.Error())
	}

	sched := &VestingSchedule{
		Id:              id,
		Creator:         creator,
		Beneficiary:     beneficiary,
		TotalAmount:     new(big.Int).Set(totalAmount),
		ClaimedAmount:   big.NewInt(0),
		StartTime:       startTime,
		CliffDuration:   cliffDuration,
		VestingDuration: vestingDuration,
	}
	vl.schedules.Set(id, sched)
	vl.byBeneficiary[beneficiary] = append(vl.byBeneficiary[beneficiary], id)
	vl.global.CreationNonce++
	vl.global.TotalSchedules++
	vl.global.TotalEscrowed.Add(vl.global.TotalEscrowed, totalAmount)

	vl.logger.Sugar().Infow("Created vesting schedule",
		zap.String("scheduleId", id),
		zap.String("creator", creator.String()),
		zap.String("beneficiary", beneficiary.String()),
		zap.String("totalAmount", totalAmount.String()),
		zap.Uint64("startTime", startTime),
		zap.Uint64("cliffDuration", cliffDuration),
		zap.Uint64("vestingDuration", vestingDuration),
	)
	_ = vl.sink.Incr(metricsTypes.Metric_Incr_VestingScheduleCreated, nil, 1)
	_ = vl.sink.Gauge(metricsTypes.Metric_Gauge_VestingTotalEscrowed, numbers.AmountToFloat(vl.global.TotalEscrowed), nil)
	_ = vl.sink.Gauge(metricsTypes.Metric_Gauge_VestingScheduleCount, float64(vl.global.TotalSchedules), nil)
	vl.emit(eventBusTypes.Event_VestingScheduleCreated, "createSchedule", beneficiary, totalAmount, id, now)
	return id, nil
}

// VestedAmount evaluates the release curve for a schedule at the current
// time. For a revoked schedule the curve is frozen at the revocation time.
func (vl *VestingLedger) VestedAmount(id string) (*big.Int, error) {
	release, err := vl.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	sched, ok := vl.schedules.Get(id)
	if !ok {
		return nil, types.ErrVestingNotFound
	}
	return vl.vestedAt(sched, vl.clock.Now()), nil
}

// ClaimableAmount is vested minus claimed, zero for revoked schedules.
func (vl *VestingLedger) ClaimableAmount(id string) (*big.Int, error) {
	release, err := vl.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	sched, ok := vl.schedules.Get(id)
	if !ok {
		return nil, types.ErrVestingNotFound
	}
	return vl.claimable(sched, vl.clock.Now()), nil
}

// Claim pays the currently claimable portion of one schedule to its
// beneficiary. All-or-nothing: the full claimable amount transfers or the
// call fails.
func (vl *VestingLedger) Claim(caller types.Address, id string) (*big.Int, error) {
	release, err := vl.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	sched, ok := vl.schedules.Get(id)
	if !ok {
		return nil, types.ErrVestingNotFound
	}
	if caller != sched.Beneficiary {
		return nil, types.ErrNotAuthorized
	}
	if sched.Revoked {
		return nil, types.ErrVestingAlreadyRevoked
	}
	now := vl.clock.Now()
	amount := vl.claimable(sched, now)
	if amount.Sign() == 0 {
		return nil, types.ErrNothingToClaim
	}

	if err := vl.transfer(vl.custody, sched.Beneficiary, amount); err != nil {
		return nil, errors.Wrap(types.ErrTransferFailed, err.Error())
	}

	sched.ClaimedAmount.Add(sched.ClaimedAmount, amount)
	vl.global.TotalReleased.Add(vl.global.TotalReleased, amount)

	vl.logger.Sugar().Infow("Claimed vested tokens",
		zap.String("scheduleId", id),
		zap.String("beneficiary", sched.Beneficiary.String()),
		zap.String("amount", amount.String()),
	)
	_ = vl.sink.Incr(metricsTypes.Metric_Incr_VestingClaimed, nil, 1)
	vl.emit(eventBusTypes.Event_VestingClaimed, "claim", sched.Beneficiary, amount, id, now)
	return amount, nil
}

// ClaimAll sums the claimable amounts across every schedule the caller owns
// and performs a single aggregate transfer. Revoked or empty schedules are
// skipped silently; the call only fails if the total is zero.
func (vl *VestingLedger) ClaimAll(caller types.Address) (*big.Int, error) {
	release, err := vl.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	now := vl.clock.Now()
	total := big.NewInt(0)
	parts := make(map[string]*big.Int)
	for _, id := range vl.byBeneficiary[caller] {
		sched, ok := vl.schedules.Get(id)
		if !ok || sched.Revoked {
			continue
		}
		amount := vl.claimable(sched, now)
		if amount.Sign() == 0 {
			continue
		}
		parts[id] = amount
		total.Add(total, amount)
	}
	if total.Sign() == 0 {
		return nil, types.ErrNothingToClaim
	}

	if err := vl.transfer(vl.custody, caller, total); err != nil {
		return nil, errors.Wrap(types.ErrTransferFailed, err.Error())
	}

	for id, amount := range parts {
		sched, _ := vl.schedules.Get(id)
		sched.ClaimedAmount.Add(sched.ClaimedAmount, amount)
	}
	vl.global.TotalReleased.Add(vl.global.TotalReleased, total)

	vl.logger.Sugar().Infow("Claimed across all schedules",
		zap.String("beneficiary", caller.String()),
		zap.String("amount", total.String()),
		zap.Int("schedules", len(parts)),
	)
	_ = vl.sink.Incr(metricsTypes.Metric_Incr_VestingClaimed, nil, float64(len(parts)))
	vl.emit(eventBusTypes.Event_VestingClaimed, "claimAll", caller, total, "", now)
	return total, nil
}

// Revoke stops a schedule. The vested-but-unclaimed portion is paid to the
// beneficiary immediately (their earned entitlement survives revocation);
// the unvested remainder returns to the creator. Returns the clawed-back
// amount.
func (vl *VestingLedger) Revoke(caller types.Address, id string) (*big.Int, error) {
	release, err := vl.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	if !vl.auth.IsOwner(caller) {
		return nil, types.ErrNotAuthorized
	}
	sched, ok := vl.schedules.Get(id)
	if !ok {
		return nil, types.ErrVestingNotFound
	}
	if sched.Revoked {
		return nil, types.ErrVestingAlreadyRevoked
	}

	now := vl.clock.Now()
	vested := vl.vestedAt(sched, now)
	payout := new(big.Int).Sub(vested, sched.ClaimedAmount)
	unvested := new(big.Int).Sub(sched.TotalAmount, vested)

	// The revocation is committed between the two custody movements: once
	// the beneficiary has been paid, the schedule must not be claimable
	// again even if the creator refund fails.
	if payout.Sign() > 0 {
		if err := vl.transfer(vl.custody, sched.Beneficiary, payout); err != nil {
			return nil, errors.Wrap(types.ErrTransferFailed, err.Error())
		}
	}
	sched.ClaimedAmount.Set(vested)
	sched.Revoked = true
	sched.RevokedAt = now
	vl.global.TotalReleased.Add(vl.global.TotalReleased, payout)

	if unvested.Sign() > 0 {
		if err := vl.transfer(vl.custody, sched.Creator, unvested); err != nil {
			return nil, errors.Wrap(types.ErrTransferFailed, err.Error())
		}
	}
	vl.global.TotalRevoked.Add(vl.global.TotalRevoked, unvested)

	vl.logger.Sugar().Infow("Revoked vesting schedule",
		zap.String("scheduleId", id),
		zap.String("payout", payout.String()),
		zap.String("clawedBack", unvested.String()),
	)
	_ = vl.sink.Incr(metricsTypes.Metric_Incr_VestingRevoked, nil, 1)
	vl.emit(eventBusTypes.Event_VestingRevoked, "revoke", sched.Beneficiary, unvested, id, now)
	return unvested, nil
}

// GetSchedule returns a copy of one schedule.
func (vl *VestingLedger) GetSchedule(id string) (*VestingSchedule, error) {
	release, err := vl.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	sched, ok := vl.schedules.Get(id)
	if !ok {
		return nil, types.ErrVestingNotFound
	}
	return copySchedule(sched), nil
}

// SchedulesOf returns copies of every schedule owned by the beneficiary.
func (vl *VestingLedger) SchedulesOf(beneficiary types.Address) ([]*VestingSchedule, error) {
	release, err := vl.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	ids := vl.byBeneficiary[beneficiary]
	out := make([]*VestingSchedule, 0, len(ids))
	for _, id := range ids {
		if sched, ok := vl.schedules.Get(id); ok {
			out = append(out, copySchedule(sched))
		}
	}
	return out, nil
}

// Global returns a copy of the global vesting counters.
func (vl *VestingLedger) Global() (*GlobalVestingConfig, error) {
	release, err := vl.begin()
	if err != nil {
		return nil, err
	}
	defer release()
	return &GlobalVestingConfig{
		CreationNonce:  vl.global.CreationNonce,
		TotalSchedules: vl.global.TotalSchedules,
		TotalEscrowed:  new(big.Int).Set(vl.global.TotalEscrowed),
		TotalReleased:  new(big.Int).Set(vl.global.TotalReleased),
		TotalRevoked:   new(big.Int).Set(vl.global.TotalRevoked),
	}, nil
}

func (vl *VestingLedger) vestedAt(sched *VestingSchedule, now uint64) *big.Int {
	if sched.Revoked && sched.RevokedAt < now {
		now = sched.RevokedAt
	}
	return numbers.VestedAmount(sched.TotalAmount, sched.StartTime, sched.CliffDuration, sched.VestingDuration, now)
}

func (vl *VestingLedger) claimable(sched *VestingSchedule, now uint64) *big.Int {
	if sched.Revoked {
		return big.NewInt(0)
	}
	claimable := vl.vestedAt(sched, now)
	claimable.Sub(claimable, sched.ClaimedAmount)
	if claimable.Sign() < 0 {
		return big.NewInt(0)
	}
	return claimable
}

func (vl *VestingLedger) begin() (func(), error) {
	if vl.guard.Active() {
		return nil, types.ErrReentrantCall
	}
	vl.mu.Lock()
	return vl.mu.Unlock, nil
}

func (vl *VestingLedger) transfer(from types.Address, to types.Address, amount *big.Int) error {
	vl.guard.Enter()
	defer vl.guard.Exit()
	return vl.bank.Transfer(from, to, amount)
}

func (vl *VestingLedger) emit(name eventBusTypes.EventName, op string, account types.Address, amount *big.Int, id string, now uint64) {
	if vl.bus == nil {
		return
	}
	vl.bus.Publish(&eventBusTypes.Event{
		Name: name,
		Data: &eventBusTypes.LedgerOperation{
			Ledger:     "vesting",
			Operation:  op,
			Account:    account.String(),
			Amount:     numbers.AmountToString(amount),
			ScheduleId: id,
			OccurredAt: now,
		},
	})
}

// scheduleId hashes the schedule parameters together with the creation
// nonce, so two grants with identical parameters still get distinct ids.
func scheduleId(
	beneficiary types.Address,
	totalAmount *big.Int,
	startTime uint64,
	cliffDuration uint64,
	vestingDuration uint64,
	nonce uint64,
) string {
	var nums [32]byte
	binary.BigEndian.PutUint64(nums[0:8], startTime)
	binary.BigEndian.PutUint64(nums[8:16], cliffDuration)
	binary.BigEndian.PutUint64(nums[16:24], vestingDuration)
	binary.BigEndian.PutUint64(nums[24:32], nonce)
	sum := crypto.Keccak256(
		[]byte(beneficiary),
		totalAmount.Bytes(),
		nums[:],
	)
	return "0x" + hex.EncodeToString(sum)
}

func copySchedule(sched *VestingSchedule) *VestingSchedule {
	cp := *sched
	cp.TotalAmount = new(big.Int).Set(sched.TotalAmount)
	cp.ClaimedAmount = new(big.Int).Set(sched.ClaimedAmount)
	return &cp
}
