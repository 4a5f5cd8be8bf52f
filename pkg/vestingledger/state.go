package vestingledger

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ledgerlabs/stakevault/pkg/numbers"
	"github.com/ledgerlabs/stakevault/pkg/types"
)

// ScheduleState is the serialized form of one vesting schedule.
type ScheduleState struct {
	Id              string `json:"id" csv:"id"`
	Creator         string `json:"creator" csv:"creator"`
	Beneficiary     string `json:"beneficiary" csv:"beneficiary"`
	TotalAmount     string `json:"totalAmount" csv:"total_amount"`
	ClaimedAmount   string `json:"claimedAmount" csv:"claimed_amount"`
	StartTime       uint64 `json:"startTime" csv:"start_time"`
	CliffDuration   uint64 `json:"cliffDuration" csv:"cliff_duration"`
	VestingDuration uint64 `json:"vestingDuration" csv:"vesting_duration"`
	Revoked         bool   `json:"revoked" csv:"revoked"`
	RevokedAt       uint64 `json:"revokedAt" csv:"revoked_at"`
}

type GlobalState struct {
	CreationNonce  uint64 `json:"creationNonce"`
	TotalSchedules uint64 `json:"totalSchedules"`
	TotalEscrowed  string `json:"totalEscrowed"`
	TotalReleased  string `json:"totalReleased"`
	TotalRevoked   string `json:"totalRevoked"`
}

type State struct {
	Global    GlobalState     `json:"global"`
	Schedules []ScheduleState `json:"schedules"`
}

func (vl *VestingLedger) ExportState() (*State, error) {
	release, err := vl.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	st := &State{
		Global: GlobalState{
			CreationNonce:  vl.global.CreationNonce,
			TotalSchedules: vl.global.TotalSchedules,
			TotalEscrowed:  vl.global.TotalEscrowed.String(),
			TotalReleased:  vl.global.TotalReleased.String(),
			TotalRevoked:   vl.global.TotalRevoked.String(),
		},
		Schedules: make([]ScheduleState, 0, vl.schedules.Len()),
	}
	for pair := vl.schedules.Oldest(); pair != nil; pair = pair.Next() {
		sched := pair.Value
		st.Schedules = append(st.Schedules, ScheduleState{
			Id:              sched.Id,
			Creator:         sched.Creator.String(),
			Beneficiary:     sched.Beneficiary.String(),
			TotalAmount:     sched.TotalAmount.String(),
			ClaimedAmount:   sched.ClaimedAmount.String(),
			StartTime:       sched.StartTime,
			CliffDuration:   sched.CliffDuration,
			VestingDuration: sched.VestingDuration,
			Revoked:         sched.Revoked,
			RevokedAt:       sched.RevokedAt,
		})
	}
	return st, nil
}

func (vl *VestingLedger) RestoreState(st *State) error {
	release, err := vl.begin()
	if err != nil {
		return err
	}
	defer release()

	escrowed, err := numbers.AmountFromString(st.Global.TotalEscrowed)
	if err != nil {
		return err
	}
	released, err := numbers.AmountFromString(st.Global.TotalReleased)
	if err != nil {
		return err
	}
	revoked, err := numbers.AmountFromString(st.Global.TotalRevoked)
	if err != nil {
		return err
	}

	schedules := orderedmap.New[string, *VestingSchedule]()
	byBeneficiary := make(map[types.Address][]string)
	for _, ss := range st.Schedules {
		total, err := numbers.AmountFromString(ss.TotalAmount)
		if err != nil {
			return err
		}
		claimed, err := numbers.AmountFromString(ss.ClaimedAmount)
		if err != nil {
			return err
		}
		beneficiary := types.Address(ss.Beneficiary)
		schedules.Set(ss.Id, &VestingSchedule{
			Id:              ss.Id,
			Creator:         types.Address(ss.Creator),
			Beneficiary:     beneficiary,
			TotalAmount:     total,
			ClaimedAmount:   claimed,
			StartTime:       ss.StartTime,
			CliffDuration:   ss.CliffDuration,
			VestingDuration: ss.VestingDuration,
			Revoked:         ss.Revoked,
			RevokedAt:       ss.RevokedAt,
		})
		byBeneficiary[beneficiary] = append(byBeneficiary[beneficiary], ss.Id)
	}

	vl.global.CreationNonce = st.Global.CreationNonce
	vl.global.TotalSchedules = st.Global.TotalSchedules
	vl.global.TotalEscrowed = escrowed
	vl.global.TotalReleased = released
	vl.global.TotalRevoked = revoked
	vl.schedules = schedules
	vl.byBeneficiary = byBeneficiary
	return nil
}
