package stakeledger

import (
	"github.com/ledgerlabs/stakevault/pkg/numbers"
	"github.com/ledgerlabs/stakevault/pkg/types"
)

// RecordState is the serialized form of one stake record.
type RecordState struct {
	Participant string `json:"participant" csv:"participant"`
	Principal   string `json:"principal" csv:"principal"`
	AccruedDebt string `json:"accruedDebt" csv:"accrued_debt"`
	LastUpdate  uint64 `json:"lastUpdate" csv:"last_update"`
	LockUntil   uint64 `json:"lockUntil" csv:"lock_until"`
}

type GlobalState struct {
	RewardRatePerYear       string `json:"rewardRatePerYear"`
	LockPeriodSeconds       uint64 `json:"lockPeriodSeconds"`
	TotalStaked             string `json:"totalStaked"`
	TotalRewardsDistributed string `json:"totalRewardsDistributed"`
}

type State struct {
	Global  GlobalState   `json:"global"`
	Records []RecordState `json:"records"`
}

func (sl *StakeLedger) ExportState() (*State, error) {
	release, err := sl.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	st := &State{
		Global: GlobalState{
			RewardRatePerYear:       sl.global.RewardRatePerYear.String(),
			LockPeriodSeconds:       sl.global.LockPeriodSeconds,
			TotalStaked:             sl.global.TotalStaked.String(),
			TotalRewardsDistributed: sl.global.TotalRewardsDistributed.String(),
		},
		Records: make([]RecordState, 0, len(sl.records)),
	}
	for participant, rec := range sl.records {
		st.Records = append(st.Records, RecordState{
			Participant: participant.String(),
			Principal:   rec.Principal.String(),
			AccruedDebt: rec.AccruedDebt.String(),
			LastUpdate:  rec.LastUpdate,
			LockUntil:   rec.LockUntil,
		})
	}
	return st, nil
}

func (sl *StakeLedger) RestoreState(st *State) error {
	release, err := sl.begin()
	if err != nil {
		return err
	}
	defer release()

	rate, err := numbers.AmountFromString(st.Global.RewardRatePerYear)
	if err != nil {
		return err
	}
	totalStaked, err := numbers.AmountFromString(st.Global.TotalStaked)
	if err != nil {
		return err
	}
	distributed, err := numbers.AmountFromString(st.Global.TotalRewardsDistributed)
	if err != nil {
		return err
	}
	records := make(map[types.Address]*StakeRecord, len(st.Records))
	for _, rs := range st.Records {
		principal, err := numbers.AmountFromString(rs.Principal)
		if err != nil {
			return err
		}
		debt, err := numbers.AmountFromString(rs.AccruedDebt)
		if err != nil {
			return err
		}
		records[types.Address(rs.Participant)] = &StakeRecord{
			Principal:   principal,
			AccruedDebt: debt,
			LastUpdate:  rs.LastUpdate,
			LockUntil:   rs.LockUntil,
		}
	}

	sl.global.RewardRatePerYear = rate
	sl.global.LockPeriodSeconds = st.Global.LockPeriodSeconds
	sl.global.TotalStaked = totalStaked
	sl.global.TotalRewardsDistributed = distributed
	sl.records = records
	return nil
}
