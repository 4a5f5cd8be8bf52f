package rpcServer

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ledgerlabs/stakevault/pkg/numbers"
	"github.com/ledgerlabs/stakevault/pkg/stakeledger"
	"github.com/ledgerlabs/stakevault/pkg/types"
)

type stakeMutationRequest struct {
	Participant string `json:"participant"`
	Amount      string `json:"amount"`
}

type stakeClaimRequest struct {
	Participant string `json:"participant"`
}

type setRewardRateRequest struct {
	Caller string `json:"caller"`
	// Annual rate as a decimal string, e.g. "0.10".
	Rate string `json:"rate"`
}

type setLockPeriodRequest struct {
	Caller  string `json:"caller"`
	Seconds uint64 `json:"seconds"`
}

type stakeRecordResponse struct {
	Participant   string `json:"participant"`
	Principal     string `json:"principal"`
	AccruedDebt   string `json:"accruedDebt"`
	LastUpdate    uint64 `json:"lastUpdate"`
	LockUntil     uint64 `json:"lockUntil"`
	PendingReward string `json:"pendingReward"`
}

type stakeGlobalResponse struct {
	RewardRatePerYear       string `json:"rewardRatePerYear"`
	LockPeriodSeconds       uint64 `json:"lockPeriodSeconds"`
	TotalStaked             string `json:"totalStaked"`
	TotalRewardsDistributed string `json:"totalRewardsDistributed"`
}

func (s *RpcServer) handleStakeDeposit(w http.ResponseWriter, r *http.Request) error {
	var req stakeMutationRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}
	participant, err := types.ParseAddress(req.Participant)
	if err != nil {
		return badRequest(err)
	}
	amount, err := numbers.AmountFromString(req.Amount)
	if err != nil {
		return badRequest(err)
	}
	if err := s.stakeLedger.Deposit(participant, amount); err != nil {
		return err
	}
	return WriteJSON(w, map[string]string{"status": "ok"})
}

func (s *RpcServer) handleStakeWithdraw(w http.ResponseWriter, r *http.Request) error {
	var req stakeMutationRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}
	participant, err := types.ParseAddress(req.Participant)
	if err != nil {
		return badRequest(err)
	}
	amount, err := numbers.AmountFromString(req.Amount)
	if err != nil {
		return badRequest(err)
	}
	if err := s.stakeLedger.Withdraw(participant, amount); err != nil {
		return err
	}
	return WriteJSON(w, map[string]string{"status": "ok"})
}

func (s *RpcServer) handleStakeClaimRewards(w http.ResponseWriter, r *http.Request) error {
	var req stakeClaimRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}
	participant, err := types.ParseAddress(req.Participant)
	if err != nil {
		return badRequest(err)
	}
	reward, err := s.stakeLedger.ClaimRewards(participant)
	if err != nil {
		return err
	}
	return WriteJSON(w, map[string]string{"reward": reward.String()})
}

func (s *RpcServer) handleSetRewardRate(w http.ResponseWriter, r *http.Request) error {
	var req setRewardRateRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}
	caller, err := types.ParseAddress(req.Caller)
	if err != nil {
		return badRequest(err)
	}
	rate, err := numbers.RateFromString(req.Rate)
	if err != nil {
		return badRequest(err)
	}
	if err := s.stakeLedger.SetRewardRate(caller, rate); err != nil {
		return err
	}
	return WriteJSON(w, map[string]string{"status": "ok"})
}

func (s *RpcServer) handleSetLockPeriod(w http.ResponseWriter, r *http.Request) error {
	var req setLockPeriodRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}
	caller, err := types.ParseAddress(req.Caller)
	if err != nil {
		return badRequest(err)
	}
	if err := s.stakeLedger.SetLockPeriod(caller, req.Seconds); err != nil {
		return err
	}
	return WriteJSON(w, map[string]string{"status": "ok"})
}

func (s *RpcServer) handleStakeRecord(w http.ResponseWriter, r *http.Request) error {
	participant, err := types.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		return badRequest(err)
	}
	rec, found, err := s.stakeLedger.Record(participant)
	if err != nil {
		return err
	}
	if !found {
		rec = &stakeledger.StakeRecord{}
	}
	pending, err := s.stakeLedger.PendingReward(participant)
	if err != nil {
		return err
	}
	resp := stakeRecordResponse{
		Participant:   participant.String(),
		Principal:     "0",
		AccruedDebt:   "0",
		PendingReward: pending.String(),
	}
	if found {
		resp.Principal = rec.Principal.String()
		resp.AccruedDebt = rec.AccruedDebt.String()
		resp.LastUpdate = rec.LastUpdate
		resp.LockUntil = rec.LockUntil
	}
	return WriteJSON(w, resp)
}

func (s *RpcServer) handleStakeGlobal(w http.ResponseWriter, r *http.Request) error {
	global, err := s.stakeLedger.Global()
	if err != nil {
		return err
	}
	return WriteJSON(w, stakeGlobalResponse{
		RewardRatePerYear:       numbers.RateToString(global.RewardRatePerYear),
		LockPeriodSeconds:       global.LockPeriodSeconds,
		TotalStaked:             global.TotalStaked.String(),
		TotalRewardsDistributed: global.TotalRewardsDistributed.String(),
	})
}
