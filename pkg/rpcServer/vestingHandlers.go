package rpcServer

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ledgerlabs/stakevault/pkg/numbers"
	"github.com/ledgerlabs/stakevault/pkg/types"
	"github.com/ledgerlabs/stakevault/pkg/vestingledger"
)

type createScheduleRequest struct {
	Creator         string `json:"creator"`
	Beneficiary     string `json:"beneficiary"`
	TotalAmount     string `json:"totalAmount"`
	StartTime       uint64 `json:"startTime"`
	CliffDuration   uint64 `json:"cliffDuration"`
	VestingDuration uint64 `json:"vestingDuration"`
}

type vestingClaimRequest struct {
	Caller     string `json:"caller"`
	ScheduleId string `json:"scheduleId"`
}

type vestingClaimAllRequest struct {
	Caller string `json:"caller"`
}

type scheduleResponse struct {
	Id              string `json:"id"`
	Creator         string `json:"creator"`
	Beneficiary     string `json:"beneficiary"`
	TotalAmount     string `json:"totalAmount"`
	ClaimedAmount   string `json:"claimedAmount"`
	StartTime       uint64 `json:"startTime"`
	CliffDuration   uint64 `json:"cliffDuration"`
	VestingDuration uint64 `json:"vestingDuration"`
	Revoked         bool   `json:"revoked"`
	RevokedAt       uint64 `json:"revokedAt"`
	VestedAmount    string `json:"vestedAmount,omitempty"`
	ClaimableAmount string `json:"claimableAmount,omitempty"`
}

type vestingGlobalResponse struct {
	TotalSchedules uint64 `json:"totalSchedules"`
	TotalEscrowed  string `json:"totalEscrowed"`
	TotalReleased  string `json:"totalReleased"`
	TotalRevoked   string `json:"totalRevoked"`
}

func scheduleToResponse(sched *vestingledger.VestingSchedule) scheduleResponse {
	return scheduleResponse{
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
	}
}

func (s *RpcServer) handleCreateSchedule(w http.ResponseWriter, r *http.Request) error {
	var req createScheduleRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}
	creator, err := types.ParseAddress(req.Creator)
	if err != nil {
		return badRequest(err)
	}
	beneficiary, err := types.ParseAddress(req.Beneficiary)
	if err != nil {
		return badRequest(err)
	}
	amount, err := numbers.AmountFromString(req.TotalAmount)
	if err != nil {
		return badRequest(err)
	}
	id, err := s.vestingLedger.CreateSchedule(creator, beneficiary, amount, req.StartTime, req.CliffDuration, req.VestingDuration)
	if err != nil {
		return err
	}
	return WriteJSON(w, map[string]string{"scheduleId": id})
}

func (s *RpcServer) handleVestingClaim(w http.ResponseWriter, r *http.Request) error {
	var req vestingClaimRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}
	caller, err := types.ParseAddress(req.Caller)
	if err != nil {
		return badRequest(err)
	}
	amount, err := s.vestingLedger.Claim(caller, req.ScheduleId)
	if err != nil {
		return err
	}
	return WriteJSON(w, map[string]string{"claimed": amount.String()})
}

func (s *RpcServer) handleVestingClaimAll(w http.ResponseWriter, r *http.Request) error {
	var req vestingClaimAllRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}
	caller, err := types.ParseAddress(req.Caller)
	if err != nil {
		return badRequest(err)
	}
	amount, err := s.vestingLedger.ClaimAll(caller)
	if err != nil {
		return err
	}
	return WriteJSON(w, map[string]string{"claimed": amount.String()})
}

func (s *RpcServer) handleVestingRevoke(w http.ResponseWriter, r *http.Request) error {
	var req vestingClaimRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}
	caller, err := types.ParseAddress(req.Caller)
	if err != nil {
		return badRequest(err)
	}
	refunded, err := s.vestingLedger.Revoke(caller, req.ScheduleId)
	if err != nil {
		return err
	}
	return WriteJSON(w, map[string]string{"refunded": refunded.String()})
}

func (s *RpcServer) handleGetSchedule(w http.ResponseWriter, r *http.Request) error {
	id := mux.Vars(r)["id"]
	sched, err := s.vestingLedger.GetSchedule(id)
	if err != nil {
		return err
	}
	vested, err := s.vestingLedger.VestedAmount(id)
	if err != nil {
		return err
	}
	claimable, err := s.vestingLedger.ClaimableAmount(id)
	if err != nil {
		return err
	}
	resp := scheduleToResponse(sched)
	resp.VestedAmount = vested.String()
	resp.ClaimableAmount = claimable.String()
	return WriteJSON(w, resp)
}

func (s *RpcServer) handleSchedulesOf(w http.ResponseWriter, r *http.Request) error {
	beneficiary, err := types.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		return badRequest(err)
	}
	schedules, err := s.vestingLedger.SchedulesOf(beneficiary)
	if err != nil {
		return err
	}
	resp := make([]scheduleResponse, 0, len(schedules))
	for _, sched := range schedules {
		resp = append(resp, scheduleToResponse(sched))
	}
	return WriteJSON(w, resp)
}

func (s *RpcServer) handleVestingGlobal(w http.ResponseWriter, r *http.Request) error {
	global, err := s.vestingLedger.Global()
	if err != nil {
		return err
	}
	return WriteJSON(w, vestingGlobalResponse{
		TotalSchedules: global.TotalSchedules,
		TotalEscrowed:  global.TotalEscrowed.String(),
		TotalReleased:  global.TotalReleased.String(),
		TotalRevoked:   global.TotalRevoked.String(),
	})
}
