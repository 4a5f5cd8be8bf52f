package rpcServer

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/ledgerlabs/stakevault/pkg/numbers"
	"github.com/ledgerlabs/stakevault/pkg/types"
)

type approveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func (s *RpcServer) handleBankApprove(w http.ResponseWriter, r *http.Request) error {
	var req approveRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}
	owner, err := types.ParseAddress(req.Owner)
	if err != nil {
		return badRequest(err)
	}
	spender, err := types.ParseAddress(req.Spender)
	if err != nil {
		return badRequest(err)
	}
	amount, err := numbers.AmountFromString(req.Amount)
	if err != nil {
		return badRequest(err)
	}
	if err := s.bank.Approve(owner, spender, amount); err != nil {
		return err
	}
	return WriteJSON(w, map[string]string{"status": "ok"})
}

func (s *RpcServer) handleBankBalance(w http.ResponseWriter, r *http.Request) error {
	addr, err := types.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		return badRequest(err)
	}
	return WriteJSON(w, map[string]string{
		"address": addr.String(),
		"balance": s.bank.BalanceOf(addr).String(),
	})
}

func (s *RpcServer) handleBankSupply(w http.ResponseWriter, r *http.Request) error {
	return WriteJSON(w, map[string]string{"totalSupply": s.bank.TotalSupply().String()})
}

const defaultAuditLimit = 100

func (s *RpcServer) auditLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultAuditLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, badRequest(errors.New("limit must be a positive integer"))
	}
	return limit, nil
}

func (s *RpcServer) handleAuditRecent(w http.ResponseWriter, r *http.Request) error {
	if s.auditLog == nil {
		return HTTPError(errors.New("audit log is not enabled"), http.StatusNotImplemented)
	}
	limit, err := s.auditLimit(r)
	if err != nil {
		return err
	}
	records, err := s.auditLog.ListRecent(limit)
	if err != nil {
		return err
	}
	return WriteJSON(w, records)
}

func (s *RpcServer) handleAuditByAccount(w http.ResponseWriter, r *http.Request) error {
	if s.auditLog == nil {
		return HTTPError(errors.New("audit log is not enabled"), http.StatusNotImplemented)
	}
	addr, err := types.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		return badRequest(err)
	}
	limit, err := s.auditLimit(r)
	if err != nil {
		return err
	}
	records, err := s.auditLog.ListByAccount(addr.String(), limit)
	if err != nil {
		return err
	}
	return WriteJSON(w, records)
}
