// Package tokenbank is the in-process TokenTransfer collaborator: an
// address-keyed balance map with ERC20-style approvals. The ledgers never
// hold balances themselves; everything they escrow lives in custody accounts
// inside the bank.
package tokenbank

import (
	"math/big"
	"sync"

	"go.uber.org/zap"

	"github.com/ledgerlabs/stakevault/pkg/numbers"
	"github.com/ledgerlabs/stakevault/pkg/types"
)

type TokenBank struct {
	mu          sync.RWMutex
	balances    map[types.Address]*big.Int
	allowances  map[types.Address]map[types.Address]*big.Int
	totalSupply *big.Int
	logger      *zap.Logger
}

func NewTokenBank(l *zap.Logger) *TokenBank {
	return &TokenBank{
		balances:    make(map[types.Address]*big.Int),
		allowances:  make(map[types.Address]map[types.Address]*big.Int),
		totalSupply: big.NewInt(0),
		logger:      l,
	}
}

// Mint credits freshly issued tokens to an account. Used for genesis
// allocations and reward pool funding.
func (b *TokenBank) Mint(to types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return types.ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(to, amount)
	b.totalSupply.Add(b.totalSupply, amount)
	b.logger.Sugar().Debugw("Minted tokens",
		zap.String("to", to.String()),
		zap.String("amount", amount.String()),
	)
	return nil
}

// Transfer moves amount from one holder to another. Fails with
// ErrInsufficientBalance without touching either balance.
func (b *TokenBank) Transfer(from types.Address, to types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return types.ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.move(from, to, amount)
}

// TransferFrom moves amount on behalf of spender, consuming allowance.
func (b *TokenBank) TransferFrom(spender types.Address, from types.Address, to types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return types.ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	allowed := b.allowance(from, spender)
	if allowed.Cmp(amount) < 0 {
		return types.ErrInsufficientAllowance
	}
	if err := b.move(from, to, amount); err != nil {
		return err
	}
	allowed.Sub(allowed, amount)
	return nil
}

// Approve sets spender's allowance over owner's balance.
func (b *TokenBank) Approve(owner types.Address, spender types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return types.ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	perOwner, ok := b.allowances[owner]
	if !ok {
		perOwner = make(map[types.Address]*big.Int)
		b.allowances[owner] = perOwner
	}
	perOwner[spender] = new(big.Int).Set(amount)
	return nil
}

func (b *TokenBank) BalanceOf(addr types.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

func (b *TokenBank) Allowance(owner types.Address, spender types.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return new(big.Int).Set(b.allowance(owner, spender))
}

func (b *TokenBank) TotalSupply() *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return new(big.Int).Set(b.totalSupply)
}

func (b *TokenBank) move(from types.Address, to types.Address, amount *big.Int) error {
	bal, ok := b.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return types.ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	b.credit(to, amount)
	return nil
}

func (b *TokenBank) credit(to types.Address, amount *big.Int) {
	if bal, ok := b.balances[to]; ok {
		bal.Add(bal, amount)
		return
	}
	b.balances[to] = new(big.Int).Set(amount)
}

func (b *TokenBank) allowance(owner types.Address, spender types.Address) *big.Int {
	if perOwner, ok := b.allowances[owner]; ok {
		if a, ok := perOwner[spender]; ok {
			return a
		}
	}
	return big.NewInt(0)
}

// BalanceState is one holder's balance in a serialized bank snapshot.
type BalanceState struct {
	Address string `json:"address" csv:"address"`
	Balance string `json:"balance" csv:"balance"`
}

type AllowanceState struct {
	Owner   string `json:"owner" csv:"owner"`
	Spender string `json:"spender" csv:"spender"`
	Amount  string `json:"amount" csv:"amount"`
}

type State struct {
	TotalSupply string           `json:"totalSupply"`
	Balances    []BalanceState   `json:"balances"`
	Allowances  []AllowanceState `json:"allowances"`
}

func (b *TokenBank) ExportState() *State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st := &State{
		TotalSupply: b.totalSupply.String(),
		Balances:    make([]BalanceState, 0, len(b.balances)),
		Allowances:  make([]AllowanceState, 0),
	}
	for addr, bal := range b.balances {
		st.Balances = append(st.Balances, BalanceState{Address: addr.String(), Balance: bal.String()})
	}
	for owner, perOwner := range b.allowances {
		for spender, amount := range perOwner {
			st.Allowances = append(st.Allowances, AllowanceState{
				Owner:   owner.String(),
				Spender: spender.String(),
				Amount:  amount.String(),
			})
		}
	}
	return st
}

func (b *TokenBank) RestoreState(st *State) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	supply, err := numbers.AmountFromString(st.TotalSupply)
	if err != nil {
		return err
	}
	balances := make(map[types.Address]*big.Int, len(st.Balances))
	for _, bs := range st.Balances {
		bal, err := numbers.AmountFromString(bs.Balance)
		if err != nil {
			return err
		}
		balances[types.Address(bs.Address)] = bal
	}
	allowances := make(map[types.Address]map[types.Address]*big.Int)
	for _, as := range st.Allowances {
		amount, err := numbers.AmountFromString(as.Amount)
		if err != nil {
			return err
		}
		owner := types.Address(as.Owner)
		if _, ok := allowances[owner]; !ok {
			allowances[owner] = make(map[types.Address]*big.Int)
		}
		allowances[owner][types.Address(as.Spender)] = amount
	}
	b.totalSupply = supply
	b.balances = balances
	b.allowances = allowances
	return nil
}
