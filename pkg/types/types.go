package types

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Address identifies a token holder. Stored lowercased so map lookups are
// insensitive to the checksum casing callers use on the wire.
type Address string

func (a Address) String() string {
	return string(a)
}

func (a Address) IsZero() bool {
	return a == ""
}

// ParseAddress validates a 0x-prefixed hex address and normalizes it.
func ParseAddress(s string) (Address, error) {
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("invalid address '%s'", s)
	}
	return Address(strings.ToLower(s)), nil
}

// DeriveCustodyAddress deterministically derives an internal custody address
// from a tag. Custody accounts hold escrowed balances on behalf of a ledger
// and are never controlled by a participant.
func DeriveCustodyAddress(tag string) Address {
	sum := crypto.Keccak256([]byte("stakevault/custody/" + tag))
	return Address("0x" + hex.EncodeToString(sum[12:]))
}

// TokenTransfer moves value between holders. Implementations must either
// apply the full movement or leave balances untouched.
type TokenTransfer interface {
	Transfer(from Address, to Address, amount *big.Int) error
	TransferFrom(spender Address, from Address, to Address, amount *big.Int) error
}

// Clock returns the current logical time in unix seconds. Implementations
// must be monotonic non-decreasing.
type Clock interface {
	Now() uint64
}

// Authorizer gates owner-only operations (rate changes, lock period changes,
// schedule revocation).
type Authorizer interface {
	IsOwner(caller Address) bool
}

// SingleOwner authorizes exactly one configured address.
type SingleOwner struct {
	Owner Address
}

func NewSingleOwner(owner Address) *SingleOwner {
	return &SingleOwner{Owner: owner}
}

func (s *SingleOwner) IsOwner(caller Address) bool {
	return !caller.IsZero() && caller == s.Owner
}
