package gate

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Role identifies a capability granted to an address.
type Role string

// Flag identifies a feature toggle.
type Flag string

const (
	// RoleMinter is required of the executor of any mint, whether the
	// executor is the direct caller or a recovered authorization signer.
	RoleMinter Role = "minter"

	// RoleHardcapAdmin is required to overwrite the total mint hardcap.
	RoleHardcapAdmin Role = "hardcap-admin"

	// FlagAuthorizedMinting gates the signature-based minting path.
	FlagAuthorizedMinting Flag = "authorized-minting"
)

// RoleStore answers capability checks for addresses.
type RoleStore interface {
	HasRole(addr common.Address, role Role) bool
}

// FeatureFlags answers feature-toggle checks.
type FeatureFlags interface {
	Enabled(flag Flag) bool
}

// Minter is the external token-issuance capability. Mint either fully
// succeeds or returns an error, in which case the enclosing operation
// rolls back its counter increment.
type Minter interface {
	Mint(ctx context.Context, target, recipient common.Address, tokenID *big.Int) error
}

// MinterFunc adapts a function to the Minter interface.
type MinterFunc func(ctx context.Context, target, recipient common.Address, tokenID *big.Int) error

func (f MinterFunc) Mint(ctx context.Context, target, recipient common.Address, tokenID *big.Int) error {
	return f(ctx, target, recipient, tokenID)
}

// StaticRoles is a fixed in-memory role store.
type StaticRoles map[common.Address]map[Role]bool

func (s StaticRoles) HasRole(addr common.Address, role Role) bool {
	return s[addr][role]
}

// Grant adds a role to an address, returning the store for chaining.
func (s StaticRoles) Grant(addr common.Address, role Role) StaticRoles {
	if s[addr] == nil {
		s[addr] = make(map[Role]bool)
	}
	s[addr][role] = true
	return s
}

// StaticFlags is a fixed in-memory feature-flag store.
type StaticFlags map[Flag]bool

func (s StaticFlags) Enabled(flag Flag) bool {
	return s[flag]
}
