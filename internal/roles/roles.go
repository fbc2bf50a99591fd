// Package roles implements the capability checks gating every mutating
// operation of the engine: admin for structural configuration, trader for
// operational triggers (an admin always satisfies a trader check), and owner
// for the single caller allowed to move real asset custody.
package roles

import (
	"errors"
	"sync"
)

// Role is a capability level a caller can hold.
type Role string

const (
	Admin  Role = "admin"
	Trader Role = "trader"
	Owner  Role = "owner"
)

// Capability errors. They are checked before any other validation and leave
// all state unchanged.
var (
	ErrOnlyAdmin         = errors.New("only for admin")
	ErrOnlyTraderOrAdmin = errors.New("only for trader or admin")
	ErrOnlyOwner         = errors.New("only for contract owner")
)

// Authorizer answers whether a caller holds a role.
type Authorizer interface {
	Has(caller string, role Role) bool
}

// Registry is an in-memory role store. Grants are mutated only through
// Grant/Revoke and live as long as the registry instance.
type Registry struct {
	mu     sync.RWMutex
	grants map[string]map[Role]bool
}

// NewRegistry creates an empty role registry.
func NewRegistry() *Registry {
	return &Registry{grants: make(map[string]map[Role]bool)}
}

// Grant gives caller the role.
func (r *Registry) Grant(caller string, role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.grants[caller] == nil {
		r.grants[caller] = make(map[Role]bool)
	}
	r.grants[caller][role] = true
}

// Revoke removes the role from caller.
func (r *Registry) Revoke(caller string, role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants[caller], role)
}

// Has reports whether caller holds the role.
func (r *Registry) Has(caller string, role Role) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.grants[caller][role]
}

// RequireAdmin fails with ErrOnlyAdmin unless caller is an admin.
func RequireAdmin(auth Authorizer, caller string) error {
	if !auth.Has(caller, Admin) {
		return ErrOnlyAdmin
	}
	return nil
}

// RequireTraderOrAdmin fails with ErrOnlyTraderOrAdmin unless caller is a
// trader or an admin.
func RequireTraderOrAdmin(auth Authorizer, caller string) error {
	if !auth.Has(caller, Trader) && !auth.Has(caller, Admin) {
		return ErrOnlyTraderOrAdmin
	}
	return nil
}

// RequireOwner fails with ErrOnlyOwner unless caller is the custody owner.
func RequireOwner(auth Authorizer, caller string) error {
	if !auth.Has(caller, Owner) {
		return ErrOnlyOwner
	}
	return nil
}
