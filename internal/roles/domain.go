package roles

import (
	"errors"
	"fmt"
)

// Role identifies a workflow actor role.
type Role string

const (
	// RoleAdmin manages users and the drug catalog; it sits outside the
	// order workflow itself.
	RoleAdmin Role = "admin"
	// RolePharmacyStaff creates and revises orders.
	RolePharmacyStaff Role = "pharmacy_staff"
	// RolePharmacyManager reviews orders before they leave the pharmacy.
	RolePharmacyManager Role = "pharmacy_manager"
	// RolePharmacyAccountant submits payment for issued invoices.
	RolePharmacyAccountant Role = "pharmacy_accountant"
	// RoleBarmanStaff performs first-line review on the wholesaler side.
	RoleBarmanStaff Role = "barman_staff"
	// RoleBarmanManager prices orders and issues invoices.
	RoleBarmanManager Role = "barman_manager"
	// RoleBarmanAccountant verifies submitted payments.
	RoleBarmanAccountant Role = "barman_accountant"
)

// ErrUnknownRole indicates a role string outside the known set.
var ErrUnknownRole = errors.New("roles: unknown role")

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, error) {
	r := Role(raw)
	if _, ok := priority[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return r, nil
}

// Valid reports whether the role belongs to the known set.
func (r Role) Valid() bool {
	_, ok := priority[r]
	return ok
}

// priority defines the total order used to pick the primary dashboard when
// a user carries several roles. Higher wins.
var priority = map[Role]int{
	RoleAdmin:              70,
	RolePharmacyManager:    60,
	RoleBarmanManager:      50,
	RolePharmacyAccountant: 40,
	RoleBarmanAccountant:   30,
	RolePharmacyStaff:      20,
	RoleBarmanStaff:        10,
}

// SelectPrimaryRole returns the highest-priority role from the given set.
// Unknown roles are ignored; an empty or fully unknown set yields "".
func SelectPrimaryRole(set []Role) Role {
	var (
		best     Role
		bestRank = -1
	)
	for _, r := range set {
		rank, ok := priority[r]
		if !ok {
			continue
		}
		if rank > bestRank {
			best = r
			bestRank = rank
		}
	}
	return best
}
