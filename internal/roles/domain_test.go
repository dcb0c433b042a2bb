package roles

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole("barman_manager")
	require.NoError(t, err)
	require.Equal(t, RoleBarmanManager, r)

	_, err = ParseRole("warehouse_clerk")
	require.ErrorIs(t, err, ErrUnknownRole)

	_, err = ParseRole("")
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestSelectPrimaryRole(t *testing.T) {
	require.Equal(t, RolePharmacyManager, SelectPrimaryRole([]Role{
		RolePharmacyStaff, RolePharmacyManager, RolePharmacyAccountant,
	}))
	require.Equal(t, RoleAdmin, SelectPrimaryRole([]Role{
		RoleBarmanStaff, RoleAdmin,
	}))
	require.Equal(t, RoleBarmanAccountant, SelectPrimaryRole([]Role{
		RoleBarmanStaff, RoleBarmanAccountant,
	}))
	// Unknown roles are skipped rather than rejected.
	require.Equal(t, RoleBarmanStaff, SelectPrimaryRole([]Role{
		"warehouse_clerk", RoleBarmanStaff,
	}))
	require.Equal(t, Role(""), SelectPrimaryRole(nil))
}
