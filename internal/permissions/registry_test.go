package permissions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/adminhub/internal/models"
)

func TestRegisterPermission(t *testing.T) {
	t.Cleanup(func() { removePermission("archive-reports") })

	require.NoError(t, Register(&Definition{
		Name:        " archive-reports ",
		DisplayName: "Archive Reports",
		Group:       " reports ",
	}))

	def, ok := Get("archive-reports")
	require.True(t, ok)
	require.Equal(t, "reports", def.Group)

	err := Register(&Definition{Name: "archive-reports"})
	require.True(t, errors.Is(err, errDuplicateName))

	err = Register(&Definition{Name: "Archive Reports"})
	require.True(t, errors.Is(err, errInvalidName))

	require.True(t, errors.Is(Register(nil), errNilDefinition))
}

func TestRegisterRoleRequiresKnownPermissions(t *testing.T) {
	err := RegisterRole(&RoleDefinition{Name: "auditor", Permissions: []string{"missing-permission"}})
	require.Error(t, err)

	err = RegisterRole(&RoleDefinition{Name: models.SuperAdminRole})
	require.True(t, errors.Is(err, errDuplicateName))
}

func TestDefaultCatalog(t *testing.T) {
	all := All()
	require.GreaterOrEqual(t, len(all), 6)
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		require.True(t, prev.Group < cur.Group || (prev.Group == cur.Group && prev.Name < cur.Name))
	}

	roles := Roles()
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	require.Equal(t, []string{AdminRole, models.SuperAdminRole}, names)
	require.True(t, roles[1].AllPermissions)
	require.ElementsMatch(t, []string{ManageUsers, ViewMetrics}, roles[0].Permissions)
}
