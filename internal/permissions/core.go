package permissions

import "github.com/charlesng35/adminhub/internal/models"

// Permission names used by the HTTP routes.
const (
	ManageAdmins  = "manage-admins"
	ManageUsers   = "manage-users"
	ManageRoles   = "manage-roles"
	ViewMetrics   = "view-metrics"
	ViewAuditLog  = "view-audit-log"
	ManageBilling = "manage-billing"
)

// AdminRole is the seeded non-bypass administrative role.
const AdminRole = "admin"

func init() {
	perms := []*Definition{
		{
			Name:        ManageAdmins,
			DisplayName: "Manage Admins",
			Description: "Create, update, and delete admin users",
			Group:       "admin",
		},
		{
			Name:        ManageRoles,
			DisplayName: "Manage Roles",
			Description: "Manage roles, permissions, and role assignments",
			Group:       "admin",
		},
		{
			Name:        ViewAuditLog,
			DisplayName: "View Audit Log",
			Description: "Browse and export the activity log",
			Group:       "admin",
		},
		{
			Name:        ManageUsers,
			DisplayName: "Manage Users",
			Description: "Manage platform users",
			Group:       "users",
		},
		{
			Name:        ViewMetrics,
			DisplayName: "View Metrics",
			Description: "View platform metrics and analytics",
			Group:       "metrics",
		},
		{
			Name:        ManageBilling,
			DisplayName: "Manage Billing",
			Description: "Manage billing and subscriptions",
			Group:       "billing",
		},
	}

	for _, perm := range perms {
		if err := Register(perm); err != nil {
			panic(err)
		}
	}

	roles := []*RoleDefinition{
		{
			Name:           models.SuperAdminRole,
			DisplayName:    "Super Admin",
			Description:    "Full access to all features",
			System:         true,
			AllPermissions: true,
		},
		{
			Name:        AdminRole,
			DisplayName: "Admin",
			Description: "Limited admin access",
			System:      true,
			Permissions: []string{ManageUsers, ViewMetrics},
		},
	}

	for _, role := range roles {
		if err := RegisterRole(role); err != nil {
			panic(err)
		}
	}
}
