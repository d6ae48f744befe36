package authz

import "strings"

// Permission codes, namespaced by module. These constants are the single
// source of truth for what permissions exist; changing the catalog means
// changing these declarations and redeploying.
const (
	PermDashboardViewKPI      = "dashboard:view_kpi"
	PermDashboardViewTeam     = "dashboard:view_team"
	PermDashboardViewPersonal = "dashboard:view_personal"

	PermLeadViewAll  = "lead:view_all"
	PermLeadViewTeam = "lead:view_team"
	PermLeadViewOwn  = "lead:view_own"
	PermLeadCreate   = "lead:create"
	PermLeadEdit     = "lead:edit"
	PermLeadAssign   = "lead:assign"

	PermProjectViewAll  = "project:view_all"
	PermProjectViewTeam = "project:view_team"
	PermProjectViewOwn  = "project:view_own"
	PermProjectEditAll  = "project:edit_all"
	PermProjectEditOwn  = "project:edit_own"

	PermBudgetViewCost   = "budget:view_cost"
	PermBudgetViewProfit = "budget:view_profit"
	PermBudgetApprove    = "budget:approve"
	PermFinanceManage    = "finance:manage"

	PermUserManage     = "user:manage"
	PermSystemSettings = "system:settings"
)

// CatalogEntry describes one compiled-in permission.
type CatalogEntry struct {
	Code        string
	Name        string
	Description string
}

// Module derives the namespace from the code, falling back to "common"
// for codes without a module prefix.
func (e CatalogEntry) Module() string {
	if idx := strings.Index(e.Code, ":"); idx > 0 {
		return e.Code[:idx]
	}
	return "common"
}

var catalog = []CatalogEntry{
	{Code: PermDashboardViewKPI, Name: "View company KPIs", Description: "Company-wide revenue and profit dashboards"},
	{Code: PermDashboardViewTeam, Name: "View team dashboard", Description: "Team performance dashboards"},
	{Code: PermDashboardViewPersonal, Name: "View personal dashboard", Description: "Own tasks and schedule"},

	{Code: PermLeadViewAll, Name: "View all leads"},
	{Code: PermLeadViewTeam, Name: "View team leads"},
	{Code: PermLeadViewOwn, Name: "View own leads"},
	{Code: PermLeadCreate, Name: "Create leads"},
	{Code: PermLeadEdit, Name: "Edit leads"},
	{Code: PermLeadAssign, Name: "Assign leads", Description: "Reassign lead ownership"},

	{Code: PermProjectViewAll, Name: "View all projects"},
	{Code: PermProjectViewTeam, Name: "View team projects"},
	{Code: PermProjectViewOwn, Name: "View own projects"},
	{Code: PermProjectEditAll, Name: "Edit any project"},
	{Code: PermProjectEditOwn, Name: "Edit own projects"},

	{Code: PermBudgetViewCost, Name: "View cost prices", Description: "Unmasked supplier cost figures"},
	{Code: PermBudgetViewProfit, Name: "View profit margins"},
	{Code: PermBudgetApprove, Name: "Approve budgets", Description: "Approve discounts and refunds"},
	{Code: PermFinanceManage, Name: "Manage finance", Description: "AP/AR management"},

	{Code: PermUserManage, Name: "Manage users", Description: "Create and edit user accounts"},
	{Code: PermSystemSettings, Name: "System settings", Description: "Global configuration"},
}

// Catalog returns the ordered compiled-in permission catalog.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, len(catalog))
	copy(out, catalog)
	return out
}

// defaultGrants maps each role to its default permission profile. Seeded by
// the synchronizer only while a role has no grants at all; the persisted
// grant rows are the mutable state, this table never changes at runtime.
var defaultGrants = map[Role][]string{
	RoleAdmin: {
		PermDashboardViewKPI,
		PermLeadViewAll, PermLeadCreate, PermLeadEdit, PermLeadAssign,
		PermProjectViewAll, PermProjectEditAll,
		PermBudgetViewCost, PermBudgetViewProfit, PermBudgetApprove,
		PermFinanceManage,
		PermUserManage, PermSystemSettings,
	},
	RoleManager: {
		PermDashboardViewTeam,
		PermLeadViewTeam, PermLeadCreate, PermLeadEdit, PermLeadAssign,
		PermProjectViewTeam, PermProjectEditAll,
		PermBudgetViewCost, PermBudgetViewProfit, PermBudgetApprove,
	},
	RolePlanner: {
		PermDashboardViewPersonal,
		PermLeadViewOwn, PermLeadCreate, PermLeadEdit,
		PermProjectViewOwn, PermProjectEditOwn,
	},
	RoleFinance: {
		PermDashboardViewKPI,
		PermBudgetViewCost,
		PermFinanceManage,
	},
	RoleVendor: {
		PermProjectViewOwn,
	},
}

// DefaultGrants returns the default permission codes for a role, or nil when
// the role has no compiled-in profile.
func DefaultGrants(role Role) []string {
	codes, ok := defaultGrants[role]
	if !ok {
		return nil
	}
	out := make([]string, len(codes))
	copy(out, codes)
	return out
}
