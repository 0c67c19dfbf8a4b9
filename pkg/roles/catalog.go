package roles

// RoleInfo describes one role for display purposes.
type RoleInfo struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// WorkspaceRoleCatalog returns the fixed, ordered catalog of workspace roles
// with human-readable labels. Static data, no query.
func WorkspaceRoleCatalog() []RoleInfo {
	return []RoleInfo{
		{Name: string(WorkspaceOwner), Label: "Owner", Description: "Full control of the workspace, including member management and deletion"},
		{Name: string(WorkspaceAdmin), Label: "Admin", Description: "Manage workspace settings and members"},
		{Name: string(WorkspaceEditor), Label: "Editor", Description: "Create and edit workspace resources"},
		{Name: string(WorkspaceNormal), Label: "Member", Description: "Use workspace resources"},
		{Name: string(WorkspaceDatasetOperator), Label: "Dataset Operator", Description: "Manage datasets only"},
	}
}

// SystemRoleCatalog returns the fixed, ordered catalog of system roles,
// highest privilege first.
func SystemRoleCatalog() []RoleInfo {
	return []RoleInfo{
		{Name: string(RoleSystemAdmin), Label: "System Admin", Description: "Full cross-tenant administration"},
		{Name: string(RoleTenantManager), Label: "Tenant Manager", Description: "Create and manage own tenants"},
		{Name: string(RoleUser), Label: "User", Description: "No administrative capability"},
	}
}
