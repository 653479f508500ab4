package domain

import "encoding/json"

// ============================================================
// Business tables — opaque rows owned by the Session Store
// ============================================================

// Table is a PostgREST table name.
type Table string

const (
	TableAttendance     Table = "attendance"
	TableAuditBudgets   Table = "audit_budgets"
	TableClients        Table = "clients"
	TableEmployees      Table = "employees"
	TableInvoices       Table = "invoices"
	TableLeaveRequests  Table = "leave_requests"
	TableLoanRequests   Table = "loan_requests"
	TableProfiles       Table = "profiles"
	TableProjectProfits Table = "project_profits"
	TableProjects       Table = "projects"
	TableTimeReports    Table = "time_reports"
	TableUserRoles      Table = "user_roles"
)

var knownTables = map[Table]struct{}{
	TableAttendance: {}, TableAuditBudgets: {}, TableClients: {}, TableEmployees: {},
	TableInvoices: {}, TableLeaveRequests: {}, TableLoanRequests: {}, TableProfiles: {},
	TableProjectProfits: {}, TableProjects: {}, TableTimeReports: {}, TableUserRoles: {},
}

// ParseTable rejects tables the dashboard does not expose.
func ParseTable(s string) (Table, bool) {
	t := Table(s)
	_, ok := knownTables[t]
	return t, ok
}

// RecordQuery is an equality-filtered select.
type RecordQuery struct {
	Table   Table
	Filters map[string]string
	Order   string
	Limit   int
	Offset  int
}

// RecordList wraps rows returned to the CRUD views.
type RecordList struct {
	Table  Table             `json:"table"`
	Rows   []json.RawMessage `json:"rows"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// DashboardMetrics is the super_admin summary on the dashboard view.
type DashboardMetrics struct {
	TotalEmployees       int `json:"totalEmployees"`
	TotalClients         int `json:"totalClients"`
	TotalProjects        int `json:"totalProjects"`
	PendingLeaveRequests int `json:"pendingLeaveRequests"`
	PendingLoanRequests  int `json:"pendingLoanRequests"`
}
