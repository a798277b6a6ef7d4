package shared

// Permissions granted through roles.
const (
	PermStudentsView = "students.view"
	PermStudentsEdit = "students.edit"

	PermPaymentsView = "payments.view"
	PermPaymentsEdit = "payments.edit"

	PermProductsView = "products.view"
	PermProductsEdit = "products.edit"
	PermStockAdjust  = "stock.adjust"

	PermSalesView = "sales.view"
	PermSalesEdit = "sales.edit"

	PermReportsView = "reports.view"

	PermAuditView = "audit.view"
)

// AllPermissions lists every permission known to the platform.
func AllPermissions() []string {
	return []string{
		PermStudentsView,
		PermStudentsEdit,
		PermPaymentsView,
		PermPaymentsEdit,
		PermProductsView,
		PermProductsEdit,
		PermStockAdjust,
		PermSalesView,
		PermSalesEdit,
		PermReportsView,
		PermAuditView,
	}
}

// FrontDeskPermissions are granted to instructors and staff: everything
// except catalog edits and the audit trail.
func FrontDeskPermissions() []string {
	perms := make([]string, 0, len(AllPermissions()))
	for _, p := range AllPermissions() {
		if p == PermProductsEdit || p == PermAuditView {
			continue
		}
		perms = append(perms, p)
	}
	return perms
}
