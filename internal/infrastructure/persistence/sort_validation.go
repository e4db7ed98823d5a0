package persistence

import "strings"

// ValidateSortOrder normalizes a sort direction to ASC or DESC, with DESC
// as the fallback for anything unrecognized.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField checks a requested sort column against a whitelist.
// Unknown or empty columns fall back to defaultField. Column names are
// interpolated into ORDER BY clauses, so only whitelisted values pass.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	if f := strings.TrimSpace(sortField); allowedFields[f] {
		return f
	}
	return defaultField
}

func fieldSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names)+3)
	for _, base := range []string{"id", "created_at", "updated_at"} {
		set[base] = true
	}
	for _, name := range names {
		set[name] = true
	}
	return set
}

// Sortable columns per aggregate.
var (
	PurchaseRecordSortFields = fieldSet("record_date", "vendor", "total_paid")
	CostCategorySortFields   = fieldSet("name", "unit_of_measure")
	PromotionSortFields      = fieldSet("name", "retailer", "status", "start_date", "end_date")
)
