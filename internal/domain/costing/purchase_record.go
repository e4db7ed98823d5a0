package costing

import (
	"time"

	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/margincraft/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// PurchaseRecord is one vendor transaction (an invoice): a non-empty set
// of line items keyed by category+variant, optional named shared
// overhead costs, and the derived totals. Derived fields are recomputed
// in full on every mutation, never patched incrementally.
type PurchaseRecord struct {
	shared.CompanyAggregateRoot
	RecordDate     time.Time                              `json:"record_date"`
	Vendor         string                                 `json:"vendor"`
	LineItems      map[string]LineItem                    `json:"line_items"`
	Overheads      map[string]valueobject.Amount          `json:"overheads"`
	TotalPaid      valueobject.Amount                     `json:"total_paid"`
	CalculatedCPUs map[string]*valueobject.Amount         `json:"calculated_cpus"`
}

// NewPurchaseRecord validates the required fields, resolves the cost
// attribution and returns the record. Validation reports every missing
// or invalid field at once.
func NewPurchaseRecord(
	companyID uuid.UUID,
	recordDate time.Time,
	vendor string,
	items []LineItem,
	overheads map[string]valueobject.Amount,
) (*PurchaseRecord, error) {
	if violations := validateFields(companyID, recordDate, items, overheads); len(violations) > 0 {
		return nil, shared.NewValidationError(violations)
	}

	record := &PurchaseRecord{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		RecordDate:           recordDate,
		Vendor:               vendor,
		LineItems:            keyLineItems(items),
		Overheads:            cloneOverheads(overheads),
	}
	record.Recalculate()
	return record, nil
}

// Update is a merge of partial fields into the record followed by a full
// recomputation. Nil slices/maps leave the existing value in place;
// empty non-nil values are rejected by validation.
type Update struct {
	RecordDate *time.Time
	Vendor     *string
	LineItems  []LineItem
	Overheads  map[string]valueobject.Amount
}

// Apply merges the update, re-validates the whole record, recomputes the
// derived fields and bumps the editor's version counter.
func (r *PurchaseRecord) Apply(update Update, editorID string) error {
	date := r.RecordDate
	if update.RecordDate != nil {
		date = *update.RecordDate
	}
	items := itemList(r.LineItems)
	if update.LineItems != nil {
		items = update.LineItems
	}
	overheads := r.Overheads
	if update.Overheads != nil {
		overheads = update.Overheads
	}

	if violations := validateFields(r.CompanyID, date, items, overheads); len(violations) > 0 {
		return shared.NewValidationError(violations)
	}

	r.RecordDate = date
	if update.Vendor != nil {
		r.Vendor = *update.Vendor
	}
	r.LineItems = keyLineItems(items)
	r.Overheads = cloneOverheads(overheads)
	r.Recalculate()
	r.TouchEditor(editorID)
	return nil
}

// Recalculate re-runs the attribution resolver over the full record and
// stores total_paid and the per-key unit costs
func (r *PurchaseRecord) Recalculate() AttributionResult {
	result := ResolveAttribution(r.LineItems, r.Overheads)
	r.TotalPaid = result.TotalPaid
	r.CalculatedCPUs = result.UnitCosts()
	return result
}

// Breakdown returns the detailed per-key attribution for inspection,
// independent of the summary fields stored on the record
func (r *PurchaseRecord) Breakdown() AttributionResult {
	return ResolveAttribution(r.LineItems, r.Overheads)
}

func validateFields(companyID uuid.UUID, recordDate time.Time, items []LineItem, overheads map[string]valueobject.Amount) []shared.FieldViolation {
	var violations []shared.FieldViolation
	if companyID == uuid.Nil {
		violations = append(violations, shared.FieldViolation{Field: "company_id", Message: "company id is required"})
	}
	if recordDate.IsZero() {
		violations = append(violations, shared.FieldViolation{Field: "record_date", Message: "date is required"})
	}
	if len(items) == 0 {
		violations = append(violations, shared.FieldViolation{Field: "line_items", Message: "at least one line item is required"})
	}
	for _, item := range items {
		if item.CategoryName == "" {
			violations = append(violations, shared.FieldViolation{Field: "line_items." + item.Key() + ".category_name", Message: "category name is required"})
		}
		if item.UnitsPurchased.IsNegative() {
			violations = append(violations, shared.FieldViolation{Field: "line_items." + item.Key() + ".units_purchased", Message: "units purchased cannot be negative"})
		}
		if item.UnitPrice.IsNegative() {
			violations = append(violations, shared.FieldViolation{Field: "line_items." + item.Key() + ".unit_price", Message: "unit price cannot be negative"})
		}
		if item.UnitsReceived != nil && item.UnitsReceived.IsNegative() {
			violations = append(violations, shared.FieldViolation{Field: "line_items." + item.Key() + ".units_received", Message: "units received cannot be negative"})
		}
	}
	for name, amount := range overheads {
		if amount.IsNegative() {
			violations = append(violations, shared.FieldViolation{Field: "overheads." + name, Message: "overhead amount cannot be negative"})
		}
	}
	return violations
}

func keyLineItems(items []LineItem) map[string]LineItem {
	out := make(map[string]LineItem, len(items))
	for _, item := range items {
		out[item.Key()] = item
	}
	return out
}

func itemList(items map[string]LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}

func cloneOverheads(overheads map[string]valueobject.Amount) map[string]valueobject.Amount {
	out := make(map[string]valueobject.Amount, len(overheads))
	for name, amount := range overheads {
		out[name] = amount
	}
	return out
}
