package costing

import (
	"fmt"
	"sort"
	"time"

	"github.com/margincraft/backend/internal/domain/costing"
	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/margincraft/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// LineItemRequest carries one line item of a create or update request.
// All monetary fields are decimal strings; floats never cross the API
// boundary.
type LineItemRequest struct {
	CategoryID     string  `json:"category_id"`
	CategoryName   string  `json:"category_name" binding:"required"`
	Variant        string  `json:"variant"`
	UnitsPurchased string  `json:"units_purchased" binding:"required"`
	UnitPrice      string  `json:"unit_price" binding:"required"`
	UnitsReceived  *string `json:"units_received"`
	TotalOverride  *string `json:"total_override"`
}

// CreatePurchaseRecordRequest represents a request to record an invoice
type CreatePurchaseRecordRequest struct {
	RecordDate time.Time         `json:"record_date" binding:"required"`
	Vendor     string            `json:"vendor"`
	LineItems  []LineItemRequest `json:"line_items" binding:"required,min=1,dive"`
	Overheads  map[string]string `json:"overheads"`
}

// UpdatePurchaseRecordRequest carries a partial update; nil fields keep
// their stored value
type UpdatePurchaseRecordRequest struct {
	RecordDate *time.Time        `json:"record_date"`
	Vendor     *string           `json:"vendor"`
	LineItems  []LineItemRequest `json:"line_items" binding:"omitempty,dive"`
	Overheads  map[string]string `json:"overheads"`
}

// PurchaseRecordListFilter represents filter options for the invoice list
type PurchaseRecordListFilter struct {
	Search     string     `form:"search"`
	Vendor     string     `form:"vendor"`
	CategoryID *string    `form:"category_id"`
	FromDate   *time.Time `form:"from_date" time_format:"2006-01-02"`
	ToDate     *time.Time `form:"to_date" time_format:"2006-01-02"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string     `form:"order_by"`
	OrderDir   string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// LineItemResponse represents one line item in API responses
type LineItemResponse struct {
	Key            string  `json:"key"`
	CategoryID     string  `json:"category_id"`
	CategoryName   string  `json:"category_name"`
	Variant        string  `json:"variant"`
	UnitsPurchased string  `json:"units_purchased"`
	UnitPrice      string  `json:"unit_price"`
	UnitsReceived  *string `json:"units_received,omitempty"`
	TotalOverride  *string `json:"total_override,omitempty"`
	DirectCost     string  `json:"direct_cost"`
}

// PurchaseRecordResponse represents an invoice in API responses.
// CalculatedCPUs carries null, not "0.00", for keys whose unit cost
// could not be derived.
type PurchaseRecordResponse struct {
	ID             uuid.UUID          `json:"id"`
	CompanyID      uuid.UUID          `json:"company_id"`
	RecordDate     time.Time          `json:"record_date"`
	Vendor         string             `json:"vendor"`
	LineItems      []LineItemResponse `json:"line_items"`
	Overheads      map[string]string  `json:"overheads"`
	TotalPaid      string             `json:"total_paid"`
	CalculatedCPUs map[string]*string `json:"calculated_cpus"`
	EditorVersions map[string]int     `json:"editor_versions"`
	IsActive       bool               `json:"is_active"`
	Version        int                `json:"version"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// PurchaseRecordListItemResponse is the trimmed list-view projection
type PurchaseRecordListItemResponse struct {
	ID         uuid.UUID `json:"id"`
	RecordDate time.Time `json:"record_date"`
	Vendor     string    `json:"vendor"`
	ItemCount  int       `json:"item_count"`
	TotalPaid  string    `json:"total_paid"`
	IsActive   bool      `json:"is_active"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// KeyBreakdownResponse is the attributed cost of one line-item key
type KeyBreakdownResponse struct {
	Key               string  `json:"key"`
	CategoryID        string  `json:"category_id"`
	CategoryName      string  `json:"category_name"`
	Variant           string  `json:"variant"`
	DirectCost        string  `json:"direct_cost"`
	AllocatedOverhead string  `json:"allocated_overhead"`
	TotalCost         string  `json:"total_cost"`
	UnitCost          *string `json:"unit_cost"`
	HasCostData       bool    `json:"has_cost_data"`
}

// BreakdownResponse is the full attribution picture for one invoice
type BreakdownResponse struct {
	RecordID      uuid.UUID              `json:"record_id"`
	RecordDate    time.Time              `json:"record_date"`
	Breakdown     []KeyBreakdownResponse `json:"breakdown"`
	TotalDirect   string                 `json:"total_direct"`
	TotalOverhead string                 `json:"total_overhead"`
	TotalPaid     string                 `json:"total_paid"`
}

// CPUSnapshotEntry is the most recent unit cost observed for one key
type CPUSnapshotEntry struct {
	Key          string    `json:"key"`
	CategoryID   string    `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Variant      string    `json:"variant"`
	UnitCost     string    `json:"unit_cost"`
	AsOf         time.Time `json:"as_of"`
}

// CPUSnapshotResponse is the company-wide latest-cost view
type CPUSnapshotResponse struct {
	Entries     []CPUSnapshotEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// ObservationResponse is one dated unit-cost reading
type ObservationResponse struct {
	RecordID   string    `json:"record_id"`
	RecordDate time.Time `json:"record_date"`
	Key        string    `json:"key"`
	UnitCost   string    `json:"unit_cost"`
}

// HistoryFilter narrows unit-cost history lookups. Every field is
// optional: an empty filter yields all observations of the company,
// Key pins one line-item key, CategoryID keeps observations of any
// variant of one category.
type HistoryFilter struct {
	Key        *string
	CategoryID *string
	FromDate   *time.Time
	ToDate     *time.Time
}

// TrendResponse is the windowed cost history for one key
type TrendResponse struct {
	Key          string                `json:"key"`
	Observations []ObservationResponse `json:"observations"`
	Min          *string               `json:"min"`
	Max          *string               `json:"max"`
	Direction    string                `json:"direction"`
}

// RecalculateResponse reports a bulk recomputation
type RecalculateResponse struct {
	RecordsProcessed int `json:"records_processed"`
}

// CreateCategoryRequest represents a request to create a cost category
type CreateCategoryRequest struct {
	Name          string   `json:"name" binding:"required,min=1,max=255"`
	UnitOfMeasure string   `json:"unit_of_measure"`
	Variants      []string `json:"variants"`
}

// UpdateCategoryRequest carries a partial category update
type UpdateCategoryRequest struct {
	Name          *string  `json:"name" binding:"omitempty,min=1,max=255"`
	UnitOfMeasure *string  `json:"unit_of_measure"`
	Variants      []string `json:"variants"`
}

// CategoryResponse represents a cost category in API responses
type CategoryResponse struct {
	ID            uuid.UUID `json:"id"`
	CompanyID     uuid.UUID `json:"company_id"`
	Name          string    `json:"name"`
	UnitOfMeasure string    `json:"unit_of_measure"`
	Variants      []string  `json:"variants"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CategoryListFilter represents filter options for the category list
type CategoryListFilter struct {
	Search   string `form:"search"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func parseAmount(field, raw string, violations *[]shared.FieldViolation) valueobject.Amount {
	amount, err := valueobject.NewAmountFromString(raw)
	if err != nil {
		*violations = append(*violations, shared.FieldViolation{Field: field, Message: "must be a decimal number"})
		return valueobject.Zero
	}
	return amount
}

func parseOptionalAmount(field string, raw *string, violations *[]shared.FieldViolation) *valueobject.Amount {
	if raw == nil {
		return nil
	}
	amount := parseAmount(field, *raw, violations)
	return &amount
}

// toLineItems converts request line items into domain line items,
// collecting every malformed amount into one violation list.
func toLineItems(requests []LineItemRequest) ([]costing.LineItem, []shared.FieldViolation) {
	var violations []shared.FieldViolation
	items := make([]costing.LineItem, 0, len(requests))
	for i, req := range requests {
		prefix := fmt.Sprintf("line_items[%d].", i)
		item := costing.LineItem{
			CategoryID:     req.CategoryID,
			CategoryName:   req.CategoryName,
			Variant:        req.Variant,
			UnitsPurchased: parseAmount(prefix+"units_purchased", req.UnitsPurchased, &violations),
			UnitPrice:      parseAmount(prefix+"unit_price", req.UnitPrice, &violations),
			UnitsReceived:  parseOptionalAmount(prefix+"units_received", req.UnitsReceived, &violations),
			TotalOverride:  parseOptionalAmount(prefix+"total_override", req.TotalOverride, &violations),
		}
		items = append(items, item)
	}
	return items, violations
}

func toOverheads(raw map[string]string) (map[string]valueobject.Amount, []shared.FieldViolation) {
	if raw == nil {
		return nil, nil
	}
	var violations []shared.FieldViolation
	overheads := make(map[string]valueobject.Amount, len(raw))
	for name, value := range raw {
		overheads[name] = parseAmount("overheads."+name, value, &violations)
	}
	return overheads, violations
}

// ToPurchaseRecordResponse maps the aggregate to its API projection
func ToPurchaseRecordResponse(record *costing.PurchaseRecord) PurchaseRecordResponse {
	items := make([]LineItemResponse, 0, len(record.LineItems))
	for key, item := range record.LineItems {
		direct := item.DirectCost().Round2()
		items = append(items, LineItemResponse{
			Key:            key,
			CategoryID:     item.CategoryID,
			CategoryName:   item.CategoryName,
			Variant:        item.Variant,
			UnitsPurchased: item.UnitsPurchased.StringFixed2(),
			UnitPrice:      item.UnitPrice.StringFixed2(),
			UnitsReceived:  valueobject.Fixed2OrNil(item.UnitsReceived),
			TotalOverride:  valueobject.Fixed2OrNil(item.TotalOverride),
			DirectCost:     direct.StringFixed2(),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })

	overheads := make(map[string]string, len(record.Overheads))
	for name, amount := range record.Overheads {
		overheads[name] = amount.StringFixed2()
	}

	cpus := make(map[string]*string, len(record.CalculatedCPUs))
	for key, cpu := range record.CalculatedCPUs {
		cpus[key] = valueobject.Fixed2OrNil(cpu)
	}

	return PurchaseRecordResponse{
		ID:             record.ID,
		CompanyID:      record.CompanyID,
		RecordDate:     record.RecordDate,
		Vendor:         record.Vendor,
		LineItems:      items,
		Overheads:      overheads,
		TotalPaid:      record.TotalPaid.StringFixed2(),
		CalculatedCPUs: cpus,
		EditorVersions: record.EditorVersions,
		IsActive:       record.IsActive,
		Version:        record.Version,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

// ToPurchaseRecordListItemResponse maps the aggregate to the list view
func ToPurchaseRecordListItemResponse(record *costing.PurchaseRecord) PurchaseRecordListItemResponse {
	return PurchaseRecordListItemResponse{
		ID:         record.ID,
		RecordDate: record.RecordDate,
		Vendor:     record.Vendor,
		ItemCount:  len(record.LineItems),
		TotalPaid:  record.TotalPaid.StringFixed2(),
		IsActive:   record.IsActive,
		UpdatedAt:  record.UpdatedAt,
	}
}

// ToBreakdownResponse maps an attribution result to its API projection
func ToBreakdownResponse(record *costing.PurchaseRecord, result costing.AttributionResult) BreakdownResponse {
	breakdown := make([]KeyBreakdownResponse, 0, len(result.Breakdown))
	for _, b := range result.Breakdown {
		breakdown = append(breakdown, KeyBreakdownResponse{
			Key:               b.Key,
			CategoryID:        b.CategoryID,
			CategoryName:      b.CategoryName,
			Variant:           b.Variant,
			DirectCost:        b.DirectCost.StringFixed2(),
			AllocatedOverhead: b.AllocatedOverhead.StringFixed2(),
			TotalCost:         b.TotalCost.StringFixed2(),
			UnitCost:          valueobject.Fixed2OrNil(b.UnitCost),
			HasCostData:       b.HasCostData,
		})
	}
	return BreakdownResponse{
		RecordID:      record.ID,
		RecordDate:    record.RecordDate,
		Breakdown:     breakdown,
		TotalDirect:   result.TotalDirect.StringFixed2(),
		TotalOverhead: result.TotalOverhead.StringFixed2(),
		TotalPaid:     result.TotalPaid.StringFixed2(),
	}
}

// ToCategoryResponse maps the aggregate to its API projection
func ToCategoryResponse(category *costing.CostCategory) CategoryResponse {
	return CategoryResponse{
		ID:            category.ID,
		CompanyID:     category.CompanyID,
		Name:          category.Name,
		UnitOfMeasure: category.UnitOfMeasure,
		Variants:      category.Variants,
		IsActive:      category.IsActive,
		CreatedAt:     category.CreatedAt,
		UpdatedAt:     category.UpdatedAt,
	}
}
