package models

import (
	"time"

	"github.com/margincraft/backend/internal/domain/costing"
	"github.com/margincraft/backend/internal/domain/shared/valueobject"
)

// PurchaseRecordModel is the persistence model for the PurchaseRecord
// aggregate root. Line items, overheads and the derived per-key unit
// costs are document-shaped and stored as JSONB; the unit-cost map keeps
// explicit nulls for keys whose cost is unknowable.
type PurchaseRecordModel struct {
	CompanyAggregateModel
	RecordDate         time.Time          `gorm:"not null;index"`
	Vendor             string             `gorm:"type:varchar(200);index"`
	LineItemsJSON      string             `gorm:"column:line_items;type:jsonb;not null"`
	OverheadsJSON      string             `gorm:"column:overheads;type:jsonb;default:'{}'"`
	TotalPaid          valueobject.Amount `gorm:"type:decimal(20,4);not null"`
	CalculatedCPUsJSON string             `gorm:"column:calculated_cpus;type:jsonb;default:'{}'"`
}

// TableName returns the table name for GORM
func (PurchaseRecordModel) TableName() string {
	return "purchase_records"
}

// ToDomain converts the persistence model to a domain PurchaseRecord
func (m *PurchaseRecordModel) ToDomain() *costing.PurchaseRecord {
	record := &costing.PurchaseRecord{
		RecordDate:     m.RecordDate,
		Vendor:         m.Vendor,
		TotalPaid:      m.TotalPaid,
		LineItems:      make(map[string]costing.LineItem),
		Overheads:      make(map[string]valueobject.Amount),
		CalculatedCPUs: make(map[string]*valueobject.Amount),
	}
	m.PopulateCompanyAggregateRoot(&record.CompanyAggregateRoot)

	unmarshalJSON(m.LineItemsJSON, &record.LineItems, "line_items")
	unmarshalJSON(m.OverheadsJSON, &record.Overheads, "overheads")
	unmarshalJSON(m.CalculatedCPUsJSON, &record.CalculatedCPUs, "calculated_cpus")
	return record
}

// PurchaseRecordModelFromDomain converts a domain PurchaseRecord to a persistence model
func PurchaseRecordModelFromDomain(record *costing.PurchaseRecord) *PurchaseRecordModel {
	m := &PurchaseRecordModel{
		RecordDate:         record.RecordDate,
		Vendor:             record.Vendor,
		TotalPaid:          record.TotalPaid,
		LineItemsJSON:      marshalJSON(record.LineItems, "{}", "line_items"),
		OverheadsJSON:      marshalJSON(record.Overheads, "{}", "overheads"),
		CalculatedCPUsJSON: marshalJSON(record.CalculatedCPUs, "{}", "calculated_cpus"),
	}
	m.FromDomainCompanyAggregateRoot(record.CompanyAggregateRoot)
	return m
}

// CostCategoryModel is the persistence model for the CostCategory
// aggregate root. The ordered variant labels are stored as a JSONB array.
type CostCategoryModel struct {
	CompanyAggregateModel
	Name          string `gorm:"type:varchar(200);not null;index"`
	UnitOfMeasure string `gorm:"type:varchar(50)"`
	VariantsJSON  string `gorm:"column:variants;type:jsonb;default:'[]'"`
}

// TableName returns the table name for GORM
func (CostCategoryModel) TableName() string {
	return "cost_categories"
}

// ToDomain converts the persistence model to a domain CostCategory
func (m *CostCategoryModel) ToDomain() *costing.CostCategory {
	category := &costing.CostCategory{
		Name:          m.Name,
		UnitOfMeasure: m.UnitOfMeasure,
		Variants:      make([]string, 0),
	}
	m.PopulateCompanyAggregateRoot(&category.CompanyAggregateRoot)

	unmarshalJSON(m.VariantsJSON, &category.Variants, "variants")
	return category
}

// CostCategoryModelFromDomain converts a domain CostCategory to a persistence model
func CostCategoryModelFromDomain(category *costing.CostCategory) *CostCategoryModel {
	m := &CostCategoryModel{
		Name:          category.Name,
		UnitOfMeasure: category.UnitOfMeasure,
		VariantsJSON:  marshalJSON(category.Variants, "[]", "variants"),
	}
	m.FromDomainCompanyAggregateRoot(category.CompanyAggregateRoot)
	return m
}
