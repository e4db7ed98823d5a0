package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/margincraft/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// logger for model conversion errors (silent failures are logged for debugging)
var modelLogger = zap.L().Named("persistence.models")

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// CompanyAggregateModel provides common persistence fields for
// company-scoped aggregate roots: whole-record version for optimistic
// locking, soft-delete flags and the per-editor update counters stored
// as a JSONB document.
type CompanyAggregateModel struct {
	BaseModel
	Version            int        `gorm:"not null;default:1"`
	CompanyID          uuid.UUID  `gorm:"type:uuid;not null;index"`
	IsActive           bool       `gorm:"not null;default:true"`
	DeletedAt          *time.Time `gorm:"index"`
	EditorVersionsJSON string     `gorm:"column:editor_versions;type:jsonb;default:'{}'"`
}

// FromDomainCompanyAggregateRoot populates CompanyAggregateModel from domain CompanyAggregateRoot
func (m *CompanyAggregateModel) FromDomainCompanyAggregateRoot(a shared.CompanyAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
	m.CompanyID = a.CompanyID
	m.IsActive = a.IsActive
	m.DeletedAt = a.DeletedAt
	m.EditorVersionsJSON = marshalJSON(a.EditorVersions, "{}", "editor_versions")
}

// PopulateCompanyAggregateRoot populates a domain CompanyAggregateRoot from persistence model
func (m *CompanyAggregateModel) PopulateCompanyAggregateRoot(a *shared.CompanyAggregateRoot) {
	a.ID = m.ID
	a.CreatedAt = m.CreatedAt
	a.UpdatedAt = m.UpdatedAt
	a.Version = m.Version
	a.CompanyID = m.CompanyID
	a.IsActive = m.IsActive
	a.DeletedAt = m.DeletedAt

	a.EditorVersions = make(shared.EditorVersions)
	unmarshalJSON(m.EditorVersionsJSON, &a.EditorVersions, "editor_versions")
}

// marshalJSON serializes a value for a jsonb column, falling back to the
// given empty document on failure
func marshalJSON(v any, empty, column string) string {
	data, err := json.Marshal(v)
	if err != nil {
		modelLogger.Warn("failed to serialize jsonb column",
			zap.String("column", column),
			zap.Error(err))
		return empty
	}
	return string(data)
}

// unmarshalJSON parses a jsonb column into out, leaving out untouched on
// failure or empty input
func unmarshalJSON(raw string, out any, column string) {
	if raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		modelLogger.Warn("failed to parse jsonb column",
			zap.String("column", column),
			zap.String("raw_json", raw),
			zap.Error(err))
	}
}
