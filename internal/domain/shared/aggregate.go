package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is the base interface for all domain entities
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity carries identity and timestamps for every persisted record
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e *BaseEntity) GetID() uuid.UUID        { return e.ID }
func (e *BaseEntity) GetCreatedAt() time.Time { return e.CreatedAt }
func (e *BaseEntity) GetUpdatedAt() time.Time { return e.UpdatedAt }

// NewBaseEntity assigns a fresh UUID and stamps both timestamps with now
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	TouchEditor(editorID string)
	GetEditorVersions() EditorVersions
}

// EditorVersions maps a device/editor identifier to the number of updates
// that editor has performed. Counters are only ever incremented by the
// editor that owns them; reconciling counters from concurrent editors is
// the storage layer's concern, not the engine's.
type EditorVersions map[string]int

// Clone returns a copy of the version map
func (ev EditorVersions) Clone() EditorVersions {
	out := make(EditorVersions, len(ev))
	for k, v := range ev {
		out[k] = v
	}
	return out
}

// BaseAggregateRoot provides common fields for aggregate roots
type BaseAggregateRoot struct {
	BaseEntity
	Version        int            `gorm:"not null;default:1"`
	EditorVersions EditorVersions `gorm:"-"`
}

// GetVersion returns the whole-record version used for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the whole-record version number
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// TouchEditor increments the per-editor update counter by exactly 1.
// Counters are not idempotent: two identical updates still bump twice.
func (a *BaseAggregateRoot) TouchEditor(editorID string) {
	if editorID == "" {
		return
	}
	if a.EditorVersions == nil {
		a.EditorVersions = make(EditorVersions)
	}
	a.EditorVersions[editorID]++
	a.UpdatedAt = time.Now()
}

// GetEditorVersions returns the per-editor version counters
func (a *BaseAggregateRoot) GetEditorVersions() EditorVersions {
	return a.EditorVersions
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:     NewBaseEntity(),
		Version:        1,
		EditorVersions: make(EditorVersions),
	}
}

// CompanyAggregateRoot extends BaseAggregateRoot with company scoping and
// soft-delete bookkeeping. Records are flagged, never erased.
type CompanyAggregateRoot struct {
	BaseAggregateRoot
	CompanyID uuid.UUID  `gorm:"type:uuid;not null;index"`
	IsActive  bool       `gorm:"not null;default:true"`
	DeletedAt *time.Time `gorm:"index"`
}

// NewCompanyAggregateRoot creates a new company-scoped aggregate root
func NewCompanyAggregateRoot(companyID uuid.UUID) CompanyAggregateRoot {
	return CompanyAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		CompanyID:         companyID,
		IsActive:          true,
	}
}

// BelongsTo reports whether the record is owned by the given company
func (c *CompanyAggregateRoot) BelongsTo(companyID uuid.UUID) bool {
	return c.CompanyID == companyID
}

// SoftDelete flags the record as deleted. Deleting twice is an error.
func (c *CompanyAggregateRoot) SoftDelete() error {
	if !c.IsActive {
		return NewAlreadyDeletedError("Record is already deleted")
	}
	now := time.Now()
	c.IsActive = false
	c.DeletedAt = &now
	c.UpdatedAt = now
	return nil
}

// IsDeleted reports whether the record has been soft-deleted
func (c *CompanyAggregateRoot) IsDeleted() bool {
	return !c.IsActive
}
