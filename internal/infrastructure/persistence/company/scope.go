// Package company provides company-scoped database access for GORM.
//
// Every aggregate in the system is owned by exactly one company, so every
// repository query must carry a WHERE company_id = ? condition. This
// package extracts the company ID from the request context and applies
// the filter automatically, so a missing scope is an error rather than a
// cross-company data leak.
//
// Usage:
//
//	db := company.NewScopedDB(gormDB)
//	scopedDB := db.WithContext(ctx) // automatically applies company filtering
//	scopedDB.Find(&records) // WHERE company_id = 'xxx' is auto-added
package company

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/margincraft/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

// ErrCompanyIDRequired is returned when company_id is required but not found
var ErrCompanyIDRequired = errors.New("company_id is required but not found in context")

// ErrInvalidCompanyID is returned when company_id format is invalid
var ErrInvalidCompanyID = errors.New("invalid company_id format")

// Scope applies company filtering to GORM queries
func Scope(companyID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("company_id = ?", companyID)
	}
}

// ScopeString applies company filtering using a string company ID
func ScopeString(companyID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("company_id = ?", companyID)
	}
}

// ScopedDB wraps GORM DB with automatic company scoping
type ScopedDB struct {
	db       *gorm.DB
	required bool
}

// NewScopedDB creates a new ScopedDB that requires a company ID
func NewScopedDB(db *gorm.DB) *ScopedDB {
	return &ScopedDB{db: db, required: true}
}

// DB returns the underlying GORM DB without company scoping.
// Use with caution - this bypasses company isolation.
func (s *ScopedDB) DB() *gorm.DB {
	return s.db
}

// WithContext returns a GORM DB scoped to the company from context.
// It extracts company_id from the context (set by the identity
// middleware) and applies the company filter to all queries.
//
// If company_id is not found in context and the scope is required, it
// returns a DB that will error on any operation.
func (s *ScopedDB) WithContext(ctx context.Context) *gorm.DB {
	companyID := logger.GetCompanyID(ctx)

	if companyID == "" {
		if s.required {
			db := s.db.WithContext(ctx)
			_ = db.AddError(ErrCompanyIDRequired)
			return db
		}
		return s.db.WithContext(ctx)
	}

	if _, err := uuid.Parse(companyID); err != nil {
		db := s.db.WithContext(ctx)
		_ = db.AddError(ErrInvalidCompanyID)
		return db
	}

	return s.db.WithContext(ctx).Scopes(ScopeString(companyID))
}

// WithCompany returns a GORM DB scoped to a specific company ID
func (s *ScopedDB) WithCompany(companyID uuid.UUID) *gorm.DB {
	if companyID == uuid.Nil {
		if s.required {
			db := s.db
			_ = db.AddError(ErrCompanyIDRequired)
			return db
		}
		return s.db
	}
	return s.db.Scopes(Scope(companyID))
}

// Transaction executes a function within a database transaction carrying
// the company scope from context
func (s *ScopedDB) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	companyID := logger.GetCompanyID(ctx)

	if companyID == "" && s.required {
		return ErrCompanyIDRequired
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if companyID != "" {
			tx = tx.Scopes(ScopeString(companyID))
		}
		return fn(tx)
	})
}

// SetRequired changes whether company_id is required
func (s *ScopedDB) SetRequired(required bool) *ScopedDB {
	return &ScopedDB{db: s.db, required: required}
}
