// Package models holds the GORM row types backing the domain
// aggregates. Domain entities stay free of ORM tags; these models own
// the table mappings, and the repository mappers convert between the
// two representations.
//
// base.go defines the embedded ID, timestamp and company-ownership
// columns. costing.go maps purchase records, their line items and cost
// categories. promotion.go maps promotions and their stored analyses.
package models
