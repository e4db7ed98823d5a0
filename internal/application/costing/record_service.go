package costing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/margincraft/backend/internal/domain/costing"
	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/margincraft/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
)

// SnapshotCache caches the company-wide latest-unit-cost view. A nil
// snapshot with a nil error means a cache miss.
type SnapshotCache interface {
	Get(ctx context.Context, companyID uuid.UUID) (*CPUSnapshotResponse, error)
	Set(ctx context.Context, companyID uuid.UUID, snapshot *CPUSnapshotResponse) error
	Invalidate(ctx context.Context, companyID uuid.UUID) error
}

// PurchaseRecordService handles invoice recording and cost-per-unit queries
type PurchaseRecordService struct {
	recordRepo      costing.PurchaseRecordRepository
	cache           SnapshotCache
	businessMetrics *telemetry.BusinessMetrics
}

// NewPurchaseRecordService creates a new PurchaseRecordService
func NewPurchaseRecordService(recordRepo costing.PurchaseRecordRepository) *PurchaseRecordService {
	return &PurchaseRecordService{recordRepo: recordRepo}
}

// SetSnapshotCache sets the snapshot cache (optional)
func (s *PurchaseRecordService) SetSnapshotCache(cache SnapshotCache) {
	s.cache = cache
}

// SetBusinessMetrics sets the business metrics collector (optional)
func (s *PurchaseRecordService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// Create records a new invoice and resolves its cost attribution
func (s *PurchaseRecordService) Create(ctx context.Context, companyID uuid.UUID, deviceID string, req CreatePurchaseRecordRequest) (*PurchaseRecordResponse, error) {
	items, violations := toLineItems(req.LineItems)
	overheads, overheadViolations := toOverheads(req.Overheads)
	violations = append(violations, overheadViolations...)
	if len(violations) > 0 {
		return nil, shared.NewValidationError(violations)
	}

	record, err := costing.NewPurchaseRecord(companyID, req.RecordDate, req.Vendor, items, overheads)
	if err != nil {
		return nil, err
	}
	record.TouchEditor(deviceID)

	if err := s.recordRepo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save purchase record: %w", err)
	}
	s.invalidateSnapshot(ctx, companyID)

	if s.businessMetrics != nil {
		s.businessMetrics.RecordPurchaseWithAmount(ctx, companyID, record.Vendor, record.TotalPaid.Decimal())
	}

	response := ToPurchaseRecordResponse(record)
	return &response, nil
}

// GetByID retrieves an invoice, enforcing company ownership
func (s *PurchaseRecordService) GetByID(ctx context.Context, companyID, recordID uuid.UUID) (*PurchaseRecordResponse, error) {
	record, err := s.findOwned(ctx, companyID, recordID)
	if err != nil {
		return nil, err
	}
	response := ToPurchaseRecordResponse(record)
	return &response, nil
}

// List retrieves invoices with filtering and pagination
func (s *PurchaseRecordService) List(ctx context.Context, companyID uuid.UUID, filter PurchaseRecordListFilter) (*shared.Paginated[PurchaseRecordListItemResponse], error) {
	domainFilter := s.buildFilter(filter)

	records, err := s.recordRepo.FindAllForCompany(ctx, companyID, domainFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase records: %w", err)
	}
	total, err := s.recordRepo.CountForCompany(ctx, companyID, domainFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to count purchase records: %w", err)
	}

	items := make([]PurchaseRecordListItemResponse, 0, len(records))
	for i := range records {
		items = append(items, ToPurchaseRecordListItemResponse(&records[i]))
	}
	result := shared.NewPaginated(items, total, domainFilter.Page, domainFilter.PageSize)
	return &result, nil
}

// Update merges a partial update into the invoice and recomputes its
// derived costs. The editing device's version counter is bumped by one.
func (s *PurchaseRecordService) Update(ctx context.Context, companyID, recordID uuid.UUID, deviceID string, req UpdatePurchaseRecordRequest) (*PurchaseRecordResponse, error) {
	record, err := s.findOwned(ctx, companyID, recordID)
	if err != nil {
		return nil, err
	}

	var items []costing.LineItem
	var violations []shared.FieldViolation
	if req.LineItems != nil {
		items, violations = toLineItems(req.LineItems)
	}
	overheads, overheadViolations := toOverheads(req.Overheads)
	violations = append(violations, overheadViolations...)
	if len(violations) > 0 {
		return nil, shared.NewValidationError(violations)
	}

	update := costing.Update{
		RecordDate: req.RecordDate,
		Vendor:     req.Vendor,
		LineItems:  items,
		Overheads:  overheads,
	}
	if err := record.Apply(update, deviceID); err != nil {
		return nil, err
	}

	if err := s.recordRepo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save purchase record: %w", err)
	}
	s.invalidateSnapshot(ctx, companyID)

	response := ToPurchaseRecordResponse(record)
	return &response, nil
}

// Delete soft-deletes an invoice. Deleting twice is an error, not a no-op.
func (s *PurchaseRecordService) Delete(ctx context.Context, companyID, recordID uuid.UUID, deviceID string) error {
	record, err := s.findOwned(ctx, companyID, recordID)
	if err != nil {
		return err
	}
	if err := record.SoftDelete(); err != nil {
		return err
	}
	record.TouchEditor(deviceID)

	if err := s.recordRepo.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to save purchase record: %w", err)
	}
	s.invalidateSnapshot(ctx, companyID)
	return nil
}

// GetBreakdown returns the full per-key attribution of one invoice
func (s *PurchaseRecordService) GetBreakdown(ctx context.Context, companyID, recordID uuid.UUID) (*BreakdownResponse, error) {
	record, err := s.findOwned(ctx, companyID, recordID)
	if err != nil {
		return nil, err
	}
	response := ToBreakdownResponse(record, record.Breakdown())
	return &response, nil
}

// GetSnapshot returns the most recent unit cost per key across all of
// the company's active invoices, served from cache when warm
func (s *PurchaseRecordService) GetSnapshot(ctx context.Context, companyID uuid.UUID) (*CPUSnapshotResponse, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, companyID); err == nil && cached != nil {
			s.recordSnapshotLookup(ctx, companyID, telemetry.SnapshotCacheHit)
			return cached, nil
		}
		s.recordSnapshotLookup(ctx, companyID, telemetry.SnapshotCacheMiss)
	}

	observations, err := s.collectObservations(ctx, companyID, nil, nil, nil, nil)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]costing.Observation)
	for _, obs := range observations {
		prev, ok := latest[obs.Key]
		if !ok || obs.RecordDate.After(prev.RecordDate) {
			latest[obs.Key] = obs
		}
	}
	entries := make([]CPUSnapshotEntry, 0, len(latest))
	for _, obs := range latest {
		entries = append(entries, CPUSnapshotEntry{
			Key:          obs.Key,
			CategoryID:   obs.CategoryID,
			CategoryName: obs.CategoryName,
			Variant:      obs.Variant,
			UnitCost:     obs.UnitCost.StringFixed2(),
			AsOf:         obs.RecordDate,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	snapshot := &CPUSnapshotResponse{Entries: entries, GeneratedAt: time.Now()}
	if s.cache != nil {
		_ = s.cache.Set(ctx, companyID, snapshot)
	}
	return snapshot, nil
}

// GetHistory returns dated unit-cost observations oldest first. With an
// empty filter it covers every key the company has ever purchased; the
// filter can pin one key or one category.
func (s *PurchaseRecordService) GetHistory(ctx context.Context, companyID uuid.UUID, filter HistoryFilter) ([]ObservationResponse, error) {
	observations, err := s.collectObservations(ctx, companyID, filter.Key, filter.CategoryID, filter.FromDate, filter.ToDate)
	if err != nil {
		return nil, err
	}
	history := make([]ObservationResponse, 0, len(observations))
	for _, obs := range observations {
		history = append(history, ObservationResponse{
			RecordID:   obs.RecordID,
			RecordDate: obs.RecordDate,
			Key:        obs.Key,
			UnitCost:   obs.UnitCost.StringFixed2(),
		})
	}
	return history, nil
}

// GetTrend computes the cost trend for one key over an optional date
// window. Direction compares the first and last observed values.
func (s *PurchaseRecordService) GetTrend(ctx context.Context, companyID uuid.UUID, key string, from, to *time.Time) (*TrendResponse, error) {
	observations, err := s.collectObservations(ctx, companyID, &key, nil, from, to)
	if err != nil {
		return nil, err
	}

	trend := costing.ComputeTrend(observations)
	history := make([]ObservationResponse, 0, len(trend.Observations))
	for _, obs := range trend.Observations {
		history = append(history, ObservationResponse{
			RecordID:   obs.RecordID,
			RecordDate: obs.RecordDate,
			Key:        obs.Key,
			UnitCost:   obs.UnitCost.StringFixed2(),
		})
	}

	var minStr, maxStr *string
	if trend.Min != nil {
		v := trend.Min.StringFixed2()
		minStr = &v
	}
	if trend.Max != nil {
		v := trend.Max.StringFixed2()
		maxStr = &v
	}
	return &TrendResponse{
		Key:          key,
		Observations: history,
		Min:          minStr,
		Max:          maxStr,
		Direction:    string(trend.Direction),
	}, nil
}

// RecalculateAll re-runs the attribution resolver over every active
// invoice of the company and persists the refreshed derived fields
func (s *PurchaseRecordService) RecalculateAll(ctx context.Context, companyID uuid.UUID) (*RecalculateResponse, error) {
	records, err := s.fetchAll(ctx, companyID, costing.PurchaseRecordFilter{})
	if err != nil {
		return nil, err
	}

	processed := 0
	for i := range records {
		record := &records[i]
		record.Recalculate()
		if err := s.recordRepo.Save(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to save purchase record %s: %w", record.ID, err)
		}
		processed++
	}
	s.invalidateSnapshot(ctx, companyID)
	return &RecalculateResponse{RecordsProcessed: processed}, nil
}

func (s *PurchaseRecordService) findOwned(ctx context.Context, companyID, recordID uuid.UUID) (*costing.PurchaseRecord, error) {
	record, err := s.recordRepo.FindByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !record.BelongsTo(companyID) {
		return nil, shared.NewOwnershipError("purchase record belongs to a different company")
	}
	return record, nil
}

// collectObservations walks the company's active invoices oldest first
// and emits one observation per record per key. Keys with no resolvable
// unit cost are skipped: unknown cost is absent, not zero. A categoryID
// narrows the fetch at the repository and the per-item pass, since a
// matching record can still carry line items of other categories.
func (s *PurchaseRecordService) collectObservations(ctx context.Context, companyID uuid.UUID, key, categoryID *string, from, to *time.Time) ([]costing.Observation, error) {
	filter := costing.PurchaseRecordFilter{FromDate: from, ToDate: to, CategoryID: categoryID}
	records, err := s.fetchAll(ctx, companyID, filter)
	if err != nil {
		return nil, err
	}

	var observations []costing.Observation
	for i := range records {
		record := &records[i]
		for itemKey, item := range record.LineItems {
			if key != nil && itemKey != *key {
				continue
			}
			if categoryID != nil && item.CategoryID != *categoryID {
				continue
			}
			cpu := record.CalculatedCPUs[itemKey]
			if cpu == nil {
				continue
			}
			observations = append(observations, costing.Observation{
				RecordID:     record.ID.String(),
				RecordDate:   record.RecordDate,
				Key:          itemKey,
				CategoryID:   item.CategoryID,
				CategoryName: item.CategoryName,
				Variant:      item.Variant,
				UnitCost:     *cpu,
			})
		}
	}
	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].RecordDate.Before(observations[j].RecordDate)
	})
	return observations, nil
}

// fetchAll pages through the repository until the company's records are
// exhausted, ordered by record date ascending
func (s *PurchaseRecordService) fetchAll(ctx context.Context, companyID uuid.UUID, filter costing.PurchaseRecordFilter) ([]costing.PurchaseRecord, error) {
	filter.Filter = shared.Filter{Page: 1, PageSize: 200, OrderBy: "record_date", OrderDir: "asc"}

	var all []costing.PurchaseRecord
	for {
		batch, err := s.recordRepo.FindAllForCompany(ctx, companyID, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to list purchase records: %w", err)
		}
		all = append(all, batch...)
		if len(batch) < filter.PageSize {
			return all, nil
		}
		filter.Page++
	}
}

func (s *PurchaseRecordService) buildFilter(filter PurchaseRecordListFilter) costing.PurchaseRecordFilter {
	domainFilter := costing.PurchaseRecordFilter{
		Filter:     shared.DefaultFilter(),
		FromDate:   filter.FromDate,
		ToDate:     filter.ToDate,
		CategoryID: filter.CategoryID,
		Vendor:     filter.Vendor,
	}
	domainFilter.Search = filter.Search
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		domainFilter.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		domainFilter.OrderDir = filter.OrderDir
	}
	return domainFilter
}

func (s *PurchaseRecordService) recordSnapshotLookup(ctx context.Context, companyID uuid.UUID, state telemetry.SnapshotCacheState) {
	if s.businessMetrics == nil {
		return
	}
	s.businessMetrics.RecordSnapshotLookup(ctx, companyID, state)
}

func (s *PurchaseRecordService) invalidateSnapshot(ctx context.Context, companyID uuid.UUID) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, companyID)
}
