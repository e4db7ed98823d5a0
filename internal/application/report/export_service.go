// Package report builds downloadable workbook exports over the costing
// and promotion views.
package report

import (
	"context"
	"fmt"
	"time"

	appcosting "github.com/margincraft/backend/internal/application/costing"
	apppromotion "github.com/margincraft/backend/internal/application/promotion"
	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const workbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SnapshotProvider supplies the company-wide latest-unit-cost view
type SnapshotProvider interface {
	GetSnapshot(ctx context.Context, companyID uuid.UUID) (*appcosting.CPUSnapshotResponse, error)
}

// PromotionLister supplies the promotion list view
type PromotionLister interface {
	List(ctx context.Context, companyID uuid.UUID, filter apppromotion.ListFilter) (*shared.Paginated[apppromotion.PromotionListItemResponse], error)
}

// ArtifactStore archives generated workbooks and hands out
// time-limited download links
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PresignDownload(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error)
}

// ExportService renders costing and promotion data as xlsx workbooks
type ExportService struct {
	snapshots  SnapshotProvider
	promotions PromotionLister
	artifacts  ArtifactStore
}

// NewExportService creates a new ExportService
func NewExportService(snapshots SnapshotProvider, promotions PromotionLister) *ExportService {
	return &ExportService{snapshots: snapshots, promotions: promotions}
}

// SetArtifactStore enables archived exports; without a store only
// streamed downloads are available
func (s *ExportService) SetArtifactStore(artifacts ArtifactStore) {
	s.artifacts = artifacts
}

// BuildCPUWorkbook renders the current cost-per-unit snapshot and the
// promotion verdicts into one workbook. Unit costs are written as
// 2-decimal strings so the exported values match the API exactly.
func (s *ExportService) BuildCPUWorkbook(ctx context.Context, companyID uuid.UUID) (*excelize.File, error) {
	snapshot, err := s.snapshots.GetSnapshot(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cost snapshot: %w", err)
	}

	f := excelize.NewFile()
	const cpuSheet = "Cost Per Unit"
	f.SetSheetName("Sheet1", cpuSheet)

	headers := []string{"Key", "Category", "Variant", "Unit Cost", "As Of"}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(cpuSheet, cell, header)
	}
	for i, entry := range snapshot.Entries {
		row := i + 2
		f.SetCellValue(cpuSheet, fmt.Sprintf("A%d", row), entry.Key)
		f.SetCellValue(cpuSheet, fmt.Sprintf("B%d", row), entry.CategoryName)
		f.SetCellValue(cpuSheet, fmt.Sprintf("C%d", row), entry.Variant)
		f.SetCellValue(cpuSheet, fmt.Sprintf("D%d", row), entry.UnitCost)
		f.SetCellValue(cpuSheet, fmt.Sprintf("E%d", row), entry.AsOf.Format("2006-01-02"))
	}

	if s.promotions != nil {
		if err := s.addPromotionSheet(ctx, f, companyID); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// ArchiveResponse points at an archived workbook export
type ArchiveResponse struct {
	Key         string    `json:"key"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ArchiveCPUWorkbook builds the workbook, stores it under a dated
// per-company key and returns a presigned download link
func (s *ExportService) ArchiveCPUWorkbook(ctx context.Context, companyID uuid.UUID) (*ArchiveResponse, error) {
	if s.artifacts == nil {
		return nil, shared.NewDomainError("EXPORT_ARCHIVE_UNAVAILABLE", "export archive storage is not configured")
	}

	workbook, err := s.BuildCPUWorkbook(ctx, companyID)
	if err != nil {
		return nil, err
	}
	defer workbook.Close()

	buf, err := workbook.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	key := fmt.Sprintf("exports/%s/cpu-report-%s.xlsx", companyID, time.Now().UTC().Format("20060102-150405"))
	if err := s.artifacts.Put(ctx, key, buf.Bytes(), workbookContentType); err != nil {
		return nil, fmt.Errorf("failed to archive workbook: %w", err)
	}

	url, expiresAt, err := s.artifacts.PresignDownload(ctx, key, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to presign workbook download: %w", err)
	}
	return &ArchiveResponse{Key: key, DownloadURL: url, ExpiresAt: expiresAt}, nil
}

func (s *ExportService) addPromotionSheet(ctx context.Context, f *excelize.File, companyID uuid.UUID) error {
	const sheet = "Promotions"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to add promotion sheet: %w", err)
	}

	promos, err := s.promotions.List(ctx, companyID, apppromotion.ListFilter{PageSize: 100})
	if err != nil {
		return fmt.Errorf("failed to list promotions: %w", err)
	}

	headers := []string{"Name", "Retailer", "Status", "Variants", "Recommendation"}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, header)
	}
	for i, p := range promos.Items {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), p.Name)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), p.Retailer)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), p.Status)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), p.VariantCount)
		if p.Recommendation != nil {
			f.SetCellValue(sheet, fmt.Sprintf("E%d", row), *p.Recommendation)
		}
	}
	return nil
}
