package report

import (
	"context"
	"testing"
	"time"

	appcosting "github.com/margincraft/backend/internal/application/costing"
	apppromotion "github.com/margincraft/backend/internal/application/promotion"
	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSnapshots struct {
	snapshot *appcosting.CPUSnapshotResponse
}

func (s *stubSnapshots) GetSnapshot(ctx context.Context, companyID uuid.UUID) (*appcosting.CPUSnapshotResponse, error) {
	return s.snapshot, nil
}

type stubPromotions struct {
	items []apppromotion.PromotionListItemResponse
}

func (s *stubPromotions) List(ctx context.Context, companyID uuid.UUID, filter apppromotion.ListFilter) (*shared.Paginated[apppromotion.PromotionListItemResponse], error) {
	result := shared.NewPaginated(s.items, int64(len(s.items)), 1, 100)
	return &result, nil
}

func TestBuildCPUWorkbook(t *testing.T) {
	rec := "participate"
	service := NewExportService(
		&stubSnapshots{snapshot: &appcosting.CPUSnapshotResponse{
			Entries: []appcosting.CPUSnapshotEntry{
				{Key: "jars+8oz", CategoryName: "Jars", Variant: "8oz", UnitCost: "2.20", AsOf: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
			},
			GeneratedAt: time.Now(),
		}},
		&stubPromotions{items: []apppromotion.PromotionListItemResponse{
			{Name: "Spring Sale", Retailer: "GreenMart", Status: "DRAFT", VariantCount: 1, Recommendation: &rec},
		}},
	)

	f, err := service.BuildCPUWorkbook(context.Background(), uuid.New())
	require.NoError(t, err)
	defer f.Close()

	key, err := f.GetCellValue("Cost Per Unit", "A2")
	require.NoError(t, err)
	assert.Equal(t, "jars+8oz", key)

	cost, err := f.GetCellValue("Cost Per Unit", "D2")
	require.NoError(t, err)
	assert.Equal(t, "2.20", cost)

	verdict, err := f.GetCellValue("Promotions", "E2")
	require.NoError(t, err)
	assert.Equal(t, "participate", verdict)
}

type stubArtifacts struct {
	key         string
	contentType string
	data        []byte
}

func (s *stubArtifacts) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.key = key
	s.contentType = contentType
	s.data = data
	return nil
}

func (s *stubArtifacts) PresignDownload(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	return "https://exports.local/" + key, time.Date(2026, 3, 10, 12, 15, 0, 0, time.UTC), nil
}

func TestArchiveCPUWorkbook(t *testing.T) {
	service := NewExportService(
		&stubSnapshots{snapshot: &appcosting.CPUSnapshotResponse{
			Entries: []appcosting.CPUSnapshotEntry{
				{Key: "lids", CategoryName: "Lids", UnitCost: "0.14", AsOf: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
			},
			GeneratedAt: time.Now(),
		}},
		&stubPromotions{},
	)
	artifacts := &stubArtifacts{}
	service.SetArtifactStore(artifacts)

	companyID := uuid.New()
	resp, err := service.ArchiveCPUWorkbook(context.Background(), companyID)
	require.NoError(t, err)

	assert.Contains(t, artifacts.key, "exports/"+companyID.String()+"/cpu-report-")
	assert.Contains(t, artifacts.key, ".xlsx")
	assert.Equal(t, workbookContentType, artifacts.contentType)
	assert.NotEmpty(t, artifacts.data)
	assert.Equal(t, artifacts.key, resp.Key)
	assert.Equal(t, "https://exports.local/"+artifacts.key, resp.DownloadURL)
	assert.False(t, resp.ExpiresAt.IsZero())
}

func TestArchiveCPUWorkbookWithoutStore(t *testing.T) {
	service := NewExportService(&stubSnapshots{snapshot: &appcosting.CPUSnapshotResponse{}}, nil)

	_, err := service.ArchiveCPUWorkbook(context.Background(), uuid.New())
	require.Error(t, err)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "EXPORT_ARCHIVE_UNAVAILABLE", domainErr.Code)
}
