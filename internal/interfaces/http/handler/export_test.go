package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	costingapp "github.com/margincraft/backend/internal/application/costing"
	promotionapp "github.com/margincraft/backend/internal/application/promotion"
	reportapp "github.com/margincraft/backend/internal/application/report"
	"github.com/margincraft/backend/internal/domain/shared"
)

type stubSnapshotProvider struct {
	snapshot *costingapp.CPUSnapshotResponse
	err      error
}

func (s *stubSnapshotProvider) GetSnapshot(ctx context.Context, companyID uuid.UUID) (*costingapp.CPUSnapshotResponse, error) {
	return s.snapshot, s.err
}

type stubPromotionLister struct {
	page *shared.Paginated[promotionapp.PromotionListItemResponse]
	err  error
}

func (s *stubPromotionLister) List(ctx context.Context, companyID uuid.UUID, filter promotionapp.ListFilter) (*shared.Paginated[promotionapp.PromotionListItemResponse], error) {
	return s.page, s.err
}

func newExportRouter(snapshots reportapp.SnapshotProvider, promotions reportapp.PromotionLister) *gin.Engine {
	service := reportapp.NewExportService(snapshots, promotions)
	h := NewExportHandler(service, nil)

	router := gin.New()
	router.GET("/api/v1/invoices/cpu/export", h.ExportCPUWorkbook)
	return router
}

func TestExportCPUWorkbook(t *testing.T) {
	snapshots := &stubSnapshotProvider{
		snapshot: &costingapp.CPUSnapshotResponse{
			Entries: []costingapp.CPUSnapshotEntry{
				{Key: "jars+8oz", CategoryName: "Jars", Variant: "8oz", UnitCost: "2.20", AsOf: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
			},
			GeneratedAt: time.Now(),
		},
	}
	page := shared.NewPaginated([]promotionapp.PromotionListItemResponse{}, 0, 1, 100)
	router := newExportRouter(snapshots, &stubPromotionLister{page: &page})

	w := performRequest(router, http.MethodGet, "/api/v1/invoices/cpu/export", uuid.NewString(), "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")

	workbook, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer workbook.Close()

	value, err := workbook.GetCellValue("Cost Per Unit", "A2")
	require.NoError(t, err)
	assert.Equal(t, "jars+8oz", value)
}

func TestExportCPUWorkbookSnapshotFailure(t *testing.T) {
	snapshots := &stubSnapshotProvider{err: assert.AnError}
	router := newExportRouter(snapshots, nil)

	w := performRequest(router, http.MethodGet, "/api/v1/invoices/cpu/export", uuid.NewString(), "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type stubArtifactStore struct {
	key string
}

func (s *stubArtifactStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.key = key
	return nil
}

func (s *stubArtifactStore) PresignDownload(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	return "https://exports.local/" + key, time.Now().Add(15 * time.Minute), nil
}

func TestArchiveCPUWorkbookEndpoint(t *testing.T) {
	snapshots := &stubSnapshotProvider{
		snapshot: &costingapp.CPUSnapshotResponse{GeneratedAt: time.Now()},
	}
	service := reportapp.NewExportService(snapshots, nil)
	service.SetArtifactStore(&stubArtifactStore{})
	h := NewExportHandler(service, nil)

	router := gin.New()
	router.POST("/api/v1/invoices/cpu/export/archive", h.ArchiveCPUWorkbook)

	w := performRequest(router, http.MethodPost, "/api/v1/invoices/cpu/export/archive", uuid.NewString(), "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "download_url")
	assert.Contains(t, w.Body.String(), "https://exports.local/exports/")
}

type stubPromotionViewer struct {
	promo      *promotionapp.PromotionResponse
	comparison *promotionapp.ComparisonResponse
}

func (s *stubPromotionViewer) GetByID(ctx context.Context, companyID, promoID uuid.UUID) (*promotionapp.PromotionResponse, error) {
	return s.promo, nil
}

func (s *stubPromotionViewer) Compare(ctx context.Context, companyID, promoID uuid.UUID) (*promotionapp.ComparisonResponse, error) {
	return s.comparison, nil
}

type stubPDFRenderer struct{}

func (s *stubPDFRenderer) Render(ctx context.Context, title, html string) ([]byte, error) {
	return []byte("%PDF-1.4 stub"), nil
}

func TestExportComparisonPDFEndpoint(t *testing.T) {
	promoID := uuid.New()
	viewer := &stubPromotionViewer{
		promo:      &promotionapp.PromotionResponse{ID: promoID, Name: "Spring Sale", Retailer: "GreenMart", PaybackPercent: "5.00", Status: "ANALYZED"},
		comparison: &promotionapp.ComparisonResponse{PromotionID: promoID},
	}
	reports := reportapp.NewComparisonReportService(viewer, &stubPDFRenderer{})
	h := NewExportHandler(nil, reports)

	router := gin.New()
	router.GET("/api/v1/promotions/:id/report", h.ExportComparisonPDF)

	w := performRequest(router, http.MethodGet, "/api/v1/promotions/"+promoID.String()+"/report", uuid.NewString(), "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "promotion-report-"+promoID.String()+".pdf")
	assert.Equal(t, "%PDF-1.4 stub", w.Body.String())
}
