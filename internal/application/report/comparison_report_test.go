package report

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apppromotion "github.com/margincraft/backend/internal/application/promotion"
)

type stubViewer struct {
	promo      *apppromotion.PromotionResponse
	comparison *apppromotion.ComparisonResponse
}

func (s *stubViewer) GetByID(ctx context.Context, companyID, promoID uuid.UUID) (*apppromotion.PromotionResponse, error) {
	return s.promo, nil
}

func (s *stubViewer) Compare(ctx context.Context, companyID, promoID uuid.UUID) (*apppromotion.ComparisonResponse, error) {
	return s.comparison, nil
}

type stubRenderer struct {
	title string
	html  string
}

func (s *stubRenderer) Render(ctx context.Context, title, html string) ([]byte, error) {
	s.title = title
	s.html = html
	return []byte("%PDF-1.4 stub"), nil
}

func TestBuildComparisonPDF(t *testing.T) {
	promoID := uuid.New()
	viewer := &stubViewer{
		promo: &apppromotion.PromotionResponse{
			ID:             promoID,
			Name:           "spring sale",
			Retailer:       "greenmart",
			PaybackPercent: "5.00",
			Status:         "ANALYZED",
			Analysis: &apppromotion.AnalysisResponse{
				Variants: []apppromotion.VariantAnalysisResponse{
					{Variant: "8oz", MarginWithoutPromo: "66.67", MarginWithPromo: "61.67", MarginDelta: "-5.00", QualityLabel: "good"},
				},
				Recommendation: "participate",
				Reason:         "margin stays above threshold",
				AnalyzedAt:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			},
		},
		comparison: &apppromotion.ComparisonResponse{
			PromotionID:  promoID,
			WithoutPromo: apppromotion.ComparisonSideResponse{AverageMargin: "66.67", MinMargin: "66.67", MaxMargin: "66.67", TotalCost: "100.00"},
			WithPromo:    apppromotion.ComparisonSideResponse{AverageMargin: "61.67", MinMargin: "61.67", MaxMargin: "61.67", TotalCost: "115.00"},
		},
	}
	renderer := &stubRenderer{}
	service := NewComparisonReportService(viewer, renderer)

	report, err := service.BuildComparisonPDF(context.Background(), uuid.New(), promoID)
	require.NoError(t, err)

	assert.Equal(t, "promotion-report-"+promoID.String()+".pdf", report.Filename)
	assert.NotEmpty(t, report.PDF)
	assert.Equal(t, "spring sale margin report", renderer.title)

	// The title template func title-cases names on the rendered page.
	assert.Contains(t, renderer.html, "Spring Sale")
	assert.Contains(t, renderer.html, "Greenmart")
	assert.Contains(t, renderer.html, "-5.00")
	assert.Contains(t, renderer.html, "61.67")
	assert.Contains(t, renderer.html, "Participate")
	assert.Contains(t, renderer.html, "margin stays above threshold")
}
