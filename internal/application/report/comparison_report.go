package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	apppromotion "github.com/margincraft/backend/internal/application/promotion"
)

// PromotionViewer supplies the detail and comparison views that feed
// the rendered report
type PromotionViewer interface {
	GetByID(ctx context.Context, companyID, promoID uuid.UUID) (*apppromotion.PromotionResponse, error)
	Compare(ctx context.Context, companyID, promoID uuid.UUID) (*apppromotion.ComparisonResponse, error)
}

// ReportRenderer converts report HTML into a PDF document
type ReportRenderer interface {
	Render(ctx context.Context, title, html string) ([]byte, error)
}

// ComparisonReport is a rendered with/without-promo report, ready to
// stream as a download
type ComparisonReport struct {
	Filename string
	PDF      []byte
}

// ComparisonReportService renders the with/without-promo comparison of
// an analyzed promotion as a PDF document
type ComparisonReportService struct {
	promotions PromotionViewer
	renderer   ReportRenderer
}

// NewComparisonReportService creates a new ComparisonReportService
func NewComparisonReportService(promotions PromotionViewer, renderer ReportRenderer) *ComparisonReportService {
	return &ComparisonReportService{promotions: promotions, renderer: renderer}
}

type comparisonReportData struct {
	Promotion  *apppromotion.PromotionResponse
	Comparison *apppromotion.ComparisonResponse
}

var reportTitleCaser = cases.Title(language.English)

var comparisonTemplate = template.Must(template.New("comparison").Funcs(template.FuncMap{
	"title": reportTitleCaser.String,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Promotion.Name}} margin report</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #1a1a1a; }
h1 { font-size: 20px; margin-bottom: 2px; }
h2 { font-size: 14px; margin-top: 24px; }
.meta { color: #555; margin-bottom: 16px; }
table { border-collapse: collapse; width: 100%; margin-top: 8px; }
th, td { border: 1px solid #ccc; padding: 5px 8px; text-align: right; }
th:first-child, td:first-child { text-align: left; }
th { background: #f2f2f2; }
.verdict { margin-top: 16px; padding: 10px; background: #f7f7f7; border-left: 4px solid #888; }
</style>
</head>
<body>
<h1>{{title .Promotion.Name}}</h1>
<div class="meta">{{title .Promotion.Retailer}} &middot; payback {{.Promotion.PaybackPercent}}% &middot; status {{title .Promotion.Status}}</div>

<h2>With vs Without Promotion</h2>
<table>
<tr><th></th><th>Average Margin %</th><th>Min Margin %</th><th>Max Margin %</th><th>Total Cost</th></tr>
<tr><td>Without promo</td><td>{{.Comparison.WithoutPromo.AverageMargin}}</td><td>{{.Comparison.WithoutPromo.MinMargin}}</td><td>{{.Comparison.WithoutPromo.MaxMargin}}</td><td>{{.Comparison.WithoutPromo.TotalCost}}</td></tr>
<tr><td>With promo</td><td>{{.Comparison.WithPromo.AverageMargin}}</td><td>{{.Comparison.WithPromo.MinMargin}}</td><td>{{.Comparison.WithPromo.MaxMargin}}</td><td>{{.Comparison.WithPromo.TotalCost}}</td></tr>
</table>

{{if .Promotion.Analysis}}
<h2>Per-Variant Outcomes</h2>
<table>
<tr><th>Variant</th><th>Margin Without %</th><th>Margin With %</th><th>Delta %</th><th>Quality</th></tr>
{{range .Promotion.Analysis.Variants}}
<tr><td>{{title .Variant}}</td><td>{{.MarginWithoutPromo}}</td><td>{{.MarginWithPromo}}</td><td>{{.MarginDelta}}</td><td>{{.QualityLabel}}</td></tr>
{{end}}
</table>

<div class="verdict"><strong>{{title .Promotion.Analysis.Recommendation}}</strong>: {{.Promotion.Analysis.Reason}}</div>
{{end}}
</body>
</html>`))

// BuildComparisonPDF renders the comparison report of an analyzed
// promotion. The promotion must carry a stored analysis.
func (s *ComparisonReportService) BuildComparisonPDF(ctx context.Context, companyID, promoID uuid.UUID) (*ComparisonReport, error) {
	promo, err := s.promotions.GetByID(ctx, companyID, promoID)
	if err != nil {
		return nil, err
	}
	comparison, err := s.promotions.Compare(ctx, companyID, promoID)
	if err != nil {
		return nil, err
	}

	var html bytes.Buffer
	if err := comparisonTemplate.Execute(&html, comparisonReportData{
		Promotion:  promo,
		Comparison: comparison,
	}); err != nil {
		return nil, fmt.Errorf("failed to render report template: %w", err)
	}

	pdf, err := s.renderer.Render(ctx, promo.Name+" margin report", html.String())
	if err != nil {
		return nil, fmt.Errorf("failed to render report PDF: %w", err)
	}
	return &ComparisonReport{
		Filename: fmt.Sprintf("promotion-report-%s.pdf", promoID),
		PDF:      pdf,
	}, nil
}
