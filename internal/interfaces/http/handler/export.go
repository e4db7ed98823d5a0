package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	reportapp "github.com/margincraft/backend/internal/application/report"
)

// ExportHandler handles report export API endpoints
type ExportHandler struct {
	BaseHandler
	exportService     *reportapp.ExportService
	comparisonReports *reportapp.ComparisonReportService
}

// NewExportHandler creates a new ExportHandler. The comparison report
// service may be nil when PDF rendering is not configured.
func NewExportHandler(exportService *reportapp.ExportService, comparisonReports *reportapp.ComparisonReportService) *ExportHandler {
	return &ExportHandler{
		exportService:     exportService,
		comparisonReports: comparisonReports,
	}
}

// HasComparisonReports reports whether PDF comparison reports are
// available on this deployment
func (h *ExportHandler) HasComparisonReports() bool {
	return h.comparisonReports != nil
}

// ExportCPUWorkbook godoc
// @Summary      Export unit cost history
// @Description  Build an xlsx workbook with the company's unit-cost snapshot, per-key history and promotion analyses, and stream it as a download.
// @Tags         invoices
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Success      200 {file} binary "xlsx workbook"
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices/cpu/export [get]
func (h *ExportHandler) ExportCPUWorkbook(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	workbook, err := h.exportService.BuildCPUWorkbook(c.Request.Context(), companyID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	defer workbook.Close()

	filename := fmt.Sprintf("cpu-report-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := workbook.Write(c.Writer); err != nil {
		// Headers are already sent at this point; abort the connection
		c.AbortWithStatus(http.StatusInternalServerError)
	}
}

// ArchiveCPUWorkbook godoc
// @Summary      Archive a unit cost export
// @Description  Build the xlsx workbook, store it in the export archive and return a time-limited download link.
// @Tags         invoices
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Success      200 {object} dto.Response{data=reportapp.ArchiveResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices/cpu/export/archive [post]
func (h *ExportHandler) ArchiveCPUWorkbook(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	archive, err := h.exportService.ArchiveCPUWorkbook(c.Request.Context(), companyID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, archive)
}

// ExportComparisonPDF godoc
// @Summary      Download the promotion comparison report
// @Description  Render the with/without-promo comparison of an analyzed promotion as a PDF document.
// @Tags         promotions
// @Produce      application/pdf
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        id path string true "Promotion ID"
// @Success      200 {file} binary "PDF report"
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /promotions/{id}/report [get]
func (h *ExportHandler) ExportComparisonPDF(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}
	promoID, ok := h.pathID(c, "promotion")
	if !ok {
		return
	}

	report, err := h.comparisonReports.BuildComparisonPDF(c.Request.Context(), companyID, promoID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	c.Data(http.StatusOK, "application/pdf", report.PDF)
}
