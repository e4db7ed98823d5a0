package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	costingapp "github.com/margincraft/backend/internal/application/costing"
)

// PurchaseRecordHandler handles purchase invoice API endpoints
type PurchaseRecordHandler struct {
	BaseHandler
	recordService *costingapp.PurchaseRecordService
}

// NewPurchaseRecordHandler creates a new PurchaseRecordHandler
func NewPurchaseRecordHandler(recordService *costingapp.PurchaseRecordService) *PurchaseRecordHandler {
	return &PurchaseRecordHandler{
		recordService: recordService,
	}
}

// cpuWindowQuery carries the key and the optional date window of trend
// lookups
type cpuWindowQuery struct {
	Key      string     `form:"key" binding:"required"`
	FromDate *time.Time `form:"from_date" time_format:"2006-01-02"`
	ToDate   *time.Time `form:"to_date" time_format:"2006-01-02"`
}

// cpuHistoryQuery narrows history lookups. Key and category_id are both
// optional: with neither, the response spans every key the company has.
type cpuHistoryQuery struct {
	Key        string     `form:"key"`
	CategoryID string     `form:"category_id"`
	FromDate   *time.Time `form:"from_date" time_format:"2006-01-02"`
	ToDate     *time.Time `form:"to_date" time_format:"2006-01-02"`
}

func (q cpuHistoryQuery) toFilter() costingapp.HistoryFilter {
	filter := costingapp.HistoryFilter{FromDate: q.FromDate, ToDate: q.ToDate}
	if q.Key != "" {
		filter.Key = &q.Key
	}
	if q.CategoryID != "" {
		filter.CategoryID = &q.CategoryID
	}
	return filter
}

// Create godoc
// @Summary      Record a purchase invoice
// @Description  Record a new purchase invoice with line items and overheads. Unit costs are computed on write.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        request body costingapp.CreatePurchaseRecordRequest true "Invoice creation request"
// @Success      201 {object} dto.Response{data=costingapp.PurchaseRecordResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices [post]
func (h *PurchaseRecordHandler) Create(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	var req costingapp.CreatePurchaseRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	record, err := h.recordService.Create(c.Request.Context(), companyID, getDeviceID(c), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, record)
}

// GetByID godoc
// @Summary      Get invoice by ID
// @Description  Retrieve a purchase invoice with its computed unit costs
// @Tags         invoices
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} dto.Response{data=costingapp.PurchaseRecordResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices/{id} [get]
func (h *PurchaseRecordHandler) GetByID(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	recordID, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}

	record, err := h.recordService.GetByID(c.Request.Context(), companyID, recordID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, record)
}

// List godoc
// @Summary      List invoices
// @Description  Retrieve a paginated list of purchase invoices
// @Tags         invoices
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        search query string false "Search keyword"
// @Param        vendor query string false "Vendor filter"
// @Param        from_date query string false "Start of the record-date window (YYYY-MM-DD)"
// @Param        to_date query string false "End of the record-date window (YYYY-MM-DD)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20)
// @Success      200 {object} dto.Response{data=[]costingapp.PurchaseRecordListItemResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices [get]
func (h *PurchaseRecordHandler) List(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	var filter costingapp.PurchaseRecordListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}

	page, err := h.recordService.List(c.Request.Context(), companyID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Update godoc
// @Summary      Update an invoice
// @Description  Apply a partial update to an invoice. Unit costs are recomputed and the editor's version counter is bumped.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body costingapp.UpdatePurchaseRecordRequest true "Invoice update request"
// @Success      200 {object} dto.Response{data=costingapp.PurchaseRecordResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices/{id} [put]
func (h *PurchaseRecordHandler) Update(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	recordID, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}

	var req costingapp.UpdatePurchaseRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	record, err := h.recordService.Update(c.Request.Context(), companyID, recordID, getDeviceID(c), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, record)
}

// Delete godoc
// @Summary      Delete an invoice
// @Description  Soft-delete an invoice. Deleting an already deleted invoice is a conflict.
// @Tags         invoices
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      204 "No Content"
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices/{id} [delete]
func (h *PurchaseRecordHandler) Delete(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	recordID, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}

	if err := h.recordService.Delete(c.Request.Context(), companyID, recordID, getDeviceID(c)); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// GetBreakdown godoc
// @Summary      Get invoice cost breakdown
// @Description  Retrieve the full cost attribution of one invoice: direct cost, allocated overhead and unit cost per line-item key.
// @Tags         invoices
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} dto.Response{data=costingapp.BreakdownResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices/{id}/cpu [get]
func (h *PurchaseRecordHandler) GetBreakdown(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	recordID, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}

	breakdown, err := h.recordService.GetBreakdown(c.Request.Context(), companyID, recordID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, breakdown)
}

// GetSnapshot godoc
// @Summary      Get latest unit costs
// @Description  Retrieve the most recent unit cost observed for every line-item key across the company's invoices.
// @Tags         invoices
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Success      200 {object} dto.Response{data=costingapp.CPUSnapshotResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices/cpu/snapshot [get]
func (h *PurchaseRecordHandler) GetSnapshot(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	snapshot, err := h.recordService.GetSnapshot(c.Request.Context(), companyID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, snapshot)
}

// GetHistory godoc
// @Summary      Get unit cost history
// @Description  Retrieve dated unit-cost observations, oldest first. Optionally narrowed to one key or one category.
// @Tags         invoices
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        key query string false "Line-item key (category|variant)"
// @Param        category_id query string false "Cost category ID"
// @Param        from_date query string false "Start of the window (YYYY-MM-DD)"
// @Param        to_date query string false "End of the window (YYYY-MM-DD)"
// @Success      200 {object} dto.Response{data=[]costingapp.ObservationResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices/cpu/history [get]
func (h *PurchaseRecordHandler) GetHistory(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	var query cpuHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	history, err := h.recordService.GetHistory(c.Request.Context(), companyID, query.toFilter())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, history)
}

// GetTrend godoc
// @Summary      Get unit cost trend
// @Description  Retrieve the windowed cost history of one key with min, max and a first-vs-last direction classification.
// @Tags         invoices
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        key query string true "Line-item key (category|variant)"
// @Param        from_date query string false "Start of the window (YYYY-MM-DD)"
// @Param        to_date query string false "End of the window (YYYY-MM-DD)"
// @Success      200 {object} dto.Response{data=costingapp.TrendResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices/cpu/trend [get]
func (h *PurchaseRecordHandler) GetTrend(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	var query cpuWindowQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	trend, err := h.recordService.GetTrend(c.Request.Context(), companyID, query.Key, query.FromDate, query.ToDate)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, trend)
}

// Recalculate godoc
// @Summary      Recompute all unit costs
// @Description  Recompute the unit costs of every active invoice and refresh the snapshot cache.
// @Tags         invoices
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Success      200 {object} dto.Response{data=costingapp.RecalculateResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices/cpu/recalculate [post]
func (h *PurchaseRecordHandler) Recalculate(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	result, err := h.recordService.RecalculateAll(c.Request.Context(), companyID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}
