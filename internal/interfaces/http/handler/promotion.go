package handler

import (
	"github.com/gin-gonic/gin"

	promotionapp "github.com/margincraft/backend/internal/application/promotion"
)

// PromotionHandler handles promotion API endpoints
type PromotionHandler struct {
	BaseHandler
	promotionService *promotionapp.Service
}

// NewPromotionHandler creates a new PromotionHandler
func NewPromotionHandler(promotionService *promotionapp.Service) *PromotionHandler {
	return &PromotionHandler{
		promotionService: promotionService,
	}
}

// Create godoc
// @Summary      Record a promotion deal
// @Description  Record a new promotion with its variant terms and labor costs. Created promotions start in DRAFT.
// @Tags         promotions
// @Accept       json
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        request body promotionapp.CreatePromotionRequest true "Promotion creation request"
// @Success      201 {object} dto.Response{data=promotionapp.PromotionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /promotions [post]
func (h *PromotionHandler) Create(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	var req promotionapp.CreatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	promo, err := h.promotionService.Create(c.Request.Context(), companyID, getDeviceID(c), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, promo)
}

// GetByID godoc
// @Summary      Get promotion by ID
// @Description  Retrieve a promotion with its stored analysis, if any
// @Tags         promotions
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        id path string true "Promotion ID" format(uuid)
// @Success      200 {object} dto.Response{data=promotionapp.PromotionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /promotions/{id} [get]
func (h *PromotionHandler) GetByID(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	promoID, ok := h.pathID(c, "promotion")
	if !ok {
		return
	}

	promo, err := h.promotionService.GetByID(c.Request.Context(), companyID, promoID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, promo)
}

// List godoc
// @Summary      List promotions
// @Description  Retrieve a paginated list of promotions
// @Tags         promotions
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        search query string false "Search keyword"
// @Param        retailer query string false "Retailer filter"
// @Param        status query string false "Status filter"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20)
// @Success      200 {object} dto.Response{data=[]promotionapp.PromotionListItemResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /promotions [get]
func (h *PromotionHandler) List(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	var filter promotionapp.ListFilter
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

	page, err := h.promotionService.List(c.Request.Context(), companyID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Update godoc
// @Summary      Update a promotion
// @Description  Apply a partial update to a promotion. Any edit invalidates a previously stored analysis.
// @Tags         promotions
// @Accept       json
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        id path string true "Promotion ID" format(uuid)
// @Param        request body promotionapp.UpdatePromotionRequest true "Promotion update request"
// @Success      200 {object} dto.Response{data=promotionapp.PromotionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /promotions/{id} [put]
func (h *PromotionHandler) Update(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	promoID, ok := h.pathID(c, "promotion")
	if !ok {
		return
	}

	var req promotionapp.UpdatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	promo, err := h.promotionService.Update(c.Request.Context(), companyID, promoID, getDeviceID(c), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, promo)
}

// Delete godoc
// @Summary      Delete a promotion
// @Description  Soft-delete a promotion. Deleting an already deleted promotion is a conflict.
// @Tags         promotions
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        id path string true "Promotion ID" format(uuid)
// @Success      204 "No Content"
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /promotions/{id} [delete]
func (h *PromotionHandler) Delete(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	promoID, ok := h.pathID(c, "promotion")
	if !ok {
		return
	}

	if err := h.promotionService.Delete(c.Request.Context(), companyID, promoID, getDeviceID(c)); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// Analyze godoc
// @Summary      Analyze a promotion
// @Description  Compute margins, per-variant quality grades and an overall recommendation, and store the result on the promotion.
// @Tags         promotions
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        id path string true "Promotion ID" format(uuid)
// @Success      200 {object} dto.Response{data=promotionapp.PromotionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /promotions/{id}/analyze [post]
func (h *PromotionHandler) Analyze(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	promoID, ok := h.pathID(c, "promotion")
	if !ok {
		return
	}

	promo, err := h.promotionService.Analyze(c.Request.Context(), companyID, promoID, getDeviceID(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, promo)
}

// GetComparison godoc
// @Summary      Compare margins with and without the promotion
// @Description  Retrieve aggregate margin statistics for both sides of the deal. Requires a stored analysis.
// @Tags         promotions
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        id path string true "Promotion ID" format(uuid)
// @Success      200 {object} dto.Response{data=promotionapp.ComparisonResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /promotions/{id}/comparison [get]
func (h *PromotionHandler) GetComparison(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	promoID, ok := h.pathID(c, "promotion")
	if !ok {
		return
	}

	comparison, err := h.promotionService.Compare(c.Request.Context(), companyID, promoID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, comparison)
}

// GetRecommendation godoc
// @Summary      Get promotion recommendation
// @Description  Retrieve the stored recommendation and its reason. Requires a stored analysis.
// @Tags         promotions
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        id path string true "Promotion ID" format(uuid)
// @Success      200 {object} dto.Response{data=promotionapp.RecommendationResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /promotions/{id}/recommendation [get]
func (h *PromotionHandler) GetRecommendation(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	promoID, ok := h.pathID(c, "promotion")
	if !ok {
		return
	}

	recommendation, err := h.promotionService.GetRecommendation(c.Request.Context(), companyID, promoID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, recommendation)
}

// Transition godoc
// @Summary      Change promotion status
// @Description  Move a promotion through its status machine (DRAFT, SUBMITTED, APPROVED, DECLINED, ACTIVE, COMPLETED). Illegal moves are conflicts.
// @Tags         promotions
// @Accept       json
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        id path string true "Promotion ID" format(uuid)
// @Param        request body promotionapp.TransitionRequest true "Target status"
// @Success      200 {object} dto.Response{data=promotionapp.PromotionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /promotions/{id}/status [post]
func (h *PromotionHandler) Transition(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	promoID, ok := h.pathID(c, "promotion")
	if !ok {
		return
	}

	var req promotionapp.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	promo, err := h.promotionService.Transition(c.Request.Context(), companyID, promoID, getDeviceID(c), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, promo)
}
