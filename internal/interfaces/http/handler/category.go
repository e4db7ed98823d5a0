package handler

import (
	"github.com/gin-gonic/gin"

	costingapp "github.com/margincraft/backend/internal/application/costing"
)

// CategoryHandler serves the cost category endpoints.
type CategoryHandler struct {
	BaseHandler
	categoryService *costingapp.CategoryService
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService *costingapp.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// Create godoc
// @Summary      Create a cost category
// @Description  Create a new cost category with an optional variant list
// @Tags         categories
// @Accept       json
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        request body costingapp.CreateCategoryRequest true "Category creation request"
// @Success      201 {object} dto.Response{data=costingapp.CategoryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	var req costingapp.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	category, err := h.categoryService.Create(c.Request.Context(), companyID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, category)
}

// GetByID godoc
// @Summary      Get category by ID
// @Description  Retrieve a cost category by its ID
// @Tags         categories
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        id path string true "Category ID" format(uuid)
// @Success      200 {object} dto.Response{data=costingapp.CategoryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /categories/{id} [get]
func (h *CategoryHandler) GetByID(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}
	categoryID, ok := h.pathID(c, "category")
	if !ok {
		return
	}

	category, err := h.categoryService.GetByID(c.Request.Context(), companyID, categoryID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, category)
}

// List godoc
// @Summary      List categories
// @Description  Retrieve a paginated list of cost categories
// @Tags         categories
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        search query string false "Search keyword"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20)
// @Success      200 {object} dto.Response{data=[]costingapp.CategoryResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}

	var filter costingapp.CategoryListFilter
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

	page, err := h.categoryService.List(c.Request.Context(), companyID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Update godoc
// @Summary      Update a category
// @Description  Apply a partial update to a cost category
// @Tags         categories
// @Accept       json
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        id path string true "Category ID" format(uuid)
// @Param        request body costingapp.UpdateCategoryRequest true "Category update request"
// @Success      200 {object} dto.Response{data=costingapp.CategoryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /categories/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}
	categoryID, ok := h.pathID(c, "category")
	if !ok {
		return
	}

	var req costingapp.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	category, err := h.categoryService.Update(c.Request.Context(), companyID, categoryID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, category)
}

// Delete godoc
// @Summary      Delete a category
// @Description  Soft-delete a cost category
// @Tags         categories
// @Produce      json
// @Param        X-Company-ID header string false "Company ID (optional for dev)"
// @Param        id path string true "Category ID" format(uuid)
// @Success      204 "No Content"
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /categories/{id} [delete]
func (h *CategoryHandler) Delete(c *gin.Context) {
	companyID, ok := h.companyScope(c)
	if !ok {
		return
	}
	categoryID, ok := h.pathID(c, "category")
	if !ok {
		return
	}

	if err := h.categoryService.Delete(c.Request.Context(), companyID, categoryID); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.NoContent(c)
}
