// Package router wires the HTTP route table. Each domain contributes a
// RouteRegistrar; the Router mounts them all under the versioned API
// prefix.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/margincraft/backend/internal/interfaces/http/handler"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
	middleware []gin.HandlerFunc
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make([]RouteRegistrar, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Use adds middleware applied to every route under the API prefix
func (r *Router) Use(middleware ...gin.HandlerFunc) *Router {
	r.middleware = append(r.middleware, middleware...)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	if len(r.middleware) > 0 {
		api.Use(r.middleware...)
	}
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// InvoiceRoutes wires the purchase invoice and cost-per-unit endpoints.
// The fixed cpu/* paths are registered before the :id routes so gin
// never treats "cpu" as an invoice ID.
type InvoiceRoutes struct {
	Records *handler.PurchaseRecordHandler
	Exports *handler.ExportHandler
}

// RegisterRoutes implements RouteRegistrar
func (ir InvoiceRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/invoices")

	invoices.GET("/cpu/snapshot", ir.Records.GetSnapshot)
	invoices.GET("/cpu/history", ir.Records.GetHistory)
	invoices.GET("/cpu/trend", ir.Records.GetTrend)
	invoices.POST("/cpu/recalculate", ir.Records.Recalculate)
	if ir.Exports != nil {
		invoices.GET("/cpu/export", ir.Exports.ExportCPUWorkbook)
		invoices.POST("/cpu/export/archive", ir.Exports.ArchiveCPUWorkbook)
	}

	invoices.POST("", ir.Records.Create)
	invoices.GET("", ir.Records.List)
	invoices.GET("/:id", ir.Records.GetByID)
	invoices.PUT("/:id", ir.Records.Update)
	invoices.DELETE("/:id", ir.Records.Delete)
	invoices.GET("/:id/cpu", ir.Records.GetBreakdown)
}

// CategoryRoutes wires the cost category endpoints
type CategoryRoutes struct {
	Categories *handler.CategoryHandler
}

// RegisterRoutes implements RouteRegistrar
func (cr CategoryRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	categories := rg.Group("/categories")

	categories.POST("", cr.Categories.Create)
	categories.GET("", cr.Categories.List)
	categories.GET("/:id", cr.Categories.GetByID)
	categories.PUT("/:id", cr.Categories.Update)
	categories.DELETE("/:id", cr.Categories.Delete)
}

// PromotionRoutes wires the promotion and margin analysis endpoints.
// The PDF report route is mounted only when a renderer is configured.
type PromotionRoutes struct {
	Promotions *handler.PromotionHandler
	Reports    *handler.ExportHandler
}

// RegisterRoutes implements RouteRegistrar
func (pr PromotionRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	promotions := rg.Group("/promotions")

	promotions.POST("", pr.Promotions.Create)
	promotions.GET("", pr.Promotions.List)
	promotions.GET("/:id", pr.Promotions.GetByID)
	promotions.PUT("/:id", pr.Promotions.Update)
	promotions.DELETE("/:id", pr.Promotions.Delete)
	promotions.POST("/:id/analyze", pr.Promotions.Analyze)
	promotions.GET("/:id/comparison", pr.Promotions.GetComparison)
	promotions.GET("/:id/recommendation", pr.Promotions.GetRecommendation)
	promotions.POST("/:id/status", pr.Promotions.Transition)
	if pr.Reports != nil && pr.Reports.HasComparisonReports() {
		promotions.GET("/:id/report", pr.Reports.ExportComparisonPDF)
	}
}

// SystemRoutes wires health and introspection endpoints on the engine
// root, outside the versioned API prefix
type SystemRoutes struct {
	System *handler.SystemHandler
}

// Mount registers the system endpoints directly on the engine
func (sr SystemRoutes) Mount(engine *gin.Engine) {
	engine.GET("/health", sr.System.Health)
	engine.GET("/ready", sr.System.Ready)
	engine.GET("/system/info", sr.System.GetSystemInfo)
}
