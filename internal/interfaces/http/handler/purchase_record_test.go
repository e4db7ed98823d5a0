package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	costingapp "github.com/margincraft/backend/internal/application/costing"
	"github.com/margincraft/backend/internal/domain/costing"
	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/margincraft/backend/internal/domain/shared/valueobject"
	"github.com/margincraft/backend/internal/interfaces/http/dto"
)

// mockRecordRepo is a mock implementation of costing.PurchaseRecordRepository
type mockRecordRepo struct {
	mock.Mock
}

func (m *mockRecordRepo) FindByID(ctx context.Context, id uuid.UUID) (*costing.PurchaseRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*costing.PurchaseRecord), args.Error(1)
}

func (m *mockRecordRepo) FindAllForCompany(ctx context.Context, companyID uuid.UUID, filter costing.PurchaseRecordFilter) ([]costing.PurchaseRecord, error) {
	args := m.Called(ctx, companyID, filter)
	return args.Get(0).([]costing.PurchaseRecord), args.Error(1)
}

func (m *mockRecordRepo) CountForCompany(ctx context.Context, companyID uuid.UUID, filter costing.PurchaseRecordFilter) (int64, error) {
	args := m.Called(ctx, companyID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRecordRepo) Save(ctx context.Context, record *costing.PurchaseRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func newRecordRouter(repo *mockRecordRepo) *gin.Engine {
	service := costingapp.NewPurchaseRecordService(repo)
	h := NewPurchaseRecordHandler(service)

	router := gin.New()
	group := router.Group("/api/v1/invoices")
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/cpu/snapshot", h.GetSnapshot)
	group.GET("/cpu/history", h.GetHistory)
	group.GET("/cpu/trend", h.GetTrend)
	group.POST("/cpu/recalculate", h.Recalculate)
	group.GET("/:id", h.GetByID)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
	group.GET("/:id/cpu", h.GetBreakdown)
	return router
}

func seedRecord(t *testing.T, companyID uuid.UUID) *costing.PurchaseRecord {
	t.Helper()
	record, err := costing.NewPurchaseRecord(
		companyID,
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		"Acme Ingredients",
		[]costing.LineItem{
			{CategoryName: "Jars", Variant: "8oz", UnitsPurchased: valueobject.MustAmount("100"), UnitPrice: valueobject.MustAmount("2.00")},
			{CategoryName: "Lids", UnitsPurchased: valueobject.MustAmount("100"), UnitPrice: valueobject.MustAmount("1.00")},
		},
		map[string]valueobject.Amount{"shipping": valueobject.MustAmount("30.00")},
	)
	require.NoError(t, err)
	return record
}

func performRequest(router *gin.Engine, method, path, companyID, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if companyID != "" {
		req.Header.Set("X-Company-ID", companyID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPurchaseRecordCreate(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)
	companyID := uuid.New()

	repo.On("Save", mock.Anything, mock.AnythingOfType("*costing.PurchaseRecord")).Return(nil)

	body := `{
		"record_date": "2026-03-10T00:00:00Z",
		"vendor": "Acme Ingredients",
		"line_items": [
			{"category_name": "Jars", "variant": "8oz", "units_purchased": "100", "unit_price": "2.00"},
			{"category_name": "Lids", "units_purchased": "100", "unit_price": "1.00"}
		],
		"overheads": {"shipping": "30.00"}
	}`
	w := performRequest(router, http.MethodPost, "/api/v1/invoices", companyID.String(), body)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Success bool                              `json:"success"`
		Data    costingapp.PurchaseRecordResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, companyID, resp.Data.CompanyID)
	assert.Equal(t, "330.00", resp.Data.TotalPaid)
	require.Contains(t, resp.Data.CalculatedCPUs, "jars+8oz")
	repo.AssertExpectations(t)
}

func TestPurchaseRecordCreateMissingLineItems(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)

	body := `{"record_date": "2026-03-10T00:00:00Z", "vendor": "Acme"}`
	w := performRequest(router, http.MethodPost, "/api/v1/invoices", uuid.NewString(), body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	repo.AssertNotCalled(t, "Save")
}

func TestPurchaseRecordCreateMalformedAmount(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)

	body := `{
		"record_date": "2026-03-10T00:00:00Z",
		"vendor": "Acme",
		"line_items": [
			{"category_name": "Jars", "units_purchased": "100", "unit_price": "two dollars"}
		]
	}`
	w := performRequest(router, http.MethodPost, "/api/v1/invoices", uuid.NewString(), body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Details)
	repo.AssertNotCalled(t, "Save")
}

func TestPurchaseRecordGetByID(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)
	companyID := uuid.New()
	record := seedRecord(t, companyID)

	repo.On("FindByID", mock.Anything, record.ID).Return(record, nil)

	w := performRequest(router, http.MethodGet, "/api/v1/invoices/"+record.ID.String(), companyID.String(), "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data costingapp.PurchaseRecordResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, record.ID, resp.Data.ID)
	assert.Equal(t, "Acme Ingredients", resp.Data.Vendor)
}

func TestPurchaseRecordGetByIDNotFound(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)
	recordID := uuid.New()

	repo.On("FindByID", mock.Anything, recordID).Return(nil, shared.ErrNotFound)

	w := performRequest(router, http.MethodGet, "/api/v1/invoices/"+recordID.String(), uuid.NewString(), "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPurchaseRecordGetByIDWrongCompany(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)
	record := seedRecord(t, uuid.New())

	repo.On("FindByID", mock.Anything, record.ID).Return(record, nil)

	w := performRequest(router, http.MethodGet, "/api/v1/invoices/"+record.ID.String(), uuid.NewString(), "")

	assert.Equal(t, http.StatusForbidden, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeOwnershipMismatch, resp.Error.Code)
}

func TestPurchaseRecordGetByIDInvalidUUID(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)

	w := performRequest(router, http.MethodGet, "/api/v1/invoices/not-a-uuid", uuid.NewString(), "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	repo.AssertNotCalled(t, "FindByID")
}

func TestPurchaseRecordList(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)
	companyID := uuid.New()
	record := seedRecord(t, companyID)

	repo.On("FindAllForCompany", mock.Anything, companyID, mock.AnythingOfType("costing.PurchaseRecordFilter")).
		Return([]costing.PurchaseRecord{*record}, nil)
	repo.On("CountForCompany", mock.Anything, companyID, mock.AnythingOfType("costing.PurchaseRecordFilter")).
		Return(int64(1), nil)

	w := performRequest(router, http.MethodGet, "/api/v1/invoices?page=1&page_size=20", companyID.String(), "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)
	assert.Equal(t, 1, resp.Meta.Page)
	assert.Equal(t, 20, resp.Meta.PageSize)
}

func TestPurchaseRecordUpdate(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)
	companyID := uuid.New()
	record := seedRecord(t, companyID)

	repo.On("FindByID", mock.Anything, record.ID).Return(record, nil)
	repo.On("Save", mock.Anything, record).Return(nil)

	body := `{"vendor": "Bulk Supply Co"}`
	w := performRequest(router, http.MethodPut, "/api/v1/invoices/"+record.ID.String(), companyID.String(), body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data costingapp.PurchaseRecordResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Bulk Supply Co", resp.Data.Vendor)
	repo.AssertExpectations(t)
}

func TestPurchaseRecordDelete(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)
	companyID := uuid.New()
	record := seedRecord(t, companyID)

	repo.On("FindByID", mock.Anything, record.ID).Return(record, nil)
	repo.On("Save", mock.Anything, record).Return(nil)

	w := performRequest(router, http.MethodDelete, "/api/v1/invoices/"+record.ID.String(), companyID.String(), "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	repo.AssertExpectations(t)
}

func TestPurchaseRecordDeleteTwice(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)
	companyID := uuid.New()
	record := seedRecord(t, companyID)
	require.NoError(t, record.SoftDelete())

	repo.On("FindByID", mock.Anything, record.ID).Return(record, nil)

	w := performRequest(router, http.MethodDelete, "/api/v1/invoices/"+record.ID.String(), companyID.String(), "")

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeAlreadyDeleted, resp.Error.Code)
	repo.AssertNotCalled(t, "Save")
}

func TestPurchaseRecordGetBreakdown(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)
	companyID := uuid.New()
	record := seedRecord(t, companyID)

	repo.On("FindByID", mock.Anything, record.ID).Return(record, nil)

	w := performRequest(router, http.MethodGet, "/api/v1/invoices/"+record.ID.String()+"/cpu", companyID.String(), "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data costingapp.BreakdownResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, record.ID, resp.Data.RecordID)
	assert.Len(t, resp.Data.Breakdown, 2)
	assert.Equal(t, "330.00", resp.Data.TotalPaid)
}

func TestPurchaseRecordGetSnapshot(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)
	companyID := uuid.New()
	record := seedRecord(t, companyID)

	repo.On("FindAllForCompany", mock.Anything, companyID, mock.AnythingOfType("costing.PurchaseRecordFilter")).
		Return([]costing.PurchaseRecord{*record}, nil)

	w := performRequest(router, http.MethodGet, "/api/v1/invoices/cpu/snapshot", companyID.String(), "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data costingapp.CPUSnapshotResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Entries, 2)
}

func TestPurchaseRecordGetHistoryUnfiltered(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)
	companyID := uuid.New()
	record := seedRecord(t, companyID)

	repo.On("FindAllForCompany", mock.Anything, companyID, mock.AnythingOfType("costing.PurchaseRecordFilter")).
		Return([]costing.PurchaseRecord{*record}, nil)

	w := performRequest(router, http.MethodGet, "/api/v1/invoices/cpu/history", companyID.String(), "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data []costingapp.ObservationResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	keys := []string{resp.Data[0].Key, resp.Data[1].Key}
	assert.Contains(t, keys, "jars+8oz")
	assert.Contains(t, keys, "lids")
}

func TestPurchaseRecordGetHistoryByKey(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)
	companyID := uuid.New()
	record := seedRecord(t, companyID)

	repo.On("FindAllForCompany", mock.Anything, companyID, mock.AnythingOfType("costing.PurchaseRecordFilter")).
		Return([]costing.PurchaseRecord{*record}, nil)

	w := performRequest(router, http.MethodGet, "/api/v1/invoices/cpu/history?key=jars%2B8oz", companyID.String(), "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data []costingapp.ObservationResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "jars+8oz", resp.Data[0].Key)
}

func TestPurchaseRecordGetTrend(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)
	companyID := uuid.New()
	record := seedRecord(t, companyID)

	repo.On("FindAllForCompany", mock.Anything, companyID, mock.AnythingOfType("costing.PurchaseRecordFilter")).
		Return([]costing.PurchaseRecord{*record}, nil)

	w := performRequest(router, http.MethodGet, "/api/v1/invoices/cpu/trend?key=jars%2B8oz", companyID.String(), "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data costingapp.TrendResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "jars+8oz", resp.Data.Key)
	assert.Len(t, resp.Data.Observations, 1)
}

func TestPurchaseRecordRecalculate(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)
	companyID := uuid.New()
	record := seedRecord(t, companyID)

	repo.On("FindAllForCompany", mock.Anything, companyID, mock.AnythingOfType("costing.PurchaseRecordFilter")).
		Return([]costing.PurchaseRecord{*record}, nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*costing.PurchaseRecord")).Return(nil)

	w := performRequest(router, http.MethodPost, "/api/v1/invoices/cpu/recalculate", companyID.String(), "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data costingapp.RecalculateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.RecordsProcessed)
}

func TestPurchaseRecordInvalidCompanyHeader(t *testing.T) {
	repo := new(mockRecordRepo)
	router := newRecordRouter(repo)

	w := performRequest(router, http.MethodGet, "/api/v1/invoices", "not-a-uuid", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	repo.AssertNotCalled(t, "FindAllForCompany")
}
