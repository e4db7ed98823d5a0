package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/margincraft/backend/internal/infrastructure/auth"
	"github.com/margincraft/backend/internal/infrastructure/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:          "test-secret-key-at-least-32-chars",
		Issuer:          "test-issuer",
		ExpirationHours: 1,
	})
}

func newTestToken(t *testing.T, jwtService *auth.JWTService) (*auth.IssuedToken, uuid.UUID, string) {
	t.Helper()
	companyID := uuid.New()
	deviceID := "device-" + uuid.NewString()
	issued, err := jwtService.IssueToken(companyID, deviceID)
	require.NoError(t, err)
	return issued, companyID, deviceID
}

// authRouter mounts GET /records behind the auth middleware.
func authRouter(cfg JWTMiddlewareConfig) *gin.Engine {
	r := gin.New()
	r.Use(JWTAuthMiddlewareWithConfig(cfg))
	r.GET("/records", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"company": GetJWTCompanyID(c)})
	})
	return r
}

func doGet(r *gin.Engine, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set(AuthHeaderKey, bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload.Error.Code
}

func TestJWTAuth_ValidToken(t *testing.T) {
	jwtService := newTestJWTService()
	issued, companyID, _ := newTestToken(t, jwtService)
	r := authRouter(JWTMiddlewareConfig{JWTService: jwtService})

	w := doGet(r, "/records", "Bearer "+issued.Token)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), companyID.String())
}

func TestJWTAuth_RejectsBadCredentials(t *testing.T) {
	jwtService := newTestJWTService()
	r := authRouter(JWTMiddlewareConfig{JWTService: jwtService})

	cases := map[string]struct {
		header   string
		wantCode string
	}{
		"missing header": {header: "", wantCode: "INVALID_TOKEN"},
		"not bearer":     {header: "Basic dXNlcjpwYXNz", wantCode: "INVALID_TOKEN"},
		"empty token":    {header: "Bearer ", wantCode: "INVALID_TOKEN"},
		"garbage token":  {header: "Bearer not.a.jwt", wantCode: "INVALID_TOKEN"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := doGet(r, "/records", tc.header)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tc.wantCode, errorCode(t, w.Body.Bytes()))
		})
	}
}

func TestJWTAuth_RejectsForeignSignature(t *testing.T) {
	other := auth.NewJWTService(config.JWTConfig{
		Secret:          "a-completely-different-signing-key",
		Issuer:          "test-issuer",
		ExpirationHours: 1,
	})
	issued, _, _ := newTestToken(t, other)

	r := authRouter(JWTMiddlewareConfig{JWTService: newTestJWTService()})
	w := doGet(r, "/records", "Bearer "+issued.Token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_BlacklistedTokenRejected(t *testing.T) {
	jwtService := newTestJWTService()
	issued, _, _ := newTestToken(t, jwtService)

	claims, err := jwtService.ValidateToken(issued.Token)
	require.NoError(t, err)

	blacklist := auth.NewInMemoryTokenBlacklist()
	require.NoError(t, blacklist.AddToBlacklist(t.Context(), claims.ID, claims.GetRemainingTTL()))

	r := authRouter(JWTMiddlewareConfig{JWTService: jwtService, TokenBlacklist: blacklist})
	w := doGet(r, "/records", "Bearer "+issued.Token)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "TOKEN_REVOKED", errorCode(t, w.Body.Bytes()))
}

func TestJWTAuth_DeregisteredDeviceRejected(t *testing.T) {
	jwtService := newTestJWTService()
	issued, _, deviceID := newTestToken(t, jwtService)

	blacklist := auth.NewInMemoryTokenBlacklist()
	require.NoError(t, blacklist.AddDeviceTokensToBlacklist(t.Context(), deviceID, time.Hour))

	r := authRouter(JWTMiddlewareConfig{JWTService: jwtService, TokenBlacklist: blacklist})
	w := doGet(r, "/records", "Bearer "+issued.Token)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "TOKEN_REVOKED", errorCode(t, w.Body.Bytes()))
}

func TestJWTAuth_SkipPaths(t *testing.T) {
	cfg := JWTMiddlewareConfig{
		JWTService:       newTestJWTService(),
		SkipPaths:        []string{"/health"},
		SkipPathPrefixes: []string{"/static"},
	}
	r := gin.New()
	r.Use(JWTAuthMiddlewareWithConfig(cfg))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/health", ok)
	r.GET("/static/logo.png", ok)
	r.GET("/records", ok)

	assert.Equal(t, http.StatusOK, doGet(r, "/health", "").Code)
	assert.Equal(t, http.StatusOK, doGet(r, "/static/logo.png", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "/records", "").Code)
}

func TestJWTAuth_PopulatesContext(t *testing.T) {
	jwtService := newTestJWTService()
	issued, companyID, deviceID := newTestToken(t, jwtService)

	var gotCompany, gotDevice string
	var gotClaims *auth.Claims

	r := gin.New()
	r.Use(JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{JWTService: jwtService}))
	r.GET("/records", func(c *gin.Context) {
		gotCompany = GetJWTCompanyID(c)
		gotDevice = GetJWTDeviceID(c)
		gotClaims = GetJWTClaims(c)
		c.Status(http.StatusOK)
	})

	w := doGet(r, "/records", "Bearer "+issued.Token)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, companyID.String(), gotCompany)
	assert.Equal(t, deviceID, gotDevice)
	require.NotNil(t, gotClaims)
	assert.Equal(t, companyID.String(), gotClaims.CompanyID)
}

func TestJWTAuth_ContextAccessorsBeforeAuth(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Nil(t, GetJWTClaims(c))
	assert.Empty(t, GetJWTCompanyID(c))
	assert.Empty(t, GetJWTDeviceID(c))
}

func TestJWTAuth_CustomOnError(t *testing.T) {
	var gotErr error
	cfg := JWTMiddlewareConfig{
		JWTService: newTestJWTService(),
		OnError: func(c *gin.Context, err error) {
			gotErr = err
			c.AbortWithStatus(http.StatusForbidden)
		},
	}

	w := doGet(authRouter(cfg), "/records", "")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.ErrorIs(t, gotErr, auth.ErrInvalidToken)
}

func TestOptionalJWTAuth(t *testing.T) {
	jwtService := newTestJWTService()
	issued, companyID, _ := newTestToken(t, jwtService)

	var gotClaims *auth.Claims
	r := gin.New()
	r.Use(OptionalJWTAuthMiddleware(jwtService))
	r.GET("/records", func(c *gin.Context) {
		gotClaims = GetJWTClaims(c)
		c.Status(http.StatusOK)
	})

	t.Run("no token passes through", func(t *testing.T) {
		gotClaims = nil
		w := doGet(r, "/records", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, gotClaims)
	})

	t.Run("invalid token ignored", func(t *testing.T) {
		gotClaims = nil
		w := doGet(r, "/records", "Bearer not-a-token")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, gotClaims)
	})

	t.Run("valid token extracted", func(t *testing.T) {
		gotClaims = nil
		w := doGet(r, "/records", "Bearer "+issued.Token)
		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, gotClaims)
		assert.Equal(t, companyID.String(), gotClaims.CompanyID)
	})
}
