package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/margincraft/backend/internal/infrastructure/auth"
	"github.com/margincraft/backend/internal/infrastructure/logger"
)

// Gin context keys populated by the auth middleware.
const (
	JWTClaimsKey    = "jwt_claims"
	JWTCompanyIDKey = "jwt_company_id"
	JWTDeviceIDKey  = "jwt_device_id"
	AuthHeaderKey   = "Authorization"
	BearerPrefix    = "Bearer "
)

// JWTMiddlewareConfig wires token validation into the request chain.
type JWTMiddlewareConfig struct {
	JWTService *auth.JWTService
	// TokenBlacklist, when set, rejects revoked tokens and deregistered
	// devices. Lookup failures are logged and the request proceeds.
	TokenBlacklist auth.TokenBlacklist
	// SkipPaths and SkipPathPrefixes bypass authentication entirely.
	SkipPaths        []string
	SkipPathPrefixes []string
	// OnError replaces the default 401 response when set.
	OnError func(c *gin.Context, err error)
	Logger  *zap.Logger
}

// JWTAuthMiddlewareWithConfig authenticates requests with a bearer token.
// On success the claims, company and device IDs land in the gin context,
// and the request context is tagged so log lines and row scoping pick up
// the company.
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authSkipped(cfg, c.Request.URL.Path) {
			c.Next()
			return
		}

		token, err := bearerToken(c)
		if err != nil {
			rejectUnauthenticated(c, cfg, err)
			return
		}

		claims, err := cfg.JWTService.ValidateToken(token)
		if err != nil {
			rejectUnauthenticated(c, cfg, err)
			return
		}

		if cfg.TokenBlacklist != nil && tokenRevoked(c, cfg, claims) {
			rejectUnauthenticated(c, cfg, auth.ErrTokenBlacklisted)
			return
		}

		storeClaims(c, claims)

		ctx := c.Request.Context()
		log := logger.FromContext(ctx)
		ctx, _ = logger.WithCompanyID(ctx, log, claims.CompanyID)
		ctx, _ = logger.WithDeviceID(ctx, log, claims.DeviceID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// OptionalJWTAuthMiddleware extracts claims when a valid bearer token is
// present but never rejects the request. Endpoints that serve both
// authenticated and anonymous traffic use this.
func OptionalJWTAuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := bearerToken(c); err == nil {
			if claims, err := jwtService.ValidateToken(token); err == nil {
				storeClaims(c, claims)
			}
		}
		c.Next()
	}
}

func authSkipped(cfg JWTMiddlewareConfig, path string) bool {
	for _, skip := range cfg.SkipPaths {
		if path == skip {
			return true
		}
	}
	for _, prefix := range cfg.SkipPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader(AuthHeaderKey)
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", auth.ErrInvalidToken
	}
	token := strings.TrimPrefix(header, BearerPrefix)
	if token == "" {
		return "", auth.ErrInvalidToken
	}
	return token, nil
}

// tokenRevoked consults the blacklist for the token's JTI and for a
// device-wide invalidation newer than the token. Blacklist outages fail
// open so a cache incident cannot take down the API.
func tokenRevoked(c *gin.Context, cfg JWTMiddlewareConfig, claims *auth.Claims) bool {
	ctx := c.Request.Context()

	if claims.ID != "" {
		blacklisted, err := cfg.TokenBlacklist.IsBlacklisted(ctx, claims.ID)
		switch {
		case err != nil:
			logBlacklistError(cfg, err, zap.String("jti", claims.ID))
		case blacklisted:
			return true
		}
	}

	if claims.DeviceID != "" {
		invalidated, err := cfg.TokenBlacklist.IsDeviceTokenInvalidated(ctx, claims.DeviceID, claims.GetIssuedAtTime())
		switch {
		case err != nil:
			logBlacklistError(cfg, err, zap.String("device_id", claims.DeviceID))
		case invalidated:
			return true
		}
	}

	return false
}

func logBlacklistError(cfg JWTMiddlewareConfig, err error, field zap.Field) {
	if cfg.Logger != nil {
		cfg.Logger.Error("Token blacklist lookup failed", field, zap.Error(err))
	}
}

func storeClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(JWTClaimsKey, claims)
	c.Set(JWTCompanyIDKey, claims.CompanyID)
	c.Set(JWTDeviceIDKey, claims.DeviceID)
}

func rejectUnauthenticated(c *gin.Context, cfg JWTMiddlewareConfig, err error) {
	if cfg.OnError != nil {
		cfg.OnError(c, err)
		return
	}

	if cfg.Logger != nil {
		cfg.Logger.Warn("Authentication failed",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
	}

	code, message := authErrorCode(err)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}

func authErrorCode(err error) (string, string) {
	switch err {
	case auth.ErrExpiredToken:
		return "TOKEN_EXPIRED", "Token has expired"
	case auth.ErrInvalidToken:
		return "INVALID_TOKEN", "Invalid token"
	case auth.ErrTokenNotYetValid:
		return "TOKEN_NOT_VALID", "Token is not yet valid"
	case auth.ErrTokenBlacklisted:
		return "TOKEN_REVOKED", "Token has been revoked"
	}
	return "UNAUTHORIZED", "Authentication required"
}

// GetJWTClaims returns the validated claims, or nil before auth ran.
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(JWTClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// GetJWTCompanyID returns the authenticated company ID, or "".
func GetJWTCompanyID(c *gin.Context) string {
	return c.GetString(JWTCompanyIDKey)
}

// GetJWTDeviceID returns the authenticated device ID, or "".
func GetJWTDeviceID(c *gin.Context) string {
	return c.GetString(JWTDeviceIDKey)
}
