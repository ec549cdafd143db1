package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/infrastructure/auth"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/interfaces/http/dto"
)

// Session context keys
const (
	SessionClaimsKey = "session_claims"
	SessionShopKey   = "session_shop"
	AuthHeaderKey    = "Authorization"
)

// TokenVerifier checks a raw Authorization header value
type TokenVerifier interface {
	Verify(raw string) (*auth.SessionClaims, error)
}

// SessionAuth requires a valid Shopify session token
func SessionAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := verifier.Verify(c.GetHeader(AuthHeaderKey))
		if err != nil {
			handleAuthError(c, err)
			return
		}

		shop := claims.Shop()
		c.Set(SessionClaimsKey, claims)
		c.Set(SessionShopKey, shop)

		ctx := c.Request.Context()
		reqLogger := logger.FromContext(ctx).With(zap.String("shop", shop))
		c.Request = c.Request.WithContext(logger.WithContext(ctx, reqLogger))

		c.Next()
	}
}

func handleAuthError(c *gin.Context, err error) {
	logger.L(c.Request.Context()).Warn("Session token rejected",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
	)

	switch {
	case errors.Is(err, auth.ErrMissingToken):
		abortWithError(c, dto.ErrCodeUnauthorized, "Missing token")
	case errors.Is(err, auth.ErrBadAudience):
		abortWithError(c, dto.ErrCodeBadAudience, "Bad audience")
	case errors.Is(err, auth.ErrExpiredToken):
		abortWithError(c, dto.ErrCodeTokenExpired, "Invalid or expired token")
	default:
		abortWithError(c, dto.ErrCodeTokenInvalid, "Invalid or expired token")
	}
}

// GetSessionClaims returns the claims stored by SessionAuth
func GetSessionClaims(c *gin.Context) *auth.SessionClaims {
	if v, ok := c.Get(SessionClaimsKey); ok {
		if claims, ok := v.(*auth.SessionClaims); ok {
			return claims
		}
	}
	return nil
}

// GetSessionShop returns the shop of the session token
func GetSessionShop(c *gin.Context) string {
	return c.GetString(SessionShopKey)
}
