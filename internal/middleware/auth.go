package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/services"
)

const claimsContextKey = "auth_claims"

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		log:         log.With("middleware", "AuthMiddleware"),
		authService: authService,
	}
}

// RequireScope verifies the bearer token and rejects any token of a
// different scope. Provider tokens are additionally pinned to the :pid route
// parameter so one provider cannot write another provider's results.
func (am *AuthMiddleware) RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		claims, err := am.authService.VerifyToken(c.Request.Context(), tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if claims.Scope != scope {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		if claims.Scope == services.ScopeProvider {
			if pid := c.Param("pid"); pid != "" && pid != claims.Subject {
				am.log.Warn("Provider token used for another provider", "acronym", claims.Acronym)
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}
		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the verified claims set by RequireScope.
func ClaimsFrom(c *gin.Context) *services.AuthClaims {
	val, ok := c.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, ok := val.(*services.AuthClaims)
	if !ok {
		return nil
	}
	return claims
}

// ProviderIDFrom returns the provider id of the authenticated provider token.
func ProviderIDFrom(c *gin.Context) uuid.UUID {
	claims := ClaimsFrom(c)
	if claims == nil {
		return uuid.Nil
	}
	id, err := claims.ProviderID()
	if err != nil {
		return uuid.Nil
	}
	return id
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
