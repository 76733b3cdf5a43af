package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/ctxutil"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/services"
)

type AuthMiddleware struct {
	log      *logger.Logger
	verifier services.IdentityVerifier
}

func NewAuthMiddleware(log *logger.Logger, verifier services.IdentityVerifier) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), verifier: verifier}
}

// RequireAuth rejects the request before any handler runs unless the token
// resolves to a user. The socket endpoint sits behind it too.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}
		id, err := am.verifier.Verify(c.Request.Context(), token)
		if err != nil || id == nil || id.UserID <= 0 {
			am.log.Debug("token rejected", "path", c.Request.URL.Path, "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "invalid token", "code": "unauthorized"},
			})
			return
		}
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
			UserID:      id.UserID,
			DisplayName: id.DisplayName,
			SessionID:   uuid.NewString(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func ExtractToken(c *gin.Context) string {
	if q := strings.TrimSpace(c.Query("token")); q != "" {
		return q
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
