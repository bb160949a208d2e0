package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nextmessage/backend/internal/auth"
	"github.com/nextmessage/backend/internal/models"
)

const (
	ContextUID      = "uid"
	ContextIdentity = "identity"
)

type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// SeenRecorder is told about every authenticated request.
type SeenRecorder interface {
	TouchLastSeen(ctx context.Context, uid string) error
}

// AuthMiddleware requires a valid bearer token and stores the caller's
// identity on the context. seen may be nil.
func AuthMiddleware(validator TokenValidator, seen SeenRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims, err := validator.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		identity := claims.Identity()
		c.Set(ContextUID, identity.UID)
		c.Set(ContextIdentity, identity)

		if seen != nil {
			if err := seen.TouchLastSeen(c.Request.Context(), identity.UID); err != nil {
				slog.Warn("failed to record last seen", "uid", identity.UID, "error", err)
			}
		}

		c.Next()
	}
}

// CurrentUID returns the authenticated uid, or "" outside AuthMiddleware.
func CurrentUID(c *gin.Context) string {
	return c.GetString(ContextUID)
}

func CurrentIdentity(c *gin.Context) models.Identity {
	v, _ := c.Get(ContextIdentity)
	id, _ := v.(models.Identity)
	return id
}
