package delivery

import (
	"net/http"
	"strings"

	"taskflow-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

// ContextUserID is the gin context key holding the authenticated owner id
const ContextUserID = "userID"

// AuthMiddleware resolves the bearer access token to an owner and stores the owner id
// under ContextUserID. Requests without a valid token stop here with 401.
func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bearer token required", "code": "UNAUTHORIZED"})
			return
		}

		user, err := authUsecase.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token", "code": "UNAUTHORIZED"})
			return
		}

		c.Set("user", user)
		c.Set(ContextUserID, user.ID)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
