package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/soratobu/ctf-arena-api/internal/database"
	apierrors "github.com/soratobu/ctf-arena-api/internal/errors"
	"github.com/soratobu/ctf-arena-api/internal/models"
)

// RequireAdmin gates admin-only routes. Must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		var user models.User
		if err := database.GetDB().First(&user, userID).Error; err != nil {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}
		if user.Role != models.RoleAdmin {
			apierrors.Forbidden(c, "Admin access required")
			c.Abort()
			return
		}

		c.Next()
	}
}
