package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-docs/internal/middleware"
	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-docs/pkg/errors"
	"github.com/noah-isme/sma-enrollment-docs/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

// actorID returns the authenticated user or writes a 401 and returns false.
func actorID(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return claims.UserID, true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return false
	}
	return true
}
