package handler

import (
	"net/http"

	"backend/internal/service"
	"backend/pkg/apperror"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// fail maps a service error onto the standard error envelope.
func fail(c *gin.Context, err error) {
	appErr := apperror.From(err)
	c.JSON(appErr.HTTPStatus, response.FromAppError(appErr))
}

// actor rebuilds the caller identity the auth middleware stored on the
// context, or aborts with 401. Routes behind the middleware always
// succeed here.
func actor(c *gin.Context) (service.Identity, bool) {
	userID, okUser := c.Get("userID")
	companyID, okCompany := c.Get("companyID")
	role, okRole := c.Get("userRole")

	uid, okUID := userID.(uuid.UUID)
	cid, okCID := companyID.(uuid.UUID)
	roleStr, okRoleStr := role.(string)
	if !okUser || !okCompany || !okRole || !okUID || !okCID || !okRoleStr {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
		return service.Identity{}, false
	}

	return service.Identity{UserID: uid, CompanyID: cid, Role: roleStr}, true
}
