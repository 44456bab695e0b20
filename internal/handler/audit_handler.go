package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/audit-logs", middleware.RequireRole(model.RoleAdmin), h.List)
}

// List returns the company's audit trail
// @Summary      List audit logs
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number"
// @Param        limit  query     int  false  "Page size"
// @Success      200    {object}  response.Response
// @Router       /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	p := pagination.Parse(c)
	logs, meta, err := h.auditService.List(c.Request.Context(), identity, p)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"logs":       logs,
		"pagination": meta,
	}))
}
