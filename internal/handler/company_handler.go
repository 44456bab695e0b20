package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type CompanyHandler struct {
	companyService service.CompanyService
}

func NewCompanyHandler(companyService service.CompanyService) *CompanyHandler {
	return &CompanyHandler{companyService: companyService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *CompanyHandler) RegisterRoutes(router *gin.RouterGroup) {
	company := router.Group("/company")
	company.Use(middleware.RequireAuth())
	{
		company.GET("", h.Get)
		company.PUT("", middleware.RequireRole(model.RoleAdmin), h.Update)
	}
}

// Get returns the caller's company with headcount by role
// @Summary      Get company
// @Tags         company
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.CompanyDetailResponse}
// @Router       /company [get]
func (h *CompanyHandler) Get(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	company, err := h.companyService.Get(c.Request.Context(), identity)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, company))
}

// Update changes the company name or country
// @Summary      Update company
// @Description  Updates name and country. The currency is fixed at registration and cannot change.
// @Tags         company
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.UpdateCompanyRequest  true  "Update Company Payload"
// @Success      200      {object}  response.Response{data=service.CompanyResponse}
// @Failure      403      {object}  response.Response
// @Router       /company [put]
func (h *CompanyHandler) Update(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	var req service.UpdateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	company, err := h.companyService.Update(c.Request.Context(), identity, req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, company))
}
