package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type CategoryHandler struct {
	categoryService service.CategoryService
}

func NewCategoryHandler(categoryService service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *CategoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	categories := router.Group("/categories")
	categories.Use(middleware.RequireAuth())
	{
		categories.GET("", h.List)
		categories.POST("", middleware.RequireRole(model.RoleAdmin), h.Create)
		categories.PUT("/:id", middleware.RequireRole(model.RoleAdmin), h.Update)
		categories.DELETE("/:id", middleware.RequireRole(model.RoleAdmin), h.Deactivate)
	}
}

// List returns the company's expense categories
// @Summary      List categories
// @Tags         categories
// @Produce      json
// @Security     BearerAuth
// @Param        include_inactive  query     bool  false  "Include deactivated categories (admin only)"
// @Success      200               {object}  response.Response{data=[]service.CategoryResponse}
// @Router       /categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	includeInactive := c.Query("include_inactive") == "true"
	categories, err := h.categoryService.List(c.Request.Context(), identity, includeInactive)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, categories))
}

// Create adds an expense category
// @Summary      Create category
// @Tags         categories
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CategoryRequest  true  "Category Payload"
// @Success      201      {object}  response.Response{data=service.CategoryResponse}
// @Failure      400      {object}  response.Response
// @Router       /categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	var req service.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	category, err := h.categoryService.Create(c.Request.Context(), identity, req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, category))
}

// Update renames a category
// @Summary      Update category
// @Tags         categories
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                   true  "Category ID"
// @Param        payload  body      service.CategoryRequest  true  "Category Payload"
// @Success      200      {object}  response.Response{data=service.CategoryResponse}
// @Failure      404      {object}  response.Response
// @Router       /categories/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	var req service.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	category, err := h.categoryService.Update(c.Request.Context(), identity, c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, category))
}

// Deactivate soft-deletes a category
// @Summary      Deactivate category
// @Description  Historical expenses keep their reference; new submissions can no longer use it
// @Tags         categories
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Category ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /categories/{id} [delete]
func (h *CategoryHandler) Deactivate(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	if err := h.categoryService.Deactivate(c.Request.Context(), identity, c.Param("id")); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "category deactivated"}))
}
