package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	users.Use(middleware.RequireAuth())
	{
		users.GET("", h.List)
		users.GET("/managers", middleware.RequireRole(model.RoleAdmin), h.Managers)
		users.GET("/:id", h.Get)
		users.POST("", middleware.RequireRole(model.RoleAdmin), h.Create)
		users.PUT("/:id", middleware.RequireRole(model.RoleAdmin), h.Update)
		users.DELETE("/:id", middleware.RequireRole(model.RoleAdmin), h.Deactivate)
	}
}

// Create adds a user to the caller's company
// @Summary      Create a new user
// @Description  Creates an employee, manager, or admin in the caller's company with an optional manager assignment
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateUserRequest  true  "Create User Payload"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	user, err := h.userService.Create(c.Request.Context(), identity, req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, user))
}

// List returns the users visible to the caller
// @Summary      List users
// @Description  Admins see the company, managers their reports, employees themselves
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.UserResponse}
// @Router       /users [get]
func (h *UserHandler) List(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	users, err := h.userService.List(c.Request.Context(), identity)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, users))
}

// Managers returns the users assignable as managers or step approvers
// @Summary      List managers
// @Description  Returns the company's active managers and admins, for manager assignment and rule step forms
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.UserResponse}
// @Failure      403  {object}  response.Response
// @Router       /users/managers [get]
func (h *UserHandler) Managers(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	managers, err := h.userService.ListManagers(c.Request.Context(), identity)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, managers))
}

// Get returns one user by id
// @Summary      Get user by ID
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      404  {object}  response.Response
// @Router       /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	user, err := h.userService.Get(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// Update changes a user's profile, role, or manager
// @Summary      Update user
// @Description  Updates name, role, or manager. Manager changes are validated against reporting cycles.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "User ID"
// @Param        payload  body      service.UpdateUserRequest  true  "Update User Payload"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	user, err := h.userService.Update(c.Request.Context(), identity, c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// Deactivate disables a user account
// @Summary      Deactivate user
// @Description  Soft-deletes the account; the user can no longer log in or appear in new approval chains
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /users/{id} [delete]
func (h *UserHandler) Deactivate(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	if err := h.userService.Deactivate(c.Request.Context(), identity, c.Param("id")); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "user deactivated"}))
}
