package handler

import (
	"net/http"

	"backend/internal/external"
	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService service.AuthService
	countries   external.CountryClient
}

func NewAuthHandler(authService service.AuthService, countries external.CountryClient) *AuthHandler {
	return &AuthHandler{authService: authService, countries: countries}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.GET("/me", middleware.RequireAuth(), h.Me)
		auth.POST("/change-password", middleware.RequireAuth(), h.ChangePassword)
	}
	router.GET("/countries", h.Countries)
}

// Register creates a company and its first admin
// @Summary      Register a company
// @Description  Creates the company, its admin account, and the default expense categories. The company currency is derived from the chosen country.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegisterRequest  true  "Registration Payload"
// @Success      201      {object}  response.Response{data=service.AuthResponse}
// @Failure      400      {object}  response.Response
// @Failure      503      {object}  response.Response
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// Login authenticates a user
// @Summary      Login user
// @Description  Verifies credentials and returns a JWT with the user and company profile
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Login Payload"
// @Success      200      {object}  response.Response{data=service.AuthResponse}
// @Failure      401      {object}  response.Response
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// Me returns the authenticated user's profile
// @Summary      Get current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	user, company, err := h.authService.Me(c.Request.Context(), identity)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"user":    user,
		"company": company,
	}))
}

// ChangePassword rotates the caller's password
// @Summary      Change password
// @Description  Verifies the current password and replaces it with the new one
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.ChangePasswordRequest  true  "Change Password Payload"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Router       /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	var req service.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), identity, req); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "password changed"}))
}

// Countries lists countries with their currencies
// @Summary      List countries
// @Description  Returns country names and currencies for the registration form
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]external.Country}
// @Failure      503  {object}  response.Response
// @Router       /countries [get]
func (h *AuthHandler) Countries(c *gin.Context) {
	countries, err := h.countries.ListCountries(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, response.Error(http.StatusServiceUnavailable, "countries service is unavailable"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, countries))
}
