package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type RuleHandler struct {
	ruleService service.RuleService
}

func NewRuleHandler(ruleService service.RuleService) *RuleHandler {
	return &RuleHandler{ruleService: ruleService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *RuleHandler) RegisterRoutes(router *gin.RouterGroup) {
	rules := router.Group("/approval-rules")
	rules.Use(middleware.RequireAuth())
	{
		rules.GET("", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.List)
		rules.GET("/:id", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.Get)
		rules.POST("", middleware.RequireRole(model.RoleAdmin), h.Create)
		rules.PUT("/:id", middleware.RequireRole(model.RoleAdmin), h.Update)
		rules.DELETE("/:id", middleware.RequireRole(model.RoleAdmin), h.Deactivate)
	}
}

// Create adds an approval rule
// @Summary      Create approval rule
// @Description  Configures who must approve expenses in an amount band. Affects only expenses submitted after the change.
// @Tags         approval-rules
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.RuleRequest  true  "Rule Payload"
// @Success      201      {object}  response.Response{data=service.RuleResponse}
// @Failure      400      {object}  response.Response
// @Router       /approval-rules [post]
func (h *RuleHandler) Create(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	var req service.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rule, err := h.ruleService.Create(c.Request.Context(), identity, req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rule))
}

// List returns the company's approval rules
// @Summary      List approval rules
// @Tags         approval-rules
// @Produce      json
// @Security     BearerAuth
// @Param        include_inactive  query     bool  false  "Include deactivated rules"
// @Success      200               {object}  response.Response{data=[]service.RuleResponse}
// @Router       /approval-rules [get]
func (h *RuleHandler) List(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	includeInactive := c.Query("include_inactive") == "true"
	rules, err := h.ruleService.List(c.Request.Context(), identity, includeInactive)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rules))
}

// Get returns one approval rule
// @Summary      Get approval rule
// @Tags         approval-rules
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Rule ID"
// @Success      200  {object}  response.Response{data=service.RuleResponse}
// @Failure      404  {object}  response.Response
// @Router       /approval-rules/{id} [get]
func (h *RuleHandler) Get(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	rule, err := h.ruleService.Get(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rule))
}

// Update replaces an approval rule's configuration
// @Summary      Update approval rule
// @Description  Replaces the rule parameters and steps. In-flight expenses keep the chain snapshotted at their submission.
// @Tags         approval-rules
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string               true  "Rule ID"
// @Param        payload  body      service.RuleRequest  true  "Rule Payload"
// @Success      200      {object}  response.Response{data=service.RuleResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /approval-rules/{id} [put]
func (h *RuleHandler) Update(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	var req service.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rule, err := h.ruleService.Update(c.Request.Context(), identity, c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rule))
}

// Deactivate disables an approval rule
// @Summary      Deactivate approval rule
// @Tags         approval-rules
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Rule ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /approval-rules/{id} [delete]
func (h *RuleHandler) Deactivate(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	if err := h.ruleService.Deactivate(c.Request.Context(), identity, c.Param("id")); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "approval rule deactivated"}))
}
