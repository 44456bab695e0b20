package handler

import (
	"net/http"
	"strconv"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApprovalHandler struct {
	approvalService service.ApprovalService
}

func NewApprovalHandler(approvalService service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	approvals := router.Group("/approvals")
	approvals.Use(middleware.RequireAuth())
	{
		approvals.GET("/pending", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.Pending)
		approvals.GET("/processed", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.Processed)
		approvals.POST("/:expense_id/decision", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.Decide)
		approvals.GET("/:expense_id/history", h.History)
	}
}

// Pending returns the expenses waiting on the caller
// @Summary      List pending approvals
// @Description  Computed from the chain snapshots: sequential chains surface only when it is the caller's turn, percentage and specific-approver chains as soon as the caller holds an undecided step.
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.PendingApprovalResponse}
// @Router       /approvals/pending [get]
func (h *ApprovalHandler) Pending(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	pending, err := h.approvalService.Pending(c.Request.Context(), identity)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pending))
}

// Processed returns the caller's past decisions
// @Summary      List processed approvals
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Maximum rows (default 50)"
// @Success      200    {object}  response.Response{data=[]service.ApprovalActionResponse}
// @Router       /approvals/processed [get]
func (h *ApprovalHandler) Processed(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	processed, err := h.approvalService.Processed(c.Request.Context(), identity, limit)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, processed))
}

// Decide records an approval or rejection
// @Summary      Decide on expense
// @Description  Records the decision and advances the workflow. A rejection finalizes immediately; approvals finalize when the snapshotted rule's condition is met or the chain is exhausted.
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        expense_id  path      string                 true  "Expense ID"
// @Param        payload     body      service.DecideRequest  true  "Decision Payload"
// @Success      200         {object}  response.Response{data=service.DecideResponse}
// @Failure      403         {object}  response.Response
// @Failure      409         {object}  response.Response
// @Router       /approvals/{expense_id}/decision [post]
func (h *ApprovalHandler) Decide(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	var req service.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.approvalService.Decide(c.Request.Context(), identity, c.Param("expense_id"), req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// History returns the decision log of one expense
// @Summary      Get approval history
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Param        expense_id  path      string  true  "Expense ID"
// @Success      200         {object}  response.Response{data=[]service.ApprovalActionResponse}
// @Failure      404         {object}  response.Response
// @Router       /approvals/{expense_id}/history [get]
func (h *ApprovalHandler) History(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	history, err := h.approvalService.History(c.Request.Context(), identity, c.Param("expense_id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}
