package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ExpenseHandler struct {
	expenseService service.ExpenseService
}

func NewExpenseHandler(expenseService service.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *ExpenseHandler) RegisterRoutes(router *gin.RouterGroup) {
	expenses := router.Group("/expenses")
	expenses.Use(middleware.RequireAuth())
	{
		expenses.POST("", h.Submit)
		expenses.GET("", h.List)
		expenses.GET("/:id", h.Get)
	}
	router.GET("/currencies", middleware.RequireAuth(), h.Currencies)
}

// Submit files a new expense
// @Summary      Submit expense
// @Description  Converts the amount to the company currency at today's rate, resolves the approval chain, and persists both atomically. Fails without persisting anything when no approver can be determined.
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.SubmitExpenseRequest  true  "Expense Payload"
// @Success      201      {object}  response.Response{data=service.ExpenseResponse}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Failure      503      {object}  response.Response
// @Router       /expenses [post]
func (h *ExpenseHandler) Submit(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	var req service.SubmitExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	expense, err := h.expenseService.Submit(c.Request.Context(), identity, req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, expense))
}

// List returns expenses visible to the caller
// @Summary      List expenses
// @Description  Employees see their own, managers their team's, admins the whole company. Supports status, category, and date filters.
// @Tags         expenses
// @Produce      json
// @Security     BearerAuth
// @Param        status       query     string  false  "PENDING, APPROVED, or REJECTED"
// @Param        category_id  query     string  false  "Category ID"
// @Param        start_date   query     string  false  "YYYY-MM-DD"
// @Param        end_date     query     string  false  "YYYY-MM-DD"
// @Param        page         query     int     false  "Page number"
// @Param        limit        query     int     false  "Page size"
// @Success      200          {object}  response.Response
// @Router       /expenses [get]
func (h *ExpenseHandler) List(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	p := pagination.Parse(c)
	filter := service.ExpenseFilterRequest{
		Status:     c.Query("status"),
		CategoryID: c.Query("category_id"),
		StartDate:  c.Query("start_date"),
		EndDate:    c.Query("end_date"),
		Page:       p.Page,
		Limit:      p.Limit,
	}

	expenses, total, err := h.expenseService.List(c.Request.Context(), identity, filter)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"expenses":   expenses,
		"pagination": pagination.NewMeta(p, total),
	}))
}

// Get returns one expense with its approval chain and history
// @Summary      Get expense
// @Tags         expenses
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Expense ID"
// @Success      200  {object}  response.Response{data=service.ExpenseDetailResponse}
// @Failure      404  {object}  response.Response
// @Router       /expenses/{id} [get]
func (h *ExpenseHandler) Get(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	expense, err := h.expenseService.Get(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, expense))
}

// Currencies lists selectable currencies
// @Summary      List currencies
// @Description  Returns the currencies offered by the submission form, with the company currency first
// @Tags         expenses
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Router       /currencies [get]
func (h *ExpenseHandler) Currencies(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	currencies, companyCurrency, err := h.expenseService.Currencies(c.Request.Context(), identity)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"currencies":       currencies,
		"company_currency": companyCurrency,
	}))
}
