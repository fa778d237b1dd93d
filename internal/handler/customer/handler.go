package customer

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/retainly/retention-api/internal/handler"
	"github.com/retainly/retention-api/internal/middleware"
	"github.com/retainly/retention-api/internal/model"
	customerService "github.com/retainly/retention-api/internal/service/customer"
	apperrors "github.com/retainly/retention-api/pkg/errors"
)

type Handler struct {
	svc *customerService.Service
}

func NewHandler(svc *customerService.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	customers := r.Group("/customers")
	{
		customers.POST("", h.CreateCustomer)
		customers.GET("", h.ListCustomers)
		customers.GET("/:id", h.GetCustomer)
		customers.PUT("/:id", h.UpdateCustomer)
		customers.DELETE("/:id", h.DeleteCustomer)

		customers.POST("/import", h.ImportCustomers)
		customers.POST("/score", h.ScoreAll)
		customers.POST("/:id/score", h.ScoreCustomer)
	}
}

func (h *Handler) CreateCustomer(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing account"))
		return
	}

	var req model.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	customer, err := h.svc.Create(c.Request.Context(), ownerID, &req)
	if err != nil {
		if apperrors.IsConflict(err) {
			c.JSON(http.StatusConflict, handler.NewErrorResponse("customer with this email already exists"))
			return
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(customer))
}

func (h *Handler) GetCustomer(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing account"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid customer ID"))
		return
	}

	customer, err := h.svc.Get(c.Request.Context(), ownerID, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			c.JSON(http.StatusNotFound, handler.NewErrorResponse("customer not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(customer))
}

func (h *Handler) ListCustomers(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing account"))
		return
	}

	filters := &model.CustomerFilters{
		RiskLevel: c.Query("risk_level"),
		Plan:      c.Query("plan"),
		Limit:     intQuery(c, "limit", 100),
		Offset:    intQuery(c, "offset", 0),
	}

	customers, err := h.svc.List(c.Request.Context(), ownerID, filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(customers))
}

func (h *Handler) UpdateCustomer(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing account"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid customer ID"))
		return
	}

	var req model.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	customer, err := h.svc.Get(c.Request.Context(), ownerID, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			c.JSON(http.StatusNotFound, handler.NewErrorResponse("customer not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	applyRequest(customer, &req)

	if err := h.svc.Update(c.Request.Context(), customer); err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(customer))
}

func (h *Handler) DeleteCustomer(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing account"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid customer ID"))
		return
	}

	if err := h.svc.Delete(c.Request.Context(), ownerID, id); err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

// ImportCustomers ingests a CSV file uploaded as multipart form field "file".
// Rows upsert by email; bad rows are reported, not fatal.
func (h *Handler) ImportCustomers(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing account"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("missing file upload"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("failed to read upload"))
		return
	}
	defer file.Close()

	summary, err := h.svc.ImportCSV(c.Request.Context(), ownerID, file)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}

func (h *Handler) ScoreCustomer(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing account"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid customer ID"))
		return
	}

	customer, err := h.svc.Score(c.Request.Context(), ownerID, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			c.JSON(http.StatusNotFound, handler.NewErrorResponse("customer not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(customer))
}

func (h *Handler) ScoreAll(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing account"))
		return
	}

	summary, err := h.svc.ScoreAll(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}

func applyRequest(customer *model.Customer, req *model.CreateCustomerRequest) {
	customer.Email = req.Email
	customer.Name = req.Name
	customer.Plan = req.Plan
	customer.UserStage = req.UserStage
	customer.MonthlyRevenue = req.MonthlyRevenue
	if req.PaymentStatus != "" {
		customer.PaymentStatus = model.PaymentStatus(req.PaymentStatus)
	}
	if req.SignupAt != nil {
		customer.SignupAt = *req.SignupAt
	}
	customer.LastLoginAt = req.LastLoginAt
	customer.LoginsLast30Days = req.LoginsLast30Days
	customer.ActiveFeatures = req.ActiveFeatures
	customer.TicketsOpened = req.TicketsOpened
	customer.NPSScore = req.NPSScore
	customer.UsageMinutes = req.UsageMinutes
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
