package action

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/retainly/retention-api/internal/handler"
	"github.com/retainly/retention-api/internal/middleware"
	"github.com/retainly/retention-api/internal/model"
	"github.com/retainly/retention-api/internal/repository"
	"github.com/retainly/retention-api/internal/service/audit"
)

// Handler exposes read-only views over the action queue and the execution
// log. Actions are created by the playbook engine, never through the API.
type Handler struct {
	queue   repository.QueuedActionRepository
	auditor *audit.Service
}

func NewHandler(queue repository.QueuedActionRepository, auditor *audit.Service) *Handler {
	return &Handler{queue: queue, auditor: auditor}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	actions := r.Group("/actions")
	{
		actions.GET("/queue", h.ListQueued)
		actions.GET("/log", h.ListLog)
	}
}

func (h *Handler) ListQueued(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing account"))
		return
	}

	status := model.ActionStatus(c.DefaultQuery("status", string(model.ActionStatusPending)))
	limit := intQuery(c, "limit", 100)

	actions, err := h.queue.List(c.Request.Context(), ownerID, status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(actions))
}

func (h *Handler) ListLog(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing account"))
		return
	}

	filters := &model.ActionLogFilters{
		Status: c.Query("status"),
		Limit:  intQuery(c, "limit", 100),
		Offset: intQuery(c, "offset", 0),
	}
	if raw := c.Query("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid customer ID"))
			return
		}
		filters.CustomerID = &id
	}
	if raw := c.Query("playbook_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid playbook ID"))
			return
		}
		filters.PlaybookID = &id
	}

	entries, err := h.auditor.List(c.Request.Context(), ownerID, filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entries))
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
