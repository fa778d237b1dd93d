package playbook

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/retainly/retention-api/internal/handler"
	"github.com/retainly/retention-api/internal/middleware"
	"github.com/retainly/retention-api/internal/model"
	playbookService "github.com/retainly/retention-api/internal/service/playbook"
	apperrors "github.com/retainly/retention-api/pkg/errors"
)

type Handler struct {
	svc    *playbookService.Service
	engine *playbookService.Engine
}

func NewHandler(svc *playbookService.Service, engine *playbookService.Engine) *Handler {
	return &Handler{svc: svc, engine: engine}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	playbooks := r.Group("/playbooks")
	{
		playbooks.POST("", h.CreatePlaybook)
		playbooks.GET("", h.ListPlaybooks)
		playbooks.GET("/:id", h.GetPlaybook)
		playbooks.PUT("/:id", h.UpdatePlaybook)
		playbooks.DELETE("/:id", h.DeletePlaybook)

		// Sweep the whole customer base against active playbooks now
		// instead of waiting for the worker's next pass.
		playbooks.POST("/run", h.RunEngine)
	}
}

func (h *Handler) CreatePlaybook(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing account"))
		return
	}

	var req model.CreatePlaybookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	pb, err := h.svc.Create(c.Request.Context(), ownerID, &req)
	if err != nil {
		c.JSON(statusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(pb))
}

func (h *Handler) GetPlaybook(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing account"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid playbook ID"))
		return
	}

	pb, err := h.svc.Get(c.Request.Context(), ownerID, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			c.JSON(http.StatusNotFound, handler.NewErrorResponse("playbook not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(pb))
}

func (h *Handler) ListPlaybooks(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing account"))
		return
	}

	playbooks, err := h.svc.List(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(playbooks))
}

func (h *Handler) UpdatePlaybook(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing account"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid playbook ID"))
		return
	}

	var req model.CreatePlaybookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	pb, err := h.svc.Update(c.Request.Context(), ownerID, id, &req)
	if err != nil {
		c.JSON(statusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(pb))
}

func (h *Handler) DeletePlaybook(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing account"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid playbook ID"))
		return
	}

	if err := h.svc.Delete(c.Request.Context(), ownerID, id); err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) RunEngine(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing account"))
		return
	}

	summary, err := h.engine.Run(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}

func statusFor(err error) int {
	switch {
	case apperrors.IsNotFound(err):
		return http.StatusNotFound
	case apperrors.IsConflict(err):
		return http.StatusConflict
	default:
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == apperrors.ErrBadRequest {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}
