package slot

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/scheduler-api/internal/model"
	"github.com/clinicore/scheduler-api/internal/service/slot"
	apperr "github.com/clinicore/scheduler-api/pkg/errors"
	"github.com/clinicore/scheduler-api/pkg/httputil"
)

type Handler struct {
	service *slot.Service
}

func NewHandler(service *slot.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors/:doctorId")
	{
		doctors.POST("/slots/generate", h.GenerateSlots)
		doctors.GET("/slots", h.GetSlotsForDate)
	}
	slots := r.Group("/slots/:slotId")
	{
		slots.POST("/book", h.BookSlot)
		slots.POST("/block", h.BlockSlot)
		slots.POST("/unblock", h.UnblockSlot)
	}
}

func (h *Handler) GenerateSlots(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid doctor ID"))
		return
	}

	var req model.GenerateSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperr.Validation(err.Error()))
		return
	}

	result, err := h.service.Generate(c.Request.Context(), doctorID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, result)
}

func (h *Handler) GetSlotsForDate(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid doctor ID"))
		return
	}
	date := c.Query("date")
	if date == "" {
		httputil.RespondWithError(c, apperr.Validation("date query parameter is required"))
		return
	}

	view, err := h.service.GetSlotsForDate(c.Request.Context(), doctorID, date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}

func (h *Handler) BookSlot(c *gin.Context) {
	slotID, err := uuid.Parse(c.Param("slotId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid slot ID"))
		return
	}

	var req model.BookSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperr.Validation(err.Error()))
		return
	}

	appt, err := h.service.Book(c.Request.Context(), slotID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, appt)
}

func (h *Handler) BlockSlot(c *gin.Context) {
	slotID, err := uuid.Parse(c.Param("slotId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid slot ID"))
		return
	}

	if err := h.service.Block(c.Request.Context(), slotID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"slot_id": slotID, "status": model.SlotStatusBlocked})
}

func (h *Handler) UnblockSlot(c *gin.Context) {
	slotID, err := uuid.Parse(c.Param("slotId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid slot ID"))
		return
	}

	if err := h.service.Unblock(c.Request.Context(), slotID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"slot_id": slotID, "status": model.SlotStatusAvailable})
}
