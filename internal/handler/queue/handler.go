package queue

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/scheduler-api/internal/model"
	"github.com/clinicore/scheduler-api/internal/service/queue"
	apperr "github.com/clinicore/scheduler-api/pkg/errors"
	"github.com/clinicore/scheduler-api/pkg/httputil"
)

type Handler struct {
	service *queue.Service
}

func NewHandler(service *queue.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors/:doctorId/queue")
	{
		doctors.POST("/check-in", h.CheckIn)
		doctors.POST("/call-next", h.CallNext)
		doctors.GET("", h.DailyQueue)
	}
	entries := r.Group("/queue/:entryId")
	{
		entries.POST("/complete", h.Complete)
		entries.POST("/no-show", h.NoShow)
		entries.POST("/leave", h.Leave)
	}
}

func (h *Handler) CheckIn(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid doctor ID"))
		return
	}

	var req model.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperr.Validation(err.Error()))
		return
	}

	entry, err := h.service.CheckIn(c.Request.Context(), doctorID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, entry)
}

func (h *Handler) CallNext(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid doctor ID"))
		return
	}

	entry, err := h.service.CallNext(c.Request.Context(), doctorID, c.Query("date"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, entry)
}

func (h *Handler) DailyQueue(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid doctor ID"))
		return
	}

	var patientID *uuid.UUID
	if raw := c.Query("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondWithError(c, apperr.Validation("invalid patient ID"))
			return
		}
		patientID = &id
	}

	view, err := h.service.DailyQueue(c.Request.Context(), doctorID, c.Query("date"), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}

func (h *Handler) Complete(c *gin.Context) {
	h.finish(c, h.service.Complete)
}

func (h *Handler) NoShow(c *gin.Context) {
	h.finish(c, h.service.NoShow)
}

func (h *Handler) Leave(c *gin.Context) {
	h.finish(c, h.service.Leave)
}

func (h *Handler) finish(c *gin.Context, fn func(ctx context.Context, entryID uuid.UUID) (*model.QueueEntry, error)) {
	entryID, err := uuid.Parse(c.Param("entryId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid queue entry ID"))
		return
	}

	entry, err := fn(c.Request.Context(), entryID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, entry)
}
