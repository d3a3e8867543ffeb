package appointment

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

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

type cancelRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments/:appointmentId")
	{
		appointments.GET("", h.GetAppointment)
		appointments.POST("/cancel", h.CancelAppointment)
	}
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("appointmentId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid appointment ID"))
		return
	}

	appt, err := h.service.GetAppointment(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("appointmentId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid appointment ID"))
		return
	}

	// The reason is optional, so a bare POST with no body is valid.
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.RespondWithError(c, apperr.Validation(err.Error()))
		return
	}

	if err := h.service.CancelAppointment(c.Request.Context(), id, req.Reason); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"appointment_id": id})
}
