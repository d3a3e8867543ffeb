package schedule

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/scheduler-api/internal/model"
	"github.com/clinicore/scheduler-api/internal/service/schedule"
	apperr "github.com/clinicore/scheduler-api/pkg/errors"
	"github.com/clinicore/scheduler-api/pkg/httputil"
)

type Handler struct {
	service *schedule.Service
}

func NewHandler(service *schedule.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors/:doctorId")
	{
		doctors.GET("/schedule", h.GetDoctorSchedule)
		doctors.PUT("/schedule", h.SetSchedule)
		doctors.GET("/time-off", h.ListTimeOff)
		doctors.POST("/time-off", h.AddTimeOff)
		doctors.DELETE("/time-off/:timeOffId", h.RemoveTimeOff)
	}
}

func (h *Handler) GetDoctorSchedule(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid doctor ID"))
		return
	}

	view, err := h.service.GetDoctorSchedule(c.Request.Context(), doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}

func (h *Handler) SetSchedule(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid doctor ID"))
		return
	}

	var req model.SetScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperr.Validation(err.Error()))
		return
	}

	if err := h.service.SetSchedule(c.Request.Context(), doctorID, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"doctor_id": doctorID})
}

func (h *Handler) ListTimeOff(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid doctor ID"))
		return
	}

	ranges, err := h.service.ListTimeOff(c.Request.Context(), doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ranges)
}

func (h *Handler) AddTimeOff(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid doctor ID"))
		return
	}

	var req model.AddTimeOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperr.Validation(err.Error()))
		return
	}

	result, err := h.service.AddTimeOff(c.Request.Context(), doctorID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, result)
}

func (h *Handler) RemoveTimeOff(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid doctor ID"))
		return
	}
	timeOffID, err := uuid.Parse(c.Param("timeOffId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid time off ID"))
		return
	}

	if err := h.service.RemoveTimeOff(c.Request.Context(), doctorID, timeOffID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": timeOffID})
}
