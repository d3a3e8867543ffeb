package calendar

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/scheduler-api/internal/service/calendar"
	apperr "github.com/clinicore/scheduler-api/pkg/errors"
	"github.com/clinicore/scheduler-api/pkg/httputil"
)

type Handler struct {
	service *calendar.Service
}

func NewHandler(service *calendar.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/doctors/:doctorId/calendar", h.MonthSummary)
}

func (h *Handler) MonthSummary(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid doctor ID"))
		return
	}
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid year"))
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid month"))
		return
	}

	days, err := h.service.MonthSummary(c.Request.Context(), doctorID, year, month)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"year": year, "month": month, "days": days})
}
