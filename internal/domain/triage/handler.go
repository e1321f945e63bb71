package triage

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/edforecast/edforecast/internal/domain/profile"
	"github.com/edforecast/edforecast/internal/platform/auth"
	"github.com/edforecast/edforecast/internal/platform/mlclient"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(_ *echo.Group, fhirGroup *echo.Group) {
	fhirOps := fhirGroup.Group("", auth.RequireRole("admin", "clinician"))
	fhirOps.GET("/Patient/$triage-by-hour", h.TriageByHour)
	fhirOps.POST("/Patient/$assess-risk", h.AssessRisk)
}

func (h *Handler) TriageByHour(c echo.Context) error {
	hour, err := parseHour(c.QueryParam("hour"))
	if err != nil {
		return err
	}
	cat, err := h.svc.TriageByHour(hour)
	if err != nil {
		return triageError(err)
	}
	return c.JSON(http.StatusOK, HourPrediction{
		HourOfDay:               hour,
		Label:                   cat.Label,
		PredictedTriageCategory: cat.String(),
	})
}

func (h *Handler) AssessRisk(c echo.Context) error {
	var in TriageInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.HourOfDay < 0 || in.HourOfDay >= profile.HoursPerDay {
		return echo.NewHTTPError(http.StatusBadRequest, "hour_of_day must be between 0 and 23")
	}
	ra, err := h.svc.AssessRisk(c.Request().Context(), in)
	if err != nil {
		return triageError(err)
	}
	return c.JSON(http.StatusOK, ra.ToFHIR())
}

func parseHour(raw string) (int, error) {
	if raw == "" {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "hour is required")
	}
	hour, err := strconv.Atoi(raw)
	if err != nil || hour < 0 || hour >= profile.HoursPerDay {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "hour must be an integer between 0 and 23")
	}
	return hour, nil
}

func triageError(err error) *echo.HTTPError {
	code := profile.StatusCode(err)
	switch {
	case errors.Is(err, mlclient.ErrNotConfigured):
		code = http.StatusServiceUnavailable
	case errors.Is(err, ErrClassifier):
		code = http.StatusBadGateway
	}
	return echo.NewHTTPError(code, err.Error()).SetInternal(err)
}
