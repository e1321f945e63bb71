package forecast

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/edforecast/edforecast/internal/platform/auth"
)

const maxWeeks = 52

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(_ *echo.Group, fhirGroup *echo.Group) {
	fhirRead := fhirGroup.Group("", auth.RequireRole("admin", "clinician", "operations"))
	fhirRead.GET("/Observation/$flu-forecast-today", h.GetToday)
	fhirRead.GET("/MeasureReport/$flu-forecast-weekly", h.GetWeekly)
}

func (h *Handler) GetToday(c echo.Context) error {
	f, err := h.svc.Today(c.Request().Context())
	if err != nil {
		return forecastError(err)
	}
	return c.JSON(http.StatusOK, f.ToFHIR())
}

func (h *Handler) GetWeekly(c echo.Context) error {
	weeks := DefaultWeeks
	if raw := c.QueryParam("weeks"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxWeeks {
			return echo.NewHTTPError(http.StatusBadRequest, "weeks must be an integer between 1 and 52")
		}
		weeks = n
	}
	f, err := h.svc.Weekly(c.Request().Context(), weeks)
	if err != nil {
		return forecastError(err)
	}
	return c.JSON(http.StatusOK, f.ToFHIR())
}

func forecastError(err error) *echo.HTTPError {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNoHistory), errors.Is(err, ErrInsufficientHistory):
		code = http.StatusServiceUnavailable
	case errors.Is(err, ErrForecaster):
		code = http.StatusBadGateway
	}
	return echo.NewHTTPError(code, err.Error()).SetInternal(err)
}
