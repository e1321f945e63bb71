package livestatus

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/edforecast/edforecast/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(_ *echo.Group, fhirGroup *echo.Group) {
	read := fhirGroup.Group("", auth.RequireRole("admin", "clinician", "operations"))
	read.GET("/Organization/:id/$live-status", h.GetLiveStatus)
}

func (h *Handler) GetLiveStatus(c echo.Context) error {
	st, err := h.svc.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrInvalidOrganization) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, "could not fetch live data: "+err.Error()).SetInternal(err)
	}
	return c.JSON(http.StatusOK, st.ToFHIR())
}
