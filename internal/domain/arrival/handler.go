package arrival

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/edforecast/edforecast/internal/domain/profile"
	"github.com/edforecast/edforecast/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	// Dashboard visuals
	readGroup := api.Group("", auth.RequireRole("admin", "clinician", "operations"))
	readGroup.GET("/cumulative-arrival-profile", h.GetCumulativeProfile)
	readGroup.GET("/hourly-arrival-profile", h.GetHourlyProfile)

	// FHIR operations
	fhirOps := fhirGroup.Group("", auth.RequireRole("admin", "operations"))
	fhirOps.POST("/Organization/:id/$predict-remaining", h.PredictRemaining)
}

func (h *Handler) PredictRemaining(c echo.Context) error {
	orgID := strings.TrimSpace(c.Param("id"))
	if orgID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "organization id is required")
	}
	var in IntraDayInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	est, err := h.svc.EstimateRemaining(c.Request().Context(), orgID, in.ArrivalsSoFar)
	if err != nil {
		return profileError(err)
	}
	return c.JSON(http.StatusOK, est.ToPrediction())
}

func (h *Handler) GetCumulativeProfile(c echo.Context) error {
	out, err := h.svc.CumulativeProfile()
	if err != nil {
		return profileError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetHourlyProfile(c echo.Context) error {
	out, err := h.svc.HourlyProfile()
	if err != nil {
		return profileError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func profileError(err error) *echo.HTTPError {
	return echo.NewHTTPError(profile.StatusCode(err), err.Error()).SetInternal(err)
}
