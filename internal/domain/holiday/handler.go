package holiday

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/edforecast/edforecast/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	roles := auth.RequireRole("admin", "clinician", "operations")
	fhirGroup.GET("/$holiday-status-today", h.GetToday, roles)
	api.GET("/holidays", h.ListHolidays, roles)
}

func (h *Handler) GetToday(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Today().ToFHIR())
}

// ListHolidays returns the holidays between ?from and ?to (YYYY-MM-DD),
// defaulting to the current calendar year.
func (h *Handler) ListHolidays(c echo.Context) error {
	now := h.svc.now().In(h.svc.loc)
	from := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, h.svc.loc)
	to := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, h.svc.loc)

	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be YYYY-MM-DD")
		}
		from = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to must be YYYY-MM-DD")
		}
		to = t
	}
	if to.Before(from) {
		return echo.NewHTTPError(http.StatusBadRequest, "to must not be before from")
	}

	holidays := h.svc.cal.Between(from, to)
	if holidays == nil {
		holidays = []Holiday{}
	}
	return c.JSON(http.StatusOK, holidays)
}
