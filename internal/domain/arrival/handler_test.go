package arrival

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/edforecast/edforecast/internal/domain/profile"
)

func newTestHandler(set *profile.Set) (*Handler, *echo.Echo) {
	return NewHandler(newTestService(set)), echo.New()
}

func predictContext(e *echo.Echo, orgID, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(orgID)
	return c, rec
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func TestHandler_PredictRemaining(t *testing.T) {
	h, e := newTestHandler(testSet(map[time.Weekday]map[int]float64{time.Tuesday: {9: 0.25}}))
	c, rec := predictContext(e, "logan-hospital", `{"arrivals_so_far":50}`)

	if err := h.PredictRemaining(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["organization_id"] != "logan-hospital" {
		t.Errorf("unexpected organization_id %v", got["organization_id"])
	}
	if got["estimated_total_for_today"] != float64(200) {
		t.Errorf("expected estimated_total_for_today 200, got %v", got["estimated_total_for_today"])
	}
	if got["remaining_arrivals_prediction"] != float64(150) {
		t.Errorf("expected remaining_arrivals_prediction 150, got %v", got["remaining_arrivals_prediction"])
	}
}

func TestHandler_PredictRemaining_ZeroArrivals(t *testing.T) {
	h, e := newTestHandler(testSet(nil))
	c, _ := predictContext(e, "logan-hospital", `{"arrivals_so_far":0}`)

	if code := statusOf(t, h.PredictRemaining(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_PredictRemaining_BadBody(t *testing.T) {
	h, e := newTestHandler(testSet(nil))
	c, _ := predictContext(e, "logan-hospital", `{"arrivals_so_far":"many"}`)

	if code := statusOf(t, h.PredictRemaining(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_PredictRemaining_ZeroFraction(t *testing.T) {
	h, e := newTestHandler(testSet(map[time.Weekday]map[int]float64{time.Tuesday: {9: 0}}))
	c, _ := predictContext(e, "logan-hospital", `{"arrivals_so_far":50}`)

	if code := statusOf(t, h.PredictRemaining(c)); code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", code)
	}
}

func TestHandler_PredictRemaining_SubnormalFraction(t *testing.T) {
	h, e := newTestHandler(testSet(map[time.Weekday]map[int]float64{time.Tuesday: {9: 1e-320}}))
	c, rec := predictContext(e, "logan-hospital", `{"arrivals_so_far":50}`)

	if code := statusOf(t, h.PredictRemaining(c)); code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected no partial body, got %s", rec.Body.String())
	}
}

func TestHandler_PredictRemaining_Unavailable(t *testing.T) {
	svc := NewService(profile.NewHolder(nil, errors.New("missing file")), brisbane, zerolog.Nop())
	h, e := NewHandler(svc), echo.New()
	c, _ := predictContext(e, "logan-hospital", `{"arrivals_so_far":50}`)

	if code := statusOf(t, h.PredictRemaining(c)); code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
}

func TestHandler_GetCumulativeProfile(t *testing.T) {
	h, e := newTestHandler(testSet(nil))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.GetCumulativeProfile(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]map[string]float64
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["Monday"]["23"] != 1 {
		t.Errorf("expected Monday hour 23 = 1, got %v", got["Monday"]["23"])
	}
	if len(got) != 7 {
		t.Errorf("expected 7 weekdays, got %d", len(got))
	}
}

func TestHandler_GetHourlyProfile_NotLoaded(t *testing.T) {
	h, e := newTestHandler(testSet(nil))
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	if code := statusOf(t, h.GetHourlyProfile(c)); code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
}
