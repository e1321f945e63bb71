package triage

import (
	"context"
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
	"github.com/edforecast/edforecast/internal/platform/mlclient"
)

func triageSet(rows map[int]map[string]float64) *profile.Set {
	return &profile.Set{Triage: profile.NewTriageProfile(nil, rows)}
}

func afternoonSet() *profile.Set {
	return triageSet(map[int]map[string]float64{
		14: {"cat_1": 0.1, "cat_2": 0.6, "cat_3": 0.3},
	})
}

type mockClassifier struct {
	label string
	err   error
	got   mlclient.FeatureVector
	calls int
}

func (m *mockClassifier) Classify(_ context.Context, fv mlclient.FeatureVector) (string, error) {
	m.calls++
	m.got = fv
	return m.label, m.err
}

func newTestService(set *profile.Set, classifier mlclient.Classifier) *Service {
	enc, _ := mlclient.NewEncoder([]string{"age", "hour_of_day", "gender_F", "gender_M"})
	svc := NewService(profile.NewHolder(set, nil), classifier, enc, time.UTC, zerolog.Nop())
	svc.SetClock(func() time.Time { return time.Date(2024, time.May, 14, 14, 5, 0, 0, time.UTC) })
	return svc
}

func TestLookupCategory_Afternoon(t *testing.T) {
	cat, err := LookupCategory(afternoonSet(), 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cat.Label != "cat_2" {
		t.Errorf("expected cat_2, got %s", cat.Label)
	}
	if cat.String() != "2" {
		t.Errorf("expected reported category \"2\", got %q", cat.String())
	}
}

func TestLookupCategory_Deterministic(t *testing.T) {
	set := afternoonSet()
	first, _ := LookupCategory(set, 14)
	for i := 0; i < 50; i++ {
		got, err := LookupCategory(set, 14)
		if err != nil || got != first {
			t.Fatalf("call %d returned %v, %v; want %v", i, got, err, first)
		}
	}
}

func TestLookupCategory_TieBreaksLexically(t *testing.T) {
	set := triageSet(map[int]map[string]float64{
		3: {"triage_category_4": 0.4, "triage_category_2": 0.4, "triage_category_3": 0.2},
	})
	for i := 0; i < 20; i++ {
		cat, err := LookupCategory(set, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cat.Label != "triage_category_2" || cat.Number != 2 {
			t.Fatalf("expected triage_category_2, got %+v", cat)
		}
	}
}

func TestLookupCategory_Errors(t *testing.T) {
	tests := []struct {
		name string
		set  *profile.Set
		hour int
		want error
	}{
		{"nil set", nil, 14, profile.ErrProfileUnavailable},
		{"no triage table", &profile.Set{}, 14, profile.ErrProfileUnavailable},
		{"negative hour", afternoonSet(), -1, profile.ErrProfileLookup},
		{"hour 24", afternoonSet(), 24, profile.ErrProfileLookup},
		{"empty row", afternoonSet(), 9, profile.ErrProfileLookup},
		{"bad label", triageSet(map[int]map[string]float64{5: {"resus": 0.9, "cat_2": 0.1}}), 5, profile.ErrLabelFormat},
		{"zero suffix", triageSet(map[int]map[string]float64{5: {"cat_0": 0.9}}), 5, profile.ErrLabelFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LookupCategory(tt.set, tt.hour)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestService_AssessRisk(t *testing.T) {
	cls := &mockClassifier{label: "Acute"}
	svc := newTestService(afternoonSet(), cls)

	in := TriageInput{mlclient.TriageFeatures{Age: 40, Gender: "M", HourOfDay: 14}}
	ra, err := svc.AssessRisk(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ra.Triage.Number != 2 || ra.Department != "Acute" {
		t.Errorf("unexpected assessment %+v", ra)
	}
	if ra.ID == "" {
		t.Error("expected an assessment id")
	}
	if cls.got.Values[0] != 40 || cls.got.Values[1] != 14 || cls.got.Values[3] != 1 {
		t.Errorf("unexpected features %v", cls.got.Values)
	}

	res := ra.ToFHIR()
	if res["resourceType"] != "RiskAssessment" || res["status"] != "final" {
		t.Errorf("unexpected resource %v", res)
	}
	preds := res["prediction"].([]map[string]interface{})
	if len(preds) != 2 {
		t.Fatalf("expected 2 predictions, got %d", len(preds))
	}
}

func TestService_AssessRisk_NoPartialResult(t *testing.T) {
	svc := newTestService(afternoonSet(), &mockClassifier{err: errors.New("model offline")})

	ra, err := svc.AssessRisk(context.Background(), TriageInput{mlclient.TriageFeatures{HourOfDay: 14}})
	if ra != nil {
		t.Error("expected no assessment")
	}
	if !errors.Is(err, ErrClassifier) {
		t.Errorf("expected ErrClassifier, got %v", err)
	}
}

func TestService_AssessRisk_ProfileFailureSkipsClassifier(t *testing.T) {
	cls := &mockClassifier{label: "Acute"}
	svc := newTestService(afternoonSet(), cls)

	_, err := svc.AssessRisk(context.Background(), TriageInput{mlclient.TriageFeatures{HourOfDay: 9}})
	if !errors.Is(err, profile.ErrProfileLookup) {
		t.Errorf("expected ErrProfileLookup, got %v", err)
	}
	if cls.got.Columns != nil {
		t.Error("classifier should not be called after a lookup failure")
	}
}

func TestService_AssessRisk_HourOutOfRange(t *testing.T) {
	classifier := &mockClassifier{label: "Fast Track"}
	svc := newTestService(afternoonSet(), classifier)

	_, err := svc.AssessRisk(context.Background(), TriageInput{mlclient.TriageFeatures{HourOfDay: 24}})
	if !errors.Is(err, profile.ErrProfileLookup) {
		t.Fatalf("expected ErrProfileLookup, got %v", err)
	}
	if classifier.calls != 0 {
		t.Errorf("classifier called %d times", classifier.calls)
	}
}

func TestService_AssessRisk_NoClassifier(t *testing.T) {
	svc := NewService(profile.NewHolder(afternoonSet(), nil), nil, nil, time.UTC, zerolog.Nop())

	_, err := svc.AssessRisk(context.Background(), TriageInput{mlclient.TriageFeatures{HourOfDay: 14}})
	if !errors.Is(err, mlclient.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func TestHandler_TriageByHour(t *testing.T) {
	h := NewHandler(newTestService(afternoonSet(), nil))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?hour=14", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.TriageByHour(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got HourPrediction
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PredictedTriageCategory != "2" || got.Label != "cat_2" {
		t.Errorf("unexpected response %+v", got)
	}
}

func TestHandler_TriageByHour_BadHour(t *testing.T) {
	h := NewHandler(newTestService(afternoonSet(), nil))
	e := echo.New()
	for _, q := range []string{"", "?hour=abc", "?hour=24", "?hour=-1"} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/"+q, nil), httptest.NewRecorder())
		if code := statusOf(t, h.TriageByHour(c)); code != http.StatusBadRequest {
			t.Errorf("%q: expected 400, got %d", q, code)
		}
	}
}

func TestHandler_TriageByHour_MissingRow(t *testing.T) {
	h := NewHandler(newTestService(afternoonSet(), nil))
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?hour=9", nil), httptest.NewRecorder())

	if code := statusOf(t, h.TriageByHour(c)); code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", code)
	}
}

func TestHandler_AssessRisk(t *testing.T) {
	h := NewHandler(newTestService(afternoonSet(), &mockClassifier{label: "Fast Track"}))
	e := echo.New()
	body := `{"age":30,"gender":"F","transport":"Walk-in","temp":37,"heart_rate":80,"resp_rate":16,"o2_sat":98,"systolic_bp":120,"diastolic_bp":80,"pain_level":3,"hour_of_day":14}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.AssessRisk(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Predicted ED Department: Fast Track") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Predicted Triage Category: 2") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_AssessRisk_BadHour(t *testing.T) {
	classifier := &mockClassifier{label: "Fast Track"}
	h := NewHandler(newTestService(afternoonSet(), classifier))
	e := echo.New()
	for _, body := range []string{`{"hour_of_day":24}`, `{"hour_of_day":-1}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := e.NewContext(req, httptest.NewRecorder())

		if code := statusOf(t, h.AssessRisk(c)); code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, code)
		}
	}
	if classifier.calls != 0 {
		t.Errorf("classifier called %d times", classifier.calls)
	}
}

func TestHandler_AssessRisk_ClassifierDown(t *testing.T) {
	h := NewHandler(newTestService(afternoonSet(), &mockClassifier{err: errors.New("connection refused")}))
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"hour_of_day":14}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	if code := statusOf(t, h.AssessRisk(c)); code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", code)
	}
}
