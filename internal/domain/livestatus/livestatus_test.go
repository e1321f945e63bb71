package livestatus

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
	"golang.org/x/net/html"
)

const loganPage = `<!doctype html>
<html><body>
<section>
  <h2>Patients <span>currently waiting</span> for treatment</h2>
  <div class="icon"></div>
  <p>There are 17 patients waiting</p>
</section>
<section>
  <h2>Patients currently in ED</h2>
  <p>Total: 64 (updated 10:45)</p>
</section>
</body></html>`

func parse(t *testing.T, page string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestParseCounts(t *testing.T) {
	got, err := ParseCounts(parse(t, loganPage))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Waiting != 17 || got.InED != 64 {
		t.Errorf("expected 17 waiting and 64 in ED, got %+v", got)
	}
}

func TestParseCounts_NoNumberIsZero(t *testing.T) {
	page := `<h2>currently waiting</h2><p>Data unavailable</p><h2>currently in ED</h2><p>12</p>`
	got, err := ParseCounts(parse(t, page))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Waiting != 0 || got.InED != 12 {
		t.Errorf("unexpected counts %+v", got)
	}
}

func TestParseCounts_MissingHeading(t *testing.T) {
	pages := []string{
		`<h2>currently in ED</h2><p>12</p>`,
		`<h2>currently waiting</h2><p>3</p>`,
		`<section><h2>currently waiting</h2><div>3</div></section><section><h2>currently in ED</h2><p>12</p></section>`,
	}
	for _, page := range pages {
		if _, err := ParseCounts(parse(t, page)); !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable for %q, got %v", page, err)
		}
	}
}

func TestExtractNumber(t *testing.T) {
	tests := map[string]int{
		"17 patients":       17,
		"Total: 64 (10:45)": 64,
		"none":              0,
		"":                  0,
	}
	for in, want := range tests {
		if got := ExtractNumber(in); got != want {
			t.Errorf("ExtractNumber(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestOrganizationDisplay(t *testing.T) {
	if got := OrganizationDisplay("logan-hospital"); got != "Logan Hospital" {
		t.Errorf("expected Logan Hospital, got %q", got)
	}
	if got := OrganizationDisplay("princess-alexandra-hospital"); got != "Princess Alexandra Hospital" {
		t.Errorf("unexpected display %q", got)
	}
}

func TestValidOrganizationID(t *testing.T) {
	for _, id := range []string{"logan-hospital", "qeii", "hospital-2"} {
		if !ValidOrganizationID(id) {
			t.Errorf("expected %q valid", id)
		}
	}
	for _, id := range []string{"", "../admin", "Logan Hospital", "logan--hospital", "-logan"} {
		if ValidOrganizationID(id) {
			t.Errorf("expected %q invalid", id)
		}
	}
}

func TestPageScraper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/facility/logan-hospital" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(loganPage))
	}))
	defer srv.Close()

	s := NewPageScraper(srv.URL+"/", time.Second)
	got, err := s.Counts(context.Background(), "logan-hospital")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Waiting != 17 || got.InED != 64 {
		t.Errorf("unexpected counts %+v", got)
	}

	if _, err := s.Counts(context.Background(), "redcliffe-hospital"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for 404, got %v", err)
	}
	if _, err := s.Counts(context.Background(), "../x"); !errors.Is(err, ErrInvalidOrganization) {
		t.Errorf("expected ErrInvalidOrganization, got %v", err)
	}
}

type mockSource struct {
	counts Counts
	err    error
	calls  int
}

func (m *mockSource) Counts(context.Context, string) (Counts, error) {
	m.calls++
	return m.counts, m.err
}

type memStore struct {
	data   map[string][]byte
	ttl    time.Duration
	getErr error
}

func (m *memStore) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	if m.getErr != nil {
		return false, m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.ttl = ttl
	return nil
}

func TestCachedSource(t *testing.T) {
	src := &mockSource{counts: Counts{Waiting: 5, InED: 30}}
	store := &memStore{data: map[string][]byte{}}
	c := NewCachedSource(src, store, time.Minute, zerolog.Nop())

	for i := 0; i < 3; i++ {
		got, err := c.Counts(context.Background(), "logan-hospital")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != src.counts {
			t.Errorf("unexpected counts %+v", got)
		}
	}
	if src.calls != 1 {
		t.Errorf("expected 1 source call, got %d", src.calls)
	}
	if store.ttl != time.Minute {
		t.Errorf("expected ttl 1m, got %s", store.ttl)
	}
	if _, ok := store.data["livestatus:logan-hospital"]; !ok {
		t.Error("expected cache key livestatus:logan-hospital")
	}
}

func TestCachedSource_CacheErrorFallsThrough(t *testing.T) {
	src := &mockSource{counts: Counts{Waiting: 1, InED: 2}}
	store := &memStore{data: map[string][]byte{}, getErr: errors.New("connection reset")}
	c := NewCachedSource(src, store, time.Minute, zerolog.Nop())

	got, err := c.Counts(context.Background(), "logan-hospital")
	if err != nil || got.InED != 2 {
		t.Errorf("expected source result, got %+v %v", got, err)
	}
}

func TestCachedSource_SourceErrorNotCached(t *testing.T) {
	src := &mockSource{err: ErrUnavailable}
	store := &memStore{data: map[string][]byte{}}
	c := NewCachedSource(src, store, time.Minute, zerolog.Nop())

	if _, err := c.Counts(context.Background(), "logan-hospital"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if len(store.data) != 0 {
		t.Error("expected nothing cached")
	}
}

func newTestHandler(src Source) *Handler {
	svc := NewService(src, "http://openhospitals.health.qld.gov.au", zerolog.Nop())
	svc.SetClock(func() time.Time { return time.Date(2024, 5, 14, 10, 45, 0, 0, time.UTC) })
	return NewHandler(svc)
}

func liveContext(id string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func TestHandler_GetLiveStatus(t *testing.T) {
	h := newTestHandler(&mockSource{counts: Counts{Waiting: 17, InED: 64}})
	c, rec := liveContext("logan-hospital")
	if err := h.GetLiveStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got struct {
		ResourceType          string `json:"resourceType"`
		Measure               string `json:"measure"`
		Date                  string `json:"date"`
		ReportingOrganization struct {
			Display string `json:"display"`
		} `json:"reportingOrganization"`
		Group []struct {
			Code struct {
				Text string `json:"text"`
			} `json:"code"`
			MeasureScore struct {
				Value float64 `json:"value"`
			} `json:"measureScore"`
		} `json:"group"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ResourceType != "MeasureReport" || got.ReportingOrganization.Display != "Logan Hospital" {
		t.Errorf("unexpected report %+v", got)
	}
	if got.Measure != "http://openhospitals.health.qld.gov.au/Measure/live-status/logan-hospital" {
		t.Errorf("unexpected measure %q", got.Measure)
	}
	if got.Date != "2024-05-14T10:45:00Z" {
		t.Errorf("unexpected date %q", got.Date)
	}
	if len(got.Group) != 2 || got.Group[0].MeasureScore.Value != 17 || got.Group[1].MeasureScore.Value != 64 {
		t.Errorf("unexpected groups %+v", got.Group)
	}
	if got.Group[0].Code.Text != "Patients Waiting for Treatment" {
		t.Errorf("unexpected first group %q", got.Group[0].Code.Text)
	}
}

func TestHandler_GetLiveStatus_Errors(t *testing.T) {
	var he *echo.HTTPError

	h := newTestHandler(&mockSource{err: ErrUnavailable})
	c, _ := liveContext("logan-hospital")
	if err := h.GetLiveStatus(c); !errors.As(err, &he) || he.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %v", err)
	}

	src := &mockSource{}
	h = newTestHandler(src)
	c, _ = liveContext("Logan Hospital")
	if err := h.GetLiveStatus(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
	if src.calls != 0 {
		t.Error("expected no fetch for an invalid id")
	}
}
