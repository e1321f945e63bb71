package arrival

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/edforecast/edforecast/internal/domain/profile"
	"github.com/edforecast/edforecast/internal/platform/publish"
)

type mockPublisher struct {
	subjects []publish.Subject
	payloads []interface{}
	err      error
}

func (m *mockPublisher) Publish(_ context.Context, subject publish.Subject, payload interface{}) error {
	m.subjects = append(m.subjects, subject)
	m.payloads = append(m.payloads, payload)
	return m.err
}

func (m *mockPublisher) Backend() string { return "mock" }
func (m *mockPublisher) Close() error    { return nil }

var brisbane = time.FixedZone("AEST", 10*60*60)

func newTestService(set *profile.Set) *Service {
	svc := NewService(profile.NewHolder(set, nil), brisbane, zerolog.Nop())
	// 00:30 UTC is 10:30 on Tuesday in Brisbane.
	svc.SetClock(func() time.Time { return time.Date(2024, time.May, 14, 0, 30, 0, 0, time.UTC) })
	return svc
}

func TestService_EstimateRemaining_UsesProfileTimeZone(t *testing.T) {
	svc := newTestService(testSet(map[time.Weekday]map[int]float64{time.Tuesday: {9: 0.25}}))

	est, err := svc.EstimateRemaining(context.Background(), "logan-hospital", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.OrganizationID != "logan-hospital" {
		t.Errorf("unexpected organization %q", est.OrganizationID)
	}
	if est.RoundedTotal() != 200 || est.RoundedRemaining() != 150 {
		t.Errorf("expected 200/150, got %d/%d", est.RoundedTotal(), est.RoundedRemaining())
	}
}

func TestService_EstimateRemaining_Unavailable(t *testing.T) {
	svc := NewService(profile.NewHolder(nil, fmt.Errorf("open arrival_profile.csv: no such file")), brisbane, zerolog.Nop())

	_, err := svc.EstimateRemaining(context.Background(), "logan-hospital", 50)
	if !errors.Is(err, profile.ErrProfileUnavailable) {
		t.Fatalf("expected ErrProfileUnavailable, got %v", err)
	}
}

func TestService_EstimateRemaining_RequiresOrganization(t *testing.T) {
	svc := newTestService(testSet(nil))

	_, err := svc.EstimateRemaining(context.Background(), "", 50)
	if !errors.Is(err, profile.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestService_EstimateRemaining_Publishes(t *testing.T) {
	svc := newTestService(testSet(map[time.Weekday]map[int]float64{time.Tuesday: {9: 0.25}}))
	pub := &mockPublisher{}
	svc.SetPublisher(pub)

	if _, err := svc.EstimateRemaining(context.Background(), "logan-hospital", 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.subjects) != 1 {
		t.Fatalf("expected 1 publication, got %d", len(pub.subjects))
	}
	want := publish.Subject{"ed", "logan-hospital", "remaining"}
	if fmt.Sprint(pub.subjects[0]) != fmt.Sprint(want) {
		t.Errorf("expected subject %v, got %v", want, pub.subjects[0])
	}
	p, ok := pub.payloads[0].(Prediction)
	if !ok {
		t.Fatalf("expected Prediction payload, got %T", pub.payloads[0])
	}
	if p.RemainingArrivalsPrediction != 150 {
		t.Errorf("expected remaining 150, got %d", p.RemainingArrivalsPrediction)
	}
}

func TestService_EstimateRemaining_PublishFailureIsNotFatal(t *testing.T) {
	svc := newTestService(testSet(nil))
	svc.SetPublisher(&mockPublisher{err: errors.New("broker down")})

	if _, err := svc.EstimateRemaining(context.Background(), "logan-hospital", 50); err != nil {
		t.Fatalf("publish failure should not fail the estimate: %v", err)
	}
}

func TestService_EstimateRemaining_NoPublishOnFailure(t *testing.T) {
	svc := newTestService(testSet(nil))
	pub := &mockPublisher{}
	svc.SetPublisher(pub)

	if _, err := svc.EstimateRemaining(context.Background(), "logan-hospital", 0); err == nil {
		t.Fatal("expected error")
	}
	if len(pub.subjects) != 0 {
		t.Errorf("expected no publication, got %d", len(pub.subjects))
	}
}

func TestService_HourlyProfile_Optional(t *testing.T) {
	svc := newTestService(testSet(nil))

	if _, err := svc.CumulativeProfile(); err != nil {
		t.Fatalf("cumulative profile: %v", err)
	}
	_, err := svc.HourlyProfile()
	if !errors.Is(err, profile.ErrProfileUnavailable) {
		t.Fatalf("expected ErrProfileUnavailable, got %v", err)
	}
}
