package arrival

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/edforecast/edforecast/internal/domain/profile"
)

// tuesday returns 14 May 2024, a Tuesday, at hour:00 UTC.
func tuesday(hour int) time.Time {
	return time.Date(2024, time.May, 14, hour, 0, 0, 0, time.UTC)
}

func cumulativeGrid(overrides map[time.Weekday]map[int]float64) *profile.Grid {
	cols := make(map[time.Weekday][]float64, 7)
	for _, d := range profile.Weekdays {
		col := make([]float64, profile.HoursPerDay)
		for h := range col {
			col[h] = float64(h+1) / profile.HoursPerDay
		}
		for h, v := range overrides[d] {
			col[h] = v
		}
		cols[d] = col
	}
	return profile.NewGrid(cols)
}

func testSet(overrides map[time.Weekday]map[int]float64) *profile.Set {
	return &profile.Set{Arrival: cumulativeGrid(overrides)}
}

func TestEstimateDay_TuesdayMorning(t *testing.T) {
	set := testSet(map[time.Weekday]map[int]float64{time.Tuesday: {9: 0.25}})

	est, err := EstimateDay(set, 50, tuesday(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.LookupHour != 9 {
		t.Errorf("expected lookup hour 9, got %d", est.LookupHour)
	}
	if est.Weekday != time.Tuesday {
		t.Errorf("expected Tuesday, got %s", est.Weekday)
	}
	if est.RoundedTotal() != 200 {
		t.Errorf("expected total 200, got %d", est.RoundedTotal())
	}
	if est.RoundedRemaining() != 150 {
		t.Errorf("expected remaining 150, got %d", est.RoundedRemaining())
	}
}

func TestEstimateDay_InsufficientData(t *testing.T) {
	set := testSet(nil)
	tests := []struct {
		name     string
		arrivals int
		now      time.Time
	}{
		{"midnight with arrivals", 100, tuesday(0)},
		{"midnight without arrivals", 0, tuesday(0)},
		{"zero arrivals", 0, tuesday(10)},
		{"negative arrivals", -3, tuesday(10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EstimateDay(set, tt.arrivals, tt.now)
			if !errors.Is(err, profile.ErrInsufficientData) {
				t.Errorf("expected ErrInsufficientData, got %v", err)
			}
		})
	}
}

func TestEstimateDay_ZeroFractionIsLookupError(t *testing.T) {
	set := testSet(map[time.Weekday]map[int]float64{time.Tuesday: {0: 0}})

	_, err := EstimateDay(set, 5, tuesday(1))
	if !errors.Is(err, profile.ErrProfileLookup) {
		t.Fatalf("expected ErrProfileLookup, got %v", err)
	}
}

func TestEstimateDay_NegativeFractionIsLookupError(t *testing.T) {
	set := testSet(map[time.Weekday]map[int]float64{time.Tuesday: {3: -0.1}})

	_, err := EstimateDay(set, 5, tuesday(4))
	if !errors.Is(err, profile.ErrProfileLookup) {
		t.Fatalf("expected ErrProfileLookup, got %v", err)
	}
}

func TestEstimateDay_SubnormalFractionIsLookupError(t *testing.T) {
	set := testSet(map[time.Weekday]map[int]float64{time.Tuesday: {9: 1e-320}})

	est, err := EstimateDay(set, 50, tuesday(10))
	if !errors.Is(err, profile.ErrProfileLookup) {
		t.Fatalf("expected ErrProfileLookup, got %v (total %v)", err, est.EstimatedTotal)
	}
	if math.IsInf(est.EstimatedTotal, 0) {
		t.Error("estimate carries an infinite total")
	}
}

func TestEstimateDay_MissingCellIsLookupError(t *testing.T) {
	cols := map[time.Weekday][]float64{time.Monday: {0.1, 0.2}}
	set := &profile.Set{Arrival: profile.NewGrid(cols)}

	_, err := EstimateDay(set, 5, tuesday(10))
	if !errors.Is(err, profile.ErrProfileLookup) {
		t.Fatalf("expected ErrProfileLookup, got %v", err)
	}
}

func TestEstimateDay_NilSetIsUnavailable(t *testing.T) {
	_, err := EstimateDay(nil, 5, tuesday(10))
	if !errors.Is(err, profile.ErrProfileUnavailable) {
		t.Fatalf("expected ErrProfileUnavailable, got %v", err)
	}
}

func TestEstimateDay_NegativeRemainingIsReported(t *testing.T) {
	set := testSet(map[time.Weekday]map[int]float64{time.Tuesday: {9: 1.25}})

	est, err := EstimateDay(set, 100, tuesday(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.RoundedTotal() != 80 || est.RoundedRemaining() != -20 {
		t.Errorf("expected 80/-20, got %d/%d", est.RoundedTotal(), est.RoundedRemaining())
	}
}

func TestEstimateDay_TotalNeverBelowArrivals(t *testing.T) {
	for _, pct := range []float64{0.01, 0.1, 0.333, 0.5, 0.9, 1.0} {
		for _, arrivals := range []int{1, 7, 50, 1234} {
			set := testSet(map[time.Weekday]map[int]float64{time.Tuesday: {14: pct}})
			est, err := EstimateDay(set, arrivals, tuesday(15))
			if err != nil {
				t.Fatalf("pct=%v arrivals=%d: %v", pct, arrivals, err)
			}
			if est.EstimatedTotal < float64(arrivals) {
				t.Errorf("pct=%v arrivals=%d: total %v below arrivals", pct, arrivals, est.EstimatedTotal)
			}
			if math.Abs(est.Remaining-(est.EstimatedTotal-float64(arrivals))) > 1e-9 {
				t.Errorf("pct=%v arrivals=%d: remaining %v inconsistent with total %v", pct, arrivals, est.Remaining, est.EstimatedTotal)
			}
		}
	}
}

func TestEstimate_RoundsHalfAwayFromZero(t *testing.T) {
	est := Estimate{EstimatedTotal: 20.5, Remaining: -0.5}
	if est.RoundedTotal() != 21 {
		t.Errorf("expected 21, got %d", est.RoundedTotal())
	}
	if est.RoundedRemaining() != -1 {
		t.Errorf("expected -1, got %d", est.RoundedRemaining())
	}
}
