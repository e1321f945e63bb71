// Package arrival projects a day's total emergency arrivals from the count
// seen so far and the historical cumulative arrival profile.
package arrival

import (
	"fmt"
	"math"
	"time"

	"github.com/edforecast/edforecast/internal/domain/profile"
)

// EstimateDay projects today's total and remaining arrivals. now must already
// be in the profile's time zone; only its hour and weekday are used.
//
// The fraction looked up is that of the last completed hour, so a call during
// hour 0 has no anchor and fails with ErrInsufficientData.
func EstimateDay(set *profile.Set, arrivalsSoFar int, now time.Time) (Estimate, error) {
	lookupHour := now.Hour() - 1
	if arrivalsSoFar <= 0 {
		return Estimate{}, fmt.Errorf("%w: arrivals_so_far must be positive, got %d", profile.ErrInsufficientData, arrivalsSoFar)
	}
	if lookupHour < 0 {
		return Estimate{}, fmt.Errorf("%w: no completed hour before %s", profile.ErrInsufficientData, now.Format("15:04"))
	}

	day := now.Weekday()
	pct, err := set.ArrivalFraction(lookupHour, day)
	if err != nil {
		return Estimate{}, err
	}
	if math.IsNaN(pct) || pct <= 0 {
		return Estimate{}, fmt.Errorf("%w: cumulative fraction %v for hour %d on %s", profile.ErrProfileLookup, pct, lookupHour, day)
	}

	total := float64(arrivalsSoFar) / pct
	if math.IsInf(total, 0) {
		return Estimate{}, fmt.Errorf("%w: cumulative fraction %v for hour %d on %s is too small to project from", profile.ErrProfileLookup, pct, lookupHour, day)
	}
	return Estimate{
		ArrivalsSoFar:  arrivalsSoFar,
		LookupHour:     lookupHour,
		Weekday:        day,
		FractionSoFar:  pct,
		EstimatedTotal: total,
		Remaining:      total - float64(arrivalsSoFar),
		ComputedAt:     now,
	}, nil
}
