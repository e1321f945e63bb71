package arrival

import (
	"math"
	"time"
)

// IntraDayInput is the body of a predict-remaining call.
type IntraDayInput struct {
	ArrivalsSoFar int `json:"arrivals_so_far"`
}

// Estimate is the unrounded outcome of projecting today's arrivals.
type Estimate struct {
	OrganizationID string
	ArrivalsSoFar  int
	LookupHour     int
	Weekday        time.Weekday
	FractionSoFar  float64
	EstimatedTotal float64
	Remaining      float64
	ComputedAt     time.Time
}

func (e Estimate) RoundedTotal() int {
	return int(math.Round(e.EstimatedTotal))
}

func (e Estimate) RoundedRemaining() int {
	return int(math.Round(e.Remaining))
}

// Prediction is the reported form of an Estimate.
type Prediction struct {
	OrganizationID              string    `json:"organization_id"`
	EstimatedTotalForToday      int       `json:"estimated_total_for_today"`
	RemainingArrivalsPrediction int       `json:"remaining_arrivals_prediction"`
	ArrivalsSoFar               int       `json:"arrivals_so_far"`
	LookupHour                  int       `json:"lookup_hour"`
	Weekday                     string    `json:"weekday"`
	CumulativeFraction          float64   `json:"cumulative_fraction"`
	ComputedAt                  time.Time `json:"computed_at"`
}

func (e Estimate) ToPrediction() Prediction {
	return Prediction{
		OrganizationID:              e.OrganizationID,
		EstimatedTotalForToday:      e.RoundedTotal(),
		RemainingArrivalsPrediction: e.RoundedRemaining(),
		ArrivalsSoFar:               e.ArrivalsSoFar,
		LookupHour:                  e.LookupHour,
		Weekday:                     e.Weekday.String(),
		CumulativeFraction:          e.FractionSoFar,
		ComputedAt:                  e.ComputedAt,
	}
}
