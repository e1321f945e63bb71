// Package forecast predicts daily and weekly influenza case counts and rates
// today's prediction against the historical average for the same week.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/edforecast/edforecast/internal/platform/fhir"
)

var (
	// ErrNoHistory means the case history source is missing or empty.
	ErrNoHistory = errors.New("no case history available")

	// ErrInsufficientHistory means there are too few points to fit a model.
	ErrInsufficientHistory = errors.New("insufficient case history")

	// ErrForecaster wraps failures of the forecasting backend.
	ErrForecaster = errors.New("forecaster failed")
)

// Point is one observed period and its case count.
type Point struct {
	Date  time.Time `json:"date"`
	Cases float64   `json:"cases"`
}

type Granularity string

const (
	Daily  Granularity = "D"
	Weekly Granularity = "W"
)

func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "D", "DAILY":
		return Daily, nil
	case "W", "WEEKLY":
		return Weekly, nil
	default:
		return "", fmt.Errorf("unknown granularity %q (want D or W)", s)
	}
}

// step returns the start of the period k periods after t.
func (g Granularity) step(t time.Time, k int) time.Time {
	if g == Weekly {
		return t.AddDate(0, 0, 7*k)
	}
	return t.AddDate(0, 0, k)
}

// Prediction is the forecast for the period starting at Period.
type Prediction struct {
	Period time.Time `json:"period"`
	Value  float64   `json:"value"`
	Lower  float64   `json:"lower"`
	Upper  float64   `json:"upper"`
}

// Cases reports the prediction as a whole, non-negative case count.
func (p Prediction) Cases() int {
	if p.Value <= 0 || math.IsNaN(p.Value) {
		return 0
	}
	return int(math.Round(p.Value))
}

// RiskLevel is an HL7 v3 observation interpretation.
type RiskLevel struct {
	Code    string `json:"code"`
	Display string `json:"display"`
}

var (
	RiskHigh          = RiskLevel{Code: "H", Display: "High"}
	RiskModerate      = RiskLevel{Code: "A", Display: "Moderate"}
	RiskLow           = RiskLevel{Code: "L", Display: "Low"}
	RiskIndeterminate = RiskLevel{Code: "IND", Display: "Indeterminate"}
)

// ClassifyRisk compares a prediction with the historical average for the
// same week: above twice the average is high, above 1.2x is moderate.
func ClassifyRisk(predicted int, average float64, haveAverage bool) RiskLevel {
	switch {
	case !haveAverage:
		return RiskIndeterminate
	case float64(predicted) > average*2:
		return RiskHigh
	case float64(predicted) > average*1.2:
		return RiskModerate
	default:
		return RiskLow
	}
}

// TodayForecast is today's predicted case count in context.
type TodayForecast struct {
	ID                string
	Region            string
	Date              time.Time
	PredictedCases    int
	HistoricalAverage int
	HaveAverage       bool
	Risk              RiskLevel
}

func (f *TodayForecast) ToFHIR() map[string]interface{} {
	result := map[string]interface{}{
		"resourceType":      "Observation",
		"id":                f.ID,
		"status":            "final",
		"code":              fhir.CodeableConcept{Text: "Predicted Daily Influenza Cases for " + f.Region},
		"effectiveDateTime": fhir.FormatDate(f.Date),
		"valueQuantity":     fhir.Quantity{Value: float64(f.PredictedCases), Unit: "cases"},
		"interpretation": []fhir.CodeableConcept{{
			Coding: []fhir.Coding{{
				System:  fhir.SystemObservationInterpretation,
				Code:    f.Risk.Code,
				Display: f.Risk.Display,
			}},
		}},
	}
	if f.HaveAverage {
		result["referenceRange"] = []map[string]interface{}{{
			"low":  fhir.Quantity{Value: 0},
			"high": fhir.Quantity{Value: float64(f.HistoricalAverage) * 1.2},
			"text": fmt.Sprintf("Historical average for this week is approx. %d cases.", f.HistoricalAverage),
		}}
	}
	return result
}

// WeeklyForecast is a run of future weekly predictions.
type WeeklyForecast struct {
	ID          string
	Region      string
	GeneratedAt time.Time
	Weeks       []Prediction
}

func (f *WeeklyForecast) ToFHIR() map[string]interface{} {
	entries := make([]map[string]interface{}, 0, len(f.Weeks))
	for _, w := range f.Weeks {
		entries = append(entries, map[string]interface{}{
			"resource": map[string]interface{}{
				"resourceType": "Observation",
				"status":       "final",
				"code":         fhir.CodeableConcept{Text: "Predicted Weekly Influenza Cases for " + f.Region},
				"effectivePeriod": fhir.Period{
					Start: fhir.FormatDate(w.Period),
					End:   fhir.FormatDate(w.Period.AddDate(0, 0, 6)),
				},
				"valueQuantity": fhir.Quantity{Value: float64(w.Cases()), Unit: "cases"},
			},
		})
	}
	return map[string]interface{}{
		"resourceType": "List",
		"id":           f.ID,
		"status":       "current",
		"mode":         "snapshot",
		"title":        "Weekly Influenza Forecast for " + f.Region,
		"date":         fhir.FormatDateTime(f.GeneratedAt),
		"entry":        entries,
	}
}
