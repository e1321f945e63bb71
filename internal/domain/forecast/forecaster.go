package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Forecaster predicts the horizon periods that follow a daily history.
// Implementations aggregate the history themselves for weekly granularity.
type Forecaster interface {
	Forecast(ctx context.Context, history []Point, horizon int, g Granularity) ([]Prediction, error)
}

const (
	minHistoryPeriods = 3
	// z-score of an 80% two-sided interval.
	intervalZ = 1.2816
)

// BaselineForecaster fits a least-squares linear trend, then adds the mean
// residual of the matching season: weekday for daily series, ISO week of the
// year for weekly series. The interval is the spread of what remains.
type BaselineForecaster struct{}

func NewBaselineForecaster() *BaselineForecaster {
	return &BaselineForecaster{}
}

func (f *BaselineForecaster) Forecast(ctx context.Context, history []Point, horizon int, g Granularity) ([]Prediction, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	series := history
	if g == Weekly {
		series = AggregateWeekly(history)
	}
	if len(series) < minHistoryPeriods {
		return nil, fmt.Errorf("%w: %d periods, need %d", ErrInsufficientHistory, len(series), minHistoryPeriods)
	}

	origin := series[0].Date
	xs := make([]float64, len(series))
	ys := make([]float64, len(series))
	for i, p := range series {
		xs[i] = periodIndex(origin, p.Date, g)
		ys[i] = p.Cases
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)

	bySeason := make(map[int][]float64)
	residuals := make([]float64, len(series))
	for i, p := range series {
		residuals[i] = ys[i] - (alpha + beta*xs[i])
		key := seasonKey(p.Date, g)
		bySeason[key] = append(bySeason[key], residuals[i])
	}
	seasonal := make(map[int]float64, len(bySeason))
	for key, rs := range bySeason {
		seasonal[key] = stat.Mean(rs, nil)
	}
	remainder := make([]float64, len(series))
	for i, p := range series {
		remainder[i] = residuals[i] - seasonal[seasonKey(p.Date, g)]
	}
	sigma := stat.StdDev(remainder, nil)
	if math.IsNaN(sigma) {
		sigma = 0
	}

	last := series[len(series)-1].Date
	preds := make([]Prediction, 0, horizon)
	for k := 1; k <= horizon; k++ {
		if k%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		t := g.step(last, k)
		v := alpha + beta*periodIndex(origin, t, g) + seasonal[seasonKey(t, g)]
		preds = append(preds, Prediction{
			Period: t,
			Value:  v,
			Lower:  v - intervalZ*sigma,
			Upper:  v + intervalZ*sigma,
		})
	}
	return preds, nil
}

// AggregateWeekly sums daily points into weeks starting on Monday, each
// labelled by its Monday.
func AggregateWeekly(daily []Point) []Point {
	sums := make(map[time.Time]float64)
	for _, p := range daily {
		sums[WeekStart(p.Date)] += p.Cases
	}
	out := make([]Point, 0, len(sums))
	for day, v := range sums {
		out = append(out, Point{Date: day, Cases: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// WeekStart returns midnight on the Monday of t's week, in t's location.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func periodIndex(origin, t time.Time, g Granularity) float64 {
	days := math.Round(t.Sub(origin).Hours() / 24)
	if g == Weekly {
		return days / 7
	}
	return days
}

func seasonKey(t time.Time, g Granularity) int {
	if g == Weekly {
		_, week := t.ISOWeek()
		return week
	}
	return int(t.Weekday())
}
