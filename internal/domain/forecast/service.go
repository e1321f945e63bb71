package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/edforecast/edforecast/internal/platform/metrics"
)

// DefaultWeeks is the length of the weekly outlook.
const DefaultWeeks = 6

type Service struct {
	history    CaseHistory
	forecaster Forecaster
	region     string
	loc        *time.Location
	now        func() time.Time
	logger     zerolog.Logger
}

func NewService(history CaseHistory, forecaster Forecaster, region string, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		history:    history,
		forecaster: forecaster,
		region:     region,
		loc:        loc,
		now:        time.Now,
		logger:     logger.With().Str("component", "forecast").Logger(),
	}
}

// SetClock replaces the time source used to decide what "today" is.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Forecast predicts the periods following the full history.
func (s *Service) Forecast(ctx context.Context, periods int, g Granularity) ([]Prediction, error) {
	history, err := s.history.ListDaily(ctx)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, history, periods, g)
}

func (s *Service) run(ctx context.Context, history []Point, periods int, g Granularity) ([]Prediction, error) {
	start := time.Now()
	preds, err := s.forecaster.Forecast(ctx, history, periods, g)
	metrics.ForecastDuration.WithLabelValues(string(g)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Warn().Err(err).Str("granularity", string(g)).Int("periods", periods).Msg("forecast failed")
		return nil, err
	}
	return preds, nil
}

// Today predicts today's cases from the history before today and rates the
// prediction against the mean daily count of the same ISO week in history.
func (s *Service) Today(ctx context.Context) (*TodayForecast, error) {
	y, m, d := s.now().In(s.loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	history, err := s.history.ListDaily(ctx)
	if err != nil {
		return nil, err
	}
	var past []Point
	for _, p := range history {
		if p.Date.Before(today) {
			past = append(past, p)
		}
	}
	if len(past) == 0 {
		return nil, fmt.Errorf("%w: no observations before %s", ErrInsufficientHistory, today.Format(dateLayout))
	}

	horizon := int(math.Round(today.Sub(past[len(past)-1].Date).Hours() / 24))
	preds, err := s.run(ctx, past, horizon, Daily)
	if err != nil {
		return nil, err
	}
	predicted := preds[len(preds)-1].Cases()

	_, week := today.ISOWeek()
	var sameWeek []float64
	for _, p := range history {
		if _, w := p.Date.ISOWeek(); w == week {
			sameWeek = append(sameWeek, p.Cases)
		}
	}
	out := &TodayForecast{
		ID:             uuid.New().String(),
		Region:         s.region,
		Date:           today,
		PredictedCases: predicted,
		HaveAverage:    len(sameWeek) > 0,
	}
	if out.HaveAverage {
		out.HistoricalAverage = int(math.Round(stat.Mean(sameWeek, nil)))
	}
	out.Risk = ClassifyRisk(predicted, float64(out.HistoricalAverage), out.HaveAverage)
	return out, nil
}

// Weekly predicts the weeks following the last observed week.
func (s *Service) Weekly(ctx context.Context, weeks int) (*WeeklyForecast, error) {
	if weeks <= 0 {
		weeks = DefaultWeeks
	}
	preds, err := s.Forecast(ctx, weeks, Weekly)
	if err != nil {
		return nil, err
	}
	return &WeeklyForecast{
		ID:          uuid.New().String(),
		Region:      s.region,
		GeneratedAt: s.now().In(s.loc),
		Weeks:       preds,
	}, nil
}
