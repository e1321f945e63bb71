package arrival

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edforecast/edforecast/internal/domain/profile"
	"github.com/edforecast/edforecast/internal/platform/metrics"
	"github.com/edforecast/edforecast/internal/platform/publish"
)

// Clock supplies the current wall-clock time.
type Clock func() time.Time

type Service struct {
	profiles  *profile.Holder
	loc       *time.Location
	now       Clock
	publisher publish.Publisher
	logger    zerolog.Logger
}

func NewService(profiles *profile.Holder, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		profiles:  profiles,
		loc:       loc,
		now:       time.Now,
		publisher: publish.Nop{},
		logger:    logger.With().Str("component", "arrival").Logger(),
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now Clock) {
	s.now = now
}

// SetPublisher attaches a publisher that receives every successful estimate.
func (s *Service) SetPublisher(p publish.Publisher) {
	if p == nil {
		p = publish.Nop{}
	}
	s.publisher = p
}

// EstimateRemaining projects today's arrivals for orgID at the current time.
func (s *Service) EstimateRemaining(ctx context.Context, orgID string, arrivalsSoFar int) (*Estimate, error) {
	est, err := s.estimate(orgID, arrivalsSoFar)
	metrics.Estimates.WithLabelValues(profile.Classify(err)).Inc()
	if err != nil {
		if errors.Is(err, profile.ErrProfileLookup) {
			s.logger.Error().Err(err).Str("organization_id", orgID).Msg("arrival profile lookup failed")
		}
		return nil, err
	}

	s.publish(ctx, est)
	return est, nil
}

func (s *Service) estimate(orgID string, arrivalsSoFar int) (*Estimate, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization id is required", profile.ErrInsufficientData)
	}
	set, err := s.profiles.Get()
	if err != nil {
		return nil, err
	}
	est, err := EstimateDay(set, arrivalsSoFar, s.now().In(s.loc))
	if err != nil {
		return nil, err
	}
	est.OrganizationID = orgID
	return &est, nil
}

func (s *Service) publish(ctx context.Context, est *Estimate) {
	subject := publish.Subject{"ed", est.OrganizationID, "remaining"}
	if err := s.publisher.Publish(ctx, subject, est.ToPrediction()); err != nil {
		metrics.PublishFailures.WithLabelValues(s.publisher.Backend()).Inc()
		s.logger.Warn().Err(err).
			Str("organization_id", est.OrganizationID).
			Str("backend", s.publisher.Backend()).
			Msg("failed to publish arrival estimate")
	}
}

// CumulativeProfile returns the arrival profile keyed by weekday name and hour.
func (s *Service) CumulativeProfile() (map[string]map[string]float64, error) {
	set, err := s.profiles.Get()
	if err != nil {
		return nil, err
	}
	return set.Arrival.ByWeekday(), nil
}

// HourlyProfile returns the per-hour arrival proportions. The hourly table is
// optional, so a loaded set without one still reports unavailable here.
func (s *Service) HourlyProfile() (map[string]map[string]float64, error) {
	set, err := s.profiles.Get()
	if err != nil {
		return nil, err
	}
	if set.Hourly == nil {
		return nil, fmt.Errorf("%w: hourly arrival profile not loaded", profile.ErrProfileUnavailable)
	}
	return set.Hourly.ByWeekday(), nil
}
