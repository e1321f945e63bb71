package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/edforecast/edforecast/internal/domain/profile"
	"github.com/edforecast/edforecast/internal/platform/metrics"
	"github.com/edforecast/edforecast/internal/platform/mlclient"
)

// ErrClassifier wraps any failure of the department routing classifier.
var ErrClassifier = errors.New("department classifier failed")

type Service struct {
	profiles   *profile.Holder
	classifier mlclient.Classifier
	encoder    *mlclient.Encoder
	loc        *time.Location
	now        func() time.Time
	logger     zerolog.Logger
}

// NewService builds a triage service. classifier and encoder may be nil, in
// which case hour lookups work and risk assessments report the classifier as
// not configured.
func NewService(profiles *profile.Holder, classifier mlclient.Classifier, encoder *mlclient.Encoder, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		profiles:   profiles,
		classifier: classifier,
		encoder:    encoder,
		loc:        loc,
		now:        time.Now,
		logger:     logger.With().Str("component", "triage").Logger(),
	}
}

// SetClock replaces the time source used to stamp assessments.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// TriageByHour returns the most likely triage category for hour.
func (s *Service) TriageByHour(hour int) (Category, error) {
	cat, err := s.lookup(hour)
	metrics.TriageLookups.WithLabelValues(profile.Classify(err)).Inc()
	return cat, err
}

func (s *Service) lookup(hour int) (Category, error) {
	set, err := s.profiles.Get()
	if err != nil {
		return Category{}, err
	}
	cat, err := LookupCategory(set, hour)
	if errors.Is(err, profile.ErrProfileLookup) || errors.Is(err, profile.ErrLabelFormat) {
		s.logger.Error().Err(err).Int("hour", hour).Msg("triage profile lookup failed")
	}
	return cat, err
}

// AssessRisk predicts the triage category from the hour profile and the
// department from the classifier. Either failing fails the whole assessment.
func (s *Service) AssessRisk(ctx context.Context, in TriageInput) (*RiskAssessment, error) {
	cat, err := s.TriageByHour(in.HourOfDay)
	if err != nil {
		return nil, err
	}

	if s.classifier == nil || s.encoder == nil {
		return nil, fmt.Errorf("%w: %w", ErrClassifier, mlclient.ErrNotConfigured)
	}
	department, err := s.classifier.Classify(ctx, s.encoder.Encode(in.Fields()))
	if err != nil {
		s.logger.Warn().Err(err).Msg("department classification failed")
		return nil, fmt.Errorf("%w: %w", ErrClassifier, err)
	}

	return &RiskAssessment{
		ID:         uuid.New().String(),
		Triage:     cat,
		Department: department,
		HourOfDay:  in.HourOfDay,
		OccurredAt: s.now().In(s.loc),
	}, nil
}
