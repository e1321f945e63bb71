package livestatus

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edforecast/edforecast/internal/platform/metrics"
)

type Service struct {
	src         Source
	measureBase string
	now         func() time.Time
	logger      zerolog.Logger
}

// NewService reports counts from src. measureBase prefixes the canonical
// Measure URL of each report.
func NewService(src Source, measureBase string, logger zerolog.Logger) *Service {
	return &Service{
		src:         src,
		measureBase: measureBase,
		now:         time.Now,
		logger:      logger.With().Str("component", "livestatus").Logger(),
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Status(ctx context.Context, orgID string) (*Status, error) {
	if !ValidOrganizationID(orgID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOrganization, orgID)
	}
	counts, err := s.src.Counts(ctx, orgID)
	if err != nil {
		metrics.LiveStatusFetches.WithLabelValues("request", "error").Inc()
		s.logger.Warn().Err(err).Str("organization", orgID).Msg("live status fetch failed")
		return nil, err
	}
	metrics.LiveStatusFetches.WithLabelValues("request", "ok").Inc()
	return &Status{
		OrganizationID: orgID,
		Counts:         counts,
		ObservedAt:     s.now(),
		MeasureBase:    s.measureBase,
	}, nil
}
