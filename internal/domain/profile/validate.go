package profile

import (
	"errors"
	"fmt"
	"math"
)

// lastHourTolerance bounds how far the hour-23 cumulative fraction may sit
// from 1.0 before the table is reported as malformed.
const lastHourTolerance = 1e-3

// Validate checks every table in the set and joins all violations.
func (s *Set) Validate() error {
	var errs []error
	if s.Arrival == nil {
		errs = append(errs, errors.New("arrival profile missing"))
	} else if err := s.Arrival.ValidateCumulative(); err != nil {
		errs = append(errs, fmt.Errorf("arrival profile: %w", err))
	}
	if s.Hourly != nil {
		if err := s.Hourly.ValidateProportions(); err != nil {
			errs = append(errs, fmt.Errorf("hourly profile: %w", err))
		}
	}
	if s.Triage == nil {
		errs = append(errs, errors.New("triage profile missing"))
	} else if err := s.Triage.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("triage profile: %w", err))
	}
	return errors.Join(errs...)
}

// ValidateCumulative checks the cumulative-fraction invariants: all cells
// present and in (0, 1], non-decreasing by hour per weekday, and hour 23
// at 1.0.
func (g *Grid) ValidateCumulative() error {
	var errs []error
	for _, d := range Weekdays {
		prev := 0.0
		for h := 0; h < HoursPerDay; h++ {
			v, ok := g.Value(h, d)
			if !ok {
				errs = append(errs, fmt.Errorf("%s hour %d: missing", d, h))
				continue
			}
			if v <= 0 || v > 1 {
				errs = append(errs, fmt.Errorf("%s hour %d: %v outside (0, 1]", d, h, v))
			}
			if v < prev {
				errs = append(errs, fmt.Errorf("%s hour %d: %v decreases from %v", d, h, v, prev))
			}
			prev = v
		}
		if v, ok := g.Value(HoursPerDay-1, d); ok && math.Abs(v-1) > lastHourTolerance {
			errs = append(errs, fmt.Errorf("%s hour %d: %v is not 1.0", d, HoursPerDay-1, v))
		}
	}
	return errors.Join(errs...)
}

// ValidateProportions checks per-hour proportions: all cells present and in
// [0, 1].
func (g *Grid) ValidateProportions() error {
	var errs []error
	for _, d := range Weekdays {
		for h := 0; h < HoursPerDay; h++ {
			v, ok := g.Value(h, d)
			if !ok {
				errs = append(errs, fmt.Errorf("%s hour %d: missing", d, h))
				continue
			}
			if v < 0 || v > 1 {
				errs = append(errs, fmt.Errorf("%s hour %d: %v outside [0, 1]", d, h, v))
			}
		}
	}
	return errors.Join(errs...)
}

// Validate checks that every hour has at least one weight and that every
// label follows the <prefix>_<N> convention.
func (t *TriageProfile) Validate() error {
	var errs []error
	for _, label := range t.labels {
		if _, err := ParseCategoryNumber(label); err != nil {
			errs = append(errs, err)
		}
	}
	for h := 0; h < HoursPerDay; h++ {
		if len(t.rows[h]) == 0 {
			errs = append(errs, fmt.Errorf("hour %d: no category weights", h))
		}
	}
	return errors.Join(errs...)
}
