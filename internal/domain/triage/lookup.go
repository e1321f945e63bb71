// Package triage predicts patient acuity from the hour-of-day triage profile
// and, for full risk assessments, the department routing classifier.
package triage

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/edforecast/edforecast/internal/domain/profile"
)

// Category is the most likely triage category for an hour.
type Category struct {
	Label  string `json:"label"`
	Number int    `json:"number"`
}

// String returns the externally reported form, e.g. "2".
func (c Category) String() string {
	return strconv.Itoa(c.Number)
}

// LookupCategory returns the highest weighted category for hour. Equal
// weights resolve to the lexically smallest label.
func LookupCategory(set *profile.Set, hour int) (Category, error) {
	if set == nil || set.Triage == nil {
		return Category{}, profile.ErrProfileUnavailable
	}
	if hour < 0 || hour >= profile.HoursPerDay {
		return Category{}, fmt.Errorf("%w: hour %d outside 0-23", profile.ErrProfileLookup, hour)
	}
	row, ok := set.Triage.Row(hour)
	if !ok {
		return Category{}, fmt.Errorf("%w: no triage weights for hour %d", profile.ErrProfileLookup, hour)
	}

	labels := make([]string, 0, len(row))
	for l := range row {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	best, bestWeight := "", math.Inf(-1)
	for _, l := range labels {
		w := row[l]
		if math.IsNaN(w) {
			continue
		}
		if best == "" || w > bestWeight {
			best, bestWeight = l, w
		}
	}
	if best == "" {
		return Category{}, fmt.Errorf("%w: no usable triage weight for hour %d", profile.ErrProfileLookup, hour)
	}

	n, err := profile.ParseCategoryNumber(best)
	if err != nil {
		return Category{}, err
	}
	return Category{Label: best, Number: n}, nil
}
