// Package livestatus reports how many patients are waiting in, and occupying,
// a hospital emergency department, as published on the facility's public page.
package livestatus

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/edforecast/edforecast/internal/platform/fhir"
)

var (
	// ErrUnavailable wraps any failure to obtain live figures.
	ErrUnavailable = errors.New("live status unavailable")

	// ErrInvalidOrganization rejects ids that are not facility slugs.
	ErrInvalidOrganization = errors.New("invalid organization id")
)

var orgIDPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidOrganizationID reports whether id is a facility slug such as
// "logan-hospital".
func ValidOrganizationID(id string) bool {
	return orgIDPattern.MatchString(id)
}

// Counts are the two figures shown on a facility page.
type Counts struct {
	Waiting int `json:"waiting"`
	InED    int `json:"in_ed"`
}

// Source fetches the current counts for one facility.
type Source interface {
	Counts(ctx context.Context, orgID string) (Counts, error)
}

// Status is a point-in-time reading for one facility.
type Status struct {
	OrganizationID string
	Counts         Counts
	ObservedAt     time.Time
	MeasureBase    string
}

var titleCaser = cases.Title(language.English)

// OrganizationDisplay turns "logan-hospital" into "Logan Hospital".
func OrganizationDisplay(orgID string) string {
	return titleCaser.String(strings.ReplaceAll(orgID, "-", " "))
}

func (s *Status) ToFHIR() map[string]interface{} {
	return map[string]interface{}{
		"resourceType": "MeasureReport",
		"status":       "complete",
		"type":         "summary",
		"measure":      strings.TrimRight(s.MeasureBase, "/") + "/Measure/live-status/" + s.OrganizationID,
		"date":         fhir.FormatDateTime(s.ObservedAt),
		"reportingOrganization": fhir.Reference{
			Reference: fhir.FormatReference("Organization", s.OrganizationID),
			Display:   OrganizationDisplay(s.OrganizationID),
		},
		"group": []map[string]interface{}{
			{
				"code":         fhir.CodeableConcept{Text: "Patients Waiting for Treatment"},
				"measureScore": fhir.Quantity{Value: float64(s.Counts.Waiting)},
			},
			{
				"code":         fhir.CodeableConcept{Text: "Total Patients in ED"},
				"measureScore": fhir.Quantity{Value: float64(s.Counts.InED)},
			},
		},
	}
}
