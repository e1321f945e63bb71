package holiday

import (
	"time"

	"github.com/edforecast/edforecast/internal/platform/fhir"
)

// Status is the holiday flag for one day.
type Status struct {
	Date    time.Time
	Name    string
	Holiday bool
}

func (s *Status) ToFHIR() map[string]interface{} {
	result := map[string]interface{}{
		"resourceType": "Flag",
		"status":       "inactive",
		"subject":      fhir.Reference{Reference: fhir.FormatReference("Date", fhir.FormatDate(s.Date))},
	}
	if s.Holiday {
		result["status"] = "active"
		result["code"] = fhir.CodeableConcept{Text: s.Name}
	}
	return result
}

type Service struct {
	cal *Calendar
	loc *time.Location
	now func() time.Time
}

func NewService(cal *Calendar, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{cal: cal, loc: loc, now: time.Now}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Today reports whether the current local date is a holiday.
func (s *Service) Today() *Status {
	today := s.now().In(s.loc)
	name, ok := s.cal.Lookup(today)
	return &Status{Date: today, Name: name, Holiday: ok}
}
