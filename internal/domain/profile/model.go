package profile

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// HoursPerDay is the number of hour rows every profile carries.
const HoursPerDay = 24

// Weekdays lists the weekday columns in dashboard order.
var Weekdays = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// ParseWeekday resolves a column header such as "Tuesday" or "tue".
func ParseWeekday(name string) (time.Weekday, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return 0, false
	}
	for _, d := range Weekdays {
		full := strings.ToLower(d.String())
		if n == full || (len(n) == 3 && strings.HasPrefix(full, n)) {
			return d, true
		}
	}
	return 0, false
}

// Grid is an hour x weekday table of fractions. Cells that were empty in
// the source are absent rather than zero.
type Grid struct {
	cells   [HoursPerDay][7]float64
	present [HoursPerDay][7]bool
}

// NewGrid builds a Grid from per-weekday columns. Column index is the hour;
// weekdays missing from the map and hours past the slice end are absent.
// NaN values are treated as absent.
func NewGrid(columns map[time.Weekday][]float64) *Grid {
	g := &Grid{}
	for day, values := range columns {
		for hour, v := range values {
			if hour >= HoursPerDay {
				break
			}
			g.set(hour, day, v)
		}
	}
	return g
}

func (g *Grid) set(hour int, day time.Weekday, v float64) {
	if math.IsNaN(v) {
		return
	}
	g.cells[hour][day] = v
	g.present[hour][day] = true
}

// Value returns the cell for (hour, day) and whether it is present.
func (g *Grid) Value(hour int, day time.Weekday) (float64, bool) {
	if g == nil || hour < 0 || hour >= HoursPerDay || day < time.Sunday || day > time.Saturday {
		return 0, false
	}
	return g.cells[hour][day], g.present[hour][day]
}

// ByWeekday renders the grid as {"Monday": {"0": 0.01, ...}, ...}, the shape
// dashboards consume. Absent cells are omitted.
func (g *Grid) ByWeekday() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(Weekdays))
	for _, d := range Weekdays {
		col := make(map[string]float64, HoursPerDay)
		for h := 0; h < HoursPerDay; h++ {
			if v, ok := g.Value(h, d); ok {
				col[strconv.Itoa(h)] = v
			}
		}
		out[d.String()] = col
	}
	return out
}

// TriageProfile maps each hour to relative weights per triage category label.
type TriageProfile struct {
	labels []string
	rows   [HoursPerDay]map[string]float64
}

// NewTriageProfile builds a TriageProfile. Label order is taken from labels;
// any label appearing only in rows is appended in lexical order.
func NewTriageProfile(labels []string, rows map[int]map[string]float64) *TriageProfile {
	t := &TriageProfile{}
	seen := make(map[string]bool)
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			t.labels = append(t.labels, l)
		}
	}
	var extra []string
	for hour, row := range rows {
		if hour < 0 || hour >= HoursPerDay {
			continue
		}
		clean := make(map[string]float64, len(row))
		for label, w := range row {
			if math.IsNaN(w) {
				continue
			}
			clean[label] = w
			if !seen[label] {
				seen[label] = true
				extra = append(extra, label)
			}
		}
		t.rows[hour] = clean
	}
	sort.Strings(extra)
	t.labels = append(t.labels, extra...)
	return t
}

// Labels returns the category labels in column order.
func (t *TriageProfile) Labels() []string {
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// Row returns a copy of the weights defined for hour.
func (t *TriageProfile) Row(hour int) (map[string]float64, bool) {
	if t == nil || hour < 0 || hour >= HoursPerDay || len(t.rows[hour]) == 0 {
		return nil, false
	}
	out := make(map[string]float64, len(t.rows[hour]))
	for k, v := range t.rows[hour] {
		out[k] = v
	}
	return out, true
}

// ParseCategoryNumber extracts N from a label of the form <prefix>_<N>.
func ParseCategoryNumber(label string) (int, error) {
	i := strings.LastIndex(label, "_")
	if i <= 0 || i == len(label)-1 {
		return 0, fmt.Errorf("%w: %q has no _<number> suffix", ErrLabelFormat, label)
	}
	n, err := strconv.Atoi(label[i+1:])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q suffix is not a positive integer", ErrLabelFormat, label)
	}
	return n, nil
}

// Set is the immutable bundle of profile tables shared by all requests.
type Set struct {
	Arrival  *Grid
	Hourly   *Grid
	Triage   *TriageProfile
	LoadedAt time.Time
	Sources  Config
}

// ArrivalFraction returns the cumulative fraction of a day's arrivals seen
// by the end of hour on day.
func (s *Set) ArrivalFraction(hour int, day time.Weekday) (float64, error) {
	if s == nil || s.Arrival == nil {
		return 0, ErrProfileUnavailable
	}
	v, ok := s.Arrival.Value(hour, day)
	if !ok {
		return 0, fmt.Errorf("%w: no arrival profile cell for hour %d on %s", ErrProfileLookup, hour, day)
	}
	return v, nil
}
