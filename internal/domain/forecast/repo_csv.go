package forecast

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

type caseHistoryCSV struct {
	path   string
	column string
}

// NewCaseHistoryCSV reads a CSV with a Date column and one case-count column
// per region, selecting column.
func NewCaseHistoryCSV(path, column string) CaseHistory {
	return &caseHistoryCSV{path: path, column: column}
}

func (r *caseHistoryCSV) ListDaily(ctx context.Context) ([]Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", ErrNoHistory, r.path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	points, err := ReadDailyCSV(f, r.column)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.path, err)
	}
	return points, nil
}

// ReadDailyCSV parses Date,<column> rows. Counts for a repeated date are
// summed; the result is sorted by date.
func ReadDailyCSV(rd io.Reader, column string) ([]Point, error) {
	cr := csv.NewReader(rd)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, ErrNoHistory
	}

	header := records[0]
	dateIdx, valueIdx := -1, -1
	for i, h := range header {
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		switch {
		case strings.EqualFold(h, "date"):
			dateIdx = i
		case strings.EqualFold(h, column):
			valueIdx = i
		}
	}
	if dateIdx < 0 {
		return nil, errors.New("missing Date column")
	}
	if valueIdx < 0 {
		return nil, fmt.Errorf("missing %s column", column)
	}

	byDay := make(map[time.Time]float64)
	for n, rec := range records[1:] {
		line := n + 2
		if len(rec) <= dateIdx || len(rec) <= valueIdx {
			return nil, fmt.Errorf("line %d: short row", line)
		}
		day, err := time.Parse(dateLayout, strings.TrimSpace(rec[dateIdx]))
		if err != nil {
			return nil, fmt.Errorf("line %d: bad date %q", line, rec[dateIdx])
		}
		raw := strings.TrimSpace(rec[valueIdx])
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("line %d: bad case count %q", line, raw)
		}
		byDay[day] += v
	}
	if len(byDay) == 0 {
		return nil, ErrNoHistory
	}

	points := make([]Point, 0, len(byDay))
	for day, v := range byDay {
		points = append(points, Point{Date: day, Cases: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}
