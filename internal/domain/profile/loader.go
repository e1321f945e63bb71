package profile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config names the profile sources. HourlyFile is optional; ArrivalFile and
// TriageFile are required. With Strict set, table validation failures make
// the load fail instead of being reported through Set.Validate.
type Config struct {
	ArrivalFile string
	HourlyFile  string
	TriageFile  string
	Strict      bool
}

// Load reads every configured source and returns a complete Set. Any
// failure discards everything read so far.
func Load(ctx context.Context, cfg Config) (*Set, error) {
	if cfg.ArrivalFile == "" || cfg.TriageFile == "" {
		return nil, fmt.Errorf("arrival and triage profile files are required")
	}

	arrival, err := readFile(ctx, cfg.ArrivalFile, ReadGrid)
	if err != nil {
		return nil, fmt.Errorf("arrival profile: %w", err)
	}

	var hourly *Grid
	if cfg.HourlyFile != "" {
		hourly, err = readFile(ctx, cfg.HourlyFile, ReadGrid)
		if err != nil {
			return nil, fmt.Errorf("hourly profile: %w", err)
		}
	}

	triage, err := readFile(ctx, cfg.TriageFile, ReadTriage)
	if err != nil {
		return nil, fmt.Errorf("triage profile: %w", err)
	}

	set := &Set{
		Arrival:  arrival,
		Hourly:   hourly,
		Triage:   triage,
		LoadedAt: time.Now(),
		Sources:  cfg,
	}
	if cfg.Strict {
		if err := set.Validate(); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func readFile[T any](ctx context.Context, path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	return parse(f)
}

// ReadGrid parses an hour x weekday CSV. The first column is the hour index
// whatever its header; the remaining headers must name all seven weekdays.
// Empty cells become absent.
func ReadGrid(r io.Reader) (*Grid, error) {
	header, records, err := readTable(r)
	if err != nil {
		return nil, err
	}

	days := make([]time.Weekday, len(header)-1)
	seen := make(map[time.Weekday]bool)
	for i, name := range header[1:] {
		d, ok := ParseWeekday(name)
		if !ok {
			return nil, fmt.Errorf("column %q is not a weekday", name)
		}
		if seen[d] {
			return nil, fmt.Errorf("duplicate weekday column %q", name)
		}
		seen[d] = true
		days[i] = d
	}
	if len(seen) != len(Weekdays) {
		return nil, fmt.Errorf("expected %d weekday columns, got %d", len(Weekdays), len(seen))
	}

	g := &Grid{}
	hours := make(map[int]bool)
	for line, rec := range records {
		hour, err := parseHour(rec[0], hours)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line+2, err)
		}
		for i, raw := range rec[1:] {
			v, ok, err := parseCell(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", line+2, header[i+1], err)
			}
			if ok {
				g.set(hour, days[i], v)
			}
		}
	}
	return g, nil
}

// ReadTriage parses an hour x category CSV. The first column is the hour
// index; every other header is a category label.
func ReadTriage(r io.Reader) (*TriageProfile, error) {
	header, records, err := readTable(r)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(header)-1)
	for _, name := range header[1:] {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.New("empty category label in header")
		}
		labels = append(labels, name)
	}

	rows := make(map[int]map[string]float64, HoursPerDay)
	hours := make(map[int]bool)
	for line, rec := range records {
		hour, err := parseHour(rec[0], hours)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line+2, err)
		}
		row := make(map[string]float64, len(labels))
		for i, raw := range rec[1:] {
			v, ok, err := parseCell(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", line+2, labels[i], err)
			}
			if ok {
				row[labels[i]] = v
			}
		}
		rows[hour] = row
	}
	return NewTriageProfile(labels, rows), nil
}

func readTable(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, errors.New("empty csv")
	}
	header := all[0]
	if len(header) < 2 {
		return nil, nil, errors.New("csv needs an index column and at least one value column")
	}
	// Strip a UTF-8 BOM left by spreadsheet exports.
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	return header, all[1:], nil
}

func parseHour(raw string, seen map[int]bool) (int, error) {
	hour, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("hour %q is not an integer", raw)
	}
	if hour < 0 || hour >= HoursPerDay {
		return 0, fmt.Errorf("hour %d out of range", hour)
	}
	if seen[hour] {
		return 0, fmt.Errorf("duplicate hour %d", hour)
	}
	seen[hour] = true
	return hour, nil
}

func parseCell(raw string) (float64, bool, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "nan", "na", "null":
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("value %q is not a number", raw)
	}
	if math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("value %q is not finite", raw)
	}
	return v, true, nil
}
