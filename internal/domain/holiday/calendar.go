// Package holiday answers whether a date is a public holiday.
package holiday

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// Holiday is one entry of holidays.json.
type Holiday struct {
	Date        string `json:"Date"`
	HolidayName string `json:"HolidayName"`
}

// Calendar maps YYYY-MM-DD dates to holiday names.
type Calendar struct {
	byDate map[string]string
}

func NewCalendar(holidays []Holiday) (*Calendar, error) {
	c := &Calendar{byDate: make(map[string]string, len(holidays))}
	for i, h := range holidays {
		if _, err := time.Parse(dateLayout, h.Date); err != nil {
			return nil, fmt.Errorf("holiday %d: bad date %q", i, h.Date)
		}
		c.byDate[h.Date] = h.HolidayName
	}
	return c, nil
}

// LoadCalendar reads a JSON array of holidays from path. A missing file is an
// empty calendar; found reports whether the file existed.
func LoadCalendar(path string) (c *Calendar, found bool, err error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		c, _ = NewCalendar(nil)
		return c, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	c, err = ReadCalendar(f)
	if err != nil {
		return nil, true, fmt.Errorf("%s: %w", path, err)
	}
	return c, true, nil
}

func ReadCalendar(r io.Reader) (*Calendar, error) {
	var holidays []Holiday
	if err := json.NewDecoder(r).Decode(&holidays); err != nil {
		return nil, fmt.Errorf("decode holidays: %w", err)
	}
	return NewCalendar(holidays)
}

// Lookup returns the holiday name for the calendar date of t.
func (c *Calendar) Lookup(t time.Time) (string, bool) {
	name, ok := c.byDate[t.Format(dateLayout)]
	return name, ok
}

func (c *Calendar) Len() int {
	return len(c.byDate)
}

// Between lists the holidays from start to end inclusive, in date order.
func (c *Calendar) Between(start, end time.Time) []Holiday {
	from, to := start.Format(dateLayout), end.Format(dateLayout)
	var out []Holiday
	for d, name := range c.byDate {
		if d >= from && d <= to {
			out = append(out, Holiday{Date: d, HolidayName: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
