package profile

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteGridCSV writes g in the format ReadGrid accepts, with indexName as
// the first header. Floats use the shortest exact representation so a
// reload reproduces identical values.
func WriteGridCSV(w io.Writer, g *Grid, indexName string) error {
	cw := csv.NewWriter(w)
	header := []string{indexName}
	for _, d := range Weekdays {
		header = append(header, d.String())
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for h := 0; h < HoursPerDay; h++ {
		rec := []string{strconv.Itoa(h)}
		for _, d := range Weekdays {
			rec = append(rec, formatCell(g.Value(h, d)))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTriageCSV writes t in the format ReadTriage accepts.
func WriteTriageCSV(w io.Writer, t *TriageProfile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"hour"}, t.labels...)); err != nil {
		return err
	}
	for h := 0; h < HoursPerDay; h++ {
		rec := []string{strconv.Itoa(h)}
		for _, label := range t.labels {
			v, ok := t.rows[h][label]
			rec = append(rec, formatCell(v, ok))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v float64, ok bool) string {
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
