package mlclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Encoder one-hot encodes fields and reindexes them to the trained column
// list. Columns the model never saw are dropped; trained columns with no
// matching input are 0.
type Encoder struct {
	columns []string
	index   map[string]int
}

func NewEncoder(columns []string) (*Encoder, error) {
	if len(columns) == 0 {
		return nil, errors.New("encoder needs at least one column")
	}
	e := &Encoder{
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	copy(e.columns, columns)
	for i, c := range columns {
		if c == "" {
			return nil, fmt.Errorf("column %d is empty", i)
		}
		if _, dup := e.index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		e.index[c] = i
	}
	return e, nil
}

// LoadColumns reads a JSON array of column names.
func LoadColumns(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var columns []string
	if err := json.Unmarshal(data, &columns); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return columns, nil
}

func (e *Encoder) Columns() []string {
	out := make([]string, len(e.columns))
	copy(out, e.columns)
	return out
}

func (e *Encoder) Encode(fields []Field) FeatureVector {
	values := make([]float64, len(e.columns))
	for _, f := range fields {
		name, v := f.Name, f.Value
		if f.Categorical {
			name, v = f.Name+"_"+f.Category, 1
		}
		if i, ok := e.index[name]; ok {
			values[i] = v
		}
	}
	return FeatureVector{Columns: e.Columns(), Values: values}
}
