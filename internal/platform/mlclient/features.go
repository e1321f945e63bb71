// Package mlclient encodes patient features the way the department routing
// model was trained and calls the model's inference service.
package mlclient

// Field is one named model input. Categorical fields are one-hot encoded as
// <Name>_<Category>; numeric fields keep their name.
type Field struct {
	Name        string
	Value       float64
	Category    string
	Categorical bool
}

func numeric(name string, v float64) Field {
	return Field{Name: name, Value: v}
}

func categorical(name, v string) Field {
	return Field{Name: name, Category: v, Categorical: true}
}

// TriageFeatures is the patient presentation sent to the routing model.
type TriageFeatures struct {
	Age         int     `json:"age"`
	Gender      string  `json:"gender"`
	Transport   string  `json:"transport"`
	Temp        float64 `json:"temp"`
	HeartRate   float64 `json:"heart_rate"`
	RespRate    float64 `json:"resp_rate"`
	O2Sat       float64 `json:"o2_sat"`
	SystolicBP  float64 `json:"systolic_bp"`
	DiastolicBP float64 `json:"diastolic_bp"`
	PainLevel   int     `json:"pain_level"`
	HourOfDay   int     `json:"hour_of_day"`
}

// Fields lists the features in training column order.
func (f TriageFeatures) Fields() []Field {
	return []Field{
		numeric("age", float64(f.Age)),
		categorical("gender", f.Gender),
		categorical("transport", f.Transport),
		numeric("temp", f.Temp),
		numeric("heart_rate", f.HeartRate),
		numeric("resp_rate", f.RespRate),
		numeric("o2_sat", f.O2Sat),
		numeric("systolic_bp", f.SystolicBP),
		numeric("diastolic_bp", f.DiastolicBP),
		numeric("pain_level", float64(f.PainLevel)),
		numeric("hour_of_day", float64(f.HourOfDay)),
	}
}

// FeatureVector is an encoded row aligned with the model's column list.
type FeatureVector struct {
	Columns []string  `json:"columns"`
	Values  []float64 `json:"features"`
}
