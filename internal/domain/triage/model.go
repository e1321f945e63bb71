package triage

import (
	"fmt"
	"time"

	"github.com/edforecast/edforecast/internal/platform/fhir"
	"github.com/edforecast/edforecast/internal/platform/mlclient"
)

// TriageInput is a patient presentation. Only HourOfDay feeds the profile
// lookup; every field feeds the routing classifier.
type TriageInput struct {
	mlclient.TriageFeatures
}

// HourPrediction is the response of a triage-by-hour lookup.
type HourPrediction struct {
	HourOfDay               int    `json:"hour_of_day"`
	Label                   string `json:"label"`
	PredictedTriageCategory string `json:"predicted_triage_category"`
}

// RiskAssessment combines the profile triage category and the predicted
// department for one patient.
type RiskAssessment struct {
	ID         string
	Triage     Category
	Department string
	HourOfDay  int
	OccurredAt time.Time
}

func (r *RiskAssessment) ToFHIR() map[string]interface{} {
	return map[string]interface{}{
		"resourceType":       "RiskAssessment",
		"id":                 r.ID,
		"status":             "final",
		"subject":            fhir.Reference{Display: "Simulated ED Patient"},
		"occurrenceDateTime": fhir.FormatDateTime(r.OccurredAt),
		"prediction": []map[string]interface{}{
			{
				"outcome": fhir.CodeableConcept{
					Coding: []fhir.Coding{{Code: r.Triage.String(), Display: r.Triage.Label}},
					Text:   fmt.Sprintf("Predicted Triage Category: %s", r.Triage),
				},
			},
			{
				"outcome": fhir.CodeableConcept{Text: "Predicted ED Department: " + r.Department},
			},
		},
		"note": []map[string]interface{}{
			{"text": fmt.Sprintf("Triage category from the hour %d profile", r.HourOfDay)},
		},
	}
}
