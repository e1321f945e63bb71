package fhir

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestCapabilityBuilder_Build(t *testing.T) {
	b := NewCapabilityBuilder("http://localhost:8000/fhir", "1.2.3")
	b.now = func() time.Time { return time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC) }
	b.AddOperation("Organization", OperationCapability{Name: "live-status"})
	b.AddOperation("Observation", OperationCapability{Name: "flu-forecast-today", Documentation: "today"})
	b.AddServerOperation(OperationCapability{Name: "holiday-status-today"})

	cs := b.Build()
	if cs["resourceType"] != "CapabilityStatement" {
		t.Errorf("resourceType = %v", cs["resourceType"])
	}
	if cs["date"] != "2024-03-04" {
		t.Errorf("date = %v, want 2024-03-04", cs["date"])
	}

	rest := cs["rest"].([]map[string]interface{})[0]
	resources := rest["resource"].([]map[string]interface{})
	if len(resources) != 2 {
		t.Fatalf("got %d resources, want 2", len(resources))
	}
	if resources[0]["type"] != "Observation" || resources[1]["type"] != "Organization" {
		t.Errorf("resources not sorted: %v, %v", resources[0]["type"], resources[1]["type"])
	}
	ops := resources[1]["operation"].([]map[string]interface{})
	if got := ops[0]["definition"]; got != "http://localhost:8000/fhir/OperationDefinition/Organization-live-status" {
		t.Errorf("definition = %v", got)
	}
	if _, ok := ops[0]["documentation"]; ok {
		t.Error("empty documentation should be omitted")
	}

	sys := rest["operation"].([]map[string]interface{})
	if len(sys) != 1 || sys[0]["name"] != "holiday-status-today" {
		t.Errorf("system operations = %v", sys)
	}
}

func TestCapabilityBuilder_MetadataHandler(t *testing.T) {
	b := NewCapabilityBuilder("http://x/fhir", "0.1.0")
	b.AddOperation("Patient", OperationCapability{Name: "triage-by-hour"})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/fhir/metadata", nil)
	rec := httptest.NewRecorder()
	if err := b.MetadataHandler()(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["fhirVersion"] != "4.0.1" {
		t.Errorf("fhirVersion = %v", body["fhirVersion"])
	}
}
