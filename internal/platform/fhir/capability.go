package fhir

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// OperationCapability describes a resource-level or system-level operation.
type OperationCapability struct {
	Name          string `json:"name"`
	Definition    string `json:"definition"`
	Documentation string `json:"documentation,omitempty"`
}

// CapabilityBuilder accumulates the operations each domain exposes and
// builds the CapabilityStatement served at /fhir/metadata.
type CapabilityBuilder struct {
	mu sync.RWMutex

	ServerName    string
	ServerVersion string
	BaseURL       string

	resourceOps map[string][]OperationCapability
	systemOps   []OperationCapability
	now         func() time.Time
}

func NewCapabilityBuilder(baseURL, version string) *CapabilityBuilder {
	return &CapabilityBuilder{
		ServerName:    "ED Forecast",
		ServerVersion: version,
		BaseURL:       baseURL,
		resourceOps:   make(map[string][]OperationCapability),
		now:           time.Now,
	}
}

// AddOperation registers an operation on resourceType, e.g. "Organization"
// and "live-status". A blank definition is derived from the base URL.
func (b *CapabilityBuilder) AddOperation(resourceType string, op OperationCapability) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if op.Definition == "" {
		op.Definition = b.BaseURL + "/OperationDefinition/" + resourceType + "-" + op.Name
	}
	b.resourceOps[resourceType] = append(b.resourceOps[resourceType], op)
}

// AddServerOperation registers an operation invoked at the server base.
func (b *CapabilityBuilder) AddServerOperation(op OperationCapability) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if op.Definition == "" {
		op.Definition = b.BaseURL + "/OperationDefinition/" + op.Name
	}
	b.systemOps = append(b.systemOps, op)
}

// ResourceTypes returns the registered resource types in sorted order.
func (b *CapabilityBuilder) ResourceTypes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	types := make([]string, 0, len(b.resourceOps))
	for rt := range b.resourceOps {
		types = append(types, rt)
	}
	sort.Strings(types)
	return types
}

func (b *CapabilityBuilder) Build() map[string]interface{} {
	types := b.ResourceTypes()

	b.mu.RLock()
	defer b.mu.RUnlock()

	resources := make([]map[string]interface{}, 0, len(types))
	for _, rt := range types {
		resources = append(resources, map[string]interface{}{
			"type":      rt,
			"operation": operationEntries(b.resourceOps[rt]),
		})
	}

	rest := map[string]interface{}{
		"mode":     "server",
		"resource": resources,
		"security": map[string]interface{}{
			"cors":        true,
			"description": "Bearer token (JWT) with one of the roles admin, clinician or operations",
		},
	}
	if len(b.systemOps) > 0 {
		rest["operation"] = operationEntries(b.systemOps)
	}

	return map[string]interface{}{
		"resourceType": "CapabilityStatement",
		"status":       "active",
		"date":         b.now().UTC().Format("2006-01-02"),
		"kind":         "instance",
		"fhirVersion":  "4.0.1",
		"format":       []string{"json"},
		"software": map[string]string{
			"name":    b.ServerName,
			"version": b.ServerVersion,
		},
		"implementation": map[string]string{
			"description": b.ServerName,
			"url":         b.BaseURL,
		},
		"rest": []map[string]interface{}{rest},
	}
}

func operationEntries(ops []OperationCapability) []map[string]interface{} {
	out := make([]map[string]interface{}, len(ops))
	for i, op := range ops {
		o := map[string]interface{}{
			"name":       op.Name,
			"definition": op.Definition,
		}
		if op.Documentation != "" {
			o["documentation"] = op.Documentation
		}
		out[i] = o
	}
	return out
}

// MetadataHandler serves the CapabilityStatement.
func (b *CapabilityBuilder) MetadataHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, b.Build())
	}
}
