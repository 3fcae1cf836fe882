// Package fhir implements the FHIR R4 input adapter (spec §4.3). The
// resource shapes below are a compact, purpose-built subset for
// observation extraction — not a general FHIR conformance layer, which
// spec.md explicitly places out of scope.
package fhir

import "encoding/json"

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

type ObservationComponent struct {
	Code            CodeableConcept  `json:"code"`
	ValueCodeableConcept *CodeableConcept `json:"valueCodeableConcept,omitempty"`
	ValueQuantity   *Quantity        `json:"valueQuantity,omitempty"`
	ValueString     string           `json:"valueString,omitempty"`
}

// Observation is the subset of a FHIR R4 Observation resource the adapter
// inspects.
type Observation struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id,omitempty"`
	Category     []CodeableConcept `json:"category,omitempty"`
	Code         CodeableConcept   `json:"code"`
	Method       *CodeableConcept  `json:"method,omitempty"`
	Subject      *Reference        `json:"subject,omitempty"`
	Specimen     *Reference        `json:"specimen,omitempty"`

	ValueQuantity        *Quantity        `json:"valueQuantity,omitempty"`
	ValueCodeableConcept *CodeableConcept `json:"valueCodeableConcept,omitempty"`
	ValueString          string           `json:"valueString,omitempty"`

	Component []ObservationComponent `json:"component,omitempty"`

	DerivedFrom []Reference `json:"derivedFrom,omitempty"`
	HasMember   []Reference `json:"hasMember,omitempty"`
}

// BundleEntry defers typed decoding of its Resource until the adapter has
// inspected resourceType, mirroring how real FHIR servers keep a Bundle
// heterogeneous.
type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource"`
}

type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

func (c CodeableConcept) display() string {
	if c.Text != "" {
		return c.Text
	}
	if len(c.Coding) > 0 {
		return c.Coding[0].Display
	}
	return ""
}

func (c CodeableConcept) firstCoding() Coding {
	if len(c.Coding) > 0 {
		return c.Coding[0]
	}
	return Coding{}
}
