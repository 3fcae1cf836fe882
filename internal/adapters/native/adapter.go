// Package native implements the native input adapter (spec §4.3): it
// accepts the caller's own records, already speaking this engine's
// vocabulary, rather than a standards document. It still routes
// organism/antibiotic display text through the terminology normalizer, so
// an unrecognized organism degrades to Unresolved exactly like the other
// adapters instead of being trusted blindly.
package native

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/xSoVx/amr-project/internal/domain"
	"github.com/xSoVx/amr-project/internal/terminology"
)

// Record is the literal shape the native adapter accepts, one per
// classifiable (or organism-only) observation.
type Record struct {
	Specimen string `json:"specimen"`

	OrganismSystem  string `json:"organismSystem,omitempty"`
	OrganismCode    string `json:"organismCode,omitempty"`
	OrganismDisplay string `json:"organism,omitempty"`

	AntibioticSystem  string `json:"antibioticSystem,omitempty"`
	AntibioticCode    string `json:"antibioticCode,omitempty"`
	AntibioticDisplay string `json:"antibiotic,omitempty"`

	Method domain.MethodKind  `json:"method"`
	Value  domain.Measurement `json:"value"`

	Phenotypes []domain.PhenotypeFlag `json:"phenotypes,omitempty"`
	Auxiliary  map[string]string      `json:"auxiliary,omitempty"`

	OrganismOnly bool `json:"organismOnly,omitempty"`
}

// Adapter is the native input adapter. It never classifies; it only
// produces ClassificationInput values.
type Adapter struct {
	normalizer *terminology.Normalizer
}

func NewAdapter(normalizer *terminology.Normalizer) *Adapter {
	return &Adapter{normalizer: normalizer}
}

// ParseJSON decodes either a single Record or a JSON array of Records.
func (a *Adapter) ParseJSON(ctx context.Context, raw []byte) ([]domain.ClassificationInput, error) {
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		var single Record
		if err2 := json.Unmarshal(raw, &single); err2 != nil {
			return nil, domain.NewAdapterError("native", "malformed JSON payload", err)
		}
		records = []Record{single}
	}
	return a.Parse(ctx, records)
}

// Parse converts records into ClassificationInputs, resolving organism and
// antibiotic designators through the terminology normalizer.
func (a *Adapter) Parse(ctx context.Context, records []Record) ([]domain.ClassificationInput, error) {
	inputs := make([]domain.ClassificationInput, 0, len(records))
	for _, rec := range records {
		if !rec.Method.Valid() && !rec.OrganismOnly {
			return nil, domain.NewAdapterError("native", "unknown method kind", nil)
		}
		// A caller that omits Value.Kind gets it defaulted to Method for
		// convenience; a caller that sets it explicitly and it disagrees is
		// left alone so the gating validator's variant-agreement check
		// (spec §4.5 gate 1) sees the real mismatch instead of a coerced one.
		if rec.Value.Kind == "" {
			rec.Value.Kind = rec.Method
		}

		specimen := domain.SpecimenRef(rec.Specimen)
		if specimen == "" {
			specimen = domain.SpecimenRef(syntheticSpecimenRef("native"))
		}

		var organism domain.OrganismKey
		if rec.OrganismDisplay != "" || rec.OrganismCode != "" {
			organism = a.normalizer.NormalizeOrganism(ctx, rec.OrganismSystem, rec.OrganismCode, rec.OrganismDisplay)
		}
		var antibiotic domain.AntibioticKey
		if rec.AntibioticDisplay != "" || rec.AntibioticCode != "" {
			antibiotic = a.normalizer.NormalizeAntibiotic(ctx, rec.AntibioticSystem, rec.AntibioticCode, rec.AntibioticDisplay)
		}

		phenotypes := map[domain.PhenotypeFlag]struct{}{}
		for _, p := range rec.Phenotypes {
			phenotypes[p] = struct{}{}
		}

		inputs = append(inputs, domain.ClassificationInput{
			Specimen:     specimen,
			Organism:     organism,
			Antibiotic:   antibiotic,
			Method:       rec.Method,
			Value:        rec.Value,
			Phenotypes:   phenotypes,
			Auxiliary:    rec.Auxiliary,
			OrganismOnly: rec.OrganismOnly,
		})
	}
	return inputs, nil
}

func syntheticSpecimenRef(prefix string) string {
	return prefix + "-synthetic-" + uuid.NewString()
}
