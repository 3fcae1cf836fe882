package fhir

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xSoVx/amr-project/internal/domain"
	"github.com/xSoVx/amr-project/internal/terminology"
)

func newTestAdapter() *Adapter {
	return NewAdapter(nil, terminology.NewNormalizer(terminology.Options{}))
}

func TestParseMICMissingValue(t *testing.T) {
	raw := []byte(`{
		"resourceType": "Observation",
		"id": "obs-1",
		"category": [{"coding": [{"code": "laboratory"}]}],
		"code": {"text": "Ampicillin [Susceptibility] by MIC"},
		"method": {"text": "MIC"},
		"specimen": {"reference": "Specimen/spec-1"}
	}`)

	inputs, err := newTestAdapter().Parse(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, domain.MethodMIC, inputs[0].Method)
	assert.False(t, inputs[0].Value.MICPresent, "expected missing MIC value")
}

func TestParseDISCMissingValue(t *testing.T) {
	raw := []byte(`{
		"resourceType": "Observation",
		"id": "obs-1",
		"category": [{"coding": [{"code": "laboratory"}]}],
		"code": {"text": "Clindamycin [Susceptibility] by disk diffusion"},
		"method": {"text": "disk diffusion"},
		"specimen": {"reference": "Specimen/spec-1"}
	}`)

	inputs, err := newTestAdapter().Parse(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, domain.MethodDISC, inputs[0].Method)
	assert.False(t, inputs[0].Value.DiscPresent, "expected missing disc value")
}

func TestParseESBLBundleLinksToSpecimen(t *testing.T) {
	raw := []byte(`{
		"resourceType": "Bundle",
		"type": "collection",
		"entry": [
			{
				"resource": {
					"resourceType": "Observation",
					"id": "organism-1",
					"category": [{"coding": [{"code": "laboratory"}]}],
					"code": {"text": "Organism identified"},
					"specimen": {"reference": "Specimen/spec-1"},
					"valueCodeableConcept": {"text": "Escherichia coli"}
				}
			},
			{
				"resource": {
					"resourceType": "Observation",
					"id": "esbl-1",
					"category": [{"coding": [{"code": "laboratory"}]}],
					"code": {"text": "ESBL detection"},
					"specimen": {"reference": "Specimen/spec-1"},
					"valueCodeableConcept": {"text": "Positive"}
				}
			},
			{
				"resource": {
					"resourceType": "Observation",
					"id": "ceftaz-1",
					"category": [{"coding": [{"code": "laboratory"}]}],
					"code": {"text": "Ceftazidime [Susceptibility] by MIC"},
					"derivedFrom": [{"reference": "Observation/organism-1"}],
					"valueQuantity": {"value": 1, "unit": "mg/L"}
				}
			}
		]
	}`)

	inputs, err := newTestAdapter().Parse(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, inputs, 3)

	var organismInput, phenotypeInput, susceptibilityInput *domain.ClassificationInput
	for i := range inputs {
		switch {
		case inputs[i].OrganismOnly && !inputs[i].Organism.Unresolved():
			organismInput = &inputs[i]
		case inputs[i].OrganismOnly:
			phenotypeInput = &inputs[i]
		default:
			susceptibilityInput = &inputs[i]
		}
	}
	require.NotNil(t, organismInput, "expected organism input")
	require.NotNil(t, phenotypeInput, "expected phenotype input")
	require.NotNil(t, susceptibilityInput, "expected susceptibility input")

	assert.Equal(t, domain.OrganismKey("Escherichia coli"), organismInput.Organism)
	assert.True(t, phenotypeInput.HasPhenotype(domain.PhenotypeESBL))
	assert.Equal(t, domain.SpecimenRef("Specimen/spec-1"), susceptibilityInput.Specimen)
	assert.Equal(t, domain.AntibioticKey("Ceftazidime"), susceptibilityInput.Antibiotic)
	assert.True(t, susceptibilityInput.Value.MICPresent)
	assert.Equal(t, 1.0, susceptibilityInput.Value.MICValue)
}

func TestParseMRSABundleLinksToSpecimen(t *testing.T) {
	raw := []byte(`{
		"resourceType": "Bundle",
		"type": "collection",
		"entry": [
			{
				"resource": {
					"resourceType": "Observation",
					"id": "organism-1",
					"category": [{"coding": [{"code": "laboratory"}]}],
					"code": {"text": "Organism identified"},
					"specimen": {"reference": "Specimen/spec-2"},
					"valueCodeableConcept": {"text": "Staphylococcus aureus"}
				}
			},
			{
				"resource": {
					"resourceType": "Observation",
					"id": "cefox-screen",
					"category": [{"coding": [{"code": "laboratory"}]}],
					"code": {"text": "Cefoxitin screen"},
					"specimen": {"reference": "Specimen/spec-2"},
					"valueCodeableConcept": {"text": "Positive"}
				}
			},
			{
				"resource": {
					"resourceType": "Observation",
					"id": "oxacillin-1",
					"category": [{"coding": [{"code": "laboratory"}]}],
					"code": {"text": "Oxacillin [Susceptibility] by MIC"},
					"derivedFrom": [{"reference": "Observation/organism-1"}],
					"valueQuantity": {"value": 0.25, "unit": "mg/L"}
				}
			}
		]
	}`)

	inputs, err := newTestAdapter().Parse(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, inputs, 3)

	foundMRSAFlag := false
	foundSusceptibility := false
	for _, in := range inputs {
		if in.HasPhenotype(domain.PhenotypeMRSA) {
			foundMRSAFlag = true
		}
		if in.Antibiotic == "Oxacillin" {
			foundSusceptibility = true
			assert.Equal(t, domain.SpecimenRef("Specimen/spec-2"), in.Specimen)
			assert.True(t, in.Value.MICPresent)
			assert.Equal(t, 0.25, in.Value.MICValue)
		}
	}
	assert.True(t, foundMRSAFlag, "expected an MRSA phenotype flag from the cefoxitin screen")
	assert.True(t, foundSusceptibility, "expected an oxacillin susceptibility input")
}

func TestParseMalformedPayload(t *testing.T) {
	_, err := newTestAdapter().Parse(context.Background(), []byte(`{not json`))
	assert.Error(t, err, "expected AdapterError for malformed payload")
}
