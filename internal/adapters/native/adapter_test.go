package native

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xSoVx/amr-project/internal/domain"
	"github.com/xSoVx/amr-project/internal/terminology"
)

func TestParseS1(t *testing.T) {
	adapter := NewAdapter(terminology.NewNormalizer(terminology.Options{}))
	inputs, err := adapter.Parse(context.Background(), []Record{
		{
			Specimen:          "S1",
			OrganismDisplay:   "Escherichia coli",
			AntibioticDisplay: "Amoxicillin",
			Method:            domain.MethodMIC,
			Value:             domain.Measurement{Kind: domain.MethodMIC, MICPresent: true, MICValue: 4.0},
		},
	})
	require.NoError(t, err)
	require.Len(t, inputs, 1)

	in := inputs[0]
	assert.Equal(t, domain.OrganismKey("Escherichia coli"), in.Organism)
	assert.Equal(t, domain.AntibioticKey("Amoxicillin"), in.Antibiotic)
	assert.True(t, in.Value.MICPresent)
	assert.Equal(t, 4.0, in.Value.MICValue)
}

func TestParseUnresolvedOrganism(t *testing.T) {
	adapter := NewAdapter(terminology.NewNormalizer(terminology.Options{}))
	inputs, err := adapter.Parse(context.Background(), []Record{
		{
			OrganismDisplay:   "Xyzbacter novus",
			AntibioticDisplay: "Ampicillin",
			Method:            domain.MethodMIC,
			Value:             domain.Measurement{Kind: domain.MethodMIC, MICPresent: true, MICValue: 2.0},
		},
	})
	require.NoError(t, err)
	assert.True(t, inputs[0].Organism.Unresolved())
}

func TestParseJSONArray(t *testing.T) {
	adapter := NewAdapter(terminology.NewNormalizer(terminology.Options{}))
	raw := []byte(`[{"specimen":"S1","organism":"Escherichia coli","antibiotic":"Amoxicillin","method":"MIC","value":{"kind":"MIC","micPresent":true,"micValue":4}}]`)
	inputs, err := adapter.ParseJSON(context.Background(), raw)
	require.NoError(t, err)
	assert.Len(t, inputs, 1)
}

func TestParseRejectsUnknownMethod(t *testing.T) {
	adapter := NewAdapter(terminology.NewNormalizer(terminology.Options{}))
	_, err := adapter.Parse(context.Background(), []Record{{Method: domain.MethodKind("BOGUS")}})
	assert.Error(t, err, "expected AdapterError for unknown method kind")
}
