package hl7v2

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xSoVx/amr-project/internal/domain"
	"github.com/xSoVx/amr-project/internal/terminology"
)

func newTestAdapter() *Adapter {
	return NewAdapter(terminology.NewNormalizer(terminology.Options{}))
}

const sampleORU = "MSH|^~\\&|LIS|HOSP|EHR|HOSP|202601010000||ORU^R01|MSG001|P|2.3\r" +
	"PID|1||PAT123^^^HOSP^MR\r" +
	"SPM|1|SPEC001^^^HOSP\r" +
	"OBX|1|ST|ORG^Organism^LOCAL||Escherichia coli\r" +
	"OBX|2|NM|AMP-MIC^Ampicillin MIC^LOCAL||<=0.25\r" +
	"OBX|3|NM|CRO-DISC^Ceftriaxone DISC^LOCAL||>29\r"

func TestParseORUMessage(t *testing.T) {
	inputs, err := newTestAdapter().Parse(context.Background(), []byte(sampleORU))
	require.NoError(t, err)
	require.Len(t, inputs, 3)

	organism := inputs[0]
	assert.Equal(t, domain.OrganismKey("Escherichia coli"), organism.Organism)
	assert.True(t, organism.OrganismOnly)
	assert.Equal(t, "PAT123", organism.Auxiliary[domain.AuxPatientID])
	for _, in := range inputs {
		assert.Equal(t, domain.SpecimenRef("SPEC001"), in.Specimen)
	}

	mic := inputs[1]
	assert.Equal(t, domain.MethodMIC, mic.Method)
	assert.Equal(t, domain.AntibioticKey("Ampicillin"), mic.Antibiotic)
	assert.True(t, mic.Value.MICPresent)
	assert.Equal(t, 0.25, mic.Value.MICValue)
	assert.Equal(t, domain.ComparatorLE, mic.Value.MICComparator)

	disc := inputs[2]
	assert.Equal(t, domain.MethodDISC, disc.Method)
	assert.Equal(t, domain.AntibioticKey("Ceftriaxone"), disc.Antibiotic)
	assert.True(t, disc.Value.DiscPresent)
	assert.Equal(t, 29, disc.Value.DiscValue)
	assert.Equal(t, domain.ComparatorGT, disc.Value.DiscComparator)
}

func TestParseMissingMSH(t *testing.T) {
	_, err := newTestAdapter().Parse(context.Background(), []byte("PID|1||PAT123\r"))
	require.Error(t, err)
	var adapterErr *domain.AdapterError
	require.True(t, asAdapterError(err, &adapterErr), "expected *domain.AdapterError, got %T", err)
}

func TestParseMissingOBXYieldsEmptyResult(t *testing.T) {
	raw := "MSH|^~\\&|LIS|HOSP|EHR|HOSP|202601010000||ORU^R01|MSG002|P|2.3\r" +
		"PID|1||PAT456\r"
	inputs, err := newTestAdapter().Parse(context.Background(), []byte(raw))
	require.NoError(t, err)
	assert.Empty(t, inputs)
}

func TestParsePhenotypeScreenMergesIntoOrganism(t *testing.T) {
	raw := "MSH|^~\\&|LIS|HOSP|EHR|HOSP|202601010000||ORU^R01|MSG003|P|2.3\r" +
		"SPM|1|SPEC002\r" +
		"OBX|1|ST|ORG^Organism^LOCAL||Staphylococcus aureus\r" +
		"OBX|2|ST|MRSA-SCREEN^Cefoxitin Screen^LOCAL||POS\r"

	inputs, err := newTestAdapter().Parse(context.Background(), []byte(raw))
	require.NoError(t, err)
	require.Len(t, inputs, 1, "expected phenotype to merge into organism input")
	assert.True(t, inputs[0].HasPhenotype(domain.PhenotypeMRSA))
}

func asAdapterError(err error, target **domain.AdapterError) bool {
	if e, ok := err.(*domain.AdapterError); ok {
		*target = e
		return true
	}
	return false
}
