package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xSoVx/amr-project/internal/domain"
)

func TestGateMethodValueMismatch(t *testing.T) {
	in := domain.ClassificationInput{
		Method: domain.MethodMIC,
		Value:  domain.Measurement{Kind: domain.MethodDISC, DiscPresent: true, DiscValue: 20},
	}
	got := Gate(in)
	assert.True(t, got.Fired)
	assert.Equal(t, "method/value inconsistent", got.Reason)
}

func TestGateMissingMICValue(t *testing.T) {
	in := domain.ClassificationInput{
		Organism:   "Escherichia coli",
		Antibiotic: "Amoxicillin",
		Method:     domain.MethodMIC,
		Value:      domain.Measurement{Kind: domain.MethodMIC},
	}
	got := Gate(in)
	assert.True(t, got.Fired)
	assert.Equal(t, "MIC value missing for MIC method", got.Reason)
}

func TestGateMissingDiscValue(t *testing.T) {
	in := domain.ClassificationInput{
		Organism:   "Escherichia coli",
		Antibiotic: "Amoxicillin",
		Method:     domain.MethodDISC,
		Value:      domain.Measurement{Kind: domain.MethodDISC},
	}
	got := Gate(in)
	assert.True(t, got.Fired)
	assert.Equal(t, "Zone diameter missing for disk method", got.Reason)
}

func TestGateUnresolvedOrganism(t *testing.T) {
	in := domain.ClassificationInput{
		Antibiotic: "Amoxicillin",
		Method:     domain.MethodMIC,
		Value:      domain.Measurement{Kind: domain.MethodMIC, MICPresent: true, MICValue: 2},
	}
	got := Gate(in)
	assert.True(t, got.Fired)
	assert.Equal(t, "organism not recognized", got.Reason)
}

func TestGateUnresolvedAntibiotic(t *testing.T) {
	in := domain.ClassificationInput{
		Organism: "Escherichia coli",
		Method:   domain.MethodMIC,
		Value:    domain.Measurement{Kind: domain.MethodMIC, MICPresent: true, MICValue: 2},
	}
	got := Gate(in)
	assert.True(t, got.Fired)
	assert.Equal(t, "antibiotic not recognized", got.Reason)
}

func TestGateMICOutOfRange(t *testing.T) {
	in := domain.ClassificationInput{
		Organism:   "Escherichia coli",
		Antibiotic: "Amoxicillin",
		Method:     domain.MethodMIC,
		Value:      domain.Measurement{Kind: domain.MethodMIC, MICPresent: true, MICValue: 4096},
	}
	got := Gate(in)
	assert.True(t, got.Fired)
	assert.Equal(t, "value out of plausible range", got.Reason)
}

func TestGateDiscOutOfRange(t *testing.T) {
	in := domain.ClassificationInput{
		Organism:   "Escherichia coli",
		Antibiotic: "Amoxicillin",
		Method:     domain.MethodDISC,
		Value:      domain.Measurement{Kind: domain.MethodDISC, DiscPresent: true, DiscValue: 0},
	}
	got := Gate(in)
	assert.True(t, got.Fired)
	assert.Equal(t, "value out of plausible range", got.Reason)
}

func TestGatePasses(t *testing.T) {
	in := domain.ClassificationInput{
		Organism:   "Escherichia coli",
		Antibiotic: "Amoxicillin",
		Method:     domain.MethodMIC,
		Value:      domain.Measurement{Kind: domain.MethodMIC, MICPresent: true, MICValue: 4},
	}
	assert.False(t, Gate(in).Fired)
}
