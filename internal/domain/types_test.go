package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMethodKindValid(t *testing.T) {
	tests := []struct {
		name string
		kind MethodKind
		want bool
	}{
		{"mic", MethodMIC, true},
		{"disc", MethodDISC, true},
		{"screen", MethodScreen, true},
		{"phenotype", MethodPhenotype, true},
		{"gradient", MethodGradient, true},
		{"unknown", MethodKind("BOGUS"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Valid())
		})
	}
}

func TestMeasurementVariantAgrees(t *testing.T) {
	tests := []struct {
		name string
		m    Measurement
		want bool
	}{
		{"screen positive", Measurement{Kind: MethodScreen, Screen: ScreenPositive}, true},
		{"screen empty", Measurement{Kind: MethodScreen}, false},
		{"phenotype set", Measurement{Kind: MethodPhenotype, Phenotype: PhenotypeESBL}, true},
		{"phenotype empty", Measurement{Kind: MethodPhenotype}, false},
		{"mic absent value still agrees", Measurement{Kind: MethodMIC}, true},
		{"disc absent value still agrees", Measurement{Kind: MethodDISC}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.m.VariantAgrees())
		})
	}
}

func TestNormalizeDisplay(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims and lowers", "  Escherichia Coli  ", "escherichia coli"},
		{"folds whitespace", "Klebsiella   pneumoniae", "klebsiella pneumoniae"},
		{"strips sp qualifier", "Enterococcus sp.", "enterococcus"},
		{"strips group qualifier", "Streptococcus group", "streptococcus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDisplay(tt.input))
		})
	}
}

func TestClassificationInputWithPhenotypes(t *testing.T) {
	in := ClassificationInput{
		Specimen:   "S1",
		Phenotypes: map[PhenotypeFlag]struct{}{PhenotypeESBL: {}},
	}
	out := in.WithPhenotypes(map[PhenotypeFlag]struct{}{PhenotypeMRSA: {}})

	assert.True(t, out.HasPhenotype(PhenotypeESBL))
	assert.True(t, out.HasPhenotype(PhenotypeMRSA))
	assert.False(t, in.HasPhenotype(PhenotypeMRSA), "original input must not be mutated")
}

func TestGenusOf(t *testing.T) {
	assert.Equal(t, "Escherichia", GenusOf("Escherichia coli"))
	assert.Equal(t, "Staphylococcus", GenusOf("Staphylococcus"))
}
