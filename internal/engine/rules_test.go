package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xSoVx/amr-project/internal/domain"
)

func minimalCatalog() *domain.RuleCatalog {
	return &domain.RuleCatalog{
		VersionLabel: "TEST-1",
		AntibioticClasses: map[string]map[domain.AntibioticKey]struct{}{
			"beta-lactam":             {"Ceftazidime": {}, "Oxacillin": {}},
			"carbapenem":              {"Meropenem": {}},
			"anti-mrsa-cephalosporin": {"Ceftaroline": {}},
		},
		OrganismGroups: map[string]map[domain.OrganismKey]struct{}{
			"Enterobacterales": {"Escherichia coli": {}},
		},
		MRSAExceptionClass:   "anti-mrsa-cephalosporin",
		ESBLExceptionClasses: []string{"carbapenem"},
	}
}

func TestEvaluateExpertRulesIntrinsicWins(t *testing.T) {
	cat := minimalCatalog()
	cat.IntrinsicResistance = []domain.IntrinsicRule{
		{ID: "INTR-1", OrganismScope: domain.OrganismScope{Kind: domain.ScopeExact, Value: "Escherichia coli"}, Antibiotics: map[domain.AntibioticKey]struct{}{"Ceftazidime": {}}},
	}
	in := domain.ClassificationInput{Organism: "Escherichia coli", Antibiotic: "Ceftazidime", Phenotypes: map[domain.PhenotypeFlag]struct{}{}}

	got := EvaluateExpertRules(cat, in)
	require.True(t, got.Fired)
	assert.Equal(t, domain.DecisionR, got.Decision)
	assert.Equal(t, "intrinsic resistance per rule INTR-1", got.Reason)
}

func TestEvaluateExpertRulesIntrinsicCombinesWithConcordantPhenotype(t *testing.T) {
	cat := minimalCatalog()
	cat.IntrinsicResistance = []domain.IntrinsicRule{
		{ID: "INTR-1", OrganismScope: domain.OrganismScope{Kind: domain.ScopeExact, Value: "Escherichia coli"}, Antibiotics: map[domain.AntibioticKey]struct{}{"Ceftazidime": {}}},
	}
	in := domain.ClassificationInput{
		Organism: "Escherichia coli", Antibiotic: "Ceftazidime",
		Phenotypes: map[domain.PhenotypeFlag]struct{}{domain.PhenotypeESBL: {}},
	}

	got := EvaluateExpertRules(cat, in)
	require.True(t, got.Fired)
	assert.Equal(t, domain.DecisionR, got.Decision)
	assert.Equal(t, "intrinsic resistance per rule INTR-1 (also: ESBL override for beta-lactam class)", got.Reason)
	assert.Len(t, got.FiredRules, 2)
}

func TestEvaluatePhenotypeOverridesVRE(t *testing.T) {
	cat := minimalCatalog()
	in := domain.ClassificationInput{
		Organism: "Enterococcus faecium", Antibiotic: "Vancomycin",
		Phenotypes: map[domain.PhenotypeFlag]struct{}{domain.PhenotypeVRE: {}},
	}
	got := EvaluateExpertRules(cat, in)
	require.True(t, got.Fired)
	assert.Equal(t, domain.DecisionR, got.Decision)
	assert.Equal(t, "VRE override for vancomycin", got.Reason)
}

func TestEvaluatePhenotypeOverridesCarbapenemaseScoped(t *testing.T) {
	cat := minimalCatalog()
	inCarbapenem := domain.ClassificationInput{
		Organism: "Escherichia coli", Antibiotic: "Meropenem",
		Phenotypes: map[domain.PhenotypeFlag]struct{}{domain.PhenotypeCarbapenemase: {}},
	}
	got := EvaluateExpertRules(cat, inCarbapenem)
	require.True(t, got.Fired, "expected carbapenemase override to fire on a carbapenem")
	assert.Equal(t, domain.DecisionR, got.Decision)

	inBetaLactam := domain.ClassificationInput{
		Organism: "Escherichia coli", Antibiotic: "Ceftazidime",
		Phenotypes: map[domain.PhenotypeFlag]struct{}{domain.PhenotypeCarbapenemase: {}},
	}
	assert.False(t, EvaluateExpertRules(cat, inBetaLactam).Fired, "carbapenemase override must not fire outside the carbapenem class")
}

func TestEvaluateCatalogRulePriorityAndExceptions(t *testing.T) {
	cat := minimalCatalog()
	cat.ExpertRules = []domain.ExpertRule{
		{
			ID:       "HIGH",
			Priority: 10,
			When:     domain.ExpertRulePredicate{AntibioticClasses: []string{"beta-lactam"}},
			Effect:   domain.ExpertRuleEffect{Decision: domain.DecisionRequiresReview, RationaleTemplate: "flagged by HIGH"},
			Exceptions: map[domain.AntibioticKey]struct{}{
				"Oxacillin": {},
			},
		},
		{
			ID:       "LOW",
			Priority: 1,
			When:     domain.ExpertRulePredicate{AntibioticClasses: []string{"beta-lactam"}},
			Effect:   domain.ExpertRuleEffect{Decision: domain.DecisionR, RationaleTemplate: "flagged by LOW"},
		},
	}

	t.Run("higher priority wins", func(t *testing.T) {
		in := domain.ClassificationInput{Organism: "Escherichia coli", Antibiotic: "Ceftazidime", Phenotypes: map[domain.PhenotypeFlag]struct{}{}}
		got := EvaluateExpertRules(cat, in)
		require.True(t, got.Fired)
		assert.Equal(t, "HIGH", got.FiredRules[0])
	})

	t.Run("exception falls through to the next rule", func(t *testing.T) {
		in := domain.ClassificationInput{Organism: "Staphylococcus aureus", Antibiotic: "Oxacillin", Phenotypes: map[domain.PhenotypeFlag]struct{}{}}
		got := EvaluateExpertRules(cat, in)
		require.True(t, got.Fired)
		assert.Equal(t, "LOW", got.FiredRules[0])
	})
}

func TestEvaluateExpertRulesNoMatch(t *testing.T) {
	cat := minimalCatalog()
	in := domain.ClassificationInput{Organism: "Escherichia coli", Antibiotic: "Gentamicin", Phenotypes: map[domain.PhenotypeFlag]struct{}{}}
	assert.False(t, EvaluateExpertRules(cat, in).Fired)
}
