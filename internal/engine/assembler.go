package engine

import "github.com/xSoVx/amr-project/internal/domain"

// Assemble implements the decision assembler (spec §4.9): it builds the
// terminal ClassificationResult, echoing the originating input and
// stamping the catalog version that produced the decision. Field order on
// domain.ClassificationResult is fixed at the type definition, so any
// serialization a collaborator performs is stable by construction.
func Assemble(cat *domain.RuleCatalog, p pending) domain.ClassificationResult {
	return domain.ClassificationResult{
		Specimen:       p.Input.Specimen,
		Organism:       p.Input.Organism,
		Antibiotic:     p.Input.Antibiotic,
		Method:         p.Input.Method,
		Input:          p.Input,
		Decision:       p.Decision,
		Reason:         p.Reason,
		FiredRules:     p.FiredRules,
		CatalogVersion: cat.VersionLabel,
	}
}
