package engine

import "github.com/xSoVx/amr-project/internal/domain"

// gateResult.Reason is non-empty when a gate fires; the caller turns it directly
// into a REQUIRES_REVIEW result (spec §4.5).
type gateResult struct {
	Reason string
	Fired  bool
}

const (
	micPlausibleMin = 0.001
	micPlausibleMax = 1024.0
	discPlausibleMin = 1
	discPlausibleMax = 100
)

// Gate enforces the method/value preconditions in declared order; the
// first gate that fires wins (spec §4.5). It never returns more than one
// reason, matching the concrete scenarios in spec §8.
func Gate(in domain.ClassificationInput) gateResult {
	if !in.Method.Valid() || in.Value.Kind != in.Method || !in.Value.VariantAgrees() {
		return gateResult{Reason: "method/value inconsistent", Fired: true}
	}
	if in.Method == domain.MethodMIC && !in.Value.MICPresent {
		return gateResult{Reason: "MIC value missing for MIC method", Fired: true}
	}
	if in.Method == domain.MethodDISC && !in.Value.DiscPresent {
		return gateResult{Reason: "Zone diameter missing for disk method", Fired: true}
	}
	if in.Organism.Unresolved() {
		return gateResult{Reason: "organism not recognized", Fired: true}
	}
	if in.Antibiotic.Unresolved() {
		return gateResult{Reason: "antibiotic not recognized", Fired: true}
	}
	if in.Method == domain.MethodMIC && (in.Value.MICValue <= micPlausibleMin || in.Value.MICValue > micPlausibleMax) {
		return gateResult{Reason: "value out of plausible range", Fired: true}
	}
	if in.Method == domain.MethodDISC && (in.Value.DiscValue < discPlausibleMin || in.Value.DiscValue > discPlausibleMax) {
		return gateResult{Reason: "value out of plausible range", Fired: true}
	}
	return gateResult{}
}
