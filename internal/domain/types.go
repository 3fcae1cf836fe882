// Package domain holds the core value types of the classification engine:
// organism/antibiotic keys, measurements, rule catalog entries, and
// classification results. Everything here is an immutable value created
// per request; nothing in this package owns mutable process state.
package domain

import "strings"

// OrganismKey is the canonical opaque identifier of a microbial taxon.
// Two OrganismKeys are equal iff they were derived from inputs that
// normalize to the same canonical string.
type OrganismKey string

// UnresolvedOrganism is the sentinel returned by the terminology normalizer
// when an organism designator cannot be resolved to a canonical key.
const UnresolvedOrganism OrganismKey = ""

// Unresolved reports whether the key could not be normalized.
func (k OrganismKey) Unresolved() bool { return k == UnresolvedOrganism }

// AntibioticKey is the canonical opaque identifier of an antimicrobial agent.
type AntibioticKey string

// UnresolvedAntibiotic is the sentinel for an antibiotic that failed normalization.
const UnresolvedAntibiotic AntibioticKey = ""

// Unresolved reports whether the key could not be normalized.
func (k AntibioticKey) Unresolved() bool { return k == UnresolvedAntibiotic }

// MethodKind identifies which susceptibility testing method produced a
// measurement. It determines which Measurement variant is valid.
type MethodKind string

const (
	MethodMIC       MethodKind = "MIC"
	MethodDISC      MethodKind = "DISC"
	MethodScreen    MethodKind = "SCREEN"
	MethodPhenotype MethodKind = "PHENOTYPE"
	MethodGradient  MethodKind = "GRADIENT"
)

// Valid reports whether m is one of the declared method kinds.
func (m MethodKind) Valid() bool {
	switch m {
	case MethodMIC, MethodDISC, MethodScreen, MethodPhenotype, MethodGradient:
		return true
	}
	return false
}

// ScreenResult is the outcome of a qualitative screening test.
type ScreenResult string

const (
	ScreenPositive     ScreenResult = "POSITIVE"
	ScreenNegative     ScreenResult = "NEGATIVE"
	ScreenIndeterminate ScreenResult = "INDETERMINATE"
)

// PhenotypeFlag is a detected resistance phenotype, independent of any one
// susceptibility measurement; it is merged onto sibling inputs during
// grouping (see internal/engine/grouper.go) and consulted by the expert-rule engine.
type PhenotypeFlag string

const (
	PhenotypeESBL             PhenotypeFlag = "ESBL"
	PhenotypeAmpC             PhenotypeFlag = "AmpC"
	PhenotypeCarbapenemase    PhenotypeFlag = "Carbapenemase"
	PhenotypeMRSA             PhenotypeFlag = "MRSA"
	PhenotypeMSSA             PhenotypeFlag = "MSSA"
	PhenotypeVRE              PhenotypeFlag = "VRE"
	PhenotypeVSE              PhenotypeFlag = "VSE"
	PhenotypeInducibleClinda  PhenotypeFlag = "INDUCIBLE_CLINDA"
)

// Comparator is a value prefix carried from source data (e.g. HL7 "<=0.25")
// into the rationale, even though breakpoint comparison uses the bare number.
type Comparator string

const (
	ComparatorNone Comparator = ""
	ComparatorLE   Comparator = "<="
	ComparatorLT   Comparator = "<"
	ComparatorGE   Comparator = ">="
	ComparatorGT   Comparator = ">"
)

// Measurement is a tagged union over the value produced by a susceptibility
// test. Exactly one field group is populated, selected by Kind; callers
// must never read a field belonging to another Kind.
type Measurement struct {
	Kind MethodKind `json:"kind"`

	// MIC: micrograms-per-millilitre, always positive when Present.
	MICValue      float64    `json:"micValue,omitempty"`
	MICComparator Comparator `json:"micComparator,omitempty"`
	MICPresent    bool       `json:"micPresent,omitempty"`

	// DISC: zone diameter in millimetres, always a positive integer when Present.
	DiscValue      int        `json:"discValue,omitempty"`
	DiscComparator Comparator `json:"discComparator,omitempty"`
	DiscPresent    bool       `json:"discPresent,omitempty"`

	// SCREEN:
	Screen ScreenResult `json:"screen,omitempty"`

	// PHENOTYPE:
	Phenotype PhenotypeFlag `json:"phenotype,omitempty"`
}

// VariantAgrees reports whether the Measurement's populated variant matches
// its declared Kind, per the "MethodKind and Measurement variant must
// agree" invariant.
func (m Measurement) VariantAgrees() bool {
	switch m.Kind {
	case MethodMIC, MethodGradient:
		return true // absence of MICPresent is legal; gating handles "missing"
	case MethodDISC:
		return true
	case MethodScreen:
		return m.Screen == ScreenPositive || m.Screen == ScreenNegative || m.Screen == ScreenIndeterminate
	case MethodPhenotype:
		return m.Phenotype != ""
	default:
		return false
	}
}

// SpecimenRef is an opaque reference to the specimen/isolate a measurement
// was derived from. It is treated as an opaque string by the engine,
// including when pseudonymized upstream.
type SpecimenRef string

// AuxKey names a well-known entry in ClassificationInput.Auxiliary.
const (
	AuxAmbiguousOrganism = "ambiguous-organism"
	AuxPatientID         = "patient-id"
	AuxComparator        = "comparator"
	AuxSourcePreference  = "source-preference"
)

// ClassificationInput is the uniform record produced by every input adapter
// and consumed by grouping, gating, the rule engine, and the breakpoint
// interpreter.
type ClassificationInput struct {
	Specimen   SpecimenRef                `json:"specimen"`
	Organism   OrganismKey                `json:"organism,omitempty"`
	Antibiotic AntibioticKey              `json:"antibiotic,omitempty"`
	Method     MethodKind                 `json:"method"`
	Value      Measurement                `json:"value"`
	Phenotypes map[PhenotypeFlag]struct{} `json:"phenotypes,omitempty"`
	Auxiliary  map[string]string          `json:"auxiliary,omitempty"`

	// OrganismOnly marks a record produced purely to carry an organism
	// identification or phenotype flag; it is merged into siblings during
	// grouping and never classified directly.
	OrganismOnly bool `json:"organismOnly,omitempty"`
}

// HasPhenotype reports whether flag is present on the input.
func (in ClassificationInput) HasPhenotype(flag PhenotypeFlag) bool {
	_, ok := in.Phenotypes[flag]
	return ok
}

// WithPhenotypes returns a copy of in with extra phenotype flags merged in.
// ClassificationInput values are otherwise treated as immutable; grouping
// uses this instead of mutating shared records.
func (in ClassificationInput) WithPhenotypes(extra map[PhenotypeFlag]struct{}) ClassificationInput {
	out := in
	merged := make(map[PhenotypeFlag]struct{}, len(in.Phenotypes)+len(extra))
	for k := range in.Phenotypes {
		merged[k] = struct{}{}
	}
	for k := range extra {
		merged[k] = struct{}{}
	}
	out.Phenotypes = merged
	return out
}

// WithOrganism returns a copy of in with Organism set, used by grouping to
// assign an organism onto a susceptibility record that lacked one.
func (in ClassificationInput) WithOrganism(o OrganismKey) ClassificationInput {
	out := in
	out.Organism = o
	return out
}

// WithAux returns a copy of in with an additional auxiliary key/value set.
func (in ClassificationInput) WithAux(key, value string) ClassificationInput {
	out := in
	aux := make(map[string]string, len(in.Auxiliary)+1)
	for k, v := range in.Auxiliary {
		aux[k] = v
	}
	aux[key] = value
	out.Auxiliary = aux
	return out
}

// NormalizeDisplay implements the offline normalization step of the
// terminology normalizer (spec §4.2 step 2): trim, lowercase, fold
// whitespace, strip common qualifiers.
func NormalizeDisplay(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.Join(strings.Fields(s), " ")
	for _, qualifier := range []string{" sp.", " spp.", " group", " species"} {
		s = strings.ReplaceAll(s, qualifier, "")
	}
	s = strings.Trim(s, ".,;: ")
	return s
}

// Decision is the final classification outcome.
type Decision string

const (
	DecisionS              Decision = "S"
	DecisionI              Decision = "I"
	DecisionR              Decision = "R"
	DecisionRR             Decision = "RR"
	DecisionRequiresReview Decision = "Requires Review"
)
