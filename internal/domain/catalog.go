package domain

// BreakpointSource identifies which published breakpoint table an entry
// came from. Multiple sources may declare an entry for the same
// (organism-scope, antibiotic, method); resolution prefers the
// request-level or catalog-default source, falling back in declared order.
type BreakpointSource string

const (
	SourceEUCAST BreakpointSource = "EUCAST"
	SourceCLSI   BreakpointSource = "CLSI"
	SourceLOCAL  BreakpointSource = "LOCAL"
)

// BreakpointComparator names the direction of comparison a BreakpointEntry uses.
// DISC is inverse: larger zones mean more susceptible.
type BreakpointComparator string

const (
	ComparatorLE_S_GE_R       BreakpointComparator = "LE_S_GE_R"
	ComparatorLE_S_GT_R       BreakpointComparator = "LE_S_GT_R"
	ComparatorLE_S_LE_I_GT_R  BreakpointComparator = "LE_S_LE_I_GT_R"
	ComparatorInverseForDisc  BreakpointComparator = "INVERSE_FOR_DISC"
)

// Unit is the measurement unit a breakpoint is expressed in.
type Unit string

const (
	UnitMgPerL Unit = "MG_PER_L"
	UnitMM     Unit = "MM"
)

// ScopeKind orders OrganismScope specificity: exact beats group beats genus.
type ScopeKind int

const (
	ScopeExact ScopeKind = iota
	ScopeGroup
	ScopeGenus
)

// OrganismScope matches an OrganismKey either exactly, via a named catalog
// group, or by genus prefix. Multiple scopes may match a given organism;
// the most specific (lowest ScopeKind) wins.
type OrganismScope struct {
	Kind  ScopeKind
	Value string // exact key, group name, or genus name
}

// Matches reports whether scope applies to organism, consulting groups for
// group-kind scopes. genusOf extracts the genus portion of an OrganismKey.
func (scope OrganismScope) Matches(organism OrganismKey, groups map[string]map[OrganismKey]struct{}, genusOf func(OrganismKey) string) bool {
	switch scope.Kind {
	case ScopeExact:
		return string(organism) == scope.Value
	case ScopeGroup:
		members, ok := groups[scope.Value]
		if !ok {
			return false
		}
		_, present := members[organism]
		return present
	case ScopeGenus:
		return genusOf(organism) == scope.Value
	default:
		return false
	}
}

// BreakpointEntry declares the S/I/R thresholds for one
// (organism-scope, antibiotic, method, source) combination.
type BreakpointEntry struct {
	OrganismScope OrganismScope
	Antibiotic    AntibioticKey
	Method        MethodKind
	Source        BreakpointSource
	VersionLabel  string
	SThreshold    *float64
	IThreshold    *float64
	RThreshold    *float64
	Comparator    BreakpointComparator
	Unit          Unit

	// RareResistanceCapable flags that this (organism-scope, antibiotic) pair
	// may yield RR instead of R when the value clears the rare margin.
	RareResistanceCapable bool
	RareMargin            float64
}

// ExpertRulePredicate is the declarative "when" side of an ExpertRule.
type ExpertRulePredicate struct {
	OrganismScopes    []OrganismScope
	Phenotypes        []PhenotypeFlag
	Antibiotics       []AntibioticKey
	AntibioticClasses []string
	Methods           []MethodKind
	// ValuePredicate, if non-nil, additionally gates on the measurement.
	ValuePredicate func(Measurement) bool
	// AuxiliaryPredicate, if non-nil, additionally gates on auxiliary data.
	AuxiliaryPredicate func(map[string]string) bool
}

// ExpertRuleEffect is the declarative "effect" side of an ExpertRule.
type ExpertRuleEffect struct {
	Decision          Decision
	RationaleTemplate string
	AppliesToClass    string // antibiotic-class filter; empty means the rule's own antibiotic/class list
}

// ExpertRule is a catalog-declared override evaluated ahead of breakpoint
// interpretation. Priority is a total order; ties broken by ID.
type ExpertRule struct {
	ID         string
	Priority   int
	When       ExpertRulePredicate
	Effect     ExpertRuleEffect
	Exceptions map[AntibioticKey]struct{}
}

// IntrinsicRule declares an antibiotic (or class) as inherently resistant
// for an organism scope, regardless of measured value.
type IntrinsicRule struct {
	ID            string
	OrganismScope OrganismScope
	Antibiotics   map[AntibioticKey]struct{}
	Class         string
}

// RuleCatalog is the immutable, versioned aggregate published by the
// catalog store. Once constructed it is never mutated; reload constructs a
// brand new value and atomically swaps the published pointer.
type RuleCatalog struct {
	VersionLabel       string
	Entries            []BreakpointEntry
	ExpertRules        []ExpertRule
	IntrinsicResistance []IntrinsicRule
	OrganismGroups     map[string]map[OrganismKey]struct{}
	AntibioticClasses  map[string]map[AntibioticKey]struct{}

	// SourcePreferenceOrder is the fallback order used when the requested
	// source lacks an entry; index 0 is the default.
	SourcePreferenceOrder []BreakpointSource

	// MethodPrecedence configures the conflict resolver's default
	// preference (spec §4.8); empty means "always review on conflict".
	MethodPrecedence []MethodKind

	// MRSAExceptionClass names the AntibioticClasses entry holding the
	// anti-MRSA-cephalosporin exception set (open question #1).
	MRSAExceptionClass string
	// MRSAExceptionsRequireReview, if true, forces REQUIRES_REVIEW for the
	// exception set instead of falling through to breakpoint interpretation.
	MRSAExceptionsRequireReview bool

	// ESBLExceptionClasses names AntibioticClasses entries exempted from the
	// ESBL beta-lactam override (carbapenems, beta-lactam/inhibitor combos).
	ESBLExceptionClasses []string
}

// AntibioticsInClass resolves a named class to its member set, or nil if unknown.
func (c *RuleCatalog) AntibioticsInClass(class string) map[AntibioticKey]struct{} {
	return c.AntibioticClasses[class]
}

// GenusOf returns the genus token of an organism key of the form
// "Genus species", used by genus-level OrganismScope matching.
func GenusOf(o OrganismKey) string {
	s := string(o)
	for i, r := range s {
		if r == ' ' {
			return s[:i]
		}
	}
	return s
}
