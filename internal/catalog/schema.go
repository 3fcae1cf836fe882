// Package catalog implements the rule catalog store: parsing declarative
// on-disk documents into an immutable domain.RuleCatalog, schema/semantic
// validation, and atomic hot-reload (spec §4.1, §6.2).
package catalog

import (
	"fmt"

	"github.com/xSoVx/amr-project/internal/domain"
)

// document is the declarative shape of one catalog file (spec §6.2): a
// directory is the union of its files' documents. Both YAML and JSON are
// accepted, so every field carries both tag kinds.
type document struct {
	Version             string               `yaml:"version" json:"version"`
	Breakpoints         []breakpointDoc      `yaml:"breakpoints" json:"breakpoints"`
	ExpertRules         []expertRuleDoc      `yaml:"expertRules" json:"expertRules"`
	IntrinsicResistance []intrinsicDoc       `yaml:"intrinsicResistance" json:"intrinsicResistance"`
	OrganismGroups      map[string][]string  `yaml:"organismGroups" json:"organismGroups"`
	AntibioticClasses   map[string][]string  `yaml:"antibioticClasses" json:"antibioticClasses"`
	SourcePreference    []string             `yaml:"sourcePreference" json:"sourcePreference"`
	MethodPrecedence    []string             `yaml:"methodPrecedence" json:"methodPrecedence"`
	MRSAExceptionClass  string               `yaml:"mrsaExceptionClass" json:"mrsaExceptionClass"`
	MRSAReview          bool                 `yaml:"mrsaExceptionsRequireReview" json:"mrsaExceptionsRequireReview"`
	ESBLExceptionClasses []string            `yaml:"esblExceptionClasses" json:"esblExceptionClasses"`
}

type scopeDoc struct {
	Kind  string `yaml:"kind" json:"kind"` // "exact" | "group" | "genus"
	Value string `yaml:"value" json:"value"`
}

type breakpointDoc struct {
	OrganismScope         scopeDoc `yaml:"organismScope" json:"organismScope"`
	Antibiotic            string   `yaml:"antibiotic" json:"antibiotic"`
	Method                string   `yaml:"method" json:"method"`
	Source                string   `yaml:"source" json:"source"`
	VersionLabel          string   `yaml:"versionLabel" json:"versionLabel"`
	SThreshold            *float64 `yaml:"sThreshold" json:"sThreshold"`
	IThreshold            *float64 `yaml:"iThreshold" json:"iThreshold"`
	RThreshold            *float64 `yaml:"rThreshold" json:"rThreshold"`
	Comparator            string   `yaml:"comparator" json:"comparator"`
	Unit                  string   `yaml:"unit" json:"unit"`
	RareResistanceCapable bool     `yaml:"rareResistanceCapable" json:"rareResistanceCapable"`
	RareMargin            float64  `yaml:"rareMargin" json:"rareMargin"`
}

type valuePredicateDoc struct {
	Comparator string  `yaml:"comparator" json:"comparator"` // "gt" | "lt" | "gte" | "lte"
	Threshold  float64 `yaml:"threshold" json:"threshold"`
}

type whenDoc struct {
	OrganismScopes    []scopeDoc         `yaml:"organismScopes" json:"organismScopes"`
	Phenotypes        []string           `yaml:"phenotypes" json:"phenotypes"`
	Antibiotics       []string           `yaml:"antibiotics" json:"antibiotics"`
	AntibioticClasses []string           `yaml:"antibioticClasses" json:"antibioticClasses"`
	Methods           []string           `yaml:"methods" json:"methods"`
	ValuePredicate    *valuePredicateDoc `yaml:"valuePredicate" json:"valuePredicate"`
}

type effectDoc struct {
	Decision          string `yaml:"decision" json:"decision"`
	RationaleTemplate string `yaml:"rationaleTemplate" json:"rationaleTemplate"`
	AppliesToClass    string `yaml:"appliesToClass" json:"appliesToClass"`
}

type expertRuleDoc struct {
	ID         string    `yaml:"id" json:"id"`
	Priority   int       `yaml:"priority" json:"priority"`
	When       whenDoc   `yaml:"when" json:"when"`
	Effect     effectDoc `yaml:"effect" json:"effect"`
	Exceptions []string  `yaml:"exceptions" json:"exceptions"`
}

type intrinsicDoc struct {
	ID            string   `yaml:"id" json:"id"`
	OrganismScope scopeDoc `yaml:"organismScope" json:"organismScope"`
	Antibiotics   []string `yaml:"antibiotics" json:"antibiotics"`
	Class         string   `yaml:"class" json:"class"`
}

func toScope(d scopeDoc, path string, violations *[]domain.SchemaViolation) domain.OrganismScope {
	var kind domain.ScopeKind
	switch d.Kind {
	case "exact", "":
		kind = domain.ScopeExact
	case "group":
		kind = domain.ScopeGroup
	case "genus":
		kind = domain.ScopeGenus
	default:
		*violations = append(*violations, domain.SchemaViolation{Path: path, Reason: fmt.Sprintf("unknown organism scope kind %q", d.Kind)})
	}
	return domain.OrganismScope{Kind: kind, Value: d.Value}
}

func buildValuePredicate(d *valuePredicateDoc) func(domain.Measurement) bool {
	if d == nil {
		return nil
	}
	op, threshold := d.Comparator, d.Threshold
	return func(m domain.Measurement) bool {
		var v float64
		switch m.Kind {
		case domain.MethodMIC, domain.MethodGradient:
			if !m.MICPresent {
				return false
			}
			v = m.MICValue
		case domain.MethodDISC:
			if !m.DiscPresent {
				return false
			}
			v = float64(m.DiscValue)
		default:
			return false
		}
		switch op {
		case "gt":
			return v > threshold
		case "gte":
			return v >= threshold
		case "lt":
			return v < threshold
		case "lte":
			return v <= threshold
		default:
			return false
		}
	}
}
