package engine

import (
	"fmt"

	"github.com/xSoVx/amr-project/internal/domain"
)

// pending is one not-yet-finalized result the conflict resolver can
// reconcile with its siblings for the same (specimen, organism, antibiotic).
type pending struct {
	Input      domain.ClassificationInput
	Decision   domain.Decision
	Reason     string
	FiredRules []string
}

func groupKey(in domain.ClassificationInput) string {
	return fmt.Sprintf("%s\x1f%s\x1f%s", in.Specimen, in.Organism, in.Antibiotic)
}

// ResolveConflicts implements spec §4.8: when grouped inputs yield more
// than one measurement for the same (specimen, organism, antibiotic), the
// results are reconciled into one per spec's conflict policy. Results for
// distinct (specimen, organism, antibiotic) triples pass through unchanged,
// in the order their first member appeared (spec §5 ordering guarantee).
func ResolveConflicts(cat *domain.RuleCatalog, items []pending) []pending {
	groups := map[string][]pending{}
	var order []string
	for _, item := range items {
		key := groupKey(item.Input)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], item)
	}

	var out []pending
	for _, key := range order {
		out = append(out, resolveGroup(cat, groups[key])...)
	}
	return out
}

func resolveGroup(cat *domain.RuleCatalog, group []pending) []pending {
	if len(group) == 1 {
		return group
	}

	if allSameDecision(group) {
		first := group[0]
		if len(group) > 1 {
			first.Reason = fmt.Sprintf("%s (confirmed by %d concordant measurements)", first.Reason, len(group))
		}
		return []pending{first}
	}

	// Expert-rule-produced decisions are never overridden by a conflicting
	// breakpoint result for the same pair.
	for _, item := range group {
		if len(item.FiredRules) > 0 {
			return []pending{item}
		}
	}

	methods := distinctMethods(group)
	if len(methods) == 1 {
		return []pending{{
			Input:    group[0].Input,
			Decision: domain.DecisionRequiresReview,
			Reason:   "duplicate measurements disagree",
		}}
	}

	if precedence, ok := preferredMethod(cat, methods); ok {
		preferred, other := splitByMethod(group, precedence)
		return []pending{{
			Input:    preferred.Input,
			Decision: preferred.Decision,
			Reason:   fmt.Sprintf("%s preferred; %s disagrees (%s => %s)", methodLabel(preferred.Input.Method), methodLabel(other.Input.Method), valueLabel(other.Input), other.Decision),
		}}
	}

	reason := "conflicting methods:"
	for i, item := range group {
		if i > 0 {
			reason += ","
		}
		reason += fmt.Sprintf(" %s=%s", item.Input.Method, item.Decision)
	}
	return []pending{{Input: group[0].Input, Decision: domain.DecisionRequiresReview, Reason: reason}}
}

func allSameDecision(group []pending) bool {
	for _, item := range group[1:] {
		if item.Decision != group[0].Decision {
			return false
		}
	}
	return true
}

func distinctMethods(group []pending) []domain.MethodKind {
	seen := map[domain.MethodKind]struct{}{}
	var methods []domain.MethodKind
	for _, item := range group {
		if _, ok := seen[item.Input.Method]; !ok {
			seen[item.Input.Method] = struct{}{}
			methods = append(methods, item.Input.Method)
		}
	}
	return methods
}

// preferredMethod resolves the catalog's configured method precedence
// (default shown in spec §4.8 is MIC > DISC; empty means "always review on
// conflict"). It returns the first method in the precedence list that
// appears among the conflicting methods.
func preferredMethod(cat *domain.RuleCatalog, methods []domain.MethodKind) (domain.MethodKind, bool) {
	if len(cat.MethodPrecedence) == 0 {
		return "", false
	}
	present := map[domain.MethodKind]struct{}{}
	for _, m := range methods {
		present[m] = struct{}{}
	}
	for _, m := range cat.MethodPrecedence {
		if _, ok := present[m]; ok {
			return m, true
		}
	}
	return "", false
}

func splitByMethod(group []pending, preferred domain.MethodKind) (pending, pending) {
	var preferredItem, otherItem pending
	for _, item := range group {
		if item.Input.Method == preferred {
			preferredItem = item
		} else {
			otherItem = item
		}
	}
	return preferredItem, otherItem
}

func methodLabel(m domain.MethodKind) string {
	if m == domain.MethodDISC {
		return "disc diffusion"
	}
	return string(m)
}

func valueLabel(in domain.ClassificationInput) string {
	if in.Method == domain.MethodDISC {
		return fmt.Sprintf("%d mm", in.Value.DiscValue)
	}
	return fmt.Sprintf("%s mg/L", formatNum(in.Value.MICValue))
}
