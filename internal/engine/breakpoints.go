package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xSoVx/amr-project/internal/domain"
)

// Interpret runs the breakpoint interpreter (spec §4.7): it only executes
// when no expert-rule override fired. requestedSource is the request-level
// source preference (empty means "use the catalog default", i.e. index 0
// of cat.SourcePreferenceOrder).
func Interpret(cat *domain.RuleCatalog, in domain.ClassificationInput, requestedSource domain.BreakpointSource) (domain.Decision, string) {
	entry, source := selectEntry(cat, in, requestedSource)
	if entry == nil {
		return domain.DecisionRequiresReview, "no applicable breakpoint"
	}
	if entry.Method == domain.MethodDISC {
		return compareDisc(*entry, in.Value, source)
	}
	return compareMIC(*entry, in.Value, source)
}

// selectEntry implements source selection (request preference, falling
// back through the catalog's declared order) and scope selection (most
// specific match wins: exact > group > genus), per spec §4.7 steps 1–2.
func selectEntry(cat *domain.RuleCatalog, in domain.ClassificationInput, requestedSource domain.BreakpointSource) (*domain.BreakpointEntry, domain.BreakpointSource) {
	order := sourceOrder(cat, requestedSource)

	for _, source := range order {
		var best *domain.BreakpointEntry
		for i := range cat.Entries {
			entry := &cat.Entries[i]
			if entry.Antibiotic != in.Antibiotic || entry.Method != in.Method || entry.Source != source {
				continue
			}
			if !entry.OrganismScope.Matches(in.Organism, cat.OrganismGroups, domain.GenusOf) {
				continue
			}
			if best == nil || entry.OrganismScope.Kind < best.OrganismScope.Kind {
				best = entry
			}
		}
		if best != nil {
			return best, source
		}
	}
	return nil, ""
}

func sourceOrder(cat *domain.RuleCatalog, requestedSource domain.BreakpointSource) []domain.BreakpointSource {
	fallback := cat.SourcePreferenceOrder
	if len(fallback) == 0 {
		fallback = []domain.BreakpointSource{domain.SourceEUCAST, domain.SourceCLSI, domain.SourceLOCAL}
	}
	if requestedSource == "" {
		return fallback
	}
	order := []domain.BreakpointSource{requestedSource}
	for _, s := range fallback {
		if s != requestedSource {
			order = append(order, s)
		}
	}
	return order
}

// formatNum renders a threshold/value the way clinical breakpoint tables
// do: always at least one decimal place ("4.0", not "4"), full precision
// otherwise ("0.25").
func formatNum(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// compareMIC implements the MIC/GRADIENT comparison semantics of spec §4.7:
// lower is more susceptible. source is recorded on the entry but the
// rationale states only the comparison, unit and threshold name per §4.7's
// "must state the numeric comparison actually performed" requirement.
func compareMIC(entry domain.BreakpointEntry, value domain.Measurement, source domain.BreakpointSource) (domain.Decision, string) {
	v := value.MICValue
	unit := "mg/L"

	if entry.SThreshold != nil && v <= *entry.SThreshold {
		return domain.DecisionS, fmt.Sprintf("MIC %s %s <= S threshold %s %s", formatNum(v), unit, formatNum(*entry.SThreshold), unit)
	}
	if entry.RThreshold != nil && v > *entry.RThreshold {
		if entry.RareResistanceCapable && v >= (*entry.RThreshold)*rareMarginOrDefault(entry.RareMargin, 4) {
			return domain.DecisionRR, fmt.Sprintf("MIC %s %s far exceeds R threshold %s %s; rare-resistance margin met", formatNum(v), unit, formatNum(*entry.RThreshold), unit)
		}
		return domain.DecisionR, fmt.Sprintf("MIC %s %s > R threshold %s %s", formatNum(v), unit, formatNum(*entry.RThreshold), unit)
	}
	if entry.IThreshold != nil {
		return domain.DecisionI, fmt.Sprintf("MIC %s %s between S threshold %s %s and I threshold %s %s", formatNum(v), unit, formatNum(safeDeref(entry.SThreshold)), unit, formatNum(*entry.IThreshold), unit)
	}
	return domain.DecisionI, fmt.Sprintf("MIC %s %s between S and R thresholds with no declared I threshold", formatNum(v), unit)
}

// compareDisc implements the inverse DISC comparison semantics of spec
// §4.7: larger zones mean more susceptible.
func compareDisc(entry domain.BreakpointEntry, value domain.Measurement, source domain.BreakpointSource) (domain.Decision, string) {
	v := float64(value.DiscValue)
	unit := "mm"

	if entry.SThreshold != nil && v >= *entry.SThreshold {
		return domain.DecisionS, fmt.Sprintf("zone diameter %d %s >= S threshold %s %s", value.DiscValue, unit, formatNum(*entry.SThreshold), unit)
	}
	if entry.RThreshold != nil && v < *entry.RThreshold {
		if entry.RareResistanceCapable && v <= (*entry.RThreshold)-rareMarginOrDefault(entry.RareMargin, 5) {
			return domain.DecisionRR, fmt.Sprintf("zone diameter %d %s far below R threshold %s %s; rare-resistance margin met", value.DiscValue, unit, formatNum(*entry.RThreshold), unit)
		}
		return domain.DecisionR, fmt.Sprintf("zone diameter %d %s < R threshold %s %s", value.DiscValue, unit, formatNum(*entry.RThreshold), unit)
	}
	if entry.IThreshold != nil {
		return domain.DecisionI, fmt.Sprintf("zone diameter %d %s between R threshold %s %s and S threshold %s %s", value.DiscValue, unit, formatNum(safeDeref(entry.RThreshold)), unit, formatNum(*entry.SThreshold), unit)
	}
	return domain.DecisionI, fmt.Sprintf("zone diameter %d %s between S and R thresholds with no declared I threshold", value.DiscValue, unit)
}

func rareMarginOrDefault(margin, fallback float64) float64 {
	if margin <= 0 {
		return fallback
	}
	return margin
}

func safeDeref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
