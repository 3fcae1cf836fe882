package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xSoVx/amr-project/internal/domain"
	"gopkg.in/yaml.v3"
)

// maxCatalogFileBytes bounds any single catalog file the loader will read,
// per spec §5 "Catalogs are bounded by file size, which the loader enforces."
const maxCatalogFileBytes = 16 << 20 // 16 MiB

// load parses every file under path (a single file, or every regular file
// in a directory) into one merged document set, then builds and validates
// a domain.RuleCatalog from it. It never returns a partially built catalog:
// either every violation is nil and catalog is usable, or err is non-nil
// and catalog must be discarded.
func load(path string) (*domain.RuleCatalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &domain.LoadError{FileMissing: path}
	}

	var files []string
	if info.IsDir() {
		entries, readErr := os.ReadDir(path)
		if readErr != nil {
			return nil, &domain.LoadError{ParseErrors: []error{readErr}}
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if ext == ".yaml" || ext == ".yml" || ext == ".json" {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
		sort.Strings(files)
	} else {
		files = []string{path}
	}

	loadErr := &domain.LoadError{}
	var docs []document
	var versions []string

	for _, f := range files {
		fi, statErr := os.Stat(f)
		if statErr != nil {
			loadErr.ParseErrors = append(loadErr.ParseErrors, statErr)
			continue
		}
		if fi.Size() > maxCatalogFileBytes {
			loadErr.SchemaViolations = append(loadErr.SchemaViolations, domain.SchemaViolation{
				Path: f, Reason: fmt.Sprintf("file exceeds maximum catalog size of %d bytes", maxCatalogFileBytes),
			})
			continue
		}
		raw, readErr := os.ReadFile(f)
		if readErr != nil {
			loadErr.ParseErrors = append(loadErr.ParseErrors, fmt.Errorf("%s: %w", f, readErr))
			continue
		}
		var doc document
		ext := strings.ToLower(filepath.Ext(f))
		var parseErr error
		if ext == ".json" {
			parseErr = json.Unmarshal(raw, &doc)
		} else {
			parseErr = yaml.Unmarshal(raw, &doc)
		}
		if parseErr != nil {
			loadErr.ParseErrors = append(loadErr.ParseErrors, fmt.Errorf("%s: %w", f, parseErr))
			continue
		}
		if doc.Version != "" {
			versions = append(versions, doc.Version)
		}
		docs = append(docs, doc)
	}

	if len(loadErr.ParseErrors) > 0 || len(loadErr.SchemaViolations) > 0 {
		return nil, loadErr
	}

	versionLabel, ok := uniqueVersion(versions)
	if !ok {
		loadErr.SemanticErrors = append(loadErr.SemanticErrors, domain.SemanticError{
			Kind: "version-mismatch", Detail: fmt.Sprintf("conflicting catalog versions: %v", versions),
		})
		return nil, loadErr
	}

	cat, violations, semErrors := build(docs, versionLabel, path)
	loadErr.SchemaViolations = append(loadErr.SchemaViolations, violations...)
	loadErr.SemanticErrors = append(loadErr.SemanticErrors, semErrors...)
	if loadErr.HasViolations() {
		return nil, loadErr
	}
	return cat, nil
}

func uniqueVersion(versions []string) (string, bool) {
	if len(versions) == 0 {
		return "unversioned", true
	}
	first := versions[0]
	for _, v := range versions[1:] {
		if v != first {
			return "", false
		}
	}
	return first, true
}

func build(docs []document, versionLabel, sourcePath string) (*domain.RuleCatalog, []domain.SchemaViolation, []domain.SemanticError) {
	var violations []domain.SchemaViolation
	var semErrors []domain.SemanticError

	cat := &domain.RuleCatalog{
		VersionLabel:      versionLabel,
		OrganismGroups:    map[string]map[domain.OrganismKey]struct{}{},
		AntibioticClasses: map[string]map[domain.AntibioticKey]struct{}{},
	}

	for _, doc := range docs {
		for group, members := range doc.OrganismGroups {
			set := cat.OrganismGroups[group]
			if set == nil {
				set = map[domain.OrganismKey]struct{}{}
				cat.OrganismGroups[group] = set
			}
			for _, m := range members {
				set[domain.OrganismKey(m)] = struct{}{}
			}
		}
		for class, members := range doc.AntibioticClasses {
			set := cat.AntibioticClasses[class]
			if set == nil {
				set = map[domain.AntibioticKey]struct{}{}
				cat.AntibioticClasses[class] = set
			}
			for _, m := range members {
				set[domain.AntibioticKey(m)] = struct{}{}
			}
		}
		for _, s := range doc.SourcePreference {
			cat.SourcePreferenceOrder = append(cat.SourcePreferenceOrder, domain.BreakpointSource(s))
		}
		for _, m := range doc.MethodPrecedence {
			cat.MethodPrecedence = append(cat.MethodPrecedence, domain.MethodKind(m))
		}
		if doc.MRSAExceptionClass != "" {
			cat.MRSAExceptionClass = doc.MRSAExceptionClass
		}
		if doc.MRSAReview {
			cat.MRSAExceptionsRequireReview = true
		}
		cat.ESBLExceptionClasses = append(cat.ESBLExceptionClasses, doc.ESBLExceptionClasses...)
	}
	if len(cat.SourcePreferenceOrder) == 0 {
		cat.SourcePreferenceOrder = []domain.BreakpointSource{domain.SourceEUCAST, domain.SourceCLSI, domain.SourceLOCAL}
	}

	for path, class := range emptyClasses(cat) {
		semErrors = append(semErrors, domain.SemanticError{Kind: "empty-antibiotic-class", Detail: fmt.Sprintf("%s: class %q is empty", path, class)})
	}

	if cycle := findGroupCycle(cat.OrganismGroups); cycle != "" {
		semErrors = append(semErrors, domain.SemanticError{Kind: "cyclic-organism-group", Detail: cycle})
	}

	seenEntries := map[string]map[domain.BreakpointSource]struct{}{}
	for _, doc := range docs {
		for i, bp := range doc.Breakpoints {
			entry, v := toBreakpointEntry(bp, fmt.Sprintf("%s#breakpoints[%d]", sourcePath, i))
			violations = append(violations, v...)
			if len(v) > 0 {
				continue
			}
			key := fmt.Sprintf("%d:%s:%s:%s", entry.OrganismScope.Kind, entry.OrganismScope.Value, entry.Antibiotic, entry.Method)
			sources := seenEntries[key]
			if sources == nil {
				sources = map[domain.BreakpointSource]struct{}{}
				seenEntries[key] = sources
			}
			if _, dup := sources[entry.Source]; dup {
				semErrors = append(semErrors, domain.SemanticError{
					Kind: "duplicate-breakpoint", Detail: fmt.Sprintf("%s has more than one %s entry for source %s", key, entry.Method, entry.Source),
				})
				continue
			}
			sources[entry.Source] = struct{}{}
			cat.Entries = append(cat.Entries, entry)
		}

		for i, r := range doc.IntrinsicResistance {
			rule := domain.IntrinsicRule{
				ID:            r.ID,
				OrganismScope: toScope(r.OrganismScope, fmt.Sprintf("%s#intrinsicResistance[%d]", sourcePath, i), &violations),
				Class:         r.Class,
			}
			if len(r.Antibiotics) > 0 {
				rule.Antibiotics = map[domain.AntibioticKey]struct{}{}
				for _, a := range r.Antibiotics {
					rule.Antibiotics[domain.AntibioticKey(a)] = struct{}{}
				}
			}
			cat.IntrinsicResistance = append(cat.IntrinsicResistance, rule)
		}

		for i, er := range doc.ExpertRules {
			rule, v := toExpertRule(er, fmt.Sprintf("%s#expertRules[%d]", sourcePath, i))
			violations = append(violations, v...)
			if len(v) == 0 {
				cat.ExpertRules = append(cat.ExpertRules, rule)
			}
		}
	}

	sort.SliceStable(cat.ExpertRules, func(i, j int) bool {
		if cat.ExpertRules[i].Priority != cat.ExpertRules[j].Priority {
			return cat.ExpertRules[i].Priority > cat.ExpertRules[j].Priority
		}
		return cat.ExpertRules[i].ID < cat.ExpertRules[j].ID
	})

	for path, class := range emptyClasses(cat) {
		semErrors = append(semErrors, domain.SemanticError{Kind: "empty-antibiotic-class", Detail: fmt.Sprintf("%s: class %q is empty", path, class)})
	}

	return cat, violations, semErrors
}

func toBreakpointEntry(bp breakpointDoc, path string) (domain.BreakpointEntry, []domain.SchemaViolation) {
	var violations []domain.SchemaViolation
	method := domain.MethodKind(bp.Method)
	unit := domain.Unit(bp.Unit)
	comparator := domain.BreakpointComparator(bp.Comparator)

	switch method {
	case domain.MethodMIC, domain.MethodGradient:
		if unit != domain.UnitMgPerL {
			violations = append(violations, domain.SchemaViolation{Path: path, Reason: fmt.Sprintf("method %s requires unit MG_PER_L, got %s", method, unit)})
		}
		if comparator == domain.ComparatorInverseForDisc {
			violations = append(violations, domain.SchemaViolation{Path: path, Reason: "MIC/GRADIENT entries must not use the inverse DISC comparator"})
		}
	case domain.MethodDISC:
		if unit != domain.UnitMM {
			violations = append(violations, domain.SchemaViolation{Path: path, Reason: fmt.Sprintf("method DISC requires unit MM, got %s", unit)})
		}
		if comparator != domain.ComparatorInverseForDisc {
			violations = append(violations, domain.SchemaViolation{Path: path, Reason: "DISC entries must use comparator INVERSE_FOR_DISC"})
		}
	default:
		violations = append(violations, domain.SchemaViolation{Path: path, Reason: fmt.Sprintf("breakpoint entries are not valid for method %s", method)})
	}

	source := domain.BreakpointSource(bp.Source)
	if source == "" {
		violations = append(violations, domain.SchemaViolation{Path: path, Reason: "missing source"})
	}
	if bp.Antibiotic == "" {
		violations = append(violations, domain.SchemaViolation{Path: path, Reason: "missing antibiotic"})
	}

	entry := domain.BreakpointEntry{
		OrganismScope:         toScope(bp.OrganismScope, path, &violations),
		Antibiotic:            domain.AntibioticKey(bp.Antibiotic),
		Method:                method,
		Source:                source,
		VersionLabel:          bp.VersionLabel,
		SThreshold:            bp.SThreshold,
		IThreshold:            bp.IThreshold,
		RThreshold:            bp.RThreshold,
		Comparator:            comparator,
		Unit:                  unit,
		RareResistanceCapable: bp.RareResistanceCapable,
		RareMargin:            bp.RareMargin,
	}
	return entry, violations
}

func toExpertRule(er expertRuleDoc, path string) (domain.ExpertRule, []domain.SchemaViolation) {
	var violations []domain.SchemaViolation
	if er.ID == "" {
		violations = append(violations, domain.SchemaViolation{Path: path, Reason: "missing id"})
	}

	when := domain.ExpertRulePredicate{
		ValuePredicate: buildValuePredicate(er.When.ValuePredicate),
	}
	for _, s := range er.When.OrganismScopes {
		when.OrganismScopes = append(when.OrganismScopes, toScope(s, path, &violations))
	}
	for _, p := range er.When.Phenotypes {
		when.Phenotypes = append(when.Phenotypes, domain.PhenotypeFlag(p))
	}
	for _, a := range er.When.Antibiotics {
		when.Antibiotics = append(when.Antibiotics, domain.AntibioticKey(a))
	}
	when.AntibioticClasses = append(when.AntibioticClasses, er.When.AntibioticClasses...)
	for _, m := range er.When.Methods {
		when.Methods = append(when.Methods, domain.MethodKind(m))
	}

	rule := domain.ExpertRule{
		ID:       er.ID,
		Priority: er.Priority,
		When:     when,
		Effect: domain.ExpertRuleEffect{
			Decision:          domain.Decision(er.Effect.Decision),
			RationaleTemplate: er.Effect.RationaleTemplate,
			AppliesToClass:    er.Effect.AppliesToClass,
		},
	}
	if len(er.Exceptions) > 0 {
		rule.Exceptions = map[domain.AntibioticKey]struct{}{}
		for _, e := range er.Exceptions {
			rule.Exceptions[domain.AntibioticKey(e)] = struct{}{}
		}
	}
	return rule, violations
}

// emptyClasses reports every AntibioticClasses / ESBLExceptionClasses /
// MRSAExceptionClass reference that resolves to an empty or missing set,
// satisfying "Expert rules' antibiotic-class references resolve to
// non-empty sets."
func emptyClasses(cat *domain.RuleCatalog) map[string]string {
	bad := map[string]string{}
	check := func(class string) {
		if class == "" {
			return
		}
		if members, ok := cat.AntibioticClasses[class]; !ok || len(members) == 0 {
			bad[class] = class
		}
	}
	for _, rule := range cat.ExpertRules {
		for _, c := range rule.When.AntibioticClasses {
			check(c)
		}
		check(rule.Effect.AppliesToClass)
	}
	check(cat.MRSAExceptionClass)
	for _, c := range cat.ESBLExceptionClasses {
		check(c)
	}
	return bad
}

// findGroupCycle detects a cycle in organism-group definitions where a
// group's members can themselves reference a group name (nested groups).
// Our OrganismKey members are plain strings; a "cycle" is only possible if
// a group name is also used as a member value of a group reachable from
// itself, which we check via a simple reachability walk.
func findGroupCycle(groups map[string]map[domain.OrganismKey]struct{}) string {
	visiting := map[string]bool{}
	visited := map[string]bool{}

	var visit func(name string, path []string) string
	visit = func(name string, path []string) string {
		if visiting[name] {
			return strings.Join(append(path, name), " -> ")
		}
		if visited[name] {
			return ""
		}
		visiting[name] = true
		for member := range groups[name] {
			if _, isGroup := groups[string(member)]; isGroup {
				if cyc := visit(string(member), append(path, name)); cyc != "" {
					return cyc
				}
			}
		}
		visiting[name] = false
		visited[name] = true
		return ""
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if cyc := visit(name, nil); cyc != "" {
			return cyc
		}
	}
	return ""
}
