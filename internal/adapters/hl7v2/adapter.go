// Package hl7v2 implements the HL7 v2 ORU^R01 input adapter (spec §4.3).
// Segments are parsed positionally using delimiters the message itself
// declares in MSH-1/MSH-2, rather than assuming any particular HL7
// conformance profile.
package hl7v2

import (
	"context"
	"strconv"
	"strings"

	"github.com/xSoVx/amr-project/internal/domain"
	"github.com/xSoVx/amr-project/internal/terminology"
)

// delimiters holds the field/component separators a message declares in
// its own MSH segment, so no carriage-return-vs-line-feed or "|" assumption
// is baked into the parser.
type delimiters struct {
	field     string
	component string
	repeat    string
	escape    byte
	subcomp   string
}

// Adapter is the HL7 v2 input adapter.
type Adapter struct {
	normalizer *terminology.Normalizer
}

func NewAdapter(normalizer *terminology.Normalizer) *Adapter {
	return &Adapter{normalizer: normalizer}
}

// Parse accepts a raw ORU^R01 message and produces the uniform
// ClassificationInput sequence. A malformed or absent MSH segment is an
// AdapterError; missing OBX segments yield an empty, non-error result.
func (a *Adapter) Parse(ctx context.Context, raw []byte) ([]domain.ClassificationInput, error) {
	segments := splitSegments(string(raw))
	if len(segments) == 0 || !strings.HasPrefix(segments[0], "MSH") {
		return nil, domain.NewAdapterError("hl7v2", "missing MSH segment", nil)
	}

	delim, err := parseDelimiters(segments[0])
	if err != nil {
		return nil, err
	}

	var patientID, specimen string
	organismIndex := -1
	inputs := make([]domain.ClassificationInput, 0, len(segments))

	for _, seg := range segments[1:] {
		fields := strings.Split(seg, delim.field)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "PID":
			if len(fields) > 3 {
				patientID = firstComponent(fields[3], delim)
			}
		case "OBR", "SPM":
			if len(fields) > 2 && fields[2] != "" {
				specimen = firstComponent(fields[2], delim)
			} else if len(fields) > 1 && fields[1] != "" {
				specimen = firstComponent(fields[1], delim)
			}
		case "OBX":
			input, kind, err := a.parseOBX(ctx, fields, delim, specimen, patientID)
			if err != nil {
				return nil, err
			}
			if input == nil {
				continue
			}
			if kind == obxOrganism {
				inputs = append(inputs, *input)
				organismIndex = len(inputs) - 1
				continue
			}
			if kind == obxPhenotype && organismIndex >= 0 {
				inputs[organismIndex] = inputs[organismIndex].WithPhenotypes(input.Phenotypes)
				continue
			}
			inputs = append(inputs, *input)
		}
	}
	return inputs, nil
}

type obxKind int

const (
	obxUnknown obxKind = iota
	obxOrganism
	obxMIC
	obxDisc
	obxPhenotype
)

// parseOBX classifies one OBX segment by its OBX-3 observation identifier
// and parses OBX-5 according to the kind.
func (a *Adapter) parseOBX(ctx context.Context, fields []string, delim delimiters, specimen, patientID string) (*domain.ClassificationInput, obxKind, error) {
	if len(fields) < 6 {
		return nil, obxUnknown, nil
	}
	identifier := firstComponent(fields[3], delim)
	identifierText := strings.ToUpper(identifier)
	value := fields[5]

	kind := classifyOBX3(identifierText)
	if kind == obxUnknown {
		return nil, obxUnknown, nil
	}

	base := domain.ClassificationInput{
		Specimen:  domain.SpecimenRef(specimen),
		Auxiliary: map[string]string{},
	}
	if patientID != "" {
		base.Auxiliary[domain.AuxPatientID] = patientID
	}

	switch kind {
	case obxOrganism:
		base.Organism = a.normalizer.NormalizeOrganism(ctx, "", "", value)
		base.OrganismOnly = true
		base.Phenotypes = map[domain.PhenotypeFlag]struct{}{}
		return &base, obxOrganism, nil
	case obxMIC, obxDisc:
		antibioticDisplay := stripMethodSuffix(displayComponent(fields[3], delim))
		base.Antibiotic = a.normalizer.NormalizeAntibiotic(ctx, "", "", antibioticDisplay)
		comparator, numeric, present := parseNumericWithComparator(value)
		if kind == obxMIC {
			base.Method = domain.MethodMIC
			base.Value = domain.Measurement{Kind: domain.MethodMIC, MICPresent: present, MICValue: numeric, MICComparator: comparator}
		} else {
			base.Method = domain.MethodDISC
			base.Value = domain.Measurement{Kind: domain.MethodDISC, DiscPresent: present, DiscValue: int(numeric), DiscComparator: comparator}
		}
		if comparator != domain.ComparatorNone {
			base.Auxiliary[domain.AuxComparator] = string(comparator)
		}
		base.Phenotypes = map[domain.PhenotypeFlag]struct{}{}
		return &base, kind, nil
	case obxPhenotype:
		flag := phenotypeFlagFor(identifierText, value)
		base.OrganismOnly = true
		base.Phenotypes = map[domain.PhenotypeFlag]struct{}{}
		if flag != "" {
			base.Phenotypes[flag] = struct{}{}
		}
		return &base, obxPhenotype, nil
	}
	return nil, obxUnknown, nil
}

func classifyOBX3(identifierText string) obxKind {
	switch {
	case strings.Contains(identifierText, "ORG"):
		return obxOrganism
	case strings.Contains(identifierText, "MIC"):
		return obxMIC
	case strings.Contains(identifierText, "DISC"), strings.Contains(identifierText, "DISK"):
		return obxDisc
	case strings.Contains(identifierText, "SCREEN"), strings.Contains(identifierText, "ESBL"),
		strings.Contains(identifierText, "MRSA"), strings.Contains(identifierText, "CARB"):
		return obxPhenotype
	}
	return obxUnknown
}

func phenotypeFlagFor(identifierText, value string) domain.PhenotypeFlag {
	positive := strings.Contains(strings.ToUpper(value), "POS") || strings.Contains(strings.ToUpper(value), "DETECTED")
	if !positive {
		return ""
	}
	switch {
	case strings.Contains(identifierText, "ESBL"):
		return domain.PhenotypeESBL
	case strings.Contains(identifierText, "MRSA"):
		return domain.PhenotypeMRSA
	case strings.Contains(identifierText, "CARB"):
		return domain.PhenotypeCarbapenemase
	}
	return ""
}

// parseNumericWithComparator parses an HL7 OBX-5 value like "<=0.25" into
// the bare numeric plus the preserved comparator prefix (spec §4.3, §9
// "comparator-with-prefix parsing"). For breakpoint comparison, <=x stays
// x and >x becomes x+epsilon to cross exactly one threshold step.
func parseNumericWithComparator(raw string) (domain.Comparator, float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.ComparatorNone, 0, false
	}
	comparator := domain.ComparatorNone
	numericPart := raw
	switch {
	case strings.HasPrefix(raw, "<="):
		comparator, numericPart = domain.ComparatorLE, raw[2:]
	case strings.HasPrefix(raw, ">="):
		comparator, numericPart = domain.ComparatorGE, raw[2:]
	case strings.HasPrefix(raw, "<"):
		comparator, numericPart = domain.ComparatorLT, raw[1:]
	case strings.HasPrefix(raw, ">"):
		comparator, numericPart = domain.ComparatorGT, raw[1:]
	}

	numeric, err := strconv.ParseFloat(strings.TrimSpace(numericPart), 64)
	if err != nil {
		return domain.ComparatorNone, 0, false
	}

	const epsilon = 1e-6
	switch comparator {
	case domain.ComparatorGT:
		numeric += epsilon
	}
	return comparator, numeric, true
}

func splitSegments(raw string) []string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	var segments []string
	for _, line := range strings.Split(normalized, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			segments = append(segments, line)
		}
	}
	return segments
}

// parseDelimiters reads the field separator from MSH-1 (the character
// immediately after "MSH") and the encoding characters from MSH-2.
func parseDelimiters(msh string) (delimiters, error) {
	if len(msh) < 4 {
		return delimiters{}, domain.NewAdapterError("hl7v2", "MSH segment too short", nil)
	}
	field := string(msh[3])
	rest := msh[4:]
	fields := strings.Split(rest, field)
	if len(fields) == 0 || len(fields[0]) < 4 {
		return delimiters{}, domain.NewAdapterError("hl7v2", "MSH-2 encoding characters missing", nil)
	}
	encoding := fields[0]
	return delimiters{
		field:     field,
		component: string(encoding[0]),
		repeat:    string(encoding[1]),
		escape:    encoding[2],
		subcomp:   string(encoding[3]),
	}, nil
}

func firstComponent(field string, delim delimiters) string {
	parts := strings.Split(field, delim.component)
	if len(parts) == 0 {
		return field
	}
	return parts[0]
}

// displayComponent returns the second (text) component of a coded field
// like "OXA^Oxacillin MIC^LOCAL", falling back to the identifier itself.
func displayComponent(field string, delim delimiters) string {
	parts := strings.Split(field, delim.component)
	if len(parts) > 1 && parts[1] != "" {
		return parts[1]
	}
	return field
}

// methodSuffixes are the trailing method words local OBX-3 text components
// conventionally carry (e.g. "Ampicillin MIC", "Ceftriaxone DISC"), stripped
// before antibiotic normalization so the alias table only ever sees the bare
// antibiotic name.
var methodSuffixes = []string{" mic", " disc", " disk", " disk diffusion"}

func stripMethodSuffix(display string) string {
	lower := strings.ToLower(strings.TrimSpace(display))
	for _, suffix := range methodSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return strings.TrimSpace(display[:len(display)-len(suffix)])
		}
	}
	return display
}
