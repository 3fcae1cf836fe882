package fhir

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xSoVx/amr-project/internal/domain"
	"github.com/xSoVx/amr-project/internal/terminology"
)

// susceptibilityPattern recognizes display strings of the shape
// "<antibiotic> [Susceptibility] by (MIC|disk diffusion)" (spec §4.3).
var susceptibilityPattern = regexp.MustCompile(`(?i)^(.+?)\s*\[susceptibility\]\s*by\s*(mic|disk diffusion)\s*$`)

// ucumToMethod maps a small set of UCUM unit codes to the MethodKind the
// unit implies (spec §4.3 "a small UCUM-to-MethodKind table").
var ucumToMethod = map[string]domain.MethodKind{
	"mg/L": domain.MethodMIC,
	"mm":   domain.MethodDISC,
}

const loincOrganismIdentified = "634-6"

var phenotypeKeywords = map[string]domain.PhenotypeFlag{
	"esbl":              domain.PhenotypeESBL,
	"ampc":              domain.PhenotypeAmpC,
	"carbapenemase":     domain.PhenotypeCarbapenemase,
	"mrsa":              domain.PhenotypeMRSA,
	"mssa":              domain.PhenotypeMSSA,
	"vre":               domain.PhenotypeVRE,
	"vse":               domain.PhenotypeVSE,
	"cefoxitin screen":  domain.PhenotypeMRSA,
}

// Adapter is the FHIR R4 input adapter.
type Adapter struct {
	logger     *logrus.Logger
	normalizer *terminology.Normalizer
}

func NewAdapter(logger *logrus.Logger, normalizer *terminology.Normalizer) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Adapter{logger: logger, normalizer: normalizer}
}

// Parse accepts a Bundle, a JSON array of Observations, or a single
// Observation and produces the uniform ClassificationInput sequence.
func (a *Adapter) Parse(ctx context.Context, raw []byte) ([]domain.ClassificationInput, error) {
	observations, refIndex, err := a.collectObservations(raw)
	if err != nil {
		return nil, err
	}

	inputs := make([]domain.ClassificationInput, 0, len(observations))
	for i, obs := range observations {
		if !isLaboratory(obs) {
			a.logger.WithField("id", obs.ID).Debug("ignoring non-laboratory observation")
			continue
		}

		switch classifyObservation(obs) {
		case kindOrganism:
			organism := a.resolveOrganism(ctx, obs)
			inputs = append(inputs, domain.ClassificationInput{
				Specimen:     domain.SpecimenRef(specimenKeyOf(obs, i)),
				Organism:     organism,
				OrganismOnly: true,
				Phenotypes:   map[domain.PhenotypeFlag]struct{}{},
				Auxiliary:    map[string]string{},
			})
		case kindPhenotype:
			flag := phenotypeFlagOf(obs)
			if flag == "" {
				continue
			}
			inputs = append(inputs, domain.ClassificationInput{
				Specimen:     domain.SpecimenRef(specimenKeyOf(obs, i)),
				OrganismOnly: true,
				Phenotypes:   map[domain.PhenotypeFlag]struct{}{flag: {}},
				Auxiliary:    map[string]string{},
			})
		case kindSusceptibility:
			input, ok := a.buildSusceptibilityInput(ctx, obs, i, refIndex)
			if ok {
				inputs = append(inputs, input)
			}
		default:
			a.logger.WithField("id", obs.ID).Debug("ignoring unrecognized laboratory observation")
		}
	}
	return inputs, nil
}

type observationKind int

const (
	kindUnknown observationKind = iota
	kindOrganism
	kindPhenotype
	kindSusceptibility
)

func classifyObservation(obs Observation) observationKind {
	coding := obs.Code.firstCoding()
	display := strings.ToLower(obs.Code.display())

	if coding.Code == loincOrganismIdentified || strings.Contains(display, "organism identified") {
		return kindOrganism
	}
	for keyword := range phenotypeKeywords {
		if strings.Contains(display, keyword) {
			return kindPhenotype
		}
	}
	if obs.Method != nil {
		methodText := strings.ToLower(obs.Method.display())
		if strings.Contains(methodText, "mic") || strings.Contains(methodText, "disk") || strings.Contains(methodText, "disc") {
			return kindSusceptibility
		}
	}
	if susceptibilityPattern.MatchString(obs.Code.display()) || (obs.ValueQuantity != nil && obs.ValueQuantity.Unit != "") {
		if _, ok := ucumToMethod[unitOf(obs)]; ok {
			return kindSusceptibility
		}
		if susceptibilityPattern.MatchString(obs.Code.display()) {
			return kindSusceptibility
		}
	}
	return kindUnknown
}

func isLaboratory(obs Observation) bool {
	for _, cat := range obs.Category {
		for _, coding := range cat.Coding {
			if strings.EqualFold(coding.Code, "laboratory") {
				return true
			}
		}
		if strings.EqualFold(cat.Text, "laboratory") {
			return true
		}
	}
	return false
}

func unitOf(obs Observation) string {
	if obs.ValueQuantity != nil {
		return obs.ValueQuantity.Unit
	}
	return ""
}

func specimenKeyOf(obs Observation, position int) string {
	if obs.Specimen != nil && obs.Specimen.Reference != "" {
		return obs.Specimen.Reference
	}
	if obs.Subject != nil && obs.Subject.Reference != "" {
		return obs.Subject.Reference
	}
	return fmt.Sprintf("fhir-synthetic-%d", position)
}

func phenotypeFlagOf(obs Observation) domain.PhenotypeFlag {
	display := strings.ToLower(obs.Code.display())
	for keyword, flag := range phenotypeKeywords {
		if strings.Contains(display, keyword) {
			positive := obs.ValueCodeableConcept == nil || strings.Contains(strings.ToLower(obs.ValueCodeableConcept.display()), "positive") || strings.Contains(strings.ToLower(obs.ValueCodeableConcept.display()), "detected")
			if positive {
				return flag
			}
		}
	}
	return ""
}

func (a *Adapter) resolveOrganism(ctx context.Context, obs Observation) domain.OrganismKey {
	if obs.ValueCodeableConcept != nil {
		coding := obs.ValueCodeableConcept.firstCoding()
		return a.normalizer.NormalizeOrganism(ctx, coding.System, coding.Code, obs.ValueCodeableConcept.display())
	}
	return domain.UnresolvedOrganism
}

// buildSusceptibilityInput extracts antibiotic, method and value from a
// susceptibility Observation, resolving its specimen link via
// derivedFrom/hasMember (falling back to its own specimen reference).
func (a *Adapter) buildSusceptibilityInput(ctx context.Context, obs Observation, position int, refIndex map[string]Observation) (domain.ClassificationInput, bool) {
	antibioticDisplay, method := antibioticAndMethod(obs)
	if antibioticDisplay == "" {
		return domain.ClassificationInput{}, false
	}
	antibiotic := a.normalizer.NormalizeAntibiotic(ctx, "", "", antibioticDisplay)

	value := domain.Measurement{Kind: method}
	switch method {
	case domain.MethodMIC:
		if obs.ValueQuantity != nil {
			value.MICPresent = true
			value.MICValue = obs.ValueQuantity.Value
		}
	case domain.MethodDISC:
		if obs.ValueQuantity != nil {
			value.DiscPresent = true
			value.DiscValue = int(obs.ValueQuantity.Value)
		}
	}

	specimen := specimenKeyOf(obs, position)
	for _, ref := range append(append([]Reference{}, obs.DerivedFrom...), obs.HasMember...) {
		if linked, ok := refIndex[ref.Reference]; ok {
			specimen = specimenKeyOf(linked, position)
			break
		}
	}

	return domain.ClassificationInput{
		Specimen:   domain.SpecimenRef(specimen),
		Antibiotic: antibiotic,
		Method:     method,
		Value:      value,
		Phenotypes: map[domain.PhenotypeFlag]struct{}{},
		Auxiliary:  map[string]string{},
	}, true
}

func antibioticAndMethod(obs Observation) (string, domain.MethodKind) {
	if m := susceptibilityPattern.FindStringSubmatch(obs.Code.display()); m != nil {
		method := domain.MethodMIC
		if strings.Contains(strings.ToLower(m[2]), "disk") {
			method = domain.MethodDISC
		}
		return m[1], method
	}
	if obs.Method != nil {
		methodText := strings.ToLower(obs.Method.display())
		method := domain.MethodMIC
		if strings.Contains(methodText, "disk") || strings.Contains(methodText, "disc") {
			method = domain.MethodDISC
		}
		return obs.Code.display(), method
	}
	if unit, ok := ucumToMethod[unitOf(obs)]; ok {
		return obs.Code.display(), unit
	}
	return "", ""
}

// collectObservations accepts a Bundle, an Observation array, or a single
// Observation, and returns every Observation plus a lookup index from
// "ResourceType/ID" to Observation for derivedFrom/hasMember resolution.
func (a *Adapter) collectObservations(raw []byte) ([]Observation, map[string]Observation, error) {
	var probe struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		// may be a bare array
		var obs []Observation
		if err2 := json.Unmarshal(raw, &obs); err2 != nil {
			return nil, nil, domain.NewAdapterError("fhir", "malformed JSON payload", err)
		}
		return obs, indexObservations(obs), nil
	}

	switch probe.ResourceType {
	case "Bundle":
		var bundle Bundle
		if err := json.Unmarshal(raw, &bundle); err != nil {
			return nil, nil, domain.NewAdapterError("fhir", "malformed Bundle", err)
		}
		var obs []Observation
		for _, entry := range bundle.Entry {
			var rt struct {
				ResourceType string `json:"resourceType"`
			}
			if err := json.Unmarshal(entry.Resource, &rt); err != nil {
				continue
			}
			if rt.ResourceType != "Observation" {
				continue
			}
			var o Observation
			if err := json.Unmarshal(entry.Resource, &o); err != nil {
				continue
			}
			obs = append(obs, o)
		}
		return obs, indexObservations(obs), nil
	case "Observation":
		var o Observation
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, nil, domain.NewAdapterError("fhir", "malformed Observation", err)
		}
		return []Observation{o}, indexObservations([]Observation{o}), nil
	case "":
		var obs []Observation
		if err := json.Unmarshal(raw, &obs); err != nil {
			return nil, nil, domain.NewAdapterError("fhir", "malformed JSON payload", err)
		}
		return obs, indexObservations(obs), nil
	default:
		return nil, nil, domain.NewAdapterError("fhir", fmt.Sprintf("unexpected resourceType %q", probe.ResourceType), nil)
	}
}

func indexObservations(obs []Observation) map[string]Observation {
	idx := make(map[string]Observation, len(obs))
	for _, o := range obs {
		if o.ID != "" {
			idx["Observation/"+o.ID] = o
		}
	}
	return idx
}
