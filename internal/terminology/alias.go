package terminology

import "github.com/xSoVx/amr-project/internal/domain"

// codedKey identifies a (system, code) pair in the in-memory coded-value
// tables (spec §4.2 step 1).
type codedKey struct {
	System string
	Code   string
}

// recognizedCodeSystems are the code systems the normalizer will look up
// directly before falling back to display-string normalization.
var recognizedCodeSystems = map[string]struct{}{
	"SNOMED CT": {},
	"LOINC":     {},
	"RxNorm":    {},
	"ATC":       {},
}

func isRecognizedSystem(system string) bool {
	_, ok := recognizedCodeSystems[system]
	return ok
}

// defaultOrganismCodes is a minimal SNOMED CT seed table mapping organism
// identification codes to canonical OrganismKeys.
func defaultOrganismCodes() map[codedKey]domain.OrganismKey {
	return map[codedKey]domain.OrganismKey{
		{"SNOMED CT", "112283007"}: "Escherichia coli",
		{"SNOMED CT", "56415008"}:  "Klebsiella pneumoniae",
		{"SNOMED CT", "3092008"}:   "Staphylococcus aureus",
		{"SNOMED CT", "52499004"}:  "Pseudomonas aeruginosa",
		{"SNOMED CT", "90274009"}:  "Enterococcus faecium",
	}
}

// defaultAntibioticCodes is a minimal RxNorm/ATC seed table.
func defaultAntibioticCodes() map[codedKey]domain.AntibioticKey {
	return map[codedKey]domain.AntibioticKey{
		{"RxNorm", "723"}:   "Amoxicillin",
		{"RxNorm", "2193"}:  "Ceftriaxone",
		{"RxNorm", "2194"}:  "Ceftazidime",
		{"RxNorm", "7984"}:  "Oxacillin",
		{"RxNorm", "11124"}: "Vancomycin",
		{"RxNorm", "2582"}:  "Clindamycin",
		{"RxNorm", "4053"}:  "Erythromycin",
		{"RxNorm", "733"}:   "Ampicillin",
	}
}

// defaultOrganismAliases maps normalized display strings (per
// domain.NormalizeDisplay) to canonical OrganismKeys. This is the offline
// fallback table consulted at spec §4.2 step 3.
func defaultOrganismAliases() map[string]domain.OrganismKey {
	return map[string]domain.OrganismKey{
		"escherichia coli":         "Escherichia coli",
		"e. coli":                  "Escherichia coli",
		"e coli":                   "Escherichia coli",
		"klebsiella pneumoniae":    "Klebsiella pneumoniae",
		"k. pneumoniae":            "Klebsiella pneumoniae",
		"staphylococcus aureus":    "Staphylococcus aureus",
		"s. aureus":                "Staphylococcus aureus",
		"pseudomonas aeruginosa":   "Pseudomonas aeruginosa",
		"p. aeruginosa":            "Pseudomonas aeruginosa",
		"enterococcus faecium":     "Enterococcus faecium",
		"enterococcus faecalis":    "Enterococcus faecalis",
	}
}

// defaultAntibioticAliases is the offline fallback table for antibiotics.
func defaultAntibioticAliases() map[string]domain.AntibioticKey {
	return map[string]domain.AntibioticKey{
		"amoxicillin":  "Amoxicillin",
		"ampicillin":   "Ampicillin",
		"ceftriaxone":  "Ceftriaxone",
		"ceftazidime":  "Ceftazidime",
		"oxacillin":    "Oxacillin",
		"vancomycin":   "Vancomycin",
		"clindamycin":  "Clindamycin",
		"erythromycin": "Erythromycin",
		"cefoxitin":    "Cefoxitin",
		"ceftaroline":  "Ceftaroline",
		"ceftobiprole": "Ceftobiprole",
		"aztreonam":    "Aztreonam",
		"meropenem":    "Meropenem",
		"ertapenem":    "Ertapenem",
		"imipenem":     "Imipenem",
	}
}
