// Package engine wires the gating validator, expert-rule engine, breakpoint
// interpreter, conflict resolver and decision assembler (spec §4.4–§4.9)
// into the Engine orchestrator. Each stage is implemented as a small,
// stateless function over domain values rather than a mutation pass, per
// the teacher's service-layer idiom of pure functions over a shared
// *logrus.Logger-carrying struct.
package engine

import "github.com/xSoVx/amr-project/internal/domain"

// Group implements the input grouper (spec §4.4): it associates standalone
// organism and phenotype records with the susceptibility inputs that lack
// them, via a group-by on specimen followed by a join, never by mutating a
// shared input in place.
func Group(inputs []domain.ClassificationInput) []domain.ClassificationInput {
	partitions := make(map[domain.SpecimenRef][]domain.ClassificationInput)
	order := make([]domain.SpecimenRef, 0)
	for _, in := range inputs {
		if _, ok := partitions[in.Specimen]; !ok {
			order = append(order, in.Specimen)
		}
		partitions[in.Specimen] = append(partitions[in.Specimen], in)
	}

	var out []domain.ClassificationInput
	for _, specimen := range order {
		out = append(out, groupPartition(partitions[specimen])...)
	}
	return out
}

func groupPartition(partition []domain.ClassificationInput) []domain.ClassificationInput {
	organisms := distinctOrganisms(partition)
	phenotypes := mergedPhenotypes(partition)

	var out []domain.ClassificationInput
	for _, in := range partition {
		if in.OrganismOnly {
			continue // organism/phenotype carriers are never classified directly
		}

		withPhenotypes := in.WithPhenotypes(phenotypes)

		if withPhenotypes.Organism != domain.UnresolvedOrganism || len(organisms) == 0 {
			out = append(out, withPhenotypes)
			continue
		}

		switch len(organisms) {
		case 1:
			out = append(out, withPhenotypes.WithOrganism(organisms[0]))
		default:
			for _, organism := range organisms {
				out = append(out, withPhenotypes.WithOrganism(organism).WithAux(domain.AuxAmbiguousOrganism, "true"))
			}
		}
	}
	return out
}

// distinctOrganisms collects the set of organism identifications carried by
// organism-only records in a partition, preserving first-seen order so
// duplication (the "multiple organisms" case) is deterministic. A
// phenotype-only record (no organism claim, just a flag) is recognized by
// carrying at least one phenotype flag and no resolved organism, and is
// never itself a candidate organism, even though it shares the OrganismOnly
// marker. An organism record that also carries phenotype flags (as the HL7
// v2 adapter produces) is still a candidate.
func distinctOrganisms(partition []domain.ClassificationInput) []domain.OrganismKey {
	seen := map[domain.OrganismKey]struct{}{}
	var organisms []domain.OrganismKey
	for _, in := range partition {
		if !in.OrganismOnly || (in.Organism.Unresolved() && len(in.Phenotypes) > 0) {
			continue
		}
		if _, ok := seen[in.Organism]; ok {
			continue
		}
		seen[in.Organism] = struct{}{}
		organisms = append(organisms, in.Organism)
	}
	return organisms
}

// mergedPhenotypes unions every phenotype flag present anywhere in the
// partition, whether carried by an organism-only record, a phenotype-only
// record, or already attached to a susceptibility input.
func mergedPhenotypes(partition []domain.ClassificationInput) map[domain.PhenotypeFlag]struct{} {
	merged := map[domain.PhenotypeFlag]struct{}{}
	for _, in := range partition {
		for flag := range in.Phenotypes {
			merged[flag] = struct{}{}
		}
	}
	return merged
}
