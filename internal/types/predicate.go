package types

// Predicate is a Biolink-aligned relationship type between two nodes.
type Predicate string

const (
	PredicateParticipatesIn              Predicate = "participates_in"
	PredicateGeneAssociatedWithCondition Predicate = "gene_associated_with_condition"
	PredicateInteractsWith               Predicate = "interacts_with"
	PredicateTreats                      Predicate = "treats"
	PredicateAffectsActivityOf           Predicate = "affects_activity_of"
	PredicateContributesTo               Predicate = "contributes_to"
	PredicateExpressedIn                 Predicate = "expressed_in"
)

var knownPredicates = map[Predicate]bool{
	PredicateParticipatesIn:              true,
	PredicateGeneAssociatedWithCondition: true,
	PredicateInteractsWith:               true,
	PredicateTreats:                      true,
	PredicateAffectsActivityOf:           true,
	PredicateContributesTo:               true,
	PredicateExpressedIn:                 true,
}

func (p Predicate) Valid() bool { return knownPredicates[p] }

// Provenance is the trust class of an edge's origin.
type Provenance string

const (
	ProvenanceCurated   Provenance = "curated"
	ProvenanceTextMined Provenance = "text-mined"
	ProvenanceManual    Provenance = "manual"
)

func (p Provenance) Valid() bool {
	switch p {
	case ProvenanceCurated, ProvenanceTextMined, ProvenanceManual:
		return true
	}
	return false
}

// rank orders provenance by trust so merges can keep the stronger class.
func (p Provenance) rank() int {
	switch p {
	case ProvenanceCurated:
		return 3
	case ProvenanceManual:
		return 2
	case ProvenanceTextMined:
		return 1
	}
	return 0
}

// Upgrade returns the more trusted of two provenance classes; curated
// dominates manual dominates text-mined.
func (p Provenance) Upgrade(other Provenance) Provenance {
	if other.rank() > p.rank() {
		return other
	}
	return p
}
