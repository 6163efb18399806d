package traverse

import (
	"errors"
	"testing"

	"github.com/helixmap/biograph-backend/internal/kg/scoring"
	"github.com/helixmap/biograph-backend/internal/kg/store"
	"github.com/helixmap/biograph-backend/internal/platform/config"
	"github.com/helixmap/biograph-backend/internal/platform/kgerr"
	"github.com/helixmap/biograph-backend/internal/platform/logger"
	"github.com/helixmap/biograph-backend/internal/types"
)

func intp(v int) *int { return &v }

// brca1Graph builds BRCA1 -> DNA repair pathway -> breast cancer -> olaparib.
func brca1Graph(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(logger.Nop(), scoring.New(config.Default().Scoring))

	nodes := []*types.Node{
		{CanonicalID: "GENE:NCBI:672", Type: types.NodeGene, Name: "BRCA1"},
		{CanonicalID: "PATHWAY:REACTOME:R-HSA-5685942", Type: types.NodePathway, Name: "HDR through homologous recombination"},
		{CanonicalID: "DISEASE:MONDO:0007254", Type: types.NodeDisease, Name: "breast cancer"},
		{CanonicalID: "DRUG:DRUGBANK:DB09074", Type: types.NodeDrug, Name: "Olaparib"},
	}
	for _, n := range nodes {
		if err := st.AddNode(n); err != nil {
			t.Fatalf("add node %s: %v", n.CanonicalID, err)
		}
	}

	type link struct {
		subject, object string
		predicate       types.Predicate
		ref             string
		year            int
	}
	links := []link{
		{"GENE:NCBI:672", "PATHWAY:REACTOME:R-HSA-5685942", types.PredicateParticipatesIn, "PMID:26400179", 2015},
		{"PATHWAY:REACTOME:R-HSA-5685942", "DISEASE:MONDO:0007254", types.PredicateContributesTo, "PMID:21862402", 2011},
		{"DISEASE:MONDO:0007254", "DRUG:DRUGBANK:DB09074", types.PredicateTreats, "PMID:28578601", 2017},
	}
	for _, l := range links {
		evID, _, err := st.AddEvidence(types.Evidence{SourceRef: l.ref, PublicationYear: intp(l.year)})
		if err != nil {
			t.Fatalf("add evidence %s: %v", l.ref, err)
		}
		if err := st.AddEdge(&types.Edge{
			SubjectID:   l.subject,
			ObjectID:    l.object,
			Predicate:   l.predicate,
			Provenance:  types.ProvenanceCurated,
			EvidenceIDs: []string{evID},
		}); err != nil {
			t.Fatalf("add edge %s -> %s: %v", l.subject, l.object, err)
		}
	}
	return st
}

func newEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st := brca1Graph(t)
	return NewEngine(logger.Nop(), st), st
}

func TestPathBuildToMaxDepth(t *testing.T) {
	e, _ := newEngine(t)
	sid := e.StartSession()

	path, err := e.Seed(sid, "GENE:NCBI:672")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if path.Depth() != 0 || path.Frontier() != "GENE:NCBI:672" {
		t.Fatalf("seeded path depth=%d frontier=%s", path.Depth(), path.Frontier())
	}

	for i, target := range []string{
		"PATHWAY:REACTOME:R-HSA-5685942",
		"DISEASE:MONDO:0007254",
		"DRUG:DRUGBANK:DB09074",
	} {
		path, err = e.Expand(sid, target)
		if err != nil {
			t.Fatalf("expand %d to %s: %v", i+1, target, err)
		}
		if path.Depth() != i+1 {
			t.Fatalf("depth after expand %d = %d", i+1, path.Depth())
		}
		if path.Frontier() != target {
			t.Fatalf("frontier after expand = %s, want %s", path.Frontier(), target)
		}
	}

	// Every edge on the full path carries at least one evidence record.
	for _, edge := range path.Edges {
		if len(edge.EvidenceIDs) == 0 {
			t.Fatalf("path edge %s has no evidence", edge.ID)
		}
	}
}

func TestExpandBeyondMaxDepthFails(t *testing.T) {
	e, st := newEngine(t)
	if err := st.AddNode(&types.Node{CanonicalID: "PROTEIN:UNIPROT:O15350", Type: types.NodeProtein, Name: "TP73"}); err != nil {
		t.Fatalf("add node: %v", err)
	}
	if err := st.AddEdge(&types.Edge{
		SubjectID:  "DRUG:DRUGBANK:DB09074",
		ObjectID:   "PROTEIN:UNIPROT:O15350",
		Predicate:  types.PredicateAffectsActivityOf,
		Provenance: types.ProvenanceManual,
	}); err != nil {
		t.Fatalf("add edge: %v", err)
	}

	sid := e.StartSession()
	if _, err := e.Seed(sid, "GENE:NCBI:672"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for _, target := range []string{"PATHWAY:REACTOME:R-HSA-5685942", "DISEASE:MONDO:0007254", "DRUG:DRUGBANK:DB09074"} {
		if _, err := e.Expand(sid, target); err != nil {
			t.Fatalf("expand to %s: %v", target, err)
		}
	}

	_, err := e.Expand(sid, "PROTEIN:UNIPROT:O15350")
	if !errors.Is(err, kgerr.ErrMaxDepthExceeded) {
		t.Fatalf("expected ErrMaxDepthExceeded, got %v", err)
	}

	// The failed expand left the path at depth 3.
	path, err := e.Path(sid)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if path.Depth() != types.MaxPathDepth {
		t.Fatalf("depth after rejected expand = %d, want %d", path.Depth(), types.MaxPathDepth)
	}
}

func TestExpandRejectsCycle(t *testing.T) {
	e, st := newEngine(t)
	// Back-edge from the pathway to the seed gene.
	if err := st.AddEdge(&types.Edge{
		SubjectID:  "PATHWAY:REACTOME:R-HSA-5685942",
		ObjectID:   "GENE:NCBI:672",
		Predicate:  types.PredicateAffectsActivityOf,
		Provenance: types.ProvenanceManual,
	}); err != nil {
		t.Fatalf("add edge: %v", err)
	}

	sid := e.StartSession()
	if _, err := e.Seed(sid, "GENE:NCBI:672"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := e.Expand(sid, "PATHWAY:REACTOME:R-HSA-5685942"); err != nil {
		t.Fatalf("expand: %v", err)
	}

	_, err := e.Expand(sid, "GENE:NCBI:672")
	if !errors.Is(err, kgerr.ErrCycleRejected) {
		t.Fatalf("expected ErrCycleRejected, got %v", err)
	}
	path, _ := e.Path(sid)
	if path.Depth() != 1 {
		t.Fatalf("rejected expand mutated the path, depth = %d", path.Depth())
	}
}

func TestExpandRequiresExistingEdge(t *testing.T) {
	e, _ := newEngine(t)
	sid := e.StartSession()
	if _, err := e.Seed(sid, "GENE:NCBI:672"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Breast cancer is two hops from the seed; no direct edge exists.
	_, err := e.Expand(sid, "DISEASE:MONDO:0007254")
	if !errors.Is(err, kgerr.ErrEdgeNotFound) {
		t.Fatalf("expected ErrEdgeNotFound, got %v", err)
	}
}

func TestResetReturnsSessionToEmpty(t *testing.T) {
	e, _ := newEngine(t)
	sid := e.StartSession()
	if _, err := e.Seed(sid, "GENE:NCBI:672"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := e.Reset(sid); err != nil {
		t.Fatalf("reset: %v", err)
	}

	path, err := e.Path(sid)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if path != nil {
		t.Fatalf("path after reset should be nil, got %+v", path)
	}

	// Re-seed starts a fresh path.
	path, err = e.Seed(sid, "DISEASE:MONDO:0007254")
	if err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	if path.SeedID != "DISEASE:MONDO:0007254" || path.Depth() != 0 {
		t.Fatalf("re-seeded path wrong: %+v", path)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	e, _ := newEngine(t)
	a := e.StartSession()
	b := e.StartSession()

	if _, err := e.Seed(a, "GENE:NCBI:672"); err != nil {
		t.Fatalf("seed a: %v", err)
	}
	if _, err := e.Expand(a, "PATHWAY:REACTOME:R-HSA-5685942"); err != nil {
		t.Fatalf("expand a: %v", err)
	}

	pathB, err := e.Path(b)
	if err != nil {
		t.Fatalf("path b: %v", err)
	}
	if pathB != nil {
		t.Fatalf("session b must start empty, got %+v", pathB)
	}

	e.EndSession(a)
	if _, err := e.Path(a); !errors.Is(err, kgerr.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after EndSession, got %v", err)
	}
	if _, err := e.Seed(b, "GENE:NCBI:672"); err != nil {
		t.Fatalf("session b must survive ending a: %v", err)
	}
}

func TestExpandWithoutSeed(t *testing.T) {
	e, _ := newEngine(t)
	sid := e.StartSession()
	if _, err := e.Expand(sid, "GENE:NCBI:672"); err == nil {
		t.Fatalf("expand on empty session must fail")
	}
	if _, err := e.Seed(sid, "no-such-node"); !errors.Is(err, kgerr.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound seeding unknown node, got %v", err)
	}
}

func TestTwoHopDrugMechanismPath(t *testing.T) {
	st := store.New(logger.Nop(), scoring.New(config.Default().Scoring))
	for _, n := range []*types.Node{
		{CanonicalID: "DRUG:DRUGBANK:DB00619", Type: types.NodeDrug, Name: "Imatinib"},
		{CanonicalID: "PROTEIN:UNIPROT:A9UF02", Type: types.NodeProtein, Name: "BCR/ABL fusion"},
		{CanonicalID: "DISEASE:MONDO:0011996", Type: types.NodeDisease, Name: "chronic myeloid leukemia"},
	} {
		if err := st.AddNode(n); err != nil {
			t.Fatalf("add node: %v", err)
		}
	}
	ev1, _, err := st.AddEvidence(types.Evidence{SourceRef: "PMID:11287972", PublicationYear: intp(2001)})
	if err != nil {
		t.Fatalf("add evidence: %v", err)
	}
	ev2, _, err := st.AddEvidence(types.Evidence{SourceRef: "PMID:2406902", PublicationYear: intp(1990)})
	if err != nil {
		t.Fatalf("add evidence: %v", err)
	}
	if err := st.AddEdge(&types.Edge{
		SubjectID: "DRUG:DRUGBANK:DB00619", ObjectID: "PROTEIN:UNIPROT:A9UF02",
		Predicate: types.PredicateAffectsActivityOf, Provenance: types.ProvenanceCurated,
		EvidenceIDs: []string{ev1},
	}); err != nil {
		t.Fatalf("add edge: %v", err)
	}
	if err := st.AddEdge(&types.Edge{
		SubjectID: "PROTEIN:UNIPROT:A9UF02", ObjectID: "DISEASE:MONDO:0011996",
		Predicate: types.PredicateContributesTo, Provenance: types.ProvenanceCurated,
		EvidenceIDs: []string{ev2},
	}); err != nil {
		t.Fatalf("add edge: %v", err)
	}

	e := NewEngine(logger.Nop(), st)
	sid := e.StartSession()
	if _, err := e.Seed(sid, "DRUG:DRUGBANK:DB00619"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := e.Expand(sid, "PROTEIN:UNIPROT:A9UF02"); err != nil {
		t.Fatalf("expand 1: %v", err)
	}
	path, err := e.Expand(sid, "DISEASE:MONDO:0011996")
	if err != nil {
		t.Fatalf("expand 2: %v", err)
	}

	if path.Depth() != 2 {
		t.Fatalf("depth = %d, want 2", path.Depth())
	}
	for _, edge := range path.Edges {
		evs, err := st.EdgeEvidence(edge.ID)
		if err != nil {
			t.Fatalf("edge evidence %s: %v", edge.ID, err)
		}
		if len(evs) == 0 {
			t.Fatalf("mechanism edge %s has no supporting evidence", edge.ID)
		}
	}
}
