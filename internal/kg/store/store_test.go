package store

import (
	"errors"
	"testing"

	"github.com/helixmap/biograph-backend/internal/kg/scoring"
	"github.com/helixmap/biograph-backend/internal/platform/config"
	"github.com/helixmap/biograph-backend/internal/platform/kgerr"
	"github.com/helixmap/biograph-backend/internal/platform/logger"
	"github.com/helixmap/biograph-backend/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(logger.Nop(), scoring.New(config.Default().Scoring))
}

func addNode(t *testing.T, s *Store, id string, typ types.NodeType, name string) {
	t.Helper()
	if err := s.AddNode(&types.Node{CanonicalID: id, Type: typ, Name: name}); err != nil {
		t.Fatalf("add node %s: %v", id, err)
	}
}

func addEvidence(t *testing.T, s *Store, ref, cluster string, year *int) string {
	t.Helper()
	id, _, err := s.AddEvidence(types.Evidence{SourceRef: ref, ClusterID: cluster, PublicationYear: year})
	if err != nil {
		t.Fatalf("add evidence %s: %v", ref, err)
	}
	return id
}

func intp(v int) *int { return &v }

func TestAddNodeIdempotentAndAliasMerge(t *testing.T) {
	s := newTestStore(t)

	addNode(t, s, "GENE:NCBI:672", types.NodeGene, "BRCA1")
	if err := s.AddNode(&types.Node{
		CanonicalID: "GENE:NCBI:672",
		Type:        types.NodeGene,
		Name:        "BRCA1",
		Aliases:     map[string]string{"UNIPROT": "P38398"},
	}); err != nil {
		t.Fatalf("re-add node: %v", err)
	}

	node, err := s.GetNode("GENE:NCBI:672")
	if err != nil {
		t.Fatalf("get node: %v", err)
	}
	if node.Aliases["UNIPROT"] != "P38398" {
		t.Fatalf("alias not merged: %v", node.Aliases)
	}
	if s.NodeCount() != 1 {
		t.Fatalf("node count = %d, want 1", s.NodeCount())
	}
}

func TestAddNodeConflictingTypeIsCorruption(t *testing.T) {
	s := newTestStore(t)

	addNode(t, s, "GENE:NCBI:672", types.NodeGene, "BRCA1")
	err := s.AddNode(&types.Node{CanonicalID: "GENE:NCBI:672", Type: types.NodeDrug, Name: "BRCA1"})
	if !errors.Is(err, kgerr.ErrStoreCorrupt) {
		t.Fatalf("expected ErrStoreCorrupt, got %v", err)
	}
}

func TestAddEdgeMergesAcrossSources(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "GENE:NCBI:672", types.NodeGene, "BRCA1")
	addNode(t, s, "DISEASE:MONDO:0007254", types.NodeDisease, "breast cancer")

	ev1 := addEvidence(t, s, "PMID:7545954", "c1", intp(1995))
	ev2 := addEvidence(t, s, "PMID:28632866", "c2", intp(2017))

	// Text-mined sighting first.
	if err := s.AddEdge(&types.Edge{
		SubjectID:   "GENE:NCBI:672",
		ObjectID:    "DISEASE:MONDO:0007254",
		Predicate:   types.PredicateGeneAssociatedWithCondition,
		Provenance:  types.ProvenanceTextMined,
		EvidenceIDs: []string{ev1},
	}); err != nil {
		t.Fatalf("first add edge: %v", err)
	}

	// Curated sighting of the same triple with disjoint evidence.
	if err := s.AddEdge(&types.Edge{
		SubjectID:   "GENE:NCBI:672",
		ObjectID:    "DISEASE:MONDO:0007254",
		Predicate:   types.PredicateGeneAssociatedWithCondition,
		Provenance:  types.ProvenanceCurated,
		EvidenceIDs: []string{ev2},
	}); err != nil {
		t.Fatalf("second add edge: %v", err)
	}

	if s.EdgeCount() != 1 {
		t.Fatalf("edge count = %d, want 1 merged edge", s.EdgeCount())
	}
	edge, err := s.GetEdge("GENE:NCBI:672", "DISEASE:MONDO:0007254", types.PredicateGeneAssociatedWithCondition)
	if err != nil {
		t.Fatalf("get edge: %v", err)
	}
	if len(edge.EvidenceIDs) != 2 {
		t.Fatalf("evidence union size = %d, want 2", len(edge.EvidenceIDs))
	}
	if edge.Provenance != types.ProvenanceCurated {
		t.Fatalf("provenance = %s, want curated after upgrade", edge.Provenance)
	}
	if edge.IndependentSupport != 2 {
		t.Fatalf("independent support = %d, want 2", edge.IndependentSupport)
	}
	if edge.Unverified {
		t.Fatalf("edge with evidence must not be unverified")
	}
}

func TestEvidenceReingestIsNoop(t *testing.T) {
	s := newTestStore(t)

	id1, created1, err := s.AddEvidence(types.Evidence{SourceRef: "PMID:1", Snippet: "first"})
	if err != nil || !created1 {
		t.Fatalf("first add: id=%s created=%v err=%v", id1, created1, err)
	}
	id2, created2, err := s.AddEvidence(types.Evidence{SourceRef: "PMID:1", Snippet: "second wording"})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if created2 {
		t.Fatalf("re-ingesting same source_ref must be a no-op")
	}
	if id1 != id2 {
		t.Fatalf("re-ingest returned different id: %s vs %s", id1, id2)
	}
}

func TestGetNeighborsDeterministicOrder(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "GENE:NCBI:672", types.NodeGene, "BRCA1")
	addNode(t, s, "PATHWAY:REACTOME:R-HSA-5685942", types.NodePathway, "HDR through homologous recombination")
	addNode(t, s, "DISEASE:MONDO:0007254", types.NodeDisease, "breast cancer")
	addNode(t, s, "PROTEIN:UNIPROT:P38398", types.NodeProtein, "BRCA1 protein")

	evStrong1 := addEvidence(t, s, "PMID:a1", "cA", intp(2020))
	evStrong2 := addEvidence(t, s, "PMID:a2", "cB", intp(2021))
	evWeak := addEvidence(t, s, "PMID:b1", "cC", intp(2010))

	mustAdd := func(object string, predicate types.Predicate, evidence []string) {
		t.Helper()
		if err := s.AddEdge(&types.Edge{
			SubjectID:   "GENE:NCBI:672",
			ObjectID:    object,
			Predicate:   predicate,
			Provenance:  types.ProvenanceCurated,
			EvidenceIDs: evidence,
		}); err != nil {
			t.Fatalf("add edge to %s: %v", object, err)
		}
	}
	mustAdd("PATHWAY:REACTOME:R-HSA-5685942", types.PredicateParticipatesIn, []string{evStrong1, evStrong2})
	mustAdd("DISEASE:MONDO:0007254", types.PredicateGeneAssociatedWithCondition, []string{evWeak})
	mustAdd("PROTEIN:UNIPROT:P38398", types.PredicateInteractsWith, nil)

	first, err := s.GetNeighbors("GENE:NCBI:672")
	if err != nil {
		t.Fatalf("get neighbors: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("neighbors = %d, want 3", len(first))
	}
	if first[0].ObjectID != "PATHWAY:REACTOME:R-HSA-5685942" {
		t.Fatalf("highest-scored edge first, got %s", first[0].ObjectID)
	}
	for i := 1; i < len(first); i++ {
		if first[i-1].Score < first[i].Score {
			t.Fatalf("neighbors not sorted by score desc")
		}
	}

	// A second read yields the identical order.
	second, err := s.GetNeighbors("GENE:NCBI:672")
	if err != nil {
		t.Fatalf("get neighbors again: %v", err)
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("order not deterministic at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestGetNeighborsPredicateFilter(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "DRUG:DRUGBANK:DB00619", types.NodeDrug, "Imatinib")
	addNode(t, s, "PROTEIN:UNIPROT:A9UF02", types.NodeProtein, "BCR/ABL fusion")
	addNode(t, s, "DISEASE:MONDO:0011996", types.NodeDisease, "chronic myeloid leukemia")

	for _, e := range []*types.Edge{
		{SubjectID: "DRUG:DRUGBANK:DB00619", ObjectID: "PROTEIN:UNIPROT:A9UF02", Predicate: types.PredicateInteractsWith, Provenance: types.ProvenanceCurated},
		{SubjectID: "DRUG:DRUGBANK:DB00619", ObjectID: "DISEASE:MONDO:0011996", Predicate: types.PredicateTreats, Provenance: types.ProvenanceCurated},
	} {
		if err := s.AddEdge(e); err != nil {
			t.Fatalf("add edge: %v", err)
		}
	}

	treats, err := s.GetNeighbors("DRUG:DRUGBANK:DB00619", types.PredicateTreats)
	if err != nil {
		t.Fatalf("get neighbors: %v", err)
	}
	if len(treats) != 1 || treats[0].Predicate != types.PredicateTreats {
		t.Fatalf("predicate filter failed: %+v", treats)
	}
}

func TestGetEdgeNotFound(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "GENE:NCBI:672", types.NodeGene, "BRCA1")

	if _, err := s.GetEdge("GENE:NCBI:672", "nope", types.PredicateTreats); !errors.Is(err, kgerr.ErrEdgeNotFound) {
		t.Fatalf("expected ErrEdgeNotFound, got %v", err)
	}
	if _, err := s.GetNeighbors("nope"); !errors.Is(err, kgerr.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestEdgeEvidenceOrdering(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "a", types.NodeGene, "a")
	addNode(t, s, "b", types.NodeDisease, "b")

	old := addEvidence(t, s, "PMID:old", "c1", intp(1999))
	newer := addEvidence(t, s, "PMID:new", "c2", intp(2022))
	undated := addEvidence(t, s, "CTD:rec1", "c3", nil)

	if err := s.AddEdge(&types.Edge{
		SubjectID: "a", ObjectID: "b",
		Predicate:   types.PredicateGeneAssociatedWithCondition,
		Provenance:  types.ProvenanceCurated,
		EvidenceIDs: []string{old, undated, newer},
	}); err != nil {
		t.Fatalf("add edge: %v", err)
	}

	evs, err := s.EdgeEvidence(types.EdgeKey("a", "b", types.PredicateGeneAssociatedWithCondition))
	if err != nil {
		t.Fatalf("edge evidence: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("evidence = %d, want 3", len(evs))
	}
	if evs[0].SourceRef != "PMID:new" || evs[1].SourceRef != "PMID:old" || evs[2].SourceRef != "CTD:rec1" {
		t.Fatalf("evidence order wrong: %s, %s, %s", evs[0].SourceRef, evs[1].SourceRef, evs[2].SourceRef)
	}
}

func TestSearchRanking(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "GENE:NCBI:672", types.NodeGene, "BRCA1")
	addNode(t, s, "GENE:NCBI:675", types.NodeGene, "BRCA2")
	addNode(t, s, "DISEASE:MONDO:0007254", types.NodeDisease, "breast cancer")

	hits := s.Search("BRCA1")
	if len(hits) == 0 || hits[0].CanonicalID != "GENE:NCBI:672" {
		t.Fatalf("exact name match must rank first: %+v", hits)
	}

	hits = s.Search("brca")
	if len(hits) != 2 {
		t.Fatalf("prefix search hits = %d, want 2", len(hits))
	}

	if got := s.Search(""); got != nil {
		t.Fatalf("empty term must return nothing")
	}
}

func TestRecomputeAllIdempotent(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "a", types.NodeGene, "a")
	addNode(t, s, "b", types.NodePathway, "b")
	ev := addEvidence(t, s, "PMID:1", "c1", intp(2018))
	if err := s.AddEdge(&types.Edge{
		SubjectID: "a", ObjectID: "b",
		Predicate: types.PredicateParticipatesIn, Provenance: types.ProvenanceCurated,
		EvidenceIDs: []string{ev},
	}); err != nil {
		t.Fatalf("add edge: %v", err)
	}

	before, _ := s.GetEdge("a", "b", types.PredicateParticipatesIn)
	s.RecomputeAll()
	s.RecomputeAll()
	after, _ := s.GetEdge("a", "b", types.PredicateParticipatesIn)
	if before.Score != after.Score {
		t.Fatalf("recompute changed score on unchanged evidence: %v vs %v", before.Score, after.Score)
	}
}
