package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helixmap/biograph-backend/internal/kg/scoring"
	"github.com/helixmap/biograph-backend/internal/platform/kgerr"
	"github.com/helixmap/biograph-backend/internal/platform/logger"
	"github.com/helixmap/biograph-backend/internal/types"
)

// Store holds canonical nodes and merged edges with hash-indexed adjacency.
// A single RWMutex serializes writes; readers proceed against the
// last-committed state and never observe an edge whose evidence set and score
// disagree, because merge and recompute happen under one write lock.
type Store struct {
	mu  sync.RWMutex
	log *logger.Logger
	agg *scoring.Aggregator

	nodes map[string]*types.Node
	edges map[string]*types.Edge
	// subject id -> edge keys, unordered; ordering is applied on read.
	adjacency map[string][]string

	evidence    map[string]types.Evidence
	bySourceRef map[string]string // source_ref -> evidence id
}

func New(log *logger.Logger, agg *scoring.Aggregator) *Store {
	return &Store{
		log:         log.With("service", "GraphStore"),
		agg:         agg,
		nodes:       make(map[string]*types.Node),
		edges:       make(map[string]*types.Edge),
		adjacency:   make(map[string][]string),
		evidence:    make(map[string]types.Evidence),
		bySourceRef: make(map[string]string),
	}
}

// AddNode inserts node or no-ops when the canonical id already exists. A
// duplicate canonical id carrying a different type is corruption and halts
// ingestion for manual review.
func (s *Store) AddNode(node *types.Node) error {
	if node == nil || strings.TrimSpace(node.CanonicalID) == "" {
		return fmt.Errorf("store: node with empty canonical id")
	}
	if !node.Type.Valid() {
		return fmt.Errorf("store: node %s: invalid type %q", node.CanonicalID, node.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.nodes[node.CanonicalID]; ok {
		if existing.Type != node.Type {
			return fmt.Errorf("%w: canonical id %s claimed as both %s and %s",
				kgerr.ErrStoreCorrupt, node.CanonicalID, existing.Type, node.Type)
		}
		// Merge aliases from the new sighting; identity stays put.
		for ns, ext := range node.Aliases {
			if _, taken := existing.Aliases[ns]; !taken {
				if existing.Aliases == nil {
					existing.Aliases = make(map[string]string)
				}
				existing.Aliases[ns] = ext
			}
		}
		existing.UpdatedAt = time.Now().UTC()
		return nil
	}

	cp := node.Clone()
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.nodes[cp.CanonicalID] = cp
	return nil
}

// AddEvidence registers an evidence record and returns its id. Evidence is
// immutable: re-ingesting an existing source_ref is a no-op that returns the
// original id with created=false.
func (s *Store) AddEvidence(ev types.Evidence) (id string, created bool, err error) {
	ref := strings.TrimSpace(ev.SourceRef)
	if ref == "" {
		return "", false, fmt.Errorf("store: evidence with empty source_ref")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.bySourceRef[ref]; ok {
		return id, false, nil
	}
	if strings.TrimSpace(ev.ID) == "" {
		ev.ID = uuid.NewString()
	}
	ev.SourceRef = ref
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	s.evidence[ev.ID] = ev
	s.bySourceRef[ref] = ev.ID
	return ev.ID, true, nil
}

// AddEdge inserts or merges. An existing `(subject, object, predicate)` edge
// absorbs the new sighting: evidence ids are unioned, provenance upgraded,
// and the score recomputed before the lock is released, so readers only ever
// see fully-merged edges.
func (s *Store) AddEdge(edge *types.Edge) error {
	if edge == nil {
		return fmt.Errorf("store: nil edge")
	}
	if !edge.Predicate.Valid() {
		return fmt.Errorf("store: invalid predicate %q", edge.Predicate)
	}
	if !edge.Provenance.Valid() {
		return fmt.Errorf("store: invalid provenance %q", edge.Provenance)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[edge.SubjectID]; !ok {
		return fmt.Errorf("%w: edge subject %s", kgerr.ErrNodeNotFound, edge.SubjectID)
	}
	if _, ok := s.nodes[edge.ObjectID]; !ok {
		return fmt.Errorf("%w: edge object %s", kgerr.ErrNodeNotFound, edge.ObjectID)
	}
	for _, id := range edge.EvidenceIDs {
		if _, ok := s.evidence[id]; !ok {
			return fmt.Errorf("store: edge references unknown evidence %s", id)
		}
	}

	key := edge.Key()
	now := time.Now().UTC()

	existing, ok := s.edges[key]
	if !ok {
		cp := edge.Clone()
		cp.ID = key
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		cp.UpdatedAt = now
		s.rescoreLocked(cp)
		s.edges[key] = cp
		s.adjacency[cp.SubjectID] = append(s.adjacency[cp.SubjectID], key)
		return nil
	}

	existing.Provenance = existing.Provenance.Upgrade(edge.Provenance)
	existing.EvidenceIDs = unionIDs(existing.EvidenceIDs, edge.EvidenceIDs)
	existing.UpdatedAt = now
	s.rescoreLocked(existing)
	return nil
}

// AttachEvidence adds evidence ids to an existing edge and recomputes its
// score in the same critical section.
func (s *Store) AttachEvidence(edgeID string, evidenceIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.edges[edgeID]
	if !ok {
		return kgerr.ErrEdgeNotFound
	}
	for _, id := range evidenceIDs {
		if _, ok := s.evidence[id]; !ok {
			return fmt.Errorf("store: unknown evidence %s", id)
		}
	}
	edge.EvidenceIDs = unionIDs(edge.EvidenceIDs, evidenceIDs)
	edge.UpdatedAt = time.Now().UTC()
	s.rescoreLocked(edge)
	return nil
}

// rescoreLocked derives score, unverified, support, and latest year from the
// edge's current evidence set. Callers hold the write lock.
func (s *Store) rescoreLocked(edge *types.Edge) {
	evs := make([]types.Evidence, 0, len(edge.EvidenceIDs))
	for _, id := range edge.EvidenceIDs {
		if ev, ok := s.evidence[id]; ok {
			evs = append(evs, ev)
		}
	}
	res := s.agg.Score(edge.Provenance, evs)
	edge.Score = res.Score
	edge.Unverified = res.Unverified
	edge.IndependentSupport = res.IndependentSupport
	edge.LatestEvidenceYear = res.LatestEvidenceYear
}

// RecomputeAll rescores every edge, for use after a scoring-config change.
// Scoring is idempotent, so running this on an unchanged store is a no-op.
func (s *Store) RecomputeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, edge := range s.edges {
		s.rescoreLocked(edge)
	}
}

func (s *Store) GetNode(canonicalID string) (*types.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[canonicalID]
	if !ok {
		return nil, kgerr.ErrNodeNotFound
	}
	return node.Clone(), nil
}

func (s *Store) GetEdge(subjectID, objectID string, predicate types.Predicate) (*types.Edge, error) {
	return s.GetEdgeByID(types.EdgeKey(subjectID, objectID, predicate))
}

func (s *Store) GetEdgeByID(edgeID string) (*types.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edge, ok := s.edges[edgeID]
	if !ok {
		return nil, kgerr.ErrEdgeNotFound
	}
	return edge.Clone(), nil
}

// GetNeighbors returns the outgoing edges of a node in a deterministic total
// order: score descending, most recent evidence year descending, then object
// canonical id ascending. An optional predicate filter narrows the result.
func (s *Store) GetNeighbors(nodeID string, predicates ...types.Predicate) ([]*types.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[nodeID]; !ok {
		return nil, kgerr.ErrNodeNotFound
	}

	var filter map[types.Predicate]bool
	if len(predicates) > 0 {
		filter = make(map[types.Predicate]bool, len(predicates))
		for _, p := range predicates {
			filter[p] = true
		}
	}

	out := make([]*types.Edge, 0, len(s.adjacency[nodeID]))
	for _, key := range s.adjacency[nodeID] {
		edge := s.edges[key]
		if filter != nil && !filter[edge.Predicate] {
			continue
		}
		out = append(out, edge.Clone())
	}
	sortEdges(out)
	return out, nil
}

func sortEdges(edges []*types.Edge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.LatestEvidenceYear != b.LatestEvidenceYear {
			return a.LatestEvidenceYear > b.LatestEvidenceYear
		}
		return a.ObjectID < b.ObjectID
	})
}

// EdgeEvidence returns the evidence attached to an edge, ordered by
// publication year descending and then source_ref ascending.
func (s *Store) EdgeEvidence(edgeID string) ([]types.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edge, ok := s.edges[edgeID]
	if !ok {
		return nil, kgerr.ErrEdgeNotFound
	}
	out := make([]types.Evidence, 0, len(edge.EvidenceIDs))
	for _, id := range edge.EvidenceIDs {
		if ev, ok := s.evidence[id]; ok {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		yi, yj := 0, 0
		if out[i].PublicationYear != nil {
			yi = *out[i].PublicationYear
		}
		if out[j].PublicationYear != nil {
			yj = *out[j].PublicationYear
		}
		if yi != yj {
			return yi > yj
		}
		return out[i].SourceRef < out[j].SourceRef
	})
	return out, nil
}

// Search matches term against node names, canonical ids, and aliases,
// case-insensitively. Exact name matches sort first, then prefix matches,
// then the rest, each group by canonical id for a stable order.
func (s *Store) Search(term string) []*types.Node {
	q := strings.ToLower(strings.TrimSpace(term))
	if q == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type ranked struct {
		node *types.Node
		rank int
	}
	var hits []ranked
	for _, node := range s.nodes {
		name := strings.ToLower(node.Name)
		switch {
		case name == q || strings.EqualFold(node.CanonicalID, term):
			hits = append(hits, ranked{node, 0})
		case strings.HasPrefix(name, q):
			hits = append(hits, ranked{node, 1})
		case strings.Contains(name, q) || aliasMatch(node, q):
			hits = append(hits, ranked{node, 2})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		return hits[i].node.CanonicalID < hits[j].node.CanonicalID
	})
	out := make([]*types.Node, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.node.Clone())
	}
	return out
}

func aliasMatch(node *types.Node, q string) bool {
	for _, ext := range node.Aliases {
		if strings.Contains(strings.ToLower(ext), q) {
			return true
		}
	}
	return false
}

// Dump returns copies of all nodes and edges, for persistence write-through
// and the Neo4j mirror.
func (s *Store) Dump() ([]*types.Node, []*types.Edge) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*types.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n.Clone())
	}
	edges := make([]*types.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		edges = append(edges, e.Clone())
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].CanonicalID < nodes[j].CanonicalID })
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return nodes, edges
}

// AllEvidence returns every evidence record, ordered by source_ref.
func (s *Store) AllEvidence() []types.Evidence {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Evidence, 0, len(s.evidence))
	for _, ev := range s.evidence {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceRef < out[j].SourceRef })
	return out
}

func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

func unionIDs(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range a {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range b {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
