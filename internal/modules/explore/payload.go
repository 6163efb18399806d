package explore

import (
	"sort"

	"github.com/helixmap/biograph-backend/internal/types"
)

// Payload is the shape delivered to the rendering collaborator: the nodes and
// edges to draw, plus the session's path as edge ids in traversal order.
type Payload struct {
	Nodes []NodePayload `json:"nodes"`
	Edges []EdgePayload `json:"edges"`
	Path  []string      `json:"path,omitempty"`
}

type NodePayload struct {
	CanonicalID string            `json:"canonical_id"`
	Type        types.NodeType    `json:"type"`
	Name        string            `json:"name"`
	Aliases     map[string]string `json:"aliases,omitempty"`
}

type EdgePayload struct {
	ID                 string           `json:"id"`
	SubjectID          string           `json:"subject_id"`
	ObjectID           string           `json:"object_id"`
	Predicate          types.Predicate  `json:"predicate"`
	Provenance         types.Provenance `json:"provenance"`
	Score              float64          `json:"score"`
	Unverified         bool             `json:"unverified"`
	EvidenceCount      int              `json:"evidence_count"`
	IndependentSupport int              `json:"independent_support"`
}

func nodePayload(n *types.Node) NodePayload {
	return NodePayload{
		CanonicalID: n.CanonicalID,
		Type:        n.Type,
		Name:        n.Name,
		Aliases:     n.Aliases,
	}
}

func edgePayload(e *types.Edge) EdgePayload {
	return EdgePayload{
		ID:                 e.ID,
		SubjectID:          e.SubjectID,
		ObjectID:           e.ObjectID,
		Predicate:          e.Predicate,
		Provenance:         e.Provenance,
		Score:              e.Score,
		Unverified:         e.Unverified,
		EvidenceCount:      len(e.EvidenceIDs),
		IndependentSupport: e.IndependentSupport,
	}
}

// payloadBuilder accumulates nodes and edges without duplicates, keeping
// first-seen order for edges and sorting nodes by canonical id at the end.
type payloadBuilder struct {
	nodes     map[string]NodePayload
	edges     []EdgePayload
	edgesSeen map[string]bool
}

func newPayloadBuilder() *payloadBuilder {
	return &payloadBuilder{
		nodes:     make(map[string]NodePayload),
		edgesSeen: make(map[string]bool),
	}
}

func (b *payloadBuilder) addNode(n *types.Node) {
	if n == nil {
		return
	}
	if _, ok := b.nodes[n.CanonicalID]; !ok {
		b.nodes[n.CanonicalID] = nodePayload(n)
	}
}

func (b *payloadBuilder) addEdge(e *types.Edge) {
	if e == nil || b.edgesSeen[e.ID] {
		return
	}
	b.edgesSeen[e.ID] = true
	b.edges = append(b.edges, edgePayload(e))
}

func (b *payloadBuilder) build(path []string) Payload {
	nodes := make([]NodePayload, 0, len(b.nodes))
	for _, n := range b.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].CanonicalID < nodes[j].CanonicalID })
	return Payload{Nodes: nodes, Edges: b.edges, Path: path}
}
