package explore

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helixmap/biograph-backend/internal/kg/rationale"
	"github.com/helixmap/biograph-backend/internal/kg/store"
	"github.com/helixmap/biograph-backend/internal/kg/traverse"
	"github.com/helixmap/biograph-backend/internal/pkg/ctxutil"
	"github.com/helixmap/biograph-backend/internal/platform/logger"
	"github.com/helixmap/biograph-backend/internal/types"
)

// Service is the query boundary the UI collaborator consumes: entity search,
// bounded-hop neighborhoods, session path expansion, evidence listing, and
// gated rationale text.
type Service struct {
	log    *logger.Logger
	store  *store.Store
	engine *traverse.Engine
	gate   *rationale.Gate
}

func NewService(log *logger.Logger, st *store.Store, engine *traverse.Engine, gate *rationale.Gate) *Service {
	return &Service{
		log:    log.With("service", "ExploreService"),
		store:  st,
		engine: engine,
		gate:   gate,
	}
}

// Search returns matching entities ranked by match quality.
func (s *Service) Search(term string) []NodePayload {
	nodes := s.store.Search(term)
	out := make([]NodePayload, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodePayload(n))
	}
	return out
}

// Neighbors assembles the neighborhood of a node out to hopLimit hops,
// breadth-first, every frontier ranked by the store's deterministic edge
// order. The limit is clamped to the traversal bound.
func (s *Service) Neighbors(canonicalID string, hopLimit int) (Payload, error) {
	if hopLimit < 1 {
		hopLimit = 1
	}
	if hopLimit > types.MaxPathDepth {
		hopLimit = types.MaxPathDepth
	}

	seed, err := s.store.GetNode(canonicalID)
	if err != nil {
		return Payload{}, err
	}

	b := newPayloadBuilder()
	b.addNode(seed)

	frontier := []string{canonicalID}
	visited := map[string]bool{canonicalID: true}

	for hop := 0; hop < hopLimit; hop++ {
		var next []string
		for _, nodeID := range frontier {
			edges, err := s.store.GetNeighbors(nodeID)
			if err != nil {
				return Payload{}, err
			}
			for _, edge := range edges {
				b.addEdge(edge)
				if visited[edge.ObjectID] {
					continue
				}
				visited[edge.ObjectID] = true
				obj, err := s.store.GetNode(edge.ObjectID)
				if err != nil {
					return Payload{}, err
				}
				b.addNode(obj)
				next = append(next, edge.ObjectID)
			}
		}
		frontier = next
	}

	return b.build(nil), nil
}

// StartSession opens a traversal session.
func (s *Service) StartSession() string { return s.engine.StartSession() }

// EndSession discards a session and its path.
func (s *Service) EndSession(sessionID string) { s.engine.EndSession(sessionID) }

// SeedPath starts the session's path at nodeID and returns the seeded view.
func (s *Service) SeedPath(sessionID, nodeID string) (Payload, error) {
	path, err := s.engine.Seed(sessionID, nodeID)
	if err != nil {
		return Payload{}, err
	}
	return s.pathPayload(path)
}

// ExpandPath appends the edge from the path's frontier to nodeID. Typed
// failures (max depth, cycle) pass through for the UI to present an
// alternative action.
func (s *Service) ExpandPath(sessionID, nodeID string) (Payload, error) {
	path, err := s.engine.Expand(sessionID, nodeID)
	if err != nil {
		return Payload{}, err
	}
	return s.pathPayload(path)
}

// ResetPath returns the session to its empty state.
func (s *Service) ResetPath(sessionID string) error {
	return s.engine.Reset(sessionID)
}

func (s *Service) pathPayload(path *types.Path) (Payload, error) {
	b := newPayloadBuilder()
	for _, nodeID := range path.Nodes() {
		node, err := s.store.GetNode(nodeID)
		if err != nil {
			return Payload{}, err
		}
		b.addNode(node)
	}
	for _, edge := range path.Edges {
		b.addEdge(edge)
	}
	return b.build(path.EdgeIDs()), nil
}

// EdgeEvidence lists the evidence backing an edge, newest publication first.
func (s *Service) EdgeEvidence(edgeID string) ([]types.Evidence, error) {
	return s.store.EdgeEvidence(edgeID)
}

// EdgeRationale generates gated narrative text for one displayed edge. The
// gate sees exactly the evidence the user can see and nothing else; on any
// failure the fixed fallback text is returned instead of unverifiable prose.
func (s *Service) EdgeRationale(ctx context.Context, edgeID string) (string, error) {
	ctx = ctxutil.Default(ctx)
	tracer := otel.Tracer("biograph/explore")
	ctx, span := tracer.Start(ctx, "explore.edge_rationale")
	defer span.End()

	edge, err := s.store.GetEdgeByID(edgeID)
	if err != nil {
		return "", err
	}
	evidence, err := s.store.EdgeEvidence(edgeID)
	if err != nil {
		return "", err
	}
	statement, err := s.renderStatement(edge)
	if err != nil {
		return "", err
	}

	narrative, fellBack := s.gate.Generate(ctx, rationale.Subject{
		ID:         edge.ID,
		Statements: []string{statement},
	}, evidence)
	span.SetAttributes(attribute.Bool("rationale.fallback", fellBack))
	return narrative, nil
}

// PathRationale generates gated narrative text for the session's whole path,
// grounded in the union of the evidence already shown for its edges.
func (s *Service) PathRationale(ctx context.Context, sessionID string) (string, error) {
	ctx = ctxutil.Default(ctx)
	tracer := otel.Tracer("biograph/explore")
	ctx, span := tracer.Start(ctx, "explore.path_rationale")
	defer span.End()

	path, err := s.engine.Path(sessionID)
	if err != nil {
		return "", err
	}
	if path == nil || path.Depth() == 0 {
		return "", fmt.Errorf("explore: session %s has no expanded path", sessionID)
	}

	var (
		statements []string
		evidence   []types.Evidence
		seenRefs   = map[string]bool{}
	)
	for _, edge := range path.Edges {
		statement, err := s.renderStatement(edge)
		if err != nil {
			return "", err
		}
		statements = append(statements, statement)

		evs, err := s.store.EdgeEvidence(edge.ID)
		if err != nil {
			return "", err
		}
		for _, ev := range evs {
			if !seenRefs[ev.SourceRef] {
				seenRefs[ev.SourceRef] = true
				evidence = append(evidence, ev)
			}
		}
	}

	narrative, fellBack := s.gate.Generate(ctx, rationale.Subject{
		ID:         path.ID,
		Statements: statements,
	}, evidence)
	span.SetAttributes(attribute.Bool("rationale.fallback", fellBack))
	return narrative, nil
}

func (s *Service) renderStatement(edge *types.Edge) (string, error) {
	subject, err := s.store.GetNode(edge.SubjectID)
	if err != nil {
		return "", err
	}
	object, err := s.store.GetNode(edge.ObjectID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (%s) %s %s (%s) [%s provenance, score %.2f]",
		subject.Name, subject.Type, edge.Predicate, object.Name, object.Type,
		edge.Provenance, edge.Score), nil
}
