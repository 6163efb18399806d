package traverse

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/helixmap/biograph-backend/internal/kg/store"
	"github.com/helixmap/biograph-backend/internal/platform/kgerr"
	"github.com/helixmap/biograph-backend/internal/platform/logger"
	"github.com/helixmap/biograph-backend/internal/types"
)

// Engine answers bounded-hop neighborhood queries and drives one path state
// machine per user session: Empty until seeded, then Expanded(d) for d = 1..3.
// Sessions are independent; a path is touched only through its own session.
type Engine struct {
	log   *logger.Logger
	store *store.Store

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	mu   sync.Mutex
	path *types.Path
}

func NewEngine(log *logger.Logger, st *store.Store) *Engine {
	return &Engine{
		log:      log.With("service", "TraversalEngine"),
		store:    st,
		sessions: make(map[string]*session),
	}
}

// StartSession creates an empty session and returns its id.
func (e *Engine) StartSession() string {
	id := uuid.NewString()
	e.mu.Lock()
	e.sessions[id] = &session{}
	e.mu.Unlock()
	return id
}

// EndSession discards the session and its path.
func (e *Engine) EndSession(sessionID string) {
	e.mu.Lock()
	delete(e.sessions, sessionID)
	e.mu.Unlock()
}

func (e *Engine) session(sessionID string) (*session, error) {
	e.mu.RLock()
	s, ok := e.sessions[sessionID]
	e.mu.RUnlock()
	if !ok {
		return nil, kgerr.ErrSessionNotFound
	}
	return s, nil
}

// Seed moves the session from Empty to Seeded at the given node.
func (e *Engine) Seed(sessionID, nodeID string) (*types.Path, error) {
	s, err := e.session(sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.GetNode(nodeID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.path = &types.Path{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		SeedID:    nodeID,
	}
	return clonePath(s.path), nil
}

// Expand appends the edge from the path's frontier to targetNodeID. When the
// frontier connects to the target through more than one predicate, the
// highest-ranked edge is taken. Fails with ErrMaxDepthExceeded at depth 3 and
// ErrCycleRejected when the target already appears in the path; both leave
// the path untouched.
func (e *Engine) Expand(sessionID, targetNodeID string) (*types.Path, error) {
	s, err := e.session(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == nil {
		return nil, fmt.Errorf("traverse: session %s has no seed", sessionID)
	}
	if s.path.Depth() >= types.MaxPathDepth {
		return nil, kgerr.ErrMaxDepthExceeded
	}
	if s.path.Contains(targetNodeID) {
		return nil, kgerr.ErrCycleRejected
	}

	frontier := s.path.Frontier()
	edges, err := e.store.GetNeighbors(frontier)
	if err != nil {
		return nil, err
	}
	var chosen *types.Edge
	for _, edge := range edges {
		if edge.ObjectID == targetNodeID {
			chosen = edge
			break
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("%w: %s -> %s", kgerr.ErrEdgeNotFound, frontier, targetNodeID)
	}

	s.path.Edges = append(s.path.Edges, chosen)
	return clonePath(s.path), nil
}

// Reset returns the session to Empty without ending it.
func (e *Engine) Reset(sessionID string) error {
	s, err := e.session(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.path = nil
	s.mu.Unlock()
	return nil
}

// Path returns a snapshot of the session's current path, or nil when Empty.
func (e *Engine) Path(sessionID string) (*types.Path, error) {
	s, err := e.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePath(s.path), nil
}

// Neighbors is the stateless read path: it previews a node's ranked outgoing
// edges at any depth without mutating any session.
func (e *Engine) Neighbors(nodeID string, predicates ...types.Predicate) ([]*types.Edge, error) {
	return e.store.GetNeighbors(nodeID, predicates...)
}

func clonePath(p *types.Path) *types.Path {
	if p == nil {
		return nil
	}
	cp := &types.Path{
		ID:        p.ID,
		SessionID: p.SessionID,
		SeedID:    p.SeedID,
		Edges:     make([]*types.Edge, 0, len(p.Edges)),
	}
	for _, e := range p.Edges {
		cp.Edges = append(cp.Edges, e.Clone())
	}
	return cp
}
