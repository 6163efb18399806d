package types

// MaxPathDepth bounds every traversal; a path never holds more edges.
const MaxPathDepth = 3

// Path is a session-scoped, ordered sequence of edges forming one traversal.
// It is simple (no repeated node) and owned exclusively by its session, so it
// needs no locking of its own. Paths are never persisted.
type Path struct {
	ID        string  `json:"id"`
	SessionID string  `json:"session_id"`
	SeedID    string  `json:"seed_id"`
	Edges     []*Edge `json:"edges"`
}

func (p *Path) Depth() int { return len(p.Edges) }

// Frontier is the node the next expansion starts from.
func (p *Path) Frontier() string {
	if len(p.Edges) == 0 {
		return p.SeedID
	}
	return p.Edges[len(p.Edges)-1].ObjectID
}

// Nodes returns the visited node ids in traversal order, seed first.
func (p *Path) Nodes() []string {
	out := make([]string, 0, len(p.Edges)+1)
	out = append(out, p.SeedID)
	for _, e := range p.Edges {
		out = append(out, e.ObjectID)
	}
	return out
}

// Contains reports whether nodeID already appears in the path.
func (p *Path) Contains(nodeID string) bool {
	if p.SeedID == nodeID {
		return true
	}
	for _, e := range p.Edges {
		if e.ObjectID == nodeID {
			return true
		}
	}
	return false
}

// EdgeIDs returns edge ids in traversal order, for the output payload.
func (p *Path) EdgeIDs() []string {
	out := make([]string, 0, len(p.Edges))
	for _, e := range p.Edges {
		out = append(out, e.ID)
	}
	return out
}
