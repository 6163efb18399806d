package repos

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/helixmap/biograph-backend/internal/kg/store"
	"github.com/helixmap/biograph-backend/internal/types"
)

// Hydrate loads the durable graph into the in-memory store. The three tables
// are fetched concurrently; application order is evidence, nodes, edges so an
// edge never references something the store has not seen yet.
func Hydrate(ctx context.Context, repo GraphRepo, st *store.Store) error {
	var (
		nodes    []*types.Node
		edges    []*types.Edge
		evidence []types.Evidence
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		nodes, err = repo.LoadNodes(gctx)
		return err
	})
	g.Go(func() (err error) {
		edges, err = repo.LoadEdges(gctx)
		return err
	})
	g.Go(func() (err error) {
		evidence, err = repo.LoadEvidence(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("hydrate: load: %w", err)
	}

	for _, ev := range evidence {
		if _, _, err := st.AddEvidence(ev); err != nil {
			return fmt.Errorf("hydrate: evidence %s: %w", ev.SourceRef, err)
		}
	}
	for _, node := range nodes {
		if err := st.AddNode(node); err != nil {
			return fmt.Errorf("hydrate: node %s: %w", node.CanonicalID, err)
		}
	}
	for _, edge := range edges {
		if err := st.AddEdge(edge); err != nil {
			return fmt.Errorf("hydrate: edge %s: %w", edge.ID, err)
		}
	}
	return nil
}

// Persist writes the store's current contents through to the durable copy.
func Persist(ctx context.Context, repo GraphRepo, st *store.Store) error {
	nodes, edges := st.Dump()
	evidence := st.AllEvidence()

	if err := repo.SaveEvidence(ctx, evidence); err != nil {
		return fmt.Errorf("persist: evidence: %w", err)
	}
	if err := repo.SaveNodes(ctx, nodes); err != nil {
		return fmt.Errorf("persist: nodes: %w", err)
	}
	if err := repo.SaveEdges(ctx, edges); err != nil {
		return fmt.Errorf("persist: edges: %w", err)
	}
	return nil
}
