package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/helixmap/biograph-backend/internal/platform/logger"
	"github.com/helixmap/biograph-backend/internal/platform/neo4jdb"
	"github.com/helixmap/biograph-backend/internal/types"
)

// MirrorGraph upserts the canonical graph into Neo4j so external exploration
// tooling can query it with Cypher. The mirror is best-effort: it runs after
// an ingest batch and a failure never fails the batch.
func MirrorGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, nodes []*types.Node, edges []*types.Edge) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	nodeRecs := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		if n == nil || n.CanonicalID == "" {
			continue
		}
		nodeRecs = append(nodeRecs, map[string]any{
			"canonical_id": n.CanonicalID,
			"type":         string(n.Type),
			"name":         n.Name,
			"synced_at":    now,
		})
	}

	edgeRecs := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		if e == nil || e.SubjectID == "" || e.ObjectID == "" {
			continue
		}
		edgeRecs = append(edgeRecs, map[string]any{
			"id":         e.ID,
			"subject_id": e.SubjectID,
			"object_id":  e.ObjectID,
			"predicate":  string(e.Predicate),
			"provenance": string(e.Provenance),
			"score":      e.Score,
			"unverified": e.Unverified,
			"support":    int64(e.IndependentSupport),
			"synced_at":  now,
		})
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	// Schema helpers are best-effort; restricted users may not hold the grant.
	if res, err := session.Run(ctx, `CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (n:Entity) REQUIRE n.canonical_id IS UNIQUE`, nil); err != nil {
		if log != nil {
			log.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(nodeRecs) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $nodes AS n
MERGE (e:Entity {canonical_id: n.canonical_id})
SET e += n
`, map[string]any{"nodes": nodeRecs})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(edgeRecs) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MATCH (a:Entity {canonical_id: r.subject_id})
MATCH (b:Entity {canonical_id: r.object_id})
MERGE (a)-[c:CLAIM {predicate: r.predicate}]->(b)
SET c.id = r.id,
    c.provenance = r.provenance,
    c.score = r.score,
    c.unverified = r.unverified,
    c.support = r.support,
    c.synced_at = r.synced_at
`, map[string]any{"rels": edgeRecs})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}
