package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/helixmap/biograph-backend/internal/data/db"
	neograph "github.com/helixmap/biograph-backend/internal/data/graph"
	"github.com/helixmap/biograph-backend/internal/data/repos"
	"github.com/helixmap/biograph-backend/internal/ingest"
	"github.com/helixmap/biograph-backend/internal/kg/resolver"
	"github.com/helixmap/biograph-backend/internal/kg/scoring"
	"github.com/helixmap/biograph-backend/internal/kg/store"
	"github.com/helixmap/biograph-backend/internal/platform/config"
	"github.com/helixmap/biograph-backend/internal/platform/logger"
	"github.com/helixmap/biograph-backend/internal/platform/neo4jdb"
	"github.com/helixmap/biograph-backend/internal/platform/telemetry"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config path")
	sourceURI := flag.String("source", "", "feed to ingest: local path or gs://bucket/object")
	flag.Parse()

	cfg, cfgErr := config.Load(*configPath)

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfgErr != nil {
		log.Fatal("config load failed", "error", cfgErr)
	}
	if *sourceURI == "" {
		log.Fatal("missing -source")
	}

	ctx := context.Background()
	if shutdown := telemetry.Init(ctx, log, "biograph-ingest"); shutdown != nil {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	dbService, err := db.New(log)
	if err != nil {
		log.Fatal("database init failed", "error", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Fatal("database migration failed", "error", err)
	}
	graphRepo := repos.NewGraphRepo(dbService.DB(), log)

	agg := scoring.New(cfg.Scoring)
	st := store.New(log, agg)
	res := resolver.New(log)

	log.Info("hydrating graph store from durable copy")
	if err := repos.Hydrate(ctx, graphRepo, st); err != nil {
		log.Fatal("hydration failed", "error", err)
	}
	hydrated, _ := st.Dump()
	for _, node := range hydrated {
		for ns, ext := range node.Aliases {
			res.RegisterNamespace(ns)
			if err := res.Register(ns, ext, node.CanonicalID); err != nil {
				log.Warn("alias re-registration failed", "canonical_id", node.CanonicalID, "error", err)
			}
		}
	}
	log.Info("graph store ready", "nodes", st.NodeCount(), "edges", st.EdgeCount())

	job := ingest.NewJob(log, res, st)
	report, err := job.RunSource(ctx, *sourceURI)
	if err != nil {
		log.Fatal("ingest halted", "error", err, "rows_seen", report.RowsSeen)
	}
	for _, reason := range report.SkipReasons {
		log.Warn("row skipped", "reason", reason)
	}

	neo4jClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Warn("neo4j mirror unavailable", "error", err)
	}
	defer neo4jClient.Close(ctx)

	nodes, edges := st.Dump()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return repos.Persist(gctx, graphRepo, st)
	})
	g.Go(func() error {
		if err := neograph.MirrorGraph(gctx, neo4jClient, log, nodes, edges); err != nil {
			// Best-effort: the durable copy is authoritative.
			log.Warn("neo4j mirror failed", "error", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Fatal("persist failed", "error", err)
	}

	log.Info("ingest finished",
		"rows", report.RowsSeen,
		"edges_loaded", report.EdgesLoaded,
		"nodes_created", report.NodesCreated,
		"evidence_added", report.EvidenceAdded,
		"skipped", report.Skipped,
	)
}
