package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/helixmap/biograph-backend/internal/clients/redis"
	"github.com/helixmap/biograph-backend/internal/data/db"
	"github.com/helixmap/biograph-backend/internal/data/repos"
	"github.com/helixmap/biograph-backend/internal/kg/rationale"
	"github.com/helixmap/biograph-backend/internal/kg/scoring"
	"github.com/helixmap/biograph-backend/internal/kg/store"
	"github.com/helixmap/biograph-backend/internal/kg/traverse"
	"github.com/helixmap/biograph-backend/internal/modules/explore"
	"github.com/helixmap/biograph-backend/internal/platform/config"
	"github.com/helixmap/biograph-backend/internal/platform/logger"
	"github.com/helixmap/biograph-backend/internal/platform/telemetry"
	"github.com/helixmap/biograph-backend/internal/platform/textgen"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config path")
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

	ctx := context.Background()
	if shutdown := telemetry.Init(ctx, log, "biograph-explore"); shutdown != nil {
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

	st := store.New(log, scoring.New(cfg.Scoring))
	if err := repos.Hydrate(ctx, graphRepo, st); err != nil {
		log.Fatal("hydration failed", "error", err)
	}
	log.Info("graph store ready", "nodes", st.NodeCount(), "edges", st.EdgeCount())

	var gate *rationale.Gate
	gen, err := textgen.NewClient(log)
	if err != nil {
		log.Warn("narratives disabled: no text generation client", "error", err)
	} else {
		var cache rationale.Cache
		if nc, err := redis.NewNarrativeCache(log); err != nil {
			log.Warn("narrative cache disabled", "error", err)
		} else {
			cache = nc
			defer nc.Close()
		}
		gate = rationale.NewGate(log, gen, cache,
			time.Duration(cfg.Rationale.TimeoutSeconds)*time.Second,
			time.Duration(cfg.Rationale.CacheTTLMin)*time.Minute,
		)
	}

	engine := traverse.NewEngine(log, st)
	svc := explore.NewService(log, st, engine, gate)
	session := svc.StartSession()
	defer svc.EndSession(session)

	repl(ctx, svc, session, gate != nil)
}

const usage = `commands:
  search <term>            find entities by name, id, or alias
  neighbors <id> [hops]    show the neighborhood out to 1-3 hops
  seed <id>                start the path at an entity
  expand <id>              extend the path to a neighbor
  reset                    clear the path
  evidence <edge-id>       list an edge's supporting evidence
  why <edge-id>            narrative for one edge
  why-path                 narrative for the whole path
  quit`

func repl(ctx context.Context, svc *explore.Service, session string, narratives bool) {
	fmt.Println(usage)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "quit", "exit":
			return
		case "help":
			fmt.Println(usage)
		case "search":
			if len(args) == 0 {
				fmt.Println("usage: search <term>")
				continue
			}
			dump(svc.Search(strings.Join(args, " ")))
		case "neighbors":
			if len(args) == 0 {
				fmt.Println("usage: neighbors <id> [hops]")
				continue
			}
			hops := 1
			if len(args) > 1 {
				if n, err := strconv.Atoi(args[1]); err == nil {
					hops = n
				}
			}
			payload, err := svc.Neighbors(args[0], hops)
			report(payload, err)
		case "seed":
			if len(args) == 0 {
				fmt.Println("usage: seed <id>")
				continue
			}
			payload, err := svc.SeedPath(session, args[0])
			report(payload, err)
		case "expand":
			if len(args) == 0 {
				fmt.Println("usage: expand <id>")
				continue
			}
			payload, err := svc.ExpandPath(session, args[0])
			report(payload, err)
		case "reset":
			if err := svc.ResetPath(session); err != nil {
				fmt.Println("error:", err)
			}
		case "evidence":
			if len(args) == 0 {
				fmt.Println("usage: evidence <edge-id>")
				continue
			}
			evs, err := svc.EdgeEvidence(args[0])
			report(evs, err)
		case "why":
			if !narratives {
				fmt.Println("narratives disabled; set TEXTGEN_API_KEY")
				continue
			}
			if len(args) == 0 {
				fmt.Println("usage: why <edge-id>")
				continue
			}
			text, err := svc.EdgeRationale(ctx, args[0])
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println(text)
		case "why-path":
			if !narratives {
				fmt.Println("narratives disabled; set TEXTGEN_API_KEY")
				continue
			}
			text, err := svc.PathRationale(ctx, session)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println(text)
		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}
}

func report(v any, err error) {
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	dump(v)
}

func dump(v any) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(string(raw))
}
