package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Rajchodisetti/chaingate/internal/chain"
	"github.com/Rajchodisetti/chaingate/internal/config"
	"github.com/Rajchodisetti/chaingate/internal/contract"
	"github.com/Rajchodisetti/chaingate/internal/observ"
	"github.com/Rajchodisetti/chaingate/internal/publish"
	"github.com/Rajchodisetti/chaingate/internal/store"
	"github.com/Rajchodisetti/chaingate/internal/universe"
)

// chainsel runs every configured universe once and prints one JSON line per
// candidate set: the universe selection first, then its option chains.
func main() {
	var cfgPath string
	var asOfFlag string
	var doPublish bool
	var seed bool
	flag.StringVar(&cfgPath, "config", "config/config.yaml", "config path")
	flag.StringVar(&asOfFlag, "asof", "", "evaluation time, RFC3339 or YYYY-MM-DD (default now)")
	flag.BoolVar(&doPublish, "publish", false, "publish candidate sets to redis")
	flag.BoolVar(&seed, "seed-store", false, "copy the catalog file into store.dsn before selecting")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if v := os.Getenv("CHAINGATE_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("CHAINGATE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}

	observ.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	if !cfg.Logging.Pretty {
		observ.SetOutput(os.Stderr)
	}

	now := time.Now().UTC()
	if asOfFlag != "" {
		if now, err = parseAsOf(asOfFlag); err != nil {
			log.Fatalf("asof: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	catalog := contract.NewCatalog()
	source, closeSource, err := catalogSource(ctx, cfg, seed)
	if err != nil {
		log.Fatalf("catalog source: %v", err)
	}
	defer closeSource()
	if _, err := contract.NewReloader(catalog, source, cfg.Catalog.RefreshPerMinute).Reload(ctx); err != nil {
		log.Fatalf("load catalog: %v", err)
	}

	registry, err := cfg.Registry()
	if err != nil {
		log.Fatalf("calendars: %v", err)
	}
	unis, err := cfg.UniverseConfigs()
	if err != nil {
		log.Fatalf("universes: %v", err)
	}

	var pub *publish.CandidatePublisher
	if doPublish {
		if cfg.Redis.Addr == "" {
			log.Fatalf("publish: redis.addr is not configured")
		}
		client := publish.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()
		pub = publish.NewCandidatePublisher(client, cfg.Redis.ChannelPrefix)
	}

	enc := json.NewEncoder(os.Stdout)
	failed := 0
	for _, uc := range unis {
		cal, _ := registry.Calendar(uc.Exchange)
		u, err := universe.Initialize(uc.Config, catalog, cal, now)
		if err != nil {
			observ.Warn("universe_failed", map[string]any{"universe": uc.Name, "error": err.Error()})
			failed++
			continue
		}
		sel := u.Current()
		sets := append([]chain.CandidateSet{sel.Candidates}, chainsInOrder(sel)...)
		for _, cs := range sets {
			if err := enc.Encode(cs); err != nil {
				log.Fatalf("write: %v", err)
			}
			if pub == nil {
				continue
			}
			if _, err := pub.Publish(ctx, cs); err != nil {
				observ.Warn("publish_failed", map[string]any{"spec": cs.Spec, "error": err.Error()})
			}
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d universes failed\n", failed, len(unis))
		os.Exit(1)
	}
}

func chainsInOrder(sel *universe.Selection) []chain.CandidateSet {
	var out []chain.CandidateSet
	for _, parent := range sel.Candidates.Symbols() {
		if cs, ok := sel.Chains[parent]; ok {
			out = append(out, cs)
		}
	}
	return out
}

func parseAsOf(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// catalogSource prefers the database when store.dsn is set. With seed the
// catalog file is upserted into the database first.
func catalogSource(ctx context.Context, cfg config.Root, seed bool) (contract.Source, func(), error) {
	file := contract.FileSource{Path: cfg.Catalog.Path}
	if cfg.Store.DSN == "" {
		return file, func() {}, nil
	}
	st, err := store.OpenDSN(cfg.Store.DSN, cfg.Store.TablePrefix)
	if err != nil {
		return nil, nil, err
	}
	closer := func() { _ = st.Close() }
	if seed {
		contracts, err := file.Contracts(ctx)
		if err != nil {
			closer()
			return nil, nil, err
		}
		if err := st.Upsert(ctx, contracts); err != nil {
			closer()
			return nil, nil, err
		}
	}
	return st, closer, nil
}
