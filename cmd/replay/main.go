package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Rajchodisetti/chaingate/internal/admission"
	"github.com/Rajchodisetti/chaingate/internal/config"
	"github.com/Rajchodisetti/chaingate/internal/contract"
	"github.com/Rajchodisetti/chaingate/internal/journal"
	"github.com/Rajchodisetti/chaingate/internal/margin"
	"github.com/Rajchodisetti/chaingate/internal/observ"
	"github.com/Rajchodisetti/chaingate/internal/paper"
	"github.com/Rajchodisetti/chaingate/internal/portfolio"
	"github.com/Rajchodisetti/chaingate/internal/session"
	"github.com/Rajchodisetti/chaingate/internal/universe"
)

type orderRow struct {
	At         string `yaml:"at"`
	Symbol     string `yaml:"symbol"`
	Quantity   string `yaml:"quantity"`
	Type       string `yaml:"type"`
	LimitPrice string `yaml:"limit_price"`
	StopPrice  string `yaml:"stop_price"`
	Mark       string `yaml:"mark"`
}

type ordersFile struct {
	Orders []orderRow `yaml:"orders"`
}

type order struct {
	at   time.Time
	req  admission.Request
	mark decimal.Decimal
}

// result is one stdout line per replayed order.
type result struct {
	At        string              `json:"at"`
	Duplicate bool                `json:"duplicate,omitempty"`
	Decision  *admission.Decision `json:"decision,omitempty"`
	Fill      *journal.Fill       `json:"fill,omitempty"`
	Position  *decimal.Decimal    `json:"position,omitempty"`
}

func optionalDecimal(field, s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	return d, errors.Wrap(err, field)
}

func loadOrders(path string) ([]order, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f ordersFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	out := make([]order, 0, len(f.Orders))
	for i, r := range f.Orders {
		at, err := time.Parse(time.RFC3339, r.At)
		if err != nil {
			return nil, errors.Wrapf(err, "order %d: at", i)
		}
		// unknown types pass through and are rejected by the request gate
		typ, ok := admission.ParseOrderType(r.Type)
		if !ok {
			typ = admission.OrderType(r.Type)
		}
		o := order{at: at, req: admission.Request{SymbolID: strings.TrimSpace(r.Symbol), Type: typ}}
		if o.req.Quantity, err = optionalDecimal("quantity", r.Quantity); err != nil {
			return nil, errors.Wrapf(err, "order %d", i)
		}
		if o.req.LimitPrice, err = optionalDecimal("limit_price", r.LimitPrice); err != nil {
			return nil, errors.Wrapf(err, "order %d", i)
		}
		if o.req.StopPrice, err = optionalDecimal("stop_price", r.StopPrice); err != nil {
			return nil, errors.Wrapf(err, "order %d", i)
		}
		if o.mark, err = optionalDecimal("mark", r.Mark); err != nil {
			return nil, errors.Wrapf(err, "order %d", i)
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
	return out, nil
}

// lineage returns the contract's exchange, its underlying and its root. For an
// option on a future the root is the future's underlying.
func lineage(snap *contract.Snapshot, symbol string) (exchange, underlying, root string) {
	c, ok := snap.Get(symbol)
	if !ok {
		return "", "", ""
	}
	root = c.UnderlyingID
	if parent, ok := snap.Get(c.UnderlyingID); ok {
		root = parent.UnderlyingID
	}
	return c.Exchange, c.UnderlyingID, root
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observ.Handler())
	mux.Handle("/health", observ.Health())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observ.Warn("metrics_server_failed", map[string]any{"addr": addr, "error": err.Error()})
		}
	}()
	observ.Log("metrics_server_started", map[string]any{"addr": addr})
}

// run replays orders in timestamp order. The replay clock follows the orders, so the
// journal's dedupe window and the catalog reload throttle run in replay time. Without
// resume the journal and holdings start empty; with it, orders already journaled by an
// earlier run inside the dedupe window come back as duplicates.
func run(cfg config.Root, orders []order, resume bool, out io.Writer) error {
	ctx := context.Background()
	cur := time.Now().UTC()
	if len(orders) > 0 {
		cur = orders[0].at
	}
	clock := func() time.Time { return cur }

	catalog := contract.NewCatalog()
	reloader := contract.NewReloader(catalog, contract.FileSource{Path: cfg.Catalog.Path}, cfg.Catalog.RefreshPerMinute).
		WithClock(clock)
	if _, err := reloader.Reload(ctx); err != nil {
		return errors.Wrap(err, "load catalog")
	}
	registry, err := cfg.Registry()
	if err != nil {
		return errors.Wrap(err, "calendars")
	}
	profiles, err := cfg.MarginProfiles()
	if err != nil {
		return errors.Wrap(err, "margins")
	}
	margins := margin.NewTable(profiles)
	unis, err := cfg.UniverseConfigs()
	if err != nil {
		return errors.Wrap(err, "universes")
	}

	jr, err := journal.New(cfg.Journal.Path, cfg.Journal.DedupeWindowSecs)
	if err != nil {
		return errors.Wrap(err, "journal")
	}
	jr.WithClock(clock)
	holdings := portfolio.NewHoldings(cfg.Paper.HoldingsPath)
	if resume {
		if err := holdings.Load(); err != nil {
			return errors.Wrap(err, "holdings")
		}
	} else if err := jr.Reset(); err != nil {
		return errors.Wrap(err, "journal")
	}
	fills := paper.NewFillSimulator(cfg.Paper.LatencyMsMin, cfg.Paper.LatencyMsMax,
		cfg.Paper.SlippageBpsMin, cfg.Paper.SlippageBpsMax, cfg.Paper.Seed)
	ctrl := admission.NewController(admission.WithExtendedHours(cfg.Admission.ExtendedHoursSymbols...))

	observ.Log("replay_start", map[string]any{
		"orders":    len(orders),
		"contracts": catalog.Snapshot().Len(),
		"universes": len(unis),
		"journal":   jr.Path(),
		"resume":    resume,
	})

	var live []*universe.Universe
	if len(orders) > 0 {
		for _, uc := range unis {
			cal, _ := registry.Calendar(uc.Exchange)
			u, err := universe.Initialize(uc.Config, catalog, cal, cur)
			if err != nil {
				observ.Warn("universe_failed", map[string]any{"universe": uc.Name, "error": err.Error()})
				continue
			}
			if err := jr.WriteSelection(u.Current().Candidates); err != nil {
				return errors.Wrap(err, "journal")
			}
			live = append(live, u)
		}
	}

	enc := json.NewEncoder(out)
	for _, o := range orders {
		cur = o.at

		// a failed or throttled reload keeps the current snapshot
		if _, err := reloader.Reload(ctx); err != nil && !errors.Is(err, contract.ErrRefreshThrottled) {
			observ.Warn("catalog_reload_failed", map[string]any{"error": err.Error()})
		}
		for _, u := range live {
			refreshed, err := u.OnTick(o.at)
			if err != nil {
				observ.Warn("universe_refresh_failed", map[string]any{"universe": u.Name(), "error": err.Error()})
				continue
			}
			if refreshed {
				if err := jr.WriteSelection(u.Current().Candidates); err != nil {
					return errors.Wrap(err, "journal")
				}
			}
		}

		res := result{At: o.at.Format(time.RFC3339)}
		key := journal.IdempotencyKey(o.req, o.at)
		dup, err := jr.HasRecentDecision(key)
		if err != nil {
			return errors.Wrap(err, "journal")
		}
		if dup {
			observ.Log("order_deduped", map[string]any{"symbol": o.req.SymbolID, "key": key})
			res.Duplicate = true
			if err := enc.Encode(res); err != nil {
				return err
			}
			continue
		}

		exchange, underlying, root := lineage(catalog.Snapshot(), o.req.SymbolID)
		state := session.Closed
		if exchange != "" {
			state = registry.Classify(exchange, o.at)
		}
		profile, _ := margins.Lookup(o.req.SymbolID, underlying, root)
		eligibleKey := root
		if eligibleKey == "" {
			eligibleKey = underlying
		}

		d := ctrl.AdmitFor(o.req, eligibleKey, state, profile, holdings.Quantity(o.req.SymbolID))
		if err := jr.WriteDecision(d, key); err != nil {
			return errors.Wrap(err, "journal")
		}
		res.Decision = &d

		if f, ok := fills.SimulateFill(o.req, d, o.mark, o.at); ok {
			if err := jr.WriteFill(f); err != nil {
				return errors.Wrap(err, "journal")
			}
			h := holdings.ApplyFill(f.Symbol, f.Quantity, f.Price, f.Timestamp)
			res.Fill = &f
			res.Position = &h.Quantity
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}

	if err := holdings.Save(); err != nil {
		return errors.Wrap(err, "save holdings")
	}
	observ.Log("replay_done", map[string]any{"positions": holdings.Symbols(), "version": holdings.Version()})
	return nil
}

func main() {
	var cfgPath string
	var ordersPath string
	var oneShot bool
	var resume bool
	flag.StringVar(&cfgPath, "config", "config/config.yaml", "config path")
	flag.StringVar(&ordersPath, "orders", "fixtures/orders.yaml", "orders to replay")
	flag.BoolVar(&oneShot, "oneshot", true, "exit after the replay (set false to keep /metrics up)")
	flag.BoolVar(&resume, "resume", false, "keep the journal and holdings of earlier runs")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	observ.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	if !cfg.Logging.Pretty {
		observ.SetOutput(os.Stderr)
	}
	if cfg.Metrics.Addr != "" {
		serveMetrics(cfg.Metrics.Addr)
	}

	orders, err := loadOrders(ordersPath)
	if err != nil {
		log.Fatalf("load orders: %v", err)
	}
	if err := run(cfg, orders, resume, os.Stdout); err != nil {
		log.Fatalf("replay: %v", err)
	}

	if !oneShot && cfg.Metrics.Addr != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
	}
}
