// Command kiss-signal is the universe runner: it loads a rules config and a
// symbol universe, discovers strategies per symbol in parallel (spec §4.F,
// §5), reconciles the open-position book against today's signals (spec
// §4.H), persists everything, and writes the report files an outer tool
// reads. Replaces the teacher's cmd/option-replay, which drove a single
// options Engine.Run() over one underlying; this generalizes that to the
// per-symbol fan-out an equities universe needs, keeping the teacher's
// flag-driven single-shot-or-REST shape.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/contactkeval/kiss-signal/internal/backtest"
	"github.com/contactkeval/kiss-signal/internal/data"
	"github.com/contactkeval/kiss-signal/internal/lifecycle"
	"github.com/contactkeval/kiss-signal/internal/logger"
	"github.com/contactkeval/kiss-signal/internal/metrics"
	"github.com/contactkeval/kiss-signal/internal/ohlcv"
	"github.com/contactkeval/kiss-signal/internal/orchestrator"
	"github.com/contactkeval/kiss-signal/internal/report"
	"github.com/contactkeval/kiss-signal/internal/ruleset"
	"github.com/contactkeval/kiss-signal/internal/store"
)

// appConfig is the JSON document passed via -config: the scalars
// ruleset.Config doesn't itself carry (universe, file locations, data
// source selection, server knobs).
type appConfig struct {
	Universe       []string       `json:"universe"`
	UniversePath   string         `json:"universe_path"`
	RulesPath      string         `json:"rules_path"`
	Config         ruleset.Config `json:"config"`
	DBPath         string         `json:"db_path"`
	ReportDir      string         `json:"report_dir"`
	DataSource     string         `json:"data_source"` // "synthetic" | "csv" | "vendor"
	CSVDir         string         `json:"csv_dir,omitempty"`
	CSVIndexFile   string         `json:"csv_index_file,omitempty"`
	VendorBaseURL  string         `json:"vendor_base_url,omitempty"`
	IndexTicker    string         `json:"index_ticker,omitempty"`
	LookbackDays   int            `json:"lookback_days,omitempty"`
	Verbosity      int            `json:"verbosity,omitempty"`
	MaxWorkers     int            `json:"max_workers,omitempty"`
	SymbolTimeoutS int            `json:"symbol_timeout_seconds,omitempty"`
}

func main() {
	configPath := flag.String("config", filepath.Join("configs", "app.json"), "path to the app JSON config")
	rest := flag.Bool("rest", false, "run as a REST server instead of a single pass")
	port := flag.String("port", ":8080", "REST server listen address")
	flag.Parse()

	// .env is optional: a fresh checkout with no vendor credentials still
	// runs fine against the synthetic provider.
	if err := godotenv.Load(); err != nil {
		logger.Debugf("main: no .env file loaded: %v", err)
	}

	cfg, rulesCfg, bound := mustLoadConfig(*configPath)
	logger.SetVerbosity(cfg.Verbosity)
	metrics.Init()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Errorf("main: opening store: %v", err)
		os.Exit(1)
	}
	defer st.Close()

	prov := buildProvider(cfg)

	app := &application{cfg: cfg, rulesCfg: rulesCfg, bound: bound, store: st, provider: prov}

	if *rest {
		runServer(app, *port)
		return
	}

	runID := uuid.NewString()
	summary, err := app.runOnce(context.Background(), runID, time.Now().UTC())
	if err != nil {
		logger.Errorf("main: run %s failed: %v", runID, err)
		os.Exit(1)
	}
	logger.Infof("main: run %s: discovered=%d signals=%d opened=%d closed=%d held=%d",
		runID, summary.Discovered, summary.Signals, summary.Opened, summary.Closed, summary.Held)
}

func mustLoadConfig(path string) (appConfig, ruleset.RulesConfig, *ruleset.BoundRulesConfig) {
	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Errorf("main: reading config %s: %v", path, err)
		os.Exit(1)
	}
	var cfg appConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		logger.Errorf("main: parsing config %s: %v", path, err)
		os.Exit(1)
	}
	if err := cfg.Config.Validate(); err != nil {
		logger.Errorf("main: invalid config: %v", err)
		os.Exit(1)
	}

	rulesRaw, err := os.ReadFile(cfg.RulesPath)
	if err != nil {
		logger.Errorf("main: reading rules %s: %v", cfg.RulesPath, err)
		os.Exit(1)
	}
	var rulesCfg ruleset.RulesConfig
	if err := json.Unmarshal(rulesRaw, &rulesCfg); err != nil {
		logger.Errorf("main: parsing rules %s: %v", cfg.RulesPath, err)
		os.Exit(1)
	}

	bound, err := ruleset.Bind(rulesCfg)
	if err != nil {
		logger.Errorf("main: binding rules: %v", err)
		os.Exit(1)
	}
	ruleset.ApplyAdvisoryValidation(rulesCfg, bound)

	return cfg, rulesCfg, bound
}

// buildProvider picks the csv or vendor provider per DataSource, each with
// the synthetic provider as its secondary (the never-fails-to-produce-data
// fallback), or the synthetic provider alone for any other DataSource,
// matching the teacher's secondary-provider convention in internal/data.
func buildProvider(cfg appConfig) data.Provider {
	synthetic := data.NewSyntheticProvider(nil)
	switch cfg.DataSource {
	case "csv":
		return data.NewCSVDataProvider(cfg.CSVDir, cfg.CSVIndexFile, synthetic)
	case "vendor":
		apiKey := os.Getenv("VENDOR_API_KEY")
		return data.NewVendorDataProvider(cfg.VendorBaseURL, apiKey, cfg.IndexTicker, synthetic)
	default:
		return synthetic
	}
}

type application struct {
	cfg      appConfig
	rulesCfg ruleset.RulesConfig
	bound    *ruleset.BoundRulesConfig
	store    *store.Store
	provider data.Provider
}

type runSummary struct {
	RunID      string `json:"run_id"`
	Discovered int    `json:"discovered"`
	Signals    int    `json:"signals"`
	Opened     int    `json:"opened"`
	Closed     int    `json:"closed"`
	Held       int    `json:"held"`
}

// runOnce is the single-pass pipeline spec §4's data flow describes:
// discover strategies across the universe, persist them, then separately
// reconcile the open-position book against today's signals and persist
// that too.
func (a *application) runOnce(ctx context.Context, runID string, now time.Time) (runSummary, error) {
	lookback := a.cfg.LookbackDays
	if lookback <= 0 {
		lookback = 365 * 3
	}
	from := now.AddDate(0, 0, -lookback)

	frames, err := a.fetchUniverse(from, now)
	if err != nil {
		return runSummary{}, err
	}

	symbolFrames := make([]orchestrator.SymbolFrame, 0, len(frames))
	for symbol, frame := range frames {
		symbolFrames = append(symbolFrames, orchestrator.SymbolFrame{Symbol: symbol, Price: frame})
	}

	snapshot := ruleset.NewSnapshot(a.rulesCfg, a.cfg.Config, a.cfg.UniversePath, now)
	timeout := time.Duration(a.cfg.SymbolTimeoutS) * time.Second
	results, err := orchestrator.DiscoverUniverse(ctx, symbolFrames, a.bound, a.cfg.Config, snapshot, now,
		orchestrator.Options{MaxWorkers: a.cfg.MaxWorkers, SymbolTimeout: timeout})
	if err != nil {
		return runSummary{}, err
	}

	nonEmpty := make([]*backtest.StrategyResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			nonEmpty = append(nonEmpty, r)
		}
	}
	if len(nonEmpty) > 0 {
		if err := a.store.SaveStrategies(nonEmpty); err != nil {
			return runSummary{}, err
		}
	}

	indexBars, err := a.provider.GetIndexBars(from, now)
	if err != nil {
		return runSummary{}, err
	}
	indexFrame, err := ohlcv.NewFrame(indexBars)
	if err != nil {
		return runSummary{}, err
	}

	open, err := a.store.GetOpenPositions()
	if err != nil {
		return runSummary{}, err
	}
	openSymbols := make(map[string]bool, len(open))
	for _, p := range open {
		openSymbols[p.Symbol] = true
	}

	signals := orchestrator.BuildSignals(nonEmpty, a.bound, frames, openSymbols, a.cfg.Config, now)

	toHold, toClose, toOpen, err := lifecycle.Reconcile(now, signals, open,
		framePriceProvider(frames), frameIndexProvider{indexFrame}, a.bound, a.cfg.Config)
	if err != nil {
		return runSummary{}, err
	}
	if err := a.store.ApplyReconciliation(toClose, toOpen); err != nil {
		return runSummary{}, err
	}

	if err := os.MkdirAll(a.cfg.ReportDir, 0755); err != nil {
		logger.Warnf("main: creating report dir %s: %v", a.cfg.ReportDir, err)
	} else {
		if err := report.WriteStrategiesJSON(nonEmpty, a.cfg.ReportDir); err != nil {
			logger.Warnf("main: writing strategies.json: %v", err)
		}
		if err := report.WriteStrategiesCSV(nonEmpty, a.cfg.ReportDir); err != nil {
			logger.Warnf("main: writing strategies.csv: %v", err)
		}
		if err := report.WritePositionsCSV(allPositions(toHold, toClose, toOpen), a.cfg.ReportDir); err != nil {
			logger.Warnf("main: writing positions.csv: %v", err)
		}
	}

	return runSummary{
		RunID:      runID,
		Discovered: len(nonEmpty),
		Signals:    len(signals),
		Opened:     len(toOpen),
		Closed:     len(toClose),
		Held:       len(toHold),
	}, nil
}

func (a *application) fetchUniverse(from, to time.Time) (map[string]ohlcv.Frame, error) {
	frames := make(map[string]ohlcv.Frame, len(a.cfg.Universe))
	for _, symbol := range a.cfg.Universe {
		bars, err := a.provider.GetDailyBars(symbol, from, to)
		if err != nil {
			logger.Warnf("main: %s: fetching price data: %v", symbol, err)
			continue
		}
		frame, err := ohlcv.NewFrame(bars)
		if err != nil {
			logger.Warnf("main: %s: building frame: %v", symbol, err)
			continue
		}
		frames[symbol] = frame
	}
	return frames, nil
}

func allPositions(toHold []lifecycle.HeldPosition, toClose, toOpen []store.Position) []store.Position {
	out := make([]store.Position, 0, len(toHold)+len(toClose)+len(toOpen))
	for _, h := range toHold {
		out = append(out, h.Position)
	}
	out = append(out, toClose...)
	out = append(out, toOpen...)
	return out
}

// framePriceProvider adapts the already-fetched universe frames to
// lifecycle.PriceProvider, so Reconcile never re-fetches data the run
// already pulled once.
type framePriceProvider map[string]ohlcv.Frame

func (p framePriceProvider) GetPrice(symbol string) (ohlcv.Frame, error) {
	frame, ok := p[symbol]
	if !ok {
		return ohlcv.Frame{}, errNoFrame(symbol)
	}
	return frame, nil
}

type frameIndexProvider struct{ frame ohlcv.Frame }

func (p frameIndexProvider) GetIndex() (ohlcv.Frame, error) { return p.frame, nil }

func errNoFrame(symbol string) error {
	return &noFrameError{symbol}
}

type noFrameError struct{ symbol string }

func (e *noFrameError) Error() string { return "no price frame fetched for symbol " + e.symbol }

// runServer exposes the same pipeline over HTTP: POST /run triggers one
// pass and returns its summary, GET /health is a liveness probe, and
// GET /metrics serves the Prometheus registry spec §5's worker/persistence
// counters live on.
func runServer(app *application, port string) {
	r := gin.Default()
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	r.POST("/run", func(c *gin.Context) {
		runID := uuid.NewString()
		summary, err := app.runOnce(c.Request.Context(), runID, time.Now().UTC())
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error(), "run_id": runID})
			return
		}
		c.JSON(200, summary)
	})

	logger.Infof("main: starting REST server on %s", port)
	if err := r.Run(port); err != nil {
		logger.Errorf("main: server stopped: %v", err)
		os.Exit(1)
	}
}
