// Command annad is Anna's resident daemon: it keeps per-domain system
// state fresh in the background, serves on-demand refresh requests,
// answers evidence-backed queries through the router and evidence gate,
// applies change-engine plans on request, and runs the self-updater on a
// schedule.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/annaproj/annad/internal/changeengine"
	"github.com/annaproj/annad/internal/config"
	"github.com/annaproj/annad/internal/domain"
	"github.com/annaproj/annad/internal/evidencegate"
	"github.com/annaproj/annad/internal/probe"
	"github.com/annaproj/annad/internal/relstore"
	"github.com/annaproj/annad/internal/router"
	"github.com/annaproj/annad/internal/updater"
)

// Version is set at build time via -ldflags.
var Version = "0.0.0-dev"

func main() {
	configPath := flag.String("config", "/etc/anna/annad.yaml", "path to the daemon config file")
	printVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *printVersion {
		fmt.Printf("annad %s\n", Version)
		return
	}

	log.SetFlags(log.LstdFlags)
	log.Printf("[daemon] annad %s starting", Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[daemon] config: %v", err)
	}

	registry := probe.NewRegistry()
	engine := domain.NewEngine(cfg.InternalDir(), registry, domain.GatherOptions{ServiceUnits: cfg.ServiceUnits})
	changeEngine := changeengine.New(cfg.ChangeEngineBackupDir(), changeengine.NewPacmanSystemExecutor())
	gate := evidencegate.New(registry, engine)

	relStore, err := relstore.Open(cfg.RelstoreDBPath())
	if err != nil {
		log.Fatalf("[daemon] relstore: %v", err)
	}
	defer relStore.Close()

	upd := updater.New(
		updater.Paths{
			LockFile:   cfg.UpdateLockPath(),
			StateFile:  cfg.UpdateStatePath(),
			StagingDir: cfg.StagingDir(),
			BackupDir:  cfg.UpdaterBackupDir(),
			CLIPath:    "/usr/bin/anna",
			DaemonPath: "/usr/bin/annad",
		},
		Version,
		updater.NewHTTPReleaseClient(cfg.UpdateReleaseIndex, &http.Client{Timeout: 30 * time.Second}),
		updater.NewSystemdServiceController(cfg.DaemonUnitName),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[daemon] received %v, shutting down", sig)
		cancel()
	}()

	go engine.RunBackgroundLoop(ctx)
	go runUpdateLoop(ctx, upd, time.Duration(cfg.UpdateCheckInterval)*time.Hour)
	go runRelstoreRefreshLoop(ctx, registry, relStore, time.Duration(cfg.RelstoreRefreshIntervalHours)*time.Hour)
	go runPlanSpoolLoop(ctx, changeEngine, cfg.PlansDir(), cfg.PlanResultsDir())

	log.Printf("[daemon] ready: state_dir=%s log_level=%s", cfg.StateDir, cfg.LogLevel)
	<-ctx.Done()
	log.Println("[daemon] stopped")
}

// runUpdateLoop checks for and applies updates on a fixed interval. A
// failed or deferred check is logged and retried on the next tick — the
// updater's own state machine handles resuming a partial run.
func runUpdateLoop(ctx context.Context, upd *updater.Updater, interval time.Duration) {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := upd.Run(ctx)
			log.Printf("[updater] run complete: outcome=%s version=%s reason=%s", result.Outcome, result.Version, result.Reason)
		}
	}
}

// runRelstoreRefreshLoop periodically rediscovers package-to-service links
// from current probe evidence and prunes links that have gone stale (the
// owning package was removed, so nothing refreshes that link anymore).
func runRelstoreRefreshLoop(ctx context.Context, registry *probe.Registry, store *relstore.Store, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			discoverPackageServiceLinks(ctx, registry, store)

			removed, err := store.ClearOlderThan(30 * 24 * time.Hour)
			if err != nil {
				log.Printf("[relstore] prune failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("[relstore] pruned %d stale links", removed)
			}
		}
	}
}

// discoverPackageServiceLinks walks every installed package reported by
// the packages.list probe and upserts whatever package-to-service links
// DiscoverPackageServiceLinks finds for it, so links.db actually gets
// populated on a running daemon instead of staying empty forever.
func discoverPackageServiceLinks(ctx context.Context, registry *probe.Registry, store *relstore.Store) {
	res := registry.RunOne(ctx, "packages.list")
	if !res.OK() {
		log.Printf("[relstore] package list unavailable, skipping discovery: outcome=%s err=%v", res.Outcome, res.Err)
		return
	}
	packages, ok := res.Data.([]probe.PackageEntry)
	if !ok {
		return
	}

	var upserted int
	for _, pkg := range packages {
		if ctx.Err() != nil {
			return
		}
		for _, link := range relstore.DiscoverPackageServiceLinks(ctx, pkg.Name) {
			if err := store.Upsert(link); err != nil {
				log.Printf("[relstore] upsert link failed: %v", err)
				continue
			}
			upserted++
		}
	}
	if upserted > 0 {
		log.Printf("[relstore] discovered %d package-service links", upserted)
	}
}

// planResultWire is the JSON shape written to PlanResultsDir — a plain
// string in place of ExecutionReport.Err's error interface, since a Go
// error doesn't marshal meaningfully on its own.
type planResultWire struct {
	PlanID          string `json:"plan_id"`
	ActionsApplied  int    `json:"actions_applied"`
	RolledBack      bool   `json:"rolled_back"`
	PartialRollback bool   `json:"partial_rollback"`
	Error           string `json:"error,omitempty"`
}

// runPlanSpoolLoop watches plansDir for change-engine plans dropped by an
// external caller (the CLI, or a future specialist), validates and
// executes each one, and writes its ExecutionReport to resultsDir named
// after the plan's ID. Processed plan files are removed so a restart
// never re-executes an already-applied plan.
func runPlanSpoolLoop(ctx context.Context, engine *changeengine.Engine, plansDir, resultsDir string) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processPlanSpool(ctx, engine, plansDir, resultsDir)
		}
	}
}

func processPlanSpool(ctx context.Context, engine *changeengine.Engine, plansDir, resultsDir string) {
	entries, err := os.ReadDir(plansDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(plansDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var plan changeengine.Plan
		if err := json.Unmarshal(data, &plan); err != nil {
			log.Printf("[changeengine] malformed plan %s: %v", entry.Name(), err)
			os.Remove(path)
			continue
		}

		report := engine.Execute(ctx, plan)
		wire := planResultWire{
			PlanID:          report.PlanID,
			ActionsApplied:  report.ActionsApplied,
			RolledBack:      report.RolledBack,
			PartialRollback: report.PartialRollback,
		}
		if report.Err != nil {
			wire.Error = report.Err.Error()
		}
		if out, err := json.Marshal(wire); err == nil {
			os.WriteFile(filepath.Join(resultsDir, report.PlanID+".json"), out, 0644)
		}
		os.Remove(path)
	}
}

// answerQuery ties the router and evidence gate together for one query:
// classify, gate on evidence, and report either the gated result or a
// truthful refusal — the formatter that turns a satisfied Result into
// prose is outside annad's scope (the spec's "thin CLI surface" non-goal).
func answerQuery(ctx context.Context, gate *evidencegate.Gate, query string, deadline time.Duration) evidencegate.Result {
	class := router.Classify(query)
	target := ""
	if class == router.InstalledToolCheck {
		target = router.ExtractToolName(query)
	}
	return gate.Check(ctx, class, deadline, target)
}
