package commands

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/kilnworks/kiln/pkg/agentdata"
	"github.com/kilnworks/kiln/pkg/config"
	"github.com/kilnworks/kiln/pkg/container"
	"github.com/kilnworks/kiln/pkg/engine"
	"github.com/kilnworks/kiln/pkg/report"
	"github.com/kilnworks/kiln/pkg/stores"
	"github.com/kilnworks/kiln/pkg/telemetry"
	"github.com/kilnworks/kiln/pkg/workspace"
)

// app wires the orchestrator and its collaborators from the project
// configuration. One app is built per command invocation.
type app struct {
	cfg     *config.Config
	log     *telemetry.Logger
	runtime *container.ComposeRuntime
	orch    *engine.Orchestrator
	history stores.Store
	metrics *telemetry.Metrics
}

// newApp loads configuration and constructs the component graph. The
// returned cleanup closes the history store.
func newApp(ctx context.Context) (*app, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}

	runtime := container.NewComposeRuntime(container.ComposeOptions{
		Service:     cfg.Service.Name,
		Container:   cfg.Service.Container,
		ComposeFile: cfg.Service.ComposeFile,
		ProjectDir:  cfg.Paths.Root,
	}, logger)

	syncer := newSyncer(cfg, logger)
	guard := newGuard(cfg, logger)
	runner := report.NewRunner(runtime, cfg.Tests.Command, logger)

	// History is best-effort: a broken store degrades to an unrecorded
	// run, never a failed deployment.
	var history stores.Store
	if path := cfg.HistoryDBPath(); path != "" {
		store, err := stores.NewSQLiteStore(path)
		if err == nil {
			err = store.Init(ctx)
		}
		if err == nil {
			err = store.Migrate(ctx)
		}
		if err != nil {
			log.Warn().Err(err).Msg("history store unavailable; continuing without it")
		} else {
			history = store
		}
	}

	metrics := telemetry.NewMetrics(cfg.Metrics)

	orch := engine.New(engine.Options{
		Config:       cfg,
		Runtime:      runtime,
		Sync:         syncer,
		Locker:       guard,
		Tests:        runner,
		Translator:   report.FileTranslator{},
		ValidateSeed: agentdata.ValidateSeed,
		History:      history,
		Metrics:      metrics,
		Logger:       logger,
	})

	cleanup := func() {
		if history != nil {
			_ = history.Close()
		}
	}

	return &app{
		cfg:     cfg,
		log:     logger,
		runtime: runtime,
		orch:    orch,
		history: history,
		metrics: metrics,
	}, cleanup, nil
}

func newSyncer(cfg *config.Config, logger *telemetry.Logger) *workspace.Syncer {
	return workspace.NewSyncer(cfg.SourceDir(), cfg.WorkspaceDir(), logger)
}

func newGuard(cfg *config.Config, logger *telemetry.Logger) *workspace.Guard {
	return workspace.NewGuard(cfg.WorkspaceDir(), logger)
}
