package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilnworks/kiln/pkg/config"
	"github.com/kilnworks/kiln/pkg/stores"
	"github.com/kilnworks/kiln/pkg/telemetry"
)

// Orchestrator sequences deployment modes over injected collaborators.
// Execution is single-threaded and sequential: every step blocks until it
// completes, and a mode runs to completion or to its first hard failure.
// Concurrent invocations are not guarded; the container runtime's per-name
// exclusivity is the only protection (documented limitation).
type Orchestrator struct {
	cfg          *config.Config
	runtime      ContainerRuntime
	sync         FileSync
	locker       PermissionLocker
	tests        TestRunner
	translator   Translator
	validateSeed SeedValidator
	history      stores.Store
	metrics      *telemetry.Metrics
	log          *telemetry.Logger
	sleep        func(time.Duration)
}

// Options wires an Orchestrator. History, Metrics and ValidateSeed are
// optional; Sleep defaults to time.Sleep.
type Options struct {
	Config       *config.Config
	Runtime      ContainerRuntime
	Sync         FileSync
	Locker       PermissionLocker
	Tests        TestRunner
	Translator   Translator
	ValidateSeed SeedValidator
	History      stores.Store
	Metrics      *telemetry.Metrics
	Logger       *telemetry.Logger
	Sleep        func(time.Duration)
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Orchestrator{
		cfg:          opts.Config,
		runtime:      opts.Runtime,
		sync:         opts.Sync,
		locker:       opts.Locker,
		tests:        opts.Tests,
		translator:   opts.Translator,
		validateSeed: opts.ValidateSeed,
		history:      opts.History,
		metrics:      opts.Metrics,
		log:          opts.Logger.NewComponentLogger("orchestrator"),
		sleep:        sleep,
	}
}

// Deploy runs the standard deployment mode. A failing smoke test is
// reported but leaves the container running; the deployment is not rolled
// back.
func (o *Orchestrator) Deploy(ctx context.Context) (*Result, error) {
	res, startedAt := o.begin(ModeDeploy)
	defer o.finish(ctx, res, startedAt)

	if err := o.deployCore(ctx, res, nil); err != nil {
		res.Err = err
		return res, err
	}

	o.transition(res, StateVerifying)
	run, err := o.tests.Run(ctx, TestSelection{Modules: o.cfg.Tests.Lightweight})
	switch {
	case err != nil:
		o.log.WithError(err).Warn("smoke tests could not run; container left running")
	case run.ExitCode != 0:
		o.log.Warnf("smoke tests failed (exit %d); container left running", run.ExitCode)
		if o.metrics != nil {
			o.metrics.RecordTestFailure()
		}
	default:
		o.log.Info("smoke tests passed")
	}

	o.transition(res, StateRunning)
	return res, nil
}

// TestDeploy runs the test-only mode: deploy, run the full suite, translate
// the report, then unconditionally quiesce. It never leaves the service
// running, and its failure reflects the test outcome.
func (o *Orchestrator) TestDeploy(ctx context.Context) (*Result, error) {
	res, startedAt := o.begin(ModeTestDeploy)
	defer o.finish(ctx, res, startedAt)

	if err := o.deployCore(ctx, res, nil); err != nil {
		res.Err = err
		return res, err
	}

	o.transition(res, StateVerifying)
	res.Err = o.runFullSuite(ctx, res)

	// The instance is torn down no matter how the tests went.
	if err := o.runtime.Quiesce(ctx); err != nil {
		o.log.WithError(err).Error("failed to quiesce after test run")
		if res.Err == nil {
			res.Err = err
		}
	}
	o.transition(res, StateStopped)
	return res, res.Err
}

// FullReset force-overwrites the entire data tree from the source tree and
// then performs a standard deploy, discarding all accumulated agent state.
func (o *Orchestrator) FullReset(ctx context.Context) (*Result, error) {
	return o.resetDeploy(ctx, ModeFullReset, func() error {
		n, err := o.sync.ForceOverwrite(config.TreeData)
		if err != nil {
			return err
		}
		o.log.Infof("reset %d data files from source defaults", n)
		return nil
	})
}

// TaskReset force-overwrites one named data file and then performs a
// standard deploy, injecting a new directive without discarding other
// accumulated state.
func (o *Orchestrator) TaskReset(ctx context.Context, name string) (*Result, error) {
	return o.resetDeploy(ctx, ModeTaskReset, func() error {
		if err := o.sync.OverwriteFile(config.TreeData, name); err != nil {
			return err
		}
		o.log.Infof("reset data file %s from source default", name)
		return nil
	})
}

// Clean wipes the workspace contents with no container action.
func (o *Orchestrator) Clean(ctx context.Context) (*Result, error) {
	res, startedAt := o.begin(ModeClean)
	defer o.finish(ctx, res, startedAt)

	if err := o.sync.CleanAll(); err != nil {
		res.Err = err
		res.State = StateIdle
		return res, err
	}
	o.transition(res, StateIdle)
	o.log.Info("workspace cleaned")
	return res, nil
}

// resetDeploy runs a standard deploy with a forced data sync spliced in
// before the regular sync phase. Seed data is validated first so malformed
// architect-supplied defaults never clobber valid agent state.
func (o *Orchestrator) resetDeploy(ctx context.Context, mode Mode, force func() error) (*Result, error) {
	res, startedAt := o.begin(mode)
	defer o.finish(ctx, res, startedAt)

	preSync := func() error {
		if o.validateSeed != nil {
			if err := o.validateSeed(o.cfg.SourceTree(config.TreeData)); err != nil {
				return err
			}
		}
		return force()
	}
	if err := o.deployCore(ctx, res, preSync); err != nil {
		res.Err = err
		return res, err
	}

	o.transition(res, StateVerifying)
	run, err := o.tests.Run(ctx, TestSelection{Modules: o.cfg.Tests.Lightweight})
	if err != nil {
		o.log.WithError(err).Warn("smoke tests could not run; container left running")
	} else if run.ExitCode != 0 {
		o.log.Warnf("smoke tests failed (exit %d); container left running", run.ExitCode)
	}

	o.transition(res, StateRunning)
	return res, nil
}

// deployCore drives quiesce → sync → lockdown → build → start → settle.
// Any failure before the container start leaves the live container
// untouched beyond the unconditional quiesce. A crash detected after start
// captures the log tail before reporting; it is never retried.
func (o *Orchestrator) deployCore(ctx context.Context, res *Result, preSync func() error) error {
	if err := o.runtime.Check(ctx); err != nil {
		return err
	}

	o.transition(res, StateQuiescing)
	if err := o.runtime.Quiesce(ctx); err != nil {
		return err
	}

	o.transition(res, StateSyncing)
	if err := o.sync.EnsureLayout(); err != nil {
		return err
	}
	if preSync != nil {
		if err := preSync(); err != nil {
			return err
		}
	}
	for _, tree := range []string{config.TreeCore, config.TreeSecondary} {
		n, err := o.sync.Replace(tree)
		if err != nil {
			return err
		}
		if o.metrics != nil {
			o.metrics.RecordSyncedFiles(tree, n)
		}
	}
	n, err := o.sync.MergePreserve(config.TreeData)
	if err != nil {
		return err
	}
	if o.metrics != nil {
		o.metrics.RecordSyncedFiles(config.TreeData, n)
	}

	o.transition(res, StateLocking)
	if err := o.locker.Lockdown(); err != nil {
		return err
	}

	o.transition(res, StateBuilding)
	if err := o.runtime.BuildAndStart(ctx); err != nil {
		return err
	}

	// Crash-on-startup is not observable instantaneously.
	o.transition(res, StateStarting)
	o.sleep(time.Duration(o.cfg.Service.SettleSeconds) * time.Second)

	running, err := o.runtime.IsRunning(ctx)
	if err != nil {
		return err
	}
	if !running {
		logs, logErr := o.runtime.Logs(ctx, 100)
		if logErr != nil {
			o.log.WithError(logErr).Error("failed to fetch crash logs")
		}
		res.CrashLogs = logs
		o.transition(res, StateCrashed)
		return NewContainerCrashedError("container exited after start; see captured logs", nil)
	}
	return nil
}

// runFullSuite executes the full suite with a structured report and
// translates it. A nonzero exit with no report file means the runner
// crashed, which is reported as a missing report, not as failing tests.
func (o *Orchestrator) runFullSuite(ctx context.Context, res *Result) error {
	sel := TestSelection{
		ContainerReportPath: o.cfg.RawReportContainerPath(),
		HostReportPath:      o.cfg.RawReportHostPath(),
	}
	run, err := o.tests.Run(ctx, sel)
	if err != nil {
		return err
	}

	if run.ReportPath == "" {
		return NewReportMissingError(fmt.Sprintf(
			"test run exited %d without producing a report", run.ExitCode))
	}

	summary, err := o.translator.Summarize(run.ReportPath)
	if err != nil {
		return err
	}
	res.Tests = summary
	o.log.Infof("full suite: %d total, %d passed, %d failed",
		summary.Total, summary.Passed, summary.Failed)

	if !o.cfg.Tests.CopyOnFailureOnly || summary.Failed > 0 {
		out := o.cfg.NormalizedReportPath()
		if err := o.translator.WriteNormalized(run.ReportPath, out); err != nil {
			return err
		}
		res.ReportPath = out
	}

	if summary.Failed > 0 {
		if o.metrics != nil {
			o.metrics.RecordTestFailure()
		}
		return NewTestsFailedError(fmt.Sprintf(
			"%d of %d test cases failed", summary.Failed, summary.Total))
	}
	return nil
}

// begin initializes a run result and logs the mode start.
func (o *Orchestrator) begin(mode Mode) (*Result, time.Time) {
	res := &Result{
		RunID: uuid.NewString(),
		Mode:  mode,
		State: StateIdle,
	}
	o.log.WithRunID(res.RunID).WithMode(string(mode)).Info("mode started")
	return res, time.Now()
}

// finish stamps the duration and records the run in history and metrics.
func (o *Orchestrator) finish(ctx context.Context, res *Result, startedAt time.Time) {
	res.Duration = time.Since(startedAt)

	if o.metrics != nil && res.Mode != ModeClean {
		o.metrics.RecordDeploy(string(res.State), res.Duration.Seconds())
	}

	if o.history != nil {
		record := historyOf(res, startedAt)
		if err := o.history.CreateDeploy(ctx, record); err != nil {
			o.log.WithError(err).Warn("failed to record deploy start")
			return
		}
		if err := o.history.FinishDeploy(ctx, record); err != nil {
			o.log.WithError(err).Warn("failed to record deploy outcome")
		}
	}

	logger := o.log.WithRunID(res.RunID).WithMode(string(res.Mode))
	if res.Err != nil {
		logger.WithError(res.Err).Errorf("mode finished in state %s", res.State)
	} else {
		logger.Infof("mode finished in state %s", res.State)
	}
}

// transition moves the state machine and logs the step.
func (o *Orchestrator) transition(res *Result, state State) {
	res.State = state
	o.log.WithRunID(res.RunID).Debugf("state: %s", state)
}
