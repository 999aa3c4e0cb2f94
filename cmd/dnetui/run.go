package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/odvcencio/dnetui/pkg/config"
	"github.com/odvcencio/dnetui/pkg/dnet/api"
	"github.com/odvcencio/dnetui/pkg/dnet/watch"
	"github.com/odvcencio/dnetui/pkg/dnet/windows"
	"github.com/odvcencio/dnetui/pkg/errors"
	"github.com/odvcencio/dnetui/pkg/logging"
	"github.com/odvcencio/dnetui/pkg/telemetry"
	"github.com/odvcencio/dnetui/pkg/ui/backend"
	tcellbackend "github.com/odvcencio/dnetui/pkg/ui/backend/tcell"
	"github.com/odvcencio/dnetui/pkg/ui/engine"
)

// openTerminal returns the terminal the UI draws on. Tests swap it for a
// simulation backend.
var openTerminal = func() (backend.Terminal, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return nil, stderrors.New("stdin and stdout must be a terminal")
	}
	return tcellbackend.New()
}

func run(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return withExitCode(err, exitInvalidConfig)
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logger, logCloser, err := logging.Open(cfg.LogPath(), level)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; logging disabled\n", err)
		logger, logCloser = logging.Discard(), io.NopCloser(nil)
	}
	defer logCloser.Close()
	logger = logger.WithRun(logging.NewRunID())
	logger.Info("starting", "version", version, "api", cfg.APIURL(), "config", cfg.Location(), "tick", cfg.UI.Tick)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.NewMetrics()
	if opts.metricsAddr != "" {
		addr, done, err := telemetry.Serve(ctx, opts.metricsAddr, metrics.Registry())
		if err != nil {
			return withExitCode(errors.Wrap(err, errors.ErrCodeConfigInvalid, "cannot serve metrics on "+opts.metricsAddr), exitInvalidConfig)
		}
		logger.Info("metrics listening", "addr", addr.String())
		go func() {
			if err := <-done; err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	tracer := telemetry.NoopTracer()
	if opts.traceFile != "" {
		f, err := os.Create(opts.traceFile)
		if err != nil {
			return withExitCode(errors.Wrap(err, errors.ErrCodeConfigInvalid, "cannot open trace file"), exitInvalidConfig)
		}
		defer f.Close()
		tp, err := telemetry.NewTracerProvider(f, version)
		if err != nil {
			return withExitCode(err, exitInternalFault)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
		tracer = tp.Tracer()
	}

	client := api.NewClient(cfg.APIURL(), api.Options{
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Metrics:           metrics,
	})
	watcher := watch.New(client, watch.Intervals{
		Health:   cfg.Refresh.Health,
		Topology: cfg.Refresh.Topology,
		Devices:  cfg.Refresh.Devices,
	}, logger)

	jobs := watch.NewJobs(ctx)
	defer jobs.Close()

	entries, err := windows.All(windows.Deps{
		Config:  cfg,
		Watcher: watcher,
		Jobs:    jobs,
		Actions: client,
		Version: version,
	})
	if err != nil {
		return withExitCode(err, exitInternalFault)
	}

	tty, err := openTerminal()
	if err != nil {
		return withExitCode(errors.BackendUnavailable(err, "open"), exitTerminalUnavailable)
	}
	if err := tty.Init(); err != nil {
		return withExitCode(errors.BackendUnavailable(err, "init"), exitTerminalUnavailable)
	}
	defer tty.Fini()

	sched, err := engine.New(entries, tty, tty, engine.Options{
		TickInterval: cfg.UI.Tick,
		Initial:      windows.Menu,
		Layout:       windows.Layout(),
		Strict:       cfg.UI.Strict,
		Logger:       logger.WithComponent("engine"),
		Metrics:      metrics,
		Tracer:       tracer,
	})
	if err != nil {
		return withExitCode(err, exitInternalFault)
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	g, watchCtx := errgroup.WithContext(watchCtx)
	g.Go(func() error { return watcher.Run(watchCtx) })

	runErr := sched.Run(ctx)
	cancelWatch()
	_ = g.Wait()
	tty.Fini()

	interrupted := ctx.Err() != nil && cmd.Context().Err() == nil
	if runErr != nil {
		logger.RunFailed(runErr)
	} else {
		logger.Info("run ended", "ticks", sched.State().TickCount())
	}
	return classifyRunError(runErr, interrupted)
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-file") {
		cfg.Log.File = opts.logFile
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("tick") {
		cfg.UI.Tick = opts.tick
	}
	if flags.Changed("strict") {
		cfg.UI.Strict = opts.strict
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
