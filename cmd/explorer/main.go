package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/specvital/explorer/pkg/config"
	"github.com/specvital/explorer/pkg/domain"
	"github.com/specvital/explorer/pkg/explorer"
	"github.com/specvital/explorer/pkg/metrics"
	"github.com/specvital/explorer/pkg/runner"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
)

// Exit codes
const (
	exitTestFailure = 1
	exitRuntimeErr  = 2
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitRuntimeErr)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "explorer"
	app.Version = Version
	if GitCommit != "" {
		app.Version += "-" + GitCommit
	}
	app.Usage = "Discover and run PHPUnit tests"
	app.Flags = Flags
	app.Commands = []*cli.Command{
		{
			Name:   "list",
			Usage:  "Discover tests and print the tree",
			Action: listAction,
		},
		{
			Name:      "run",
			Usage:     "Run tests by id (default: all)",
			ArgsUsage: "[id...]",
			Action:    runAction,
		},
		{
			Name:   "watch",
			Usage:  "Discover tests and reload when test files change",
			Action: watchAction,
		},
	}
	return app
}

// newLogger builds the root logger from the log flags and installs it as default.
func newLogger(ctx *cli.Context, w io.Writer) (log.Logger, error) {
	level, err := log.LvlFromString(ctx.String(LogLevelFlag.Name))
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	switch format := ctx.String(LogFormatFlag.Name); format {
	case "terminal":
		handler = log.NewTerminalHandlerWithLevel(w, level, false)
	case "logfmt":
		handler = log.LogfmtHandlerWithLevel(w, level)
	case "json":
		handler = log.JSONHandlerWithLevel(w, level)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	logger := log.NewLogger(handler)
	log.SetDefault(logger)
	return logger, nil
}

// loadConfig reads the settings file and applies the flags that were set.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	path := ctx.String(ConfigFlag.Name)
	if path == "" {
		path = filepath.Join(ctx.String(DirFlag.Name), config.DefaultFile)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if ctx.IsSet(CommandFlag.Name) {
		cfg.Command = ctx.String(CommandFlag.Name)
	}
	if ctx.IsSet(SeparatorFlag.Name) {
		cfg.Separator = ctx.String(SeparatorFlag.Name)
	}
	if ctx.IsSet(IncludeFlag.Name) {
		cfg.Search.Include = ctx.StringSlice(IncludeFlag.Name)
	}
	if ctx.IsSet(ExcludeFlag.Name) {
		cfg.Search.Exclude = ctx.StringSlice(ExcludeFlag.Name)
	}
	if ctx.IsSet(ScannerFlag.Name) {
		cfg.Scanner = ctx.String(ScannerFlag.Name)
	}
	if ctx.IsSet(PrefixFlag.Name) {
		cfg.Prefix = ctx.String(PrefixFlag.Name)
	}

	return cfg, cfg.Validate()
}

// setup is shared by every command: logging, settings, metrics and the session.
func setup(ctx *cli.Context) (*explorer.Session, log.Logger, func(), error) {
	logger, err := newLogger(ctx, ctx.App.ErrWriter)
	if err != nil {
		return nil, nil, nil, cli.Exit(err.Error(), exitRuntimeErr)
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, nil, cli.Exit(fmt.Sprintf("invalid configuration: %v", err), exitRuntimeErr)
	}
	logger.Debug("Config", "config", cfg)

	var m metrics.Metricer = metrics.Noop{}
	stopMetrics := func() {}
	if addr := ctx.String(MetricsAddrFlag.Name); addr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		stopMetrics = serveMetrics(logger, addr, reg)
	}

	opts := []explorer.Option{
		explorer.WithLogger(logger),
		explorer.WithMetrics(m),
		explorer.WithEvents(eventLogger(logger)),
	}
	if ctx.Bool(OutputFlag.Name) {
		opts = append(opts, explorer.WithOutput(ctx.App.ErrWriter))
	}

	session, err := explorer.New(ctx.String(DirFlag.Name), cfg, opts...)
	if err != nil {
		stopMetrics()
		return nil, nil, nil, cli.Exit(err.Error(), exitRuntimeErr)
	}

	cleanup := func() {
		_ = session.Close()
		stopMetrics()
	}
	return session, logger, cleanup, nil
}

func serveMetrics(logger log.Logger, addr string, reg *prometheus.Registry) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "err", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// eventLogger reports run boundaries and resolved nodes through logger.
func eventLogger(logger log.Logger) runner.EventSink {
	return runner.EventSinkFunc(func(e domain.Event) {
		switch e.Type {
		case domain.EventRunStarted:
			logger.Info("Run started", "run", e.RunID, "ids", strings.Join(e.IDs, ","))
		case domain.EventRunFinished:
			logger.Info("Run finished", "run", e.RunID)
		case domain.EventNodeState:
			if e.Kind == domain.KindTest && e.State.IsTerminal() {
				logger.Debug("Test resolved", "id", e.NodeID, "state", e.State)
			}
		}
	})
}

func interruptible(ctx *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
}

func listAction(ctx *cli.Context) error {
	session, _, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	tree, result, err := session.Load(ctx.Context)
	if err != nil {
		return cli.Exit(err.Error(), exitRuntimeErr)
	}

	renderTree(ctx.App.Writer, tree, fmt.Sprintf("PHPUnit tests (%d suites, %d tests)", len(tree.Suites()), tree.CountTests()))
	renderScanErrors(ctx.App.Writer, result.Errors)
	return nil
}

func runAction(ctx *cli.Context) error {
	session, logger, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	runCtx, stop := interruptible(ctx)
	defer stop()

	if _, _, err := session.Load(runCtx); err != nil {
		return cli.Exit(err.Error(), exitRuntimeErr)
	}

	summary, err := session.Run(runCtx, ctx.Args().Slice())
	if err != nil {
		return cli.Exit(err.Error(), exitRuntimeErr)
	}

	renderTree(ctx.App.Writer, session.Tree(), fmt.Sprintf("PHPUnit results (%s)", summary.Duration.Round(time.Millisecond)))
	renderDiagnostics(ctx.App.Writer, session.Diagnostics().All())

	for _, id := range summary.Skipped {
		logger.Warn("Unknown test id", "id", id)
	}

	switch {
	case summary.Aborted:
		return cli.Exit(fmt.Sprintf("test runner terminated abnormally (exit code %d %s)", summary.ExitCode, summary.Signal), exitRuntimeErr)
	case summary.Cancelled:
		return cli.Exit("run cancelled", exitRuntimeErr)
	case summary.Failed > 0:
		return cli.Exit(fmt.Sprintf("%d of %d tests failed", summary.Failed, summary.Failed+summary.Passed), exitTestFailure)
	}
	return nil
}

func watchAction(ctx *cli.Context) error {
	session, _, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	watchCtx, stop := interruptible(ctx)
	defer stop()

	tree, _, err := session.Load(watchCtx)
	if err != nil {
		return cli.Exit(err.Error(), exitRuntimeErr)
	}
	renderTree(ctx.App.Writer, tree, fmt.Sprintf("PHPUnit tests (%d suites, %d tests)", len(tree.Suites()), tree.CountTests()))

	return session.Watch(watchCtx)
}
