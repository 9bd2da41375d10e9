package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"suppliersync/config"
	"suppliersync/internal/supplier/app"
	"suppliersync/internal/supplier/business"
	"suppliersync/metrics"
	"suppliersync/pkg/logger"
	"suppliersync/pkg/middleware"
)

const usage = `usage:
  application run <identifier-file> [--download-images] [--config path] [--source api|listing]
  application sync <identifier-file> --every 1h [--download-images] [--config path] [--source api|listing]
`

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type cliOptions struct {
	command    string
	file       string
	configPath string
	source     string
	images     bool
	every      time.Duration
}

// parseArgs accepts flags both before and after the identifier file.
func parseArgs(args []string, stderr io.Writer) (*cliOptions, error) {
	if len(args) == 0 {
		return nil, errors.New("missing command")
	}
	opts := &cliOptions{command: args[0]}
	if opts.command != "run" && opts.command != "sync" {
		return nil, fmt.Errorf("unknown command %q", opts.command)
	}

	fs := flag.NewFlagSet(opts.command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&opts.source, "source", "", "record source: api or listing (default from config)")
	fs.BoolVar(&opts.images, "download-images", false, "cache the largest image of every stored product")
	if opts.command == "sync" {
		fs.DurationVar(&opts.every, "every", time.Hour, "interval between runs")
	}

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	if fs.NArg() == 0 {
		return nil, errors.New("missing identifier file")
	}
	opts.file = fs.Arg(0)
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n%s", err, usage)
		return exitUsage
	}
	if _, err := os.Stat(opts.file); err != nil {
		fmt.Fprintf(stderr, "identifier file: %v\n%s", err, usage)
		return exitUsage
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitFailure
	}

	var logWriter io.Writer
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(stderr, "log file: %v\n", err)
			return exitFailure
		}
		defer f.Close()
		logWriter = f
	}

	syncApp, err := app.NewSyncApp(cfg, logWriter, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitFailure
	}
	defer syncApp.Close()

	runOpts := app.RunOptions{IdentifierFile: opts.file, Source: opts.source, DownloadImages: opts.images}

	if opts.command == "sync" {
		return runSync(ctx, syncApp, runOpts, opts.every, serveMetrics(cfg.Metrics.Addr, logWriter), stdout, stderr)
	}

	result, err := syncApp.Run(ctx, runOpts)
	if err != nil {
		if result != nil && result.Run != nil {
			fmt.Fprintln(stdout, result.Run.Summary())
		}
		fmt.Fprintf(stderr, "sync failed: %v\n", err)
		return exitFailure
	}
	printSummary(stdout, result)
	return exitOK
}

// serveMetrics starts the /metrics endpoint and returns its shutdown func.
// An empty addr disables it.
func serveMetrics(addr string, logWriter io.Writer) func() {
	if addr == "" {
		return func() {}
	}
	log := logger.NewLogger(logWriter, "[ Metrics ]")

	mux := http.NewServeMux()
	mux.Handle("/metrics", middleware.PrometheusMiddleware(metrics.MetricsHandler()))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Log("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Log("metrics server: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Log("shutdown: %v", err)
		}
	}
}

func runSync(ctx context.Context, syncApp *app.SyncApp, opts app.RunOptions, every time.Duration, stopMetrics func(), stdout, stderr io.Writer) int {
	defer stopMetrics()

	err := syncApp.RunEvery(ctx, opts, every, func(result *app.Result, err error) {
		if err != nil {
			fmt.Fprintf(stderr, "sync failed: %v\n", err)
			return
		}
		printSummary(stdout, result)
	})
	if errors.Is(err, context.Canceled) {
		return exitOK
	}
	fmt.Fprintf(stderr, "%v\n", err)
	return exitFailure
}

func printSummary(out io.Writer, result *app.Result) {
	run := result.Run
	fmt.Fprintf(out, "Fetched %d records from %d identifiers (%d failed) in %s\n",
		run.Fetched, len(run.Identifiers), run.Failed, run.Duration().Round(time.Millisecond))
	fmt.Fprintln(out, run.Summary())

	if len(result.SampleRow) > 0 {
		fmt.Fprintln(out, "Sample record:")
		for i, column := range business.ExportColumns {
			if i < len(result.SampleRow) && result.SampleRow[i] != "" {
				fmt.Fprintf(out, "  %-24s %s\n", column+":", result.SampleRow[i])
			}
		}
	}
	if result.ExportPath != "" {
		fmt.Fprintf(out, "Exported to %s\n", result.ExportPath)
	}
}
