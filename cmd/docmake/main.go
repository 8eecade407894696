package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docmake/internal/cleanup"
	"git.home.luguber.info/inful/docmake/internal/config"
	"git.home.luguber.info/inful/docmake/internal/docbuild"
	derrors "git.home.luguber.info/inful/docmake/internal/foundation/errors"
	"git.home.luguber.info/inful/docmake/internal/gitversion"
	"git.home.luguber.info/inful/docmake/internal/logfields"
	"git.home.luguber.info/inful/docmake/internal/logging"
	"git.home.luguber.info/inful/docmake/internal/metrics"
	"git.home.luguber.info/inful/docmake/internal/pipeline"
	"git.home.luguber.info/inful/docmake/internal/shell"
	"git.home.luguber.info/inful/docmake/internal/stamp"
	"git.home.luguber.info/inful/docmake/internal/version"
	"git.home.luguber.info/inful/docmake/internal/watch"
)

// CLI is the docmake command line.
type CLI struct {
	Version string `arg:"" optional:"" help:"Version string to stamp into the version file"`

	Config      string           `short:"c" help:"Configuration file (default: docmake.yaml in the base directory, optional)"`
	BaseDir     string           `short:"C" name:"base-dir" help:"Base directory (default: directory of the config file, else the working directory)"`
	Verbose     bool             `short:"v" help:"Enable verbose logging"`
	Semver      bool             `help:"Require the version to be a valid semantic version"`
	FromGit     bool             `name:"from-git" help:"Derive the version from the nearest git tag when none is given"`
	Watch       bool             `help:"Rebuild when docs sources change"`
	MetricsFile string           `name:"metrics-file" help:"Write Prometheus text metrics to this path after each run"`
	InitConfig  bool             `name:"init-config" help:"Write a default configuration file and exit"`
	Force       bool             `help:"Overwrite an existing configuration file with --init-config"`
	ShowVersion kong.VersionFlag `name:"version" help:"Show version and exit"`

	stdout io.Writer `kong:"-"`
	stderr io.Writer `kong:"-"`
}

// AfterApply runs after flag parsing and installs a bootstrap logger until the
// configuration has been read.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	cfg := logging.DefaultConfig()
	if c.Verbose {
		cfg.General = slog.LevelDebug
	}
	logging.Setup(cfg, c.stderr)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, executes docmake and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cli := &CLI{stdout: stdout, stderr: stderr}
	exitCode := -1
	parser, err := kong.New(cli,
		kong.Name("docmake"),
		kong.Description("Stamp a version into the docs sources, build the HTML docs and clean up build artifacts."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { exitCode = code }),
		kong.Vars{"version": version.String()},
	)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "docmake: %v\n", err)
		return 1
	}
	if _, err := parser.Parse(args); err != nil {
		if exitCode >= 0 {
			return exitCode
		}
		_, _ = fmt.Fprintf(stderr, "docmake: error: %v\n", err)
		return 2
	}
	if exitCode >= 0 {
		// --help or --version
		return exitCode
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Run(ctx); err != nil {
		return derrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).WithOutput(stderr).Report(err)
	}
	return 0
}

// Run loads the configuration and executes stamp, build and clean.
func (c *CLI) Run(ctx context.Context) error {
	if c.InitConfig {
		return c.initConfig()
	}

	cfg, err := config.Load(c.Config, c.BaseDir)
	if err != nil {
		return err
	}
	logger := logging.Setup(logging.FromConfig(cfg.Logging, c.Verbose), c.stderr)

	layout, err := cfg.ResolveLayout(c.BaseDir)
	if err != nil {
		return err
	}
	logger.Debug("Resolved layout",
		logfields.Dir(layout.BaseDir),
		"docs_dir", layout.DocsDir,
		"version_file", layout.VersionFile,
		"config", cfg.Source())

	ver := c.Version
	if ver == "" && c.FromGit {
		if ver, err = gitversion.Nearest(layout.BaseDir); err != nil {
			return err
		}
		logger.Info("Using version from git", logfields.Version(ver))
	}

	stamper := stamp.New(layout.VersionFile, logger)
	stamper.CreateIfMissing = cfg.Version.CreateIfMissing
	stamper.RequireSemver = c.Semver || cfg.Version.RequireSemver

	builder := docbuild.New(shell.NewExecRunner(logger), cfg.Build, layout.DocsDir, c.stdout, logger)
	cleaner := cleanup.New(layout.IndexArtifact, layout.CacheArtifact, logger)
	p := pipeline.New(stamper, builder, cleaner, logger)

	metricsFile := c.MetricsFile
	if metricsFile == "" {
		metricsFile = cfg.Metrics.File
	}
	var recorder *metrics.PrometheusRecorder
	if metricsFile != "" {
		recorder = metrics.NewPrometheusRecorder(prom.NewRegistry())
		p.WithRecorder(recorder)
	}
	flush := func() {
		if recorder == nil {
			return
		}
		if err := recorder.WriteTextfile(metricsFile); err != nil {
			logger.Warn("Failed to write metrics file", logfields.Path(metricsFile), logfields.Error(err))
		}
	}

	_, err = p.Run(ctx, pipeline.Request{Version: ver})
	flush()
	if err != nil || !c.Watch {
		return err
	}

	w := watch.New(layout.DocsDir, cfg.Watch.Debounce, &flushingRunner{p: p, flush: flush}, logger,
		layout.IndexArtifact, layout.CacheArtifact)
	return w.Run(ctx)
}

func (c *CLI) initConfig() error {
	path := c.Config
	if path == "" {
		path = filepath.Join(c.BaseDir, config.DefaultFilename)
	}
	if err := config.Init(path, c.Force); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.stdout, "Wrote configuration to %s\n", path)
	return nil
}

// flushingRunner writes the metrics file after every watch rerun.
type flushingRunner struct {
	p     *pipeline.Pipeline
	flush func()
}

func (r *flushingRunner) Run(ctx context.Context, req pipeline.Request) (pipeline.Report, error) {
	report, err := r.p.Run(ctx, req)
	r.flush()
	return report, err
}
