// Package main is the resumatch CLI entry point.
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
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/resumatch/internal/analytics"
	"github.com/hyperjump/resumatch/internal/cli"
	"github.com/hyperjump/resumatch/internal/config"
	"github.com/hyperjump/resumatch/internal/documents"
	"github.com/hyperjump/resumatch/internal/embedding"
	"github.com/hyperjump/resumatch/internal/evaluation"
	"github.com/hyperjump/resumatch/internal/extract"
	"github.com/hyperjump/resumatch/internal/keyword"
	"github.com/hyperjump/resumatch/internal/matcher"
	"github.com/hyperjump/resumatch/internal/scoring"
	"github.com/hyperjump/resumatch/internal/server"
	"github.com/hyperjump/resumatch/internal/storage"
	"github.com/hyperjump/resumatch/internal/textnorm"
	"github.com/hyperjump/resumatch/internal/watcher"
	"github.com/hyperjump/resumatch/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/resumatch/config.yaml"

// errUsage makes main print the command usage and exit 1.
var errUsage = errors.New("usage")

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(command string, args []string, stdout io.Writer) error {
	switch command {
	case "server":
		return runServer(args)
	case "evaluate":
		return runEvaluate(args, stdout)
	case "ingest":
		return runIngest(args, stdout)
	case "compare":
		return runCompare(args, stdout)
	case "report":
		return runReport(args, stdout)
	case "status":
		return runStatus(args, stdout)
	case "init":
		return runInit(args, stdout)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "resumatch version %s\n", version)
		return nil
	case "help", "--help", "-h":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", command)
		printUsage(stdout)
		return errUsage
	}
}

// newFlagSet returns a flag set carrying the shared --config flag.
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	return fs, configPath
}

func runServer(args []string) error {
	fs, configPath := newFlagSet("server")
	debug := fs.Bool("debug", false, "enable debug logging (intake events, request details)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.Bool("debug", debugMode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Close()

	if cfg.Intake.Enabled() {
		intake, err := watcher.NewIntake(
			cfg.Intake.Directories,
			components.Documents,
			cfg.Extract.AllowedExtensions,
			watcher.WithIntakeLogger(logger),
			watcher.WithIntakeDebounce(cfg.Intake.Debounce),
		)
		if err != nil {
			return fmt.Errorf("failed to create intake: %w", err)
		}
		if err := intake.Start(ctx); err != nil {
			return err
		}
		defer intake.Stop()
	}

	srv := server.NewServer(server.Deps{
		Store:       components.Store,
		Evaluations: components.Evaluations,
		Analytics:   components.Analytics,
		Documents:   components.Documents,
		Driver:      cfg.Storage.Driver,
		DataPaths:   dataPaths(cfg),
	}, &cfg.Server, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}

// runEvaluate scores two local files without storing anything.
func runEvaluate(args []string, stdout io.Writer) error {
	fs, configPath := newFlagSet("evaluate")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: resumatch evaluate [flags] <resume-file> <jd-file>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errUsage
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ex := extract.NewExtractor(extract.WithLogger(logger), extract.WithExtensions(cfg.Extract.AllowedExtensions...))
	texts := make([]string, 2)
	for i, path := range fs.Args() {
		if !ex.Supported(path) {
			return fmt.Errorf("file type not allowed: %s", extract.Ext(path))
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		texts[i] = ex.ExtractText(content, filepath.Base(path))
	}

	e, err := newEmbedder(cfg, logger)
	if err != nil {
		return err
	}
	defer e.Close()
	m := newMatcher(cfg, e, logger)
	return cli.WriteMatch(stdout, m.Evaluate(context.Background(), texts[0], texts[1]), format)
}

// runIngest uploads local files as resumes of a user or job descriptions of an admin.
func runIngest(args []string, stdout io.Writer) error {
	fs, configPath := newFlagSet("ingest")
	userID := fs.Int64("user", 0, "owner user id (files become resumes)")
	adminID := fs.Int64("admin", 0, "owner admin id (files become job descriptions)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: resumatch ingest (--user N | --admin N) [flags] <file>...\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if (*userID > 0) == (*adminID > 0) || fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer components.Close()

	failed := 0
	for _, path := range fs.Args() {
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stdout, "skip %s: %v\n", path, err)
			failed++
			continue
		}
		up := documents.Upload{Filename: filepath.Base(path), Content: content}
		if *userID > 0 {
			r, err := components.Documents.UploadResume(ctx, *userID, up)
			if err != nil {
				fmt.Fprintf(stdout, "skip %s: %v\n", path, err)
				failed++
				continue
			}
			fmt.Fprintf(stdout, "resume %d: %s (%s)\n", r.ID, r.Filename, cli.TruncateWords(r.ParsedText, 8))
			continue
		}
		jd, err := components.Documents.UploadJD(ctx, *adminID, up)
		if err != nil {
			fmt.Fprintf(stdout, "skip %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Fprintf(stdout, "job description %d: %s\n", jd.ID, jd.DisplayTitle())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) not ingested", failed, fs.NArg())
	}
	return nil
}

// runCompare evaluates every resume of a user against one job description.
func runCompare(args []string, stdout io.Writer) error {
	fs, configPath := newFlagSet("compare")
	userID := fs.Int64("user", 0, "user whose resumes are compared")
	jdID := fs.Int64("jd", 0, "job description id")
	output := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *userID <= 0 || *jdID <= 0 {
		fmt.Fprintln(stdout, "Usage: resumatch compare --user N --jd N")
		return errUsage
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer components.Close()

	evs, err := components.Evaluations.CompareResumesToJD(ctx, *userID, *jdID)
	if err != nil {
		return err
	}
	return cli.WriteEvaluations(stdout, evs, format)
}

// runReport writes the analytics workbook to a file.
func runReport(args []string, stdout io.Writer) error {
	fs, configPath := newFlagSet("report")
	adminID := fs.Int64("admin", 0, "limit the report to one admin's job descriptions")
	out := fs.String("out", "", "output file (default: generated name in the current directory)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer components.Close()

	var filter analytics.Filter
	if *adminID > 0 {
		filter.AdminID = adminID
	}
	data, name, err := components.Analytics.Export(ctx, filter)
	if err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = name
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(stdout, "Report written: %s\n", path)
	return nil
}

func runStatus(args []string, stdout io.Writer) error {
	fs, configPath := newFlagSet("status")
	output := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer components.Close()

	st, err := server.CollectStatus(ctx, components.Store, components.Evaluations.Backend(), cfg.Storage.Driver, dataPaths(cfg))
	if err != nil {
		return err
	}
	return cli.WriteStatus(stdout, st, format)
}

// runInit writes a config file with every default filled in.
func runInit(args []string, stdout io.Writer) error {
	fs, configPath := newFlagSet("init")
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if _, err := os.Stat(*configPath); err == nil && !*force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", *configPath)
	}
	if err := config.Save(*configPath, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Config written: %s\n", *configPath)
	return nil
}

// dataPaths names the on-disk locations reported by status.
func dataPaths(cfg *config.Config) map[string]string {
	paths := map[string]string{
		"keyword_index": cfg.Storage.BleveIndexPath,
		"uploads":       cfg.Storage.UploadDir,
	}
	switch cfg.Storage.Driver {
	case storage.DriverSQLite:
		paths["database"] = cfg.Storage.DatabasePath
	case storage.DriverJSON:
		paths["database"] = cfg.Storage.JSONPath
	}
	return paths
}

// Components holds initialized services.
type Components struct {
	Store        storage.Storage
	Embedder     embedding.Embedder
	KeywordIndex keyword.Index
	Evaluations  *evaluation.Service
	Analytics    *analytics.Service
	Documents    *documents.Service
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func newEmbedder(cfg *config.Config, logger *zap.Logger) (embedding.Embedder, error) {
	e, err := embedding.Select(embedding.Options{
		Backend:     cfg.Embedding.Backend,
		ModelPath:   cfg.Embedding.ModelPath,
		LibraryPath: cfg.Embedding.LibraryPath,
		Dimensions:  cfg.Embedding.Dimensions,
		MaxTokens:   cfg.Embedding.MaxTokens,
		CacheSize:   cfg.Embedding.CacheSize,
		Lazy:        cfg.Embedding.Lazy,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return e, nil
}

func newMatcher(cfg *config.Config, e embedding.Embedder, logger *zap.Logger) *matcher.Matcher {
	return matcher.New(e,
		matcher.WithLogger(logger),
		matcher.WithScorer(scoring.NewScorer(cfg.Evaluation.HighThreshold, cfg.Evaluation.MediumThreshold)),
	)
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	store, err := storage.Open(ctx, storage.Options{
		Driver:       cfg.Storage.Driver,
		DatabasePath: cfg.Storage.DatabasePath,
		DSN:          cfg.Storage.DSN,
		JSONPath:     cfg.Storage.JSONPath,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Store = store

	e, err := newEmbedder(cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Embedder = e

	idx, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath, textnorm.NewPipeline(cfg.Normalizer))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.KeywordIndex = idx

	c.Evaluations = evaluation.NewService(store, newMatcher(cfg, e, logger), evaluation.WithLogger(logger))
	c.Analytics = analytics.NewService(store, logger)
	ex := extract.NewExtractor(extract.WithLogger(logger), extract.WithExtensions(cfg.Extract.AllowedExtensions...))
	c.Documents = documents.NewService(store, ex, cfg.Storage.UploadDir,
		documents.WithLogger(logger),
		documents.WithIndex(idx),
		documents.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
	)
	logger.Info("components initialized",
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("embedding_backend", e.Name()),
	)
	return c, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `resumatch - Resume and job description scoring service

Usage:
  resumatch server [flags]                          Start the HTTP server (and intake watcher)
  resumatch evaluate [flags] <resume> <jd>          Score a resume file against a job description file
  resumatch ingest --user N | --admin N <file>...   Upload resumes or job descriptions
  resumatch compare --user N --jd N                 Evaluate a user's resumes against a job description
  resumatch report [--admin N] [--out file.xlsx]    Export the analytics workbook
  resumatch status [flags]                          Show record counts, backends and disk usage
  resumatch init [--force]                          Write a default config file
  resumatch version                                 Show version
  resumatch help                                    Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/resumatch/config.yaml;
                     ./config.yaml is used instead when present)
  --output string    Output format for evaluate, compare and status: text or json

Server Flags:
  --debug            Enable debug logging

Examples:
  resumatch init
  resumatch server
  resumatch evaluate cv.pdf backend.docx
  resumatch ingest --user 7 cv.pdf cover.txt
  resumatch ingest --admin 2 backend.docx
  resumatch compare --user 7 --jd 3 --output json
  resumatch report --admin 2 --out report.xlsx
  resumatch status`)
}
