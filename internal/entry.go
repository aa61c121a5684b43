// Package internal provides the application wiring and the run modes of the CLI.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/nbpress/internal/api"
	"github.com/starford/nbpress/internal/index"
	"github.com/starford/nbpress/internal/mcpserver"
	"github.com/starford/nbpress/internal/pageservice"
	"github.com/starford/nbpress/internal/publish"
	"github.com/starford/nbpress/internal/searchdb"
	"github.com/starford/nbpress/internal/sse"
	"github.com/starford/nbpress/internal/storage"
	"github.com/starford/nbpress/internal/watcher"
)

// runtime is everything the run modes share.
type runtime struct {
	cfg       *Config
	logger    *slog.Logger
	out       io.Writer
	version   string
	notebooks *storage.FS
	content   *storage.FS
	idx       *index.Store
	db        *searchdb.DB // nil without a mirror
	pipe      *pipeline
	svc       *pageservice.Service
}

func (rt *runtime) close() {
	if rt.db != nil {
		rt.db.Close()
	}
}

func newRuntime(opts []Option, defaultLogOut io.Writer) (*runtime, error) {
	app := &application{out: os.Stdout, logOut: defaultLogOut, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("notebooks_path", cfg.Notebooks.Path),
		slog.String("content_path", cfg.Content.Path),
		slog.String("index_path", cfg.Index.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	notebooks, err := storage.NewFS(cfg.Notebooks.Path)
	if err != nil {
		return nil, fmt.Errorf("init notebooks: %w", err)
	}
	if err := os.MkdirAll(cfg.Content.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}
	content, err := storage.NewFS(cfg.Content.Path)
	if err != nil {
		return nil, fmt.Errorf("init content: %w", err)
	}

	rt := &runtime{
		cfg:       cfg,
		logger:    logger,
		out:       app.out,
		version:   app.version,
		notebooks: notebooks,
		content:   content,
		idx:       index.NewStore(cfg.Index.Path),
	}

	var mirror searchdb.PageIndex
	if cfg.SQLite.Enabled() {
		db, err := searchdb.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init search mirror: %w", err)
		}
		rt.db = db
		mirror = db
	}

	pub := publish.New(notebooks, content, rt.idx, logger,
		publish.WithNotebookSuffix(cfg.Notebooks.Suffix),
		publish.WithMetadataSuffix(cfg.Content.MetadataSuffix),
		publish.WithDefaultAuthor(cfg.Publish.DefaultAuthor),
		publish.WithStripOutputs(cfg.Notebooks.StripOutputs),
	)
	rt.pipe = &pipeline{pub: pub, idx: rt.idx, db: mirror, logger: logger}
	rt.svc = pageservice.NewService(content, rt.idx, mirror, cfg.Content.MetadataSuffix)
	return rt, nil
}

// RunSync runs a single synchronization pass.
func RunSync(_ context.Context, opts ...Option) error {
	rt, err := newRuntime(opts, os.Stdout)
	if err != nil {
		return err
	}
	defer rt.close()

	report, err := rt.pipe.Run()
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	_, _ = fmt.Fprintf(rt.out, "%d new, %d updated, %d unchanged, %d pages indexed\n",
		report.Count(publish.StatusNew),
		report.Count(publish.StatusUpdated),
		report.Count(publish.StatusUnchanged),
		report.Pages)
	return nil
}

// RunSearch queries the published pages and prints one hit per line.
func RunSearch(ctx context.Context, query string, limit int, opts ...Option) error {
	rt, err := newRuntime(opts, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.close()

	results, err := rt.svc.Search(ctx, query, limit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	for _, r := range results {
		_, _ = fmt.Fprintf(rt.out, "%s\t%s\t%s\n", r.ID, r.Title, r.URL)
	}
	return nil
}

// RunMCP serves the MCP tools over stdio. Logs go to stderr so they do not
// corrupt the protocol stream.
func RunMCP(_ context.Context, opts ...Option) error {
	rt, err := newRuntime(opts, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.close()

	srv := mcpserver.New(rt.svc, rt.pipe.Run, rt.version)
	return srv.ServeStdio()
}

// Run publishes once, then serves the preview API while watching the
// notebook directory.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(opts, os.Stdout)
	if err != nil {
		return err
	}
	defer rt.close()

	cfg := rt.cfg
	logger := rt.logger

	if _, err := rt.pipe.Run(); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(rt.svc, api.Config{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		Events:      broker,
		Notebooks:   api.NewNotebookHandler(rt.content, cfg.Notebooks.Suffix),
		Sync: func() (*publish.Report, error) {
			report, err := rt.pipe.Run()
			if err == nil {
				broker.PublishReport(report)
			}
			return report, err
		},
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := rt.idx.Load(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"index unreadable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	w := watcher.New(rt.notebooks.Root(), cfg.Notebooks.Suffix, cfg.Watch.Debounce,
		rt.pipe.Run, broker.PublishReport, logger)
	g.Go(func() error {
		if err := w.Run(gCtx); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
