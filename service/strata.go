package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/wkalt/strata/blockcache"
	"github.com/wkalt/strata/cache"
	"github.com/wkalt/strata/engine"
	"github.com/wkalt/strata/objects"
	"github.com/wkalt/strata/routes"
	"github.com/wkalt/strata/util"
	"github.com/wkalt/strata/util/log"
	"github.com/wkalt/strata/wal"
)

/*
This file is the main entrypoint for strata server startup.
*/

////////////////////////////////////////////////////////////////////////////////

const (
	megabyte = 1024 * 1024
	gigabyte = 1024 * megabyte
)

type Strata struct{}

// NewStrataService creates a new strata service.
func NewStrataService() *Strata {
	return &Strata{}
}

// Start starts the strata service.
func (s *Strata) Start(ctx context.Context, options ...StrataOption) error { //nolint:funlen
	opts, err := readOpts(options...)
	if err != nil {
		return fmt.Errorf("failed to read options: %w", err)
	}

	slog.SetLogLoggerLevel(opts.LogLevel)
	log.Debugf(ctx, "Debug logging enabled")
	store := opts.StorageProvider
	dbpath := opts.DatabasePath + "?_journal=WAL&mode=rwc"
	log.Infof(ctx, "Opening manifest database at %s", dbpath)
	db, err := sql.Open("sqlite3", dbpath)
	if err != nil {
		return fmt.Errorf("failed to open manifest database: %w", err)
	}
	defer db.Close()
	if err = db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database at %s: %w", dbpath, err)
	}
	manager, err := objects.NewSQLManager(db)
	if err != nil {
		return fmt.Errorf("failed to open object manifest: %w", err)
	}

	if err := util.EnsureDirectoryExists(opts.WALDir); err != nil {
		return fmt.Errorf("failed to ensure WAL directory exists: %w", err)
	}
	w, err := wal.NewFileWAL(opts.WALDir, wal.WithFlushInterval(opts.WALFlushInterval))
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer w.Close()
	if err := w.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover log: %w", err)
	}

	e := engine.New(ctx, w,
		cache.NewLogCache(cache.WithBlockSize(opts.BlockSizeBytes)),
		manager,
		store,
		blockcache.NewObjectReader(manager, store, blockcache.WithCacheSize(int(opts.CacheSizeBytes))),
		engine.WithQueueSize(opts.QueueSize),
	)
	defer e.Close()
	if err := w.Replay(ctx, func(seq uint64, data []byte) error {
		return e.Restore(ctx, seq, data)
	}); err != nil {
		return fmt.Errorf("failed to restore unmigrated log tail: %w", err)
	}

	log.Infof(ctx, "Building routes with allowed origins %+v", opts.AllowedOrigins)
	r := routes.MakeRoutes(e, opts.AllowedOrigins, opts.SharedKey)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigint := make(chan os.Signal, 1)
	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT)
	signal.Notify(sigterm, syscall.SIGTERM)

	startErr := make(chan error)
	go func() {
		log.Infow(ctx, "Starting server",
			"port", opts.Port, "cache", util.HumanBytes(opts.CacheSizeBytes), "storage", store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			startErr <- err
		}
	}()

	go func() {
		r := mux.NewRouter()
		r.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
		log.Infof(ctx, "Starting pprof server on :6060")
		srv := &http.Server{
			Addr:              "localhost:6060",
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil {
			log.Errorf(ctx, "failed to start pprof server: %s", err)
		}
	}()

	select {
	case <-sigint:
		log.Infof(ctx, "Received SIGINT")
	case <-sigterm:
		log.Infof(ctx, "Received SIGTERM")
	case err := <-startErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Infof(ctx, "Allowing 10 seconds for existing connections to close")
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	errs := make(chan error)
	success := make(chan bool)

	go func() {
		if err := srv.Shutdown(ctx); err != nil {
			errs <- err
		} else {
			log.Infof(ctx, "Server stopped")
			success <- true
		}
	}()

	select {
	case <-sigint:
		return errors.New("forceful shutdown on second interrupt")
	case err := <-errs:
		return fmt.Errorf("server shutdown failed: %w", err)
	case <-success:
		return nil
	}
}

func readOpts(opts ...StrataOption) (*StrataOptions, error) {
	options := StrataOptions{
		Port:             8089,
		LogLevel:         slog.LevelInfo,
		DatabasePath:     "strata.db",
		WALDir:           "waldir",
		WALFlushInterval: 10 * time.Millisecond,
		BlockSizeBytes:   512 * megabyte,
		QueueSize:        engine.DefaultQueueSize,
		CacheSizeBytes:   1 * gigabyte,
		AllowedOrigins:   nil,
		SharedKey:        "",
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.StorageProvider == nil {
		return nil, errors.New("storage provider is required")
	}
	return &options, nil
}
