// Package main provides forged, the HTTP server exposing the dice, table,
// name, encounter and generator engines.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/loreforge/internal/config"
	"github.com/cory-johannsen/loreforge/internal/content"
	"github.com/cory-johannsen/loreforge/internal/httpapi"
	"github.com/cory-johannsen/loreforge/internal/observability"
	"github.com/cory-johannsen/loreforge/internal/scripting"
	"github.com/cory-johannsen/loreforge/internal/server"
)

const shutdownGrace = 10 * time.Second

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty uses defaults and FORGE_* environment")
	contentDir := flag.String("content", "", "content directory overriding content.dir; empty uses the embedded library")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *contentDir != "" {
		cfg.Content.Dir = *contentDir
	}

	logger, err := observability.NewLogger("forged", cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	contentStart := time.Now()
	lib, err := loadLibrary(cfg.Content.Dir)
	if err != nil {
		logger.Fatal("loading content", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.String("dir", cfg.Content.Dir),
		zap.Int("tables", len(lib.Tables)),
		zap.Int("catalogs", len(lib.Catalogs)),
		zap.Int("scripts", len(lib.Scripts)),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	gens := scripting.NewManager(lib, logger, cfg.Scripting.InstructionLimit, cfg.Generator.MaxSample)
	if err := gens.LoadLibrary(); err != nil {
		logger.Fatal("loading generators", zap.Error(err))
	}
	logger.Info("generators loaded", zap.Strings("generators", gens.Names()))

	api := httpapi.New(lib, gens, logger, httpapi.Options{
		MaxSample: cfg.Generator.MaxSample,
		Seed:      cfg.Generator.Seed,
	})
	if cfg.Generator.Seed != 0 {
		logger.Warn("fixed seed configured, every request without its own seed replays the same draws",
			zap.Uint64("seed", cfg.Generator.Seed),
		)
	}

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Generators are added first so they close after the listener drains.
	lifecycle := server.NewLifecycle(logger)
	gensDone := make(chan struct{})
	lifecycle.Add("generators", &server.FuncService{
		StartFn: func() error {
			<-gensDone
			return nil
		},
		StopFn: func() {
			close(gensDone)
			gens.Close()
		},
	})
	lifecycle.Add("http", server.NewHTTPService(httpSrv, shutdownGrace, logger))

	logger.Info("forged initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Server.Addr()),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func loadLibrary(dir string) (*content.Library, error) {
	if dir == "" {
		return content.Default()
	}
	return content.LoadDir(dir)
}
