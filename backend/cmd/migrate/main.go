package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"diarymap/backend/internal/graph"
	"diarymap/backend/pkg/config"
	"diarymap/backend/pkg/logger"
)

func main() {
	force := flag.Bool("force", false, "Force migration even if already applied")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall migration timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting Neo4j schema migration...")

	if cfg.StoreBackend != config.BackendNeo4j {
		log.Info("Nothing to migrate for this store backend", zap.String("backend", cfg.StoreBackend))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	repo := graph.NewRepository(driver, cfg.Neo4jDatabase)
	defer repo.Close()

	if !*force {
		applied, err := repo.MigrationApplied(ctx, graph.SchemaVersion)
		if err != nil {
			log.Fatal("Failed to check migration status", zap.Error(err))
		}
		if applied {
			log.Info("Migration already applied. Use -force to reapply.", zap.String("version", graph.SchemaVersion))
			return
		}
	}

	log.Info("Applying schema",
		zap.Int("constraints", len(graph.Constraints)),
		zap.Int("indexes", len(graph.Indexes)),
		zap.Strings("spatial_layers", graph.SpatialLayers),
	)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}

	if err := repo.MarkMigration(ctx, graph.SchemaVersion, "Uniqueness constraints, feed indexes and WKT spatial layers"); err != nil {
		log.Warn("Failed to mark migration as applied", zap.Error(err))
	}

	log.Info("Migration completed successfully!", zap.String("version", graph.SchemaVersion))
}
