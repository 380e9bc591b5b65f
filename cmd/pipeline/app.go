package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/cademycode/internal/config"
	"github.com/JonMunkholm/cademycode/internal/database"
	"github.com/JonMunkholm/cademycode/internal/export"
	"github.com/JonMunkholm/cademycode/internal/metrics"
	"github.com/JonMunkholm/cademycode/internal/pipeline"
	"github.com/jackc/pgx/v5/pgxpool"
)

// app wires the configured collaborators into a pipeline runner.
type app struct {
	sourcePool *pgxpool.Pool
	destPool   *pgxpool.Pool
	history    *database.History
	recorder   *metrics.Recorder
	runner     *pipeline.Runner
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{recorder: metrics.NewRecorder("")}

	var err error
	a.sourcePool, err = database.Connect(ctx, cfg.Source.URL, database.PoolOptions{
		MaxConns: cfg.Source.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	a.destPool, err = database.Connect(ctx, cfg.Destination.URL, database.PoolOptions{
		MaxConns:        cfg.Destination.MaxConns,
		MaxConnLifetime: cfg.Destination.MaxConnLifetime,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("destination: %w", err)
	}

	opts := []pipeline.Option{
		pipeline.WithTimeout(cfg.Pipeline.Timeout),
		pipeline.WithDiagnostics(a.recorder),
		pipeline.WithObserver(a.recorder),
	}

	if cfg.Destination.RecordHistory {
		a.history = database.NewHistory(a.destPool)
		opts = append(opts, pipeline.WithHistory(a.history))
	}

	if cfg.Pipeline.ExportPath != "" {
		wb, err := export.NewWorkbook(cfg.Pipeline.ExportPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, pipeline.WithExporter(wb))
	}

	a.runner = pipeline.NewRunner(
		database.NewSource(a.sourcePool, cfg.Source.Schema),
		database.NewDestination(a.destPool, cfg.Destination.Schema),
		opts...,
	)

	slog.Info("pipeline ready",
		"source_db", database.DatabaseName(cfg.Source.URL),
		"dest_db", database.DatabaseName(cfg.Destination.URL),
		"dest_schema", cfg.Destination.Schema,
		"history", cfg.Destination.RecordHistory,
		"export", cfg.Pipeline.ExportPath,
	)
	return a, nil
}

// Close releases both pools.
func (a *app) Close() {
	if a.sourcePool != nil {
		a.sourcePool.Close()
	}
	if a.destPool != nil {
		a.destPool.Close()
	}
}
