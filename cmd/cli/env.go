package main

import (
	"context"

	"github.com/jmoiron/sqlx"

	"goregime/adapters/excel"
	"goregime/adapters/postgres"
	"goregime/adapters/registry"
	"goregime/adapters/rng"
	"goregime/app"
	"goregime/internal/config"
	"goregime/internal/errors"
	"goregime/internal/migration"
	"goregime/ports"
)

// runEnv holds the components a command needs. Store and DB are nil when no
// DSN is configured.
type runEnv struct {
	DB       *sqlx.DB
	Store    *postgres.ResultRepository
	Pipeline *app.PipelineService
}

func (e *runEnv) Close() {
	if e.DB != nil {
		_ = e.DB.Close()
	}
}

// openStore connects to the result database and applies migrations.
func openStore(ctx context.Context, c *config.Config) (*sqlx.DB, error) {
	db, err := postgres.Open(ctx, c.Store.Driver, c.Store.DSN)
	if err != nil {
		return nil, errors.StoreError("open result store", err)
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// initPipeline wires file inputs, the optional store and the pipeline.
func initPipeline(ctx context.Context, c *config.Config, withStore bool) (*runEnv, error) {
	env := &runEnv{}
	var store ports.ResultStore
	if withStore && c.Store.DSN != "" {
		db, err := openStore(ctx, c)
		if err != nil {
			return nil, err
		}
		env.DB = db
		env.Store = postgres.NewResultRepository(db, logger)
		store = env.Store
	}

	labelA, labelB := c.Labels()
	env.Pipeline = app.NewPipelineService(
		excel.NewCalendarReader(c.Inputs.Calendar, labelA, labelB, logger),
		excel.NewSeriesReader(c.Inputs.SeriesDir, logger),
		registry.NewFileRegistry(c.Inputs.Registry, logger),
		store,
		rng.NewKeyedAdapter(),
		logger,
	)
	return env, nil
}
