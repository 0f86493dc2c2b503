package cli

import (
	"context"

	"go.uber.org/zap"

	"esgdata/internal/config"
	"esgdata/internal/dbclient"
	"esgdata/internal/etl"
	"esgdata/internal/etl/sources"
	"esgdata/internal/logging"
	"esgdata/internal/service"
	"esgdata/internal/storage"
)

// writeConcurrency bounds parallel upserts into the reporting collection.
const writeConcurrency = 8

// env is what a command has opened; Close releases it in reverse order.
type env struct {
	cfg *config.Config
	log *zap.Logger

	reporting *dbclient.MongoStore
	db        *storage.DB
	imports   *service.ImportService
}

// loadEnv reads the config and builds the logger.
func loadEnv(opts *RootOptions) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	log, err := logging.New(cfg.Logging, opts.Verbose)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}
	sources.SetConnectionResolver(cfg.Connection)
	return &env{cfg: cfg, log: log}, nil
}

// openEnv loads the environment and opens the job store. With withMongo the
// reporting store is connected too and imports write into it.
func openEnv(ctx context.Context, opts *RootOptions, withMongo bool) (*env, error) {
	e, err := loadEnv(opts)
	if err != nil {
		return nil, err
	}

	var dest etl.Destination
	if withMongo {
		store, err := dbclient.NewMongoStore(ctx, e.cfg, e.log)
		if err != nil {
			e.Close()
			return nil, WrapExitError(ExitCommandError, "failed to connect to mongo", err)
		}
		e.reporting = store
		if err := store.EnsureIndexes(ctx); err != nil {
			e.Close()
			return nil, WrapExitError(ExitCommandError, "failed to ensure indexes", err)
		}
		dest = &etl.MongoWriter{Store: store, Log: e.log, Concurrency: writeConcurrency}
	}

	db, err := storage.New(e.cfg.Storage.DBPath)
	if err != nil {
		e.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open job store", err)
	}
	e.db = db
	e.imports = service.NewImportService(storage.NewImportStore(db), dest, &service.LogEmitter{Log: e.log}, e.log)
	return e, nil
}

func (e *env) Close() {
	if e.imports != nil {
		e.imports.Stop()
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.log.Warn("close job store", zap.Error(err))
		}
	}
	if e.reporting != nil {
		if err := e.reporting.Close(); err != nil {
			e.log.Warn("close reporting store", zap.Error(err))
		}
	}
	_ = e.log.Sync()
}
