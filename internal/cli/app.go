package cli

import (
	"context"
	"errors"

	"github.com/koustreak/sqlpilot/internal/catalog"
	"github.com/koustreak/sqlpilot/internal/config"
	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/database/drivers"
	"github.com/koustreak/sqlpilot/internal/errs"
	"github.com/koustreak/sqlpilot/internal/export"
	"github.com/koustreak/sqlpilot/internal/filestore"
	"github.com/koustreak/sqlpilot/internal/filestore/minio"
	"github.com/koustreak/sqlpilot/internal/indexer"
	"github.com/koustreak/sqlpilot/internal/logger"
	"github.com/koustreak/sqlpilot/internal/nl"
	"github.com/koustreak/sqlpilot/internal/query"
)

// app holds the services a command works with, built from the resolved
// configuration.
type app struct {
	cfg *config.Config
	log *logger.Logger

	store    catalog.Store
	indexer  *indexer.Indexer
	executor *query.Executor

	files filestore.Store
}

func openApp(ctx context.Context, e *env) (*app, error) {
	cfg := e.cfg

	sqlStore, err := catalog.OpenSQLite(ctx, cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	var store catalog.Store = sqlStore
	if cfg.Cache.MaxEntries > 0 {
		cached, err := catalog.NewCachedStore(sqlStore, cfg.Cache.MaxEntries, cfg.Cache.TTL)
		if err != nil {
			_ = sqlStore.Close()
			return nil, err
		}
		store = cached
	}

	opener := drivers.Default(database.Config{
		ConnectTimeout: cfg.Target.ConnectTimeout,
		QueryTimeout:   cfg.Target.QueryTimeout,
	})

	return &app{
		cfg:   cfg,
		log:   e.log,
		store: store,
		indexer: indexer.New(store, opener, indexer.Config{
			Timeout: cfg.Target.IndexTimeout,
		}, e.log.With().Str("component", "indexer").Logger()),
		executor: query.New(store, opener, query.Config{
			QueryTimeout: cfg.Target.QueryTimeout,
			PreviewLimit: cfg.Target.PreviewLimit,
		}, e.log.With().Str("component", "query").Logger()),
	}, nil
}

// translator builds the NL translator. Misconfiguration is ErrKindUnavailable.
func (a *app) translator() (*nl.Translator, error) {
	return nl.New(a.store, nl.Config{
		Provider: a.cfg.LLM.Provider,
		APIKey:   a.cfg.LLM.APIKey,
		BaseURL:  a.cfg.LLM.BaseURL,
		Model:    a.cfg.LLM.Model,
		Timeout:  a.cfg.LLM.Timeout,
	}, a.log.With().Str("component", "nl").Logger())
}

// archiver connects to object storage when archiving is enabled; it
// returns nil, nil otherwise.
func (a *app) archiver(ctx context.Context) (*export.Archiver, error) {
	ac := a.cfg.Archive
	if !ac.Enabled {
		return nil, nil
	}

	files, err := minio.New(ctx, &filestore.Config{
		Endpoint:  ac.Endpoint,
		AccessKey: ac.AccessKey,
		SecretKey: ac.SecretKey,
		UseSSL:    ac.UseSSL,
		Region:    ac.Region,
		Bucket:    ac.Bucket,
		URLTTL:    ac.URLTTL,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindUnavailable, "archive storage unreachable", err)
	}
	a.files = files
	return export.NewArchiver(files, ac.Bucket, ac.URLTTL), nil
}

// Close waits for background index passes, then releases storage.
func (a *app) Close() error {
	a.indexer.Close()
	var fileErr error
	if a.files != nil {
		fileErr = a.files.Close()
	}
	return errors.Join(a.store.Close(), fileErr)
}
