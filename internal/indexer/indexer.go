// Package indexer harvests a target database's schema into the catalog.
package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/koustreak/sqlpilot/internal/catalog"
	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/logger"
	"github.com/koustreak/sqlpilot/internal/schema"
)

// DefaultTimeout bounds a background pass when Config.Timeout is zero.
const DefaultTimeout = 5 * time.Minute

// Config controls background passes.
type Config struct {
	// Timeout bounds each pass started by Trigger.
	Timeout time.Duration
}

// Report summarises one successful pass.
type Report struct {
	ConnectionID int64         `json:"connection_id"`
	Tables       int           `json:"tables"`
	Columns      int           `json:"columns"`
	ForeignKeys  int           `json:"foreign_keys"`
	Duration     time.Duration `json:"duration"`
}

// Indexer runs index passes. Passes for the same connection never overlap;
// different connections are indexed concurrently.
type Indexer struct {
	store  catalog.Store
	opener database.Opener
	cfg    Config
	log    *logger.Logger

	locks keyedMutex
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New returns an Indexer writing to store and opening targets with opener.
func New(store catalog.Store, opener database.Opener, cfg Config, log *logger.Logger) *Indexer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Indexer{store: store, opener: opener, cfg: cfg, log: log}
}

// Index runs one pass synchronously: open the target, introspect every
// table, then replace the connection's catalog entries in one step. On any
// error the catalog keeps whatever it held before.
func (ix *Indexer) Index(ctx context.Context, connID int64) (*Report, error) {
	conn, err := ix.store.GetConnection(ctx, connID)
	if err != nil {
		return nil, err
	}

	unlock := ix.locks.Lock(connID)
	defer unlock()

	start := time.Now()

	sess, err := ix.opener.Open(ctx, conn.DBType, conn.ConnectionURL)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	info, err := schema.Inspect(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("indexing connection %d: %w", connID, err)
	}

	specs := info.Specs()
	if err := ix.store.ReplaceTables(ctx, connID, specs); err != nil {
		return nil, err
	}

	report := &Report{
		ConnectionID: connID,
		Tables:       len(specs),
		ForeignKeys:  len(info.ForeignKeys),
		Duration:     time.Since(start),
	}
	for _, t := range specs {
		report.Columns += len(t.Columns)
	}

	ix.log.Event().
		Int64("connection_id", connID).
		Str("db_type", conn.DBType).
		Int("tables", report.Tables).
		Int("columns", report.Columns).
		Dur("duration", report.Duration).
		Msg("index pass complete")

	return report, nil
}

// Trigger starts a pass in the background and returns immediately. The pass
// outlives ctx's cancellation (it keeps ctx's values) and is bounded by
// Config.Timeout. Failures are logged only. After Close, Trigger is a no-op
// and returns false.
func (ix *Indexer) Trigger(ctx context.Context, connID int64) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return false
	}

	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()

		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ix.cfg.Timeout)
		defer cancel()

		if _, err := ix.Index(runCtx, connID); err != nil {
			ix.log.ErrorWith("index pass failed", err, map[string]interface{}{
				"connection_id": connID,
			})
		}
	}()
	return true
}

// Wait blocks until every triggered pass has finished.
func (ix *Indexer) Wait() {
	ix.wg.Wait()
}

// Close stops accepting new passes and waits for running ones.
func (ix *Indexer) Close() {
	ix.mu.Lock()
	ix.closed = true
	ix.mu.Unlock()
	ix.wg.Wait()
}
