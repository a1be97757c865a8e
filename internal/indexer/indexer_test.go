package indexer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlpilot/internal/catalog"
	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/database/drivers"
	"github.com/koustreak/sqlpilot/internal/errs"
	"github.com/koustreak/sqlpilot/internal/schema"
	"github.com/koustreak/sqlpilot/internal/testutil"
)

func newStore(t *testing.T) *catalog.SQLiteStore {
	t.Helper()
	store, err := catalog.OpenSQLite(t.Context(), catalog.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func register(t *testing.T, store catalog.Store, dbType, url string) int64 {
	t.Helper()
	conn, err := store.CreateConnection(t.Context(), catalog.ConnectionInput{Name: "shop", DBType: dbType, ConnectionURL: url})
	require.NoError(t, err)
	return conn.ID
}

// shape reduces catalog tables to comparable values.
type colShape struct {
	Name, Type string
	PK, FK     bool
}

func shape(tables []*catalog.Table) map[string][]colShape {
	out := make(map[string][]colShape, len(tables))
	for _, t := range tables {
		cols := make([]colShape, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = colShape{c.Name, c.DataType, c.IsPrimaryKey, c.IsForeignKey}
		}
		out[t.Name] = cols
	}
	return out
}

func TestIndex_SQLite(t *testing.T) {
	store := newStore(t)
	id := register(t, store, "sqlite", testutil.SQLiteFixture(t, testutil.ShopSchema...))
	ix := New(store, drivers.Default(database.DefaultConfig()), Config{}, nil)

	report, err := ix.Index(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, id, report.ConnectionID)
	assert.Equal(t, 3, report.Tables)
	assert.Equal(t, 9, report.Columns)
	assert.Equal(t, 2, report.ForeignKeys)

	tables, err := store.GetTables(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, map[string][]colShape{
		"line_items": {
			{"order_id", "INTEGER", true, true},
			{"line", "INTEGER", true, false},
			{"sku", "TEXT", false, false},
		},
		"orders": {
			{"id", "INTEGER", true, false},
			{"user_id", "INTEGER", false, true},
			{"total", "NUMERIC(10,2)", false, false},
		},
		"users": {
			{"id", "INTEGER", true, false},
			{"name", "VARCHAR(100)", false, false},
			{"email", "TEXT", false, false},
		},
	}, shape(tables))
}

func TestIndex_Idempotent(t *testing.T) {
	store := newStore(t)
	id := register(t, store, "sqlite", testutil.SQLiteFixture(t, testutil.ShopSchema...))
	ix := New(store, drivers.Default(database.DefaultConfig()), Config{}, nil)

	_, err := ix.Index(t.Context(), id)
	require.NoError(t, err)
	first, err := store.GetTables(t.Context(), id)
	require.NoError(t, err)

	_, err = ix.Index(t.Context(), id)
	require.NoError(t, err)
	second, err := store.GetTables(t.Context(), id)
	require.NoError(t, err)

	assert.Len(t, second, 3, "no duplicate tables")
	assert.Equal(t, shape(first), shape(second))
}

func TestIndex_UnknownConnection(t *testing.T) {
	ix := New(newStore(t), drivers.Default(database.DefaultConfig()), Config{}, nil)

	_, err := ix.Index(t.Context(), 404)
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

// faultyOpener delegates to a real opener but can fail the open or the
// foreign-key listing of the sessions it returns.
type faultyOpener struct {
	next     database.Opener
	openErr  error
	fkErr    error
	opens    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	hold     time.Duration
}

func (o *faultyOpener) Open(ctx context.Context, dbType, url string) (database.Session, error) {
	o.opens.Add(1)
	if o.openErr != nil {
		return nil, o.openErr
	}
	s, err := o.next.Open(ctx, dbType, url)
	if err != nil {
		return nil, err
	}
	n := o.inFlight.Add(1)
	for {
		m := o.maxSeen.Load()
		if n <= m || o.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	return &faultySession{Session: s, opener: o}, nil
}

type faultySession struct {
	database.Session
	opener *faultyOpener
}

func (s *faultySession) ListForeignKeys(ctx context.Context) ([]schema.ForeignKey, error) {
	time.Sleep(s.opener.hold)
	if s.opener.fkErr != nil {
		return nil, s.opener.fkErr
	}
	return s.Session.ListForeignKeys(ctx)
}

func (s *faultySession) Close() error {
	s.opener.inFlight.Add(-1)
	return s.Session.Close()
}

func TestIndex_FailureKeepsPriorCatalog(t *testing.T) {
	store := newStore(t)
	id := register(t, store, "sqlite", testutil.SQLiteFixture(t, testutil.ShopSchema...))
	opener := &faultyOpener{next: drivers.Default(database.DefaultConfig())}
	ix := New(store, opener, Config{}, nil)

	_, err := ix.Index(t.Context(), id)
	require.NoError(t, err)
	before, err := store.GetTables(t.Context(), id)
	require.NoError(t, err)

	opener.fkErr = errs.New(errs.ErrKindQueryFailed, "permission denied for pg_constraint")
	_, err = ix.Index(t.Context(), id)
	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err))

	after, err := store.GetTables(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, shape(before), shape(after))
}

func TestIndex_Unreachable(t *testing.T) {
	store := newStore(t)
	id := register(t, store, "postgres", "postgres://nowhere:1/db")
	opener := &faultyOpener{openErr: errs.Wrap(errs.ErrKindConnectionFailed, "failed to connect", errors.New("connection refused"))}
	ix := New(store, opener, Config{}, nil)

	_, err := ix.Index(t.Context(), id)
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
	assert.EqualValues(t, 1, opener.opens.Load(), "no retry")

	tables, err := store.GetTables(t.Context(), id)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestTrigger(t *testing.T) {
	store := newStore(t)
	id := register(t, store, "sqlite", testutil.SQLiteFixture(t, testutil.ShopSchema...))
	ix := New(store, drivers.Default(database.DefaultConfig()), Config{Timeout: time.Minute}, nil)

	ctx, cancel := context.WithCancel(t.Context())
	require.True(t, ix.Trigger(ctx, id))
	cancel() // the pass is detached from the caller's cancellation

	ix.Wait()

	tables, err := store.GetTables(t.Context(), id)
	require.NoError(t, err)
	assert.Len(t, tables, 3)
}

func TestTrigger_FailureIsNotPropagated(t *testing.T) {
	store := newStore(t)
	id := register(t, store, "mysql", "mysql://nowhere/db")
	opener := &faultyOpener{openErr: errs.New(errs.ErrKindConnectionFailed, "refused")}
	ix := New(store, opener, Config{}, nil)

	require.True(t, ix.Trigger(t.Context(), id))
	ix.Close()

	assert.EqualValues(t, 1, opener.opens.Load())
	assert.False(t, ix.Trigger(t.Context(), id), "closed indexer accepts no passes")
}

func TestIndex_SameConnectionSerialized(t *testing.T) {
	store := newStore(t)
	id := register(t, store, "sqlite", testutil.SQLiteFixture(t, testutil.ShopSchema...))
	opener := &faultyOpener{next: drivers.Default(database.DefaultConfig()), hold: 20 * time.Millisecond}
	ix := New(store, opener, Config{}, nil)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ix.Index(context.Background(), id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 4, opener.opens.Load())
	assert.EqualValues(t, 1, opener.maxSeen.Load(), "passes overlapped")
	assert.Equal(t, 0, ix.locks.size())

	tables, err := store.GetTables(t.Context(), id)
	require.NoError(t, err)
	assert.Len(t, tables, 3)
}
