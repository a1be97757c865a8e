package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/koustreak/sqlpilot/internal/errs"
)

// OpenFunc opens a session for one driver.
type OpenFunc func(ctx context.Context, url string, cfg Config) (Session, error)

// Registry is the default Opener: it dispatches on db_type to the driver
// registered for it.
type Registry struct {
	cfg Config

	mu      sync.RWMutex
	drivers map[Driver]OpenFunc
}

var _ Opener = (*Registry)(nil)

// NewRegistry returns an empty registry using cfg for every session.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, drivers: make(map[Driver]OpenFunc)}
}

// Register installs fn for d, replacing any previous entry.
func (r *Registry) Register(d Driver, fn OpenFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[d] = fn
}

// Supported lists the registered drivers.
func (r *Registry) Supported() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Driver, 0, len(r.drivers))
	for d := range r.drivers {
		out = append(out, d)
	}
	return out
}

// Open resolves dbType and opens a session. Unknown engines are an input
// error, not a connection failure.
func (r *Registry) Open(ctx context.Context, dbType, url string) (Session, error) {
	d, ok := ParseDriver(dbType)
	if !ok {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported db_type %q", dbType)
	}

	r.mu.RLock()
	fn, ok := r.drivers[d]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("no driver registered for %s", d))
	}

	return fn(ctx, url, r.cfg)
}
