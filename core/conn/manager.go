// Package conn implements the connection manager from §4.6: a
// process-singleton mapping from connection type to a live client,
// with idempotent initialization and parallel graceful shutdown.
package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tejasframework/tejas/core/pools"
)

// Type names a connection kind. Only Redis and Mongo are recognized;
// anything else is Unsupported (§4.6).
type Type string

const (
	Redis Type = "redis"
	Mongo Type = "mongodb"
)

// Config holds every field either dialer reads. Fields irrelevant to
// the chosen Type are ignored.
type Config struct {
	// Redis
	Addr     string
	Password string
	DB       int
	Cluster  bool

	// Mongo
	URI      string
	Database string

	MaxRetries     int
	ConnectTimeout time.Duration
}

var (
	ErrUnsupported         = errors.New("conn: unsupported connection type")
	ErrConnectionFailed    = errors.New("conn: connection failed")
	ErrAlreadyInitializing = errors.New("conn: connection is already initializing")
)

type record struct {
	client any
	closer func(context.Context) error
}

// Manager is the process-singleton connection registry. Callers
// typically hold one Manager per App.
type Manager struct {
	mu           sync.Mutex
	records      map[Type]record
	initializing map[Type]bool
	pool         *pools.WorkerPool
}

// NewManager builds an empty Manager. pool is used to close every
// connection in parallel from CloseAllConnections; pass pools.GetGlobalPool() to
// share the process-wide pool.
func NewManager(pool *pools.WorkerPool) *Manager {
	return &Manager{
		records:      make(map[Type]record),
		initializing: make(map[Type]bool),
		pool:         pool,
	}
}

// InitializeConnection is idempotent by type: if a record already
// exists it returns the existing client without redialing. Concurrent
// callers racing to initialize the same type get ErrAlreadyInitializing
// for every caller but the first.
func (m *Manager) InitializeConnection(ctx context.Context, typ Type, cfg Config) (any, error) {
	m.mu.Lock()
	if r, ok := m.records[typ]; ok {
		m.mu.Unlock()
		return r.client, nil
	}
	if m.initializing[typ] {
		m.mu.Unlock()
		return nil, ErrAlreadyInitializing
	}
	m.initializing[typ] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.initializing, typ)
		m.mu.Unlock()
	}()

	var (
		client any
		closer func(context.Context) error
		err    error
	)

	switch typ {
	case Redis:
		client, closer, err = dialRedis(ctx, cfg)
	case Mongo:
		client, closer, err = dialMongo(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, typ)
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.records[typ] = record{client: client, closer: closer}
	m.mu.Unlock()
	return client, nil
}

// HasConnection reports whether typ has a live connection and/or is
// currently initializing.
func (m *Manager) HasConnection(typ Type) (exists, initializing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists = m.records[typ]
	initializing = m.initializing[typ]
	return
}

// CloseConnection closes and forgets typ's connection, if any.
func (m *Manager) CloseConnection(ctx context.Context, typ Type) error {
	m.mu.Lock()
	r, ok := m.records[typ]
	if ok {
		delete(m.records, typ)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return r.closer(ctx)
}

// CloseAllConnections shuts down every connection in parallel via the
// worker pool, returning the first error encountered (if any) while
// still attempting every close.
func (m *Manager) CloseAllConnections(ctx context.Context) error {
	m.mu.Lock()
	records := make(map[Type]record, len(m.records))
	for t, r := range m.records {
		records[t] = r
	}
	m.records = make(map[Type]record)
	m.mu.Unlock()

	if len(records) == 0 {
		return nil
	}

	var mu sync.Mutex
	var firstErr error

	tasks := make([]pools.Task, 0, len(records))
	for _, r := range records {
		r := r
		tasks = append(tasks, func() {
			if err := r.closer(ctx); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
	}

	m.pool.RunAll(tasks)
	return firstErr
}
