package conn

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/tejasframework/tejas/core/pools"
)

// fakeSetup bypasses dialRedis/dialMongo so tests don't need a live
// Redis or Mongo instance: it seeds a record directly and exercises
// Manager's own bookkeeping (idempotency, HasConnection, close).
func fakeSetup(m *Manager, typ Type, closed *atomic.Int32) {
	m.records[typ] = record{
		client: "fake-client",
		closer: func(context.Context) error {
			closed.Add(1)
			return nil
		},
	}
}

func TestInitializeConnectionIsIdempotent(t *testing.T) {
	m := NewManager(pools.NewWorkerPool(2))
	var closed atomic.Int32
	fakeSetup(m, Redis, &closed)

	client, err := m.InitializeConnection(context.Background(), Redis, Config{})
	if err != nil {
		t.Fatalf("InitializeConnection: %v", err)
	}
	if client != "fake-client" {
		t.Fatalf("expected the existing client to be returned, got %v", client)
	}
}

func TestInitializeConnectionRejectsUnsupportedType(t *testing.T) {
	m := NewManager(pools.NewWorkerPool(2))

	_, err := m.InitializeConnection(context.Background(), Type("s3"), Config{})
	if err == nil {
		t.Fatal("expected an error for an unsupported connection type")
	}
}

func TestHasConnectionReportsExistence(t *testing.T) {
	m := NewManager(pools.NewWorkerPool(2))
	var closed atomic.Int32

	if exists, _ := m.HasConnection(Redis); exists {
		t.Fatal("expected no connection before setup")
	}

	fakeSetup(m, Redis, &closed)
	if exists, initializing := m.HasConnection(Redis); !exists || initializing {
		t.Fatalf("expected exists=true initializing=false, got exists=%v initializing=%v", exists, initializing)
	}
}

func TestCloseAllConnectionsRunsEveryCloserInParallel(t *testing.T) {
	m := NewManager(pools.NewWorkerPool(4))
	var closed atomic.Int32
	fakeSetup(m, Redis, &closed)
	fakeSetup(m, Mongo, &closed)

	if err := m.CloseAllConnections(context.Background()); err != nil {
		t.Fatalf("CloseAllConnections: %v", err)
	}
	if closed.Load() != 2 {
		t.Fatalf("expected both connections to be closed, got %d", closed.Load())
	}
	if exists, _ := m.HasConnection(Redis); exists {
		t.Fatal("expected Redis record to be forgotten after CloseAllConnections")
	}
}

func TestCloseConnectionRemovesSingleRecord(t *testing.T) {
	m := NewManager(pools.NewWorkerPool(2))
	var closed atomic.Int32
	fakeSetup(m, Redis, &closed)
	fakeSetup(m, Mongo, &closed)

	if err := m.CloseConnection(context.Background(), Redis); err != nil {
		t.Fatalf("CloseConnection: %v", err)
	}
	if closed.Load() != 1 {
		t.Fatalf("expected exactly one close, got %d", closed.Load())
	}
	if exists, _ := m.HasConnection(Mongo); !exists {
		t.Fatal("expected Mongo record to remain untouched")
	}
}
