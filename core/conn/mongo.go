package conn

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// dialMongo connects and pings once, standing in for the
// "error/connected/disconnected" event wiring in §4.6 — the mongo
// driver's Connect already dials lazily and asynchronously, so a Ping
// under the connect timeout is what actually proves readiness.
func dialMongo(ctx context.Context, cfg Config) (any, func(context.Context) error, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: connecting to mongo: %v", ErrConnectionFailed, err)
	}

	if err := client.Ping(dialCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("%w: pinging mongo: %v", ErrConnectionFailed, err)
	}

	return client, func(ctx context.Context) error { return client.Disconnect(ctx) }, nil
}
