package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"hlsladder/logger"
)

// DefaultAttempts is how many times each gateway operation is tried.
const DefaultAttempts = 3

// Gateway retries ObjectStore calls with linear backoff: after the n-th failed
// attempt it waits baseDelay*n. Not-found and permission errors return at once.
type Gateway struct {
	store     ObjectStore
	attempts  int
	baseDelay time.Duration
}

// NewGateway wraps store. A zero baseDelay retries immediately.
func NewGateway(store ObjectStore, baseDelay time.Duration) *Gateway {
	return &Gateway{store: store, attempts: DefaultAttempts, baseDelay: baseDelay}
}

// Fetch downloads key.
func (g *Gateway) Fetch(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := g.do(ctx, "fetch", key, func() error {
		var err error
		data, err = g.store.Get(ctx, key)
		return err
	})
	return data, err
}

// Store uploads data. An empty contentType is derived from the key.
func (g *Gateway) Store(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}
	return g.do(ctx, "store", key, func() error {
		return g.store.Put(ctx, key, data, contentType)
	})
}

// StoreFile uploads a local file with the content type derived from key.
func (g *Gateway) StoreFile(ctx context.Context, key, localPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read %s for upload: %w", localPath, err)
	}
	return g.Store(ctx, key, data, "")
}

// List returns the objects under prefix.
func (g *Gateway) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	err := g.do(ctx, "list", prefix, func() error {
		var err error
		objects, err = g.store.List(ctx, prefix)
		return err
	})
	return objects, err
}

func (g *Gateway) do(ctx context.Context, op, key string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt == g.attempts {
			break
		}

		delay := g.baseDelay * time.Duration(attempt)
		logger.Warn("storage operation failed, retrying",
			logger.String("op", op),
			logger.String("key", key),
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.ErrorField(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s %s: %w", op, key, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s %s: %w", op, key, err)
}
