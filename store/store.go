/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

// Package store creates a floodgate.Store backend from configuration.
// The in-memory, Redis, and libsql backends live in the subpackages and can
// also be constructed directly.
package store

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/floodgate/floodgate"
	"github.com/floodgate/floodgate/log"
	"github.com/floodgate/floodgate/store/memstore"
	"github.com/floodgate/floodgate/store/redisstore"
	"github.com/floodgate/floodgate/store/sqlstore"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var noopCloser = closerFunc(func() error { return nil })

// New creates a store backend described by the configuration and returns it
// together with a closer releasing its resources. The closer is never nil.
func New(ctx context.Context, cfg *Config, logger log.FieldLogger) (floodgate.Store, io.Closer, error) {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	switch cfg.Backend {
	case BackendMemory:
		st := memstore.NewWithOpts(memstore.Opts{MaxEntries: cfg.Memory.MaxEntries})
		logger.Info("in-memory store created", log.Int("maxEntries", cfg.Memory.MaxEntries))
		return st, noopCloser, nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis at %s: %w", cfg.Redis.Addr, err)
		}
		st := redisstore.NewWithOpts(client, redisstore.Opts{
			KeyPrefix:       cfg.Redis.KeyPrefix,
			RecordRetention: time.Duration(cfg.Redis.RecordRetention),
		})
		logger.Info("redis store connected",
			log.String("addr", cfg.Redis.Addr), log.Int("db", cfg.Redis.DB))
		return st, client, nil

	case BackendSQL:
		st, err := sqlstore.OpenWithOpts(ctx, cfg.SQL.DSN, sqlstore.Opts{AuthToken: cfg.SQL.AuthToken})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("sql store opened", log.String("dsn", cfg.SQL.DSN))
		return st, st, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q, should be one of %v", cfg.Backend, availableBackends)
}
