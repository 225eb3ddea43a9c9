// internal/common/database/clients.go
package database

import (
	"context"
	"fmt"
	"time"

	"registry-workers/internal/common/config"
	"registry-workers/internal/common/logger"
)

// HealthChecker is anything /ready should ping.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

// Clients holds the backends the configured corpus needs. Unused backends
// stay nil.
type Clients struct {
	Postgres      *PostgresClient
	Redis         *RedisClient
	Elasticsearch *ElasticsearchClient
}

// Open connects to the backends required by cfg.Dedup.Corpus and pings each
// one. On failure everything opened so far is closed.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*Clients, error) {
	c := &Clients{}
	corpus := cfg.Dedup.Corpus

	switch corpus.Source {
	case config.CorpusSourcePostgres:
		pg, err := NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		c.Postgres = pg
	case config.CorpusSourceElasticsearch:
		es, err := NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		c.Elasticsearch = es
	}

	if corpus.CacheEnabled {
		c.Redis = NewRedis(cfg.Database.Redis)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for _, checker := range c.Checkers() {
		if err := checker.Ping(pingCtx); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to connect to %s: %w", checker.Name(), err)
		}
		log.Info("connected", map[string]interface{}{"backend": checker.Name()})
	}

	return c, nil
}

// Checkers lists the opened backends.
func (c *Clients) Checkers() []HealthChecker {
	var checkers []HealthChecker
	if c.Postgres != nil {
		checkers = append(checkers, c.Postgres)
	}
	if c.Elasticsearch != nil {
		checkers = append(checkers, c.Elasticsearch)
	}
	if c.Redis != nil {
		checkers = append(checkers, c.Redis)
	}
	return checkers
}

func (c *Clients) Close() {
	if c.Postgres != nil {
		_ = c.Postgres.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

// CheckAll pings every checker and returns the failures by name.
func CheckAll(ctx context.Context, checkers []HealthChecker) map[string]error {
	failures := make(map[string]error)
	for _, checker := range checkers {
		if err := checker.Ping(ctx); err != nil {
			failures[checker.Name()] = err
		}
	}
	return failures
}
