// internal/corpus/provider.go
package corpus

import (
	"fmt"

	"registry-workers/internal/common/config"
	"registry-workers/internal/common/database"
	"registry-workers/internal/common/logger"
	"registry-workers/internal/dedup"
)

// New builds the provider selected by cfg.Source (postgres when empty),
// wrapped in the redis cache when enabled. The memory store is loaded from
// cfg.SeedFile when set and returned alongside so callers can seed it
// further; it is nil for other sources.
func New(cfg config.CorpusConfig, clients *database.Clients, log logger.Logger) (dedup.CorpusProvider, *Memory, error) {
	var (
		provider dedup.CorpusProvider
		memory   *Memory
	)

	switch cfg.Source {
	case config.CorpusSourceMemory:
		memory = NewMemory()
		if cfg.SeedFile != "" {
			if err := memory.LoadFile(cfg.SeedFile); err != nil {
				return nil, nil, err
			}
		}
		provider = memory

	case config.CorpusSourcePostgres, "":
		if clients == nil || clients.Postgres == nil {
			return nil, nil, fmt.Errorf("postgres corpus requires a postgres connection")
		}
		pg, err := NewPostgres(clients.Postgres.DB, cfg.Table, cfg.MaxRecords)
		if err != nil {
			return nil, nil, err
		}
		provider = pg

	case config.CorpusSourceElasticsearch:
		if clients == nil || clients.Elasticsearch == nil {
			return nil, nil, fmt.Errorf("elasticsearch corpus requires an elasticsearch client")
		}
		provider = NewElasticsearch(clients.Elasticsearch.Client, cfg.Index, cfg.MaxRecords)

	default:
		return nil, nil, fmt.Errorf("unknown corpus source %q", cfg.Source)
	}

	if cfg.CacheEnabled {
		if clients == nil || clients.Redis == nil {
			return nil, nil, fmt.Errorf("corpus cache requires a redis connection")
		}
		provider = NewCached(provider, clients.Redis.Client, cfg.CacheTTL, log)
	}

	log.Info("corpus provider ready", map[string]interface{}{
		"source":       cfg.Source,
		"cacheEnabled": cfg.CacheEnabled,
		"maxRecords":   cfg.MaxRecords,
	})

	return provider, memory, nil
}
