package duplicatecheckbatch

import (
	"fmt"
	"time"

	"registry-workers/internal/dedup"
)

type Config struct {
	Enabled           bool          `mapstructure:"enabled"`
	MaxJobsActive     int           `mapstructure:"max_jobs_active"`
	Timeout           time.Duration `mapstructure:"timeout"`
	DefaultThreshold  float64       `mapstructure:"default_threshold"`
	DefaultMaxResults int           `mapstructure:"default_max_results"`
	DefaultAlgorithm  string        `mapstructure:"default_algorithm"`
	Concurrency       int           `mapstructure:"concurrency"`
	MaxBatchSize      int           `mapstructure:"max_batch_size"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:           true,
		MaxJobsActive:     2,
		Timeout:           2 * time.Minute,
		DefaultThreshold:  dedup.DefaultThreshold,
		DefaultMaxResults: dedup.DefaultMaxResults,
		DefaultAlgorithm:  dedup.AlgorithmFuzzy.String(),
		Concurrency:       dedup.DefaultBatchConcurrency,
		MaxBatchSize:      500,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.DefaultThreshold < 0 || c.DefaultThreshold > 1 {
		return fmt.Errorf("default_threshold must be between 0 and 1")
	}
	if c.DefaultMaxResults <= 0 {
		return fmt.Errorf("default_max_results must be positive")
	}
	if _, ok := dedup.ParseAlgorithm(c.DefaultAlgorithm); !ok {
		return fmt.Errorf("unknown default_algorithm %q", c.DefaultAlgorithm)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be positive")
	}
	return nil
}
