// Package config loads the mempool node's configuration from a YAML
// file with environment-variable overrides, following the teacher's
// internal/config/config.go (50-mini-service-all-features).
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Mempool MempoolConfig `yaml:"mempool"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

// MempoolConfig is the enumerated option set spec.md §6 names.
type MempoolConfig struct {
	AvailableBlockChunkSizes       []int `yaml:"available_block_chunk_sizes"`
	MaxNumberOfWithdrawalsPerBlock int   `yaml:"max_number_of_withdrawals_per_block"`
	NumberOfAdmissionWorkers       uint8 `yaml:"number_of_admission_workers"`
	ChannelCapacity                int   `yaml:"channel_capacity"`
}

// MaxBlockSizeChunks is the maximum of AvailableBlockChunkSizes, the
// value spec.md §6 calls max_block_size_chunks everywhere else.
func (m MempoolConfig) MaxBlockSizeChunks() int {
	max := 0
	for _, size := range m.AvailableBlockChunkSizes {
		if size > max {
			max = size
		}
	}
	return max
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads cfg from a YAML file, overlays a handful of environment
// variables, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	if path := os.Getenv("MEMPOOL_STORAGE_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if level := os.Getenv("MEMPOOL_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if n := os.Getenv("MEMPOOL_ADMISSION_WORKERS"); n != "" {
		if parsed, err := strconv.ParseUint(n, 10, 8); err == nil {
			cfg.Mempool.NumberOfAdmissionWorkers = uint8(parsed)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if len(c.Mempool.AvailableBlockChunkSizes) == 0 {
		return fmt.Errorf("mempool.available_block_chunk_sizes must be non-empty")
	}
	if c.Mempool.NumberOfAdmissionWorkers == 0 {
		return fmt.Errorf("mempool.number_of_admission_workers must be >= 1")
	}
	if c.Mempool.ChannelCapacity < 1 {
		return fmt.Errorf("mempool.channel_capacity must be >= 1")
	}
	return nil
}
