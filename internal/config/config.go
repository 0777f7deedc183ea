package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Env names for configuration. Empty or unset means use default.
const (
	EnvDataDir           = "CRCSUM_DATA_DIR"
	EnvPort              = "CRCSUM_PORT"
	EnvBlockSize         = "CRCSUM_BLOCK_SIZE"
	EnvWorkers           = "CRCSUM_WORKERS"
	EnvMaxFilesPerSecond = "CRCSUM_MAX_FILES_PER_SECOND"
	EnvDatabaseURL       = "DATABASE_URL" // PostgreSQL connection URL; SQLite in the data dir when unset
)

// Default values when env is unset.
const (
	DefaultDataDir   = "./data"
	DefaultPort      = 8080
	DefaultBlockSize = 4096
	DefaultWorkers   = 4
)

// MaxBlockSize bounds CRCSUM_BLOCK_SIZE so a typo can't allocate gigabytes per worker.
const MaxBlockSize = 16 << 20

// Config holds application configuration loaded from the environment.
type Config struct {
	dataDir           string
	port              int
	blockSize         int
	workers           int
	maxFilesPerSecond int
	databaseURL       string
}

// Load reads configuration from the environment. Defaults are used for unset
// or empty variables. Returns an error if a numeric variable is set but
// invalid: CRCSUM_PORT outside 0-65535, CRCSUM_BLOCK_SIZE outside
// 1-MaxBlockSize, CRCSUM_WORKERS below 1 or CRCSUM_MAX_FILES_PER_SECOND
// negative. Port 0 means "let the kernel choose an available port".
func Load() (*Config, error) {
	cfg := &Config{
		dataDir:     os.Getenv(EnvDataDir),
		databaseURL: os.Getenv(EnvDatabaseURL),
	}
	if cfg.dataDir == "" {
		cfg.dataDir = DefaultDataDir
	}

	var err error
	if cfg.port, err = intEnv(EnvPort, DefaultPort, 0, 65535); err != nil {
		return nil, err
	}
	if cfg.blockSize, err = intEnv(EnvBlockSize, DefaultBlockSize, 1, MaxBlockSize); err != nil {
		return nil, err
	}
	if cfg.workers, err = intEnv(EnvWorkers, DefaultWorkers, 1, 1024); err != nil {
		return nil, err
	}
	if cfg.maxFilesPerSecond, err = intEnv(EnvMaxFilesPerSecond, 0, 0, 1<<30); err != nil {
		return nil, err
	}
	return cfg, nil
}

func intEnv(name string, def, lo, hi int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New(name + " must be a number")
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%s must be between %d and %d", name, lo, hi)
	}
	return n, nil
}

// DataDir returns the path to the data directory (for the SQLite ledger).
func (c *Config) DataDir() string {
	return c.dataDir
}

// Port returns the HTTP server port for "crcsum serve".
func (c *Config) Port() int {
	return c.port
}

// BlockSize returns the read block size in bytes.
func (c *Config) BlockSize() int {
	return c.blockSize
}

// Workers returns the number of batch checksum workers.
func (c *Config) Workers() int {
	return c.workers
}

// MaxFilesPerSecond returns the batch throttle; 0 means unlimited.
func (c *Config) MaxFilesPerSecond() int {
	return c.maxFilesPerSecond
}

// DatabaseURL returns the PostgreSQL connection URL, or "" to use SQLite.
func (c *Config) DatabaseURL() string {
	return c.databaseURL
}
