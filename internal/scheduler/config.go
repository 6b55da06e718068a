package scheduler

import (
	"errors"
	"time"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

// Config tunes the maintenance loop. Zero values fall back to defaults so a
// partially populated config stays usable.
type Config struct {
	// Interval is the pause between passes.
	Interval time.Duration
	// JobTimeout bounds a single job run.
	JobTimeout time.Duration
	// LockTTL bounds how long a replica may hold a job lock.
	LockTTL time.Duration
	// BatchSize caps items processed per run for batched jobs.
	BatchSize int
	// TokenRetention is how long expired one-time tokens are kept before
	// purging.
	TokenRetention time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 2 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.TokenRetention <= 0 {
		c.TokenRetention = 24 * time.Hour
	}
	return c
}
