package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"fleetops/internal/latesttrip"
)

// Sync is the latest-trip tuning file. Omitted keys keep the defaults.
// max_retries may be 0; the delays must be positive when set.
type Sync struct {
	Timezone  string `yaml:"timezone"`
	SweepCron string `yaml:"sweep_cron"`

	Queue struct {
		Concurrency int            `yaml:"concurrency"`
		JobTimeout  time.Duration  `yaml:"job_timeout"`
		MaxRetries  *int           `yaml:"max_retries"`
		BaseDelay   *time.Duration `yaml:"base_delay"`
	} `yaml:"queue"`

	Writes struct {
		Attempts  int            `yaml:"attempts"`
		BaseDelay *time.Duration `yaml:"base_delay"`
		Timeout   time.Duration  `yaml:"timeout"`
	} `yaml:"writes"`

	Batch struct {
		ChunkSize  int            `yaml:"chunk_size"`
		RateWindow time.Duration  `yaml:"rate_window"`
		RateMax    int            `yaml:"rate_max"`
		RateDelay  *time.Duration `yaml:"rate_delay"`
	} `yaml:"batch"`

	Cache struct {
		Size int           `yaml:"size"`
		TTL  time.Duration `yaml:"ttl"`
	} `yaml:"cache"`
}

// LoadSync reads the tuning file at path. An empty path yields defaults.
func LoadSync(path string) (Sync, error) {
	if path == "" {
		return Sync{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Sync{}, fmt.Errorf("read sync config: %w", err)
	}
	return ParseSync(b)
}

func ParseSync(b []byte) (Sync, error) {
	var s Sync
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Sync{}, fmt.Errorf("parse sync config: %w", err)
	}
	return s, nil
}

// Engine overlays the file on latesttrip.DefaultConfig.
func (s Sync) Engine() (latesttrip.Config, error) {
	cfg := latesttrip.DefaultConfig()

	if s.Timezone != "" {
		loc, err := time.LoadLocation(s.Timezone)
		if err != nil {
			return cfg, fmt.Errorf("timezone %q: %w", s.Timezone, err)
		}
		cfg.Location = loc
	}

	for name, v := range map[string]int64{
		"queue.concurrency": int64(s.Queue.Concurrency),
		"queue.job_timeout": int64(s.Queue.JobTimeout),
		"queue.max_retries": int64(deref(s.Queue.MaxRetries)),
		"writes.attempts":   int64(s.Writes.Attempts),
		"writes.timeout":    int64(s.Writes.Timeout),
		"batch.chunk_size":  int64(s.Batch.ChunkSize),
		"batch.rate_window": int64(s.Batch.RateWindow),
		"batch.rate_max":    int64(s.Batch.RateMax),
		"cache.size":        int64(s.Cache.Size),
		"cache.ttl":         int64(s.Cache.TTL),
	} {
		if v < 0 {
			return cfg, fmt.Errorf("%s must not be negative", name)
		}
	}
	for name, d := range map[string]*time.Duration{
		"queue.base_delay":  s.Queue.BaseDelay,
		"writes.base_delay": s.Writes.BaseDelay,
		"batch.rate_delay":  s.Batch.RateDelay,
	} {
		if d != nil && *d <= 0 {
			return cfg, fmt.Errorf("%s must be positive", name)
		}
	}

	setInt(&cfg.QueueConcurrency, s.Queue.Concurrency)
	setDur(&cfg.JobTimeout, s.Queue.JobTimeout)
	if s.Queue.MaxRetries != nil {
		cfg.JobMaxRetries = *s.Queue.MaxRetries
	}
	setDur(&cfg.JobBaseDelay, deref(s.Queue.BaseDelay))
	setInt(&cfg.WriteAttempts, s.Writes.Attempts)
	setDur(&cfg.WriteBaseDelay, deref(s.Writes.BaseDelay))
	setDur(&cfg.OpTimeout, s.Writes.Timeout)
	setInt(&cfg.ChunkSize, s.Batch.ChunkSize)
	setDur(&cfg.RateLimitWindow, s.Batch.RateWindow)
	setInt(&cfg.RateLimitMax, s.Batch.RateMax)
	setDur(&cfg.RateLimitDelay, deref(s.Batch.RateDelay))
	setInt(&cfg.CacheSize, s.Cache.Size)
	setDur(&cfg.CacheTTL, s.Cache.TTL)
	return cfg, nil
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDur(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
