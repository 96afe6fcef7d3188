// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package orchestrate

import (
	"errors"
	"runtime"
	"time"
)

// Config holds the orchestrator's tuning knobs.
type Config struct {
	// MaxAttempts is how many times a stage may fail transiently before the
	// entity is failed. Default: 5
	MaxAttempts int

	// RetryBaseDelay is the delay before the first retry; each subsequent
	// retry doubles it. Default: 500ms
	RetryBaseDelay time.Duration

	// MaxRetryDelay caps the exponential backoff. Default: 30s
	MaxRetryDelay time.Duration

	// GateRetryDelay is how long a gated query waits before re-evaluating
	// the gating check. Gate waits never consume attempts. Default: 2s
	GateRetryDelay time.Duration

	// MaxGateWait bounds how long a query may stay gated, measured from the
	// query's IndexedAt timestamp. Default: 10m
	MaxGateWait time.Duration

	// RequeueDelay is the delay after a lost compare-and-set race before the
	// envelope is redelivered. Default: 100ms
	RequeueDelay time.Duration

	// CallTimeout bounds each collaborator call. Default: 30s
	CallTimeout time.Duration

	// RetrievalLimit is how many context pages a query retrieves. Default: 5
	RetrievalLimit int

	// PoolSize is the worker pool size for concurrent envelope processing.
	// Default: runtime.NumCPU() / 2, with a minimum of 1.
	PoolSize int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithMaxAttempts sets the transient failure budget per stage.
func WithMaxAttempts(n int) ConfigOption {
	return func(c *Config) {
		c.MaxAttempts = n
	}
}

// WithRetryBaseDelay sets the base delay for exponential backoff.
func WithRetryBaseDelay(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.RetryBaseDelay = d
	}
}

// WithMaxRetryDelay caps the exponential backoff.
func WithMaxRetryDelay(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.MaxRetryDelay = d
	}
}

// WithGateRetryDelay sets the delay between gating re-evaluations.
func WithGateRetryDelay(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.GateRetryDelay = d
	}
}

// WithMaxGateWait bounds how long a query may stay gated.
func WithMaxGateWait(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.MaxGateWait = d
	}
}

// WithRequeueDelay sets the redelivery delay after a lost write race.
func WithRequeueDelay(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequeueDelay = d
	}
}

// WithCallTimeout bounds each collaborator call.
func WithCallTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.CallTimeout = d
	}
}

// WithRetrievalLimit sets how many context pages a query retrieves.
func WithRetrievalLimit(n int) ConfigOption {
	return func(c *Config) {
		c.RetrievalLimit = n
	}
}

// WithPoolSize sets the worker pool size.
func WithPoolSize(n int) ConfigOption {
	return func(c *Config) {
		c.PoolSize = n
	}
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	return &Config{
		MaxAttempts:    5,
		RetryBaseDelay: 500 * time.Millisecond,
		MaxRetryDelay:  30 * time.Second,
		GateRetryDelay: 2 * time.Second,
		MaxGateWait:    10 * time.Minute,
		RequeueDelay:   100 * time.Millisecond,
		CallTimeout:    30 * time.Second,
		RetrievalLimit: 5,
		PoolSize:       poolSize,
	}
}

// NewConfig creates a Config with the default values and applies the
// provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return errors.New("orchestrate config: MaxAttempts must be at least 1")
	}
	if c.RetryBaseDelay <= 0 {
		return errors.New("orchestrate config: RetryBaseDelay must be positive")
	}
	if c.MaxRetryDelay < c.RetryBaseDelay {
		return errors.New("orchestrate config: MaxRetryDelay must be at least RetryBaseDelay")
	}
	if c.GateRetryDelay <= 0 {
		return errors.New("orchestrate config: GateRetryDelay must be positive")
	}
	if c.MaxGateWait <= 0 {
		return errors.New("orchestrate config: MaxGateWait must be positive")
	}
	if c.RequeueDelay < 0 {
		return errors.New("orchestrate config: RequeueDelay must not be negative")
	}
	if c.CallTimeout <= 0 {
		return errors.New("orchestrate config: CallTimeout must be positive")
	}
	if c.RetrievalLimit < 1 {
		return errors.New("orchestrate config: RetrievalLimit must be at least 1")
	}
	if c.PoolSize < 1 {
		return errors.New("orchestrate config: PoolSize must be at least 1")
	}
	return nil
}
