// Package config loads ratelimitd's server configuration from flags,
// environment variables (prefixed RATELIMITD_), and defaults, failing fast
// on an invalid combination — the pattern NasServer's config package uses
// for its own environment-driven, fail-fast startup.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// StorePolicy names one of the three eviction policies, or the arena
// experiment.
type StorePolicy string

const (
	PolicyPeriodic      StorePolicy = "periodic"
	PolicyProbabilistic StorePolicy = "probabilistic"
	PolicyAdaptive      StorePolicy = "adaptive"
	PolicyArena         StorePolicy = "arena"
)

// Config is the full set of knobs the CLI surface (spec §6) exposes: store
// policy, capacity hint, cleanup parameters, per-transport bind addresses,
// and log level. No other configuration is observable to the protocol.
type Config struct {
	StorePolicy     StorePolicy
	CapacityHint    int
	CleanupInterval time.Duration
	CleanupProb     float64
	AdaptiveMin     time.Duration
	AdaptiveMax     time.Duration
	AdaptiveMaxOps  int
	ArenaCapacity   int

	InboxSize int

	NativeAddr  string
	HTTPAddr    string
	RPCAddr     string
	MsgpackAddr string

	LogLevel string
}

// Default returns the configuration's zero-knob baseline before flags/env
// are layered on top.
func Default() Config {
	return Config{
		StorePolicy:     PolicyPeriodic,
		CapacityHint:    1024,
		CleanupInterval: 60 * time.Second,
		CleanupProb:     1.0 / 256.0,
		AdaptiveMin:     1 * time.Second,
		AdaptiveMax:     5 * time.Minute,
		AdaptiveMaxOps:  10_000,
		ArenaCapacity:   100_000,
		InboxSize:       1024,
		NativeAddr:      ":7890",
		HTTPAddr:        ":7891",
		RPCAddr:         ":7892",
		MsgpackAddr:     ":7893",
		LogLevel:        "info",
	}
}

// Load layers viper-sourced flags and RATELIMITD_-prefixed environment
// variables over Default(), then validates the result.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()

	if v.IsSet("store-policy") {
		cfg.StorePolicy = StorePolicy(v.GetString("store-policy"))
	}
	if v.IsSet("capacity-hint") {
		cfg.CapacityHint = v.GetInt("capacity-hint")
	}
	if v.IsSet("cleanup-interval") {
		cfg.CleanupInterval = v.GetDuration("cleanup-interval")
	}
	if v.IsSet("cleanup-probability") {
		cfg.CleanupProb = v.GetFloat64("cleanup-probability")
	}
	if v.IsSet("adaptive-min-interval") {
		cfg.AdaptiveMin = v.GetDuration("adaptive-min-interval")
	}
	if v.IsSet("adaptive-max-interval") {
		cfg.AdaptiveMax = v.GetDuration("adaptive-max-interval")
	}
	if v.IsSet("adaptive-max-operations") {
		cfg.AdaptiveMaxOps = v.GetInt("adaptive-max-operations")
	}
	if v.IsSet("arena-capacity") {
		cfg.ArenaCapacity = v.GetInt("arena-capacity")
	}
	if v.IsSet("inbox-size") {
		cfg.InboxSize = v.GetInt("inbox-size")
	}
	if v.IsSet("native-addr") {
		cfg.NativeAddr = v.GetString("native-addr")
	}
	if v.IsSet("http-addr") {
		cfg.HTTPAddr = v.GetString("http-addr")
	}
	if v.IsSet("rpc-addr") {
		cfg.RPCAddr = v.GetString("rpc-addr")
	}
	if v.IsSet("msgpack-addr") {
		cfg.MsgpackAddr = v.GetString("msgpack-addr")
	}
	if v.IsSet("log-level") {
		cfg.LogLevel = v.GetString("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects a configuration the server cannot start with.
func (c Config) Validate() error {
	switch c.StorePolicy {
	case PolicyPeriodic, PolicyProbabilistic, PolicyAdaptive, PolicyArena:
	default:
		return fmt.Errorf("unknown store policy %q", c.StorePolicy)
	}
	if c.CapacityHint < 0 {
		return fmt.Errorf("capacity hint must not be negative")
	}
	if c.InboxSize <= 0 {
		return fmt.Errorf("inbox size must be positive")
	}
	if c.NativeAddr == "" {
		return fmt.Errorf("native bind address cannot be empty")
	}
	return nil
}
