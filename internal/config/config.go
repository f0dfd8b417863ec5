// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the cortex
// decision engine. It handles loading and parsing YAML configuration
// files and provides structured access to engine, strategy, feedback,
// and logging settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Debug enables or disables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile controls whether logs go to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir is the directory for rotating log files.
	LogDir string `yaml:"log-dir" json:"log-dir"`

	// Engine holds decision engine tuning.
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Strategies holds strategy document storage settings.
	Strategies StrategiesConfig `yaml:"strategies" json:"strategies"`

	// Feedback holds feedback tracking and adjustment settings.
	Feedback FeedbackConfig `yaml:"feedback" json:"feedback"`

	// AuditExport holds decision audit export settings.
	AuditExport AuditExportConfig `yaml:"audit-export" json:"audit-export"`
}

// EngineConfig tunes the decision engine.
type EngineConfig struct {
	// ConfidenceThreshold gates winner selection. Candidates below it
	// only win through the degraded fallback path.
	ConfidenceThreshold float64 `yaml:"confidence-threshold" json:"confidence-threshold"`

	// FallbackDepth is how many runners-up go into the fallback chain.
	FallbackDepth int `yaml:"fallback-depth" json:"fallback-depth"`

	// MaxParallelEval bounds the per-request evaluation fan-out.
	MaxParallelEval int `yaml:"max-parallel-eval" json:"max-parallel-eval"`

	// AuditSize bounds the decision audit ring buffer.
	AuditSize int `yaml:"audit-size" json:"audit-size"`

	// RecentWindow is the selection window feeding the load-balancing
	// penalty.
	RecentWindow int `yaml:"recent-window" json:"recent-window"`

	// ProfileFreshnessHours bounds how old a performance profile may be
	// before static baselines are used.
	ProfileFreshnessHours int `yaml:"profile-freshness-hours" json:"profile-freshness-hours"`

	// TokenEstimator selects the token estimation method ("tiktoken" or
	// "simple").
	TokenEstimator string `yaml:"token-estimator" json:"token-estimator"`
}

// StrategiesConfig controls strategy document persistence.
type StrategiesConfig struct {
	// Dir is where strategy and policy YAML documents live. Empty uses
	// ~/.cortex/strategies.
	Dir string `yaml:"dir" json:"dir"`

	// Watch enables hot reload of strategy documents on file change.
	Watch bool `yaml:"watch" json:"watch"`
}

// FeedbackConfig controls outcome tracking and weight adjustment.
type FeedbackConfig struct {
	// StoreEnabled toggles the SQLite feedback archive.
	StoreEnabled bool `yaml:"store-enabled" json:"store-enabled"`

	// StorePath is the SQLite database file path.
	StorePath string `yaml:"store-path" json:"store-path"`

	// RetentionDays bounds how long archived feedback is kept.
	RetentionDays int `yaml:"retention-days" json:"retention-days"`

	// WindowHours is the adjustment lookback window.
	WindowHours int `yaml:"window-hours" json:"window-hours"`

	// MinSamples is the minimum outcome count before an adjustment is
	// suggested.
	MinSamples int `yaml:"min-samples" json:"min-samples"`
}

// AuditExportConfig controls JSONL export of decision audits.
type AuditExportConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	LogPath    string `yaml:"log-path" json:"log-path"`
	MaxSizeMB  int    `yaml:"max-size-mb" json:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups" json:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days" json:"max-age-days"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// LoadConfig reads YAML from configFile, applies defaults for absent
// keys, and overlays environment variables.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads YAML from configFile.
// If optional is true and the file is missing or empty, it returns a
// default Config instead of an error.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	// A .env beside the working directory overlays process env before
	// overrides are read. Missing file is fine.
	_ = godotenv.Load()

	cfg := defaultConfig()

	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && (os.IsNotExist(err) || errors.Is(err, syscall.EISDIR)) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if optional && len(data) == 0 {
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfig sets defaults before unmarshal so that absent keys keep
// them.
func defaultConfig() *Config {
	return &Config{
		LogDir: "logs",
		Engine: EngineConfig{
			ConfidenceThreshold:   0.7,
			FallbackDepth:         3,
			MaxParallelEval:       8,
			AuditSize:             1000,
			RecentWindow:          100,
			ProfileFreshnessHours: 24,
			TokenEstimator:        "tiktoken",
		},
		Strategies: StrategiesConfig{Watch: false},
		Feedback: FeedbackConfig{
			StoreEnabled:  false,
			RetentionDays: 90,
			WindowHours:   72,
			MinSamples:    20,
		},
		AuditExport: AuditExportConfig{
			LogPath:    "./logs/decision_audit.log",
			MaxSizeMB:  100,
			MaxBackups: 10,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// applyEnvOverrides lets deployment environments override the most
// operationally relevant knobs without editing the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CORTEX_DEBUG"); v != "" {
		cfg.Debug = v == "1" || v == "true"
	}
	if v := os.Getenv("CORTEX_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("CORTEX_STRATEGIES_DIR"); v != "" {
		cfg.Strategies.Dir = v
	}
	if v := os.Getenv("CORTEX_FEEDBACK_DB"); v != "" {
		cfg.Feedback.StorePath = v
		cfg.Feedback.StoreEnabled = true
	}
	if v := os.Getenv("CORTEX_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			cfg.Engine.ConfidenceThreshold = f
		}
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.ConfidenceThreshold <= 0 || c.Engine.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: confidence-threshold must be in (0, 1], got %v", c.Engine.ConfidenceThreshold)
	}
	if c.Engine.AuditSize <= 0 {
		return fmt.Errorf("config: audit-size must be positive, got %d", c.Engine.AuditSize)
	}
	if c.Feedback.StoreEnabled && c.Feedback.StorePath == "" {
		return fmt.Errorf("config: feedback store enabled but store-path is empty")
	}
	if c.AuditExport.Enabled && c.AuditExport.LogPath == "" {
		return fmt.Errorf("config: audit export enabled but log-path is empty")
	}
	return nil
}
