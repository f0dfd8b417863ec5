// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cortex assembles the decision engine from configuration: the
// strategy registry with its document loader, the feedback tracker with
// its optional archive, the audit exporter, and the engine itself.
// Callers embed a Service and drive it through Decide and RecordOutcome.
package cortex

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/cortex/internal/catalog"
	"github.com/traylinx/cortex/internal/config"
	"github.com/traylinx/cortex/internal/feedback"
	"github.com/traylinx/cortex/internal/logging"
	"github.com/traylinx/cortex/internal/routing"
	"github.com/traylinx/cortex/internal/strategy"
)

// Service bundles the wired components of a running decision engine.
type Service struct {
	Engine   *routing.Engine
	Registry *strategy.Registry
	Loader   *strategy.Loader
	Tracker  *feedback.Tracker
	Adjuster *feedback.Adjuster
	Exporter *routing.Exporter

	store *feedback.Store
}

// New builds a Service from configuration. The task and model catalogs
// are external collaborators supplied by the caller; telemetry may be
// nil.
func New(ctx context.Context, cfg *config.Config,
	tasks catalog.TaskCatalog, models catalog.ModelCatalog, telemetry catalog.PerformanceTelemetry) (*Service, error) {

	if cfg == nil {
		return nil, fmt.Errorf("cortex: config cannot be nil")
	}
	if tasks == nil || models == nil {
		return nil, fmt.Errorf("cortex: task and model catalogs are required")
	}

	logging.SetupBaseLogger()
	if cfg.Debug {
		logging.SetLogLevel("debug")
	}
	if err := logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir); err != nil {
		return nil, err
	}

	registry := strategy.NewRegistry()
	loader := strategy.NewLoader(cfg.Strategies.Dir, registry)
	if err := loader.Load(); err != nil {
		return nil, fmt.Errorf("cortex: load strategy documents: %w", err)
	}
	if cfg.Strategies.Watch {
		if err := loader.Watch(); err != nil {
			log.Warnf("Strategy hot reload unavailable: %v", err)
		}
	}

	tracker := feedback.NewTracker(feedback.TrackerOptions{})

	var store *feedback.Store
	if cfg.Feedback.StoreEnabled {
		s, err := feedback.NewStore(cfg.Feedback.StorePath, cfg.Feedback.RetentionDays)
		if err != nil {
			return nil, fmt.Errorf("cortex: create feedback archive: %w", err)
		}
		if err := s.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("cortex: initialize feedback archive: %w", err)
		}
		tracker.SetStore(s)
		store = s
	}

	adjusterOpts := feedback.DefaultAdjusterOptions()
	if cfg.Feedback.WindowHours > 0 {
		adjusterOpts.Window = time.Duration(cfg.Feedback.WindowHours) * time.Hour
	}
	if cfg.Feedback.MinSamples > 0 {
		adjusterOpts.MinSamples = cfg.Feedback.MinSamples
	}
	adjuster := feedback.NewAdjuster(tracker, adjusterOpts)

	exporter, err := routing.NewExporter(routing.ExporterConfig{
		Enabled:    cfg.AuditExport.Enabled,
		LogPath:    cfg.AuditExport.LogPath,
		MaxSizeMB:  cfg.AuditExport.MaxSizeMB,
		MaxBackups: cfg.AuditExport.MaxBackups,
		MaxAgeDays: cfg.AuditExport.MaxAgeDays,
		Compress:   cfg.AuditExport.Compress,
	})
	if err != nil {
		return nil, err
	}

	engine := routing.NewEngine(tasks, models, telemetry, registry, tracker, routing.EngineOptions{
		ConfidenceThreshold: cfg.Engine.ConfidenceThreshold,
		FallbackDepth:       cfg.Engine.FallbackDepth,
		MaxParallelEval:     cfg.Engine.MaxParallelEval,
		AuditSize:           cfg.Engine.AuditSize,
		RecentWindow:        cfg.Engine.RecentWindow,
		ProfileFreshness:    time.Duration(cfg.Engine.ProfileFreshnessHours) * time.Hour,
		TokenEstimator:      cfg.Engine.TokenEstimator,
	})

	return &Service{
		Engine:   engine,
		Registry: registry,
		Loader:   loader,
		Tracker:  tracker,
		Adjuster: adjuster,
		Exporter: exporter,
		store:    store,
	}, nil
}

// Decide routes a request through the engine and exports the decision's
// audit record when export is enabled.
func (s *Service) Decide(ctx context.Context, req *routing.RoutingRequest, opts *routing.DecideOptions) (*routing.Decision, error) {
	d, err := s.Engine.Decide(ctx, req, opts)
	if err != nil {
		return nil, err
	}
	if s.Exporter != nil {
		if entry := s.Engine.Audit().Get(d.DecisionID); entry != nil {
			s.Exporter.Export(entry)
		}
	}
	return d, nil
}

// RecordOutcome reports an observed execution result for a past decision.
func (s *Service) RecordOutcome(decisionID string, actual feedback.ActualMetrics) error {
	return s.Engine.RecordOutcome(decisionID, actual)
}

// SuggestAdjustment derives a bounded weight adjustment for a strategy
// from recent feedback.
func (s *Service) SuggestAdjustment(strategyName string, window time.Duration) (*feedback.Suggestion, error) {
	strat, err := s.Registry.GetStrategy(strategyName)
	if err != nil {
		return nil, err
	}
	return s.Adjuster.SuggestAdjustment(strat, window)
}

// ApplyAdjustment commits a suggestion and persists the new strategy
// version to its document when a loader directory is configured.
func (s *Service) ApplyAdjustment(suggestion *feedback.Suggestion) (*strategy.Strategy, error) {
	updated, err := s.Adjuster.ApplyAdjustment(s.Registry, suggestion)
	if err != nil {
		return nil, err
	}
	if s.Loader != nil {
		if err := s.Loader.Save(updated); err != nil {
			log.Warnf("Failed to persist adjusted strategy '%s': %v", updated.Name, err)
		}
	}
	return updated, nil
}

// Close releases the service's resources.
func (s *Service) Close(ctx context.Context) error {
	if s.Loader != nil {
		s.Loader.Close()
	}
	if s.Exporter != nil {
		if err := s.Exporter.Close(); err != nil {
			log.Warnf("Failed to close audit exporter: %v", err)
		}
	}
	if s.store != nil {
		return s.store.Shutdown(ctx)
	}
	return nil
}
