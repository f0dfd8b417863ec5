// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ExporterConfig holds configuration for the decision audit exporter.
type ExporterConfig struct {
	// Enabled toggles export.
	Enabled bool

	// LogPath is the file path for the exported JSONL log.
	LogPath string

	// MaxSizeMB is the maximum size in megabytes before rotation.
	// Default: 100 MB.
	MaxSizeMB int

	// MaxBackups is the maximum number of old log files to retain.
	// Default: 10.
	MaxBackups int

	// MaxAgeDays is the maximum number of days to retain old log files.
	// Default: 30 days.
	MaxAgeDays int

	// Compress determines whether rotated log files are compressed.
	// Default: true.
	Compress bool
}

// Exporter writes decision audit records as line-delimited JSON to a
// rotating log file. Each line carries the audit record plus export
// metadata.
type Exporter struct {
	mu      sync.Mutex
	out     io.Writer
	file    *lumberjack.Logger
	enabled bool
	logPath string
	source  string
}

// NewExporter creates an audit exporter. A disabled config yields an
// exporter whose Export calls are no-ops.
func NewExporter(cfg ExporterConfig) (*Exporter, error) {
	e := &Exporter{enabled: cfg.Enabled, source: "cortex"}
	if !cfg.Enabled {
		return e, nil
	}
	if cfg.LogPath == "" {
		return nil, fmt.Errorf("routing: exporter enabled but no log path configured")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return nil, fmt.Errorf("routing: create export log directory: %w", err)
	}

	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 10
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 30
	}

	e.file = &lumberjack.Logger{
		Filename:   cfg.LogPath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	e.out = e.file
	e.logPath = cfg.LogPath
	return e, nil
}

// Export writes one audit record as a JSON line. Failures are logged
// and swallowed; export must never fail a decision.
func (e *Exporter) Export(entry *DecisionAudit) {
	if e == nil || !e.enabled || entry == nil {
		return
	}
	line, err := json.Marshal(entry)
	if err != nil {
		log.WithError(err).Warn("Failed to marshal audit record for export")
		return
	}
	line, err = sjson.SetBytes(line, "export.exported_at", time.Now().UTC().Format(time.RFC3339Nano))
	if err == nil {
		line, err = sjson.SetBytes(line, "export.source", e.source)
	}
	if err != nil {
		log.WithError(err).Warn("Failed to attach export metadata to audit record")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.out.Write(append(line, '\n')); err != nil {
		log.WithFields(log.Fields{
			"path":  e.logPath,
			"error": err,
		}).Warn("Failed to write audit export line")
	}
}

// ExportAll drains the given audit log into the export file, oldest
// first, and returns the number of records written.
func (e *Exporter) ExportAll(audit *AuditLog) int {
	if e == nil || !e.enabled || audit == nil {
		return 0
	}
	entries := audit.History(0, HistoryFilter{})
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	for _, entry := range entries {
		e.Export(entry)
	}
	return len(entries)
}

// Close flushes and closes the underlying log file.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file != nil {
		return e.file.Close()
	}
	return nil
}
