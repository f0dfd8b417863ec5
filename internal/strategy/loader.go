// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strategy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"
)

// maxDocumentSize bounds strategy/policy files to guard against YAML bombs.
const maxDocumentSize = 1 * 1024 * 1024

// Document is the on-disk representation of a strategy or policy.
// Exactly one of Strategy or Policy is set, selected by Kind.
type Document struct {
	Kind     string    `yaml:"kind"` // "strategy" or "policy"
	Strategy *Strategy `yaml:"strategy,omitempty"`
	Policy   *Policy   `yaml:"policy,omitempty"`
}

// Loader loads strategy and policy documents from a directory into a
// registry and optionally hot-reloads on file changes.
type Loader struct {
	dir      string
	registry *Registry

	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	stopWatcher chan struct{}
}

// NewLoader creates a loader for the given directory. An empty dir
// defaults to ~/.cortex/strategies.
func NewLoader(dir string, registry *Registry) *Loader {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			wd, _ := os.Getwd()
			dir = filepath.Join(wd, ".cortex", "strategies")
		} else {
			dir = filepath.Join(home, ".cortex", "strategies")
		}
	}
	return &Loader{
		dir:         dir,
		registry:    registry,
		stopWatcher: make(chan struct{}),
	}
}

// Dir returns the directory the loader reads from.
func (l *Loader) Dir() string {
	return l.dir
}

// Load reads every .yaml/.yml document under the directory into the
// registry. Files that fail to parse or validate are skipped with a log
// line; they never abort the load.
func (l *Loader) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.dir); os.IsNotExist(err) {
		if err := os.MkdirAll(l.dir, 0755); err != nil {
			return fmt.Errorf("failed to create strategy directory: %w", err)
		}
	}

	absDir, err := filepath.Abs(l.dir)
	if err != nil {
		return fmt.Errorf("failed to resolve strategy directory: %w", err)
	}

	loaded := 0
	err = filepath.Walk(l.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip symlinks and anything escaping the directory.
		if info.Mode()&os.ModeSymlink != 0 {
			log.Warnf("Skipping symlink in strategy directory: %s", path)
			return nil
		}
		absPath, err := filepath.Abs(path)
		if err != nil || !strings.HasPrefix(absPath, absDir) {
			log.Warnf("Skipping file outside strategy directory: %s", path)
			return nil
		}

		if info.IsDir() || (!strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml")) {
			return nil
		}
		if info.Size() > maxDocumentSize {
			log.Warnf("Skipping oversized strategy file: %s (%d bytes)", path, info.Size())
			return nil
		}

		if l.loadFile(path) {
			loaded++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk strategy directory: %w", err)
	}

	log.Infof("Loaded %d strategy/policy documents from %s", loaded, l.dir)
	return nil
}

func (l *Loader) loadFile(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("Failed to read strategy file %s: %v", path, err)
		return false
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		log.Errorf("Failed to parse strategy file %s: %v", path, err)
		return false
	}

	switch doc.Kind {
	case "strategy":
		if doc.Strategy == nil {
			log.Errorf("Strategy document %s has no strategy body", path)
			return false
		}
		doc.Strategy.FilePath = path
		if err := l.registry.CreateStrategy(doc.Strategy); err != nil {
			// Replaying an existing name on reload is an update.
			if errors.Is(err, ErrStrategyExists) {
				_, uerr := l.registry.UpdateStrategy(doc.Strategy.Name, StrategyUpdate{
					DisplayName:        &doc.Strategy.DisplayName,
					Description:        &doc.Strategy.Description,
					Weights:            &doc.Strategy.Weights,
					UseCases:           doc.Strategy.UseCases,
					PerformanceTargets: doc.Strategy.PerformanceTargets,
				})
				if uerr != nil {
					log.Errorf("Failed to refresh strategy from %s: %v", path, uerr)
					return false
				}
				return true
			}
			log.Errorf("Failed to register strategy from %s: %v", path, err)
			return false
		}
	case "policy":
		if doc.Policy == nil {
			log.Errorf("Policy document %s has no policy body", path)
			return false
		}
		doc.Policy.FilePath = path
		if err := l.registry.CreatePolicy(doc.Policy); err != nil {
			if errors.Is(err, ErrPolicyExists) {
				if uerr := l.registry.UpdatePolicy(doc.Policy); uerr != nil {
					log.Errorf("Failed to refresh policy from %s: %v", path, uerr)
					return false
				}
				return true
			}
			log.Errorf("Failed to register policy from %s: %v", path, err)
			return false
		}
	default:
		log.Errorf("Unknown document kind '%s' in %s", doc.Kind, path)
		return false
	}
	return true
}

// Save writes a strategy document into the loader directory as
// <name>.yaml.
func (l *Loader) Save(s *Strategy) error {
	doc := Document{Kind: "strategy", Strategy: s}
	return l.writeDoc(s.Name, &doc)
}

// SavePolicy writes a policy document into the loader directory.
func (l *Loader) SavePolicy(p *Policy) error {
	doc := Document{Kind: "policy", Policy: p}
	return l.writeDoc(p.Name, &doc)
}

func (l *Loader) writeDoc(name string, doc *Document) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("failed to create strategy directory: %w", err)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s document: %w", doc.Kind, err)
	}

	path := filepath.Join(l.dir, name+".yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Watch starts hot-reloading the directory. Change events trigger a full
// reload after a short debounce.
func (l *Loader) Watch() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create strategy watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", l.dir, err)
	}
	l.watcher = watcher

	go func() {
		var reloadTimer *time.Timer
		for {
			select {
			case <-l.stopWatcher:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				// Debounce bursts of events from editors.
				if reloadTimer != nil {
					reloadTimer.Stop()
				}
				reloadTimer = time.AfterFunc(200*time.Millisecond, func() {
					log.Debugf("Strategy directory changed (%s), reloading", event.Name)
					if err := l.Load(); err != nil {
						log.Errorf("Strategy hot-reload failed: %v", err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("Strategy watcher error: %v", err)
			}
		}
	}()

	log.Infof("Watching strategy directory %s for changes", l.dir)
	return nil
}

// Close stops the watcher.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watcher != nil {
		close(l.stopWatcher)
		_ = l.watcher.Close()
		l.watcher = nil
	}
}
