package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jal-drishti/streamd/internal/logger"
)

// Service provides configuration access with file-watch based hot reload
type Service struct {
	config     *Config
	configPath string
	logger     *logger.Logger
	mu         sync.RWMutex
	watchers   []Watcher
	fsWatcher  *fsnotify.Watcher
}

// Watcher is called after a successful configuration reload
type Watcher func(ctx context.Context, old, updated *Config)

// NewService creates a new configuration service around an already loaded config
func NewService(cfg *Config, configPath string, log *logger.Logger) *Service {
	return &Service{
		config:     cfg,
		configPath: configPath,
		logger:     log,
	}
}

// Get returns the current configuration (thread-safe)
func (s *Service) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// OnChange registers a watcher notified after each successful reload
func (s *Service) OnChange(w Watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, w)
}

// Reload re-reads the configuration file and notifies watchers
func (s *Service) Reload(ctx context.Context) error {
	updated, err := Load(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}

	s.mu.Lock()
	old := s.config
	s.config = updated
	watchers := make([]Watcher, len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	for _, w := range watchers {
		w(ctx, old, updated)
	}

	s.logger.Info("Configuration reloaded", "path", s.configPath)
	return nil
}

// Update applies an in-process mutation to a copy of the current
// configuration, validates it, swaps it in and notifies watchers. The
// file on disk is not touched.
func (s *Service) Update(ctx context.Context, mutate func(*Config)) error {
	s.mu.Lock()
	old := s.config
	updated := *old
	mutate(&updated)
	updated.setDefaults()
	if err := updated.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.config = &updated
	watchers := make([]Watcher, len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	for _, w := range watchers {
		w(ctx, old, &updated)
	}
	return nil
}

// Start begins watching the configuration file for changes
func (s *Service) Start(ctx context.Context) error {
	if s.configPath == "" {
		s.logger.Debug("No configuration file to watch")
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	s.fsWatcher = fsw

	// Watch the directory: editors replace the file, which breaks a direct watch
	dir := filepath.Dir(s.configPath)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go s.watchLoop(ctx)

	s.logger.Info("Watching configuration file", "path", s.configPath)
	return nil
}

// Stop stops the configuration watcher
func (s *Service) Stop(ctx context.Context) error {
	if s.fsWatcher != nil {
		return s.fsWatcher.Close()
	}
	return nil
}

// Name returns the service name
func (s *Service) Name() string {
	return "config-watcher"
}

func (s *Service) watchLoop(ctx context.Context) {
	target := filepath.Clean(s.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(ctx); err != nil {
				s.logger.Warn("Configuration reload failed, keeping previous", "error", err)
			}
		case err, ok := <-s.fsWatcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("Config watcher error", "error", err)
		}
	}
}
