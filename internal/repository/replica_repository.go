package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mir00r/giftcert-router/internal/domain"
	"github.com/mir00r/giftcert-router/pkg/logger"
	"gopkg.in/yaml.v2"
)

// replicaFile is the part of the YAML configuration the registries read
type replicaFile struct {
	Databases []domain.ReplicaConfig `yaml:"databases"`
}

// ParseReplicas decodes and validates the databases list of a YAML document
func ParseReplicas(data []byte) ([]domain.ReplicaConfig, error) {
	var file replicaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse replica list: %w", err)
	}
	if err := validateReplicas(file.Databases); err != nil {
		return nil, err
	}
	return file.Databases, nil
}

func validateReplicas(replicas []domain.ReplicaConfig) error {
	for i, replica := range replicas {
		if err := replica.Validate(); err != nil {
			return fmt.Errorf("databases[%d]: %w", i, err)
		}
	}
	return nil
}

func copyReplicas(replicas []domain.ReplicaConfig) []domain.ReplicaConfig {
	out := make([]domain.ReplicaConfig, len(replicas))
	copy(out, replicas)
	return out
}

// StaticReplicaRegistry serves a fixed replica list
type StaticReplicaRegistry struct {
	replicas []domain.ReplicaConfig
}

// NewStaticReplicaRegistry validates replicas and keeps a private copy
func NewStaticReplicaRegistry(replicas []domain.ReplicaConfig) (*StaticReplicaRegistry, error) {
	if err := validateReplicas(replicas); err != nil {
		return nil, err
	}
	return &StaticReplicaRegistry{replicas: copyReplicas(replicas)}, nil
}

// Load returns a copy of the replica list
func (r *StaticReplicaRegistry) Load() ([]domain.ReplicaConfig, error) {
	return copyReplicas(r.replicas), nil
}

// FileReplicaRegistry re-reads its YAML file on every Load
type FileReplicaRegistry struct {
	path string
}

// NewFileReplicaRegistry creates a registry backed by path
func NewFileReplicaRegistry(path string) *FileReplicaRegistry {
	return &FileReplicaRegistry{path: path}
}

// Load reads and parses the databases list
func (r *FileReplicaRegistry) Load() ([]domain.ReplicaConfig, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replica file %s: %w", r.path, err)
	}
	return ParseReplicas(data)
}

// WatchedReplicaRegistry parses its file once and refreshes the list
// whenever the file changes. A refresh that fails keeps the last good list.
type WatchedReplicaRegistry struct {
	path    string
	logger  *logger.Logger
	watcher *fsnotify.Watcher

	mu        sync.RWMutex
	replicas  []domain.ReplicaConfig
	callbacks []func([]domain.ReplicaConfig)

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatchedReplicaRegistry loads path and starts watching it. The initial
// load must succeed.
func NewWatchedReplicaRegistry(path string, log *logger.Logger) (*WatchedReplicaRegistry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	r := &WatchedReplicaRegistry{
		path:   abs,
		logger: log.RegistryLogger().WithField("file", abs),
		done:   make(chan struct{}),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are still seen
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", abs, err)
	}
	r.watcher = watcher

	r.wg.Add(1)
	go r.watch()

	r.logger.Info("Started replica file watcher")
	return r, nil
}

// Load returns a copy of the last successfully parsed list
func (r *WatchedReplicaRegistry) Load() ([]domain.ReplicaConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyReplicas(r.replicas), nil
}

// OnReload registers a callback invoked after every successful reload
func (r *WatchedReplicaRegistry) OnReload(callback func([]domain.ReplicaConfig)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, callback)
}

// Reload re-reads the file. On failure the current list is kept.
func (r *WatchedReplicaRegistry) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to read replica file %s: %w", r.path, err)
	}
	replicas, err := ParseReplicas(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	old := len(r.replicas)
	r.replicas = replicas
	callbacks := make([]func([]domain.ReplicaConfig), len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.Unlock()

	r.logger.WithFields(map[string]interface{}{
		"old_replicas": old,
		"new_replicas": len(replicas),
	}).Info("Replica list loaded")

	for _, callback := range callbacks {
		callback(copyReplicas(replicas))
	}
	return nil
}

// Close stops the watcher
func (r *WatchedReplicaRegistry) Close() error {
	close(r.done)
	err := r.watcher.Close()
	r.wg.Wait()
	r.logger.Info("Stopped replica file watcher")
	return err
}

func (r *WatchedReplicaRegistry) watch() {
	defer r.wg.Done()

	for {
		select {
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := r.Reload(); err != nil {
				r.logger.WithError(err).Error("Failed to reload replica list, keeping previous list")
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.WithError(err).Error("Replica file watcher error")
		}
	}
}
