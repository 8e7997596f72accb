package aspects

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/arkivo/arkivo/internal/node"
)

// ConfigRepository is the read-only source of aspect definitions.
type ConfigRepository interface {
	// Get returns the aspect with the given uuid.
	Get(ctx context.Context, uuid string) (Aspect, error)
	// List returns all known aspects.
	List(ctx context.Context) ([]Aspect, error)
}

// DirRepository loads aspect definitions from *.yaml files in a
// directory and reloads them when the directory changes.
type DirRepository struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	aspects map[string]Aspect
}

// NewDirRepository loads every aspect definition under dir.
func NewDirRepository(dir string, logger *slog.Logger) (*DirRepository, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &DirRepository{dir: dir, logger: logger}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Get implements ConfigRepository.
func (r *DirRepository) Get(ctx context.Context, uuid string) (Aspect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.aspects[uuid]
	if !ok {
		return Aspect{}, node.BadRequest("unknown aspect " + uuid)
	}
	return a, nil
}

// List implements ConfigRepository.
func (r *DirRepository) List(ctx context.Context) ([]Aspect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Aspect, 0, len(r.aspects))
	for _, a := range r.aspects {
		out = append(out, a)
	}
	return out, nil
}

// Watch reloads definitions on filesystem changes until ctx is done.
func (r *DirRepository) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isYAML(ev.Name) {
					continue
				}
				if err := r.reload(); err != nil {
					r.logger.Warn("aspect reload failed", "err", err)
				} else {
					r.logger.Info("aspect definitions reloaded", "trigger", ev.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("aspect watcher error", "err", err)
			}
		}
	}()
	return nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func (r *DirRepository) reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading aspect dir: %w", err)
	}
	loaded := map[string]Aspect{}
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		var a Aspect
		if err := yaml.Unmarshal(raw, &a); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		if a.UUID == "" {
			return fmt.Errorf("%s: aspect uuid is required", path)
		}
		loaded[a.UUID] = a
	}
	r.mu.Lock()
	r.aspects = loaded
	r.mu.Unlock()
	return nil
}

// Static is a fixed in-memory ConfigRepository, mainly for hosts that
// assemble aspects programmatically and for tests.
type Static struct {
	byUUID map[string]Aspect
}

// NewStatic builds a Static repository from the given aspects.
func NewStatic(aspects ...Aspect) *Static {
	s := &Static{byUUID: make(map[string]Aspect, len(aspects))}
	for _, a := range aspects {
		s.byUUID[a.UUID] = a
	}
	return s
}

// Get implements ConfigRepository.
func (s *Static) Get(ctx context.Context, uuid string) (Aspect, error) {
	a, ok := s.byUUID[uuid]
	if !ok {
		return Aspect{}, node.BadRequest("unknown aspect " + uuid)
	}
	return a, nil
}

// List implements ConfigRepository.
func (s *Static) List(ctx context.Context) ([]Aspect, error) {
	out := make([]Aspect, 0, len(s.byUUID))
	for _, a := range s.byUUID {
		out = append(out, a)
	}
	return out, nil
}
