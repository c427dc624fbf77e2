package workflow

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/voxelhq/scenepilot/internal/logging"
)

// Registry keys definitions by unique name: the built-ins plus any
// user-authored YAML files from a directory. User definitions load once,
// lazily and idempotently; a user definition shadows a built-in of the
// same name.
type Registry struct {
	userDir  string
	log      *slog.Logger
	loadOnce sync.Once

	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry builds a registry preloaded with built-ins. userDir may be
// empty when no user-authored templates exist.
func NewRegistry(userDir string, log *slog.Logger) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	r := &Registry{userDir: userDir, log: log, defs: map[string]*Definition{}}
	for _, def := range builtinDefinitions() {
		r.defs[def.Name] = def
	}
	return r
}

// Get returns a definition by name, or nil.
func (r *Registry) Get(name string) *Definition {
	r.ensureUserLoaded()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defs[name]
}

// Names lists every loaded workflow, sorted.
func (r *Registry) Names() []string {
	r.ensureUserLoaded()
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every loaded definition, ordered by name.
func (r *Registry) All() []*Definition {
	var out []*Definition
	for _, name := range r.Names() {
		out = append(out, r.Get(name))
	}
	return out
}

// FindByKeywords returns the first workflow (by name order) one of whose
// trigger keywords appears, case-insensitively, in text. Empty string
// means no match.
func (r *Registry) FindByKeywords(text string) string {
	lowered := strings.ToLower(text)
	for _, def := range r.All() {
		for _, kw := range def.TriggerKeywords {
			if kw != "" && strings.Contains(lowered, strings.ToLower(kw)) {
				return def.Name
			}
		}
	}
	return ""
}

// FindByPattern returns the workflow whose trigger pattern matches the
// detected pattern type, or empty.
func (r *Registry) FindByPattern(patternType string) string {
	for _, def := range r.All() {
		if def.TriggerPattern != "" && def.TriggerPattern == patternType {
			return def.Name
		}
	}
	return ""
}

// Reload re-reads one user-authored file and replaces the registry entry
// wholesale.
func (r *Registry) Reload(path string) error {
	def, err := loadFile(path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.defs[def.Name] = def
	r.mu.Unlock()
	return nil
}

func (r *Registry) ensureUserLoaded() {
	r.loadOnce.Do(func() {
		if r.userDir == "" {
			return
		}
		entries, err := os.ReadDir(r.userDir)
		if err != nil {
			r.log.Warn("user workflow directory unreadable", "dir", r.userDir, "error", err)
			return
		}
		loaded := 0
		for _, entry := range entries {
			ext := filepath.Ext(entry.Name())
			if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
				continue
			}
			path := filepath.Join(r.userDir, entry.Name())
			def, err := loadFile(path)
			if err != nil {
				// Malformed files are skipped, not fatal to the rest.
				r.log.Error("skipping invalid workflow file", "file", path, "error", err)
				continue
			}
			r.mu.Lock()
			r.defs[def.Name] = def
			r.mu.Unlock()
			loaded++
		}
		r.log.Info("user workflows loaded", "dir", r.userDir, "count", loaded)
	})
}

func loadFile(path string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}
