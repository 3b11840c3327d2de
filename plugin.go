package shatter

import (
	"fmt"
	"log/slog"
)

// Plugin is a named module contributing descriptors or implementations. The
// registry is explicit: plugins register themselves during initialization
// and are loaded by name, with declared dependencies enforced in order.
type Plugin struct {
	Name     string
	Requires []string
	Setup    func(cfg *Config) error
}

// UnloadedPluginError reports a plugin loaded before one of its
// dependencies.
type UnloadedPluginError struct {
	Plugin  string
	Missing string
}

func (e *UnloadedPluginError) Error() string {
	return fmt.Sprintf("shatter: plugin %q requires %q which is not loaded", e.Plugin, e.Missing)
}

// PluginRegistry tracks registered and loaded plugins. Registration and
// loading are initialization-time, single-threaded steps.
type PluginRegistry struct {
	plugins map[string]Plugin
	order   []string
	loaded  map[string]bool
	logger  *slog.Logger
}

// NewPluginRegistry returns an empty plugin registry.
func NewPluginRegistry(logger *slog.Logger) *PluginRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &PluginRegistry{
		plugins: make(map[string]Plugin),
		loaded:  make(map[string]bool),
		logger:  logger,
	}
}

// Register records a plugin. Registering the same name twice is an error.
func (r *PluginRegistry) Register(p Plugin) error {
	if p.Name == "" {
		return fmt.Errorf("shatter: plugin has no name")
	}
	if _, ok := r.plugins[p.Name]; ok {
		return fmt.Errorf("shatter: plugin %q already registered", p.Name)
	}
	r.plugins[p.Name] = p
	r.order = append(r.order, p.Name)
	return nil
}

// Load runs one plugin's setup after checking its dependencies.
func (r *PluginRegistry) Load(name string, cfg *Config) error {
	p, ok := r.plugins[name]
	if !ok {
		return fmt.Errorf("shatter: plugin %q not registered", name)
	}
	if r.loaded[name] {
		return fmt.Errorf("shatter: plugin %q already loaded", name)
	}
	for _, dep := range p.Requires {
		if !r.loaded[dep] {
			return &UnloadedPluginError{Plugin: name, Missing: dep}
		}
	}
	if p.Setup != nil {
		if err := p.Setup(cfg); err != nil {
			return fmt.Errorf("shatter: plugin %q: %w", name, err)
		}
	}
	r.loaded[name] = true
	return nil
}

// LoadAll loads every plugin named by the config's descriptor sections, in
// registration order. Plugins already loaded are skipped.
func (r *PluginRegistry) LoadAll(cfg *Config) error {
	if cfg == nil || len(cfg.Descriptors) == 0 {
		r.logger.Warn("no plugins to load")
		return nil
	}
	for _, name := range r.order {
		if _, wanted := cfg.Descriptors[name]; !wanted || r.loaded[name] {
			continue
		}
		if err := r.Load(name, cfg); err != nil {
			return err
		}
	}
	return nil
}

// Loaded returns the names of loaded plugins in load order.
func (r *PluginRegistry) Loaded() []string {
	var out []string
	for _, name := range r.order {
		if r.loaded[name] {
			out = append(out, name)
		}
	}
	return out
}
