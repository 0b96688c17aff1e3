package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// The factory table: contrib packages publish loadable factories by name so
// manifests can reference them without the host importing the package at
// every call site.
var (
	factoryMu sync.RWMutex
	factories = make(map[string]WriterFactory)
)

// RegisterFactory publishes fn under name for manifest entries to load.
func RegisterFactory(name string, fn WriterFactory) error {
	if name == "" {
		return errors.New("plugins: factory name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("%w: %q", ErrNilFactory, name)
	}

	factoryMu.Lock()
	defer factoryMu.Unlock()

	if _, ok := factories[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateFactory, name)
	}
	factories[name] = fn
	return nil
}

// MustRegisterFactory is RegisterFactory panicking on error, for init()-time
// use.
func MustRegisterFactory(name string, fn WriterFactory) {
	if err := RegisterFactory(name, fn); err != nil {
		panic(err)
	}
}

func lookupFactory(name string) (WriterFactory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	fn, ok := factories[name]
	return fn, ok
}

// tableLoader resolves its factory name at Load time, so a manifest naming
// a factory that is not linked into the binary fails as one isolated entry
// during resolution, not during registration.
type tableLoader struct {
	factory string
}

var _ FactoryLoader = (*tableLoader)(nil)

func (l *tableLoader) Load() (WriterFactory, error) {
	fn, ok := lookupFactory(l.factory)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFactoryNotLinked, l.factory)
	}
	return fn, nil
}

// Manifest declares plugin entry points for one namespace.
type Manifest struct {
	Namespace   string          `yaml:"namespace" json:"namespace"`
	EntryPoints []ManifestEntry `yaml:"entry_points" json:"entry_points"`
}

// ManifestEntry names one entry point and the published factory backing it.
type ManifestEntry struct {
	Name    string `yaml:"name" json:"name"`
	Factory string `yaml:"factory" json:"factory"`
}

// manifestPatterns match the file names DiscoverManifests picks up.
var manifestPatterns = []string{"*.plugin.yaml", "*.plugin.yml", "*.plugin.json"}

// LoadManifest reads a manifest file, parsed as JSON or YAML by extension.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugins: read manifest: %w", err)
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &m)
	default:
		err = yaml.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("plugins: parse manifest %s: %w", path, err)
	}

	if m.Namespace == "" {
		return nil, fmt.Errorf("plugins: manifest %s: namespace must not be empty", path)
	}
	return &m, nil
}

// ApplyManifest registers every entry the manifest declares, joining
// per-entry registration errors.
func (r *Registry) ApplyManifest(m *Manifest) error {
	if m == nil {
		return errors.New("plugins: manifest must not be nil")
	}

	var errs []error
	for _, entry := range m.EntryPoints {
		if entry.Factory == "" {
			errs = append(errs, fmt.Errorf("entry %q: factory name must not be empty", entry.Name))
			continue
		}
		err := r.Register(m.Namespace, EntryPoint{
			Name:   entry.Name,
			Loader: &tableLoader{factory: entry.Factory},
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DiscoverManifests scans dirs for manifest files, one goroutine per
// directory, and applies every manifest it can parse. Missing directories
// are skipped; unreadable or unparsable files are logged and skipped;
// registration failures are collected and joined.
func (r *Registry) DiscoverManifests(ctx context.Context, dirs []string) error {
	logger := r.log()

	var mu sync.Mutex
	var errs []error

	g, ctx := errgroup.WithContext(ctx)
	for _, dir := range dirs {
		g.Go(func() error {
			entries, err := os.ReadDir(dir)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				logger.Error("read plugin directory", zap.String("dir", dir), zap.Error(err))
				return nil
			}

			for _, entry := range entries {
				if err := ctx.Err(); err != nil {
					return err
				}
				if entry.IsDir() || !isManifestName(entry.Name()) {
					continue
				}

				path := filepath.Join(dir, entry.Name())
				m, err := LoadManifest(path)
				if err != nil {
					logger.Error("load plugin manifest", zap.String("path", path), zap.Error(err))
					continue
				}

				logger.Debug("applying plugin manifest",
					zap.String("path", path),
					zap.String("namespace", m.Namespace),
					zap.Int("entry_points", len(m.EntryPoints)),
				)
				if err := r.ApplyManifest(m); err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("manifest %s: %w", path, err))
					mu.Unlock()
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func isManifestName(name string) bool {
	for _, pattern := range manifestPatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
