package plugins

import (
	"errors"

	"go.uber.org/zap"

	"github.com/rlkit/trainflow/settings"
	"github.com/rlkit/trainflow/stats"
)

// StatsWriterKey is the namespace stats-writer entry points register under.
const StatsWriterKey = "trainflow.stats_writer"

// Registration and loading failure modes.
var (
	ErrEmptyEntryPointName = errors.New("plugins: entry point name must not be empty")
	ErrNilFactoryLoader    = errors.New("plugins: entry point loader must not be nil")
	ErrDuplicateEntryPoint = errors.New("plugins: entry point already registered")
	ErrNilFactory          = errors.New("plugins: factory must not be nil")
	ErrDuplicateFactory    = errors.New("plugins: factory already registered")
	ErrFactoryNotLinked    = errors.New("plugins: factory not linked into this binary")
)

// WriterFactory builds a plugin's stats writers for one run.
type WriterFactory func(opts *settings.RunOptions, logger *zap.Logger) ([]stats.StatsWriter, error)

// FactoryLoader resolves an entry point to its factory. Loading and
// invoking are separate failure points: a loader may fail when the factory
// it names is not available in this process.
type FactoryLoader interface {
	Load() (WriterFactory, error)
}

// EntryPoint is one named plugin registration within a namespace.
type EntryPoint struct {
	Name   string
	Loader FactoryLoader
}

// staticLoader wraps an in-process factory; Load never fails.
type staticLoader struct {
	fn WriterFactory
}

var _ FactoryLoader = (*staticLoader)(nil)

func (l *staticLoader) Load() (WriterFactory, error) { return l.fn, nil }

// StaticFactory wraps a factory linked into the binary as a loader.
func StaticFactory(fn WriterFactory) FactoryLoader {
	return &staticLoader{fn: fn}
}
