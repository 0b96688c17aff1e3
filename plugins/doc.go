// Package plugins resolves the stats writers a training run uses.
//
// Writers come from entry points registered under a namespace, either at
// link time (an init that calls MustRegister, the way plugins/builtin
// registers the default writer set) or at deployment time through manifest
// files naming factories published with RegisterFactory. ResolveStatsWriters
// walks the namespace in registration order and isolates every entry: a
// plugin that fails to load, returns an error, or panics loses only its own
// writers and never aborts the run.
package plugins
