// Package builtin registers the default stats writers as the "default"
// entry point. Blank-import it to make resolution include the builtin set:
//
//	import _ "github.com/rlkit/trainflow/plugins/builtin"
package builtin

import (
	"github.com/rlkit/trainflow/plugins"
	"github.com/rlkit/trainflow/stats"
)

// EntryPointName is the name the builtin writer set registers under.
const EntryPointName = "default"

func init() {
	plugins.MustRegister(plugins.StatsWriterKey, plugins.EntryPoint{
		Name:   EntryPointName,
		Loader: plugins.StaticFactory(stats.DefaultWriters),
	})
}
