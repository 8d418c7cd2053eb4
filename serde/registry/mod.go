// Package registry defines the format registry used by the data models to look
// up the engine of the serialization format in use.
//
// The default implementation always returns an engine: an unknown format
// resolves to an engine that fails with a meaningful error, so that a data
// model never needs to check for existence.
package registry

import (
	"go.dedis.ch/concord/serde"
)

// Registry is an interface to register and get format engines for a specific
// format.
type Registry interface {
	// Register associates the engine to the format, replacing any previous
	// engine.
	Register(serde.Format, serde.FormatEngine)

	// Get returns the engine associated with the format.
	Get(serde.Format) serde.FormatEngine
}
