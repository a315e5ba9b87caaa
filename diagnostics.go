package tsinfer

import (
	"log"

	"github.com/segmentio/ksuid"
)

// Diagnostics tags log lines with a correlation id, so output from
// concurrently running matcher/builder instances (run by an outer
// driver, per §5) can be told apart.
type Diagnostics struct {
	id     ksuid.KSUID
	prefix string
}

// NewDiagnostics creates a diagnostics sink tagged with a fresh
// correlation id.
func NewDiagnostics(component string) *Diagnostics {
	d := &Diagnostics{id: ksuid.New(), prefix: component}
	return d
}

// ID returns the correlation id tagging this sink's log lines.
func (d *Diagnostics) ID() ksuid.KSUID { return d.id }

// Logf logs a single formatted line tagged with this sink's correlation id.
func (d *Diagnostics) Logf(format string, args ...interface{}) {
	log.Printf("[%s:%s] "+format, append([]interface{}{d.prefix, d.id}, args...)...)
}
