package compile

import (
	"github.com/hugr-lab/vizql/value"
)

// TZConfig carries the local and default-input timezone names (§3 Task:
// tz-config), e.g. "America/New_York", "UTC", or "local".
type TZConfig struct {
	Local        string
	DefaultInput string
}

// ScaleSnapshot is the compile-time view of a scale binding: type tag,
// domain/range arrays, and free-form options, per §4.2's `scale_scope`.
type ScaleSnapshot struct {
	Type    string
	Domain  []value.Scalar
	Range   []value.Scalar
	Options map[string]value.Scalar
}

// Config is the compile-time environment threaded through every rule in
// §4.2: signal-name -> scalar, dataset-name -> materialized table, and
// scale-name -> snapshot, plus the active timezone configuration.
type Config struct {
	SignalScope map[string]value.Scalar
	DataScope   map[string]*value.Table
	ScaleScope  map[string]ScaleSnapshot
	TZ          TZConfig

	// Warnings accumulates non-fatal compiler warnings (e.g. the dynamic
	// datum[expr] fallback, §9), appended to during Compile.
	Warnings []Warning
}

// Warning is a non-fatal note recorded during compilation.
type Warning struct {
	Message    string
	Start, End int
}

func (c *Config) warn(msg string, start, end int) {
	c.Warnings = append(c.Warnings, Warning{Message: msg, Start: start, End: end})
}
