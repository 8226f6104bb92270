package runtime

import (
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dialect"
	"github.com/hugr-lab/vizql/errs"
)

// Config configures a Runtime. Mirrors the validate-then-default shape
// used throughout this package's construction.
type Config struct {
	// Dialect renders compiled dataframe plans to SQL and executes them.
	// REQUIRED: MUST NOT be nil.
	Dialect dialect.Dialect

	// MemoryLimitBytes caps total cache residency (§4.9's "bounded-memory
	// caching"). Protected entries are evicted only once probationary
	// entries are exhausted and the cap is still exceeded.
	// OPTIONAL: If 0, uses DefaultMemoryLimitBytes.
	MemoryLimitBytes int64

	// ProtectedCacheSize bounds the number of entries the protected tier
	// holds (pinned graph outputs), independent of MemoryLimitBytes.
	// OPTIONAL: If 0, uses DefaultProtectedCacheSize.
	ProtectedCacheSize int

	// ProbationaryCacheSize bounds the number of entries the probationary
	// tier holds (intermediates).
	// OPTIONAL: If 0, uses DefaultProbationaryCacheSize.
	ProbationaryCacheSize int

	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger

	// TZ carries the local and default-input timezone names threaded into
	// every compiled expression (§4.2's tz-config, §4.5's timeunit rules).
	// OPTIONAL: Each empty field defaults to "UTC".
	TZ compile.TZConfig
}

// Defaults for the tunables Config leaves zero.
const (
	DefaultMemoryLimitBytes      = 256 << 20 // 256 MiB
	DefaultProtectedCacheSize    = 64
	DefaultProbationaryCacheSize = 512
	DefaultTZ                    = "UTC"
)

// validate checks that required Config fields are present. Mirrors the
// teacher's validateConfig: field-by-field required checks, no defaulting
// here (defaulting happens in New once validation passes).
func validateConfig(config Config) error {
	if config.Dialect == nil {
		return errs.New(errs.Specification, "runtime config: dialect is required")
	}
	if config.MemoryLimitBytes < 0 {
		return errs.New(errs.Specification, "runtime config: memory limit must not be negative")
	}
	if config.ProtectedCacheSize < 0 || config.ProbationaryCacheSize < 0 {
		return errs.New(errs.Specification, "runtime config: cache sizes must not be negative")
	}
	return nil
}

func withDefaults(config Config) Config {
	if config.MemoryLimitBytes == 0 {
		config.MemoryLimitBytes = DefaultMemoryLimitBytes
	}
	if config.ProtectedCacheSize == 0 {
		config.ProtectedCacheSize = DefaultProtectedCacheSize
	}
	if config.ProbationaryCacheSize == 0 {
		config.ProbationaryCacheSize = DefaultProbationaryCacheSize
	}
	if config.Allocator == nil {
		config.Allocator = memory.DefaultAllocator
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.TZ.Local == "" {
		config.TZ.Local = DefaultTZ
	}
	if config.TZ.DefaultInput == "" {
		config.TZ.DefaultInput = DefaultTZ
	}
	return config
}
