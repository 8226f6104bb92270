package runtime

import (
	"log/slog"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/errs"
)

// Runtime owns one database connection, one bounded cache, and the
// build-coalescing needed to evaluate task graphs concurrently. Mirrors
// the teacher's NewServer shape: validate the config, fill in defaults,
// then construct — no partially-built Runtime is ever returned.
type Runtime struct {
	config Config
	db     *db
	cache  *Cache
	tz     compile.TZConfig
	logger *slog.Logger
}

// New validates config, applies defaults, opens the database connection,
// and constructs the cache. Returns an error rather than a Runtime if
// anything in that sequence fails.
func New(config Config) (*Runtime, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	config = withDefaults(config)

	database, err := openDB(config.Allocator)
	if err != nil {
		return nil, err
	}

	cache, err := NewCache(config)
	if err != nil {
		database.Close()
		return nil, errs.Wrap(err, "constructing runtime cache")
	}

	return &Runtime{
		config: config,
		db:     database,
		cache:  cache,
		tz:     config.TZ,
		logger: config.Logger,
	}, nil
}

// Close releases the runtime's database connection. The cache holds no
// external resources of its own once its entries are value.Table/Scalar,
// whose Arrow memory is released by the allocator's own bookkeeping.
func (r *Runtime) Close() error {
	return r.db.Close()
}
