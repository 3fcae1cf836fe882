package catalog

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/xSoVx/amr-project/internal/domain"
)

// Store is the process-wide home of the currently published RuleCatalog.
// Reads never block on reloads (spec §4.1, §5): Current returns whatever
// pointer is currently live via an atomic load. Reload acquires reloadMu so
// concurrent reload calls serialize, but never blocks a concurrent Current.
type Store struct {
	logger    *logrus.Logger
	current   atomic.Pointer[domain.RuleCatalog]
	reloadMu  sync.Mutex
	listeners []func(*domain.RuleCatalog)
}

// OnReload registers fn to run after every successful Reload, with the
// newly published catalog. Used to clear the terminology normalizer's cache,
// whose lifetime is catalog-scoped (spec §5): a new catalog may redefine
// organism/antibiotic keys the old cache entries no longer reflect.
func (s *Store) OnReload(fn func(*domain.RuleCatalog)) {
	s.listeners = append(s.listeners, fn)
}

// NewStore loads path once and returns a Store publishing the result, or an
// error if the initial load fails (startup must not proceed on a broken
// catalog).
func NewStore(logger *logrus.Logger, path string) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Store{logger: logger}
	cat, err := load(path)
	if err != nil {
		return nil, err
	}
	s.current.Store(cat)
	logger.WithFields(logrus.Fields{"version": cat.VersionLabel, "path": path}).Info("rule catalog loaded")
	return s, nil
}

// Current returns the currently published snapshot. Always non-nil after a
// successful NewStore.
func (s *Store) Current() *domain.RuleCatalog {
	return s.current.Load()
}

// Reload parses path and, on success, atomically publishes the new
// snapshot; in-flight requests holding the previous pointer are unaffected.
// On failure the live snapshot is untouched and every violation found is
// returned together, never just the first.
func (s *Store) Reload(path string) (string, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	cat, err := load(path)
	if err != nil {
		s.logger.WithError(err).WithField("path", path).Warn("rule catalog reload failed")
		return "", err
	}
	s.current.Store(cat)
	s.logger.WithFields(logrus.Fields{"version": cat.VersionLabel, "path": path}).Info("rule catalog reloaded")
	for _, fn := range s.listeners {
		fn(cat)
	}
	return cat.VersionLabel, nil
}
