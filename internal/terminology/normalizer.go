package terminology

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xSoVx/amr-project/internal/domain"
)

// defaultOracleTimeout is the per-call timeout described in spec §5: "An
// oracle miss suspends the calling input's normalization until the call
// completes or the per-call timeout elapses (default 2 seconds)".
const defaultOracleTimeout = 2 * time.Second

// Normalizer maps arbitrary organism/antibiotic designators to canonical
// keys (spec §4.2). It is pure given (catalog snapshot + oracle cache): two
// calls with the same inputs and the same cache state return the same key.
type Normalizer struct {
	logger *logrus.Logger

	oracle        domain.OracleClient
	oracleTimeout time.Duration
	responseCache *ResponseCache

	cache *normalizationCache

	organismCodes      map[codedKey]domain.OrganismKey
	antibioticCodes    map[codedKey]domain.AntibioticKey
	organismAliases    map[string]domain.OrganismKey
	antibioticAliases  map[string]domain.AntibioticKey
}

// Options configures a Normalizer. Oracle and ResponseCache are both
// optional; a nil Oracle means "no external terminology oracle configured"
// (spec §4.2 step 4 is simply skipped).
type Options struct {
	Logger        *logrus.Logger
	Oracle        domain.OracleClient
	OracleTimeout time.Duration
	ResponseCache *ResponseCache
	CacheSize     int
}

// NewNormalizer builds a Normalizer seeded with the default offline alias
// and coded-value tables.
func NewNormalizer(opts Options) *Normalizer {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	timeout := opts.OracleTimeout
	if timeout <= 0 {
		timeout = defaultOracleTimeout
	}
	return &Normalizer{
		logger:            logger,
		oracle:            opts.Oracle,
		oracleTimeout:     timeout,
		responseCache:     opts.ResponseCache,
		cache:             newNormalizationCache(opts.CacheSize),
		organismCodes:     defaultOrganismCodes(),
		antibioticCodes:   defaultAntibioticCodes(),
		organismAliases:   defaultOrganismAliases(),
		antibioticAliases: defaultAntibioticAliases(),
	}
}

// ClearCache drops the in-process normalization cache. The catalog store
// calls this on every successful reload per the cache's catalog-scoped
// lifetime (spec §5).
func (n *Normalizer) ClearCache() {
	n.cache.clear()
}

// NormalizeOrganism resolves (system, code, display) to a canonical
// OrganismKey, or domain.UnresolvedOrganism if every step fails.
func (n *Normalizer) NormalizeOrganism(ctx context.Context, system, code, display string) domain.OrganismKey {
	if cached, ok := n.cache.get(system, code, display); ok {
		return domain.OrganismKey(cached.CanonicalKey)
	}

	if isRecognizedSystem(system) && code != "" {
		if key, ok := n.organismCodes[codedKey{system, code}]; ok {
			n.cache.put(system, code, display, domain.TerminologyLookup{CanonicalKey: string(key), Valid: true})
			return key
		}
	}

	normalized := domain.NormalizeDisplay(display)
	if key, ok := n.organismAliases[normalized]; ok {
		n.cache.put(system, code, display, domain.TerminologyLookup{CanonicalKey: string(key), Valid: true})
		return key
	}

	if lookup, ok := n.consultOracle(ctx, system, code, display); ok && lookup.Valid {
		key := domain.OrganismKey(lookup.CanonicalKey)
		n.cache.put(system, code, display, lookup)
		return key
	}

	n.cache.put(system, code, display, domain.TerminologyLookup{Valid: false})
	return domain.UnresolvedOrganism
}

// NormalizeAntibiotic is analogous to NormalizeOrganism (spec §4.2 "Antibiotic
// normalization is analogous").
func (n *Normalizer) NormalizeAntibiotic(ctx context.Context, system, code, display string) domain.AntibioticKey {
	cacheSystem := "abx:" + system
	if cached, ok := n.cache.get(cacheSystem, code, display); ok {
		return domain.AntibioticKey(cached.CanonicalKey)
	}

	if isRecognizedSystem(system) && code != "" {
		if key, ok := n.antibioticCodes[codedKey{system, code}]; ok {
			n.cache.put(cacheSystem, code, display, domain.TerminologyLookup{CanonicalKey: string(key), Valid: true})
			return key
		}
	}

	normalized := domain.NormalizeDisplay(display)
	if key, ok := n.antibioticAliases[normalized]; ok {
		n.cache.put(cacheSystem, code, display, domain.TerminologyLookup{CanonicalKey: string(key), Valid: true})
		return key
	}

	if lookup, ok := n.consultOracle(ctx, system, code, display); ok && lookup.Valid {
		key := domain.AntibioticKey(lookup.CanonicalKey)
		n.cache.put(cacheSystem, code, display, lookup)
		return key
	}

	n.cache.put(cacheSystem, code, display, domain.TerminologyLookup{Valid: false})
	return domain.UnresolvedAntibiotic
}

// consultOracle issues a validate-code call bounded by oracleTimeout. Any
// failure, including a timeout, is logged and treated as "unresolved" —
// never fatal, per spec §7 OracleUnavailable.
func (n *Normalizer) consultOracle(ctx context.Context, system, code, display string) (domain.TerminologyLookup, bool) {
	if n.oracle == nil {
		return domain.TerminologyLookup{}, false
	}
	if n.responseCache != nil {
		if lookup, ok := n.responseCache.Get(ctx, system, code, display); ok {
			return lookup, true
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, n.oracleTimeout)
	defer cancel()

	lookup, err := n.oracle.ValidateCode(callCtx, system, code, display)
	if err != nil {
		n.logger.WithError(err).WithFields(logrus.Fields{"system": system, "code": code, "display": display}).Warn("terminology oracle call failed; degrading to offline normalization")
		return domain.TerminologyLookup{}, false
	}
	if n.responseCache != nil {
		n.responseCache.Set(ctx, system, code, display, lookup)
	}
	return lookup, true
}

// AntibioticClassMembers resolves class membership from the catalog's
// antibiotic-classes map (spec §4.2 "Antibiotic class membership ... is
// looked up in the catalog's antibiotic-classes map").
func AntibioticClassMembers(cat *domain.RuleCatalog, class string) map[domain.AntibioticKey]struct{} {
	return cat.AntibioticClasses[class]
}
