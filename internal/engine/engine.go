package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xSoVx/amr-project/internal/domain"
)

// Engine is the classification core orchestrator (spec §2): it wires the
// grouper, gating validator, expert-rule engine, breakpoint interpreter,
// conflict resolver and decision assembler into the single Classify
// operation. It holds no mutable state of its own beyond its collaborators
// — the catalog snapshot is captured once per Classify call (spec §5).
type Engine struct {
	logger  *logrus.Logger
	catalog domain.CatalogReader
	audit   domain.AuditSink
	clock   func() time.Time
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithAuditSink overrides the default NoopAuditSink.
func WithAuditSink(sink domain.AuditSink) Option {
	return func(e *Engine) { e.audit = sink }
}

// WithClock overrides the default time.Now, for deterministic tests of
// audit record timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// New builds an Engine reading from catalog. A nil logger gets a default
// logrus.Logger; a nil audit sink degrades to domain.NoopAuditSink.
func New(logger *logrus.Logger, catalog domain.CatalogReader, opts ...Option) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	e := &Engine{
		logger:  logger,
		catalog: catalog,
		audit:   domain.NoopAuditSink{},
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.audit == nil {
		e.audit = domain.NoopAuditSink{}
	}
	return e
}

// Classify runs the full pipeline (spec §2 stages 4–9) over inputs that
// have already passed through an adapter. correlationID is propagated
// unchanged into every emitted audit record (spec §6.5). sourcePreference
// is the request-level breakpoint source preference; empty uses the
// catalog default.
//
// Per spec §5, results are emitted in the order of the grouped inputs; if
// ctx is cancelled the engine abandons remaining inputs at the next item
// boundary and returns no partial result.
func (e *Engine) Classify(ctx context.Context, correlationID string, inputs []domain.ClassificationInput, sourcePreference domain.BreakpointSource) ([]domain.ClassificationResult, error) {
	cat := e.catalog.Current()
	grouped := Group(inputs)

	items := make([]pending, 0, len(grouped))
	for _, in := range grouped {
		select {
		case <-ctx.Done():
			e.logger.WithError(ctx.Err()).Debug("classification cancelled, abandoning remaining inputs")
			return nil, ctx.Err()
		default:
		}
		items = append(items, e.classifyOne(cat, in, sourcePreference))
	}

	resolved := ResolveConflicts(cat, items)

	results := make([]domain.ClassificationResult, 0, len(resolved))
	now := e.clock()
	for _, item := range resolved {
		result := Assemble(cat, item)
		results = append(results, result)
		e.audit.Emit(domain.NewAuditRecord(correlationID, result, now))
	}
	return results, nil
}

// classifyOne runs gating, then the expert-rule engine, then the
// breakpoint interpreter for a single grouped input — never raising: every
// failure degrades to a REQUIRES_REVIEW pending result (spec §7).
func (e *Engine) classifyOne(cat *domain.RuleCatalog, in domain.ClassificationInput, sourcePreference domain.BreakpointSource) pending {
	if gate := Gate(in); gate.Fired {
		return pending{Input: in, Decision: domain.DecisionRequiresReview, Reason: gate.Reason}
	}

	if outcome := EvaluateExpertRules(cat, in); outcome.Fired {
		return pending{Input: in, Decision: outcome.Decision, Reason: outcome.Reason, FiredRules: outcome.FiredRules}
	}

	decision, reason := Interpret(cat, in, sourcePreference)
	return pending{Input: in, Decision: decision, Reason: reason}
}
