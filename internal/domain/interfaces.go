package domain

import "context"

// TerminologyLookup is the result of a successful oracle validate-code call.
type TerminologyLookup struct {
	CanonicalKey string
	Display      string
	Valid        bool
}

// OracleClient is the external terminology oracle collaborator (spec §6.3).
// Implementations must honor ctx cancellation; the normalizer treats any
// error, including context.DeadlineExceeded, as "unresolved, degrade to
// offline normalization" per §4.2 step 5 and §7 OracleUnavailable.
type OracleClient interface {
	ValidateCode(ctx context.Context, system, code, display string) (TerminologyLookup, error)
}

// AuditSink is the collaborator that owns delivery, buffering, and failure
// handling for audit records (spec §6.4). Emit must not block the response
// path; implementations that need to block internally should do so on an
// internal goroutine/queue, not on the caller's goroutine.
type AuditSink interface {
	Emit(record AuditRecord)
}

// NoopAuditSink discards every record. It is the zero-configuration default
// so the engine is runnable without a real collaborator wired in.
type NoopAuditSink struct{}

func (NoopAuditSink) Emit(AuditRecord) {}

// CatalogReader is the read side of the rule catalog store (spec §4.1),
// consumed by every downstream component instead of a concrete *Store so
// they can be tested against a fixed in-memory catalog.
type CatalogReader interface {
	Current() *RuleCatalog
}
