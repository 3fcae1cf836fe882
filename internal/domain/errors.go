package domain

import "fmt"

// AdapterError marks a malformed input payload (bad JSON, malformed HL7
// delimiters, missing MSH). It is a payload-level failure: the transport
// collaborator surfaces it as 4xx and no partial classification is
// performed for that payload.
type AdapterError struct {
	Format string // "fhir", "hl7v2", "native"
	Reason string
	Cause  error
}

func (e *AdapterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s adapter: %s: %v", e.Format, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s adapter: %s", e.Format, e.Reason)
}

func (e *AdapterError) Unwrap() error { return e.Cause }

func NewAdapterError(format, reason string, cause error) *AdapterError {
	return &AdapterError{Format: format, Reason: reason, Cause: cause}
}

// UnsupportedFormatError marks a payload auto-detect failure (spec §6.1).
type UnsupportedFormatError struct {
	Detail string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format: %s", e.Detail)
}

// SchemaViolation is one structural defect found while loading a catalog
// file. Violations are collected, never short-circuited on the first one.
type SchemaViolation struct {
	Path   string
	Reason string
}

func (v SchemaViolation) Error() string { return fmt.Sprintf("%s: %s", v.Path, v.Reason) }

// SemanticError is one semantic defect found while loading a catalog
// (e.g. a cyclic organism group, an expert rule referencing an empty class).
type SemanticError struct {
	Kind   string
	Detail string
}

func (e SemanticError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Detail) }

// LoadError aggregates every violation found during one reload attempt.
// A reload that produces a LoadError leaves the previously published
// catalog untouched.
type LoadError struct {
	FileMissing      string
	ParseErrors      []error
	SchemaViolations []SchemaViolation
	SemanticErrors   []SemanticError
}

func (e *LoadError) Error() string {
	if e.FileMissing != "" {
		return fmt.Sprintf("catalog load: file missing: %s", e.FileMissing)
	}
	total := len(e.ParseErrors) + len(e.SchemaViolations) + len(e.SemanticErrors)
	return fmt.Sprintf("catalog load: %d violation(s)", total)
}

// HasViolations reports whether any failure was recorded.
func (e *LoadError) HasViolations() bool {
	return e.FileMissing != "" || len(e.ParseErrors) > 0 || len(e.SchemaViolations) > 0 || len(e.SemanticErrors) > 0
}

// RuleEvaluationError marks an internal consistency failure during rule
// evaluation (e.g. a rule referencing a class that no longer resolves).
// It is surfaced as 5xx by the transport; the offending input is replaced
// by a REQUIRES_REVIEW result citing InternalID.
type RuleEvaluationError struct {
	InternalID string
	Detail     string
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule evaluation error %s: %s", e.InternalID, e.Detail)
}

// OracleUnavailableError marks a failed or timed-out terminology oracle
// call. It is never fatal: the caller degrades to offline normalization.
type OracleUnavailableError struct {
	Cause error
}

func (e *OracleUnavailableError) Error() string {
	return fmt.Sprintf("terminology oracle unavailable: %v", e.Cause)
}

func (e *OracleUnavailableError) Unwrap() error { return e.Cause }
