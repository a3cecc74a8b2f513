// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package maskerr defines the failure classes of a masking run. Errors are
// classified with marks so that errors.Is keeps working after wrapping.
package maskerr

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrLocate marks an occurrence that could not be resolved to a region.
	ErrLocate = errors.New("locate failure")

	// ErrDecision marks a guidance or reasoning failure for one entity.
	ErrDecision = errors.New("decision failure")

	// ErrRedaction marks a document that could not be redacted.
	ErrRedaction = errors.New("redaction failure")

	// ErrPersistence marks a store failure for the masking result.
	ErrPersistence = errors.New("persistence failure")

	// ErrNotFound marks a missing source file.
	ErrNotFound = errors.New("file not found")
)

// Decision wraps err as a DecisionFailure.
func Decision(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrDecision)
}

// Redaction wraps err as a RedactionFailure.
func Redaction(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrRedaction)
}

// Redactionf creates a new RedactionFailure.
func Redactionf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrRedaction)
}

// Persistence wraps err as a PersistenceFailure.
func Persistence(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrPersistence)
}

// NotFound reports a missing source file.
func NotFound(name string) error {
	return errors.WithDetailf(errors.Mark(errors.Newf("%s", name), ErrNotFound), "file %s does not exist", name)
}

// Reason renders err as the user-facing reason string of a failed file.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "file not found"
	default:
		return "masking failed: " + err.Error()
	}
}

// Class names the failure class of err for audit events and metrics.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRedaction):
		return "redaction"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrDecision):
		return "decision"
	case errors.Is(err, ErrLocate):
		return "locate"
	default:
		return "internal"
	}
}
