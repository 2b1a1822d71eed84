package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a package, version or label is not found.
	ErrNotFound = errors.New("not found")

	// ErrNoDevSource is returned when a local-tree entry is selected but the
	// development source handle is empty or not a directory.
	ErrNoDevSource = errors.New("development source tree unavailable")

	// ErrInvalidDigest is returned for digests not in "<algo>-<hex>" form.
	ErrInvalidDigest = errors.New("invalid digest")
)

// NotFoundError wraps ErrNotFound with additional context.
type NotFoundError struct {
	Package string
	Version string
	Label   string
}

func (e *NotFoundError) Error() string {
	switch {
	case e.Label != "":
		return fmt.Sprintf("%s: no entry labelled %s", e.Package, e.Label)
	case e.Version != "":
		return fmt.Sprintf("package %s version %s not found", e.Package, e.Version)
	default:
		return fmt.Sprintf("package %s not found", e.Package)
	}
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// VerificationError is returned when fetched content does not match its pin.
type VerificationError struct {
	Package  string
	Version  string
	Expected string
	Actual   string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s %s: digest mismatch: expected %s, got %s", e.Package, e.Version, e.Expected, e.Actual)
}

// ValidationError reports a table that breaks one of its invariants.
type ValidationError struct {
	Label  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("entry %q: %s", e.Label, e.Reason)
}
