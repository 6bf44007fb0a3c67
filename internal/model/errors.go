package model

import (
	"errors"
	"fmt"
)

// Structural error kinds. A structural error aborts the run before any
// verification starts.
var (
	ErrMalformedMarker       = errors.New("malformed marker")
	ErrNonMonotonicID        = errors.New("non-monotonic id")
	ErrUnknownRelationType   = errors.New("unknown relation type")
	ErrUnknownSource         = errors.New("unknown source")
	ErrAmbiguousSourcePrefix = errors.New("ambiguous source prefix")
	ErrDuplicateSource       = errors.New("duplicate source")
	ErrReasoningMismatch     = errors.New("reasoning mismatch")
	ErrUnknownDependency     = errors.New("unknown dependency")
	ErrCyclicDependency      = errors.New("cyclic dependency")
	ErrInvalidRegistry       = errors.New("invalid registry")
)

// StructuralError reports a defect in the input document or registry
type StructuralError struct {
	Kind     error  // one of the Err* kinds above
	MarkerID string // offending marker id, if known
	Span     *Span  // offending span in the document, if known
	Detail   string
}

func (e *StructuralError) Error() string {
	msg := e.Kind.Error()
	if e.MarkerID != "" {
		msg += " " + e.MarkerID
	}
	if e.Span != nil {
		msg += " at " + e.Span.String()
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap exposes the kind, so errors.Is(err, ErrUnknownSource) works
func (e *StructuralError) Unwrap() error {
	return e.Kind
}

// NewStructuralError builds a StructuralError with a formatted detail
func NewStructuralError(kind error, markerID string, span *Span, format string, args ...any) *StructuralError {
	return &StructuralError{
		Kind:     kind,
		MarkerID: markerID,
		Span:     span,
		Detail:   fmt.Sprintf(format, args...),
	}
}

// IsStructural reports whether err is (or wraps) a StructuralError
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
