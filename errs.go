// Package tsinfer infers ancestral haplotypes and reconstructs, for each
// query haplotype, a piecewise-copy path through previously inserted
// haplotypes using a Li-Stephens hidden Markov model solved over an
// incrementally built tree sequence.
//
// The three tightly coupled subsystems live in their own packages:
// ancestorbuilder (§4.1), treeseq (§4.2) and matcher (§4.3). This root
// package carries the cross-cutting pieces every subsystem shares: the
// error taxonomy, dense identifier types, TOML configuration and
// diagnostics.
package tsinfer

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrKind classifies a failure into one of the four kinds recognized by
// the error handling design: resource exhaustion, argument error, state
// error, or numerical degeneracy. Every exported operation of
// ancestorbuilder, treeseq and matcher that can fail, and the config
// Validate methods, return an error whose kind can be recovered with
// Kind. The TOML loaders and the SQLite dump mirror return wrapped errors
// that carry no kind.
type ErrKind int

const (
	// ErrResource is returned when an underlying allocator or heap has
	// run out of space and cannot grow further.
	ErrResource ErrKind = iota + 1
	// ErrArgument is returned for null buffers, out-of-range ids,
	// unsorted input, interval overlap, or invalid time ordering.
	ErrArgument
	// ErrState is returned when an operation is called on a freed or
	// partially initialized instance.
	ErrState
	// ErrNumerical is returned when the HMM has no viable copying
	// parent at some site.
	ErrNumerical
)

func (k ErrKind) String() string {
	switch k {
	case ErrResource:
		return "resource exhaustion"
	case ErrArgument:
		return "argument error"
	case ErrState:
		return "state error"
	case ErrNumerical:
		return "numerical degeneracy"
	default:
		return "unknown error kind"
	}
}

// OpError wraps an underlying error with the §7 failure kind and the
// operation that produced it, so callers can switch on Kind without
// string-matching messages.
type OpError struct {
	Op   string
	Kind ErrKind
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Kind reports the ErrKind carried by err, if err is (or wraps) an
// *OpError. The second return is false when err does not carry a kind.
func Kind(err error) (ErrKind, bool) {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind, true
	}
	return 0, false
}

// newOpError builds an *OpError, wrapping the formatted message with
// github.com/pkg/errors so a stack trace is attached at the point of
// failure.
func newOpError(op string, kind ErrKind, format string, args ...interface{}) error {
	return &OpError{Op: op, Kind: kind, Err: errors.Errorf(format, args...)}
}

// Message format constants, in the teacher's style of naming every
// recurring diagnostic as a package-level Printf format constant instead
// of constructing ad hoc strings at each call site.
const (
	// OutOfRangeSiteError reports a site id outside [0, numSites).
	OutOfRangeSiteError = "site %d out of range [0, %d)"
	// OutOfRangeNodeError reports a node id outside [0, numNodes).
	OutOfRangeNodeError = "node %d out of range [0, %d)"
	// UnsortedEdgesError reports edges supplied to add_path out of
	// ascending left order.
	UnsortedEdgesError = "edges for child %d are not sorted by left: edge %d has left %d <= previous right %d"
	// OverlappingIntervalError reports two edges for the same child
	// covering overlapping or non-adjacent intervals.
	OverlappingIntervalError = "edges for child %d overlap or leave a gap: [%d, %d) then [%d, %d)"
	// InvalidTimeOrderError reports a parent whose time does not
	// exceed its child's time.
	InvalidTimeOrderError = "parent %d time %g does not exceed child %d time %g"
	// DuplicateMutationError reports a (site, node) pair added twice.
	DuplicateMutationError = "mutation at site %d on node %d already recorded"
	// UnknownFrequencyError reports a frequency class with no sites.
	UnknownFrequencyError = "frequency %d has no recorded sites"
	// MultipleGroupsError reports focal sites spanning more than one
	// (frequency, pattern) group.
	MultipleGroupsError = "focal sites span more than one frequency/pattern group"
	// NoViableParentError reports every node's likelihood reaching
	// zero during the forward pass.
	NoViableParentError = "site %d: no node has nonzero likelihood"
	// ArenaExhaustedError reports a block allocator that could not
	// grow to satisfy a request.
	ArenaExhaustedError = "arena %q exhausted: requested %d bytes, %d available and growth limit reached"
	// NodeTimeOrderError reports a non-sample node whose time does not
	// strictly precede the previously inserted non-sample node's time.
	NodeTimeOrderError = "non-sample node time %g does not precede previous non-sample node time %g"
	// UnsortedSitesError reports site positions supplied out of
	// strictly increasing order.
	UnsortedSitesError = "site %d position %g does not exceed previous site position %g"
	// DimensionMismatchError reports two caller-supplied slices that
	// were expected to share a length but did not.
	DimensionMismatchError = "%s has length %d, expected %d"
)
