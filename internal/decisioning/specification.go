package decisioning

import "fmt"

// Specification is one independent acceptance rule. Evaluate must not write
// to the candidate or the snapshot and must return a Result for every input.
type Specification interface {
	Name() string
	Evaluate(c *Candidate, snap *Snapshot, search SearchContext) Result
}

// Result is the outcome of a single specification.
type Result struct {
	rejected bool
	reason   string
	kind     RejectionType
}

// Accept returns an accepting result.
func Accept() Result {
	return Result{}
}

// Reject returns a permanent rejection.
func Reject(format string, args ...any) Result {
	return Result{rejected: true, reason: fmt.Sprintf(format, args...), kind: RejectionPermanent}
}

// RejectTemporarily returns a rejection that may clear without a policy change.
func RejectTemporarily(format string, args ...any) Result {
	return Result{rejected: true, reason: fmt.Sprintf(format, args...), kind: RejectionTemporary}
}

// Accepted reports whether the result accepts.
func (r Result) Accepted() bool {
	return !r.rejected
}

// Reason returns the rejection reason, or "" when accepted.
func (r Result) Reason() string {
	return r.reason
}

// Type returns the rejection classification.
func (r Result) Type() RejectionType {
	return r.kind
}

func (r Result) rejection(spec string) Rejection {
	return Rejection{Reason: r.reason, Type: r.kind, Specification: spec}
}

type funcSpec struct {
	name string
	fn   func(c *Candidate, snap *Snapshot, search SearchContext) Result
}

// SpecFunc adapts a function to the Specification interface.
func SpecFunc(name string, fn func(c *Candidate, snap *Snapshot, search SearchContext) Result) Specification {
	return funcSpec{name: name, fn: fn}
}

func (f funcSpec) Name() string { return f.name }

func (f funcSpec) Evaluate(c *Candidate, snap *Snapshot, search SearchContext) Result {
	return f.fn(c, snap, search)
}
