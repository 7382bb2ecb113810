package engine

import (
	"sort"

	"github.com/roach88/filibuster/internal/ir"
)

// Record is a TestExecutionRecord: for one iteration, the payload observed
// at each execution index and the fault scheduled for it, if any.
//
// Keys are canonical execution index strings. Two records are equal iff both
// maps are equal by value.
type Record struct {
	Payloads map[string]ir.Payload
	Faults   map[string]ir.Fault
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{
		Payloads: make(map[string]ir.Payload),
		Faults:   make(map[string]ir.Fault),
	}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := &Record{
		Payloads: make(map[string]ir.Payload, len(r.Payloads)),
		Faults:   make(map[string]ir.Fault, len(r.Faults)),
	}
	for k, p := range r.Payloads {
		c.Payloads[k] = p
	}
	for k, f := range r.Faults {
		c.Faults[k] = cloneFault(f)
	}
	return c
}

func cloneFault(f ir.Fault) ir.Fault {
	out := ir.Fault{Kind: f.Kind}
	if f.Exception != nil {
		ex := *f.Exception
		out.Exception = &ex
	}
	if f.Transformer != nil {
		t := *f.Transformer
		out.Transformer = &t
	}
	if f.Byzantine != nil {
		b := *f.Byzantine
		out.Byzantine = &b
	}
	return out
}

// SetPayload records the payload observed at an execution index. The first
// payload wins; a repeated invocation at the same index does not overwrite it.
func (r *Record) SetPayload(executionIndex string, p ir.Payload) {
	if _, ok := r.Payloads[executionIndex]; ok {
		return
	}
	r.Payloads[executionIndex] = p
}

// Schedule assigns a fault to an execution index.
func (r *Record) Schedule(executionIndex string, f ir.Fault) {
	r.Faults[executionIndex] = f
}

// FaultAt returns the fault scheduled for an execution index.
func (r *Record) FaultAt(executionIndex string) (ir.Fault, bool) {
	f, ok := r.Faults[executionIndex]
	return f, ok
}

// Equal compares both maps by value.
func (r *Record) Equal(o *Record) bool {
	return r.equalFaults(o) && r.equalPayloads(o)
}

// EqualFaults compares only the fault maps. This is the equality used when
// payload content is nondeterministic between runs.
func (r *Record) EqualFaults(o *Record) bool {
	return r.equalFaults(o)
}

func (r *Record) equalFaults(o *Record) bool {
	if len(r.Faults) != len(o.Faults) {
		return false
	}
	for k, f := range r.Faults {
		g, ok := o.Faults[k]
		if !ok || !f.Equal(g) {
			return false
		}
	}
	return true
}

func (r *Record) equalPayloads(o *Record) bool {
	if len(r.Payloads) != len(o.Payloads) {
		return false
	}
	for k, p := range r.Payloads {
		q, ok := o.Payloads[k]
		if !ok || p != q {
			return false
		}
	}
	return true
}

// Key returns a content digest of the record. Records with equal keys are
// Equal (or EqualFaults when ignorePayloads is set).
func (r *Record) Key(ignorePayloads bool) string {
	faults := make(ir.IRObject, len(r.Faults))
	for k, f := range r.Faults {
		faults[k] = f.IR()
	}
	obj := ir.IRObject{"faults": faults}
	if !ignorePayloads {
		payloads := make(ir.IRObject, len(r.Payloads))
		for k, p := range r.Payloads {
			payloads[k] = ir.IRString(ir.PayloadDigest(p))
		}
		obj["payloads"] = payloads
	}
	// Only strings, ints and objects: always marshals.
	key, _ := ir.Digest(ir.DomainRecord, obj)
	return key
}

// ScheduledFaults lists the fault assignment ordered by execution index.
// Returns an empty slice (not nil) when nothing is scheduled.
func (r *Record) ScheduledFaults() []ir.ScheduledFault {
	keys := make([]string, 0, len(r.Faults))
	for k := range r.Faults {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]ir.ScheduledFault, 0, len(keys))
	for _, k := range keys {
		out = append(out, ir.ScheduledFault{ExecutionIndex: k, Fault: r.Faults[k]})
	}
	return out
}
