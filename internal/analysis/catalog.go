package analysis

import (
	"github.com/roach88/filibuster/internal/ir"
)

// Site identifies the target of an invocation for rule matching.
type Site struct {
	Service  string
	Method   string
	CallType ir.CallType
}

// SiteOf extracts the matching fields from an invocation event.
func SiteOf(ev ir.Event) Site {
	return Site{Service: ev.Service, Method: ev.Method, CallType: ev.CallType}
}

// FaultsFor enumerates every fault applicable to the call site.
//
// Transformers expand to one fault per bit (bit_flip) or per character
// (char) of the recorded payload; with no payload they contribute nothing.
// Order follows rule declaration order, then the order faults are listed in
// within a rule. Duplicates across rules are dropped.
func (c *Config) FaultsFor(site Site, payload *ir.Payload) []ir.Fault {
	var faults []ir.Fault
	seen := make(map[string]bool)
	add := func(f ir.Fault) {
		k := f.Key()
		if seen[k] {
			return
		}
		seen[k] = true
		faults = append(faults, f)
	}

	for i := range c.Rules {
		r := &c.Rules[i]
		if !r.Matches(site) {
			continue
		}
		for _, ex := range r.Exceptions {
			add(ir.ExceptionFault(ex.Name, ex.Metadata))
		}
		if payload != nil {
			for _, t := range r.Transformers {
				n := t.Positions(*payload)
				for idx := 0; idx < n; idx++ {
					add(ir.TransformerFault(t, idx))
				}
			}
		}
		for _, v := range r.Byzantine {
			add(ir.ByzantineFault(v))
		}
	}
	return faults
}

// HasRules reports whether any rule matches the call site.
func (c *Config) HasRules(site Site) bool {
	for i := range c.Rules {
		if c.Rules[i].Matches(site) {
			return true
		}
	}
	return false
}
