package engine

import (
	"github.com/roach88/filibuster/internal/analysis"
	"github.com/roach88/filibuster/internal/ir"
)

// explorer holds the explored corpus and the proposal frontier.
//
// A proposal is a Record holding a fault assignment and the payloads that
// were observed at the faulted execution indexes when it was proposed. The
// corpus remembers the key of every record already run or queued, so a
// proposal structurally equal to one of them is discarded without running.
// With data_nondeterminism the payloads are left out of the key.
//
// Only the Run goroutine touches the explorer.
type explorer struct {
	cfg      *analysis.Config
	explored map[string]bool
	queued   map[string]bool
	frontier []*Record
}

func newExplorer(cfg *analysis.Config) *explorer {
	return &explorer{
		cfg:      cfg,
		explored: make(map[string]bool),
		queued:   make(map[string]bool),
	}
}

func (x *explorer) key(r *Record) string {
	return r.Key(x.cfg.DataNondeterminism)
}

// enqueue adds a proposal to the frontier unless an equal record was already
// explored or queued. Returns true if it was added.
func (x *explorer) enqueue(r *Record) bool {
	k := x.key(r)
	if x.explored[k] || x.queued[k] {
		return false
	}
	x.queued[k] = true
	x.frontier = append(x.frontier, r)
	return true
}

// next pops the oldest unexplored proposal.
func (x *explorer) next() (*Record, bool) {
	for len(x.frontier) > 0 {
		r := x.frontier[0]
		x.frontier[0] = nil
		x.frontier = x.frontier[1:]
		k := x.key(r)
		delete(x.queued, k)
		if x.explored[k] {
			continue
		}
		return r, true
	}
	return nil, false
}

// markExplored adds a record to the corpus.
func (x *explorer) markExplored(r *Record) {
	x.explored[x.key(r)] = true
}

// isExplored reports whether an equal record is in the corpus.
func (x *explorer) isExplored(r *Record) bool {
	return x.explored[x.key(r)]
}

// propose enumerates the neighbors of a finished iteration: for every
// execution index observed without a scheduled fault, and for every fault
// the configuration allows at its call site, one proposal that adds exactly
// that fault. Returns the number of proposals added to the frontier.
func (x *explorer) propose(it *iteration) int {
	added := 0
	for _, key := range it.order {
		if _, scheduled := it.proposal.Faults[key]; scheduled {
			continue
		}

		var payload *ir.Payload
		if p, ok := it.observed.Payloads[key]; ok {
			payload = &p
		}

		for _, f := range x.cfg.FaultsFor(it.sites[key], payload) {
			cand := it.proposal.Clone()
			cand.Schedule(key, f)
			if payload != nil && !x.cfg.DataNondeterminism {
				cand.SetPayload(key, *payload)
			}
			if x.enqueue(cand) {
				added++
			}
		}
	}
	return added
}

// Explored returns the corpus size.
func (x *explorer) Explored() int {
	return len(x.explored)
}

// Pending returns the frontier size.
func (x *explorer) Pending() int {
	return len(x.frontier)
}
