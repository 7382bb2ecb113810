package testutil

import "github.com/roach88/filibuster/internal/dei"

// Call is one hop of a call chain: Origin calls Method on Service.
type Call struct {
	Origin  string
	Service string
	Method  string
}

// Index returns the serialized execution index of the innermost call of
// a chain made once each, outermost first.
//
//	testutil.Index(
//		testutil.Call{"test", "cart", "GET /items"},
//		testutil.Call{"cart", "inventory", "GET /stock"},
//	)
func Index(chain ...Call) string {
	idx := dei.New()
	for _, c := range chain {
		idx.Push(dei.NewCallsite(c.Origin, c.Service, c.Method))
	}
	return idx.Serialize()
}
