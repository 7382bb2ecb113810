package dei

import (
	"strings"

	"github.com/roach88/filibuster/internal/ir"
)

// Callsite identifies one instrumented call: the node it originates from,
// the class or module defining it, the operation and an argument
// fingerprint. Callsites are comparable values; two are equal iff all four
// fields match.
type Callsite struct {
	Origin   string `json:"origin"`
	Class    string `json:"class"`
	Method   string `json:"method"`
	Argument string `json:"argument"`
}

// NewCallsite builds a Callsite whose argument fingerprint digests args.
func NewCallsite(origin, class, method string, args ...string) Callsite {
	return Callsite{
		Origin:   origin,
		Class:    class,
		Method:   method,
		Argument: ir.ArgumentFingerprint(args...),
	}
}

// ChainValue computes the chain value for c pushed on top of prefix, where
// prefix holds the chain values of every frame below, bottom first.
//
// Format: V1-<origin>-<class>-<method>-<argument+prefix>, each segment a
// 40 hex character digest. The last segment binds the argument fingerprint
// to the full prefix, which is what makes chain values path dependent.
func ChainValue(c Callsite, prefix []string) string {
	parts := make([]string, 0, len(prefix)+1)
	parts = append(parts, c.Argument)
	parts = append(parts, prefix...)

	var b strings.Builder
	b.WriteString(ir.IndexVersion)
	b.WriteByte('-')
	b.WriteString(ir.SegmentDigest(ir.DomainChain, "origin", c.Origin))
	b.WriteByte('-')
	b.WriteString(ir.SegmentDigest(ir.DomainChain, "class", c.Class))
	b.WriteByte('-')
	b.WriteString(ir.SegmentDigest(ir.DomainChain, "method", c.Method))
	b.WriteByte('-')
	b.WriteString(ir.SegmentDigest(ir.DomainChain, parts...))
	return b.String()
}
