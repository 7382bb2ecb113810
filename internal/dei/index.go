package dei

import (
	"bytes"
	"encoding/json"

	"github.com/roach88/filibuster/internal/ir"
)

// Frame is one level of an Index.
type Frame struct {
	Chain string
	Count int64
}

// Index is a Distributed Execution Index.
//
// The zero value is not usable; create one with New, Parse or Clone.
type Index struct {
	frames  []Frame
	history map[string]int64 // chain value -> times produced
}

// New returns an empty Index.
func New() *Index {
	return &Index{history: make(map[string]int64)}
}

// Push appends a frame for c and returns it.
func (x *Index) Push(c Callsite) Frame {
	chain := ChainValue(c, x.chains())
	x.history[chain]++
	f := Frame{Chain: chain, Count: x.history[chain]}
	x.frames = append(x.frames, f)
	return f
}

// Pop removes and returns the top frame.
// Returns ErrEmptyIndex when there is nothing to pop.
func (x *Index) Pop() (Frame, error) {
	if len(x.frames) == 0 {
		return Frame{}, ErrEmptyIndex
	}
	f := x.frames[len(x.frames)-1]
	x.frames = x.frames[:len(x.frames)-1]
	return f, nil
}

// MustPop is like Pop but panics on an empty index.
func (x *Index) MustPop() Frame {
	f, err := x.Pop()
	if err != nil {
		panic(err)
	}
	return f
}

// Clone deep-copies frames and occurrence history. Pushes on the clone never
// affect x and vice versa.
func (x *Index) Clone() *Index {
	c := &Index{
		frames:  make([]Frame, len(x.frames)),
		history: make(map[string]int64, len(x.history)),
	}
	copy(c.frames, x.frames)
	for k, v := range x.history {
		c.history[k] = v
	}
	return c
}

// Len returns the number of frames.
func (x *Index) Len() int {
	return len(x.frames)
}

// Frames returns a copy of the frames, bottom first.
func (x *Index) Frames() []Frame {
	out := make([]Frame, len(x.frames))
	copy(out, x.frames)
	return out
}

// Top returns the top frame, if any.
func (x *Index) Top() (Frame, bool) {
	if len(x.frames) == 0 {
		return Frame{}, false
	}
	return x.frames[len(x.frames)-1], true
}

// Parent returns a copy of x without its top frame. The parent of an empty
// or single-frame index is empty.
func (x *Index) Parent() *Index {
	p := x.Clone()
	if len(p.frames) > 0 {
		p.frames = p.frames[:len(p.frames)-1]
	}
	return p
}

func (x *Index) chains() []string {
	out := make([]string, len(x.frames))
	for i, f := range x.frames {
		out[i] = f.Chain
	}
	return out
}

// Serialize returns the canonical form: [["<chain>",<count>],...].
// An empty index serializes to "[]".
func (x *Index) Serialize() string {
	arr := make(ir.IRArray, len(x.frames))
	for i, f := range x.frames {
		arr[i] = ir.IRArray{ir.IRString(f.Chain), ir.IRInt(f.Count)}
	}
	// Strings and ints always marshal.
	b, _ := ir.MarshalCanonical(arr)
	return string(b)
}

// String implements fmt.Stringer with the canonical form.
func (x *Index) String() string {
	return x.Serialize()
}

// Key returns the canonical form for use as a map key.
func (x *Index) Key() string {
	return x.Serialize()
}

// Equal reports whether both indexes serialize identically. Occurrence
// history is not part of identity.
func (x *Index) Equal(o *Index) bool {
	if x == nil || o == nil {
		return x == o
	}
	return x.Serialize() == o.Serialize()
}

// MarshalText implements encoding.TextMarshaler.
func (x *Index) MarshalText() ([]byte, error) {
	return []byte(x.Serialize()), nil
}

// Parse deserializes the canonical form.
//
// A nil input (or the JSON literal null) fails with *SerializationError.
// Empty input and "[]" yield an empty index. Entries are read left to right
// and reading stops at the first malformed entry; the valid prefix already
// read is returned without error.
//
// Occurrence history is seeded from the parsed frames so that a later Push
// of an already-seen chain value continues its count.
func Parse(data []byte) (*Index, error) {
	if data == nil {
		return nil, &SerializationError{Reason: "null input"}
	}
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, &SerializationError{Reason: "null input"}
	}

	x := New()
	if len(trimmed) == 0 {
		return x, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil || tok != json.Delim('[') {
		return x, nil
	}
	for {
		f, ok := readFrame(dec)
		if !ok {
			break
		}
		x.frames = append(x.frames, f)
		if f.Count > x.history[f.Chain] {
			x.history[f.Chain] = f.Count
		}
	}
	return x, nil
}

// ParseString is Parse for text that is known to be present.
func ParseString(s string) (*Index, error) {
	return Parse([]byte(s))
}

// MustParse is like ParseString but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParse(s string) *Index {
	x, err := ParseString(s)
	if err != nil {
		panic(err)
	}
	return x
}

// readFrame reads one ["chain", count] entry. It reports false on the
// closing bracket of the outer array and on any structural problem.
func readFrame(dec *json.Decoder) (Frame, bool) {
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('[') {
		return Frame{}, false
	}

	tok, err = dec.Token()
	if err != nil {
		return Frame{}, false
	}
	chain, ok := tok.(string)
	if !ok || chain == "" {
		return Frame{}, false
	}

	tok, err = dec.Token()
	if err != nil {
		return Frame{}, false
	}
	num, ok := tok.(json.Number)
	if !ok {
		return Frame{}, false
	}
	count, err := num.Int64()
	if err != nil || count < 1 {
		return Frame{}, false
	}

	tok, err = dec.Token()
	if err != nil || tok != json.Delim(']') {
		return Frame{}, false
	}
	return Frame{Chain: chain, Count: count}, true
}
