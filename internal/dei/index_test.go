package dei

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	csA = NewCallsite("frontend", "CartClient", "GetCart", "user-1")
	csB = NewCallsite("cart", "InventoryClient", "Reserve", "sku-9")
)

var chainPattern = regexp.MustCompile(`^V1-[0-9a-f]{40}-[0-9a-f]{40}-[0-9a-f]{40}-[0-9a-f]{40}$`)

func TestIndex_EmptySerializesToEmptyArray(t *testing.T) {
	assert.Equal(t, "[]", New().Serialize())
}

func TestIndex_PushFormat(t *testing.T) {
	x := New()
	f := x.Push(csA)

	assert.Regexp(t, chainPattern, f.Chain)
	assert.Equal(t, int64(1), f.Count)
	assert.Equal(t, `[["`+f.Chain+`",1]]`, x.Serialize())
}

func TestIndex_Deterministic(t *testing.T) {
	build := func() string {
		x := New()
		x.Push(csA)
		x.Push(csB)
		x.MustPop()
		x.Push(csB)
		return x.Serialize()
	}

	first := build()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, build(), "serialize must be a pure function of the push/pop sequence")
	}
}

func TestIndex_PositionalUniqueness(t *testing.T) {
	top := New()
	topFrame := top.Push(csB)

	nested := New()
	nested.Push(csA)
	nestedFrame := nested.Push(csB)

	assert.NotEqual(t, topFrame.Chain, nestedFrame.Chain,
		"same callsite at different depths must produce different chains")

	// Same depth, different path.
	other := New()
	other.Push(NewCallsite("frontend", "CartClient", "GetCart", "user-2"))
	otherFrame := other.Push(csB)
	assert.NotEqual(t, nestedFrame.Chain, otherFrame.Chain)
}

func TestIndex_OccurrenceCounting(t *testing.T) {
	x := New()
	first := x.Push(csA)
	_, err := x.Pop()
	require.NoError(t, err)
	second := x.Push(csA)

	assert.Equal(t, first.Chain, second.Chain, "chain value stays referentially stable")
	assert.Equal(t, int64(2), second.Count)
	assert.Equal(t, 1, x.Len())
	assert.Equal(t, `[["`+first.Chain+`",2]]`, x.Serialize())
}

func TestIndex_OccurrenceCountingNested(t *testing.T) {
	x := New()
	x.Push(csA)
	for i := 1; i <= 3; i++ {
		f := x.Push(csB)
		assert.Equal(t, int64(i), f.Count)
		x.MustPop()
	}
}

func TestIndex_PopEmpty(t *testing.T) {
	x := New()
	_, err := x.Pop()
	assert.ErrorIs(t, err, ErrEmptyIndex)

	x.Push(csA)
	x.MustPop()
	_, err = x.Pop()
	assert.ErrorIs(t, err, ErrEmptyIndex)

	assert.Panics(t, func() { x.MustPop() })
}

func TestIndex_CloneIsIndependent(t *testing.T) {
	x := New()
	x.Push(csA)

	c := x.Clone()
	c.Push(csB)
	assert.Equal(t, 1, x.Len())
	assert.Equal(t, 2, c.Len())

	// History is independent too: a push on the original after the clone
	// pushed does not see the clone's count.
	f := x.Push(csB)
	assert.Equal(t, int64(1), f.Count)

	c.MustPop()
	g := c.Push(csB)
	assert.Equal(t, int64(2), g.Count)
}

func TestIndex_Equality(t *testing.T) {
	a := New()
	b := New()
	for _, x := range []*Index{a, b} {
		x.Push(csA)
		x.Push(csB)
	}
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())

	b.Push(NewCallsite("inventory", "DB", "Query"))
	assert.False(t, a.Equal(b))
}

func TestIndex_TopAndParent(t *testing.T) {
	x := New()
	_, ok := x.Top()
	assert.False(t, ok)

	x.Push(csA)
	top := x.Push(csB)

	got, ok := x.Top()
	require.True(t, ok)
	assert.Equal(t, top, got)

	p := x.Parent()
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, 2, x.Len())
	assert.Equal(t, 0, New().Parent().Len())
}

func TestParse_RoundTrip(t *testing.T) {
	x := New()
	x.Push(csA)
	x.Push(csB)
	x.MustPop()
	x.Push(csB)

	s := x.Serialize()
	parsed, err := ParseString(s)
	require.NoError(t, err)
	assert.Equal(t, s, parsed.Serialize())
	assert.True(t, parsed.Equal(x))

	for _, literal := range []string{`[]`, `[["V1-a",1]]`, `[["V1-a",1],["V1-b",3]]`} {
		got, err := ParseString(literal)
		require.NoError(t, err)
		assert.Equal(t, literal, got.Serialize())
	}
}

func TestParse_Null(t *testing.T) {
	_, err := Parse(nil)
	require.Error(t, err)
	assert.True(t, IsSerializationError(err))

	_, err = ParseString("null")
	assert.True(t, IsSerializationError(err))
}

func TestParse_Empty(t *testing.T) {
	for _, in := range []string{"", "[]", "  [ ] "} {
		x, err := ParseString(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, 0, x.Len())
		assert.Equal(t, "[]", x.Serialize())
	}
}

func TestParse_TruncatesAtMalformedEntry(t *testing.T) {
	valid, err := ParseString(`[["V1-a",1]]`)
	require.NoError(t, err)

	malformed := []string{
		`[["V1-a",1],["V1-b"]]`,
		`[["V1-a",1],["V1-b","2"]]`,
		`[["V1-a",1],["V1-b",0]]`,
		`[["V1-a",1],[7,1]]`,
		`[["V1-a",1],["V1-b",1,2]]`,
		`[["V1-a",1],"V1-b"]`,
		`[["V1-a",1],["V1-b",1.5]]`,
		`[["V1-a",1],["V1-b",`,
		`[["V1-a",1],garbage`,
	}
	for _, in := range malformed {
		got, err := ParseString(in)
		require.NoError(t, err, "malformed trailing data must not fail: %q", in)
		assert.True(t, got.Equal(valid), "input %q", in)
	}

	got, err := ParseString(`{"not":"an array"}`)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestParse_SeedsHistory(t *testing.T) {
	x := New()
	x.Push(csA)
	x.MustPop()
	x.Push(csA) // count 2

	remote := MustParse(x.Serialize())
	remote.MustPop()
	f := remote.Push(csA)
	assert.Equal(t, int64(3), f.Count)
}

func TestCallsite_Equal(t *testing.T) {
	assert.Equal(t, NewCallsite("a", "b", "c", "d"), NewCallsite("a", "b", "c", "d"))
	assert.NotEqual(t, NewCallsite("a", "b", "c", "d"), NewCallsite("a", "b", "c", "e"))
	assert.NotEqual(t, ChainValue(csA, nil), ChainValue(csB, nil))
}
