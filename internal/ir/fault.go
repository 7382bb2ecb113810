package ir

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// FaultKind is the class of a fault.
type FaultKind string

const (
	FaultException   FaultKind = "exception"
	FaultTransformer FaultKind = "transformer"
	FaultByzantine   FaultKind = "byzantine"
)

// TransformerType selects how a payload is corrupted.
type TransformerType string

const (
	// TransformBitFlip flips a single bit of the payload bytes.
	TransformBitFlip TransformerType = "bit_flip"
	// TransformChar replaces a single character of a string payload.
	TransformChar TransformerType = "char"
)

// ErrTransformOutOfRange is returned when a transformer index does not
// address a bit or character of the payload.
var ErrTransformOutOfRange = errors.New("transformer index out of range")

// Transformer corrupts one position of a payload.
type Transformer struct {
	Type  TransformerType `json:"type"`
	Index int             `json:"index"`
}

// Byzantine substitutes a plausible but wrong value for the real response.
type Byzantine struct {
	Value string `json:"value"`
}

// Fault is a single fault to inject at one execution index.
// Exactly one of Exception, Transformer, Byzantine is set, matching Kind.
type Fault struct {
	Kind        FaultKind    `json:"kind"`
	Exception   *Exception   `json:"exception,omitempty"`
	Transformer *Transformer `json:"transformer,omitempty"`
	Byzantine   *Byzantine   `json:"byzantine,omitempty"`
}

// ExceptionFault builds an exception fault.
func ExceptionFault(name string, meta ExceptionMetadata) Fault {
	return Fault{Kind: FaultException, Exception: &Exception{Name: name, Metadata: meta}}
}

// TransformerFault builds a transformer fault.
func TransformerFault(t TransformerType, index int) Fault {
	return Fault{Kind: FaultTransformer, Transformer: &Transformer{Type: t, Index: index}}
}

// ByzantineFault builds a byzantine fault.
func ByzantineFault(value string) Fault {
	return Fault{Kind: FaultByzantine, Byzantine: &Byzantine{Value: value}}
}

// Validate checks that the variant matching Kind is present.
func (f Fault) Validate() error {
	switch f.Kind {
	case FaultException:
		if f.Exception == nil || f.Exception.Name == "" {
			return fmt.Errorf("exception fault requires a name")
		}
	case FaultTransformer:
		if f.Transformer == nil {
			return fmt.Errorf("transformer fault requires a transformer")
		}
		if f.Transformer.Type != TransformBitFlip && f.Transformer.Type != TransformChar {
			return fmt.Errorf("unknown transformer type %q", f.Transformer.Type)
		}
		if f.Transformer.Index < 0 {
			return fmt.Errorf("transformer index must be non-negative")
		}
	case FaultByzantine:
		if f.Byzantine == nil {
			return fmt.Errorf("byzantine fault requires a value")
		}
	default:
		return fmt.Errorf("unknown fault kind %q", f.Kind)
	}
	return nil
}

func (f Fault) toIR() IRObject {
	obj := IRObject{"kind": IRString(f.Kind)}
	switch f.Kind {
	case FaultException:
		if f.Exception != nil {
			obj["exception"] = f.Exception.toIR()
		}
	case FaultTransformer:
		if f.Transformer != nil {
			obj["transformer"] = IRObject{
				"type":  IRString(f.Transformer.Type),
				"index": IRInt(f.Transformer.Index),
			}
		}
	case FaultByzantine:
		if f.Byzantine != nil {
			obj["byzantine"] = IRObject{"value": IRString(f.Byzantine.Value)}
		}
	}
	return obj
}

// IR returns the canonical value form of the fault.
func (f Fault) IR() IRObject {
	return f.toIR()
}

// Key returns the canonical JSON of the fault. Two faults are equal iff
// their keys are equal.
func (f Fault) Key() string {
	// toIR only produces strings, ints and objects, which always marshal.
	b, _ := MarshalCanonical(f.toIR())
	return string(b)
}

// Equal compares faults by value.
func (f Fault) Equal(o Fault) bool {
	return f.Key() == o.Key()
}

// String renders a short human-readable description.
func (f Fault) String() string {
	switch f.Kind {
	case FaultException:
		if f.Exception != nil {
			if f.Exception.Metadata.Code != "" {
				return fmt.Sprintf("exception(%s:%s)", f.Exception.Name, f.Exception.Metadata.Code)
			}
			return fmt.Sprintf("exception(%s)", f.Exception.Name)
		}
	case FaultTransformer:
		if f.Transformer != nil {
			return fmt.Sprintf("transformer(%s@%d)", f.Transformer.Type, f.Transformer.Index)
		}
	case FaultByzantine:
		if f.Byzantine != nil {
			return fmt.Sprintf("byzantine(%q)", f.Byzantine.Value)
		}
	}
	return string(f.Kind)
}

// Apply corrupts the payload at the transformer's index.
//
// bit_flip counts bits most-significant first within each byte.
// char counts runes of the payload text.
func (t Transformer) Apply(p Payload) (Payload, error) {
	switch t.Type {
	case TransformBitFlip:
		b, err := p.Bytes()
		if err != nil {
			return Payload{}, err
		}
		if t.Index < 0 || t.Index >= len(b)*8 {
			return Payload{}, fmt.Errorf("%w: bit %d of %d", ErrTransformOutOfRange, t.Index, len(b)*8)
		}
		out := make([]byte, len(b))
		copy(out, b)
		out[t.Index/8] ^= 0x80 >> uint(t.Index%8)
		if p.Type == PayloadBytes {
			return BytesPayload(out), nil
		}
		return Payload{Type: p.Type, Data: string(out)}, nil

	case TransformChar:
		if p.Type == PayloadBytes {
			return Payload{}, fmt.Errorf("char transformer does not apply to %s payloads", p.Type)
		}
		runes := []rune(p.Data)
		if t.Index < 0 || t.Index >= len(runes) {
			return Payload{}, fmt.Errorf("%w: char %d of %d", ErrTransformOutOfRange, t.Index, len(runes))
		}
		runes[t.Index] = substituteRune(runes[t.Index])
		return Payload{Type: p.Type, Data: string(runes)}, nil
	}
	return Payload{}, fmt.Errorf("unknown transformer type %q", t.Type)
}

// Positions returns how many distinct transformer indexes apply to p.
func (t TransformerType) Positions(p Payload) int {
	switch t {
	case TransformBitFlip:
		b, err := p.Bytes()
		if err != nil {
			return 0
		}
		return len(b) * 8
	case TransformChar:
		if p.Type == PayloadBytes {
			return 0
		}
		return utf8.RuneCountInString(p.Data)
	}
	return 0
}

func substituteRune(r rune) rune {
	if r == 'X' {
		return 'Y'
	}
	return 'X'
}
