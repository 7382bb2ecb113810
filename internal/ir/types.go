package ir

import (
	"encoding/base64"
	"fmt"
)

// InstrumentationType distinguishes the three events a call site emits.
type InstrumentationType string

const (
	// InstrumentationInvocation is emitted by the caller before the call leaves.
	InstrumentationInvocation InstrumentationType = "invocation"
	// InstrumentationRequestReceived is emitted by the callee on receipt.
	InstrumentationRequestReceived InstrumentationType = "request_received"
	// InstrumentationInvocationComplete is emitted by the caller once the call returns.
	InstrumentationInvocationComplete InstrumentationType = "invocation_complete"
)

// Valid reports whether t is a known instrumentation type.
func (t InstrumentationType) Valid() bool {
	switch t {
	case InstrumentationInvocation, InstrumentationRequestReceived, InstrumentationInvocationComplete:
		return true
	}
	return false
}

// CallType names the wire library a call went through.
type CallType string

const (
	CallTypeHTTP CallType = "http"
	CallTypeGRPC CallType = "grpc"
)

// PayloadType describes how Payload.Data is encoded.
type PayloadType string

const (
	PayloadString PayloadType = "string"
	PayloadJSON   PayloadType = "json"
	// PayloadBytes carries standard base64 in Data.
	PayloadBytes PayloadType = "bytes"
)

// Payload is a serialized request or response value.
type Payload struct {
	Type PayloadType `json:"type"`
	Data string      `json:"data"`
}

// StringPayload wraps a string value.
func StringPayload(s string) Payload {
	return Payload{Type: PayloadString, Data: s}
}

// JSONPayload wraps an already-encoded JSON document.
func JSONPayload(raw []byte) Payload {
	return Payload{Type: PayloadJSON, Data: string(raw)}
}

// BytesPayload wraps raw bytes.
func BytesPayload(b []byte) Payload {
	return Payload{Type: PayloadBytes, Data: base64.StdEncoding.EncodeToString(b)}
}

// Bytes returns the raw bytes of the payload.
func (p Payload) Bytes() ([]byte, error) {
	if p.Type == PayloadBytes {
		b, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			return nil, fmt.Errorf("decode bytes payload: %w", err)
		}
		return b, nil
	}
	return []byte(p.Data), nil
}

// IR returns the canonical value form of the payload.
func (p Payload) IR() IRObject {
	return p.toIR()
}

func (p Payload) toIR() IRObject {
	return IRObject{
		"type": IRString(p.Type),
		"data": IRString(p.Data),
	}
}

// ExceptionMetadata qualifies an exception fault.
type ExceptionMetadata struct {
	Code        string `json:"code,omitempty" yaml:"code,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Cause       string `json:"cause,omitempty" yaml:"cause,omitempty"`
}

// Exception is a named error raised at a call site.
type Exception struct {
	Name     string            `json:"name" yaml:"name"`
	Metadata ExceptionMetadata `json:"metadata" yaml:"metadata"`
}

func (e Exception) toIR() IRObject {
	meta := IRObject{}
	if e.Metadata.Code != "" {
		meta["code"] = IRString(e.Metadata.Code)
	}
	if e.Metadata.Description != "" {
		meta["description"] = IRString(e.Metadata.Description)
	}
	if e.Metadata.Cause != "" {
		meta["cause"] = IRString(e.Metadata.Cause)
	}
	return IRObject{
		"name":     IRString(e.Name),
		"metadata": meta,
	}
}

// Event is one instrumentation event sent from middleware to the engine.
//
// VClock and OriginVClock are vector clock projections (node name to count).
// GeneratedID is assigned by the engine on receipt; values sent by
// middleware are ignored.
type Event struct {
	Type           InstrumentationType `json:"instrumentation_type"`
	ExecutionIndex string              `json:"execution_index"`
	VClock         map[string]int64    `json:"vclock"`
	OriginVClock   map[string]int64    `json:"origin_vclock"`
	RequestID      string              `json:"request_id"`
	GeneratedID    int64               `json:"generated_id"`
	Origin         string              `json:"origin,omitempty"`
	Service        string              `json:"service,omitempty"`
	Method         string              `json:"method,omitempty"`
	CallType       CallType            `json:"call_type,omitempty"`
	Payload        *Payload            `json:"payload,omitempty"`
	Exception      *Exception          `json:"exception,omitempty"`
	Fault          *Fault              `json:"fault,omitempty"` // fault that was applied, on completion
}

// Validate checks the fields the engine relies on.
func (e *Event) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("instrumentation_type: unknown value %q", e.Type)
	}
	if e.ExecutionIndex == "" {
		return fmt.Errorf("execution_index: required")
	}
	if e.Type == InstrumentationInvocation {
		if e.Service == "" {
			return fmt.Errorf("service: required for invocation")
		}
		if e.Method == "" {
			return fmt.Errorf("method: required for invocation")
		}
	}
	if e.Fault != nil {
		if err := e.Fault.Validate(); err != nil {
			return fmt.Errorf("fault: %w", err)
		}
	}
	return nil
}

// Directive is the engine's answer to an invocation event. A directive with
// a fault is a command: the middleware must apply it instead of proceeding.
type Directive struct {
	ExecutionIndex string `json:"execution_index"`
	Fault          *Fault `json:"fault,omitempty"`
}

// NoFault returns a directive that lets the call proceed.
func NoFault(executionIndex string) Directive {
	return Directive{ExecutionIndex: executionIndex}
}

// Inject returns a directive commanding the given fault.
func Inject(executionIndex string, f Fault) Directive {
	return Directive{ExecutionIndex: executionIndex, Fault: &f}
}

// HasFault reports whether the directive carries a fault.
func (d Directive) HasFault() bool {
	return d.Fault != nil
}
