package protocol

import (
	"github.com/bytedance/sonic"
)

// Reserved message kinds.
const (
	KindInit   = "init"
	KindReady  = "__ready"
	KindCall   = "__call"
	KindReturn = "__return"
	KindError  = "__error"
)

var codec = sonic.ConfigStd

// Envelope is the wire frame exchanged through a port.
type Envelope struct {
	Type    string                 `json:"type"`
	Payload *string                `json:"payload,omitempty"`
	Debug   bool                   `json:"debug,omitempty"`
	Options map[string]OptionEntry `json:"options,omitempty"`
}

// OptionEntry is one option of the init frame. Exactly one of Script or
// Capability is set for callable options; otherwise Value is copied verbatim.
type OptionEntry struct {
	Value      any    `json:"value,omitempty"`
	Script     string `json:"script,omitempty"`
	Capability string `json:"capability,omitempty"`
}

// IsReserved reports whether kind is used by the protocol itself.
func IsReserved(kind string) bool {
	switch kind {
	case KindInit, KindReady, KindCall, KindReturn, KindError:
		return true
	}
	return false
}

// Encode builds the wire frame for an application message. A nil payload is
// sent without a payload field.
func Encode(kind string, payload any, debug bool) ([]byte, error) {
	if kind == "" {
		return nil, ErrEmptyKind
	}

	env := &Envelope{Type: kind, Debug: debug}
	if payload != nil {
		text, err := codec.MarshalToString(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = &text
	}
	return Marshal(env)
}

// Marshal serializes a complete envelope.
func Marshal(env *Envelope) ([]byte, error) {
	if env.Type == "" {
		return nil, ErrEmptyKind
	}
	return codec.Marshal(env)
}

// Decode parses a raw frame. Any failure is returned as a *DecodeError.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := codec.Unmarshal(raw, &env); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if env.Type == "" {
		return nil, &DecodeError{Err: ErrEmptyKind}
	}
	return &env, nil
}

// Value decodes the payload. An absent or null payload decodes to an empty
// object so handlers can always index into it.
func (e *Envelope) Value() (any, error) {
	if e.Payload == nil {
		return map[string]any{}, nil
	}

	var v any
	if err := codec.UnmarshalFromString(*e.Payload, &v); err != nil {
		return nil, &DecodeError{Kind: e.Type, Err: err}
	}
	if v == nil {
		return map[string]any{}, nil
	}
	return v, nil
}

// Bind decodes the payload into v.
func (e *Envelope) Bind(v any) error {
	if e.Payload == nil {
		return &DecodeError{Kind: e.Type, Err: ErrMissingPayload}
	}
	if err := codec.UnmarshalFromString(*e.Payload, v); err != nil {
		return &DecodeError{Kind: e.Type, Err: err}
	}
	return nil
}

// PayloadText returns the raw payload text, or "" when absent.
func (e *Envelope) PayloadText() string {
	if e.Payload == nil {
		return ""
	}
	return *e.Payload
}

// Quote renders s as a JavaScript string literal.
func Quote(s string) string {
	out, err := codec.MarshalToString(s)
	if err != nil {
		// strings always encode
		panic(err)
	}
	return out
}

// Stringify encodes v the way payloads are encoded on the wire.
func Stringify(v any) (string, error) {
	return codec.MarshalToString(v)
}
