// Package json wraps bytedance/sonic behind the encoding/json API surface
// this module uses. Callers depend on this package instead of encoding/json
// so the serialization backend stays swappable in one place.
package json

import (
	stdjson "encoding/json"
	"io"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/decoder"
	"github.com/bytedance/sonic/encoder"
)

// Marshal returns the JSON encoding of v using sonic.
// Struct fields are emitted in declaration order, so output for a given
// type is stable across calls.
func Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

// MarshalIndent returns the indented JSON encoding of v.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return sonic.MarshalIndent(v, prefix, indent)
}

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return sonic.Valid(data)
}

// Aliases to encoding/json types so values cross package boundaries
// without conversion.
type (
	// RawMessage is a raw encoded JSON value.
	RawMessage = stdjson.RawMessage

	// Number represents a JSON number literal.
	Number = stdjson.Number

	// Marshaler is the interface for types that marshal themselves.
	Marshaler = stdjson.Marshaler

	// Unmarshaler is the interface for types that unmarshal themselves.
	Unmarshaler = stdjson.Unmarshaler

	// SyntaxError is a description of a JSON syntax error.
	SyntaxError = stdjson.SyntaxError

	// UnmarshalTypeError describes a JSON value that did not fit the
	// destination Go type.
	UnmarshalTypeError = stdjson.UnmarshalTypeError
)

// Encoder writes JSON values to an output stream.
type Encoder struct {
	enc *encoder.StreamEncoder
}

// NewEncoder returns a new encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: encoder.NewStreamEncoder(w)}
}

// Encode writes the JSON encoding of v to the stream.
func (e *Encoder) Encode(v any) error {
	return e.enc.Encode(v)
}

// SetEscapeHTML specifies whether problematic HTML characters are escaped.
func (e *Encoder) SetEscapeHTML(on bool) {
	e.enc.SetEscapeHTML(on)
}

// Decoder reads and decodes JSON values from an input stream.
type Decoder struct {
	dec *decoder.StreamDecoder
}

// NewDecoder returns a new decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: decoder.NewStreamDecoder(r)}
}

// Decode reads the next JSON-encoded value from its input and stores it in v.
func (d *Decoder) Decode(v any) error {
	return d.dec.Decode(v)
}

// UseNumber causes the Decoder to unmarshal numbers into Number instead of float64.
func (d *Decoder) UseNumber() {
	d.dec.UseNumber()
}

// DisallowUnknownFields makes Decode fail on object keys that do not match
// any field of the destination struct.
func (d *Decoder) DisallowUnknownFields() {
	d.dec.DisallowUnknownFields()
}
