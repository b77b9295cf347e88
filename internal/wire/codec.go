package wire

import (
	"github.com/nghyane/gemini-wire/internal/json"
)

// Encode serializes a typed request value to its wire bytes. Serialization
// is deterministic for a given type: struct fields keep declaration order.
// A value that cannot be marshaled is a caller bug and classifies as an
// invalid request.
func Encode(v any) ([]byte, *Error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, NewError(KindInvalidRequest, "encode request: "+err.Error(), err)
	}
	return data, nil
}

// Decode deserializes wire bytes into the expected response type. A body
// that does not match the expected shape never escapes as a raw fault: it
// classifies as a connection error wrapping the decode failure, since a
// 2xx response with an alien body means the exchange itself went wrong.
func Decode[T any](data []byte) (T, *Error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, NewError(KindConnectionError, "decode response: "+err.Error(), err)
	}
	return v, nil
}
