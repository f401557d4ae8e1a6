package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// ExtraDataAfterJSONError indicates the input contained data after the first JSON object.
type ExtraDataAfterJSONError struct{}

func (e *ExtraDataAfterJSONError) Error() string {
	return "extra data after JSON object"
}

// FromJSON decodes a single JSON object from b. Unknown fields and trailing
// data are rejected. Empty input yields the zero value.
//
//nolint:ireturn // Generic functions must return type parameter T
func FromJSON[T any](b []byte) (T, error) {
	var zero T

	if len(b) == 0 {
		return zero, nil
	}

	return FromJSONStream[T](bytes.NewReader(b))
}

// FromJSONStream decodes a single JSON object from r. Unknown fields and
// trailing data are rejected.
//
//nolint:ireturn // Generic functions must return type parameter T
func FromJSONStream[T any](r io.Reader) (T, error) {
	var result T

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&result); err != nil {
		return result, err
	}

	// A second decode must hit EOF, otherwise the body held more than one object.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var zero T
		return zero, &ExtraDataAfterJSONError{}
	}

	return result, nil
}

// ToJSON encodes v as compact JSON without HTML escaping.
func ToJSON(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	// Encode appends a newline; strip it for byte-level callers.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ToJSONStream encodes v as JSON directly onto w without HTML escaping.
func ToJSONStream(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	return enc.Encode(v)
}
