package jsonx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	ErrEmptyBody    = errors.New("empty body")
	ErrTrailingJSON = errors.New("trailing data")
	ErrNotObject    = errors.New("body must be a JSON object")
	ErrTooLarge     = errors.New("body too large")
)

// ParseStrictJSONObject reads at most limit bytes from src and decodes them
// as exactly one JSON object, keeping every member verbatim.
//
// Intended HTTP mapping: every error is a 400 Bad Request.
//   - empty body (ErrEmptyBody)
//   - more than limit bytes (ErrTooLarge)
//   - malformed JSON or a non-object value (ErrNotObject)
//   - anything after the object (ErrTrailingJSON)
//
// Only shape is checked here; semantic validation belongs to the caller.
func ParseStrictJSONObject(src io.Reader, limit int64) (map[string]json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, ErrTooLarge
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	if body[0] != '{' {
		return nil, ErrNotObject
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	var obj map[string]json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotObject, err)
	}
	// Ensure no trailing JSON values
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrTrailingJSON
	}
	return obj, nil
}
