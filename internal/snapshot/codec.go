// Package snapshot converts between stored whiteboard content and the
// canvas engine's loadable document.
//
// Stored content comes in several shapes: absent, a JSON string holding
// serialized JSON, an object with a "document" field, or an object with a
// "store" field. Decode reduces all of them to the one unit the engine loads.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"whiteboard/api/internal/canvas"
)

var (
	// ErrMalformedSnapshot means the content could not be parsed. Nothing is
	// loaded.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
	// ErrUnrecognizedShape means the content parsed but has neither a
	// document nor a store. The canvas starts empty.
	ErrUnrecognizedShape = errors.New("unrecognized snapshot shape")
)

// Decode returns the loadable unit inside raw, or nil when there is nothing
// to load.
func Decode(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if isAbsent(trimmed) {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, ErrMalformedSnapshot
	}

	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
		}
		trimmed = bytes.TrimSpace([]byte(text))
		if isAbsent(trimmed) {
			return nil, nil
		}
		if !json.Valid(trimmed) {
			return nil, ErrMalformedSnapshot
		}
	}

	if trimmed[0] != '{' {
		return nil, ErrUnrecognizedShape
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	for _, key := range []string{"document", "store"} {
		if unit, ok := fields[key]; ok && !isAbsent(bytes.TrimSpace(unit)) {
			return unit, nil
		}
	}
	return nil, ErrUnrecognizedShape
}

// Encode returns the engine's native snapshot as the content to store.
func Encode(engine canvas.Engine) json.RawMessage {
	snap := engine.Snapshot()
	if snap == nil {
		return nil
	}
	return append(json.RawMessage(nil), snap...)
}

// Apply decodes raw and loads it into engine. It reports whether anything
// was loaded. An unrecognized shape returns (false, ErrUnrecognizedShape)
// and leaves the engine alone.
func Apply(engine canvas.Engine, raw json.RawMessage) (bool, error) {
	unit, err := Decode(raw)
	if err != nil {
		return false, err
	}
	if unit == nil {
		return false, nil
	}
	if err := engine.Load(unit); err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	return true, nil
}

func isAbsent(b []byte) bool {
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}
