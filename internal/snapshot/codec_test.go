package snapshot

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiteboard/api/internal/canvas"
)

func TestDecodeShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		err  error
	}{
		{name: "empty", raw: ``},
		{name: "null", raw: `null`},
		{name: "document", raw: `{"document":{"store":{"a":1}},"session":{}}`, want: `{"store":{"a":1}}`},
		{name: "store", raw: `{"store":{"shape:1":{}},"schema":{}}`, want: `{"shape:1":{}}`},
		{name: "document wins over store", raw: `{"store":{"x":1},"document":{"y":2}}`, want: `{"y":2}`},
		{name: "null document falls back to store", raw: `{"document":null,"store":{"x":1}}`, want: `{"x":1}`},
		{name: "text payload", raw: `"{\"document\":{\"k\":true}}"`, want: `{"k":true}`},
		{name: "empty text payload", raw: `""`},
		{name: "bad text payload", raw: `"{not json"`, err: ErrMalformedSnapshot},
		{name: "invalid json", raw: `{"document":`, err: ErrMalformedSnapshot},
		{name: "legacy shape", raw: `{"shapes":[1,2]}`, err: ErrUnrecognizedShape},
		{name: "array", raw: `[1,2]`, err: ErrUnrecognizedShape},
		{name: "number", raw: `42`, err: ErrUnrecognizedShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(json.RawMessage(tt.raw))
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, raw := range []string{
		`{"document":{"shapes":[{"id":"a"}]}}`,
		`{"store":{"shapes":[{"id":"a"}]}}`,
		`"{\"document\":{\"shapes\":[{\"id\":\"a\"}]}}"`,
	} {
		engine := canvas.NewMemoryEngine(canvas.Identity)
		loaded, err := Apply(engine, json.RawMessage(raw))
		require.NoError(t, err, raw)
		require.True(t, loaded, raw)

		first := engine.Document()
		encoded := Encode(engine)

		again := canvas.NewMemoryEngine(canvas.Identity)
		loaded, err = Apply(again, encoded)
		require.NoError(t, err)
		require.True(t, loaded)
		assert.JSONEq(t, string(first), string(again.Document()), raw)
		assert.JSONEq(t, `{"shapes":[{"id":"a"}]}`, string(first))
	}
}

func TestEncodeCopies(t *testing.T) {
	engine := canvas.NewMemoryEngine(canvas.Identity)
	assert.Nil(t, Encode(engine))

	require.NoError(t, engine.Load(json.RawMessage(`{"v":1}`)))
	encoded := Encode(engine)
	encoded[0] = 'X'
	assert.JSONEq(t, `{"document":{"v":1}}`, string(engine.Snapshot()))
}

type failingEngine struct {
	*canvas.MemoryEngine
}

func (failingEngine) Load(json.RawMessage) error { return errors.New("engine busy") }

func TestApplyLeavesEngineAloneOnBadInput(t *testing.T) {
	engine := canvas.NewMemoryEngine(canvas.Identity)
	require.NoError(t, engine.Load(json.RawMessage(`{"keep":true}`)))

	loaded, err := Apply(engine, json.RawMessage(`{"legacy":1}`))
	assert.False(t, loaded)
	assert.ErrorIs(t, err, ErrUnrecognizedShape)

	loaded, err = Apply(engine, json.RawMessage(`{oops`))
	assert.False(t, loaded)
	assert.ErrorIs(t, err, ErrMalformedSnapshot)

	loaded, err = Apply(engine, nil)
	assert.False(t, loaded)
	assert.NoError(t, err)

	assert.JSONEq(t, `{"keep":true}`, string(engine.Document()))

	_, err = Apply(failingEngine{canvas.NewMemoryEngine(canvas.Identity)}, json.RawMessage(`{"document":{}}`))
	assert.ErrorContains(t, err, "engine busy")
}
