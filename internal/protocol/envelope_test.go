package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := map[string]any{
		"from":   "mainthread",
		"count":  float64(3),
		"nested": map[string]any{"list": []any{"a", true, nil}},
	}

	raw, err := Encode("ping", payload, true)
	require.NoError(t, err)

	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "ping", env.Type)
	assert.True(t, env.Debug)

	got, err := env.Value()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestMissingPayloadDecodesToEmptyObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "absent", raw: `{"type":"ping"}`},
		{name: "null", raw: `{"type":"ping","payload":"null"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.raw))
			require.NoError(t, err)

			got, err := env.Value()
			require.NoError(t, err)
			assert.Equal(t, map[string]any{}, got)
		})
	}
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{type:`},
		{name: "missing type", raw: `{"payload":"1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			var decodeErr *DecodeError
			assert.True(t, errors.As(err, &decodeErr))
		})
	}
}

func TestMalformedPayloadIsDecodeError(t *testing.T) {
	env, err := Decode([]byte(`{"type":"ping","payload":"{not json"}`))
	require.NoError(t, err)

	_, err = env.Value()
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "ping", decodeErr.Kind)
	assert.Contains(t, err.Error(), `"ping"`)
}

func TestEncodeRejectsEmptyKind(t *testing.T) {
	_, err := Encode("", nil, false)
	assert.ErrorIs(t, err, ErrEmptyKind)
}

func TestEncodeUnserializablePayload(t *testing.T) {
	_, err := Encode("ping", map[string]any{"fn": func() {}}, false)
	assert.Error(t, err)
}

func TestInitOptionsRoundTrip(t *testing.T) {
	raw, err := Marshal(&Envelope{
		Type: KindInit,
		Options: map[string]OptionEntry{
			"limit":  {Value: float64(10)},
			"square": {Script: "blob:01HZX"},
			"fetch":  {Capability: "fetch"},
		},
	})
	require.NoError(t, err)

	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, float64(10), env.Options["limit"].Value)
	assert.Equal(t, "blob:01HZX", env.Options["square"].Script)
	assert.Equal(t, "fetch", env.Options["fetch"].Capability)
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved(KindInit))
	assert.True(t, IsReserved(KindReady))
	assert.True(t, IsReserved(KindCall))
	assert.True(t, IsReserved(KindReturn))
	assert.True(t, IsReserved(KindError))
	assert.False(t, IsReserved("__anything"))
	assert.False(t, IsReserved("ping"))
	assert.False(t, IsReserved("initialize"))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"a\"b"`, Quote(`a"b`))
}
