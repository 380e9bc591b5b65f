package core

import (
	"math"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeJSON(t *testing.T) {
	want := map[string]any{"a": float64(1)}

	tests := []struct {
		name     string
		input    any
		wantOK   bool
		wantWarn bool
	}{
		{name: "nil", input: nil},
		{name: "NaN", input: math.NaN()},
		{name: "invalid pgtype text", input: pgtype.Text{}},
		{name: "mapping passes through", input: map[string]any{"a": float64(1)}, wantOK: true},
		{name: "json text", input: `{"a": 1}`, wantOK: true},
		{name: "json bytes", input: []byte(`{"a": 1}`), wantOK: true},
		{name: "json pgtype text", input: pgtype.Text{String: `{"a":1}`, Valid: true}, wantOK: true},
		{name: "json null literal", input: "null"},
		{name: "bad json", input: "bad-json", wantWarn: true},
		{name: "empty string", input: "", wantWarn: true},
		{name: "json array", input: "[1, 2]", wantWarn: true},
		{name: "trailing garbage", input: `{"a": 1} x`, wantWarn: true},
		{name: "number", input: 123, wantWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Collector{}

			var got map[string]any
			var ok bool
			assert.NotPanics(t, func() { got, ok = NormalizeJSON(tt.input, c) })

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, want, got)
			} else {
				assert.Nil(t, got)
			}

			if tt.wantWarn {
				require.Len(t, c.Warnings(), 1)
				assert.Equal(t, KindInvalidJSON, c.Warnings()[0].Kind)
			} else {
				assert.Zero(t, c.Len())
			}
		})
	}
}

func TestNormalizeJSON_WarningDetail(t *testing.T) {
	c := &Collector{}

	NormalizeJSON("bad_json", c)
	NormalizeJSON(42, c)

	events := c.Warnings()
	require.Len(t, events, 2)
	assert.Equal(t, "bad_json", events[0].Detail)
	assert.Equal(t, "int", events[1].Detail)
}

func TestNormalizeJSON_NilDiagnostics(t *testing.T) {
	assert.NotPanics(t, func() {
		_, ok := NormalizeJSON("{", nil)
		assert.False(t, ok)
	})
}

func TestFlattenJSON(t *testing.T) {
	out := map[string]any{}
	flattenJSON(out, "", map[string]any{
		"email": "a@test.com",
		"address": map[string]any{
			"city": "Springfield",
			"geo":  map[string]any{"lat": 1.5},
		},
		"tags": map[string]any{},
	})

	assert.Equal(t, map[string]any{
		"email":           "a@test.com",
		"address.city":    "Springfield",
		"address.geo.lat": 1.5,
		"tags":            map[string]any{},
	}, out)
}
