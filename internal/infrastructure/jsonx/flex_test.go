package jsonx

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexString_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"string", `{"v":"abc"}`, "abc"},
		{"integer", `{"v":5551234567890}`, "5551234567890"},
		{"float", `{"v":1.5}`, "1.5"},
		{"null", `{"v":null}`, ""},
		{"missing", `{}`, ""},
		{"escaped", `{"v":"a\"b"}`, `a"b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				V FlexString `json:"v"`
			}
			require.NoError(t, json.Unmarshal([]byte(tt.input), &out))
			assert.Equal(t, tt.expected, out.V.String())
		})
	}
}
