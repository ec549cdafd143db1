package shopify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyWebhook(t *testing.T) {
	body := []byte(`{"id":1001}`)
	sig := SignWebhook("topsecret", body)

	tests := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		expected  bool
	}{
		{"valid", "topsecret", body, sig, true},
		{"tampered body", "topsecret", []byte(`{"id":1002}`), sig, false},
		{"wrong secret", "other", body, sig, false},
		{"missing signature", "topsecret", body, "", false},
		{"missing secret", "", body, sig, false},
		{"garbage signature", "topsecret", body, "abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, VerifyWebhook(tt.secret, tt.body, tt.signature))
		})
	}
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, SplitTags(" a, b c ,,"))
	assert.Nil(t, SplitTags(""))
}
