// Package jsonx holds JSON helpers shared by the HTTP API clients.
package jsonx

import (
	"bytes"
	"encoding/json"
)

// FlexString decodes a JSON string or number into a string.
// Upstream APIs are inconsistent about quoting ids; null leaves it empty.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	*s = FlexString(b)
	return nil
}

// String returns the decoded value
func (s FlexString) String() string {
	return string(s)
}
