package providers

import (
	"bytes"
	"encoding/json"
	"strings"
)

// isJSONNull reports whether body is the literal JSON null.
func isJSONNull(body []byte) bool {
	return bytes.Equal(bytes.TrimSpace(body), []byte("null"))
}

// decodeJSON unmarshals body into v.
func decodeJSON(body []byte, v any) error {
	return json.Unmarshal(body, v)
}

// joinURL appends path segments to base, collapsing duplicate slashes at the seams.
func joinURL(base string, segments ...string) string {
	out := strings.TrimRight(strings.TrimSpace(base), "/")
	for _, seg := range segments {
		seg = strings.Trim(seg, "/")
		if seg == "" {
			continue
		}
		out += "/" + seg
	}
	return out
}
