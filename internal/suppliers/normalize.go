package suppliers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Normalize produces the canonical form of an attribute payload. Strings are
// trimmed and lower-cased, arrays are normalized element-wise then sorted by
// their serialized form, and object keys with nil or empty-string leaves are
// pruned before recursing. Two payloads differing only in case, whitespace,
// key order or null-vs-absent normalize identically.
func Normalize(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			norm := Normalize(item)
			if isEmptyLeaf(norm) {
				continue
			}
			out = append(out, norm)
		}
		sort.Slice(out, func(i, j int) bool {
			return canonicalString(out[i]) < canonicalString(out[j])
		})
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			if isEmptyLeaf(item) {
				continue
			}
			norm := Normalize(item)
			if isEmptyLeaf(norm) {
				continue
			}
			out[key] = norm
		}
		return out
	default:
		return v
	}
}

func isEmptyLeaf(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// canonicalString serializes a normalized value deterministically.
// encoding/json already emits map keys in sorted order.
func canonicalString(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// Hash returns the SHA-256 hex digest of the canonical serialized form of
// value. The digest is used purely for attribute deduplication.
func Hash(value any) string {
	sum := sha256.Sum256([]byte(canonicalString(Normalize(value))))
	return hex.EncodeToString(sum[:])
}

// NormalizePayload converts a typed struct into its normalized map form plus
// content hash, via a JSON round trip so struct tags define the key names.
func NormalizePayload(value any) (map[string]any, string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, "", fmt.Errorf("suppliers: marshal payload: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, "", fmt.Errorf("suppliers: unmarshal payload: %w", err)
	}
	norm, ok := Normalize(raw).(map[string]any)
	if !ok {
		norm = map[string]any{}
	}
	sum := sha256.Sum256([]byte(canonicalString(norm)))
	return norm, hex.EncodeToString(sum[:]), nil
}
