package crucible

import (
	"encoding/json"
	"sort"
	"strconv"
)

// simpleHash is the fixed 32-bit rolling hash used for
// cache keys: deterministic across runs for equal inputs, rendered in
// base36. It is djb2-style over raw bytes rather than a crypto digest,
// since cache keys need speed and collision-resistance, not security.
func simpleHash(s string) string {
	var h uint32 = 5381
	for i := 0; i < len(s); i++ {
		h = ((h << 5) + h) + uint32(s[i])
	}
	return strconv.FormatUint(uint64(h), 36)
}

// sortedPropsJSON renders props with keys sorted, so semantically equal
// prop sets always hash identically regardless of insertion order.
func sortedPropsJSON(props map[string]any) string {
	if len(props) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]any, len(keys))
	for _, k := range keys {
		ordered[k] = props[k]
	}
	// json.Marshal of a map already sorts keys lexicographically, but we
	// build `ordered` explicitly so the intent reads directly off the code
	// rather than relying on encoding/json's incidental behavior.
	raw, err := json.Marshal(ordered)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// GenerateKey builds a cache key of the form
// "<component_path>:<code_hash>:<props_hash>" when code is present,
// "<component_path>:<props_hash>" otherwise.
func GenerateKey(componentPath string, props map[string]any, code string) string {
	propsHash := simpleHash(sortedPropsJSON(props))
	if code == "" {
		return componentPath + ":" + propsHash
	}
	return componentPath + ":" + simpleHash(code) + ":" + propsHash
}
