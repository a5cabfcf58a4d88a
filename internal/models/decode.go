package models

// Snapshot values arrive as loosely typed maps. These helpers tolerate the
// numeric representations a JSON-ish store round-trips (int64, float64, int)
// so that records written by any client decode the same way.

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func asBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func asInt64(m map[string]any, key string) int64 {
	switch n := m[key].(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}
