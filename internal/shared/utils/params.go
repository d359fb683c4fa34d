package utils

import (
	"math"
)

// Tool parameters arrive as decoded JSON: numbers are float64, arrays are
// []interface{} and objects are map[string]interface{}.

// GetString returns params[key] as a string.
func GetString(params map[string]interface{}, key string, required bool) (string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		if required {
			return "", invalidf("%s is required", key)
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", invalidf("%s must be a string", key)
	}
	return s, nil
}

// GetInt returns params[key] as an int, or def when absent.
func GetInt(params map[string]interface{}, key string, def int) (int, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, invalidf("%s must be an integer", key)
		}
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, invalidf("%s must be a number", key)
	}
}

// GetStringSlice returns params[key] as a []string.
func GetStringSlice(params map[string]interface{}, key string) ([]string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, invalidf("%s[%d] must be a string", key, i)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, invalidf("%s must be an array of strings", key)
	}
}

// GetStringMap returns params[key] as a map[string]string. Non-string values
// are rejected.
func GetStringMap(params map[string]interface{}, key string) (map[string]string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		out := make(map[string]string, len(v))
		for k, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, invalidf("%s.%s must be a string", key, k)
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, invalidf("%s must be an object", key)
	}
}
