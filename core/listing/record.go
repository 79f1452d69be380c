package listing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is a single entity as decoded from a list response.
// Only the fields a caller declares are ever read from it.
type Record map[string]interface{}

// Get returns the value at `path`. Dotted paths walk nested objects ("employmentDetails.department").
func (r Record) Get(path string) (interface{}, bool) {
	if r == nil || path == "" {
		return nil, false
	}
	if v, ok := r[path]; ok {
		return v, true
	}

	var cur interface{} = map[string]interface{}(r)
	for _, part := range strings.Split(path, ".") {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the value at `path` formatted as text; missing and null values are "".
func (r Record) String(path string) string {
	v, _ := r.Get(path)
	return stringify(v)
}

// FirstString returns the first non-blank value among `paths`.
func (r Record) FirstString(paths ...string) string {
	for _, p := range paths {
		if s := strings.TrimSpace(r.String(p)); s != "" {
			return s
		}
	}
	return ""
}

// ToBool coerces boolean-like values: true for the boolean true or
// one of the strings "y", "yes", "active", "true" (any case).
func ToBool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(val) {
		case "y", "yes", "active", "true":
			return true
		}
	}
	return false
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch obj := v.(type) {
	case Record:
		return obj, true
	case map[string]interface{}:
		return obj, true
	}
	return nil, false
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

// toNumber reports whether `v` is a JSON number and returns it as float64.
func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
