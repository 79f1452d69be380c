package listing

import (
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "asc"/"desc" (any case); anything else is Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

type (
	// FilterSpec is built per interaction and never mutated by View.
	FilterSpec struct {
		SearchText string                 `json:"searchText,omitempty"`
		Equals     map[string]interface{} `json:"equals,omitempty"`
		Fuzzy      bool                   `json:"fuzzy,omitempty"`
	}

	// ViewOptions declares how an entity type is searched and sorted.
	ViewOptions struct {
		SearchFields []string `json:"searchFields"`
		DateFields   []string `json:"dateFields,omitempty"`
	}
)

// IsEmpty reports whether the spec filters nothing out.
func (fs FilterSpec) IsEmpty() bool {
	if strings.TrimSpace(fs.SearchText) != "" {
		return false
	}
	for _, want := range fs.Equals {
		if !isBlank(want) {
			return false
		}
	}
	return true
}

// View returns the items matching `spec`, ordered by `sortKey` in `dir`.
// The input slice is left untouched; an empty sortKey keeps the input order.
func View(items []Record, spec FilterSpec, sortKey string, dir Direction, opts ViewOptions) []Record {
	search := strings.ToLower(strings.TrimSpace(spec.SearchText))

	res := make([]Record, 0, len(items))
	for _, item := range items {
		if !matchesEquals(item, spec.Equals) {
			continue
		}
		if search != "" && !matchesSearch(item, search, spec.Fuzzy, opts.SearchFields) {
			continue
		}
		res = append(res, item)
	}

	if sortKey == "" {
		return res
	}

	isDate := false
	for _, f := range opts.DateFields {
		if f == sortKey {
			isDate = true
			break
		}
	}

	cmp := func(a, b Record) int {
		if isDate {
			ta, tb := ParseDate(a.String(sortKey)), ParseDate(b.String(sortKey))
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			}
			return 0
		}
		return strings.Compare(strings.ToLower(a.String(sortKey)), strings.ToLower(b.String(sortKey)))
	}
	sort.SliceStable(res, func(i, j int) bool {
		if dir == Desc {
			return cmp(res[j], res[i]) < 0
		}
		return cmp(res[i], res[j]) < 0
	})
	return res
}

func matchesEquals(item Record, equals map[string]interface{}) bool {
	for field, want := range equals {
		if isBlank(want) {
			continue
		}
		got, ok := item.Get(field)
		if !ok || !matchValue(got, want) {
			return false
		}
	}
	return true
}

func matchValue(got, want interface{}) bool {
	raw, ok := want.(RawValue)
	if !ok {
		return strictEqual(got, want)
	}
	parsed := ParseValue(string(raw))
	if strictEqual(got, parsed) {
		return true
	}
	text, ok := got.(string)
	return ok && (text == string(raw) || text == stringify(parsed))
}

func matchesSearch(item Record, search string, useFuzzy bool, fields []string) bool {
	for _, field := range fields {
		value := item.String(field)
		if value == "" {
			continue
		}
		if useFuzzy {
			if fuzzy.MatchNormalizedFold(search, value) {
				return true
			}
		} else if strings.Contains(strings.ToLower(value), search) {
			return true
		}
	}
	return false
}

// strictEqual compares values of the same JSON kind; numbers compare numerically.
func strictEqual(got, want interface{}) bool {
	if gn, ok := toNumber(got); ok {
		wn, ok := toNumber(want)
		return ok && gn == wn
	}
	if _, ok := toNumber(want); ok {
		return false
	}
	return reflect.DeepEqual(got, want)
}

func isBlank(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case RawValue:
		return val == ""
	}
	return false
}

var numberRegex = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses the date formats the API emits. Missing or invalid dates are the Unix epoch.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Unix(0, 0).UTC()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if ms, err := strconv.ParseFloat(s, 64); err == nil {
		return time.UnixMilli(int64(ms)).UTC()
	}
	return time.Unix(0, 0).UTC()
}

// RawValue is an equality filter value as typed in a query string. It matches the JSON value
// ParseValue makes of it, and also a text field holding the same characters: "10" matches both
// 10 and "10", while `"10"` only matches the text.
type RawValue string

// ParseValue converts a textual filter value (e.g. from a query string) to the JSON value it denotes:
// true/false and null become booleans and nil, numbers become float64, a double-quoted value is
// the string inside the quotes, anything else is kept as is.
func ParseValue(s string) interface{} {
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		if unquoted, err := strconv.Unquote(s); err == nil {
			return unquoted
		}
		return s[1 : len(s)-1]
	}
	if numberRegex.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}
