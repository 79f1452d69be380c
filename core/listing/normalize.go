package listing

import (
	"bytes"
	"encoding/json"
	"math"
)

// Page is a normalized list response.
// TotalCount is the server-side total and never less than len(Items).
type Page struct {
	Items      []Record `json:"items"`
	TotalCount int      `json:"totalCount"`
	Next       string   `json:"next,omitempty"`
	Previous   string   `json:"previous,omitempty"`
	// Paginated is set when the API paged the list: Items is then one page of it,
	// filtered and sorted by the API.
	Paginated bool `json:"paginated,omitempty"`
}

// maxTotalCount bounds the totals the API reports.
const maxTotalCount = math.MaxInt32

// Normalize accepts any of the list response shapes the API produces: a plain
// array, a paginated {"count", "results"} object or a wrapped {"data"} object.
// Anything else yields an empty page.
func Normalize(raw interface{}) Page {
	if items, ok := asSequence(raw); ok {
		return newPage(items, len(items))
	}

	obj, ok := asObject(raw)
	if !ok {
		return Page{Items: []Record{}}
	}

	if items, ok := asSequence(obj["results"]); ok {
		total := len(items)
		if n, ok := toNumber(obj["count"]); ok && !math.IsNaN(n) && !math.IsInf(n, 0) {
			total = int(math.Max(0, math.Min(n, maxTotalCount)))
		}
		page := newPage(items, total)
		page.Paginated = true
		page.Next, _ = obj["next"].(string)
		page.Previous, _ = obj["previous"].(string)
		return page
	}

	if items, ok := asSequence(obj["data"]); ok {
		return newPage(items, len(items))
	}

	return Page{Items: []Record{}}
}

// NormalizeJSON decodes a response body and normalizes it.
// Bodies that are not valid JSON yield an empty page.
func NormalizeJSON(body []byte) Page {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return Page{Items: []Record{}}
	}
	return Normalize(raw)
}

func newPage(items []Record, total int) Page {
	if total < len(items) {
		total = len(items)
	}
	return Page{Items: items, TotalCount: total}
}

func asSequence(v interface{}) ([]Record, bool) {
	switch seq := v.(type) {
	case []Record:
		items := make([]Record, len(seq))
		copy(items, seq)
		return items, true
	case []map[string]interface{}:
		items := make([]Record, len(seq))
		for i, obj := range seq {
			items[i] = obj
		}
		return items, true
	case []interface{}:
		items := make([]Record, len(seq))
		for i, el := range seq {
			if obj, ok := asObject(el); ok {
				items[i] = obj
			} else {
				items[i] = Record{}
			}
		}
		return items, true
	}
	return nil, false
}
