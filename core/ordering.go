package core

import "strings"

type Ordering struct {
	Field     string
	Ascending bool
}

// String renders the ordering the way the REST API expects it in `?ordering=`: "field" or "-field".
func (ord Ordering) String() string {
	if ord.Ascending {
		return ord.Field
	}
	return "-" + ord.Field
}

// ParseOrderings parses "-name,joining_date" into orderings; blank entries are skipped.
func ParseOrderings(s string) []Ordering {
	var res []Ordering
	for _, field := range SplitCSV(s) {
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = CleanString(field[1:]) // drop "-"
		}
		if field == "" {
			continue
		}
		res = append(res, Ordering{Field: field, Ascending: !descending})
	}
	return res
}

// JoinOrderings is the inverse of ParseOrderings.
func JoinOrderings(ords []Ordering) string {
	parts := make([]string, len(ords))
	for i, ord := range ords {
		parts[i] = ord.String()
	}
	return strings.Join(parts, ",")
}
