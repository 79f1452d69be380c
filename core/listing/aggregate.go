package listing

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	UnknownValue = "Unknown"

	ScalarActive    = "active"
	ScalarOnLeave   = "onLeave"
	ScalarProbation = "probation"
)

type MatchOp string

const (
	MatchEquals   MatchOp = "equals"
	MatchContains MatchOp = "contains"
)

type (
	// Rule counts the items whose `Field` matches `Value` (case-insensitive).
	Rule struct {
		Name  string  `json:"name" validate:"required"`
		Field string  `json:"field" validate:"required"`
		Op    MatchOp `json:"op" validate:"omitempty,oneof=equals contains"`
		Value string  `json:"value"`
	}

	// Config declares which fields an entity type is summarized by.
	// Sources lists, per category, the field paths read in order; a category without sources reads itself.
	// Empty StatusField and AssociationField disable the built-in scalars.
	Config struct {
		CategoryFields   []string            `json:"categoryFields"`
		Sources          map[string][]string `json:"sources,omitempty"`
		StatusField      string              `json:"statusField,omitempty"`
		AssociationField string              `json:"associationField,omitempty"`
		Rules            []Rule              `json:"rules,omitempty" validate:"dive"`
		SumFields        []string            `json:"sumFields,omitempty"`
	}

	// Snapshot is derived from a list of items; it is recomputed, never updated.
	Snapshot struct {
		Total         int                        `json:"total"`
		CountsByField map[string]map[string]int  `json:"countsByField"`
		ScalarCounts  map[string]int             `json:"scalarCounts"`
		Totals        map[string]decimal.Decimal `json:"totals,omitempty"`
	}
)

func (c Config) sources(field string) []string {
	if paths := c.Sources[field]; len(paths) > 0 {
		return paths
	}
	return []string{field}
}

func (c Config) hasStatusScalars() bool {
	return c.StatusField != "" || c.AssociationField != ""
}

// Aggregate computes counts by category and the scalar counters over `items`.
// For every category field the counts sum to len(items).
func Aggregate(items []Record, conf Config) Snapshot {
	snap := Snapshot{
		Total:         len(items),
		CountsByField: make(map[string]map[string]int, len(conf.CategoryFields)),
		ScalarCounts:  make(map[string]int),
	}
	for _, field := range conf.CategoryFields {
		snap.CountsByField[field] = make(map[string]int)
	}
	if conf.hasStatusScalars() {
		snap.ScalarCounts[ScalarActive] = 0
		snap.ScalarCounts[ScalarOnLeave] = 0
		snap.ScalarCounts[ScalarProbation] = 0
	}
	for _, rule := range conf.Rules {
		snap.ScalarCounts[rule.Name] = 0
	}
	if len(conf.SumFields) > 0 {
		snap.Totals = make(map[string]decimal.Decimal, len(conf.SumFields))
		for _, field := range conf.SumFields {
			snap.Totals[field] = decimal.Zero
		}
	}

	for _, item := range items {
		for _, field := range conf.CategoryFields {
			value := item.FirstString(conf.sources(field)...)
			if value == "" {
				value = UnknownValue
			}
			snap.CountsByField[field][value]++
		}

		if conf.hasStatusScalars() {
			status := strings.ToLower(strings.TrimSpace(item.String(conf.StatusField)))
			var associated interface{}
			if conf.AssociationField != "" {
				associated, _ = item.Get(conf.AssociationField)
			}
			if ToBool(associated) || status == "active" {
				snap.ScalarCounts[ScalarActive]++
			}
			if strings.Contains(status, "leave") {
				snap.ScalarCounts[ScalarOnLeave]++
			}
			if strings.Contains(status, "probation") {
				snap.ScalarCounts[ScalarProbation]++
			}
		}

		for _, rule := range conf.Rules {
			if rule.matches(item) {
				snap.ScalarCounts[rule.Name]++
			}
		}

		for _, field := range conf.SumFields {
			snap.Totals[field] = snap.Totals[field].Add(toDecimal(item.String(field)))
		}
	}
	return snap
}

func (r Rule) matches(item Record) bool {
	got := strings.ToLower(strings.TrimSpace(item.String(r.Field)))
	want := strings.ToLower(r.Value)
	if r.Op == MatchContains {
		return strings.Contains(got, want)
	}
	return got == want
}

// toDecimal parses amounts leniently; unparsable values count as zero.
func toDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
