package listing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var facultyConf = Config{
	CategoryFields: []string{"department", "designation"},
	Sources: map[string][]string{
		"department":  {"department", "employmentDetails.department"},
		"designation": {"present_designation", "designation", "employmentDetails.designation"},
	},
	StatusField:      "status",
	AssociationField: "currently_associated",
}

func TestAggregate_countsAndScalars(t *testing.T) {
	items := []Record{
		{"department": "CS", "status": "ACTIVE"},
		{"department": "CS", "status": "ON_LEAVE"},
		{"department": "", "status": "Probation"},
	}
	snap := Aggregate(items, Config{CategoryFields: []string{"department"}, StatusField: "status"})

	assert.Equal(t, map[string]int{"CS": 2, "Unknown": 1}, snap.CountsByField["department"])
	assert.Equal(t, 1, snap.ScalarCounts[ScalarActive])
	assert.Equal(t, 1, snap.ScalarCounts[ScalarOnLeave])
	assert.Equal(t, 1, snap.ScalarCounts[ScalarProbation])
	assert.Equal(t, 3, snap.Total)
}

func TestAggregate_active(t *testing.T) {
	tests := []struct {
		name string
		item Record
		want int
	}{
		{name: "associated Y", item: Record{"currently_associated": "Y"}, want: 1},
		{name: "associated yes", item: Record{"currently_associated": "yes"}, want: 1},
		{name: "associated bool", item: Record{"currently_associated": true}, want: 1},
		{name: "status active", item: Record{"status": "active"}, want: 1},
		{name: "status ACTIVE, not associated", item: Record{"currently_associated": "N", "status": "ACTIVE"}, want: 1},
		{name: "associated, status inactive", item: Record{"currently_associated": "Y", "status": "INACTIVE"}, want: 1},
		{name: "neither", item: Record{"currently_associated": "N", "status": "RESIGNED"}, want: 0},
		{name: "status inactive is not active", item: Record{"status": "inactive"}, want: 0},
		{name: "nothing", item: Record{}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Aggregate([]Record{tt.item}, facultyConf)
			if got := snap.ScalarCounts[ScalarActive]; got != tt.want {
				t.Errorf("Aggregate() active = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestAggregate_sources(t *testing.T) {
	items := []Record{
		{"department": "Maths", "designation": "Lecturer"},
		{"employmentDetails": map[string]interface{}{"department": "Maths", "designation": "Professor"}},
		{"department": "  ", "present_designation": "Professor", "designation": "Lecturer"},
		{"department": nil},
	}
	snap := Aggregate(items, facultyConf)

	assert.Equal(t, map[string]int{"Maths": 2, "Unknown": 2}, snap.CountsByField["department"])
	assert.Equal(t, map[string]int{"Lecturer": 1, "Professor": 2, "Unknown": 1}, snap.CountsByField["designation"])
}

func TestAggregate_conservation(t *testing.T) {
	items := []Record{
		{"department": "CS"}, {"department": "EE"}, {"department": ""}, {"department": 12.0},
		{"department": "CS"}, {}, nil,
	}
	snap := Aggregate(items, facultyConf)

	for field, counts := range snap.CountsByField {
		sum := 0
		for _, n := range counts {
			sum += n
		}
		if sum != len(items) {
			t.Errorf("sum(countsByField[%s]) = %d; want %d", field, sum, len(items))
		}
	}
	assert.Equal(t, 1, snap.CountsByField["department"]["12"])
}

func TestAggregate_idempotent(t *testing.T) {
	items := []Record{
		{"department": "CS", "status": "ACTIVE"},
		{"department": "EE", "status": "On Leave"},
	}
	assert.Equal(t, Aggregate(items, facultyConf), Aggregate(items, facultyConf))
}

func TestAggregate_empty(t *testing.T) {
	snap := Aggregate(nil, facultyConf)

	assert.Equal(t, 0, snap.Total)
	assert.Empty(t, snap.CountsByField["department"])
	assert.Equal(t, map[string]int{ScalarActive: 0, ScalarOnLeave: 0, ScalarProbation: 0}, snap.ScalarCounts)
}

func TestAggregate_rules(t *testing.T) {
	conf := Config{
		CategoryFields: []string{"leave_type"},
		Rules: []Rule{
			{Name: "pending", Field: "status", Op: MatchEquals, Value: "PENDING"},
			{Name: "approved", Field: "status", Value: "approved"},
			{Name: "sick", Field: "leave_type", Op: MatchContains, Value: "sick"},
		},
	}
	items := []Record{
		{"leave_type": "Sick Leave", "status": "PENDING"},
		{"leave_type": "Casual", "status": "APPROVED"},
		{"leave_type": "sick", "status": "Rejected"},
	}
	snap := Aggregate(items, conf)

	assert.Equal(t, map[string]int{"pending": 1, "approved": 1, "sick": 2}, snap.ScalarCounts)
}

func TestAggregate_totals(t *testing.T) {
	conf := Config{SumFields: []string{"total_amount"}}
	items := []Record{
		{"total_amount": "1500.50"},
		{"total_amount": 499.5},
		{"total_amount": "n/a"},
		{},
	}
	snap := Aggregate(items, conf)

	want := decimal.RequireFromString("2000")
	if !snap.Totals["total_amount"].Equal(want) {
		t.Errorf("Aggregate() totals = %s; want %s", snap.Totals["total_amount"], want)
	}
}
