package entity

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/listing"
)

const (
	KindFaculty       = "faculty"
	KindDepartments   = "departments"
	KindLeaves        = "leaves"
	KindFeeStructures = "fee-structures"
	KindStudentFees   = "student-fees"
)

// Faculty members. Records come in two shapes (flat and nested under employmentDetails & co).
var Faculty = Definition{
	Kind:     KindFaculty,
	Title:    "Faculty",
	Endpoint: "/v1/faculty/api/faculty/",
	Aggregation: listing.Config{
		CategoryFields: []string{"department", "designation"},
		Sources: map[string][]string{
			"department":  {"department", "employmentDetails.department"},
			"designation": {"present_designation", "designation", "employmentDetails.designation"},
		},
		StatusField:      "status",
		AssociationField: "currently_associated",
	},
	View: listing.ViewOptions{
		SearchFields: []string{
			"name", "personalDetails.fullName", "first_name", "last_name",
			"email", "contactDetails.email", "employee_id", "apaar_faculty_id",
		},
		DateFields: []string{"date_of_joining", "created_at"},
	},
	FilterFields: []string{"department", "designation", "status"},
	DefaultSort:  "name",
	Columns: []Column{
		{Title: "Name", Field: "name"},
		{Title: "Employee ID", Field: "employee_id"},
		{Title: "Email", Field: "email"},
		{Title: "Department", Field: "department"},
		{Title: "Designation", Field: "designation"},
		{Title: "Status", Field: "status"},
		{Title: "Joined", Field: "date_of_joining"},
	},
}

var Departments = Definition{
	Kind:     KindDepartments,
	Title:    "Departments",
	Endpoint: "/v1/departments/",
	Aggregation: listing.Config{
		CategoryFields: []string{"department_type", "status"},
		Rules: []listing.Rule{
			{Name: "active", Field: "status", Op: listing.MatchEquals, Value: "ACTIVE"},
		},
	},
	View: listing.ViewOptions{
		SearchFields: []string{"name", "code", "head_of_department", "head_of_department.name", "head_of_department_name"},
		DateFields:   []string{"established_date", "created_at"},
	},
	FilterFields: []string{"status", "department_type"},
	DefaultSort:  "name",
	Columns: []Column{
		{Title: "Code", Field: "code"},
		{Title: "Name", Field: "name"},
		{Title: "Type", Field: "department_type"},
		{Title: "Head", Field: "head_of_department_name"},
		{Title: "Status", Field: "status"},
	},
}

var Leaves = Definition{
	Kind:     KindLeaves,
	Title:    "Leave applications",
	Endpoint: "/v1/faculty/api/leaves/",
	Aggregation: listing.Config{
		CategoryFields: []string{"leave_type", "status"},
		Rules: []listing.Rule{
			{Name: "pending", Field: "status", Op: listing.MatchEquals, Value: "PENDING"},
			{Name: "approved", Field: "status", Op: listing.MatchEquals, Value: "APPROVED"},
			{Name: "rejected", Field: "status", Op: listing.MatchEquals, Value: "REJECTED"},
		},
	},
	View: listing.ViewOptions{
		SearchFields: []string{"faculty_name", "faculty.name", "leave_type", "reason"},
		DateFields:   []string{"start_date", "end_date", "applied_on", "created_at"},
	},
	FilterFields: []string{"status", "leave_type"},
	DefaultSort:  "-start_date",
	Roles:        []string{core.RoleAdmin, core.RoleHR},
	Columns: []Column{
		{Title: "Faculty", Field: "faculty_name"},
		{Title: "Type", Field: "leave_type"},
		{Title: "From", Field: "start_date"},
		{Title: "To", Field: "end_date"},
		{Title: "Status", Field: "status"},
	},
}

var FeeStructures = Definition{
	Kind:     KindFeeStructures,
	Title:    "Fee structures",
	Endpoint: "/v1/fees/api/structures/",
	Aggregation: listing.Config{
		CategoryFields: []string{"academic_year", "grade_level"},
		Rules: []listing.Rule{
			{Name: "active", Field: "is_active", Op: listing.MatchEquals, Value: "true"},
		},
		SumFields: []string{"total_amount"},
	},
	View: listing.ViewOptions{
		SearchFields: []string{"name", "academic_year", "grade_level"},
		DateFields:   []string{"created_at"},
	},
	FilterFields: []string{"academic_year", "grade_level", "is_active"},
	DefaultSort:  "academic_year",
	Roles:        []string{core.RoleAdmin, core.RoleRegistrar},
	Columns: []Column{
		{Title: "Name", Field: "name"},
		{Title: "Academic year", Field: "academic_year"},
		{Title: "Grade level", Field: "grade_level"},
		{Title: "Total amount", Field: "total_amount"},
		{Title: "Active", Field: "is_active"},
	},
}

var StudentFees = Definition{
	Kind:     KindStudentFees,
	Title:    "Student fees",
	Endpoint: "/v1/fees/api/student-fees/",
	Aggregation: listing.Config{
		CategoryFields: []string{"status"},
		Rules: []listing.Rule{
			{Name: "paid", Field: "status", Op: listing.MatchEquals, Value: "PAID"},
			{Name: "overdue", Field: "status", Op: listing.MatchEquals, Value: "OVERDUE"},
		},
		SumFields: []string{"total_amount", "amount_paid"},
	},
	View: listing.ViewOptions{
		SearchFields: []string{"student_name", "student.name", "fee_structure_name"},
		DateFields:   []string{"due_date", "created_at"},
	},
	FilterFields: []string{"status"},
	DefaultSort:  "due_date",
	Roles:        []string{core.RoleAdmin, core.RoleRegistrar},
	Columns: []Column{
		{Title: "Student", Field: "student_name"},
		{Title: "Fee structure", Field: "fee_structure_name"},
		{Title: "Total", Field: "total_amount"},
		{Title: "Paid", Field: "amount_paid"},
		{Title: "Due", Field: "due_date"},
		{Title: "Status", Field: "status"},
	},
}

// Defaults returns the entity types the console ships with.
func Defaults() []Definition {
	return []Definition{Faculty, Departments, Leaves, FeeStructures, StudentFees}
}

// NewDefaultRegistry returns a registry holding Defaults().
func NewDefaultRegistry(validate *validator.Validate) (*Registry, error) {
	reg := NewRegistry()
	if err := reg.Register(validate, Defaults()...); err != nil {
		return nil, err
	}
	return reg, nil
}
