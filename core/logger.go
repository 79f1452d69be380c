package core

// Logger reports messages to the console and the error tracker.
// args may hold errors, map[string]interface{} extras and one Operator.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Console roles
const (
	RoleAdmin     = "admin:"
	RoleRegistrar = "admin:registrar"
	RoleHR        = "admin:hr"
	RoleViewer    = "viewer:"
)

var AllRoles = []string{RoleAdmin, RoleRegistrar, RoleHR, RoleViewer}

// Operator is the console user a request is made on behalf of.
type Operator struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// HasAnyRole reports whether the operator holds one of `roles`; an empty list allows everyone.
func (op Operator) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, want := range roles {
		for _, role := range op.Roles {
			if role == want {
				return true
			}
		}
	}
	return false
}
