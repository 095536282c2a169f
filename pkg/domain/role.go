package domain

import dErrors "certflow/pkg/domain-errors"

// Role identifies what a user is allowed to do in the certification process.
// Invariant: the value must be one of the declared roles.
//
// Usage: construct via ParseRole at trust boundaries to enforce the allowlist;
// direct casting bypasses validation.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleOperator  Role = "operator"
	RoleInspector Role = "inspector"
	RoleAdmin     Role = "admin"
)

// validRoles is the single source of truth for valid roles.
var validRoles = map[Role]bool{
	RoleApplicant: true,
	RoleOperator:  true,
	RoleInspector: true,
	RoleAdmin:     true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeValidation when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid role")
	}
	return r, nil
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// IsStaff reports whether the role reviews applications (operator or admin).
// Admins inherit every operator permission.
func (r Role) IsStaff() bool {
	return r == RoleOperator || r == RoleAdmin
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}
