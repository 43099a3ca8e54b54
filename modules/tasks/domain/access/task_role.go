package access

import "github.com/caseflow-hq/caseflow/modules/tasks/permissions"

// TaskRole is a per-task authorization descriptor. TaskRoles are owned by
// their task and replaced whenever its configuration is (re-)derived.
type TaskRole struct {
	Name           string
	RoleCategory   string
	Permissions    permissions.Set
	Authorisations []string
	AutoAssignable bool
	Jurisdictions  []string
}

// AppliesTo reports whether the role is scoped to the given jurisdiction.
// A role without jurisdiction scoping applies everywhere.
func (r TaskRole) AppliesTo(jurisdiction string) bool {
	if len(r.Jurisdictions) == 0 {
		return true
	}
	for _, j := range r.Jurisdictions {
		if j == jurisdiction {
			return true
		}
	}
	return false
}
