package access

import (
	"strings"

	"github.com/caseflow-hq/caseflow/modules/tasks/permissions"
)

// Requirement is one unit of "what is needed": a permission, optionally
// constrained to grants carrying one of the listed authorisations.
type Requirement struct {
	Permission     permissions.Permission
	Authorisations []string
}

func Require(p permissions.Permission) Requirement {
	return Requirement{Permission: p}
}

func (r Requirement) WithAuthorisations(auths ...string) Requirement {
	r.Authorisations = auths
	return r
}

type Operator string

const (
	OperatorOr  Operator = "OR"
	OperatorAnd Operator = "AND"
)

// Requirements combines individual requirements: with OperatorOr a single
// satisfied requirement suffices, with OperatorAnd all must hold.
type Requirements struct {
	Operator     Operator
	Requirements []Requirement
}

// RequireAny builds an OR requirement over the given permissions.
func RequireAny(perms ...permissions.Permission) Requirements {
	reqs := make([]Requirement, 0, len(perms))
	for _, p := range perms {
		reqs = append(reqs, Require(p))
	}
	return Requirements{Operator: OperatorOr, Requirements: reqs}
}

// RequireAll builds an AND requirement over the given permissions.
func RequireAll(perms ...permissions.Permission) Requirements {
	reqs := make([]Requirement, 0, len(perms))
	for _, p := range perms {
		reqs = append(reqs, Require(p))
	}
	return Requirements{Operator: OperatorAnd, Requirements: reqs}
}

// Combine builds a requirements tree from explicit requirement values.
func Combine(op Operator, reqs ...Requirement) Requirements {
	return Requirements{Operator: op, Requirements: reqs}
}

func (r Requirements) String() string {
	parts := make([]string, 0, len(r.Requirements))
	for _, req := range r.Requirements {
		parts = append(parts, req.Permission.String())
	}
	return strings.Join(parts, " "+string(r.Operator)+" ")
}
