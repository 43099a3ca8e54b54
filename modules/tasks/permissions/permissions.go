// Package permissions defines the task permission model. A TaskRole grants
// a set of permissions; lifecycle operations state their requirements in
// terms of these values.
package permissions

import "strings"

type Permission uint16

const (
	Read Permission = 1 << iota
	Own
	Execute
	Manage
	Cancel
	Complete
	CompleteOwn
	CancelOwn
	Claim
	Assign
	Unassign
	UnclaimAssign
)

var names = map[Permission]string{
	Read:          "Read",
	Own:           "Own",
	Execute:       "Execute",
	Manage:        "Manage",
	Cancel:        "Cancel",
	Complete:      "Complete",
	CompleteOwn:   "CompleteOwn",
	CancelOwn:     "CancelOwn",
	Claim:         "Claim",
	Assign:        "Assign",
	Unassign:      "Unassign",
	UnclaimAssign: "UnclaimAssign",
}

// All lists every defined permission in declaration order.
var All = []Permission{
	Read, Own, Execute, Manage, Cancel, Complete,
	CompleteOwn, CancelOwn, Claim, Assign, Unassign, UnclaimAssign,
}

func (p Permission) String() string {
	if name, ok := names[p]; ok {
		return name
	}
	return "Unknown"
}

// Parse returns the permission with the given name, matching the values
// produced by the decision-table service.
func Parse(name string) (Permission, bool) {
	for p, n := range names {
		if strings.EqualFold(n, name) {
			return p, true
		}
	}
	return 0, false
}

// Set is a permission bit-set.
type Set uint16

func NewSet(perms ...Permission) Set {
	var s Set
	for _, p := range perms {
		s |= Set(p)
	}
	return s
}

func (s Set) Has(p Permission) bool { return s&Set(p) != 0 }

func (s Set) With(p Permission) Set { return s | Set(p) }

func (s Set) Union(o Set) Set { return s | o }

func (s Set) Intersect(o Set) Set { return s & o }

func (s Set) IsEmpty() bool { return s == 0 }

func (s Set) Slice() []Permission {
	out := make([]Permission, 0, len(All))
	for _, p := range All {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s Set) String() string {
	parts := make([]string, 0, len(All))
	for _, p := range s.Slice() {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, ",")
}
