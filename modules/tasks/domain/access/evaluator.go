package access

import (
	"time"

	"github.com/caseflow-hq/caseflow/modules/tasks/permissions"
)

// Snapshot is the task-side view the engine matches assignments against.
// Callers build it from the task and its case data; evaluation itself is
// pure and deterministic.
type Snapshot struct {
	TaskID           string
	CaseID           string
	CaseType         string
	Jurisdiction     string
	Region           string
	Location         string
	Classification   Classification
	AccessCategories []string
	Roles            []TaskRole
}

func (s Snapshot) roleByName(name string) (TaskRole, bool) {
	for _, r := range s.Roles {
		if r.Name == name {
			return r, true
		}
	}
	return TaskRole{}, false
}

func (s Snapshot) hasAccessCategory(auth string) bool {
	for _, c := range s.AccessCategories {
		if c == auth {
			return true
		}
	}
	return false
}

// Evaluate reports whether the given role assignments satisfy the
// requirements for the task described by snap at the given instant.
func Evaluate(now time.Time, assignments []RoleAssignment, reqs Requirements, snap Snapshot) bool {
	matching := matchingAssignments(now, assignments, snap)
	if len(matching) == 0 {
		return false
	}

	switch reqs.Operator {
	case OperatorAnd:
		for _, req := range reqs.Requirements {
			if !satisfied(req, matching, snap) {
				return false
			}
		}
		return len(reqs.Requirements) > 0
	default:
		for _, req := range reqs.Requirements {
			if satisfied(req, matching, snap) {
				return true
			}
		}
		return false
	}
}

// PermissionsFor returns the union of permissions granted by all
// non-excluded matching assignments.
func PermissionsFor(now time.Time, assignments []RoleAssignment, snap Snapshot) permissions.Set {
	var set permissions.Set
	for _, ra := range matchingAssignments(now, assignments, snap) {
		if role, ok := snap.roleByName(ra.RoleName); ok {
			set = set.Union(role.Permissions)
		}
	}
	return set
}

func satisfied(req Requirement, matching []RoleAssignment, snap Snapshot) bool {
	for _, ra := range matching {
		role, ok := snap.roleByName(ra.RoleName)
		if !ok {
			continue
		}
		if !role.Permissions.Has(req.Permission) {
			continue
		}
		if len(req.Authorisations) == 0 {
			return true
		}
		for _, auth := range req.Authorisations {
			if ra.hasAuthorisation(auth) {
				return true
			}
		}
	}
	return false
}

// matchingAssignments filters to assignments that are active, scoped onto
// the task and not voided by an exclusion. An EXCLUDED grant covering the
// task voids every other grant held by the same actor.
func matchingAssignments(now time.Time, assignments []RoleAssignment, snap Snapshot) []RoleAssignment {
	excluded := map[string]struct{}{}
	for _, ra := range assignments {
		if ra.GrantType != GrantExcluded || !ra.ActiveAt(now) {
			continue
		}
		if excludedCovers(ra, snap) {
			excluded[ra.ActorID] = struct{}{}
		}
	}

	out := make([]RoleAssignment, 0, len(assignments))
	for _, ra := range assignments {
		if ra.GrantType == GrantExcluded {
			continue
		}
		if _, void := excluded[ra.ActorID]; void {
			continue
		}
		if !ra.ActiveAt(now) {
			continue
		}
		if !ra.Classification.Covers(snap.Classification) {
			continue
		}
		role, ok := snap.roleByName(ra.RoleName)
		if !ok || !role.AppliesTo(snap.Jurisdiction) {
			continue
		}
		if matchesGrant(ra, snap) {
			out = append(out, ra)
		}
	}
	return out
}

// matchesGrant dispatches on the closed grant-type enum; one match rule
// per variant.
func matchesGrant(ra RoleAssignment, snap Snapshot) bool {
	switch ra.GrantType {
	case GrantStandard, GrantOrganisation:
		return matchStandard(ra, snap)
	case GrantSpecific:
		return matchSpecific(ra, snap)
	case GrantChallenged:
		return matchChallenged(ra, snap)
	default:
		return false
	}
}

// matchStandard: every scoping attribute present on the assignment must
// agree with the task.
func matchStandard(ra RoleAssignment, snap Snapshot) bool {
	if v, ok := ra.Attribute(AttrJurisdiction); ok && v != snap.Jurisdiction {
		return false
	}
	if v, ok := ra.Attribute(AttrRegion); ok && v != snap.Region {
		return false
	}
	if v, ok := ra.Attribute(AttrLocation); ok && v != snap.Location {
		return false
	}
	if v, ok := ra.Attribute(AttrBaseLocation); ok && v != snap.Location {
		return false
	}
	if v, ok := ra.Attribute(AttrCaseType); ok && v != snap.CaseType {
		return false
	}
	return true
}

// matchSpecific: scoped to exactly one case.
func matchSpecific(ra RoleAssignment, snap Snapshot) bool {
	v, ok := ra.Attribute(AttrCaseID)
	return ok && v == snap.CaseID
}

// matchChallenged: case type and jurisdiction must agree and the grant
// must carry an authorisation present in the case's access categories.
func matchChallenged(ra RoleAssignment, snap Snapshot) bool {
	if v, ok := ra.Attribute(AttrJurisdiction); ok && v != snap.Jurisdiction {
		return false
	}
	if v, ok := ra.Attribute(AttrCaseType); ok && v != snap.CaseType {
		return false
	}
	for _, auth := range ra.Authorisations {
		if snap.hasAccessCategory(auth) {
			return true
		}
	}
	return false
}

// excludedCovers: an exclusion names a case, or failing that a
// jurisdiction, that the actor must not touch.
func excludedCovers(ra RoleAssignment, snap Snapshot) bool {
	if v, ok := ra.Attribute(AttrCaseID); ok {
		return v == snap.CaseID
	}
	if v, ok := ra.Attribute(AttrJurisdiction); ok {
		return v == snap.Jurisdiction
	}
	return false
}
