package access

import "time"

// GrantType is the scoping rule that decides how a role assignment's
// attributes must relate to a task to grant access.
type GrantType string

const (
	GrantStandard     GrantType = "STANDARD"
	GrantSpecific     GrantType = "SPECIFIC"
	GrantChallenged   GrantType = "CHALLENGED"
	GrantExcluded     GrantType = "EXCLUDED"
	GrantOrganisation GrantType = "ORGANISATION"
)

// Classification is the sensitivity label gating visibility independent of
// grant type. Higher classifications may see lower ones.
type Classification string

const (
	ClassificationPublic     Classification = "PUBLIC"
	ClassificationPrivate    Classification = "PRIVATE"
	ClassificationRestricted Classification = "RESTRICTED"
)

func (c Classification) rank() int {
	switch c {
	case ClassificationPublic:
		return 0
	case ClassificationPrivate:
		return 1
	case ClassificationRestricted:
		return 2
	default:
		return -1
	}
}

// Covers reports whether a grant with classification c may see data
// classified as other. An empty classification on either side is treated
// as public.
func (c Classification) Covers(other Classification) bool {
	cr := c.rank()
	or := other.rank()
	if cr < 0 {
		cr = 0
	}
	if or < 0 {
		or = 0
	}
	return cr >= or
}

// Attribute keys scoping a role assignment.
type Attribute string

const (
	AttrJurisdiction    Attribute = "jurisdiction"
	AttrCaseType        Attribute = "caseType"
	AttrCaseID          Attribute = "caseId"
	AttrRegion          Attribute = "region"
	AttrLocation        Attribute = "location"
	AttrBaseLocation    Attribute = "baseLocation"
	AttrPrimaryLocation Attribute = "primaryLocation"
)

// RoleAssignment is a user's grant as issued by the identity service.
// Read-only input to the permission engine.
type RoleAssignment struct {
	ActorID        string
	RoleName       string
	RoleType       string
	RoleCategory   string
	Classification Classification
	GrantType      GrantType
	Authorisations []string
	Begin          *time.Time
	End            *time.Time
	Attributes     map[Attribute]string
}

// ActiveAt reports whether the assignment is valid at the given instant.
// The begin bound is inclusive, the end bound exclusive.
func (ra RoleAssignment) ActiveAt(now time.Time) bool {
	if ra.Begin != nil && now.Before(*ra.Begin) {
		return false
	}
	if ra.End != nil && !now.Before(*ra.End) {
		return false
	}
	return true
}

// Attribute returns a scoping attribute, with ok=false when absent or empty.
func (ra RoleAssignment) Attribute(key Attribute) (string, bool) {
	v, ok := ra.Attributes[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (ra RoleAssignment) hasAuthorisation(auth string) bool {
	for _, a := range ra.Authorisations {
		if a == auth {
			return true
		}
	}
	return false
}
