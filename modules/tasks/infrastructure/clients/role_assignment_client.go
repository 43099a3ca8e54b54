package clients

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caseflow-hq/caseflow/modules/tasks/domain/access"
)

// RoleAssignmentClient talks to the identity service that issues role
// assignments.
type RoleAssignmentClient struct {
	base *baseClient
}

func NewRoleAssignmentClient(baseURL string, timeout time.Duration, tokens TokenSource) (*RoleAssignmentClient, error) {
	base, err := newBaseClient(baseURL, timeout, tokens)
	if err != nil {
		return nil, err
	}
	return &RoleAssignmentClient{base: base}, nil
}

type roleAssignmentDTO struct {
	ActorID        string            `json:"actorId"`
	RoleName       string            `json:"roleName"`
	RoleType       string            `json:"roleType"`
	RoleCategory   string            `json:"roleCategory"`
	Classification string            `json:"classification"`
	GrantType      string            `json:"grantType"`
	Authorisations []string          `json:"authorisations"`
	BeginTime      *time.Time        `json:"beginTime"`
	EndTime        *time.Time        `json:"endTime"`
	Attributes     map[string]string `json:"attributes"`
}

type roleAssignmentsResponse struct {
	RoleAssignments []roleAssignmentDTO `json:"roleAssignmentResponse"`
}

func (c *RoleAssignmentClient) AssignmentsFor(ctx context.Context, actorID string) ([]access.RoleAssignment, error) {
	var resp roleAssignmentsResponse
	err := c.base.doJSON(ctx, http.MethodGet, "/am/role-assignments/actors/"+url.PathEscape(actorID), nil, nil, &resp)
	if err != nil {
		return nil, err
	}
	out := make([]access.RoleAssignment, 0, len(resp.RoleAssignments))
	for _, d := range resp.RoleAssignments {
		out = append(out, toRoleAssignment(d))
	}
	return out, nil
}

type candidatesResponse struct {
	Candidates []string `json:"candidates"`
}

func (c *RoleAssignmentClient) CandidatesFor(ctx context.Context, roleNames []string, jurisdiction string) ([]string, error) {
	q := url.Values{}
	q.Set("roles", strings.Join(roleNames, ","))
	q.Set("jurisdiction", jurisdiction)
	var resp candidatesResponse
	err := c.base.doJSON(ctx, http.MethodGet, "/am/role-assignments/candidates", q, nil, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Candidates, nil
}

func toRoleAssignment(d roleAssignmentDTO) access.RoleAssignment {
	attrs := make(map[access.Attribute]string, len(d.Attributes))
	for k, v := range d.Attributes {
		attrs[access.Attribute(k)] = v
	}
	return access.RoleAssignment{
		ActorID:        d.ActorID,
		RoleName:       d.RoleName,
		RoleType:       d.RoleType,
		RoleCategory:   d.RoleCategory,
		Classification: access.Classification(d.Classification),
		GrantType:      access.GrantType(d.GrantType),
		Authorisations: d.Authorisations,
		Begin:          d.BeginTime,
		End:            d.EndTime,
		Attributes:     attrs,
	}
}
