package clients

import (
	"context"
	"net/http"
	"time"

	"github.com/caseflow-hq/caseflow/modules/tasks/domain/access"
	"github.com/caseflow-hq/caseflow/modules/tasks/domain/task"
	"github.com/caseflow-hq/caseflow/modules/tasks/permissions"
	"github.com/caseflow-hq/caseflow/modules/tasks/services"
)

// ConfigurationClient calls the decision-table service that produces task
// configuration.
type ConfigurationClient struct {
	base *baseClient
}

func NewConfigurationClient(baseURL string, timeout time.Duration, tokens TokenSource) (*ConfigurationClient, error) {
	base, err := newBaseClient(baseURL, timeout, tokens)
	if err != nil {
		return nil, err
	}
	return &ConfigurationClient{base: base}, nil
}

type configureRequest struct {
	TaskType     string            `json:"taskType"`
	Jurisdiction string            `json:"jurisdiction"`
	CaseType     string            `json:"caseType"`
	CaseData     services.CaseData `json:"caseData"`
}

type taskRoleDTO struct {
	Name           string   `json:"name"`
	RoleCategory   string   `json:"roleCategory"`
	Permissions    []string `json:"permissions"`
	Authorisations []string `json:"authorisations"`
	AutoAssignable bool     `json:"autoAssignable"`
	Jurisdictions  []string `json:"jurisdictions"`
}

type configureResponse struct {
	Name                 string            `json:"name"`
	Title                string            `json:"title"`
	Description          string            `json:"description"`
	RoleCategory         string            `json:"roleCategory"`
	WorkType             string            `json:"workType"`
	MajorPriority        *int              `json:"majorPriority"`
	MinorPriority        *int              `json:"minorPriority"`
	PriorityDate         *time.Time        `json:"priorityDate"`
	DueDate              *time.Time        `json:"dueDate"`
	Roles                []taskRoleDTO     `json:"roles"`
	AdditionalProperties map[string]string `json:"additionalProperties"`
}

func (c *ConfigurationClient) Configure(ctx context.Context, taskType, jurisdiction, caseType string, caseData services.CaseData) (task.Configuration, error) {
	var resp configureResponse
	err := c.base.doJSON(ctx, http.MethodPost, "/task-configuration", nil, configureRequest{
		TaskType:     taskType,
		Jurisdiction: jurisdiction,
		CaseType:     caseType,
		CaseData:     caseData,
	}, &resp)
	if err != nil {
		return task.Configuration{}, err
	}
	return task.Configuration{
		Name:                 resp.Name,
		Title:                resp.Title,
		Description:          resp.Description,
		RoleCategory:         resp.RoleCategory,
		WorkType:             resp.WorkType,
		MajorPriority:        resp.MajorPriority,
		MinorPriority:        resp.MinorPriority,
		PriorityDate:         resp.PriorityDate,
		DueDate:              resp.DueDate,
		Roles:                toTaskRoles(resp.Roles),
		AdditionalProperties: resp.AdditionalProperties,
	}, nil
}

func toTaskRoles(dtos []taskRoleDTO) []access.TaskRole {
	if len(dtos) == 0 {
		return nil
	}
	out := make([]access.TaskRole, 0, len(dtos))
	for _, d := range dtos {
		var set permissions.Set
		for _, name := range d.Permissions {
			// Unknown permission names from newer decision tables are
			// ignored rather than failing the whole configuration.
			if p, ok := permissions.Parse(name); ok {
				set = set.With(p)
			}
		}
		out = append(out, access.TaskRole{
			Name:           d.Name,
			RoleCategory:   d.RoleCategory,
			Permissions:    set,
			Authorisations: d.Authorisations,
			AutoAssignable: d.AutoAssignable,
			Jurisdictions:  d.Jurisdictions,
		})
	}
	return out
}
