package task

import (
	"time"

	"github.com/caseflow-hq/caseflow/modules/tasks/domain/access"
)

// Configuration is the evaluated decision-table output applied to a task
// at initiation and at reconfiguration. Zero-valued fields mean the
// decision table produced no value for that attribute.
type Configuration struct {
	Name        string
	Title       string
	Description string

	RoleCategory string
	WorkType     string

	MajorPriority *int
	MinorPriority *int
	PriorityDate  *time.Time
	DueDate       *time.Time

	Roles                []access.TaskRole
	AdditionalProperties map[string]string
}

// ApplyConfiguration merges cfg into the task. Absent attributes keep
// their previous value, so a partial decision-table outage degrades to
// stale data instead of wiped data.
func (t Task) ApplyConfiguration(cfg Configuration) Task {
	if cfg.Name != "" {
		t.Name = cfg.Name
	}
	if cfg.Title != "" {
		t.Title = cfg.Title
	}
	if cfg.Description != "" {
		t.Description = cfg.Description
	}
	if cfg.RoleCategory != "" {
		t.RoleCategory = cfg.RoleCategory
	}
	if cfg.WorkType != "" {
		t.WorkType = cfg.WorkType
	}
	if cfg.MajorPriority != nil {
		t.MajorPriority = *cfg.MajorPriority
	}
	if cfg.MinorPriority != nil {
		t.MinorPriority = *cfg.MinorPriority
	}
	if cfg.PriorityDate != nil {
		d := *cfg.PriorityDate
		t.PriorityDate = &d
	}
	if cfg.DueDate != nil {
		d := *cfg.DueDate
		t.DueDate = &d
	}
	if len(cfg.Roles) > 0 {
		t.Roles = append([]access.TaskRole(nil), cfg.Roles...)
	}
	if len(cfg.AdditionalProperties) > 0 {
		if t.AdditionalProperties == nil {
			t.AdditionalProperties = make(map[string]string, len(cfg.AdditionalProperties))
		} else {
			merged := make(map[string]string, len(t.AdditionalProperties)+len(cfg.AdditionalProperties))
			for k, v := range t.AdditionalProperties {
				merged[k] = v
			}
			t.AdditionalProperties = merged
		}
		for k, v := range cfg.AdditionalProperties {
			if v != "" {
				t.AdditionalProperties[k] = v
			}
		}
	}
	return t
}

// ApplyReconfiguration merges cfg and clears the pending reconfigure
// request.
func (t Task) ApplyReconfiguration(cfg Configuration, by string, now time.Time) (Task, HistoryRecord) {
	t = t.ApplyConfiguration(cfg)
	t.ReconfigureRequestTime = nil
	reconfiguredAt := now
	t.LastReconfiguredAt = &reconfiguredAt
	t = t.touched(ActionReconfigure, by, now)
	return t, t.record(ActionReconfigure, by, now)
}
