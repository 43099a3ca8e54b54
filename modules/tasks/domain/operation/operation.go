// Package operation defines the bulk task operation model: a filter-driven
// batch request and the report its run produces. Operations are ephemeral;
// they are constructed per invocation and never persisted beyond the run
// log and the history records their mutations leave behind.
package operation

import "github.com/google/uuid"

type Kind string

const (
	KindMarkToReconfigure          Kind = "MARK_TO_RECONFIGURE"
	KindExecuteReconfigure         Kind = "EXECUTE_RECONFIGURE"
	KindExecuteReconfigureFailures Kind = "EXECUTE_RECONFIGURE_FAILURES"
)

func (k Kind) Valid() bool {
	switch k {
	case KindMarkToReconfigure, KindExecuteReconfigure, KindExecuteReconfigureFailures:
		return true
	default:
		return false
	}
}

type FilterOperator string

const (
	OperatorIn    FilterOperator = "IN"
	OperatorAfter FilterOperator = "AFTER"
)

// Filter narrows the tasks an operation applies to.
type Filter struct {
	Key      string
	Operator FilterOperator
	Values   []string
}

func In(key string, values ...string) Filter {
	return Filter{Key: key, Operator: OperatorIn, Values: values}
}

func After(key, value string) Filter {
	return Filter{Key: key, Operator: OperatorAfter, Values: []string{value}}
}

// Operation is a unit of bulk work.
type Operation struct {
	Kind  Kind
	RunID uuid.UUID
	// MaxTasks caps how many tasks a single run may process; zero means
	// no cap.
	MaxTasks int
	// RetryWindowHours shifts the pending-since cutoff into the past so
	// freshly marked tasks are left for a later run.
	RetryWindowHours int64
	Filters          []Filter
}

func New(kind Kind, filters ...Filter) Operation {
	return Operation{Kind: kind, RunID: uuid.New(), Filters: filters}
}

// TaskFailure is one task the run could not handle, with the reason kept
// for operator alerting.
type TaskFailure struct {
	TaskID string
	Reason string
}

// Result is the report of one run.
type Result struct {
	RunID     uuid.UUID
	Kind      Kind
	Processed int
	Skipped   int
	// Outstanding lists tasks the run saw but did not touch (cap or time
	// budget reached, or still pending in a failures scan).
	Outstanding []string
	Failures    []TaskFailure
}

func (r Result) FailedTaskIDs() []string {
	out := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, f.TaskID)
	}
	return out
}
