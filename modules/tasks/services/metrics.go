package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	taskTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "caseflow",
		Subsystem: "tasks",
		Name:      "transitions_total",
		Help:      "Total number of task state transitions broken down by action and outcome.",
	}, []string{"action", "outcome"})

	taskPermissionDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "caseflow",
		Subsystem: "tasks",
		Name:      "permission_denials_total",
		Help:      "Total number of permission denials broken down by action.",
	}, []string{"action"})

	operationTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "caseflow",
		Subsystem: "operations",
		Name:      "tasks_total",
		Help:      "Total number of tasks touched by bulk operations broken down by kind and result.",
	}, []string{"kind", "result"})

	notifierAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "caseflow",
		Subsystem: "notifier",
		Name:      "attempts_total",
		Help:      "Total number of process engine notification attempts broken down by result.",
	}, []string{"result"})
)

func recordTransition(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	taskTransitions.WithLabelValues(action, outcome).Inc()
}

func recordPermissionDenial(action string) {
	taskPermissionDenials.WithLabelValues(action).Inc()
}

func recordOperationTask(kind, result string) {
	operationTasks.WithLabelValues(kind, result).Inc()
}

func recordNotifierAttempt(ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	notifierAttempts.WithLabelValues(result).Inc()
}
