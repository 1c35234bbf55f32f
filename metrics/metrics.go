// Package metrics holds the label names shared by convoy's metric
// instruments, so dashboards can rely on consistent naming.
package metrics

const (
	LabelInstance = "instance"
	LabelJob      = "job"
	LabelStage    = "stage"
	LabelStep     = "step"
	LabelStrategy = "strategy"
	LabelSuccess  = "success"
)
