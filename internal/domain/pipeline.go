package domain

import "math"

// StepID names one stage of the ingestion display sequence.
type StepID string

const (
	StepFetch    StepID = "fetch"
	StepExtract  StepID = "extract"
	StepStrip    StepID = "strip"
	StepDecode   StepID = "decode"
	StepValidate StepID = "validate"
	StepClassify StepID = "classify"
	StepDedupe   StepID = "dedupe"
	StepCluster  StepID = "cluster"
	StepScore    StepID = "score"
	StepPersist  StepID = "persist"
	StepComplete StepID = "complete"
)

// StepStatus enumerates the display state of a single step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
)

// PipelineStep is one row of the run display.
type PipelineStep struct {
	ID          StepID     `json:"id"`
	DisplayName string     `json:"displayName"`
	Status      StepStatus `json:"status"`
	DurationMs  int64      `json:"durationMs,omitempty"`
	Count       *int       `json:"count,omitempty"`
}

var stepOrder = []PipelineStep{
	{ID: StepFetch, DisplayName: "Fetch RSS"},
	{ID: StepExtract, DisplayName: "Extract"},
	{ID: StepStrip, DisplayName: "Strip HTML"},
	{ID: StepDecode, DisplayName: "Decode entities"},
	{ID: StepValidate, DisplayName: "Validate"},
	{ID: StepClassify, DisplayName: "Classify"},
	{ID: StepDedupe, DisplayName: "Deduplicate"},
	{ID: StepCluster, DisplayName: "Cluster"},
	{ID: StepScore, DisplayName: "Score"},
	{ID: StepPersist, DisplayName: "Persist"},
	{ID: StepComplete, DisplayName: "Complete"},
}

// LeadingSteps run before the remote call; TrailingSteps after it.
var (
	LeadingSteps  = []StepID{StepFetch, StepExtract, StepStrip, StepDecode, StepValidate}
	TrailingSteps = []StepID{StepDedupe, StepCluster, StepScore, StepPersist, StepComplete}
)

// NewSteps returns the full step list with every step pending.
func NewSteps() []PipelineStep {
	steps := make([]PipelineStep, len(stepOrder))
	copy(steps, stepOrder)
	for i := range steps {
		steps[i].Status = StepPending
	}
	return steps
}

// StepCount is the size of the fixed step sequence.
func StepCount() int {
	return len(stepOrder)
}

// Progress returns the rounded percentage of completed steps.
func Progress(steps []PipelineStep) int {
	if len(steps) == 0 {
		return 0
	}
	completed := 0
	for _, step := range steps {
		if step.Status == StepCompleted {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(len(steps)) * 100))
}

// CloneSteps deep-copies a step list so callers cannot mutate controller state.
func CloneSteps(steps []PipelineStep) []PipelineStep {
	out := make([]PipelineStep, len(steps))
	for i, step := range steps {
		out[i] = step
		if step.Count != nil {
			c := *step.Count
			out[i].Count = &c
		}
	}
	return out
}
