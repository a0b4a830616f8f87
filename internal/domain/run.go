package domain

import "time"

// Trigger records why a run started.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerAuto   Trigger = "auto"
)

// Valid reports whether t is one of the known triggers.
func (t Trigger) Valid() bool {
	return t == TriggerManual || t == TriggerAuto
}

// RunResult carries the counters returned by the remote ingestion function.
type RunResult struct {
	RunID           string `json:"runId,omitempty"`
	FeedsProcessed  int    `json:"feedsProcessed"`
	StoriesCreated  int    `json:"storiesCreated"`
	StoriesMerged   int    `json:"storiesMerged"`
	TotalDurationMs int64  `json:"totalDurationMs"`
}

// NoNetChange is true when feeds were processed but nothing new came out.
func (r RunResult) NoNetChange() bool {
	return r.FeedsProcessed > 0 && r.StoriesCreated == 0 && r.StoriesMerged == 0
}

// RunOutcome is the settled result of a run.
type RunOutcome string

const (
	OutcomeSuccess  RunOutcome = "success"
	OutcomeUpToDate RunOutcome = "up_to_date"
	OutcomeFailed   RunOutcome = "failed"
)

// Succeeded reports whether the outcome arms the success cooldown.
func (o RunOutcome) Succeeded() bool {
	return o == OutcomeSuccess || o == OutcomeUpToDate
}

// RunPhase is the controller state machine position.
type RunPhase string

const (
	PhaseIdle           RunPhase = "idle"
	PhasePreflight      RunPhase = "preflight"
	PhaseSimulating     RunPhase = "simulating"
	PhaseAwaitingRemote RunPhase = "awaiting_remote"
	PhaseSettledSuccess RunPhase = "settled_success"
	PhaseSettledError   RunPhase = "settled_error"
)

// RunReport summarises one settled run.
type RunReport struct {
	AttemptID    string         `json:"attemptId"`
	Trigger      Trigger        `json:"trigger"`
	Outcome      RunOutcome     `json:"outcome"`
	Result       RunResult      `json:"result"`
	NoNewNews    bool           `json:"noNewNews"`
	Note         string         `json:"note,omitempty"`
	Description  string         `json:"description,omitempty"`
	ErrorKind    ErrorKind      `json:"errorKind,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	Err          error          `json:"-"`
	Steps        []PipelineStep `json:"steps"`
	Stories      []StoryPreview `json:"stories,omitempty"`
	StartedAt    time.Time      `json:"startedAt"`
	FinishedAt   time.Time      `json:"finishedAt"`
}

// Snapshot is a read-only copy of the controller state.
type Snapshot struct {
	Phase        RunPhase       `json:"phase"`
	Running      bool           `json:"running"`
	Trigger      Trigger        `json:"trigger,omitempty"`
	Steps        []PipelineStep `json:"steps"`
	Progress     int            `json:"progress"`
	Stats        RunResult      `json:"stats"`
	NoNewNews    bool           `json:"noNewNews"`
	Note         string         `json:"note,omitempty"`
	Description  string         `json:"description,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	Stories      []StoryPreview `json:"stories,omitempty"`
	StartedAt    time.Time      `json:"startedAt,omitzero"`
	SettledAt    time.Time      `json:"settledAt,omitzero"`
}
