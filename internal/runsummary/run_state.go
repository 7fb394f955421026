package runsummary

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/chrometracing"
	"github.com/google/uuid"
	"github.com/mitchellh/cli"
)

// StepResult represents a single event in a flow: a step starting,
// finishing, being skipped, or being served from the output cache.
type StepResult struct {
	// Timestamp of this event
	Time time.Time
	// Duration of this event
	Duration time.Duration
	// Step which has just changed
	Label string
	// Its current status
	Status StepResultStatus
	// Error, only populated for failure statuses
	Err error
}

// StepResultStatus represents the status of a step when we log a result.
type StepResultStatus int

// The collection of expected step result statuses.
const (
	StepRunning StepResultStatus = iota
	StepSuccess
	StepCached
	StepSkipped
	StepFailed
)

func (s StepResultStatus) toString() string {
	switch s {
	case StepRunning:
		return "running"
	case StepSuccess:
		return "success"
	case StepCached:
		return "cached"
	case StepSkipped:
		return "skipped"
	case StepFailed:
		return "failed"
	}
	return ""
}

// StepState contains data about the state of a single step in a flow.
// Some fields are updated over time as the step executes and finishes.
type StepState struct {
	StartAt time.Time `json:"start"`

	Duration time.Duration `json:"duration"`

	Label string `json:"-"`

	Status string `json:"status"`

	Err error `json:"error"`
}

// RunState is the state of one entire flow invocation. Individual step
// state lives in the state map.
type RunState struct {
	mu      sync.Mutex
	state   map[string]*StepState
	order   []string
	Success int
	Failure int
	Cached  int
	Skipped int
	// Attempted counts every step that reached a terminal status other
	// than skipped.
	Attempted int

	// FlowID correlates every log line and trace event of one invocation.
	FlowID string

	startedAt time.Time

	profileFilename string
}

// NewRunState creates a RunState instance to track the steps of one flow.
// A non-empty tracingProfile turns on chrome-trace event collection; the
// trace is copied to that filename on Close.
func NewRunState(start time.Time, tracingProfile string) *RunState {
	if tracingProfile != "" {
		chrometracing.EnableTracing()
	}

	return &RunState{
		state:           make(map[string]*StepState),
		FlowID:          uuid.NewString(),
		startedAt:       start,
		profileFilename: tracingProfile,
	}
}

// Run marks the start of a single step. It returns a function to be called
// with the step's terminal status and, for failures, its error.
func (r *RunState) Run(label string) (func(outcome StepResultStatus, err error), *StepState) {
	start := time.Now()
	stepState := r.add(&StepResult{
		Time:   start,
		Label:  label,
		Status: StepRunning,
	})

	tracer := chrometracing.Event(label)

	tracerFn := func(outcome StepResultStatus, err error) {
		defer tracer.Done()
		now := time.Now()
		result := &StepResult{
			Time:     now,
			Duration: now.Sub(start),
			Label:    label,
			Status:   outcome,
		}
		if err != nil {
			result.Err = fmt.Errorf("running %v failed: %w", label, err)
		}
		r.add(result)
	}

	return tracerFn, stepState
}

func (r *RunState) add(result *StepResult) *StepState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.state[result.Label]; ok {
		s.Status = result.Status.toString()
		s.Err = result.Err
		s.Duration = result.Duration
	} else {
		r.state[result.Label] = &StepState{
			StartAt:  result.Time,
			Label:    result.Label,
			Status:   result.Status.toString(),
			Err:      result.Err,
			Duration: result.Duration,
		}
		r.order = append(r.order, result.Label)
	}
	switch result.Status {
	case StepFailed:
		r.Failure++
		r.Attempted++
	case StepCached:
		r.Cached++
		r.Attempted++
	case StepSuccess:
		r.Success++
		r.Attempted++
	case StepSkipped:
		r.Skipped++
	}

	return r.state[result.Label]
}

// Close finishes the flow's trace. The tracing file is written if
// applicable, and run stats are written to the terminal.
func (r *RunState) Close(terminal cli.Ui) error {
	if err := r.writeChrometracing(terminal); err != nil {
		terminal.Error(fmt.Sprintf("Error writing tracing data: %v", err))
	}

	if r.Attempted == 0 && r.Skipped == 0 {
		terminal.Output("")
		terminal.Warn("No steps were executed as part of this flow.")
	}
	bold := color.New(color.Bold).SprintfFunc()
	gray := color.New(color.Faint).SprintfFunc()
	green := color.New(color.Bold, color.FgGreen).SprintfFunc()
	terminal.Output("")
	terminal.Output(bold(" Steps:") + green("    %v successful", r.Success+r.Cached) + gray(", %v total", r.Attempted))
	terminal.Output(bold("Cached:    %v cached", r.Cached) + gray(", %v total", r.Attempted))
	terminal.Output(bold("  Time:    %v", time.Since(r.startedAt).Truncate(time.Millisecond)))
	terminal.Output("")
	return nil
}

// writeChrometracing copies the collected trace to the profile filename
// given at construction, when one was requested.
func (r *RunState) writeChrometracing(terminal cli.Ui) error {
	if r.profileFilename == "" {
		return nil
	}
	outputPath := chrometracing.Path()
	if outputPath == "" {
		// tracing wasn't enabled
		return nil
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(r.profileFilename, data, 0o644); err != nil {
		return err
	}
	terminal.Info(fmt.Sprintf("Wrote trace to %s", r.profileFilename))
	return nil
}
