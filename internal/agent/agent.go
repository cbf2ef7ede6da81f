// Package agent drives the observe, decide and act loop for one browser run.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/v0xg/pagepilot/internal/action"
	"github.com/v0xg/pagepilot/internal/ai"
	"github.com/v0xg/pagepilot/internal/crawler"
	"github.com/v0xg/pagepilot/internal/recorder"
	"go.uber.org/zap"
)

// DefaultMaxSteps bounds a run that never reports Done.
const DefaultMaxSteps = 15

// Observer captures page state and screenshots
type Observer interface {
	Observe(ctx context.Context) (*crawler.Observation, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Executor applies an action parsed against obs to the live page
type Executor interface {
	Execute(ctx context.Context, a action.Action, obs *crawler.Observation) error
}

// Annotator draws element boxes and ids onto a screenshot
type Annotator interface {
	Annotate(raw []byte, elements []crawler.ElementDescriptor) []byte
}

// Goal is what a run is asked to accomplish.
type Goal struct {
	TargetURL   string
	Instruction string
}

// State is the loop's position in its lifecycle
type State int

const (
	StateInitializing State = iota
	StateStepping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateStepping:
		return "stepping"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Reason explains why a run terminated.
type Reason string

const (
	ReasonDone             Reason = "done"
	ReasonStepLimitReached Reason = "step_limit_reached"
	ReasonAborted          Reason = "aborted"
)

// Result is the handoff produced when the loop terminates.
type Result struct {
	Goal          Goal
	Reason        Reason
	Steps         int
	Frames        int
	Summary       string
	VideoFilename string
	Transcript    *ai.Conversation
}

// Handoff is the persisted form of a finished run
type Handoff struct {
	Transcript    *ai.Conversation `json:"transcript"`
	VideoFilename string           `json:"video_filename"`
}

func (r *Result) Handoff() Handoff {
	return Handoff{Transcript: r.Transcript, VideoFilename: r.VideoFilename}
}

// Options tunes the loop
type Options struct {
	MaxSteps  int
	VideoName string // defaults to run-<uuid>.gif
}

// Agent owns the conversation and frame buffer of exactly one run.
type Agent struct {
	observer  Observer
	executor  Executor
	annotator Annotator
	decider   ai.Decider
	recorder  *recorder.Recorder
	opts      Options
	state     State
	logger    *zap.Logger
}

// New wires the loop's collaborators
func New(observer Observer, executor Executor, annotator Annotator, decider ai.Decider, rec *recorder.Recorder, opts Options, logger *zap.Logger) *Agent {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.VideoName == "" {
		opts.VideoName = fmt.Sprintf("run-%s.gif", uuid.NewString())
	}
	return &Agent{
		observer:  observer,
		executor:  executor,
		annotator: annotator,
		decider:   decider,
		recorder:  rec,
		opts:      opts,
		state:     StateInitializing,
		logger:    logger.Named("agent"),
	}
}

// State reports where the loop is
func (a *Agent) State() State {
	return a.state
}

func (a *Agent) transition(s State) {
	a.logger.Debug("state", zap.Stringer("from", a.state), zap.Stringer("to", s))
	a.state = s
}

// Run steps until the model answers Done or MaxSteps steps have been taken.
// On any error the partial result is returned alongside it with ReasonAborted.
func (a *Agent) Run(ctx context.Context, goal Goal) (*Result, error) {
	if a.state != StateInitializing {
		return nil, errors.New("agent already ran")
	}

	res := &Result{Goal: goal, Transcript: &ai.Conversation{}}
	res.Transcript.Append(
		ai.Message{Role: ai.RoleSystem, Content: ai.SystemPrompt},
		ai.Message{Role: ai.RoleUser, Content: ai.TaskPrompt(goal.Instruction)},
	)

	a.logger.Info("starting run",
		zap.String("url", goal.TargetURL),
		zap.String("instruction", goal.Instruction),
		zap.Int("max_steps", a.opts.MaxSteps))
	if err := a.recorder.Logf(ctx, "Starting task: %s", goal.Instruction); err != nil {
		return a.abort(res, err)
	}

	a.transition(StateStepping)

	// next holds the post-action observation the following step decides on.
	var next *crawler.Observation
	for res.Steps < a.opts.MaxSteps {
		if err := ctx.Err(); err != nil {
			return a.abort(res, err)
		}
		res.Steps++

		obs := next
		next = nil
		if obs == nil {
			var err error
			if obs, err = a.observer.Observe(ctx); err != nil {
				return a.abort(res, fmt.Errorf("observe page: %w", err))
			}
		}

		act, err := a.step(ctx, res, obs)
		if err != nil {
			return a.abort(res, err)
		}
		if act == nil {
			continue
		}

		if done, ok := act.(action.Done); ok {
			res.Reason = ReasonDone
			res.Summary = done.Summary
			return a.finish(ctx, res)
		}

		if err := a.executor.Execute(ctx, act, obs); err != nil {
			a.logger.Warn("action failed",
				zap.Int("step", res.Steps),
				zap.Stringer("action", act),
				zap.Error(err))
			if err := a.recorder.Logf(ctx, "Action failed: %v", err); err != nil {
				return a.abort(res, err)
			}
		}

		// Re-observe so the next decision sees the page after this action.
		if next, err = a.observer.Observe(ctx); err != nil {
			a.logger.Warn("re-observe failed", zap.Int("step", res.Steps), zap.Error(err))
			next = nil
		}
	}

	res.Reason = ReasonStepLimitReached
	return a.finish(ctx, res)
}

// step records the observation, asks for a decision and parses it. A nil
// action with a nil error means the reply named no valid action.
func (a *Agent) step(ctx context.Context, res *Result, obs *crawler.Observation) (action.Action, error) {
	raw, err := a.observer.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	if err := a.recorder.AddFrame(raw); err != nil {
		return nil, err
	}
	res.Frames = a.recorder.Len()

	annotated := a.annotator.Annotate(raw, obs.Elements)
	if err := a.recorder.Frame(ctx, annotated); err != nil {
		return nil, err
	}

	state, err := json.Marshal(obs)
	if err != nil {
		return nil, fmt.Errorf("encode observation: %w", err)
	}
	res.Transcript.Append(ai.Message{
		Role:     ai.RoleUser,
		Content:  string(state),
		Image:    annotated,
		ImageRef: fmt.Sprintf("step-%d", res.Steps),
	})

	d, err := a.decider.Decide(ctx, res.Transcript.Messages())
	if err != nil {
		return nil, fmt.Errorf("decide step %d: %w", res.Steps, err)
	}
	res.Transcript.Append(ai.Message{Role: ai.RoleAssistant, Content: d.Raw})

	if err := a.recorder.Logf(ctx, "Thinking: %s", d.Thinking); err != nil {
		return nil, err
	}
	if err := a.recorder.Logf(ctx, "Chose action: %s", d.Action); err != nil {
		return nil, err
	}

	act, ok := action.Parse(d.Action, obs)
	if !ok {
		a.logger.Warn("could not parse action",
			zap.Int("step", res.Steps),
			zap.String("action", d.Action))
		return nil, nil
	}

	a.logger.Info("step",
		zap.Int("step", res.Steps),
		zap.Stringer("action", act),
		zap.String("url", obs.URL),
		zap.Int("elements", len(obs.Elements)))
	return act, nil
}

func (a *Agent) finish(ctx context.Context, res *Result) (*Result, error) {
	a.transition(StateTerminated)
	a.logger.Info("run finished",
		zap.String("reason", string(res.Reason)),
		zap.Int("steps", res.Steps),
		zap.Int("frames", a.recorder.Len()))

	name, err := a.recorder.Finalize(ctx, a.opts.VideoName)
	res.VideoFilename = name
	if err != nil {
		return res, err
	}
	return res, nil
}

func (a *Agent) abort(res *Result, err error) (*Result, error) {
	a.transition(StateTerminated)
	res.Reason = ReasonAborted
	a.logger.Error("run aborted", zap.Int("steps", res.Steps), zap.Error(err))
	return res, err
}
