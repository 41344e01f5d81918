package runner

import (
	"context"

	"github.com/aretw0/scenaria/pkg/domain"
)

// FrameKind identifies what a Frame carries.
type FrameKind string

const (
	FramePhase      FrameKind = "phase"      // entered a phase
	FrameVerdict    FrameKind = "verdict"    // a turn was applied
	FrameProjection FrameKind = "projection" // answer to /state
	FrameEnded      FrameKind = "ended"      // the session is over
)

// Frame is one unit of output produced by the loop.
type Frame struct {
	Kind       FrameKind            `json:"type"`
	Scenario   *domain.Scenario     `json:"-"`
	Phase      *domain.Phase        `json:"phase,omitempty"`
	State      *domain.SessionState `json:"state,omitempty"`
	Verdict    *domain.TurnVerdict  `json:"verdict,omitempty"`
	Projection *domain.Projection   `json:"projection,omitempty"`
}

// Input is one line read from the user. Verdict is set by structured drivers that
// already know the outcome and want to bypass the evaluator.
type Input struct {
	Utterance string              `json:"utterance"`
	Verdict   *domain.TurnVerdict `json:"verdict,omitempty"`
}

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Present shows a frame to the user.
	Present(ctx context.Context, frame Frame) error

	// Input reads the next line. io.EOF ends the loop without ending the session.
	Input(ctx context.Context) (Input, error)

	// SystemOutput presents a meta-message to the user (e.g. retry hints, status updates).
	// This is distinct from content rendering.
	SystemOutput(ctx context.Context, msg string) error
}
