package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventPhaseEnter EventType = "phase_enter"
	EventPhaseLeave EventType = "phase_leave"
	EventTurn       EventType = "turn"
	EventSessionEnd EventType = "session_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// PhaseEvent represents entry into or exit from a phase.
type PhaseEvent struct {
	EventBase
	PhaseID   int    `json:"phase_id"`
	PhaseName string `json:"phase_name"`
}

// TurnEvent represents one applied turn.
type TurnEvent struct {
	EventBase
	PhaseID       int    `json:"phase_id"`
	Signal        Signal `json:"signal"`
	NewConditions []int  `json:"new_conditions,omitempty"`
	Transitioned  bool   `json:"transitioned"`
}

// SessionEvent represents the end of a session.
type SessionEvent struct {
	EventBase
	PhaseID int       `json:"phase_id"`
	Reason  EndReason `json:"reason"`
	Turns   int       `json:"turns"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnPhaseEnter func(context.Context, *PhaseEvent)
	OnPhaseLeave func(context.Context, *PhaseEvent)
	OnTurn       func(context.Context, *TurnEvent)
	OnSessionEnd func(context.Context, *SessionEvent)
}
