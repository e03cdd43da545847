// Package service arbitrates host-service priority and coordinates the
// named background jobs of the dock.
package service

import "fmt"

// StartStopReason identifies what caused a service start or stop request.
// The numeric order is the arbitration order: higher reasons outrank lower
// ones.
type StartStopReason int

const (
	ReasonUnknown StartStopReason = iota
	ReasonIndexing
	ReasonMediaButton
	ReasonMediaSessionCallback
	ReasonSuspendOrShutdown
)

func (r StartStopReason) String() string {
	switch r {
	case ReasonIndexing:
		return "indexing"
	case ReasonMediaButton:
		return "media-button"
	case ReasonMediaSessionCallback:
		return "media-session-callback"
	case ReasonSuspendOrShutdown:
		return "suspend-or-shutdown"
	default:
		return "unknown"
	}
}

// ParseStartStopReason maps the wire names produced by String back to
// reasons. Unrecognized names are an error rather than ReasonUnknown so a
// typo in a stop request cannot silently become the weakest reason.
func ParseStartStopReason(s string) (StartStopReason, error) {
	switch s {
	case "unknown":
		return ReasonUnknown, nil
	case "indexing":
		return ReasonIndexing, nil
	case "media-button":
		return ReasonMediaButton, nil
	case "media-session-callback":
		return ReasonMediaSessionCallback, nil
	case "suspend-or-shutdown":
		return ReasonSuspendOrShutdown, nil
	default:
		return ReasonUnknown, fmt.Errorf("unknown start/stop reason %q", s)
	}
}

// ServicePriority is the service's execution standing with its host.
type ServicePriority int

const (
	PriorityBackground ServicePriority = iota
	PriorityForegroundRequested
	PriorityForeground
)

func (p ServicePriority) String() string {
	switch p {
	case PriorityForegroundRequested:
		return "foreground-requested"
	case PriorityForeground:
		return "foreground"
	default:
		return "background"
	}
}

// PlaybackState is the player's coarse state as reported by the playback
// collaborator.
type PlaybackState int

const (
	PlaybackIdle PlaybackState = iota
	PlaybackStopped
	PlaybackPaused
	PlaybackPlaying
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackStopped:
		return "stopped"
	case PlaybackPaused:
		return "paused"
	case PlaybackPlaying:
		return "playing"
	default:
		return "idle"
	}
}

// Resumable reports whether playback is at rest, meaning a finished
// library build may restore the persisted position without stepping on a
// user request.
func (s PlaybackState) Resumable() bool {
	switch s {
	case PlaybackIdle, PlaybackStopped, PlaybackPaused:
		return true
	default:
		return false
	}
}

// PlaybackStateProvider exposes the player's current state.
type PlaybackStateProvider interface {
	PlaybackState() PlaybackState
}
