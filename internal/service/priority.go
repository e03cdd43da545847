package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/franz/media-dock/internal/log"
)

// Host is the process controller that start requests and terminations are
// issued to. RequestStart asks the host to bring the service into the
// foreground; the host answers by calling ConfirmForeground on the
// machine, usually from another goroutine. Terminate tears down the host
// process context after an accepted stop.
//
// Both calls are made while the machine's lock is held, so implementations
// must not call back into the machine synchronously.
type Host interface {
	RequestStart(reason StartStopReason)
	Terminate()
}

// StopOutcome is the result of a stop request.
type StopOutcome int

const (
	StopRejected StopOutcome = iota
	StopAccepted
	StopDeferred
)

func (o StopOutcome) String() string {
	switch o {
	case StopAccepted:
		return "accepted"
	case StopDeferred:
		return "deferred"
	default:
		return "rejected"
	}
}

// PriorityMachine tracks the service's priority and the reason it was last
// started, and arbitrates stop requests against that reason.
//
// Within one active period the last start reason only ever rises; it is
// reset to unknown by a full stop, never by a lower-priority trigger.
type PriorityMachine struct {
	mu         sync.Mutex
	priority   ServicePriority
	lastReason StartStopReason
	started    bool
	promoted   chan struct{}
	released   bool
	pending    *StartStopReason
	host       Host
	logger     zerolog.Logger
}

// NewPriorityMachine returns a machine in the background state with the
// promotion rendezvous armed.
func NewPriorityMachine(host Host) *PriorityMachine {
	return &PriorityMachine{
		promoted: make(chan struct{}),
		host:     host,
		logger:   log.WithComponent("service"),
	}
}

// Priority returns the current service priority.
func (m *PriorityMachine) Priority() ServicePriority {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.priority
}

// LastStartReason returns the highest reason seen in the current active
// period, or ReasonUnknown after a full stop.
func (m *PriorityMachine) LastStartReason() StartStopReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReason
}

// Started reports whether the host has confirmed a service start.
func (m *PriorityMachine) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// RequireForeground records a foreground trigger. While the host has not
// started the service yet this moves background to foreground-requested
// and issues a start request; once the host is running, a trigger promotes
// to foreground directly. The start reason is raised only if the trigger
// outranks the current one.
func (m *PriorityMachine) RequireForeground(reason StartStopReason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reason > m.lastReason {
		m.lastReason = reason
	}

	switch {
	case !m.started:
		if m.priority != PriorityBackground {
			return
		}
		m.priority = PriorityForegroundRequested
		// A rendezvous left satisfied by the previous promotion is
		// re-armed for this one.
		if m.released {
			m.promoted = make(chan struct{})
			m.released = false
		}
		m.logger.Debug().
			Stringer("reason", reason).
			Msg("requesting foreground start")
		m.host.RequestStart(reason)
	case m.priority == PriorityBackground:
		m.priority = PriorityForeground
		m.releaseLocked()
		m.logger.Debug().
			Stringer("reason", reason).
			Msg("promoted to foreground")
	}
}

// ConfirmForeground is the host's acknowledgement that the service is now
// running in the foreground. It releases the promotion rendezvous and
// re-evaluates a stop that was deferred while the promotion was pending.
func (m *PriorityMachine) ConfirmForeground() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = true
	if m.priority == PriorityForegroundRequested {
		m.priority = PriorityForeground
		m.releaseLocked()
		m.logger.Debug().Msg("foreground confirmed")
	}
	if m.pending != nil {
		reason := *m.pending
		m.pending = nil
		m.stopLocked(reason)
	}
}

// AwaitForeground blocks on the promotion rendezvous until it is
// satisfied or ctx is done. A rendezvous satisfied by an earlier
// promotion reports immediately until a new promotion re-arms it.
func (m *PriorityMachine) AwaitForeground(ctx context.Context) error {
	m.mu.Lock()
	ch := m.promoted
	m.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop requests a drop back to the background followed by host
// termination. The request is arbitrated against the last start reason and
// rejected when a higher-priority activity holds the service. A stop that
// arrives while a promotion is still in flight is deferred until the
// rendezvous resolves, then re-evaluated.
func (m *PriorityMachine) Stop(reason StartStopReason) StopOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.priority == PriorityForegroundRequested {
		r := reason
		m.pending = &r
		m.logger.Debug().
			Stringer("reason", reason).
			Msg("stop deferred until promotion resolves")
		return StopDeferred
	}
	return m.stopLocked(reason)
}

func (m *PriorityMachine) stopLocked(reason StartStopReason) StopOutcome {
	if !shouldStop(reason, m.lastReason) {
		m.logger.Debug().
			Stringer("reason", reason).
			Stringer("last_start", m.lastReason).
			Msg("stop rejected")
		return StopRejected
	}

	m.logger.Info().
		Stringer("reason", reason).
		Msg("stopping service")
	m.priority = PriorityBackground
	m.lastReason = ReasonUnknown
	m.started = false
	m.host.Terminate()
	return StopAccepted
}

func (m *PriorityMachine) releaseLocked() {
	if !m.released {
		close(m.promoted)
		m.released = true
	}
}

// shouldStop is the stop-arbitration table. An indexing stop must not tear
// down a service the user is actively holding, and a session-callback stop
// must not interrupt a running index pass.
func shouldStop(stop, lastStart StartStopReason) bool {
	switch stop {
	case ReasonIndexing:
		switch lastStart {
		case ReasonMediaButton, ReasonMediaSessionCallback, ReasonSuspendOrShutdown:
			return false
		}
	case ReasonMediaSessionCallback:
		if lastStart == ReasonIndexing {
			return false
		}
	}
	return true
}
