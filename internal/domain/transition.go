package domain

import apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"

// TransitionEvent names the lifecycle events that may move a ticket
// between states. Every status write, whether from the triage engine,
// reply handling or the SLA monitor, goes through Transition; direct
// status writes are not allowed.
type TransitionEvent string

const (
	EventMarkTriaged  TransitionEvent = "mark_triaged"
	EventAutoClose    TransitionEvent = "auto_close"
	EventAssignHuman  TransitionEvent = "assign_human"
	EventAgentResolve TransitionEvent = "agent_resolve"
	EventClose        TransitionEvent = "close"
	EventForceClose   TransitionEvent = "force_close"
)

var transitions = map[TicketStatus]map[TransitionEvent]TicketStatus{
	TicketStatusOpen: {
		EventMarkTriaged: TicketStatusTriaged,
		EventAssignHuman: TicketStatusWaitingHuman,
		EventAutoClose:   TicketStatusResolved,
	},
	TicketStatusTriaged: {
		EventAssignHuman: TicketStatusWaitingHuman,
		EventAutoClose:   TicketStatusResolved,
	},
	TicketStatusWaitingHuman: {
		EventAgentResolve: TicketStatusResolved,
		EventForceClose:   TicketStatusClosed,
	},
	TicketStatusResolved: {
		EventClose: TicketStatusClosed,
	},
	TicketStatusClosed: {},
}

// Transition is the pure transition function: given the current status
// and a lifecycle event it returns the next status, or an
// InvalidTransition error when the pair is not in the allowed graph.
func Transition(current TicketStatus, event TransitionEvent) (TicketStatus, error) {
	next, ok := transitions[current][event]
	if !ok {
		return current, apperrors.NewInvalidTransition(string(current), string(event))
	}
	return next, nil
}

// CanTransition reports whether any event moves a ticket from current
// to next.
func CanTransition(current, next TicketStatus) bool {
	for _, target := range transitions[current] {
		if target == next {
			return true
		}
	}
	return false
}

// EventFor resolves the lifecycle event that moves a ticket from
// current to next, for callers expressing manual status updates as a
// target state.
func EventFor(current, next TicketStatus) (TransitionEvent, bool) {
	for event, target := range transitions[current] {
		if target == next {
			return event, true
		}
	}
	return "", false
}
