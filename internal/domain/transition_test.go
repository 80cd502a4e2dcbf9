package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

func TestTransitionAllowedMoves(t *testing.T) {
	cases := []struct {
		current TicketStatus
		event   TransitionEvent
		want    TicketStatus
	}{
		{TicketStatusOpen, EventMarkTriaged, TicketStatusTriaged},
		{TicketStatusOpen, EventAssignHuman, TicketStatusWaitingHuman},
		{TicketStatusOpen, EventAutoClose, TicketStatusResolved},
		{TicketStatusTriaged, EventAssignHuman, TicketStatusWaitingHuman},
		{TicketStatusTriaged, EventAutoClose, TicketStatusResolved},
		{TicketStatusWaitingHuman, EventAgentResolve, TicketStatusResolved},
		{TicketStatusWaitingHuman, EventForceClose, TicketStatusClosed},
		{TicketStatusResolved, EventClose, TicketStatusClosed},
	}
	for _, tc := range cases {
		next, err := Transition(tc.current, tc.event)
		require.NoError(t, err, "%s + %s", tc.current, tc.event)
		assert.Equal(t, tc.want, next)
	}
}

func TestTransitionRejectsMovesOutsideGraph(t *testing.T) {
	cases := []struct {
		current TicketStatus
		event   TransitionEvent
	}{
		{TicketStatusOpen, EventAgentResolve},
		{TicketStatusOpen, EventClose},
		{TicketStatusTriaged, EventMarkTriaged},
		{TicketStatusWaitingHuman, EventAutoClose},
		{TicketStatusWaitingHuman, EventClose},
		{TicketStatusResolved, EventAgentResolve},
		{TicketStatusClosed, EventClose},
		{TicketStatusClosed, EventForceClose},
	}
	for _, tc := range cases {
		next, err := Transition(tc.current, tc.event)
		require.Error(t, err, "%s + %s", tc.current, tc.event)
		assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))
		assert.Equal(t, tc.current, next, "status must not move on rejection")
	}
}

func TestClosedIsTerminal(t *testing.T) {
	for _, event := range []TransitionEvent{
		EventMarkTriaged, EventAutoClose, EventAssignHuman,
		EventAgentResolve, EventClose, EventForceClose,
	} {
		_, err := Transition(TicketStatusClosed, event)
		assert.Error(t, err, "closed must reject %s", event)
	}
}

func TestEventFor(t *testing.T) {
	event, ok := EventFor(TicketStatusOpen, TicketStatusTriaged)
	require.True(t, ok)
	assert.Equal(t, EventMarkTriaged, event)

	event, ok = EventFor(TicketStatusWaitingHuman, TicketStatusClosed)
	require.True(t, ok)
	assert.Equal(t, EventForceClose, event)

	_, ok = EventFor(TicketStatusOpen, TicketStatusClosed)
	assert.False(t, ok)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(TicketStatusOpen, TicketStatusWaitingHuman))
	assert.True(t, CanTransition(TicketStatusResolved, TicketStatusClosed))
	assert.False(t, CanTransition(TicketStatusClosed, TicketStatusOpen))
	assert.False(t, CanTransition(TicketStatusResolved, TicketStatusOpen))
}

func TestTerminal(t *testing.T) {
	assert.False(t, (&Ticket{Status: TicketStatusOpen}).Terminal())
	assert.False(t, (&Ticket{Status: TicketStatusTriaged}).Terminal())
	assert.True(t, (&Ticket{Status: TicketStatusWaitingHuman}).Terminal())
	assert.True(t, (&Ticket{Status: TicketStatusResolved}).Terminal())
	assert.True(t, (&Ticket{Status: TicketStatusClosed}).Terminal())
}
