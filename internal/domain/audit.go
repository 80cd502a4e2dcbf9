package domain

import "time"

// AuditAction enumerates audited lifecycle actions.
type AuditAction string

const (
	AuditTicketCreated   AuditAction = "TICKET_CREATED"
	AuditReplySent       AuditAction = "REPLY_SENT"
	AuditAutoClosed      AuditAction = "AUTO_CLOSED"
	AuditAssignedToHuman AuditAction = "ASSIGNED_TO_HUMAN"
	AuditSLABreach       AuditAction = "SLA_BREACH"
	AuditStatusChanged   AuditAction = "STATUS_CHANGED"
)

// Actor identifies who performed an audited action.
type Actor string

const (
	ActorSystem Actor = "system"
	ActorAgent  Actor = "agent"
	ActorUser   Actor = "user"
)

// ValidActor reports whether a is a known actor kind.
func ValidActor(a Actor) bool {
	return a == ActorSystem || a == ActorAgent || a == ActorUser
}

// AuditEvent is an immutable record of one lifecycle action taken on a
// ticket. Events are append-only; Seq is assigned by the store and
// fixes the per-ticket order for every subsequent reader.
type AuditEvent struct {
	ID        string
	Seq       int64
	TicketID  string
	Action    AuditAction
	Actor     Actor
	Meta      map[string]any
	Timestamp time.Time
}
