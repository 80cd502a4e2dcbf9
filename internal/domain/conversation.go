package domain

import "time"

// ConversationMessage is a single entry in the derived conversation
// view of a ticket.
type ConversationMessage struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation projects an ordered audit sequence into the
// conversation view shown to users. It is a pure function of the
// event slice: unknown actions are skipped, storage is never
// consulted.
func Conversation(events []AuditEvent) []ConversationMessage {
	messages := make([]ConversationMessage, 0, len(events))
	for _, event := range events {
		switch event.Action {
		case AuditTicketCreated:
			messages = append(messages, ConversationMessage{
				Role:      string(ActorUser),
				Text:      "Ticket created",
				Timestamp: event.Timestamp,
			})
		case AuditReplySent:
			text := "Agent replied"
			if raw, ok := event.Meta["message"].(string); ok && raw != "" {
				text = raw
			}
			// Draft replies sent on auto-close carry the system actor
			// but read as agent messages in the thread.
			role := string(event.Actor)
			if event.Actor == ActorSystem {
				role = string(ActorAgent)
			}
			messages = append(messages, ConversationMessage{
				Role:      role,
				Text:      text,
				Timestamp: event.Timestamp,
			})
		case AuditAutoClosed:
			messages = append(messages, ConversationMessage{
				Role:      string(ActorSystem),
				Text:      "Ticket auto-closed with suggested reply",
				Timestamp: event.Timestamp,
			})
		case AuditAssignedToHuman:
			messages = append(messages, ConversationMessage{
				Role:      string(ActorSystem),
				Text:      "Assigned to human agent",
				Timestamp: event.Timestamp,
			})
		}
	}
	return messages
}
