package classifier

import (
	"context"

	"github.com/spec-kit/triage-service/internal/domain"
)

// Result is the classifier's proposal for a ticket.
type Result struct {
	DraftReply        string
	Confidence        float64
	PredictedCategory domain.TicketCategory
}

// Classifier is the opaque capability consumed by the triage engine.
// Implementations may fail or time out; the engine treats any error as
// a signal to fall back to human assignment.
type Classifier interface {
	Classify(ctx context.Context, title, description string) (*Result, error)
}
