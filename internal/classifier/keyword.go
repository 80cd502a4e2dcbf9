package classifier

import (
	"context"
	"strings"

	"github.com/spec-kit/triage-service/internal/domain"
)

// keywordClassifier scores tickets against per-category keyword lists.
// It is deterministic: the same title and description always produce
// the same result.
type keywordClassifier struct{}

// NewKeywordClassifier returns the built-in keyword classifier.
func NewKeywordClassifier() Classifier {
	return &keywordClassifier{}
}

var categoryKeywords = map[domain.TicketCategory][]string{
	domain.CategoryBilling:  {"refund", "invoice", "charge", "charged", "payment", "bill", "subscription", "price"},
	domain.CategoryTech:     {"error", "crash", "bug", "login", "password", "broken", "fail", "timeout", "install"},
	domain.CategoryShipping: {"delivery", "deliver", "shipping", "shipped", "package", "tracking", "courier", "arrive"},
}

var draftReplies = map[domain.TicketCategory]string{
	domain.CategoryBilling:  "Thanks for reaching out about billing. We have reviewed your account and issued the appropriate correction; you should see it reflected within 3-5 business days.",
	domain.CategoryTech:     "Thanks for the report. Please try signing out, clearing your browser cache and signing back in; this resolves the issue in most cases. Let us know if it persists.",
	domain.CategoryShipping: "Thanks for contacting us about your delivery. Your package is on its way; the latest tracking update is available from the link in your order confirmation email.",
	domain.CategoryOther:    "Thanks for contacting support. We have reviewed your request and will make sure it is handled. Reply to this message if you need anything else.",
}

func (c *keywordClassifier) Classify(ctx context.Context, title, description string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := strings.ToLower(title + " " + description)
	words := len(strings.Fields(text))

	best := domain.CategoryOther
	bestHits := 0
	for category, keywords := range categoryKeywords {
		hits := 0
		for _, keyword := range keywords {
			hits += strings.Count(text, keyword)
		}
		if hits > bestHits {
			best = category
			bestHits = hits
		}
	}

	confidence := 0.30
	if bestHits > 0 && words > 0 {
		// Base score for any keyword match, plus density bonus,
		// capped below certainty.
		confidence = 0.55 + 0.35*minFloat(float64(bestHits)/4, 1)
		if confidence > 0.95 {
			confidence = 0.95
		}
	}

	return &Result{
		DraftReply:        draftReplies[best],
		Confidence:        confidence,
		PredictedCategory: best,
	}, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
