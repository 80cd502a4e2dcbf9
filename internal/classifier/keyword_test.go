package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/triage-service/internal/domain"
)

func TestKeywordClassifierPicksCategory(t *testing.T) {
	c := NewKeywordClassifier()

	cases := []struct {
		title       string
		description string
		want        domain.TicketCategory
	}{
		{"Refund request", "I was charged twice on my last invoice, please refund the payment", domain.CategoryBilling},
		{"App crash", "The app shows an error and crashes on login after the install", domain.CategoryTech},
		{"Where is my package", "Tracking says shipped but the delivery never arrived", domain.CategoryShipping},
	}
	for _, tc := range cases {
		result, err := c.Classify(context.Background(), tc.title, tc.description)
		require.NoError(t, err)
		assert.Equal(t, tc.want, result.PredictedCategory, tc.title)
		assert.NotEmpty(t, result.DraftReply)
		assert.Greater(t, result.Confidence, 0.55)
	}
}

func TestKeywordClassifierNoMatch(t *testing.T) {
	c := NewKeywordClassifier()
	result, err := c.Classify(context.Background(), "Hello", "Just wanted to say thanks")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryOther, result.PredictedCategory)
	assert.Equal(t, 0.30, result.Confidence)
}

func TestKeywordClassifierDeterministic(t *testing.T) {
	c := NewKeywordClassifier()
	first, err := c.Classify(context.Background(), "refund", "charge charge charge")
	require.NoError(t, err)
	second, err := c.Classify(context.Background(), "refund", "charge charge charge")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestKeywordClassifierConfidenceCapped(t *testing.T) {
	c := NewKeywordClassifier()
	result, err := c.Classify(context.Background(),
		"refund refund refund refund",
		"refund invoice charge payment bill subscription price refund refund")
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Confidence, 0.95)
}

func TestKeywordClassifierHonorsCancelledContext(t *testing.T) {
	c := NewKeywordClassifier()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Classify(ctx, "refund", "refund")
	assert.Error(t, err)
}
