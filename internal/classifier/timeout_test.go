package classifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/triage-service/internal/domain"
)

type slowClassifier struct {
	delay  time.Duration
	result *Result
}

func (c *slowClassifier) Classify(ctx context.Context, title, description string) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.delay):
		return c.result, nil
	}
}

func TestWithTimeoutReturnsFastResult(t *testing.T) {
	inner := &slowClassifier{delay: time.Millisecond, result: &Result{
		DraftReply: "ok", Confidence: 0.9, PredictedCategory: domain.CategoryBilling,
	}}
	c := WithTimeout(inner, time.Second)
	result, err := c.Classify(context.Background(), "t", "d")
	require.NoError(t, err)
	assert.Equal(t, 0.9, result.Confidence)
}

func TestWithTimeoutCutsOffSlowClassifier(t *testing.T) {
	inner := &slowClassifier{delay: time.Second, result: &Result{}}
	c := WithTimeout(inner, 10*time.Millisecond)
	_, err := c.Classify(context.Background(), "t", "d")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithTimeoutZeroDisablesWrapping(t *testing.T) {
	inner := &slowClassifier{delay: 0, result: &Result{}}
	assert.Equal(t, inner, WithTimeout(inner, 0))
}
