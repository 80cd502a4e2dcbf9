package classifier

import (
	"context"
	"time"
)

// timeoutClassifier bounds every Classify call so a slow classifier
// cannot stall the triage decision path.
type timeoutClassifier struct {
	inner   Classifier
	timeout time.Duration
}

// WithTimeout wraps inner so each call observes the given deadline.
func WithTimeout(inner Classifier, timeout time.Duration) Classifier {
	if timeout <= 0 {
		return inner
	}
	return &timeoutClassifier{inner: inner, timeout: timeout}
}

func (c *timeoutClassifier) Classify(ctx context.Context, title, description string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := c.inner.Classify(ctx, title, description)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		return out.result, out.err
	}
}
