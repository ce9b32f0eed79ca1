package clara

import (
	"context"

	"go.uber.org/zap"
)

// Fallback tries Primary and, when it fails with a retryable error, makes a
// single attempt with Secondary. Implements Provider.
type Fallback struct {
	Primary   Provider
	Secondary Provider
	Logger    *zap.Logger
}

// Name returns the primary provider's name.
func (f *Fallback) Name() string { return f.Primary.Name() }

// Generate calls Primary, then Secondary once on a retryable failure.
func (f *Fallback) Generate(ctx context.Context, system string, history []Message) (Completion, error) {
	c, err := f.Primary.Generate(ctx, system, history)
	if err == nil || f.Secondary == nil || !IsRetryable(err) || ctx.Err() != nil {
		return c, err
	}

	if f.Logger != nil {
		f.Logger.Warn("primary provider failed, trying fallback",
			zap.String("primary", f.Primary.Name()),
			zap.String("fallback", f.Secondary.Name()),
			zap.Error(err))
	}
	c2, err2 := f.Secondary.Generate(ctx, system, history)
	if KindOf(err2) == KindConfig {
		// An unusable fallback must not mask the primary's transient failure.
		return c, err
	}
	return c2, err2
}
