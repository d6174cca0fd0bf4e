package store

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedOutput throttles writes to a maximum number of bytes per second.
//
// The bytes written are identical to the wrapped output; only timing changes.
type RateLimitedOutput struct {
	IndexOutput
	limiter *rate.Limiter
}

// NewRateLimitedOutput wraps out. bytesPerSec <= 0 disables limiting.
func NewRateLimitedOutput(out IndexOutput, bytesPerSec int) IndexOutput {
	if bytesPerSec <= 0 {
		return out
	}
	return &RateLimitedOutput{
		IndexOutput: out,
		limiter:     rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec),
	}
}

// WriteBytes waits for budget before writing p.
func (o *RateLimitedOutput) WriteBytes(p []byte) error {
	burst := o.limiter.Burst()
	for len(p) > 0 {
		n := min(len(p), burst)
		if err := o.limiter.WaitN(context.Background(), n); err != nil {
			return err
		}
		if err := o.IndexOutput.WriteBytes(p[:n]); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// WriteByte waits for one byte of budget.
func (o *RateLimitedOutput) WriteByte(b byte) error {
	if err := o.limiter.WaitN(context.Background(), 1); err != nil {
		return err
	}
	return o.IndexOutput.WriteByte(b)
}
