package tgc

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/gotd/td/bin"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// recovery retries invocations that failed below the RPC layer, such as a
// dropped connection. RPC errors are returned as is.
// Every invocation gets its own backoff from newBackoff, since a BackOff
// keeps per-retry state.
type recovery struct {
	ctx        context.Context
	newBackoff func() backoff.BackOff
}

func newRecovery(ctx context.Context, newBackoff func() backoff.BackOff) telegram.Middleware {
	return &recovery{
		ctx:        ctx,
		newBackoff: newBackoff,
	}
}

func (r *recovery) Handle(next tg.Invoker) telegram.InvokeFunc {
	return func(ctx context.Context, input bin.Encoder, output bin.Decoder) error {
		return backoff.Retry(func() error {
			if err := next.Invoke(ctx, input, output); err != nil {
				if r.shouldRecover(ctx, err) {
					return errors.Wrap(err, "recover")
				}
				return backoff.Permanent(err)
			}
			return nil
		}, backoff.WithContext(r.newBackoff(), ctx))
	}
}

func (r *recovery) shouldRecover(ctx context.Context, err error) bool {
	if r.ctx.Err() != nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	_, ok := tgerr.As(err)
	return !ok
}
