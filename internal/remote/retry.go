package remote

import "context"

// RetryOnce runs fn and, when it fails transiently, runs it exactly once more.
// Only idempotent reads and "open" go through here.
func RetryOnce[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if err == nil || !IsTransient(err) || ctx.Err() != nil {
		return v, err
	}
	return fn(ctx)
}

func RetryOnceErr(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := RetryOnce(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
