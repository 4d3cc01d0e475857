package fn

import "context"

// Step is one link of a fallback chain.
type Step[T any] func(context.Context) []T

// FirstNonEmpty runs steps in order and returns the first non-empty result.
// Later steps are never run once one produces output.
func FirstNonEmpty[T any](ctx context.Context, steps ...Step[T]) []T {
	for _, s := range steps {
		if ctx.Err() != nil {
			return nil
		}
		if out := s(ctx); len(out) > 0 {
			return out
		}
	}
	return nil
}
