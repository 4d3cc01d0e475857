package fn

import (
	"context"
	"sync"
)

// FanOut runs functions concurrently and returns results in order.
func FanOut[T any](fns ...func() T) []T {
	out := make([]T, len(fns))
	var wg sync.WaitGroup
	for i, f := range fns {
		wg.Add(1)
		go func(i int, f func() T) {
			defer wg.Done()
			out[i] = f()
		}(i, f)
	}
	wg.Wait()
	return out
}

type slot[U any] struct {
	val U
	ok  bool
}

// FirstInOrder evaluates f over items with at most workers in flight and
// returns the lowest-index item for which f reports ok. Completions are
// buffered and decided strictly in index order, so the winner never depends
// on which call finishes first. Once a winner is known the context passed to
// the remaining calls is cancelled. With workers <= 1 items run one at a time
// and nothing past the winner is started.
func FirstInOrder[T, U any](ctx context.Context, items []T, workers int, f func(context.Context, T) (U, bool)) (int, U, bool) {
	var zero U
	if workers <= 1 {
		for i, it := range items {
			if ctx.Err() != nil {
				return -1, zero, false
			}
			if v, ok := f(ctx, it); ok {
				return i, v, true
			}
		}
		return -1, zero, false
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]chan slot[U], len(items))
	for i := range slots {
		slots[i] = make(chan slot[U], 1)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i, it := range items {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				for j := i; j < len(items); j++ {
					slots[j] <- slot[U]{}
				}
				return
			}
			wg.Add(1)
			go func(i int, it T) {
				defer func() { <-sem; wg.Done() }()
				v, ok := f(ctx, it)
				slots[i] <- slot[U]{val: v, ok: ok}
			}(i, it)
		}
	}()

	defer wg.Wait()
	for i := range items {
		select {
		case s := <-slots[i]:
			if s.ok {
				cancel()
				return i, s.val, true
			}
		case <-ctx.Done():
			return -1, zero, false
		}
	}
	return -1, zero, false
}
