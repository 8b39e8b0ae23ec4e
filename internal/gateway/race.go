package gateway

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// ErrNoSuccess is returned by raceFirstSuccess when every task failed or
// the race's deadline elapsed before any of them produced a result.
var ErrNoSuccess = errors.New("gateway: no probe succeeded")

// raceFirstSuccess runs every task concurrently and returns the value of
// the first one to succeed, cancelling the rest. A task's error is
// discarded unless every task fails, in which case ErrNoSuccess wins
// (individual probe errors are still worth logging by the caller, but the
// race itself only has one verdict: found or not).
func raceFirstSuccess[T any](ctx context.Context, tasks []func(context.Context) (T, error)) (T, error) {
	var zero T
	if len(tasks) == 0 {
		return zero, ErrNoSuccess
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan T, 1)
	g, ctx := errgroup.WithContext(ctx)

	for _, task := range tasks {
		g.Go(func() error {
			v, err := task(ctx)
			if err != nil {
				return nil
			}
			select {
			case result <- v:
				cancel()
			default:
			}
			return nil
		})
	}

	waitDone := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(waitDone)
	}()

	select {
	case v := <-result:
		return v, nil
	case <-waitDone:
		select {
		case v := <-result:
			return v, nil
		default:
			return zero, ErrNoSuccess
		}
	}
}
