package application

import "context"

type detachedResult[T any] struct {
	value T
	err   error
}

// runDetached runs fn on its own goroutine and parks the caller until it
// returns. The wallet engine calls signers and validators synchronously,
// while every exchange with the remote cosigner is a network round-trip:
// this is the only place where the two meet.
func runDetached[T any](
	ctx context.Context, fn func(ctx context.Context) (T, error),
) (T, error) {
	chResult := make(chan detachedResult[T], 1)
	go func() {
		value, err := fn(ctx)
		chResult <- detachedResult[T]{value, err}
	}()

	res := <-chResult
	return res.value, res.err
}
