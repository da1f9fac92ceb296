package spinmanager

import "context"

// task is a single cancellable unit of spin work (countdown, animation,
// resolution) running in its own goroutine.
type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startTask(parent context.Context, fn func(ctx context.Context)) *task {
	ctx, cancel := context.WithCancel(parent)
	t := &task{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer cancel()
		fn(ctx)
	}()
	return t
}

// Cancel stops the task without waiting for it to return.
func (t *task) Cancel() {
	if t != nil {
		t.cancel()
	}
}

// Done is closed once the task goroutine has returned.
func (t *task) Done() <-chan struct{} {
	return t.done
}
