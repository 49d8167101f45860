package clientele

// Promise is the handle on an asynchronous invocation started with
// InvokeAsync. The call runs the same pipeline as a blocking Invoke; the
// promise only carries its completion.
type Promise[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

func (p *Promise[T]) complete(value T, err error) {
	p.value = value
	p.err = err
	close(p.done)
}

// Wait blocks until the call completes and returns its outcome. It can
// be called any number of times; every call returns the same values.
func (p *Promise[T]) Wait() (T, error) {
	<-p.done
	return p.value, p.err
}

// Done is closed when the call has completed. Use it to select over
// several pending calls; collect the outcome with Wait.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}
