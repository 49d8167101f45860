package clientele

import (
	"context"
	"net/http"
	"reflect"

	cerrors "github.com/phalt/clientele/errors"
)

// Handler is the body of a declared operation. It runs after the
// response has been hydrated, with the hydrated result and the
// normalized response injected, and whatever it returns is what the
// caller of Invoke receives. A nil Handler returns the hydrated result
// as is.
type Handler[P, R any] func(ctx context.Context, params P, result R, response *Response) (R, error)

// Operation is one declared method+path+handler combination. Declare it
// once, typically in a package-level variable, and call it like a local
// function. The descriptor behind it is immutable and shared by all
// calls; per-call state is never shared, so one Operation is safe for
// concurrent use.
type Operation[P, R any] struct {
	client  *Client
	desc    *descriptor
	handler Handler[P, R]
}

// NewOperation declares an operation. It panics with
// *errors.DeclarationError if the declaration is malformed, so that
// broken operations fail at startup, before any traffic is possible.
func NewOperation[P, R any](c *Client, method, path string, handler Handler[P, R], opts ...DeclareOption) *Operation[P, R] {
	desc := newDescriptor(
		method, path,
		reflect.TypeOf((*P)(nil)).Elem(),
		reflect.TypeOf((*R)(nil)).Elem(),
		false, opts,
	)
	return &Operation[P, R]{client: c, desc: desc, handler: handler}
}

// GET declares a GET operation.
func GET[P, R any](c *Client, path string, handler Handler[P, R], opts ...DeclareOption) *Operation[P, R] {
	return NewOperation[P, R](c, http.MethodGet, path, handler, opts...)
}

// POST declares a POST operation.
func POST[P, R any](c *Client, path string, handler Handler[P, R], opts ...DeclareOption) *Operation[P, R] {
	return NewOperation[P, R](c, http.MethodPost, path, handler, opts...)
}

// PUT declares a PUT operation.
func PUT[P, R any](c *Client, path string, handler Handler[P, R], opts ...DeclareOption) *Operation[P, R] {
	return NewOperation[P, R](c, http.MethodPut, path, handler, opts...)
}

// PATCH declares a PATCH operation.
func PATCH[P, R any](c *Client, path string, handler Handler[P, R], opts ...DeclareOption) *Operation[P, R] {
	return NewOperation[P, R](c, http.MethodPatch, path, handler, opts...)
}

// DELETE declares a DELETE operation.
func DELETE[P, R any](c *Client, path string, handler Handler[P, R], opts ...DeclareOption) *Operation[P, R] {
	return NewOperation[P, R](c, http.MethodDelete, path, handler, opts...)
}

// Invoke performs one call: bind, send, hydrate, then run the handler
// body with the hydrated result and the normalized response injected.
// Binding failures happen before any network I/O; transport errors
// propagate verbatim.
func (o *Operation[P, R]) Invoke(ctx context.Context, params P, opts ...CallOption) (R, error) {
	var zero R

	cc := newCallConfig(opts)
	pr, err := bind(o.desc, o.client, params, cc)
	if err != nil {
		return zero, err
	}

	resp, err := o.client.backend.Send(ctx, pr)
	if err != nil {
		return zero, err
	}

	hydrated, err := hydrate(o.desc, resp)
	if err != nil {
		return zero, err
	}
	result := zero
	if hydrated != nil {
		var ok bool
		result, ok = hydrated.(R)
		if !ok {
			return zero, &cerrors.TypeError{
				Type:   reflect.TypeOf(hydrated).String(),
				Reason: "parsed value does not fit the declared result type",
			}
		}
	}

	if o.handler == nil {
		return result, nil
	}
	return o.handler(ctx, params, result, resp)
}

// InvokeAsync runs the same pipeline on its own goroutine and returns a
// promise for the outcome. The engine spawns no other background work.
func (o *Operation[P, R]) InvokeAsync(ctx context.Context, params P, opts ...CallOption) *Promise[R] {
	p := newPromise[R]()
	go func() {
		p.complete(o.Invoke(ctx, params, opts...))
	}()
	return p
}

// Descriptor exposes the operation's metadata for tooling consumers.
func (o *Operation[P, R]) Descriptor() Descriptor {
	return o.desc.export()
}

// StreamOperation is a declared operation whose response is a lazy
// sequence of delimited records, each hydrated into T.
type StreamOperation[P, T any] struct {
	client *Client
	desc   *descriptor
}

// NewStreamOperation declares a streaming operation. Declaration checks
// are the same as NewOperation's, plus the streaming-specific ones: no
// status map, a concrete (or empty-interface) item type, ItemParser
// instead of Parser.
func NewStreamOperation[P, T any](c *Client, method, path string, opts ...DeclareOption) *StreamOperation[P, T] {
	desc := newDescriptor(
		method, path,
		reflect.TypeOf((*P)(nil)).Elem(),
		reflect.TypeOf((*T)(nil)).Elem(),
		true, opts,
	)
	return &StreamOperation[P, T]{client: c, desc: desc}
}

// GETStream declares a streaming GET operation.
func GETStream[P, T any](c *Client, path string, opts ...DeclareOption) *StreamOperation[P, T] {
	return NewStreamOperation[P, T](c, http.MethodGet, path, opts...)
}

// POSTStream declares a streaming POST operation.
func POSTStream[P, T any](c *Client, path string, opts ...DeclareOption) *StreamOperation[P, T] {
	return NewStreamOperation[P, T](c, http.MethodPost, path, opts...)
}

// Stream performs one call and returns the lazy record sequence. It
// fails before producing the stream when binding fails or the response
// status is an error. The caller owns the stream and must Close it;
// exhausting it with Next closes it too.
func (o *StreamOperation[P, T]) Stream(ctx context.Context, params P, opts ...CallOption) (*Stream[T], error) {
	cc := newCallConfig(opts)
	pr, err := bind(o.desc, o.client, params, cc)
	if err != nil {
		return nil, err
	}
	src, err := o.client.backend.Stream(ctx, pr)
	if err != nil {
		return nil, err
	}
	return newStream[T](o.desc, src), nil
}

// Chan is the asynchronous streaming driver: it consumes the stream on
// its own goroutine and delivers items over a channel, which is closed
// when the stream ends. A failure, including a pre-stream one, arrives
// as the last Item's Err. Cancel ctx to stop a consumer that abandons
// the channel; the connection is released on every exit path.
func (o *StreamOperation[P, T]) Chan(ctx context.Context, params P, opts ...CallOption) <-chan Item[T] {
	ch := make(chan Item[T])
	go func() {
		defer close(ch)
		st, err := o.Stream(ctx, params, opts...)
		if err != nil {
			select {
			case ch <- Item[T]{Err: err}:
			case <-ctx.Done():
			}
			return
		}
		defer st.Close()
		for st.Next() {
			select {
			case ch <- Item[T]{Value: st.Current()}:
			case <-ctx.Done():
				return
			}
		}
		if err := st.Err(); err != nil {
			select {
			case ch <- Item[T]{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}

// Descriptor exposes the operation's metadata for tooling consumers.
func (o *StreamOperation[P, T]) Descriptor() Descriptor {
	return o.desc.export()
}
