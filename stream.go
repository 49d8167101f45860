package clientele

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Stream is a lazy, typed view over a line-delimited response body. Each
// record is decoded on demand; the underlying connection is held open
// until the stream is exhausted or closed. Use it like bufio.Scanner:
//
//	st, err := op.Stream(ctx, params)
//	if err != nil { ... }
//	defer st.Close()
//	for st.Next() {
//		item := st.Current()
//		...
//	}
//	if err := st.Err(); err != nil { ... }
type Stream[T any] struct {
	src     *LineSource
	d       *descriptor
	current T
	err     error
	done    bool
}

func newStream[T any](d *descriptor, src *LineSource) *Stream[T] {
	return &Stream[T]{src: src, d: d}
}

// Next advances to the next record, skipping blank ones. It returns
// false when the stream ends or fails; the connection is released either
// way. Check Err after the loop.
func (s *Stream[T]) Next() bool {
	if s.done {
		return false
	}
	for {
		line, ok := s.src.Next()
		if !ok {
			s.err = s.src.Err()
			s.stop()
			return false
		}
		if strings.TrimSpace(line) == "" {
			// Blank records do not produce items.
			continue
		}
		item, err := hydrateItem(s.d, line)
		if err != nil {
			s.err = err
			s.stop()
			return false
		}
		value, ok := item.(T)
		if !ok && item != nil {
			s.err = fmt.Errorf("decoded item %T does not fit stream type", item)
			s.stop()
			return false
		}
		s.current = value
		return true
	}
}

// Current returns the item decoded by the last successful Next.
func (s *Stream[T]) Current() T {
	return s.current
}

// Err returns the error that ended the stream, if any.
func (s *Stream[T]) Err() error {
	return s.err
}

// Close releases the underlying connection. Safe to call at any point
// and more than once.
func (s *Stream[T]) Close() error {
	if s.done {
		return nil
	}
	return s.stop()
}

func (s *Stream[T]) stop() error {
	s.done = true
	return s.src.Close()
}

// hydrateItem decodes one non-empty record into the stream's item type.
func hydrateItem(d *descriptor, line string) (interface{}, error) {
	if d.strategy.itemParser != nil {
		return d.strategy.itemParser(line)
	}
	rt := d.strategy.item
	switch {
	case rt.Kind() == reflect.String:
		rv := reflect.New(rt).Elem()
		rv.SetString(line)
		return rv.Interface(), nil
	case rt == reflect.TypeOf([]byte(nil)):
		return []byte(line), nil
	case rt.Kind() == reflect.Interface:
		// Best effort: JSON if the record decodes, raw string if not.
		var value interface{}
		if err := json.Unmarshal([]byte(line), &value); err != nil {
			return line, nil
		}
		return value, nil
	default:
		ptr := reflect.New(rt)
		if err := json.Unmarshal([]byte(line), ptr.Interface()); err != nil {
			return nil, fmt.Errorf("failed to decode stream record: %w", err)
		}
		if err := validateDecoded(rt, ptr.Elem()); err != nil {
			return nil, err
		}
		return ptr.Elem().Interface(), nil
	}
}

// Item carries one asynchronous stream element: a value or the error
// that ended the stream.
type Item[T any] struct {
	Value T
	Err   error
}
