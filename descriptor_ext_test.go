package clientele_test

import (
	"testing"

	"github.com/phalt/clientele"
)

// A caller's own generic named Promise, unrelated to this module's.
type Promise[T any] struct {
	Value T
}

func TestForeignPromiseResultTypeAccepted(t *testing.T) {
	client := clientele.NewClient("http://example.invalid")
	defer client.Close()

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("declaration rejected a caller-owned Promise type: %v", r)
		}
	}()
	clientele.GET[struct{}, *Promise[int]](client, "/jobs", nil)
}
