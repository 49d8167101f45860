package closingclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestCloseCancelsInFlightRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)

	cc := New(http.DefaultClient)

	var errCall, errClose error
	var wg sync.WaitGroup

	start := time.Now()

	wg.Add(1)
	go func() {
		defer wg.Done()
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		if err != nil {
			errCall = err
			return
		}
		res, err := cc.Do(req)
		if err == nil {
			res.Body.Close()
		}
		errCall = err
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(100 * time.Millisecond)
		errClose = cc.Close()
	}()

	wg.Wait()

	if errCall == nil {
		t.Error("expected the in-flight request to fail after Close")
	}
	if errClose != nil {
		t.Errorf("Close failed: %v", errClose)
	}
	if spent := time.Since(start); spent > time.Second/2 {
		t.Errorf("expected Close to cut the call short, spent %s", spent)
	}
}

func TestDoAfterClose(t *testing.T) {
	cc := New(http.DefaultClient)
	if err := cc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:0/", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cc.Do(req); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}

func TestFinishedRequestsLeaveNoCancels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(server.Close)

	cc := New(http.DefaultClient)
	t.Cleanup(func() { cc.Close() })

	for i := 0; i < 10; i++ {
		req, err := http.NewRequest(http.MethodGet, server.URL, nil)
		if err != nil {
			t.Fatal(err)
		}
		res, err := cc.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		res.Body.Close()
	}

	cc.mu.Lock()
	ncancels := len(cc.cancels)
	cc.mu.Unlock()
	if ncancels != 0 {
		t.Errorf("expected no cancels left, got %d", ncancels)
	}
}
