package clientele

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	cerrors "github.com/phalt/clientele/errors"
)

type event struct {
	Seq  int    `json:"seq"`
	Kind string `json:"kind"`
}

func newStreamServer(t *testing.T, body string, status int) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	client := NewClient(server.URL)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestStreamYieldsRecordsInOrder(t *testing.T) {
	body := `{"seq":1,"kind":"open"}

{"seq":2,"kind":"data"}


{"seq":3,"kind":"close"}
`
	client := newStreamServer(t, body, http.StatusOK)
	watch := GETStream[struct{}, event](client, "/events")

	st, err := watch.Stream(context.Background(), struct{}{})
	require.NoError(t, err)
	defer st.Close()

	var got []event
	for st.Next() {
		got = append(got, st.Current())
	}
	require.NoError(t, st.Err())
	require.Equal(t, []event{
		{Seq: 1, Kind: "open"},
		{Seq: 2, Kind: "data"},
		{Seq: 3, Kind: "close"},
	}, got, "blank records are skipped and do not count")
}

func TestStreamErrorStatusFailsBeforeFirstItem(t *testing.T) {
	client := newStreamServer(t, `{"error":"nope"}`, http.StatusForbidden)
	watch := GETStream[struct{}, event](client, "/events")

	st, err := watch.Stream(context.Background(), struct{}{})
	require.Nil(t, st)
	var protoErr *cerrors.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	require.Equal(t, http.StatusForbidden, protoErr.Status)
}

func TestStreamStringItems(t *testing.T) {
	client := newStreamServer(t, "alpha\nbeta\n\ngamma\n", http.StatusOK)
	watch := GETStream[struct{}, string](client, "/lines")

	st, err := watch.Stream(context.Background(), struct{}{})
	require.NoError(t, err)
	defer st.Close()

	var got []string
	for st.Next() {
		got = append(got, st.Current())
	}
	require.NoError(t, st.Err())
	require.Equal(t, []string{"alpha", "beta", "gamma"}, got)
}

func TestStreamItemParser(t *testing.T) {
	client := newStreamServer(t, "1\n2\n3\n", http.StatusOK)
	watch := GETStream[struct{}, int](client, "/numbers",
		ItemParser(func(line string) (interface{}, error) {
			var n int
			_, err := fmt.Sscanf(line, "%d", &n)
			return n * 10, err
		}))

	st, err := watch.Stream(context.Background(), struct{}{})
	require.NoError(t, err)
	defer st.Close()

	var got []int
	for st.Next() {
		got = append(got, st.Current())
	}
	require.NoError(t, st.Err())
	require.Equal(t, []int{10, 20, 30}, got)
}

func TestStreamBestEffortItems(t *testing.T) {
	client := newStreamServer(t, "{\"seq\":1}\nnot json\n", http.StatusOK)
	watch := GETStream[struct{}, interface{}](client, "/mixed")

	st, err := watch.Stream(context.Background(), struct{}{})
	require.NoError(t, err)
	defer st.Close()

	var got []interface{}
	for st.Next() {
		got = append(got, st.Current())
	}
	require.NoError(t, st.Err())
	require.Equal(t, []interface{}{
		map[string]interface{}{"seq": float64(1)},
		"not json",
	}, got)
}

func TestStreamEarlyCloseReleasesConnection(t *testing.T) {
	body := strings.Repeat(`{"seq":1,"kind":"data"}`+"\n", 1000)
	client := newStreamServer(t, body, http.StatusOK)
	watch := GETStream[struct{}, event](client, "/events")

	st, err := watch.Stream(context.Background(), struct{}{})
	require.NoError(t, err)

	require.True(t, st.Next())
	require.NoError(t, st.Close())
	require.NoError(t, st.Close(), "Close is idempotent")
	require.False(t, st.Next(), "a closed stream yields nothing")
}

func TestStreamDecodeErrorStopsIteration(t *testing.T) {
	client := newStreamServer(t, "{\"seq\":1,\"kind\":\"ok\"}\n{broken\n", http.StatusOK)
	watch := GETStream[struct{}, event](client, "/events")

	st, err := watch.Stream(context.Background(), struct{}{})
	require.NoError(t, err)
	defer st.Close()

	require.True(t, st.Next())
	require.False(t, st.Next())
	require.Error(t, st.Err())
}

func TestStreamChan(t *testing.T) {
	body := "{\"seq\":1,\"kind\":\"a\"}\n\n{\"seq\":2,\"kind\":\"b\"}\n"
	client := newStreamServer(t, body, http.StatusOK)
	watch := GETStream[struct{}, event](client, "/events")

	var got []event
	for item := range watch.Chan(context.Background(), struct{}{}) {
		require.NoError(t, item.Err)
		got = append(got, item.Value)
	}
	require.Equal(t, []event{{Seq: 1, Kind: "a"}, {Seq: 2, Kind: "b"}}, got)
}

func TestStreamChanDeliversPreStreamError(t *testing.T) {
	client := newStreamServer(t, "", http.StatusBadGateway)
	watch := GETStream[struct{}, event](client, "/events")

	items := make([]Item[event], 0, 1)
	for item := range watch.Chan(context.Background(), struct{}{}) {
		items = append(items, item)
	}
	require.Len(t, items, 1)
	var protoErr *cerrors.ProtocolError
	require.ErrorAs(t, items[0].Err, &protoErr)
}

func TestStreamChanAbandonedConsumer(t *testing.T) {
	body := strings.Repeat(`{"seq":9,"kind":"x"}`+"\n", 1000)
	client := newStreamServer(t, body, http.StatusOK)
	watch := GETStream[struct{}, event](client, "/events")

	ctx, cancel := context.WithCancel(context.Background())
	ch := watch.Chan(ctx, struct{}{})
	item, ok := <-ch
	require.True(t, ok)
	require.NoError(t, item.Err)
	cancel()
	// The producer goroutine exits and releases the connection; goleak
	// in TestMain verifies it.
}
