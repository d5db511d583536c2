package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestSubscribe_DeliversEvents(t *testing.T) {
	events := []Event{
		{Type: EventChanged, Document: Document{ID: "s1", Data: json.RawMessage(`{"id":"s1","_version":2}`)}},
		{Type: EventDeleted, Document: Document{ID: "s2"}},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/scenes/watch", r.URL.Path)
		require.Equal(t, "p1", r.URL.Query().Get("projectId"))

		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()
		for _, ev := range events {
			require.NoError(t, wsjson.Write(ctx, conn, ev))
		}
		<-ctx.Done()
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())
	sub, err := client.Subscribe(context.Background(), "scenes", "p1")
	require.NoError(t, err)
	defer sub.Close()

	for _, want := range events {
		select {
		case got := <-sub.Events():
			assert.Equal(t, want.Type, got.Type)
			assert.Equal(t, want.Document.ID, got.Document.ID)
			// the feed fills in the collection when the event omits it
			assert.Equal(t, "scenes", got.Document.Collection)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestSubscribe_CloseStopsFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())
	sub, err := client.Subscribe(context.Background(), "projects", "")
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	_, open := <-sub.Events()
	assert.False(t, open)
	assert.NoError(t, sub.Err())
}

func TestSubscribe_DialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := NewClient("http://127.0.0.1:1", testLogger())
	_, err := client.Subscribe(ctx, "scenes", "p1")
	assert.Error(t, err)
}

func TestWatchURL(t *testing.T) {
	client := NewClient("https://sync.example.com/api", testLogger())
	u, err := client.watchURL("chapters", "p1")
	require.NoError(t, err)
	assert.Equal(t, "wss://sync.example.com/api/v1/chapters/watch?projectId=p1", u)

	u, err = client.watchURL("projects", "")
	require.NoError(t, err)
	assert.Equal(t, "wss://sync.example.com/api/v1/projects/watch", u)
}
