package sync

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tmorishita/penflow/internal/common"
	"github.com/tmorishita/penflow/internal/logging"
	"github.com/tmorishita/penflow/internal/remote"
	"github.com/tmorishita/penflow/internal/store"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestStores(t *testing.T) *store.Stores {
	t.Helper()
	stores, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.DB.Close() })
	return stores
}

// fakeRemote is an in-memory remote.Store with operation counters and an
// injectable failure.
type fakeRemote struct {
	mu      sync.Mutex
	docs    map[string]json.RawMessage // "collection/id" -> body
	puts    int
	deletes int
	failPut error
	subs    []*fakeSub
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{docs: map[string]json.RawMessage{}}
}

func (f *fakeRemote) key(collection, id string) string { return collection + "/" + id }

func (f *fakeRemote) setFailPut(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPut = err
}

func (f *fakeRemote) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func (f *fakeRemote) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes
}

// seed stores a document without counting it as a client write.
func (f *fakeRemote) seed(collection, id string, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[f.key(collection, id)] = json.RawMessage(body)
}

func (f *fakeRemote) body(collection, id string) (json.RawMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.docs[f.key(collection, id)]
	return b, ok
}

func (f *fakeRemote) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.docs[f.key(collection, id)]
	if !ok {
		return remote.Document{}, common.ErrNotFound
	}
	return remote.Document{Collection: collection, ID: id, Data: body}, nil
}

func (f *fakeRemote) Put(ctx context.Context, doc remote.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut != nil {
		return f.failPut
	}
	f.puts++
	f.docs[f.key(doc.Collection, doc.ID)] = doc.Data
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	delete(f.docs, f.key(collection, id))
	return nil
}

func (f *fakeRemote) List(ctx context.Context, collection string, q remote.Query) ([]remote.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	type meta struct {
		ProjectID string `json:"projectId"`
		UpdatedAt int64  `json:"updatedAt"`
	}
	prefix := collection + "/"
	var docs []remote.Document
	for key, body := range f.docs {
		if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		var m meta
		_ = json.Unmarshal(body, &m)
		if q.ProjectID != "" && m.ProjectID != q.ProjectID {
			continue
		}
		if q.UpdatedAfter > 0 && m.UpdatedAt <= q.UpdatedAfter {
			continue
		}
		docs = append(docs, remote.Document{Collection: collection, ID: key[len(prefix):], Data: body})
	}
	return docs, nil
}

func (f *fakeRemote) Subscribe(ctx context.Context, collection, projectID string) (remote.Subscription, error) {
	sub := &fakeSub{
		collection: collection,
		projectID:  projectID,
		events:     make(chan remote.Event, 16),
	}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	return sub, nil
}

func (f *fakeRemote) openSubs() []*fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	var open []*fakeSub
	for _, sub := range f.subs {
		if !sub.closed() {
			open = append(open, sub)
		}
	}
	return open
}

type fakeSub struct {
	collection string
	projectID  string
	events     chan remote.Event

	mu     sync.Mutex
	done   bool
	closeO sync.Once
}

func (s *fakeSub) Events() <-chan remote.Event { return s.events }
func (s *fakeSub) Err() error                  { return nil }

func (s *fakeSub) Close() error {
	s.closeO.Do(func() {
		s.mu.Lock()
		s.done = true
		s.mu.Unlock()
		close(s.events)
	})
	return nil
}

func (s *fakeSub) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *fakeSub) emit(ev remote.Event) {
	s.events <- ev
}

func fakeEvent(doc remote.Document) remote.Event {
	return remote.Event{Type: remote.EventChanged, Document: doc}
}
