package remote

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/tmorishita/penflow/internal/common"
)

// Subscribe opens the change feed at /v1/{collection}/watch. The feed
// survives connection drops: dial failures and broken reads reconnect with
// fibonacci backoff, and only an exhausted dial budget or Close ends it.
func (c *Client) Subscribe(ctx context.Context, collection, projectID string) (Subscription, error) {
	u, err := c.watchURL(collection, projectID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &wsSubscription{
		client:     c,
		url:        u,
		collection: collection,
		events:     make(chan Event, 16),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	// Fail fast if the feed cannot be established at all.
	conn, err := sub.dial(ctx)
	if err != nil {
		cancel()
		close(sub.done)
		return nil, err
	}

	go sub.run(ctx, conn)
	return sub, nil
}

func (c *Client) watchURL(collection, projectID string) (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/" + url.PathEscape(collection) + "/watch"
	if projectID != "" {
		q := u.Query()
		q.Set("projectId", projectID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

type wsSubscription struct {
	client     *Client
	url        string
	collection string
	events     chan Event
	cancel     context.CancelFunc
	done       chan struct{}

	mu  sync.Mutex
	err error
}

func (s *wsSubscription) Events() <-chan Event { return s.events }

func (s *wsSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *wsSubscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *wsSubscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// dial connects with a capped fibonacci backoff so brief remote blips do
// not kill the feed.
func (s *wsSubscription) dial(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	backoff := retry.WithMaxRetries(6, retry.WithCappedDuration(15*time.Second, retry.NewFibonacci(time.Second)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, _, err := websocket.Dial(ctx, s.url, nil)
		if err != nil {
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRemoteUnavailable, err)
	}
	return conn, nil
}

func (s *wsSubscription) run(ctx context.Context, conn *websocket.Conn) {
	defer close(s.done)
	defer close(s.events)

	for {
		err := s.read(ctx, conn)
		_ = conn.Close(websocket.StatusNormalClosure, "")
		if ctx.Err() != nil {
			return
		}
		s.client.logger.Warn(ctx, "change feed dropped, reconnecting",
			"collection", s.collection, "error", err)

		conn, err = s.dial(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.fail(err)
				s.client.logger.Error(ctx, "change feed reconnect failed",
					"collection", s.collection, "error", err)
			}
			return
		}
	}
}

// read pumps events from one connection until it breaks.
func (s *wsSubscription) read(ctx context.Context, conn *websocket.Conn) error {
	for {
		var ev Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return err
		}
		if ev.Document.Collection == "" {
			ev.Document.Collection = s.collection
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
