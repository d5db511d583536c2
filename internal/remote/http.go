package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tmorishita/penflow/internal/common"
	"github.com/tmorishita/penflow/internal/logging"
)

// Client talks JSON over HTTP to the document store and opens websocket
// change feeds. Paths follow /v1/{collection}[/{id}].
type Client struct {
	base   string
	http   *http.Client
	logger logging.Logger
}

var _ Store = (*Client)(nil)

func NewClient(endpoint string, logger logging.Logger) *Client {
	return &Client{
		base:   endpoint,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

func (c *Client) docURL(collection, id string) string {
	u := c.base + "/v1/" + url.PathEscape(collection)
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

func (c *Client) Get(ctx context.Context, collection, id string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.docURL(collection, id), nil)
	if err != nil {
		return Document{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", common.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, common.ErrNotFound)
	default:
		return Document{}, unexpectedStatus(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Document{}, err
	}
	return Document{Collection: collection, ID: id, Data: data}, nil
}

func (c *Client) Put(ctx context.Context, doc Document) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.docURL(doc.Collection, doc.ID), bytes.NewReader(doc.Data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return unexpectedStatus(resp)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.docURL(collection, id), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	}
	return unexpectedStatus(resp)
}

func (c *Client) List(ctx context.Context, collection string, q Query) ([]Document, error) {
	u, err := url.Parse(c.docURL(collection, ""))
	if err != nil {
		return nil, err
	}
	values := u.Query()
	if q.ProjectID != "" {
		values.Set("projectId", q.ProjectID)
	}
	if q.UpdatedAfter > 0 {
		values.Set("updatedAfter", strconv.FormatInt(q.UpdatedAfter, 10))
	}
	u.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus(resp)
	}

	var bodies []listItem
	if err := decodeJSON(resp.Body, &bodies); err != nil {
		return nil, fmt.Errorf("failed to decode %s listing: %w", collection, err)
	}

	docs := make([]Document, 0, len(bodies))
	for _, item := range bodies {
		docs = append(docs, Document{Collection: collection, ID: item.ID, Data: item.Data})
	}
	return docs, nil
}

// listItem is one entry of a collection listing: the id alongside the
// full document body.
type listItem struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

func unexpectedStatus(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("remote returned %s: %s", resp.Status, bytes.TrimSpace(b))
}
