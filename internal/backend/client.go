// Package backend is the thin REST adapter for the third-party application
// sitting behind the replication surface. It speaks the application's plain
// API (UPDATED, FETCH, SAVE, USER_ALLOWED) and knows nothing about
// revisions or sequences.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fiatjaf/dancing-couches/pkg/model"
)

// Credentials are the caller's credentials, passed through to the backend
// verbatim. No policy is applied here.
type Credentials struct {
	Username string
	Password string
}

// ChangedDoc is one item of the backend's UPDATED report.
type ChangedDoc struct {
	ID         string
	LastUpdate time.Time
}

// SaveBatch partitions forwarded documents the way the backend's SAVE
// operation expects them.
type SaveBatch struct {
	Create []model.Document `json:"create"`
	Update []model.Document `json:"update"`
	Delete []model.Document `json:"delete"`
}

// SaveResult is the backend's answer to a SAVE call. PerDoc is non-nil only
// when the backend reported an explicit boolean per document, aligned with
// the create, update, delete concatenation order.
type SaveResult struct {
	PerDoc []bool
}

// Caller is the subset of backend operations the core consumes. The
// concrete Client implements it; tests substitute fakes.
type Caller interface {
	Changes(ctx context.Context, endpoint string, creds Credentials, since time.Time) ([]ChangedDoc, error)
	Fetch(ctx context.Context, endpoint string, creds Credentials, ids []string) ([]model.Document, error)
	Save(ctx context.Context, endpoint string, creds Credentials, batch SaveBatch) (*SaveResult, error)
	UserAllowed(ctx context.Context, endpoint string, creds Credentials) (bool, error)
}

// Client calls the backend application over HTTP with a bounded timeout.
type Client struct {
	http *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Changes asks the backend which documents changed at or after since.
func (c *Client) Changes(ctx context.Context, endpoint string, creds Credentials, since time.Time) ([]ChangedDoc, error) {
	q := credParams(creds)
	var stamp int64
	if !since.IsZero() {
		stamp = since.Unix()
	}
	q.Set("timestamp", strconv.FormatInt(stamp, 10))

	var raw []struct {
		ID         string      `json:"id"`
		LastUpdate interface{} `json:"last_update"`
	}
	if err := c.getJSON(ctx, endpoint+"/UPDATED", q, &raw); err != nil {
		return nil, err
	}

	out := make([]ChangedDoc, 0, len(raw))
	for _, r := range raw {
		t, err := ParseTime(r.LastUpdate)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", r.ID, err)
		}
		out = append(out, ChangedDoc{ID: r.ID, LastUpdate: t})
	}
	return out, nil
}

// Fetch retrieves document bodies by ID in one batched call. Each returned
// body carries an "id" field.
func (c *Client) Fetch(ctx context.Context, endpoint string, creds Credentials, ids []string) ([]model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := credParams(creds)
	q.Set("ids", strings.Join(ids, ","))

	var docs []model.Document
	if err := c.getJSON(ctx, endpoint+"/FETCH", q, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Save submits the partitioned write batch. A response body of `false`
// signals outright failure; a list of booleans reports per-document
// outcomes; anything else is an implicit all-success.
func (c *Client) Save(ctx context.Context, endpoint string, creds Credentials, batch SaveBatch) (*SaveResult, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/SAVE", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrBackendWriteFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: backend returned %s", model.ErrBackendWriteFailed, resp.Status)
	}

	var answer json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		// no parseable body still counts as success
		return &SaveResult{}, nil
	}

	var flat bool
	if err := json.Unmarshal(answer, &flat); err == nil {
		if !flat {
			return nil, fmt.Errorf("%w: backend refused the batch", model.ErrBackendWriteFailed)
		}
		return &SaveResult{}, nil
	}

	var perDoc []bool
	if err := json.Unmarshal(answer, &perDoc); err == nil {
		return &SaveResult{PerDoc: perDoc}, nil
	}
	return &SaveResult{}, nil
}

// UserAllowed checks the credentials against the backend. Only the status
// matters.
func (c *Client) UserAllowed(ctx context.Context, endpoint string, creds Credentials) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		endpoint+"/USER_ALLOWED?"+credParams(creds).Encode(), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", model.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}

func (c *Client) getJSON(ctx context.Context, rawurl string, q url.Values, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: backend returned %s", model.ErrBackendUnavailable, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func credParams(creds Credentials) url.Values {
	q := url.Values{}
	q.Set("username", creds.Username)
	q.Set("password", creds.Password)
	return q
}
