package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/convoycd/convoy/api"
	"github.com/convoycd/convoy/history"
	"github.com/convoycd/convoy/scheduler"
)

// Client is an api.Service that talks to a remote daemon.
type Client struct {
	client   *http.Client
	endpoint string
}

func NewClient(c *http.Client, endpoint string) *Client {
	return &Client{client: c, endpoint: endpoint}
}

func (c *Client) url(path string, query url.Values) string {
	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, into interface{}) error {
	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), &reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "reaching daemon")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err == nil && eb.Error != "" {
			return &RemoteError{Code: resp.StatusCode, Message: eb.Error}
		}
		return &RemoteError{Code: resp.StatusCode, Message: resp.Status}
	}
	if into != nil {
		return json.NewDecoder(resp.Body).Decode(into)
	}
	return nil
}

// RemoteError is a non-OK answer from the daemon, carrying the HTTP
// status so callers can tell a bad request from a conflict.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("daemon responded %d: %s", e.Code, e.Message)
}

func (c *Client) Run(ctx context.Context, spec api.RunSpec) (scheduler.Result, error) {
	var res scheduler.Result
	err := c.do(ctx, "POST", "/v1/run", nil, spec, &res)
	return res, err
}

func (c *Client) Approve(ctx context.Context, jobName string) error {
	return c.do(ctx, "POST", "/v1/approve", url.Values{"job": []string{jobName}}, nil, nil)
}

func (c *Client) Status(ctx context.Context) (api.Status, error) {
	var status api.Status
	err := c.do(ctx, "GET", "/v1/status", nil, nil, &status)
	return status, err
}

func (c *Client) History(ctx context.Context) ([]history.Event, error) {
	var events []history.Event
	err := c.do(ctx, "GET", "/v1/history", nil, nil, &events)
	return events, err
}

func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "GET", "/v1/ping", nil, nil, nil)
}
