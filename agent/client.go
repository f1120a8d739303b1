package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/calehh/hac-election/tx"
)

// Client talks to a running Service.
type Client struct {
	Url    string
	client *http.Client
	logger cmtlog.Logger
}

func NewClient(baseUrl string, logger cmtlog.Logger) *Client {
	return &Client{
		Url:    baseUrl,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger.With("module", "client"),
	}
}

func (c *Client) do(ctx context.Context, method string, body []byte, query url.Values, path ...string) (status int, dat []byte, err error) {
	u, err := url.JoinPath(c.Url, path...)
	if err != nil {
		c.logger.Error("join url fail", "err", err)
		return
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("request api fail", "url", u, "err", err)
		return
	}
	defer res.Body.Close()
	dat, err = io.ReadAll(res.Body)
	return res.StatusCode, dat, err
}

// Submit sends cmd. Rejected commands come back as a response with a
// non-zero code; err is only set when no response was decoded.
func (c *Client) Submit(ctx context.Context, cmd *tx.Command) (*CommandResponse, error) {
	body, err := tx.MarshalCommand(cmd)
	if err != nil {
		return nil, err
	}
	_, dat, err := c.do(ctx, http.MethodPost, body, nil, "v1", "commands")
	if err != nil {
		return nil, err
	}
	var res CommandResponse
	if err = json.Unmarshal(dat, &res); err != nil {
		return nil, fmt.Errorf("decode command response: %w: %s", err, dat)
	}
	return &res, nil
}

// Get fetches a query endpoint and returns the raw JSON.
func (c *Client) Get(ctx context.Context, query url.Values, path ...string) (json.RawMessage, error) {
	status, dat, err := c.do(ctx, http.MethodGet, nil, query, append([]string{"v1"}, path...)...)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("api returned %d: %s", status, dat)
	}
	return dat, nil
}

// History posts a page request to one of the indexer endpoints, e.g.
// "getTrades".
func (c *Client) History(ctx context.Context, endpoint string, req PageReq) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	status, dat, err := c.do(ctx, http.MethodPost, body, nil, endpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("api returned %d: %s", status, dat)
	}
	return dat, nil
}
