package state

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
)

// Wire types shared with the document server in agent.
type DocumentResponse struct {
	Id      string          `json:"id"`
	Version uint64          `json:"version"`
	Body    json.RawMessage `json:"body,omitempty"`
}

type CreateDocumentRequest struct {
	Id   string          `json:"id,omitempty"`
	Body json.RawMessage `json:"body"`
}

type UpdateDocumentRequest struct {
	ExpectedVersion uint64          `json:"expectedVersion"`
	Body            json.RawMessage `json:"body"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// HTTPTransport talks to a remote document server. 404 maps to
// ErrNotFound and 409 to ErrVersionConflict or ErrExists.
type HTTPTransport struct {
	Url    string
	client *http.Client
	logger cmtlog.Logger
}

var _ Transport = (*HTTPTransport)(nil)

func NewHTTPTransport(baseUrl string, timeout time.Duration, logger cmtlog.Logger) *HTTPTransport {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTransport{
		Url:    baseUrl,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("module", "httpstore"),
	}
}

func (h *HTTPTransport) do(ctx context.Context, method string, conflict error, body any, out any, path ...string) error {
	u, err := url.JoinPath(h.Url, append([]string{"v1", "documents"}, path...)...)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("request document server fail", "method", method, "url", u, "err", err)
		return err
	}
	defer res.Body.Close()
	buf, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	switch res.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return conflict
	default:
		var e ErrorResponse
		_ = json.Unmarshal(buf, &e)
		return fmt.Errorf("document server %s %s: %d %s", method, u, res.StatusCode, e.Error)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(buf, out)
}

func (h *HTTPTransport) GetDocument(ctx context.Context, id string) ([]byte, uint64, error) {
	var res DocumentResponse
	if err := h.do(ctx, http.MethodGet, ErrVersionConflict, nil, &res, id); err != nil {
		return nil, 0, err
	}
	return res.Body, res.Version, nil
}

func (h *HTTPTransport) CreateDocument(ctx context.Context, body []byte) (string, error) {
	var res DocumentResponse
	if err := h.do(ctx, http.MethodPost, ErrExists, CreateDocumentRequest{Body: body}, &res); err != nil {
		return "", err
	}
	return res.Id, nil
}

func (h *HTTPTransport) CreateNamedDocument(ctx context.Context, id string, body []byte) error {
	return h.do(ctx, http.MethodPost, ErrExists, CreateDocumentRequest{Id: id, Body: body}, nil)
}

func (h *HTTPTransport) UpdateDocument(ctx context.Context, id string, body []byte, expectedVersion uint64) (uint64, error) {
	var res DocumentResponse
	req := UpdateDocumentRequest{ExpectedVersion: expectedVersion, Body: body}
	if err := h.do(ctx, http.MethodPut, ErrVersionConflict, req, &res, id); err != nil {
		return 0, err
	}
	return res.Version, nil
}

func (h *HTTPTransport) DeleteDocument(ctx context.Context, id string) error {
	return h.do(ctx, http.MethodDelete, ErrVersionConflict, nil, nil, id)
}
