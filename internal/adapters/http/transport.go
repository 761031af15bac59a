package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bft-labs/tracebeacon/internal/domain"
	"github.com/bft-labs/tracebeacon/internal/ports"
	"github.com/bft-labs/tracebeacon/pkg/log"
)

// DefaultTimeout bounds a single beacon request.
const DefaultTimeout = 10 * time.Second

const jsonContentType = "application/json; charset=utf-8"

// Transport implements ports.Transport using HTTP.
type Transport struct {
	client  ports.HTTPClient
	logger  ports.Logger
	timeout time.Duration
	headers http.Header
}

// NewTransport creates a new HTTP transport. extra headers are added to
// every request.
func NewTransport(client ports.HTTPClient, logger ports.Logger, timeout time.Duration, extra http.Header) *Transport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Transport{
		client:  client,
		logger:  logger,
		timeout: timeout,
		headers: extra.Clone(),
	}
}

// CreateTransport prepares one beacon request.
func (t *Transport) CreateTransport(method, url string) (ports.TransportHandle, error) {
	switch method {
	case http.MethodPost, http.MethodGet:
	default:
		return nil, fmt.Errorf("%w: unsupported method %q", domain.ErrTransportUnavailable, method)
	}
	if url == "" {
		return nil, fmt.Errorf("%w: empty beacon url", domain.ErrTransportUnavailable)
	}
	return &request{transport: t, method: method, url: url}, nil
}

// request implements ports.TransportHandle.
type request struct {
	transport *Transport
	method    string
	url       string
	onError   func(error)
}

func (r *request) OnError(fn func(error)) { r.onError = fn }

// Send transmits the payload and reports any failure through the error callback.
func (r *request) Send(payload []byte) {
	if err := r.do(payload); err != nil {
		r.transport.logger.Debug("beacon request failed", ports.Err(err), ports.String("url", r.url))
		if r.onError != nil {
			r.onError(err)
		}
	}
}

func (r *request) do(payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.transport.timeout)
	defer cancel()

	var body io.Reader
	if r.method == http.MethodPost {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	for k, vs := range r.transport.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.method == http.MethodPost {
		req.Header.Set("Content-Type", jsonContentType)
	}

	resp, err := r.transport.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: server returned %d: %s", domain.ErrBeaconRejected, resp.StatusCode, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}
