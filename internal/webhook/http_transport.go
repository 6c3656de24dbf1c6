package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/ethyca-go/privacyrun/internal/jsonx"
)

// ConnectionResolver maps a Webhook's ConnectionRef to the URL its callout
// is posted to. Resolving a connection_ref to live connection details
// (auth, base URL) is a repository/config concern outside this package.
type ConnectionResolver func(connectionRef string) (url string, err error)

// HTTPTransport posts a webhook's Payload as JSON to the URL its
// ConnectionRef resolves to, and returns the raw response body. A non-2xx
// status is reported the same as a transport failure: both are
// both classify as a client error.
type HTTPTransport struct {
	client   *http.Client
	resolve  ConnectionResolver
}

// NewHTTPTransport builds an HTTPTransport using client (or
// http.DefaultClient if nil) and resolve to look up each connection's URL.
func NewHTTPTransport(client *http.Client, resolve ConnectionResolver) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{client: client, resolve: resolve}
}

func (t *HTTPTransport) Send(ctx context.Context, connectionRef string, payload Payload) ([]byte, error) {
	url, err := t.resolve(connectionRef)
	if err != nil {
		return nil, fmt.Errorf("resolving connection %q: %w", connectionRef, err)
	}

	body, err := jsonx.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading webhook response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return respBody, nil
}
