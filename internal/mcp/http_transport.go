package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpTransport speaks JSON-RPC over a single POST per call: the request
// body is the JSON-RPC request object, the response body is the JSON-RPC
// response object. No SSE/streaming framing — a remote server that needs
// that belongs behind a different transportType.
type httpTransport struct {
	url     string
	headers map[string]string
	client  *http.Client
}

func newHTTPTransport(url string, headers map[string]string) *httpTransport {
	return &httpTransport{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (t *httpTransport) roundTrip(req *rpcRequest) (*rpcResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, newTransportError("marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, newTransportError("build http request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, newTransportError("http round trip", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError("read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newTransportError(fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, newTransportError("decode response", err)
	}
	return &rpcResp, nil
}

func (t *httpTransport) close() error {
	t.client.CloseIdleConnections()
	return nil
}
