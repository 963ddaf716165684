package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
)

// Client is a from-scratch MCP client: it owns request framing and ID
// assignment over a Transport (stdio or HTTP) and exposes the handful of
// methods callers in this tree need — initialize, list tools, call a
// tool, ping. It does not depend on any third-party MCP SDK.
type Client struct {
	transport Transport
	nextID    atomic.Uint64
}

// NewClient wraps transport. Every Client starts its own request-ID
// sequence at 1 so IDs are strictly increasing within a connection and
// never repeat.
func NewClient(transport Transport) *Client {
	return &Client{transport: transport}
}

// NewStdioClient spawns command as a child process and speaks
// line-delimited JSON-RPC over its stdin/stdout.
func NewStdioClient(command string, args []string, env []string) (*Client, error) {
	t, err := newStdioTransport(command, args, env)
	if err != nil {
		return nil, err
	}
	return NewClient(t), nil
}

// NewHTTPClient speaks JSON-RPC to url, one POST per call, with headers
// attached to every request (used for bearer tokens, API keys, etc).
func NewHTTPClient(url string, headers map[string]string) *Client {
	return NewClient(newHTTPTransport(url, headers))
}

// call sends method with params and returns the raw result payload, or an
// error — *ProtocolError if the server answered with a JSON-RPC error
// object, *TransportError if the bytes never made it there and back.
func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	req := &rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}

	type rtResult struct {
		resp *rpcResponse
		err  error
	}
	done := make(chan rtResult, 1)
	go func() {
		resp, err := c.transport.roundTrip(req)
		done <- rtResult{resp, err}
	}()

	var r rtResult
	select {
	case <-ctx.Done():
		return nil, newTransportError("context canceled", ctx.Err())
	case r = <-done:
	}
	if r.err != nil {
		return nil, r.err
	}
	resp := r.resp
	if resp.ID != id {
		return nil, newTransportError(fmt.Sprintf("response id %d does not match request id %d", resp.ID, id), nil)
	}
	if resp.Error != nil {
		return nil, &ProtocolError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return resp.Result, nil
}

// Initialize performs the MCP handshake, identifying this client to the
// server. Servers that skip handshake enforcement simply echo it back;
// the result is not otherwise inspected.
func (c *Client) Initialize(ctx context.Context, clientName, clientVersion string) error {
	params := map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"clientInfo": map[string]string{
			"name":    clientName,
			"version": clientVersion,
		},
	}
	_, err := c.call(ctx, "initialize", params)
	return err
}

// ListTools calls tools/list and returns the tools the server advertises.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	raw, err := c.call(ctx, "tools/list", map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	var result struct {
		Tools []ToolDefinition `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, newTransportError("decode tools/list result", err)
	}
	return result.Tools, nil
}

// contentBlock is one entry of a tools/call result's content array.
// Non-text block types are rendered as their raw JSON rather than
// dropped, so callers still see something useful.
type contentBlock struct {
	Type string          `json:"type"`
	Text string          `json:"text"`
	Raw  json.RawMessage `json:"-"`
}

func (b *contentBlock) UnmarshalJSON(data []byte) error {
	type alias contentBlock
	if err := json.Unmarshal(data, (*alias)(b)); err != nil {
		return err
	}
	b.Raw = data
	return nil
}

// CallTool calls tools/call for name with args and flattens the returned
// content blocks into a single string.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallToolResult, error) {
	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	raw, err := c.call(ctx, "tools/call", params)
	if err != nil {
		return nil, err
	}

	var result struct {
		Content []contentBlock `json:"content"`
		IsError bool           `json:"isError"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, newTransportError("decode tools/call result", err)
	}

	parts := make([]string, 0, len(result.Content))
	for _, block := range result.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
			continue
		}
		parts = append(parts, string(block.Raw))
	}

	return &CallToolResult{
		Text:    strings.Join(parts, "\n"),
		IsError: result.IsError,
	}, nil
}

// Ping calls the MCP ping method. Servers that don't implement it answer
// with a JSON-RPC "method not found" error, which callers should treat as
// a healthy-but-unimplemented response rather than a dead connection.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, "ping", map[string]interface{}{})
	return err
}

// Close releases the underlying transport (kills the child process for
// stdio, closes idle connections for HTTP).
func (c *Client) Close() error {
	return c.transport.close()
}
