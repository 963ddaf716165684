package mcp

import (
	"context"
	"encoding/json"
	"testing"
)

// fakeTransport is a pre-programmed Transport for exercising Client
// without a real subprocess or HTTP server. Each call to roundTrip pops
// the next scripted response (or error) off the queue and records the
// request it was given, so tests can assert on both directions.
type fakeTransport struct {
	responses []*rpcResponse
	errs      []error
	seenIDs   []uint64
	next      int
}

func (f *fakeTransport) roundTrip(req *rpcRequest) (*rpcResponse, error) {
	f.seenIDs = append(f.seenIDs, req.ID)
	i := f.next
	f.next++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	resp := f.responses[i]
	resp.ID = req.ID
	return resp, nil
}

func (f *fakeTransport) close() error { return nil }

func rawResult(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestClientListToolsReturnsProgrammedTools(t *testing.T) {
	ft := &fakeTransport{
		responses: []*rpcResponse{
			{JSONRPC: "2.0", Result: rawResult(t, map[string]interface{}{
				"tools": []map[string]interface{}{
					{"name": "search", "description": "search the web", "inputSchema": map[string]interface{}{"type": "object"}},
					{"name": "fetch", "description": "fetch a url", "inputSchema": map[string]interface{}{"type": "object"}},
				},
			})},
		},
	}

	c := NewClient(ft)
	tools, err := c.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 2 || tools[0].Name != "search" || tools[1].Name != "fetch" {
		t.Fatalf("unexpected tools: %+v", tools)
	}
}

func TestClientJSONRPCErrorSurfacesAsProtocolError(t *testing.T) {
	ft := &fakeTransport{
		responses: []*rpcResponse{
			{JSONRPC: "2.0", Error: &rpcError{Code: -32601, Message: "method not found"}},
		},
	}

	c := NewClient(ft)
	_, err := c.ListTools(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	protoErr, ok := err.(*ProtocolError)
	if !ok {
		t.Fatalf("expected *ProtocolError, got %T: %v", err, err)
	}
	if protoErr.Code != -32601 || protoErr.Message != "method not found" {
		t.Fatalf("unexpected protocol error: %+v", protoErr)
	}
}

func TestClientRequestIDsStrictlyIncreasing(t *testing.T) {
	ft := &fakeTransport{
		responses: []*rpcResponse{
			{JSONRPC: "2.0", Result: rawResult(t, map[string]interface{}{"tools": []interface{}{}})},
			{JSONRPC: "2.0", Result: rawResult(t, map[string]interface{}{"tools": []interface{}{}})},
			{JSONRPC: "2.0", Result: rawResult(t, map[string]interface{}{"content": []interface{}{}, "isError": false})},
		},
	}

	c := NewClient(ft)
	ctx := context.Background()
	if _, err := c.ListTools(ctx); err != nil {
		t.Fatalf("ListTools #1: %v", err)
	}
	if _, err := c.ListTools(ctx); err != nil {
		t.Fatalf("ListTools #2: %v", err)
	}
	if _, err := c.CallTool(ctx, "search", map[string]interface{}{"q": "go"}); err != nil {
		t.Fatalf("CallTool: %v", err)
	}

	if len(ft.seenIDs) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(ft.seenIDs))
	}
	for i := 1; i < len(ft.seenIDs); i++ {
		if ft.seenIDs[i] <= ft.seenIDs[i-1] {
			t.Fatalf("request IDs not strictly increasing: %v", ft.seenIDs)
		}
	}
}

func TestClientCallToolFlattensTextContent(t *testing.T) {
	ft := &fakeTransport{
		responses: []*rpcResponse{
			{JSONRPC: "2.0", Result: rawResult(t, map[string]interface{}{
				"content": []map[string]interface{}{
					{"type": "text", "text": "line one"},
					{"type": "text", "text": "line two"},
				},
				"isError": false,
			})},
		},
	}

	c := NewClient(ft)
	result, err := c.CallTool(context.Background(), "search", map[string]interface{}{"q": "go"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.Text != "line one\nline two" {
		t.Fatalf("unexpected flattened text: %q", result.Text)
	}
	if result.IsError {
		t.Fatal("expected IsError false")
	}
}
