package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubExecutor struct {
	tools   []Tool
	lastCmd string
	result  CallToolResult
	err     error
}

func (s *stubExecutor) ListTools() []Tool {
	return s.tools
}

func (s *stubExecutor) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (CallToolResult, error) {
	s.lastCmd = name
	return s.result, s.err
}

func postRPC(t *testing.T, ts *httptest.Server, body string) Response {
	t.Helper()
	resp, err := http.Post(ts.URL, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if out.JSONRPC != "2.0" {
		t.Fatalf("response jsonrpc = %q, want \"2.0\"", out.JSONRPC)
	}
	return out
}

func newTestServer(t *testing.T, executor ToolExecutor) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewServer("", executor).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestInitialize(t *testing.T) {
	ts := newTestServer(t, &stubExecutor{})

	resp := postRPC(t, ts, `{"jsonrpc": "2.0", "id": 1, "method": "initialize", "params": {"protocolVersion": "2024-11-05", "clientInfo": {"name": "test-client", "version": "0.1"}}}`)
	if resp.Error != nil {
		t.Fatalf("initialize returned error: %+v", resp.Error)
	}

	var result InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result.ProtocolVersion != ProtocolVersion {
		t.Errorf("protocolVersion = %q, want %q", result.ProtocolVersion, ProtocolVersion)
	}
	if result.ServerInfo.Name != ServerName {
		t.Errorf("server name = %q, want %q", result.ServerInfo.Name, ServerName)
	}
	if result.Capabilities.Tools == nil {
		t.Error("expected tools capability to be advertised")
	}
}

func TestListTools(t *testing.T) {
	executor := &stubExecutor{tools: []Tool{
		{Name: "get_nodes", InputSchema: InputSchema{Type: "object"}},
		{Name: "start_vm", InputSchema: InputSchema{Type: "object"}},
	}}
	ts := newTestServer(t, executor)

	resp := postRPC(t, ts, `{"jsonrpc": "2.0", "id": 2, "method": "tools/list"}`)
	if resp.Error != nil {
		t.Fatalf("tools/list returned error: %+v", resp.Error)
	}

	var result ListToolsResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if len(result.Tools) != 2 {
		t.Fatalf("got %d tools, want 2", len(result.Tools))
	}
	if result.Tools[0].Name != "get_nodes" {
		t.Errorf("first tool = %q, want %q", result.Tools[0].Name, "get_nodes")
	}
}

func TestCallTool(t *testing.T) {
	executor := &stubExecutor{result: CallToolResult{
		Content: []Content{NewTextContent(`{"success": true}`)},
	}}
	ts := newTestServer(t, executor)

	resp := postRPC(t, ts, `{"jsonrpc": "2.0", "id": 3, "method": "tools/call", "params": {"name": "start_vm", "arguments": {"node": "pve1", "vmid": "101"}}}`)
	if resp.Error != nil {
		t.Fatalf("tools/call returned error: %+v", resp.Error)
	}
	if executor.lastCmd != "start_vm" {
		t.Errorf("executor invoked with %q, want %q", executor.lastCmd, "start_vm")
	}

	var result CallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result.IsError {
		t.Error("unexpected isError")
	}
}

func TestCallToolExecutorFailureBecomesToolError(t *testing.T) {
	executor := &stubExecutor{err: errors.New("executor blew up")}
	ts := newTestServer(t, executor)

	resp := postRPC(t, ts, `{"jsonrpc": "2.0", "id": 4, "method": "tools/call", "params": {"name": "start_vm"}}`)
	if resp.Error != nil {
		t.Fatalf("expected tool-level error, got protocol error: %+v", resp.Error)
	}

	var result CallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected isError on executor failure")
	}
}

func TestPing(t *testing.T) {
	ts := newTestServer(t, &stubExecutor{})
	resp := postRPC(t, ts, `{"jsonrpc": "2.0", "id": 5, "method": "ping"}`)
	if resp.Error != nil {
		t.Fatalf("ping returned error: %+v", resp.Error)
	}
}

func TestInitializedNotificationGetsNoBody(t *testing.T) {
	ts := newTestServer(t, &stubExecutor{})
	resp, err := http.Post(ts.URL, "application/json",
		bytes.NewBufferString(`{"jsonrpc": "2.0", "method": "initialized"}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("notification got a response body: %s", buf.String())
	}
}

func TestUnknownMethod(t *testing.T) {
	ts := newTestServer(t, &stubExecutor{})
	resp := postRPC(t, ts, `{"jsonrpc": "2.0", "id": 6, "method": "tools/destroy"}`)
	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != ErrMethodNotFound {
		t.Errorf("code = %d, want %d", resp.Error.Code, ErrMethodNotFound)
	}
}

func TestRejectsWrongJSONRPCVersion(t *testing.T) {
	ts := newTestServer(t, &stubExecutor{})
	resp := postRPC(t, ts, `{"jsonrpc": "1.0", "id": 7, "method": "ping"}`)
	if resp.Error == nil || resp.Error.Code != ErrInvalidRequest {
		t.Fatalf("expected invalid request error, got %+v", resp.Error)
	}
}

func TestRejectsMalformedJSON(t *testing.T) {
	ts := newTestServer(t, &stubExecutor{})
	resp := postRPC(t, ts, `{"jsonrpc": "2.0", "id": `)
	if resp.Error == nil || resp.Error.Code != ErrParse {
		t.Fatalf("expected parse error, got %+v", resp.Error)
	}
}

func TestRejectsNonPOST(t *testing.T) {
	ts := newTestServer(t, &stubExecutor{})
	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubExecutor{})
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
