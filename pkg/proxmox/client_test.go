package proxmox

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		Host:       server.URL,
		User:       "root@pam",
		TokenName:  "mcp",
		TokenValue: "secret",
		Timeout:    5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client, server
}

func TestClientSendsTokenAuthorization(t *testing.T) {
	var gotAuth string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data": []}`))
	}))

	if _, err := client.GetNodes(context.Background()); err != nil {
		t.Fatalf("GetNodes returned error: %v", err)
	}

	want := "PVEAPIToken=root@pam!mcp=secret"
	if gotAuth != want {
		t.Fatalf("Authorization = %q, want %q", gotAuth, want)
	}
}

func TestClientAcceptsQualifiedTokenName(t *testing.T) {
	client, err := NewClient(ClientConfig{
		Host:       "pve.example.com",
		TokenName:  "automation@pve!mcp",
		TokenValue: "secret",
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if client.tokenID != "automation@pve!mcp" {
		t.Fatalf("tokenID = %q, want %q", client.tokenID, "automation@pve!mcp")
	}
	if client.baseURL != "https://pve.example.com:8006/api2/json" {
		t.Fatalf("baseURL = %q", client.baseURL)
	}
}

func TestClientRejectsMissingToken(t *testing.T) {
	if _, err := NewClient(ClientConfig{Host: "pve.example.com"}); err == nil {
		t.Fatal("expected error for missing token credentials")
	}
}

func TestClientMapsStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, KindAuth},
		{"forbidden", http.StatusForbidden, KindAuth},
		{"not found", http.StatusNotFound, KindNotFound},
		{"server error", http.StatusInternalServerError, KindUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream said no", tt.status)
			}))

			_, err := client.GetVMStatus(context.Background(), "pve1", "101")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := KindOf(err); got != tt.want {
				t.Fatalf("KindOf(err) = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientNotFoundNamesTarget(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := client.GetNodeStatus(context.Background(), "pve-host01")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is %T, want *APIError", err)
	}
	if apiErr.Kind != KindNotFound {
		t.Fatalf("Kind = %q, want %q", apiErr.Kind, KindNotFound)
	}
	if !strings.Contains(apiErr.Message, "pve-host01") {
		t.Fatalf("Message = %q, want it to name the missing node", apiErr.Message)
	}
}

func TestClientMapsTransportErrors(t *testing.T) {
	client, server := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := client.GetNodes(context.Background())
	if err == nil {
		t.Fatal("expected error after server closed")
	}
	if got := KindOf(err); got != KindUnreachable {
		t.Fatalf("KindOf(err) = %q, want %q", got, KindUnreachable)
	}
}

func TestClientDetectsGuestAgentFailure(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "QEMU guest agent is not running", http.StatusInternalServerError)
	}))

	_, err := client.AgentExec(context.Background(), "pve1", "101", "uptime")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := KindOf(err); got != KindGuestAgent {
		t.Fatalf("KindOf(err) = %q, want %q", got, KindGuestAgent)
	}
}

func TestReadRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "temporarily hosed", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data": [{"node": "pve1", "status": "online"}]}`))
	}))

	nodes, err := client.GetNodes(context.Background())
	if err != nil {
		t.Fatalf("GetNodes returned error after retries: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Node != "pve1" {
		t.Fatalf("unexpected nodes: %+v", nodes)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestReadDoesNotRetryAuthFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "authentication failure", http.StatusUnauthorized)
	}))

	if _, err := client.GetNodes(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestWritesAreNeverRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "temporarily hosed", http.StatusInternalServerError)
	}))

	if _, err := client.StartVM(context.Background(), "pve1", "101"); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 attempt for a state-changing call, got %d", got)
	}
}

func TestPostTaskReturnsUPID(t *testing.T) {
	const upid = "UPID:pve1:0001F4C2:00A3B2C1:65A0F000:qmstart:101:root@pam:"
	var gotPath string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"data": "` + upid + `"}`))
	}))

	got, err := client.StartVM(context.Background(), "pve1", "101")
	if err != nil {
		t.Fatalf("StartVM returned error: %v", err)
	}
	if got != upid {
		t.Fatalf("StartVM = %q, want %q", got, upid)
	}
	if gotPath != "/api2/json/nodes/pve1/qemu/101/status/start" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestPostTaskRejectsEmptyUPID(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": null}`))
	}))

	if _, err := client.StartVM(context.Background(), "pve1", "101"); err == nil {
		t.Fatal("expected error for missing UPID")
	}
}

func TestAPIErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := &APIError{Kind: KindUpstream, Message: "wrapped", cause: cause}
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}
}
