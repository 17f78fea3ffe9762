package guestexec

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rcourtman/proxmox-mcp/internal/tasks"
	"github.com/rcourtman/proxmox-mcp/pkg/proxmox"
)

type fakeAgentClient struct {
	mu         sync.Mutex
	execErr    error
	statusErr  error
	pid        int
	pollsUntil int // polls before the command reports exited; <0 means never
	polls      int
	exitCode   int
	stdout     string
	stderr     string
}

func (f *fakeAgentClient) AgentExec(ctx context.Context, node, vmid, command string) (int, error) {
	if f.execErr != nil {
		return 0, f.execErr
	}
	return f.pid, nil
}

func (f *fakeAgentClient) AgentExecStatus(ctx context.Context, node, vmid string, pid int) (*proxmox.AgentExecStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	f.polls++
	st := &proxmox.AgentExecStatus{OutData: f.stdout, ErrData: f.stderr}
	if f.pollsUntil >= 0 && f.polls > f.pollsUntil {
		st.Exited = 1
		st.ExitCode = f.exitCode
	}
	return st, nil
}

func testExecutor(client AgentClient) *Executor {
	return NewExecutor(client, WithPollInterval(time.Millisecond, 4*time.Millisecond))
}

func TestExecuteCapturesOutput(t *testing.T) {
	client := &fakeAgentClient{pid: 4242, pollsUntil: 2, stdout: "Linux vm1 6.8.0\n", stderr: ""}
	e := testExecutor(client)

	exec, err := e.Execute(context.Background(), "pve1", "101", "uname -a", time.Second)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if exec.Status != tasks.StateSucceeded {
		t.Fatalf("Status = %q, want %q", exec.Status, tasks.StateSucceeded)
	}
	if exec.PID != 4242 {
		t.Fatalf("PID = %d, want 4242", exec.PID)
	}
	if exec.Stdout != "Linux vm1 6.8.0\n" {
		t.Fatalf("Stdout = %q", exec.Stdout)
	}
	if exec.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, want 0", exec.ExitCode)
	}
}

func TestExecuteReportsNonZeroExit(t *testing.T) {
	client := &fakeAgentClient{pid: 7, pollsUntil: 0, exitCode: 2, stderr: "ls: cannot access '/nope'\n"}
	e := testExecutor(client)

	exec, err := e.Execute(context.Background(), "pve1", "101", "ls /nope", time.Second)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if exec.Status != tasks.StateFailed {
		t.Fatalf("Status = %q, want %q", exec.Status, tasks.StateFailed)
	}
	if exec.ExitCode != 2 {
		t.Fatalf("ExitCode = %d, want 2", exec.ExitCode)
	}
	if exec.Stderr == "" {
		t.Fatal("expected stderr to be captured")
	}
}

func TestExecuteFailsFastWhenAgentUnavailable(t *testing.T) {
	agentErr := &proxmox.APIError{Kind: proxmox.KindGuestAgent, Message: "QEMU guest agent is not running"}
	client := &fakeAgentClient{execErr: agentErr}
	e := testExecutor(client)

	exec, err := e.Execute(context.Background(), "pve1", "101", "uptime", time.Second)
	if err == nil {
		t.Fatal("expected error when the guest agent is unavailable")
	}
	if exec != nil {
		t.Fatalf("expected no partial result, got %+v", exec)
	}
	if got := proxmox.KindOf(err); got != proxmox.KindGuestAgent {
		t.Fatalf("KindOf(err) = %q, want %q", got, proxmox.KindGuestAgent)
	}
}

func TestExecuteTimesOutWithPartialOutput(t *testing.T) {
	client := &fakeAgentClient{pid: 9, pollsUntil: -1, stdout: "still going...\n"}
	e := testExecutor(client)

	exec, err := e.Execute(context.Background(), "pve1", "101", "sleep 600", 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if exec.Status != tasks.StateTimedOut {
		t.Fatalf("Status = %q, want %q", exec.Status, tasks.StateTimedOut)
	}
	if exec.Stdout != "still going...\n" {
		t.Fatalf("expected captured output on timeout, got %q", exec.Stdout)
	}
}

func TestExecuteSurfacesStatusErrors(t *testing.T) {
	statusErr := errors.New("exec-status failed")
	client := &fakeAgentClient{pid: 1, statusErr: statusErr}
	e := testExecutor(client)

	if _, err := e.Execute(context.Background(), "pve1", "101", "true", time.Second); !errors.Is(err, statusErr) {
		t.Fatalf("Execute error = %v, want %v", err, statusErr)
	}
}
