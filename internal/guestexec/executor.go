// Package guestexec runs commands inside VMs through the QEMU guest agent.
// Execution is asynchronous on the hypervisor side: starting a command
// yields an in-guest pid which is then polled, with the same backoff policy
// the task monitor uses, until the process exits or the caller's timeout
// elapses.
package guestexec

import (
	"context"
	"time"

	"github.com/rcourtman/proxmox-mcp/internal/tasks"
	"github.com/rcourtman/proxmox-mcp/pkg/proxmox"
	"github.com/rs/zerolog/log"
)

// AgentClient is the slice of the Proxmox API the executor needs.
type AgentClient interface {
	AgentExec(ctx context.Context, node, vmid, command string) (int, error)
	AgentExecStatus(ctx context.Context, node, vmid string, pid int) (*proxmox.AgentExecStatus, error)
}

// Execution is the outcome of one in-guest command. On timeout Status is
// StateTimedOut and the output fields hold whatever had been captured by
// the last successful poll.
type Execution struct {
	Node     string      `json:"node"`
	VMID     string      `json:"vmid"`
	Command  string      `json:"command"`
	PID      int         `json:"pid"`
	Stdout   string      `json:"stdout"`
	Stderr   string      `json:"stderr,omitempty"`
	ExitCode int         `json:"exit_code"`
	Status   tasks.State `json:"status"`
}

const (
	defaultBasePoll = 1 * time.Second
	defaultMaxPoll  = 5 * time.Second
)

// Executor issues guest-agent commands and collects their results.
type Executor struct {
	client   AgentClient
	basePoll time.Duration
	maxPoll  time.Duration
}

// Option customizes an Executor.
type Option func(*Executor)

// WithPollInterval overrides the polling backoff bounds.
func WithPollInterval(base, max time.Duration) Option {
	return func(e *Executor) {
		e.basePoll = base
		e.maxPoll = max
	}
}

// NewExecutor creates a guest command executor.
func NewExecutor(client AgentClient, opts ...Option) *Executor {
	e := &Executor{
		client:   client,
		basePoll: defaultBasePoll,
		maxPoll:  defaultMaxPoll,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a command in the guest and waits for it to exit. When the
// agent channel is down the error surfaces immediately and no Execution is
// produced.
func (e *Executor) Execute(ctx context.Context, node, vmid, command string, timeout time.Duration) (*Execution, error) {
	pid, err := e.client.AgentExec(ctx, node, vmid, command)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("node", node).
		Str("vmid", vmid).
		Int("pid", pid).
		Msg("Guest command started")

	exec := &Execution{
		Node:    node,
		VMID:    vmid,
		Command: command,
		PID:     pid,
		Status:  tasks.StateRunning,
	}

	deadline := time.Now().Add(timeout)
	interval := e.basePoll

	for {
		st, err := e.client.AgentExecStatus(ctx, node, vmid, pid)
		if err != nil {
			return nil, err
		}

		exec.Stdout = st.OutData
		exec.Stderr = st.ErrData

		if st.Finished() {
			exec.ExitCode = st.ExitCode
			exec.Status = tasks.StateSucceeded
			if st.ExitCode != 0 {
				exec.Status = tasks.StateFailed
			}
			return exec, nil
		}

		// Cooperative timeout: stop polling once the deadline has passed and
		// report whatever output was captured so far.
		remaining := time.Until(deadline)
		if remaining <= 0 {
			exec.Status = tasks.StateTimedOut
			return exec, nil
		}

		wait := interval
		if wait > remaining {
			wait = remaining
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		interval *= 2
		if interval > e.maxPoll {
			interval = e.maxPoll
		}
	}
}
