// Package tasks tracks asynchronous Proxmox jobs to completion. A job is
// identified by its UPID; the monitor polls the originating node's task
// status endpoint with exponential backoff until the job stops, the caller's
// timeout elapses, or the wait is abandoned.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rcourtman/proxmox-mcp/internal/metrics"
	"github.com/rcourtman/proxmox-mcp/pkg/proxmox"
	"github.com/rs/zerolog/log"
)

// State is the lifecycle state of a tracked job. Once a terminal state is
// reached no further transition occurs.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
	StateTimedOut  State = "timed_out"
)

// Terminal reports whether no further transition can occur from s.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled, StateTimedOut:
		return true
	}
	return false
}

// Status is the observed state of a job.
type Status struct {
	UPID       string `json:"upid"`
	Node       string `json:"node"`
	State      State  `json:"state"`
	ExitStatus string `json:"exit_status,omitempty"`
}

// StatusClient is the slice of the Proxmox API the monitor needs.
type StatusClient interface {
	GetTaskStatus(ctx context.Context, node, upid string) (*proxmox.TaskStatus, error)
	StopTask(ctx context.Context, node, upid string) error
}

const (
	defaultBasePoll = 1 * time.Second
	defaultMaxPoll  = 5 * time.Second
)

// Monitor owns the polling lifecycles for in-flight jobs. Concurrent waits
// on distinct UPIDs each run their own goroutine; concurrent waits on the
// same UPID share a single polling loop.
type Monitor struct {
	client   StatusClient
	basePoll time.Duration
	maxPoll  time.Duration

	mu       sync.Mutex
	inflight map[string]*watch
}

// watch is one shared polling loop. done is closed when the loop observes a
// terminal state or fails; stop is closed when the last waiter abandons the
// wait before that happens.
type watch struct {
	waiters  int
	stop     chan struct{}
	done     chan struct{}
	stopped  bool
	finished bool

	status Status
	err    error
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithPollInterval overrides the polling backoff bounds. Intended for tests
// that need sub-second cadence.
func WithPollInterval(base, max time.Duration) Option {
	return func(m *Monitor) {
		m.basePoll = base
		m.maxPoll = max
	}
}

// NewMonitor creates a task monitor.
func NewMonitor(client StatusClient, opts ...Option) *Monitor {
	m := &Monitor{
		client:   client,
		basePoll: defaultBasePoll,
		maxPoll:  defaultMaxPoll,
		inflight: make(map[string]*watch),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Wait blocks until the job reaches a terminal state or timeout elapses.
// On timeout the remote job keeps running; the caller may issue Cancel
// separately. Waiting again on a UPID that is already being polled joins
// the existing loop instead of starting a second one.
func (m *Monitor) Wait(ctx context.Context, upid string, timeout time.Duration) (Status, error) {
	u, err := ParseUPID(upid)
	if err != nil {
		return Status{}, err
	}

	m.mu.Lock()
	w, ok := m.inflight[u.Raw]
	if !ok {
		w = &watch{
			stop: make(chan struct{}),
			done: make(chan struct{}),
			status: Status{
				UPID:  u.Raw,
				Node:  u.Node,
				State: StatePending,
			},
		}
		m.inflight[u.Raw] = w
		go m.poll(u, w)
	}
	w.waiters++
	m.mu.Unlock()

	metrics.ActiveWaits.Inc()
	defer metrics.ActiveWaits.Dec()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.done:
		m.release(u.Raw, w)
		return w.status, w.err
	case <-timer.C:
		m.release(u.Raw, w)
		return Status{
			UPID:       u.Raw,
			Node:       u.Node,
			State:      StateTimedOut,
			ExitStatus: fmt.Sprintf("no terminal state within %s", timeout),
		}, nil
	case <-ctx.Done():
		m.release(u.Raw, w)
		return Status{}, ctx.Err()
	}
}

// release drops one waiter and tears the loop down if nobody is left
// listening.
func (m *Monitor) release(upid string, w *watch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w.waiters--
	if w.waiters == 0 && !w.finished && !w.stopped {
		w.stopped = true
		close(w.stop)
		if m.inflight[upid] == w {
			delete(m.inflight, upid)
		}
	}
}

// poll is the per-UPID polling loop. It never retries transport failures
// itself; the API client already bounds retries for reads.
func (m *Monitor) poll(u UPID, w *watch) {
	interval := m.basePoll

	for {
		ts, err := m.client.GetTaskStatus(context.Background(), u.Node, u.Raw)
		metrics.TaskPollsTotal.Inc()

		if err != nil {
			m.finish(u, w, Status{}, err)
			return
		}

		if ts.Finished() {
			status := Status{UPID: u.Raw, Node: u.Node, ExitStatus: ts.ExitStatus}
			if ts.Succeeded() {
				status.State = StateSucceeded
			} else {
				status.State = StateFailed
			}
			m.finish(u, w, status, nil)
			return
		}

		m.mu.Lock()
		w.status.State = StateRunning
		m.mu.Unlock()

		select {
		case <-time.After(interval):
		case <-w.stop:
			log.Debug().Str("upid", u.Raw).Msg("Task wait abandoned, stopping poll loop")
			return
		}

		interval *= 2
		if interval > m.maxPoll {
			interval = m.maxPoll
		}
	}
}

func (m *Monitor) finish(u UPID, w *watch, status Status, err error) {
	m.mu.Lock()
	w.finished = true
	if err == nil {
		w.status = status
	}
	w.err = err
	if m.inflight[u.Raw] == w {
		delete(m.inflight, u.Raw)
	}
	m.mu.Unlock()
	close(w.done)

	if err != nil {
		log.Debug().Str("upid", u.Raw).Err(err).Msg("Task poll loop failed")
		return
	}
	log.Debug().
		Str("upid", u.Raw).
		Str("state", string(status.State)).
		Str("exitStatus", status.ExitStatus).
		Msg("Task reached terminal state")
}

// Cancel asks the node to interrupt a running job. Cancelling a job that has
// already stopped is a no-op returning the recorded terminal state.
func (m *Monitor) Cancel(ctx context.Context, upid string) (Status, error) {
	u, err := ParseUPID(upid)
	if err != nil {
		return Status{}, err
	}

	ts, err := m.client.GetTaskStatus(ctx, u.Node, u.Raw)
	if err != nil {
		return Status{}, err
	}

	if ts.Finished() {
		status := Status{UPID: u.Raw, Node: u.Node, ExitStatus: ts.ExitStatus}
		if ts.Succeeded() {
			status.State = StateSucceeded
		} else {
			status.State = StateFailed
		}
		return status, nil
	}

	if err := m.client.StopTask(ctx, u.Node, u.Raw); err != nil {
		return Status{}, err
	}

	return Status{
		UPID:       u.Raw,
		Node:       u.Node,
		State:      StateCancelled,
		ExitStatus: "task interruption requested",
	}, nil
}
