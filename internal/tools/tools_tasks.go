package tools

import (
	"context"
	"time"

	"github.com/rcourtman/proxmox-mcp/internal/tasks"
)

func (e *Executor) registerTaskTools() {
	e.registry.MustRegister(Definition{
		Name:        "get_tasks",
		Description: "List recent tasks on a node, optionally filtered by guest ID.",
		Args: []ArgSpec{
			argNode,
			{Name: "limit", Type: TypeInt, Description: "Maximum number of tasks to return", Default: 50},
			{Name: "vmid", Type: TypeString, Description: "Only return tasks for this guest ID"},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			return e.api.GetNodeTasks(ctx, args.String("node"), args.Int("limit"), args.String("vmid"))
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "get_task_status",
		Description: "Get the current status of a task by its UPID.",
		Args: []ArgSpec{
			{Name: "task_id", Type: TypeString, Description: "Task UPID as returned by a state-changing tool", Required: true},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			upid, err := tasks.ParseUPID(args.String("task_id"))
			if err != nil {
				return nil, errf(KindValidation, "invalid task id: %v", err)
			}
			return e.api.GetTaskStatus(ctx, upid.Node, upid.Raw)
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "get_task_log",
		Description: "Get the log output of a task by its UPID.",
		Args: []ArgSpec{
			{Name: "task_id", Type: TypeString, Description: "Task UPID", Required: true},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			upid, err := tasks.ParseUPID(args.String("task_id"))
			if err != nil {
				return nil, errf(KindValidation, "invalid task id: %v", err)
			}
			lines, err := e.api.GetTaskLog(ctx, upid.Node, upid.Raw)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"task_id": upid.Raw,
				"log":     lines,
			}, nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "wait_for_task",
		Description: "Block until a task reaches a terminal state or the timeout expires, then return its outcome.",
		Args: []ArgSpec{
			{Name: "task_id", Type: TypeString, Description: "Task UPID to wait on", Required: true},
			{Name: "timeout_seconds", Type: TypeInt, Description: "Maximum time to wait", Default: 300},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			if _, err := tasks.ParseUPID(args.String("task_id")); err != nil {
				return nil, errf(KindValidation, "invalid task id: %v", err)
			}
			timeout := time.Duration(args.Int("timeout_seconds")) * time.Second
			status, err := e.monitor.Wait(ctx, args.String("task_id"), timeout)
			if err != nil {
				return nil, err
			}
			if status.State == tasks.StateTimedOut {
				return nil, errf(KindTimedOut, "task %s did not finish within %s", status.UPID, timeout)
			}
			return status, nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "cancel_task",
		Description: "Request interruption of a running task. Already-finished tasks are reported as-is; the running guest is not rolled back.",
		Args: []ArgSpec{
			{Name: "task_id", Type: TypeString, Description: "Task UPID to cancel", Required: true},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			if _, err := tasks.ParseUPID(args.String("task_id")); err != nil {
				return nil, errf(KindValidation, "invalid task id: %v", err)
			}
			return e.monitor.Cancel(ctx, args.String("task_id"))
		},
	})
}
