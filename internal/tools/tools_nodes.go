package tools

import (
	"context"
	"fmt"
)

// taskResult is the common response for state-changing tools. The task id
// is the hypervisor UPID; callers pass it to wait_for_task when they want
// to block on completion.
type taskResult struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id,omitempty"`
	Message string `json:"message"`
}

func taskStarted(upid, format string, args ...interface{}) taskResult {
	return taskResult{
		Success: true,
		TaskID:  upid,
		Message: fmt.Sprintf(format, args...),
	}
}

func done(format string, args ...interface{}) taskResult {
	return taskResult{
		Success: true,
		Message: fmt.Sprintf(format, args...),
	}
}

var (
	argNode = ArgSpec{
		Name:        "node",
		Type:        TypeString,
		Description: "Node name where the guest lives (e.g. 'pve1')",
		Required:    true,
	}
	argVMID = ArgSpec{
		Name:        "vmid",
		Type:        TypeString,
		Description: "Guest ID number (e.g. '101')",
		Required:    true,
	}
)

func (e *Executor) registerNodeTools() {
	e.registry.MustRegister(Definition{
		Name:        "get_nodes",
		Description: "List all nodes in the Proxmox cluster with their status, uptime and resource usage.",
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			return e.api.GetNodes(ctx)
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "get_node_status",
		Description: "Get detailed status for a single node: CPU, memory, swap, root filesystem and version info.",
		Args: []ArgSpec{
			{Name: "node", Type: TypeString, Description: "Node name (e.g. 'pve1')", Required: true},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			return e.api.GetNodeStatus(ctx, args.String("node"))
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "get_cluster_status",
		Description: "Get overall cluster health: quorum state and per-node online status.",
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			return e.api.GetClusterStatus(ctx)
		},
	})
}
