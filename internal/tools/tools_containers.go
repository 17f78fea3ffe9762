package tools

import (
	"context"
	"strings"
	"time"

	"github.com/rcourtman/proxmox-mcp/internal/tasks"
	"github.com/rcourtman/proxmox-mcp/pkg/proxmox"
)

func (e *Executor) registerContainerTools() {
	e.registry.MustRegister(Definition{
		Name:        "get_containers",
		Description: "List all LXC containers across the cluster with their status and resource usage.",
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			return e.api.GetContainers(ctx)
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "get_container_status",
		Description: "Get the current status and resource usage of an LXC container.",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			return e.api.GetContainerStatus(ctx, args.String("node"), args.String("vmid"))
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "get_container_performance",
		Description: "Get current performance metrics for an LXC container: CPU, memory, disk and network counters plus hourly history.",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			node, vmid := args.String("node"), args.String("vmid")
			status, err := e.api.GetContainerStatus(ctx, node, vmid)
			if err != nil {
				return nil, err
			}
			// History is best effort, not every storage backend keeps RRDs.
			history, err := e.api.GetContainerRRD(ctx, node, vmid)
			if err != nil {
				history = nil
			}
			return map[string]interface{}{
				"cpu_usage": status.CPU,
				"memory": map[string]int64{
					"used":  status.Mem,
					"total": status.MaxMem,
				},
				"disk_io": map[string]int64{
					"read_bytes":  status.DiskRead,
					"write_bytes": status.DiskWrite,
				},
				"network": map[string]int64{
					"in_bytes":  status.NetIn,
					"out_bytes": status.NetOut,
				},
				"historical_data": history,
			}, nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "execute_container_command",
		Description: "Run a shell command inside an LXC container and return its output. The command runs as a node task; its output is read back from the task log.",
		Args: []ArgSpec{
			argNode, argVMID,
			{Name: "command", Type: TypeString, Description: "Shell command to run (e.g. 'uname -a')", Required: true},
			{Name: "timeout_seconds", Type: TypeInt, Description: "How long to wait for the command to finish", Default: 30},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			node, vmid := args.String("node"), args.String("vmid")
			upid, err := e.api.ContainerExec(ctx, node, vmid, args.String("command"))
			if err != nil {
				return nil, err
			}

			timeout := time.Duration(args.Int("timeout_seconds")) * time.Second
			status, err := e.monitor.Wait(ctx, upid, timeout)
			if err != nil {
				return nil, err
			}
			if status.State == tasks.StateTimedOut {
				return nil, errf(KindTimedOut, "command in container %s did not finish within %s", vmid, timeout)
			}

			lines, err := e.api.GetTaskLog(ctx, node, upid)
			if err != nil {
				return nil, err
			}
			exitCode := 0
			if status.State != tasks.StateSucceeded {
				exitCode = 1
			}
			return map[string]interface{}{
				"success":   exitCode == 0,
				"task_id":   upid,
				"output":    strings.Join(lines, "\n"),
				"exit_code": exitCode,
			}, nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "get_container_templates",
		Description: "List LXC OS templates available on a storage pool.",
		Args: []ArgSpec{
			argNode,
			{Name: "storage", Type: TypeString, Description: "Storage pool holding the templates", Default: "local"},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			return e.api.GetStorageContent(ctx, args.String("node"), args.String("storage"), "vztmpl")
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "get_container_config",
		Description: "Get the full configuration of an LXC container.",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			return e.api.GetContainerConfig(ctx, args.String("node"), args.String("vmid"))
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "update_container_config",
		Description: "Update configuration options of an LXC container, e.g. {\"cores\": 2, \"memory\": 2048}.",
		Args: []ArgSpec{
			argNode, argVMID,
			{Name: "changes", Type: TypeObject, Description: "Config keys and values to set", Required: true},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			changes := args.StringMap("changes")
			if len(changes) == 0 {
				return nil, errf(KindValidation, "changes must contain at least one option")
			}
			vmid := args.String("vmid")
			if err := e.api.UpdateContainerConfig(ctx, args.String("node"), vmid, changes); err != nil {
				return nil, err
			}
			return done("updated %d config option(s) on container %s", len(changes), vmid), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "create_container",
		Description: "Create a new LXC container from an OS template volume. Returns a task ID.",
		Args: []ArgSpec{
			argNode,
			{Name: "ostemplate", Type: TypeString, Description: "OS template volume (e.g. 'local:vztmpl/debian-12-standard_12.2-1_amd64.tar.zst')", Required: true},
			{Name: "vmid", Type: TypeInt, Description: "Guest ID for the container; allocated automatically when omitted"},
			{Name: "hostname", Type: TypeString, Description: "Hostname for the container"},
			{Name: "storage", Type: TypeString, Description: "Storage for the root filesystem", Default: "local-lvm"},
			{Name: "memory", Type: TypeInt, Description: "Memory in MB", Default: 512},
			{Name: "cores", Type: TypeInt, Description: "Number of CPU cores", Default: 1},
			{Name: "password", Type: TypeString, Description: "Root password for the container"},
			{Name: "net0", Type: TypeString, Description: "Network config (e.g. 'name=eth0,bridge=vmbr0,ip=dhcp')"},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			vmid := args.Int("vmid")
			if vmid == 0 {
				id, err := e.api.NextID(ctx)
				if err != nil {
					return nil, err
				}
				vmid = id
			}

			opts := proxmox.ContainerCreateOptions{
				VMID:       vmid,
				OSTemplate: args.String("ostemplate"),
				Storage:    args.String("storage"),
				Hostname:   args.String("hostname"),
				MemoryMB:   args.Int("memory"),
				Cores:      args.Int("cores"),
				Password:   args.String("password"),
				Net0:       args.String("net0"),
			}
			upid, err := e.api.CreateContainer(ctx, args.String("node"), opts)
			if err != nil {
				return nil, err
			}
			res := taskStarted(upid, "container %d creation started", vmid)
			return struct {
				taskResult
				VMID int `json:"vmid"`
			}{res, vmid}, nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "start_container",
		Description: "Start an LXC container. Returns a task ID.",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			vmid := args.String("vmid")
			upid, err := e.api.StartContainer(ctx, args.String("node"), vmid)
			if err != nil {
				return nil, err
			}
			return taskStarted(upid, "start requested for container %s", vmid), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "stop_container",
		Description: "Shut down an LXC container. Returns a task ID.",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			vmid := args.String("vmid")
			upid, err := e.api.StopContainer(ctx, args.String("node"), vmid)
			if err != nil {
				return nil, err
			}
			return taskStarted(upid, "shutdown requested for container %s", vmid), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "restart_container",
		Description: "Restart an LXC container. Returns a task ID.",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			vmid := args.String("vmid")
			upid, err := e.api.RestartContainer(ctx, args.String("node"), vmid)
			if err != nil {
				return nil, err
			}
			return taskStarted(upid, "restart requested for container %s", vmid), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "delete_container",
		Description: "Permanently delete an LXC container and its root filesystem. The container must be stopped first.",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			vmid := args.String("vmid")
			upid, err := e.api.DeleteContainer(ctx, args.String("node"), vmid)
			if err != nil {
				return nil, err
			}
			return taskStarted(upid, "deletion started for container %s", vmid), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "clone_container",
		Description: "Clone an LXC container to a new guest ID. Returns a task ID for the clone operation.",
		Args: []ArgSpec{
			argNode, argVMID,
			{Name: "new_vmid", Type: TypeInt, Description: "Guest ID for the clone; allocated automatically when omitted"},
			{Name: "name", Type: TypeString, Description: "Hostname for the new container"},
			{Name: "target_node", Type: TypeString, Description: "Node to place the clone on; defaults to the source node"},
			{Name: "storage", Type: TypeString, Description: "Target storage for the clone's root filesystem"},
			{Name: "full_clone", Type: TypeBool, Description: "Make a full copy instead of a linked clone", Default: true},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			upid, newID, err := e.cloneGuest(ctx, args, e.api.CloneContainer)
			if err != nil {
				return nil, err
			}
			res := taskStarted(upid, "cloning container %s to %d", args.String("vmid"), newID)
			return struct {
				taskResult
				NewVMID int `json:"new_vmid"`
			}{res, newID}, nil
		},
	})
}
