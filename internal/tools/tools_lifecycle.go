package tools

import (
	"context"

	"github.com/rcourtman/proxmox-mcp/pkg/proxmox"
)

func (e *Executor) registerLifecycleTools() {
	e.registry.MustRegister(Definition{
		Name:        "start_vm",
		Description: "Start a virtual machine. Returns a task ID; use wait_for_task to block until the VM is up.",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			vmid := args.String("vmid")
			upid, err := e.api.StartVM(ctx, args.String("node"), vmid)
			if err != nil {
				return nil, err
			}
			return taskStarted(upid, "start requested for VM %s", vmid), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "stop_vm",
		Description: "Shut down a virtual machine gracefully via ACPI. Returns a task ID.",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			vmid := args.String("vmid")
			upid, err := e.api.ShutdownVM(ctx, args.String("node"), vmid)
			if err != nil {
				return nil, err
			}
			return taskStarted(upid, "shutdown requested for VM %s", vmid), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "reboot_vm",
		Description: "Reboot a virtual machine. Returns a task ID.",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			vmid := args.String("vmid")
			upid, err := e.api.RebootVM(ctx, args.String("node"), vmid)
			if err != nil {
				return nil, err
			}
			return taskStarted(upid, "reboot requested for VM %s", vmid), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "delete_vm",
		Description: "Permanently delete a virtual machine and its disks. The VM must be stopped first.",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			vmid := args.String("vmid")
			upid, err := e.api.DeleteVM(ctx, args.String("node"), vmid)
			if err != nil {
				return nil, err
			}
			return taskStarted(upid, "deletion started for VM %s", vmid), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "clone_vm",
		Description: "Clone a virtual machine to a new guest ID. Returns a task ID for the clone operation.",
		Args: []ArgSpec{
			argNode, argVMID,
			{Name: "new_vmid", Type: TypeInt, Description: "Guest ID for the clone; allocated automatically when omitted"},
			{Name: "name", Type: TypeString, Description: "Name for the new VM"},
			{Name: "target_node", Type: TypeString, Description: "Node to place the clone on; defaults to the source node"},
			{Name: "storage", Type: TypeString, Description: "Target storage for the clone's disks"},
			{Name: "full_clone", Type: TypeBool, Description: "Make a full copy instead of a linked clone", Default: true},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			upid, newID, err := e.cloneGuest(ctx, args, e.api.CloneVM)
			if err != nil {
				return nil, err
			}
			res := taskStarted(upid, "cloning VM %s to %d", args.String("vmid"), newID)
			return struct {
				taskResult
				NewVMID int `json:"new_vmid"`
			}{res, newID}, nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "create_vm_snapshot",
		Description: "Create a snapshot of a virtual machine's current state.",
		Args: []ArgSpec{
			argNode, argVMID,
			{Name: "name", Type: TypeString, Description: "Snapshot name (e.g. 'pre-upgrade')", Required: true},
			{Name: "description", Type: TypeString, Description: "Free-form snapshot description"},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			name := args.String("name")
			upid, err := e.api.CreateSnapshot(ctx, args.String("node"), args.String("vmid"), name, args.String("description"))
			if err != nil {
				return nil, err
			}
			return taskStarted(upid, "snapshot %q started for VM %s", name, args.String("vmid")), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "list_vm_snapshots",
		Description: "List all snapshots of a virtual machine.",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			return e.api.ListSnapshots(ctx, args.String("node"), args.String("vmid"))
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "restore_vm_snapshot",
		Description: "Roll a virtual machine back to a snapshot. Changes made after the snapshot are lost.",
		Args: []ArgSpec{
			argNode, argVMID,
			{Name: "snapshot", Type: TypeString, Description: "Name of the snapshot to restore", Required: true},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			snap := args.String("snapshot")
			upid, err := e.api.RollbackSnapshot(ctx, args.String("node"), args.String("vmid"), snap)
			if err != nil {
				return nil, err
			}
			return taskStarted(upid, "rollback to snapshot %q started for VM %s", snap, args.String("vmid")), nil
		},
	})
}

// cloneGuest shares the clone argument handling between QEMU and LXC
// clone tools. When new_vmid is absent the cluster allocates the next
// free guest ID.
func (e *Executor) cloneGuest(ctx context.Context, args Args, clone func(context.Context, string, string, proxmox.CloneOptions) (string, error)) (string, int, error) {
	newID := args.Int("new_vmid")
	if newID == 0 {
		id, err := e.api.NextID(ctx)
		if err != nil {
			return "", 0, err
		}
		newID = id
	}

	opts := proxmox.CloneOptions{
		NewID:      newID,
		Name:       args.String("name"),
		TargetNode: args.String("target_node"),
		Storage:    args.String("storage"),
		FullClone:  args.Bool("full_clone"),
	}
	upid, err := clone(ctx, args.String("node"), args.String("vmid"), opts)
	if err != nil {
		return "", 0, err
	}
	return upid, newID, nil
}
