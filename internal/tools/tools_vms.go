package tools

import (
	"context"
	"time"
)

func (e *Executor) registerVMTools() {
	e.registry.MustRegister(Definition{
		Name:        "get_vms",
		Description: "List all QEMU virtual machines across the cluster with their status and resource usage.",
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			return e.api.GetVMs(ctx)
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "get_vm_config",
		Description: "Get the full configuration of a virtual machine (cores, memory, disks, network interfaces).",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			return e.api.GetVMConfig(ctx, args.String("node"), args.String("vmid"))
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "update_vm_config",
		Description: "Update configuration options of a virtual machine, e.g. {\"cores\": 4, \"memory\": 8192}.",
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
			if err := e.api.UpdateVMConfig(ctx, args.String("node"), vmid, changes); err != nil {
				return nil, err
			}
			return done("updated %d config option(s) on VM %s", len(changes), vmid), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "get_vm_performance",
		Description: "Get current performance metrics for a virtual machine: CPU, memory, disk and network counters.",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			return e.api.GetVMStatus(ctx, args.String("node"), args.String("vmid"))
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "execute_vm_command",
		Description: "Run a shell command inside a virtual machine via the QEMU guest agent and return its output. Requires the guest agent to be installed and running.",
		Args: []ArgSpec{
			argNode, argVMID,
			{Name: "command", Type: TypeString, Description: "Shell command to run (e.g. 'uname -a')", Required: true},
			{Name: "timeout_seconds", Type: TypeInt, Description: "How long to wait for the command to finish", Default: 30},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			timeout := time.Duration(args.Int("timeout_seconds")) * time.Second
			return e.guest.Execute(ctx, args.String("node"), args.String("vmid"), args.String("command"), timeout)
		},
	})
}
