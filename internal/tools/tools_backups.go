package tools

import (
	"context"
	"fmt"

	"github.com/rcourtman/proxmox-mcp/pkg/proxmox"
)

// jobsForNode filters backup jobs down to those that run on node. Jobs with
// no node restriction run everywhere and always match.
func jobsForNode(jobs []proxmox.BackupJob, node string) []proxmox.BackupJob {
	matched := jobs[:0:0]
	for _, job := range jobs {
		if job.Node == "" || job.Node == node {
			matched = append(matched, job)
		}
	}
	return matched
}

func (e *Executor) registerBackupTools() {
	e.registry.MustRegister(Definition{
		Name:        "create_backup",
		Description: "Create a vzdump backup of a guest. Returns a task ID for the backup job.",
		Args: []ArgSpec{
			argNode, argVMID,
			{Name: "storage", Type: TypeString, Description: "Storage pool for the backup archive", Default: "local"},
			{Name: "mode", Type: TypeString, Description: "Backup mode", Enum: []string{"snapshot", "suspend", "stop"}, Default: "snapshot"},
			{Name: "compress", Type: TypeString, Description: "Compression algorithm", Enum: []string{"zstd", "lzo", "gzip"}, Default: "zstd"},
			{Name: "notes", Type: TypeString, Description: "Free-form notes stored with the archive"},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			vmid := args.String("vmid")
			opts := proxmox.BackupOptions{
				Storage:  args.String("storage"),
				Mode:     args.String("mode"),
				Compress: args.String("compress"),
				Notes:    args.String("notes"),
			}
			upid, err := e.api.CreateBackup(ctx, args.String("node"), vmid, opts)
			if err != nil {
				return nil, err
			}
			return taskStarted(upid, "backup of guest %s started", vmid), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "list_backups",
		Description: "List backup archives in a storage pool.",
		Args: []ArgSpec{
			argNode,
			{Name: "storage", Type: TypeString, Description: "Storage pool to list", Default: "local"},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			return e.api.GetStorageContent(ctx, args.String("node"), args.String("storage"), "backup")
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "get_backup_config",
		Description: "Get the scheduled backup jobs that cover a node.",
		Args:        []ArgSpec{argNode},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			jobs, err := e.api.GetBackupJobs(ctx)
			if err != nil {
				return nil, err
			}
			return jobsForNode(jobs, args.String("node")), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "update_backup_schedule",
		Description: "Update the backup job covering a node, e.g. {\"schedule\": \"21:00\", \"storage\": \"local\"}. When several jobs cover the node, job_id selects one.",
		Args: []ArgSpec{
			argNode,
			{Name: "schedule", Type: TypeObject, Description: "Job options to set", Required: true},
			{Name: "job_id", Type: TypeString, Description: "Backup job ID; defaults to the first job covering the node"},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			changes := args.StringMap("schedule")
			if len(changes) == 0 {
				return nil, errf(KindValidation, "schedule must contain at least one option")
			}

			node := args.String("node")
			jobID := args.String("job_id")
			if jobID == "" {
				jobs, err := e.api.GetBackupJobs(ctx)
				if err != nil {
					return nil, err
				}
				covering := jobsForNode(jobs, node)
				if len(covering) == 0 {
					return nil, &proxmox.APIError{
						Kind:    proxmox.KindNotFound,
						Message: fmt.Sprintf("no backup job covers node %s", node),
					}
				}
				jobID = covering[0].ID
			}

			if err := e.api.UpdateBackupJob(ctx, jobID, changes); err != nil {
				return nil, err
			}
			return done("backup job %s updated for node %s", jobID, node), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "restore_backup",
		Description: "Restore a QEMU guest from a vzdump archive. Returns a task ID for the restore job.",
		Args: []ArgSpec{
			argNode,
			{Name: "archive", Type: TypeString, Description: "Backup volume ID (e.g. 'local:backup/vzdump-qemu-101-....vma.zst')", Required: true},
			{Name: "vmid", Type: TypeInt, Description: "Guest ID to restore into; allocated automatically when omitted"},
			{Name: "storage", Type: TypeString, Description: "Target storage for the restored disks"},
			{Name: "force", Type: TypeBool, Description: "Overwrite an existing guest with the same ID", Default: false},
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

			opts := proxmox.RestoreOptions{
				VMID:    vmid,
				Archive: args.String("archive"),
				Storage: args.String("storage"),
				Force:   args.Bool("force"),
			}
			upid, err := e.api.RestoreBackup(ctx, args.String("node"), opts)
			if err != nil {
				return nil, err
			}
			res := taskStarted(upid, "restore into guest %d started", vmid)
			return struct {
				taskResult
				VMID int `json:"vmid"`
			}{res, vmid}, nil
		},
	})
}
