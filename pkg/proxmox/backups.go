package proxmox

import (
	"context"
	"fmt"
	"net/url"
)

// BackupOptions are the optional parameters of a vzdump backup.
type BackupOptions struct {
	Storage  string // storage pool for the archive
	Mode     string // "snapshot" (default), "suspend" or "stop"
	Compress string // "zstd", "lzo" or "gzip"
	Notes    string
}

// CreateBackup starts a vzdump backup of one guest and returns the task UPID.
func (c *Client) CreateBackup(ctx context.Context, node, vmid string, opts BackupOptions) (string, error) {
	data := url.Values{}
	data.Set("vmid", vmid)
	mode := opts.Mode
	if mode == "" {
		mode = "snapshot"
	}
	data.Set("mode", mode)
	if opts.Storage != "" {
		data.Set("storage", opts.Storage)
	}
	if opts.Compress != "" {
		data.Set("compress", opts.Compress)
	}
	if opts.Notes != "" {
		data.Set("notes-template", opts.Notes)
	}
	path := fmt.Sprintf("/nodes/%s/vzdump", url.PathEscape(node))
	return c.postTask(ctx, path, data)
}

// BackupJob is one scheduled vzdump job from /cluster/backup. Node is empty
// for jobs that run on every node.
type BackupJob struct {
	ID       string `json:"id"`
	Node     string `json:"node,omitempty"`
	Schedule string `json:"schedule,omitempty"`
	Storage  string `json:"storage,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Compress string `json:"compress,omitempty"`
	Enabled  int    `json:"enabled"`
	VMID     string `json:"vmid,omitempty"`
	All      int    `json:"all,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// GetBackupJobs lists the cluster's scheduled backup jobs.
func (c *Client) GetBackupJobs(ctx context.Context) ([]BackupJob, error) {
	var result struct {
		Data []BackupJob `json:"data"`
	}
	if err := c.get(ctx, "/cluster/backup", &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// UpdateBackupJob applies schedule changes to one backup job.
func (c *Client) UpdateBackupJob(ctx context.Context, id string, changes map[string]string) error {
	data := url.Values{}
	for k, v := range changes {
		data.Set(k, v)
	}
	path := fmt.Sprintf("/cluster/backup/%s", url.PathEscape(id))
	return c.put(ctx, path, data, nil)
}

// RestoreOptions are the parameters of a backup restore.
type RestoreOptions struct {
	VMID    int    // VMID to restore into, required
	Archive string // backup volume id, required
	Storage string // target storage for restored disks
	Force   bool   // overwrite an existing guest with the same VMID
}

// RestoreBackup restores a QEMU guest from a vzdump archive and returns the
// task UPID.
func (c *Client) RestoreBackup(ctx context.Context, node string, opts RestoreOptions) (string, error) {
	data := url.Values{}
	data.Set("vmid", fmt.Sprintf("%d", opts.VMID))
	data.Set("archive", opts.Archive)
	if opts.Storage != "" {
		data.Set("storage", opts.Storage)
	}
	if opts.Force {
		data.Set("force", "1")
	}
	path := fmt.Sprintf("/nodes/%s/qemu", url.PathEscape(node))
	return c.postTask(ctx, path, data)
}
