package proxmox

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// VM is a QEMU guest as reported by /nodes/{node}/qemu. Node is filled in by
// cluster-wide listings; the per-node endpoint leaves it empty.
type VM struct {
	VMID      int     `json:"vmid"`
	Name      string  `json:"name"`
	Node      string  `json:"node,omitempty"`
	Status    string  `json:"status"`
	Template  int     `json:"template,omitempty"`
	CPU       float64 `json:"cpu"`
	CPUs      int     `json:"cpus"`
	Mem       int64   `json:"mem"`
	MaxMem    int64   `json:"maxmem"`
	Disk      int64   `json:"disk"`
	MaxDisk   int64   `json:"maxdisk"`
	DiskRead  int64   `json:"diskread"`
	DiskWrite int64   `json:"diskwrite"`
	NetIn     int64   `json:"netin"`
	NetOut    int64   `json:"netout"`
	Uptime    int64   `json:"uptime"`
	Tags      string  `json:"tags,omitempty"`
}

// Snapshot is one entry of a guest's snapshot list. The synthetic "current"
// entry (the running state) has no creation time.
type Snapshot struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parent      string `json:"parent,omitempty"`
	SnapTime    int64  `json:"snaptime,omitempty"`
	VMState     int    `json:"vmstate,omitempty"`
}

// CloneOptions are the optional parameters of a VM/template clone.
type CloneOptions struct {
	NewID       int    // target VMID, required
	Name        string // name for the new guest
	TargetNode  string // defaults to the source node
	Storage     string // target storage
	Description string
	FullClone   bool
}

// GetQemuVMs lists QEMU guests (including templates) on one node.
func (c *Client) GetQemuVMs(ctx context.Context, node string) ([]VM, error) {
	var result struct {
		Data []VM `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/qemu", url.PathEscape(node))
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// GetVMs lists QEMU guests across every online node in the cluster.
func (c *Client) GetVMs(ctx context.Context) ([]VM, error) {
	nodes, err := c.GetNodes(ctx)
	if err != nil {
		return nil, err
	}

	var vms []VM
	for _, n := range nodes {
		if n.Status != "online" {
			continue
		}
		nodeVMs, err := c.GetQemuVMs(ctx, n.Node)
		if err != nil {
			return nil, fmt.Errorf("list VMs on node %s: %w", n.Node, err)
		}
		for i := range nodeVMs {
			nodeVMs[i].Node = n.Node
		}
		vms = append(vms, nodeVMs...)
	}
	return vms, nil
}

// GetVMStatus returns the current runtime status of one VM, including
// performance counters.
func (c *Client) GetVMStatus(ctx context.Context, node, vmid string) (*VM, error) {
	var result struct {
		Data *VM `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/qemu/%s/status/current", url.PathEscape(node), url.PathEscape(vmid))
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	if result.Data == nil {
		return nil, &APIError{Kind: KindUpstream, Message: "empty VM status response"}
	}
	result.Data.Node = node
	return result.Data, nil
}

// GetVMConfig returns the configuration of one VM as reported by the API.
func (c *Client) GetVMConfig(ctx context.Context, node, vmid string) (map[string]interface{}, error) {
	var result struct {
		Data map[string]interface{} `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/qemu/%s/config", url.PathEscape(node), url.PathEscape(vmid))
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// UpdateVMConfig applies configuration changes to a VM. Keys follow the
// Proxmox config schema (cores, memory, name, description, ...).
func (c *Client) UpdateVMConfig(ctx context.Context, node, vmid string, changes map[string]string) error {
	data := url.Values{}
	for k, v := range changes {
		data.Set(k, v)
	}
	path := fmt.Sprintf("/nodes/%s/qemu/%s/config", url.PathEscape(node), url.PathEscape(vmid))
	return c.put(ctx, path, data, nil)
}

// StartVM starts a VM and returns the task UPID.
func (c *Client) StartVM(ctx context.Context, node, vmid string) (string, error) {
	return c.vmStatusAction(ctx, node, vmid, "start")
}

// ShutdownVM requests a clean guest shutdown and returns the task UPID.
func (c *Client) ShutdownVM(ctx context.Context, node, vmid string) (string, error) {
	return c.vmStatusAction(ctx, node, vmid, "shutdown")
}

// RebootVM reboots a VM and returns the task UPID.
func (c *Client) RebootVM(ctx context.Context, node, vmid string) (string, error) {
	return c.vmStatusAction(ctx, node, vmid, "reboot")
}

func (c *Client) vmStatusAction(ctx context.Context, node, vmid, action string) (string, error) {
	path := fmt.Sprintf("/nodes/%s/qemu/%s/status/%s", url.PathEscape(node), url.PathEscape(vmid), action)
	return c.postTask(ctx, path, nil)
}

// CloneVM clones a VM or template and returns the task UPID.
func (c *Client) CloneVM(ctx context.Context, node, vmid string, opts CloneOptions) (string, error) {
	data := url.Values{}
	data.Set("newid", strconv.Itoa(opts.NewID))
	if opts.FullClone {
		data.Set("full", "1")
	} else {
		data.Set("full", "0")
	}
	if opts.Name != "" {
		data.Set("name", opts.Name)
	}
	if opts.TargetNode != "" {
		data.Set("target", opts.TargetNode)
	}
	if opts.Storage != "" {
		data.Set("storage", opts.Storage)
	}
	if opts.Description != "" {
		data.Set("description", opts.Description)
	}
	path := fmt.Sprintf("/nodes/%s/qemu/%s/clone", url.PathEscape(node), url.PathEscape(vmid))
	return c.postTask(ctx, path, data)
}

// DeleteVM destroys a VM or template and returns the task UPID.
func (c *Client) DeleteVM(ctx context.Context, node, vmid string) (string, error) {
	path := fmt.Sprintf("/nodes/%s/qemu/%s", url.PathEscape(node), url.PathEscape(vmid))
	return c.deleteTask(ctx, path)
}

// ConvertToTemplate marks a stopped VM as a template. Synchronous; Proxmox
// returns no task for this call.
func (c *Client) ConvertToTemplate(ctx context.Context, node, vmid string) error {
	path := fmt.Sprintf("/nodes/%s/qemu/%s/template", url.PathEscape(node), url.PathEscape(vmid))
	return c.post(ctx, path, nil, nil)
}

// CreateSnapshot snapshots a VM and returns the task UPID.
func (c *Client) CreateSnapshot(ctx context.Context, node, vmid, name, description string) (string, error) {
	data := url.Values{}
	data.Set("snapname", name)
	if description != "" {
		data.Set("description", description)
	}
	path := fmt.Sprintf("/nodes/%s/qemu/%s/snapshot", url.PathEscape(node), url.PathEscape(vmid))
	return c.postTask(ctx, path, data)
}

// ListSnapshots lists all snapshots of a VM.
func (c *Client) ListSnapshots(ctx context.Context, node, vmid string) ([]Snapshot, error) {
	var result struct {
		Data []Snapshot `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/qemu/%s/snapshot", url.PathEscape(node), url.PathEscape(vmid))
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// RollbackSnapshot restores a VM to a snapshot and returns the task UPID.
func (c *Client) RollbackSnapshot(ctx context.Context, node, vmid, snapshot string) (string, error) {
	path := fmt.Sprintf("/nodes/%s/qemu/%s/snapshot/%s/rollback",
		url.PathEscape(node), url.PathEscape(vmid), url.PathEscape(snapshot))
	return c.postTask(ctx, path, nil)
}
