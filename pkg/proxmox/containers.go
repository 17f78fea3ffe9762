package proxmox

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Container is an LXC guest as reported by /nodes/{node}/lxc.
type Container struct {
	VMID     int     `json:"vmid"`
	Name     string  `json:"name"`
	Node     string  `json:"node,omitempty"`
	Status   string  `json:"status"`
	Template int     `json:"template,omitempty"`
	CPU      float64 `json:"cpu"`
	CPUs     int     `json:"cpus"`
	Mem      int64   `json:"mem"`
	MaxMem   int64   `json:"maxmem"`
	Disk     int64   `json:"disk"`
	MaxDisk  int64   `json:"maxdisk"`
	Swap     int64   `json:"swap"`
	MaxSwap  int64   `json:"maxswap"`
	Uptime   int64   `json:"uptime"`
	Tags     string  `json:"tags,omitempty"`

	// Cumulative I/O counters, only populated by status/current.
	DiskRead  int64 `json:"diskread,omitempty"`
	DiskWrite int64 `json:"diskwrite,omitempty"`
	NetIn     int64 `json:"netin,omitempty"`
	NetOut    int64 `json:"netout,omitempty"`
}

// ContainerCreateOptions are the parameters for creating an LXC container
// from an OS template volume.
type ContainerCreateOptions struct {
	VMID       int
	OSTemplate string // e.g. "local:vztmpl/ubuntu-22.04-standard_22.04-1_amd64.tar.zst"
	Storage    string
	Hostname   string
	MemoryMB   int
	Cores      int
	Password   string
	Net0       string
}

// GetLXCs lists LXC containers on one node.
func (c *Client) GetLXCs(ctx context.Context, node string) ([]Container, error) {
	var result struct {
		Data []Container `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/lxc", url.PathEscape(node))
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// GetContainers lists LXC containers across every online node.
func (c *Client) GetContainers(ctx context.Context) ([]Container, error) {
	nodes, err := c.GetNodes(ctx)
	if err != nil {
		return nil, err
	}

	var cts []Container
	for _, n := range nodes {
		if n.Status != "online" {
			continue
		}
		nodeCTs, err := c.GetLXCs(ctx, n.Node)
		if err != nil {
			return nil, fmt.Errorf("list containers on node %s: %w", n.Node, err)
		}
		for i := range nodeCTs {
			nodeCTs[i].Node = n.Node
		}
		cts = append(cts, nodeCTs...)
	}
	return cts, nil
}

// GetContainerStatus returns the current runtime status of one container.
func (c *Client) GetContainerStatus(ctx context.Context, node, vmid string) (*Container, error) {
	var result struct {
		Data *Container `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/lxc/%s/status/current", url.PathEscape(node), url.PathEscape(vmid))
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	if result.Data == nil {
		return nil, &APIError{Kind: KindUpstream, Message: "empty container status response"}
	}
	result.Data.Node = node
	return result.Data, nil
}

// GetContainerConfig returns the configuration of one container.
func (c *Client) GetContainerConfig(ctx context.Context, node, vmid string) (map[string]interface{}, error) {
	var result struct {
		Data map[string]interface{} `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/lxc/%s/config", url.PathEscape(node), url.PathEscape(vmid))
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// ContainerExec runs a shell command inside a container via the lxc exec
// endpoint. Unlike the QEMU agent channel, execution is task-based: the
// returned UPID finishes when the command exits and the task log carries
// the command output.
func (c *Client) ContainerExec(ctx context.Context, node, vmid, command string) (string, error) {
	data := url.Values{}
	data.Set("command", command)
	path := fmt.Sprintf("/nodes/%s/lxc/%s/exec", url.PathEscape(node), url.PathEscape(vmid))
	return c.postTask(ctx, path, data)
}

// GetContainerRRD returns the hourly RRD metric samples for a container.
func (c *Client) GetContainerRRD(ctx context.Context, node, vmid string) ([]map[string]interface{}, error) {
	var result struct {
		Data []map[string]interface{} `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/lxc/%s/rrddata?timeframe=hour", url.PathEscape(node), url.PathEscape(vmid))
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// UpdateContainerConfig applies configuration changes to a container.
func (c *Client) UpdateContainerConfig(ctx context.Context, node, vmid string, changes map[string]string) error {
	data := url.Values{}
	for k, v := range changes {
		data.Set(k, v)
	}
	path := fmt.Sprintf("/nodes/%s/lxc/%s/config", url.PathEscape(node), url.PathEscape(vmid))
	return c.put(ctx, path, data, nil)
}

// CreateContainer creates an LXC container and returns the task UPID.
func (c *Client) CreateContainer(ctx context.Context, node string, opts ContainerCreateOptions) (string, error) {
	data := url.Values{}
	data.Set("vmid", strconv.Itoa(opts.VMID))
	data.Set("ostemplate", opts.OSTemplate)
	data.Set("storage", opts.Storage)
	if opts.Hostname != "" {
		data.Set("hostname", opts.Hostname)
	}
	if opts.MemoryMB > 0 {
		data.Set("memory", strconv.Itoa(opts.MemoryMB))
	}
	if opts.Cores > 0 {
		data.Set("cores", strconv.Itoa(opts.Cores))
	}
	if opts.Password != "" {
		data.Set("password", opts.Password)
	}
	if opts.Net0 != "" {
		data.Set("net0", opts.Net0)
	}
	path := fmt.Sprintf("/nodes/%s/lxc", url.PathEscape(node))
	return c.postTask(ctx, path, data)
}

// StartContainer starts a container and returns the task UPID.
func (c *Client) StartContainer(ctx context.Context, node, vmid string) (string, error) {
	return c.containerStatusAction(ctx, node, vmid, "start")
}

// StopContainer stops a container and returns the task UPID.
func (c *Client) StopContainer(ctx context.Context, node, vmid string) (string, error) {
	return c.containerStatusAction(ctx, node, vmid, "shutdown")
}

// RestartContainer reboots a container and returns the task UPID.
func (c *Client) RestartContainer(ctx context.Context, node, vmid string) (string, error) {
	return c.containerStatusAction(ctx, node, vmid, "reboot")
}

func (c *Client) containerStatusAction(ctx context.Context, node, vmid, action string) (string, error) {
	path := fmt.Sprintf("/nodes/%s/lxc/%s/status/%s", url.PathEscape(node), url.PathEscape(vmid), action)
	return c.postTask(ctx, path, nil)
}

// DeleteContainer destroys a container and returns the task UPID.
func (c *Client) DeleteContainer(ctx context.Context, node, vmid string) (string, error) {
	path := fmt.Sprintf("/nodes/%s/lxc/%s", url.PathEscape(node), url.PathEscape(vmid))
	return c.deleteTask(ctx, path)
}

// CloneContainer clones a container and returns the task UPID.
func (c *Client) CloneContainer(ctx context.Context, node, vmid string, opts CloneOptions) (string, error) {
	data := url.Values{}
	data.Set("newid", strconv.Itoa(opts.NewID))
	if opts.FullClone {
		data.Set("full", "1")
	}
	if opts.Name != "" {
		data.Set("hostname", opts.Name)
	}
	if opts.TargetNode != "" {
		data.Set("target", opts.TargetNode)
	}
	if opts.Storage != "" {
		data.Set("storage", opts.Storage)
	}
	path := fmt.Sprintf("/nodes/%s/lxc/%s/clone", url.PathEscape(node), url.PathEscape(vmid))
	return c.postTask(ctx, path, data)
}
