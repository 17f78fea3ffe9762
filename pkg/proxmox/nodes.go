package proxmox

import (
	"context"
	"fmt"
	"net/url"
)

// Node is a cluster member as reported by /nodes.
type Node struct {
	Node    string  `json:"node"`
	Status  string  `json:"status"`
	CPU     float64 `json:"cpu"`
	MaxCPU  int     `json:"maxcpu"`
	Mem     int64   `json:"mem"`
	MaxMem  int64   `json:"maxmem"`
	Disk    int64   `json:"disk"`
	MaxDisk int64   `json:"maxdisk"`
	Uptime  int64   `json:"uptime"`
	Level   string  `json:"level,omitempty"`
}

// NodeStatus is the detailed status of a single node.
type NodeStatus struct {
	CPU         float64    `json:"cpu"`
	LoadAvg     []string   `json:"loadavg"`
	Memory      MemoryInfo `json:"memory"`
	Swap        MemoryInfo `json:"swap"`
	RootFS      MemoryInfo `json:"rootfs"`
	Uptime      int64      `json:"uptime"`
	KVersion    string     `json:"kversion"`
	PVEVersion  string     `json:"pveversion"`
	CPUInfo     CPUInfo    `json:"cpuinfo"`
	Wait        float64    `json:"wait"`
}

// MemoryInfo describes a memory-like capacity (RAM, swap, rootfs).
type MemoryInfo struct {
	Total int64 `json:"total"`
	Used  int64 `json:"used"`
	Free  int64 `json:"free"`
}

// CPUInfo describes the node processor.
type CPUInfo struct {
	Model   string `json:"model"`
	Sockets int    `json:"sockets"`
	Cores   int    `json:"cores"`
	CPUs    int    `json:"cpus"`
	MHz     string `json:"mhz"`
}

// GetNodes lists all nodes in the cluster.
func (c *Client) GetNodes(ctx context.Context) ([]Node, error) {
	var result struct {
		Data []Node `json:"data"`
	}
	if err := c.get(ctx, "/nodes", &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// GetNodeStatus returns detailed status for one node.
func (c *Client) GetNodeStatus(ctx context.Context, node string) (*NodeStatus, error) {
	var result struct {
		Data *NodeStatus `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/status", url.PathEscape(node))
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	if result.Data == nil {
		return nil, &APIError{Kind: KindUpstream, Message: "empty node status response"}
	}
	return result.Data, nil
}

// ClusterStatusEntry is one row of /cluster/status: the cluster record
// itself plus one record per node.
type ClusterStatusEntry struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // "cluster" or "node"
	Name    string `json:"name"`
	Quorate int    `json:"quorate,omitempty"`
	Nodes   int    `json:"nodes,omitempty"`
	Online  int    `json:"online,omitempty"`
	IP      string `json:"ip,omitempty"`
	Local   int    `json:"local,omitempty"`
}

// GetClusterStatus returns cluster membership and quorum information.
func (c *Client) GetClusterStatus(ctx context.Context) ([]ClusterStatusEntry, error) {
	var result struct {
		Data []ClusterStatusEntry `json:"data"`
	}
	if err := c.get(ctx, "/cluster/status", &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// NextID asks the cluster for the next free VMID.
func (c *Client) NextID(ctx context.Context) (int, error) {
	var result struct {
		Data string `json:"data"`
	}
	if err := c.get(ctx, "/cluster/nextid", &result); err != nil {
		return 0, err
	}
	var id int
	if _, err := fmt.Sscanf(result.Data, "%d", &id); err != nil {
		return 0, newDecodeError(err)
	}
	return id, nil
}
