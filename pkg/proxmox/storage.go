package proxmox

import (
	"context"
	"fmt"
	"net/url"
)

// Storage is a storage pool as reported by /nodes/{node}/storage.
type Storage struct {
	Storage string  `json:"storage"`
	Node    string  `json:"node,omitempty"`
	Type    string  `json:"type"`
	Content string  `json:"content"`
	Active  int     `json:"active"`
	Enabled int     `json:"enabled"`
	Shared  int     `json:"shared"`
	Used    int64   `json:"used"`
	Total   int64   `json:"total"`
	Avail   int64   `json:"avail"`
	UsedPct float64 `json:"used_fraction"`
}

// StorageContent is one volume on a storage pool (backup archive, container
// template, ISO image, ...).
type StorageContent struct {
	VolID   string `json:"volid"`
	Content string `json:"content"`
	Format  string `json:"format"`
	Size    int64  `json:"size"`
	CTime   int64  `json:"ctime,omitempty"`
	VMID    int    `json:"vmid,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// GetNodeStorage lists storage pools visible from one node.
func (c *Client) GetNodeStorage(ctx context.Context, node string) ([]Storage, error) {
	var result struct {
		Data []Storage `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/storage", url.PathEscape(node))
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// GetStorage lists storage pools across every online node. Shared pools
// appear once per node that mounts them; callers that need uniqueness
// de-duplicate on the pool name.
func (c *Client) GetStorage(ctx context.Context) ([]Storage, error) {
	nodes, err := c.GetNodes(ctx)
	if err != nil {
		return nil, err
	}

	var pools []Storage
	for _, n := range nodes {
		if n.Status != "online" {
			continue
		}
		nodePools, err := c.GetNodeStorage(ctx, n.Node)
		if err != nil {
			return nil, fmt.Errorf("list storage on node %s: %w", n.Node, err)
		}
		for i := range nodePools {
			nodePools[i].Node = n.Node
		}
		pools = append(pools, nodePools...)
	}
	return pools, nil
}

// DownloadToStorage asks a node to download a file by URL onto a storage
// pool (e.g. an LXC OS template) and returns the download task UPID.
// content is the volume type to store it as ("vztmpl", "iso").
func (c *Client) DownloadToStorage(ctx context.Context, node, storage, content, fileURL, filename string) (string, error) {
	data := url.Values{}
	data.Set("content", content)
	data.Set("url", fileURL)
	data.Set("filename", filename)
	path := fmt.Sprintf("/nodes/%s/storage/%s/download-url", url.PathEscape(node), url.PathEscape(storage))
	return c.postTask(ctx, path, data)
}

// GetStorageContent lists volumes on a storage pool, optionally filtered by
// content type ("backup", "vztmpl", "iso", ...).
func (c *Client) GetStorageContent(ctx context.Context, node, storage, content string) ([]StorageContent, error) {
	var result struct {
		Data []StorageContent `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/storage/%s/content", url.PathEscape(node), url.PathEscape(storage))
	if content != "" {
		path += "?content=" + url.QueryEscape(content)
	}
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}
