package proxmox

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Task is one entry of a node's task history.
type Task struct {
	UPID      string `json:"upid"`
	Node      string `json:"node"`
	Type      string `json:"type"`
	ID        string `json:"id"`
	User      string `json:"user"`
	Status    string `json:"status"`
	StartTime int64  `json:"starttime"`
	EndTime   int64  `json:"endtime,omitempty"`
	PID       int    `json:"pid,omitempty"`
}

// TaskStatus is the detailed status of one task. Status is "running" until
// the task stops; ExitStatus is only meaningful once Status is "stopped"
// and is "OK" on success.
type TaskStatus struct {
	UPID       string `json:"upid"`
	Node       string `json:"node"`
	Type       string `json:"type"`
	ID         string `json:"id"`
	User       string `json:"user"`
	Status     string `json:"status"`
	ExitStatus string `json:"exitstatus,omitempty"`
	StartTime  int64  `json:"starttime"`
	PID        int    `json:"pid,omitempty"`
}

// Finished reports whether the task has reached a terminal state on the
// hypervisor.
func (ts *TaskStatus) Finished() bool { return ts.Status == "stopped" }

// Succeeded reports whether a finished task completed without error.
func (ts *TaskStatus) Succeeded() bool { return ts.Finished() && ts.ExitStatus == "OK" }

// GetNodeTasks lists recent tasks on one node. limit bounds the result size;
// vmid, when non-empty, restricts the listing to one guest.
func (c *Client) GetNodeTasks(ctx context.Context, node string, limit int, vmid string) ([]Task, error) {
	var result struct {
		Data []Task `json:"data"`
	}

	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if vmid != "" {
		params.Set("vmid", vmid)
	}

	path := fmt.Sprintf("/nodes/%s/tasks", url.PathEscape(node))
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	for i := range result.Data {
		result.Data[i].Node = node
	}
	return result.Data, nil
}

// GetTaskStatus returns the status of one task on its originating node.
func (c *Client) GetTaskStatus(ctx context.Context, node, upid string) (*TaskStatus, error) {
	var result struct {
		Data *TaskStatus `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/tasks/%s/status", url.PathEscape(node), url.PathEscape(upid))
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	if result.Data == nil {
		return nil, &APIError{Kind: KindUpstream, Message: "empty task status response"}
	}
	result.Data.Node = node
	return result.Data, nil
}

// GetTaskLog returns the log lines of a task. Missing logs are not an
// error; the caller gets an empty slice.
func (c *Client) GetTaskLog(ctx context.Context, node, upid string) ([]string, error) {
	var result struct {
		Data []struct {
			N int    `json:"n"`
			T string `json:"t"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/tasks/%s/log", url.PathEscape(node), url.PathEscape(upid))
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(result.Data))
	for _, entry := range result.Data {
		lines = append(lines, entry.T)
	}
	return lines, nil
}

// StopTask asks the node to interrupt a running task.
func (c *Client) StopTask(ctx context.Context, node, upid string) error {
	path := fmt.Sprintf("/nodes/%s/tasks/%s", url.PathEscape(node), url.PathEscape(upid))
	return c.delete(ctx, path, nil)
}
