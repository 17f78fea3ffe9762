package proxmox

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// AgentExecStatus is the state of a command started through the QEMU guest
// agent. Output fields are only present once Exited is true, and only when
// the guest produced output on the corresponding stream.
type AgentExecStatus struct {
	Exited   int    `json:"exited"`
	ExitCode int    `json:"exitcode,omitempty"`
	OutData  string `json:"out-data,omitempty"`
	ErrData  string `json:"err-data,omitempty"`
	Signal   int    `json:"signal,omitempty"`
}

// Finished reports whether the guest process has exited.
func (s *AgentExecStatus) Finished() bool { return s.Exited == 1 }

// AgentExec starts a command inside a VM via the QEMU guest agent and
// returns the in-guest process id used to poll for completion. A VM without
// a reachable guest agent yields a guest_agent_unavailable error.
func (c *Client) AgentExec(ctx context.Context, node, vmid, command string) (int, error) {
	data := url.Values{}
	data.Set("command", command)

	var result struct {
		Data struct {
			PID int `json:"pid"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/qemu/%s/agent/exec", url.PathEscape(node), url.PathEscape(vmid))
	if err := c.post(ctx, path, data, &result); err != nil {
		return 0, err
	}
	return result.Data.PID, nil
}

// AgentExecStatus polls the status of a guest-agent command.
func (c *Client) AgentExecStatus(ctx context.Context, node, vmid string, pid int) (*AgentExecStatus, error) {
	var result struct {
		Data *AgentExecStatus `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/qemu/%s/agent/exec-status?pid=%s",
		url.PathEscape(node), url.PathEscape(vmid), strconv.Itoa(pid))
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	if result.Data == nil {
		return nil, &APIError{Kind: KindUpstream, Message: "empty exec-status response"}
	}
	return result.Data, nil
}

// IsGuestAgentUnavailable reports whether err means the guest-agent channel
// itself is down, as opposed to the command failing inside the guest.
func IsGuestAgentUnavailable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindGuestAgent
}
