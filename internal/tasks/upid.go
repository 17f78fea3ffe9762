package tasks

import (
	"fmt"
	"strings"
)

// UPID is a parsed Proxmox task identifier. The wire form is
//
//	UPID:node:pid:pstart:starttime:type:id:user@realm:
//
// and is treated as an opaque immutable handle everywhere except here, where
// the originating node is extracted for routing status reads.
type UPID struct {
	Raw  string
	Node string
	Type string
	ID   string
	User string
}

// ParseUPID validates and destructures a task identifier.
func ParseUPID(raw string) (UPID, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 8 || parts[0] != "UPID" {
		return UPID{}, fmt.Errorf("malformed UPID %q", raw)
	}
	if parts[1] == "" {
		return UPID{}, fmt.Errorf("malformed UPID %q: missing node", raw)
	}
	return UPID{
		Raw:  raw,
		Node: parts[1],
		Type: parts[5],
		ID:   parts[6],
		User: parts[7],
	}, nil
}
