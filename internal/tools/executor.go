// Package tools defines the Proxmox tool catalog and the dispatcher that
// validates arguments, invokes the remote API, and shapes results for the
// MCP layer.
package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rcourtman/proxmox-mcp/internal/guestexec"
	"github.com/rcourtman/proxmox-mcp/internal/mcp"
	"github.com/rcourtman/proxmox-mcp/internal/metrics"
	"github.com/rcourtman/proxmox-mcp/internal/tasks"
	"github.com/rcourtman/proxmox-mcp/pkg/proxmox"
	"github.com/rs/zerolog/log"
)

// API is the slice of the Proxmox client the tool handlers call. It exists
// so tests can substitute a fake and assert which upstream calls happened.
type API interface {
	GetNodes(ctx context.Context) ([]proxmox.Node, error)
	GetNodeStatus(ctx context.Context, node string) (*proxmox.NodeStatus, error)
	GetClusterStatus(ctx context.Context) ([]proxmox.ClusterStatusEntry, error)
	NextID(ctx context.Context) (int, error)

	GetVMs(ctx context.Context) ([]proxmox.VM, error)
	GetVMStatus(ctx context.Context, node, vmid string) (*proxmox.VM, error)
	GetVMConfig(ctx context.Context, node, vmid string) (map[string]interface{}, error)
	UpdateVMConfig(ctx context.Context, node, vmid string, changes map[string]string) error
	StartVM(ctx context.Context, node, vmid string) (string, error)
	ShutdownVM(ctx context.Context, node, vmid string) (string, error)
	RebootVM(ctx context.Context, node, vmid string) (string, error)
	CloneVM(ctx context.Context, node, vmid string, opts proxmox.CloneOptions) (string, error)
	DeleteVM(ctx context.Context, node, vmid string) (string, error)
	ConvertToTemplate(ctx context.Context, node, vmid string) error
	CreateSnapshot(ctx context.Context, node, vmid, name, description string) (string, error)
	ListSnapshots(ctx context.Context, node, vmid string) ([]proxmox.Snapshot, error)
	RollbackSnapshot(ctx context.Context, node, vmid, snapshot string) (string, error)

	GetContainers(ctx context.Context) ([]proxmox.Container, error)
	GetContainerStatus(ctx context.Context, node, vmid string) (*proxmox.Container, error)
	GetContainerRRD(ctx context.Context, node, vmid string) ([]map[string]interface{}, error)
	ContainerExec(ctx context.Context, node, vmid, command string) (string, error)
	GetContainerConfig(ctx context.Context, node, vmid string) (map[string]interface{}, error)
	UpdateContainerConfig(ctx context.Context, node, vmid string, changes map[string]string) error
	CreateContainer(ctx context.Context, node string, opts proxmox.ContainerCreateOptions) (string, error)
	StartContainer(ctx context.Context, node, vmid string) (string, error)
	StopContainer(ctx context.Context, node, vmid string) (string, error)
	RestartContainer(ctx context.Context, node, vmid string) (string, error)
	DeleteContainer(ctx context.Context, node, vmid string) (string, error)
	CloneContainer(ctx context.Context, node, vmid string, opts proxmox.CloneOptions) (string, error)

	GetStorage(ctx context.Context) ([]proxmox.Storage, error)
	GetNodeStorage(ctx context.Context, node string) ([]proxmox.Storage, error)
	GetStorageContent(ctx context.Context, node, storage, content string) ([]proxmox.StorageContent, error)
	DownloadToStorage(ctx context.Context, node, storage, content, fileURL, filename string) (string, error)

	GetNodeTasks(ctx context.Context, node string, limit int, vmid string) ([]proxmox.Task, error)
	GetTaskStatus(ctx context.Context, node, upid string) (*proxmox.TaskStatus, error)
	GetTaskLog(ctx context.Context, node, upid string) ([]string, error)

	CreateBackup(ctx context.Context, node, vmid string, opts proxmox.BackupOptions) (string, error)
	RestoreBackup(ctx context.Context, node string, opts proxmox.RestoreOptions) (string, error)
	GetBackupJobs(ctx context.Context) ([]proxmox.BackupJob, error)
	UpdateBackupJob(ctx context.Context, id string, changes map[string]string) error
}

// TaskWaiter tracks asynchronous hypervisor tasks to completion.
type TaskWaiter interface {
	Wait(ctx context.Context, upid string, timeout time.Duration) (tasks.Status, error)
	Cancel(ctx context.Context, upid string) (tasks.Status, error)
}

// GuestRunner executes commands inside guests via the QEMU agent.
type GuestRunner interface {
	Execute(ctx context.Context, node, vmid, command string, timeout time.Duration) (*guestexec.Execution, error)
}

// Error kinds surfaced to tool callers beyond those the API client maps.
const (
	KindValidation   = "validation_error"
	KindToolNotFound = "tool_not_found"
	KindTimedOut     = "timed_out"
	KindInternal     = "internal_error"
)

// toolError is a handler failure with a stable kind.
type toolError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *toolError) Error() string {
	return e.Message
}

func errf(kind, format string, args ...interface{}) error {
	return &toolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// errorEnvelope is the body of a failed tool result.
type errorEnvelope struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// Executor wires the tool catalog to the Proxmox client, task monitor and
// guest-agent runner, and implements mcp.ToolExecutor.
type Executor struct {
	registry *Registry
	api      API
	monitor  TaskWaiter
	guest    GuestRunner
}

// NewExecutor builds the full tool catalog over the given dependencies.
func NewExecutor(api API, monitor TaskWaiter, guest GuestRunner) *Executor {
	e := &Executor{
		registry: NewRegistry(),
		api:      api,
		monitor:  monitor,
		guest:    guest,
	}
	e.registerNodeTools()
	e.registerVMTools()
	e.registerLifecycleTools()
	e.registerContainerTools()
	e.registerTemplateTools()
	e.registerStorageTools()
	e.registerTaskTools()
	e.registerBackupTools()
	return e
}

// ListTools returns the catalog as MCP tool descriptors.
func (e *Executor) ListTools() []mcp.Tool {
	return e.registry.Tools()
}

// ExecuteTool validates the arguments for the named tool, runs its handler,
// and shapes success or failure into a CallToolResult. Errors become a
// structured {"error": {kind, message}} payload with IsError set; the
// JSON-RPC layer only sees transport-level failures.
func (e *Executor) ExecuteTool(ctx context.Context, name string, rawArgs map[string]interface{}) (mcp.CallToolResult, error) {
	requestID := uuid.New().String()
	start := time.Now()

	logger := log.With().
		Str("requestId", requestID).
		Str("tool", name).
		Logger()

	def := e.registry.Lookup(name)
	if def == nil {
		logger.Warn().Msg("Unknown tool requested")
		metrics.RecordInvocation(name, "tool_not_found", time.Since(start).Seconds())
		return errorResult(KindToolNotFound, "unknown tool: "+name)
	}

	args, err := validateArgs(def.Args, rawArgs)
	if err != nil {
		logger.Warn().Err(err).Msg("Argument validation failed")
		metrics.RecordInvocation(name, "validation_error", time.Since(start).Seconds())
		return errorResult(KindValidation, err.Error())
	}

	result, err := def.Handler(ctx, args)
	elapsed := time.Since(start)
	if err != nil {
		kind := kindOf(err)
		logger.Error().Err(err).Str("kind", kind).Dur("elapsed", elapsed).Msg("Tool failed")
		metrics.RecordInvocation(name, kind, elapsed.Seconds())
		return errorResult(kind, err.Error())
	}

	content, err := mcp.NewJSONContent(result)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode tool result")
		metrics.RecordInvocation(name, "internal_error", elapsed.Seconds())
		return errorResult(KindInternal, "failed to encode result")
	}

	logger.Debug().Dur("elapsed", elapsed).Msg("Tool completed")
	metrics.RecordInvocation(name, "success", elapsed.Seconds())
	return mcp.CallToolResult{Content: []mcp.Content{content}}, nil
}

// kindOf maps any handler error to its stable kind string.
func kindOf(err error) string {
	var te *toolError
	if errors.As(err, &te) {
		return te.Kind
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimedOut
	}
	var apiErr *proxmox.APIError
	if errors.As(err, &apiErr) {
		return string(apiErr.Kind)
	}
	return KindInternal
}

func errorResult(kind, message string) (mcp.CallToolResult, error) {
	var env errorEnvelope
	env.Error.Kind = kind
	env.Error.Message = message

	content, err := mcp.NewJSONContent(env)
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	return mcp.CallToolResult{
		Content: []mcp.Content{content},
		IsError: true,
	}, nil
}
