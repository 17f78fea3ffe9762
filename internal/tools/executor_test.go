package tools

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/rcourtman/proxmox-mcp/internal/guestexec"
	"github.com/rcourtman/proxmox-mcp/internal/tasks"
	"github.com/rcourtman/proxmox-mcp/pkg/proxmox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI implements the handful of API methods the tests drive and counts
// every upstream call. Tools that must fail before reaching the adapter are
// asserted against a zero call count.
type fakeAPI struct {
	API

	calls     int
	nodes     []proxmox.Node
	nodesErr  error
	nextID    int
	cloneUPID string
	cloneOpts proxmox.CloneOptions
	config    map[string]interface{}

	execUPID   string
	taskLog    []string
	ctStatus   *proxmox.Container
	ctRRD      []map[string]interface{}
	backupJobs []proxmox.BackupJob

	vmChanges    map[string]string
	updatedJobID string
	jobChanges   map[string]string
	downloadArgs []string
}

func (f *fakeAPI) GetNodes(ctx context.Context) ([]proxmox.Node, error) {
	f.calls++
	return f.nodes, f.nodesErr
}

func (f *fakeAPI) GetVMConfig(ctx context.Context, node, vmid string) (map[string]interface{}, error) {
	f.calls++
	return f.config, nil
}

func (f *fakeAPI) NextID(ctx context.Context) (int, error) {
	f.calls++
	return f.nextID, nil
}

func (f *fakeAPI) CloneVM(ctx context.Context, node, vmid string, opts proxmox.CloneOptions) (string, error) {
	f.calls++
	f.cloneOpts = opts
	return f.cloneUPID, nil
}

func (f *fakeAPI) UpdateVMConfig(ctx context.Context, node, vmid string, changes map[string]string) error {
	f.calls++
	f.vmChanges = changes
	return nil
}

func (f *fakeAPI) ContainerExec(ctx context.Context, node, vmid, command string) (string, error) {
	f.calls++
	return f.execUPID, nil
}

func (f *fakeAPI) GetTaskLog(ctx context.Context, node, upid string) ([]string, error) {
	f.calls++
	return f.taskLog, nil
}

func (f *fakeAPI) GetContainerStatus(ctx context.Context, node, vmid string) (*proxmox.Container, error) {
	f.calls++
	return f.ctStatus, nil
}

func (f *fakeAPI) GetContainerRRD(ctx context.Context, node, vmid string) ([]map[string]interface{}, error) {
	f.calls++
	return f.ctRRD, nil
}

func (f *fakeAPI) GetBackupJobs(ctx context.Context) ([]proxmox.BackupJob, error) {
	f.calls++
	return f.backupJobs, nil
}

func (f *fakeAPI) UpdateBackupJob(ctx context.Context, id string, changes map[string]string) error {
	f.calls++
	f.updatedJobID = id
	f.jobChanges = changes
	return nil
}

func (f *fakeAPI) DownloadToStorage(ctx context.Context, node, storage, content, fileURL, filename string) (string, error) {
	f.calls++
	f.downloadArgs = []string{node, storage, content, fileURL, filename}
	return "UPID:pve1:0000C350:015A2B3C:65A0F111:download:0:root@pam:", nil
}

type fakeWaiter struct {
	status tasks.Status
}

func (f *fakeWaiter) Wait(ctx context.Context, upid string, timeout time.Duration) (tasks.Status, error) {
	return f.status, nil
}

func (f *fakeWaiter) Cancel(ctx context.Context, upid string) (tasks.Status, error) {
	return f.status, nil
}

type fakeGuest struct{}

func (f *fakeGuest) Execute(ctx context.Context, node, vmid, command string, timeout time.Duration) (*guestexec.Execution, error) {
	return &guestexec.Execution{Node: node, VMID: vmid, Command: command, Status: tasks.StateSucceeded}, nil
}

// errEnvelope extracts the kind from a failed tool result.
func errEnvelope(t *testing.T, text string) string {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal([]byte(text), &env))
	return env.Error.Kind
}

func newTestExecutor(api API) *Executor {
	return NewExecutor(api, &fakeWaiter{}, &fakeGuest{})
}

func TestExecuteToolUnknownTool(t *testing.T) {
	api := &fakeAPI{}
	e := newTestExecutor(api)

	result, err := e.ExecuteTool(context.Background(), "format_all_disks", nil)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, KindToolNotFound, errEnvelope(t, result.Content[0].Text))
	assert.Equal(t, 0, api.calls, "unknown tool must not reach the API")
}

func TestExecuteToolMissingRequiredArg(t *testing.T) {
	api := &fakeAPI{}
	e := newTestExecutor(api)

	result, err := e.ExecuteTool(context.Background(), "get_vm_config", map[string]interface{}{
		"node": "pve1",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, KindValidation, errEnvelope(t, result.Content[0].Text))
	assert.Contains(t, result.Content[0].Text, "vmid")
	assert.Equal(t, 0, api.calls, "validation failure must not reach the API")
}

func TestExecuteToolTypeMismatch(t *testing.T) {
	api := &fakeAPI{}
	e := newTestExecutor(api)

	result, err := e.ExecuteTool(context.Background(), "wait_for_task", map[string]interface{}{
		"task_id":         "UPID:pve1:0000C350:015A2B3C:65A0F111:qmstart:101:root@pam:",
		"timeout_seconds": "soon",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, KindValidation, errEnvelope(t, result.Content[0].Text))
	assert.Equal(t, 0, api.calls)
}

func TestExecuteToolRejectsEnumViolation(t *testing.T) {
	api := &fakeAPI{}
	e := newTestExecutor(api)

	result, err := e.ExecuteTool(context.Background(), "create_backup", map[string]interface{}{
		"node": "pve1", "vmid": "101", "mode": "yolo",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, KindValidation, errEnvelope(t, result.Content[0].Text))
	assert.Equal(t, 0, api.calls)
}

func TestExecuteToolSuccess(t *testing.T) {
	api := &fakeAPI{nodes: []proxmox.Node{{Node: "pve1", Status: "online"}}}
	e := newTestExecutor(api)

	result, err := e.ExecuteTool(context.Background(), "get_nodes", nil)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Contains(t, result.Content[0].Text, "pve1")
	assert.Equal(t, 1, api.calls)
}

func TestExecuteToolIgnoresUnknownArguments(t *testing.T) {
	api := &fakeAPI{nodes: []proxmox.Node{{Node: "pve1"}}}
	e := newTestExecutor(api)

	result, err := e.ExecuteTool(context.Background(), "get_nodes", map[string]interface{}{
		"surprise": true,
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestExecuteToolMapsAPIErrors(t *testing.T) {
	api := &fakeAPI{nodesErr: &proxmox.APIError{Kind: proxmox.KindAuth, Status: 401, Message: "credentials rejected"}}
	e := newTestExecutor(api)

	result, err := e.ExecuteTool(context.Background(), "get_nodes", nil)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "auth_error", errEnvelope(t, result.Content[0].Text))
}

func TestCloneVMAllocatesGuestID(t *testing.T) {
	api := &fakeAPI{
		nextID:    105,
		cloneUPID: "UPID:pve1:0000C350:015A2B3C:65A0F111:qmclone:101:root@pam:",
	}
	e := newTestExecutor(api)

	result, err := e.ExecuteTool(context.Background(), "clone_vm", map[string]interface{}{
		"node": "pve1", "vmid": "101", "name": "clone-of-101",
	})
	require.NoError(t, err)
	require.False(t, result.IsError, result.Content[0].Text)

	assert.Equal(t, 105, api.cloneOpts.NewID)
	assert.Equal(t, "clone-of-101", api.cloneOpts.Name)
	assert.True(t, api.cloneOpts.FullClone, "clone_vm defaults to a full clone")
	assert.Contains(t, result.Content[0].Text, `"new_vmid": 105`)
}

func TestWaitForTaskReportsTimeoutKind(t *testing.T) {
	waiter := &fakeWaiter{status: tasks.Status{
		UPID:  "UPID:pve1:0000C350:015A2B3C:65A0F111:qmstart:101:root@pam:",
		State: tasks.StateTimedOut,
	}}
	e := NewExecutor(&fakeAPI{}, waiter, &fakeGuest{})

	result, err := e.ExecuteTool(context.Background(), "wait_for_task", map[string]interface{}{
		"task_id": "UPID:pve1:0000C350:015A2B3C:65A0F111:qmstart:101:root@pam:",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, KindTimedOut, errEnvelope(t, result.Content[0].Text))
}

func TestExecuteContainerCommandCollectsTaskLog(t *testing.T) {
	const upid = "UPID:pve1:0000C350:015A2B3C:65A0F111:vzexec:200:root@pam:"
	api := &fakeAPI{
		execUPID: upid,
		taskLog:  []string{"Linux ct1 6.8.0", "done"},
	}
	waiter := &fakeWaiter{status: tasks.Status{UPID: upid, Node: "pve1", State: tasks.StateSucceeded}}
	e := NewExecutor(api, waiter, &fakeGuest{})

	result, err := e.ExecuteTool(context.Background(), "execute_container_command", map[string]interface{}{
		"node": "pve1", "vmid": "200", "command": "uname -a",
	})
	require.NoError(t, err)
	require.False(t, result.IsError, result.Content[0].Text)
	assert.Contains(t, result.Content[0].Text, "Linux ct1 6.8.0")
	assert.Contains(t, result.Content[0].Text, `"exit_code": 0`)
	assert.Contains(t, result.Content[0].Text, upid)
}

func TestExecuteContainerCommandTimesOut(t *testing.T) {
	const upid = "UPID:pve1:0000C350:015A2B3C:65A0F111:vzexec:200:root@pam:"
	api := &fakeAPI{execUPID: upid}
	waiter := &fakeWaiter{status: tasks.Status{UPID: upid, State: tasks.StateTimedOut}}
	e := NewExecutor(api, waiter, &fakeGuest{})

	result, err := e.ExecuteTool(context.Background(), "execute_container_command", map[string]interface{}{
		"node": "pve1", "vmid": "200", "command": "sleep 600", "timeout_seconds": 1,
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, KindTimedOut, errEnvelope(t, result.Content[0].Text))
}

func TestGetContainerPerformance(t *testing.T) {
	api := &fakeAPI{
		ctStatus: &proxmox.Container{
			VMID: 200, CPU: 0.25, Mem: 256 << 20, MaxMem: 512 << 20,
			DiskRead: 1024, DiskWrite: 2048, NetIn: 10, NetOut: 20,
		},
		ctRRD: []map[string]interface{}{{"cpu": 0.2}},
	}
	e := newTestExecutor(api)

	result, err := e.ExecuteTool(context.Background(), "get_container_performance", map[string]interface{}{
		"node": "pve1", "vmid": "200",
	})
	require.NoError(t, err)
	require.False(t, result.IsError, result.Content[0].Text)
	assert.Contains(t, result.Content[0].Text, `"cpu_usage": 0.25`)
	assert.Contains(t, result.Content[0].Text, `"read_bytes": 1024`)
	assert.Contains(t, result.Content[0].Text, "historical_data")
}

func TestUpdateTemplateRejectsNonTemplate(t *testing.T) {
	api := &fakeAPI{config: map[string]interface{}{"name": "plain-vm"}}
	e := newTestExecutor(api)

	result, err := e.ExecuteTool(context.Background(), "update_template", map[string]interface{}{
		"node": "pve1", "vmid": "101", "name": "renamed",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, KindValidation, errEnvelope(t, result.Content[0].Text))
	assert.Nil(t, api.vmChanges, "a non-template must not be reconfigured")
}

func TestUpdateTemplateAppliesChanges(t *testing.T) {
	api := &fakeAPI{config: map[string]interface{}{"template": float64(1)}}
	e := newTestExecutor(api)

	result, err := e.ExecuteTool(context.Background(), "update_template", map[string]interface{}{
		"node": "pve1", "vmid": "110", "name": "base-image", "cores": 4,
	})
	require.NoError(t, err)
	require.False(t, result.IsError, result.Content[0].Text)
	assert.Equal(t, map[string]string{"name": "base-image", "cores": "4"}, api.vmChanges)
}

func TestUpdateBackupScheduleFindsJobForNode(t *testing.T) {
	api := &fakeAPI{backupJobs: []proxmox.BackupJob{
		{ID: "backup-1", Node: "pve2"},
		{ID: "backup-2"}, // no node restriction, covers every node
	}}
	e := newTestExecutor(api)

	result, err := e.ExecuteTool(context.Background(), "update_backup_schedule", map[string]interface{}{
		"node":     "pve1",
		"schedule": map[string]interface{}{"schedule": "21:00"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, result.Content[0].Text)
	assert.Equal(t, "backup-2", api.updatedJobID)
	assert.Equal(t, map[string]string{"schedule": "21:00"}, api.jobChanges)
}

func TestUpdateBackupScheduleWithoutCoveringJob(t *testing.T) {
	api := &fakeAPI{}
	e := newTestExecutor(api)

	result, err := e.ExecuteTool(context.Background(), "update_backup_schedule", map[string]interface{}{
		"node":     "pve9",
		"schedule": map[string]interface{}{"schedule": "21:00"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "not_found", errEnvelope(t, result.Content[0].Text))
	assert.Empty(t, api.updatedJobID)
}

func TestImportTemplateDerivesFilename(t *testing.T) {
	api := &fakeAPI{}
	e := newTestExecutor(api)

	result, err := e.ExecuteTool(context.Background(), "import_template", map[string]interface{}{
		"node":    "pve1",
		"storage": "local",
		"url":     "https://images.example.com/templates/debian-12-standard_12.2-1_amd64.tar.zst",
	})
	require.NoError(t, err)
	require.False(t, result.IsError, result.Content[0].Text)
	require.Len(t, api.downloadArgs, 5)
	assert.Equal(t, "local", api.downloadArgs[1])
	assert.Equal(t, "vztmpl", api.downloadArgs[2])
	assert.Equal(t, "debian-12-standard_12.2-1_amd64.tar.zst", api.downloadArgs[4])
}

func TestListToolsIsSortedAndStable(t *testing.T) {
	e := newTestExecutor(&fakeAPI{})

	listed := e.ListTools()
	require.NotEmpty(t, listed)

	names := make([]string, len(listed))
	for i, tool := range listed {
		names[i] = tool.Name
	}
	assert.True(t, sort.StringsAreSorted(names), "tools/list must be deterministic")

	for _, expected := range []string{
		"get_nodes", "get_vms", "get_containers", "get_container_status",
		"get_container_performance", "execute_container_command",
		"start_vm", "get_templates", "create_template", "clone_template",
		"update_template", "import_template", "delete_template",
		"execute_vm_command", "wait_for_task", "cancel_task",
		"create_backup", "restore_backup", "get_backup_config",
		"update_backup_schedule",
	} {
		assert.Contains(t, names, expected)
	}

	again := e.ListTools()
	require.Equal(t, len(listed), len(again))
	for i := range listed {
		assert.Equal(t, listed[i].Name, again[i].Name)
	}
}

func TestToolSchemasDeclareRequiredArgs(t *testing.T) {
	e := newTestExecutor(&fakeAPI{})

	for _, tool := range e.ListTools() {
		if tool.Name == "get_vm_config" {
			assert.ElementsMatch(t, []string{"node", "vmid"}, tool.InputSchema.Required)
			assert.Equal(t, "object", tool.InputSchema.Type)
		}
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	def := Definition{
		Name:    "get_nodes",
		Handler: func(ctx context.Context, args Args) (interface{}, error) { return nil, nil },
	}
	require.NoError(t, r.Register(def))
	assert.ErrorIs(t, r.Register(def), ErrDuplicateTool)
}
