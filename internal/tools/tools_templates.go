package tools

import (
	"context"
	"net/url"
	"path"
	"strconv"
)

// isTemplateConfig reports whether a guest config describes a template.
// Proxmox encodes the flag as numeric 1, which JSON decodes as float64.
func isTemplateConfig(cfg map[string]interface{}) bool {
	t, ok := cfg["template"].(float64)
	return ok && t == 1
}

func (e *Executor) registerTemplateTools() {
	e.registry.MustRegister(Definition{
		Name:        "get_templates",
		Description: "List all VM templates across the cluster.",
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			vms, err := e.api.GetVMs(ctx)
			if err != nil {
				return nil, err
			}
			templates := vms[:0:0]
			for _, vm := range vms {
				if vm.Template == 1 {
					templates = append(templates, vm)
				}
			}
			return templates, nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "get_template_details",
		Description: "Get the full configuration of a VM template.",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			node, vmid := args.String("node"), args.String("vmid")
			cfg, err := e.api.GetVMConfig(ctx, node, vmid)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"vmid":   vmid,
				"node":   node,
				"config": cfg,
			}, nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "create_template",
		Description: "Convert a stopped virtual machine into a template. Templates cannot be started, only cloned.",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			vmid := args.String("vmid")
			if err := e.api.ConvertToTemplate(ctx, args.String("node"), vmid); err != nil {
				return nil, err
			}
			return done("VM %s converted to template", vmid), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "update_template",
		Description: "Update properties of a VM template: name, description, cores or memory.",
		Args: []ArgSpec{
			argNode, argVMID,
			{Name: "name", Type: TypeString, Description: "New name for the template"},
			{Name: "description", Type: TypeString, Description: "New description for the template"},
			{Name: "cores", Type: TypeInt, Description: "Number of CPU cores"},
			{Name: "memory", Type: TypeInt, Description: "Memory in MB"},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			node, vmid := args.String("node"), args.String("vmid")
			cfg, err := e.api.GetVMConfig(ctx, node, vmid)
			if err != nil {
				return nil, err
			}
			if !isTemplateConfig(cfg) {
				return nil, errf(KindValidation, "VM %s is not a template", vmid)
			}

			changes := map[string]string{}
			if name := args.String("name"); name != "" {
				changes["name"] = name
			}
			if desc := args.String("description"); desc != "" {
				changes["description"] = desc
			}
			if cores := args.Int("cores"); cores > 0 {
				changes["cores"] = strconv.Itoa(cores)
			}
			if memory := args.Int("memory"); memory > 0 {
				changes["memory"] = strconv.Itoa(memory)
			}
			if len(changes) == 0 {
				return nil, errf(KindValidation, "no template properties to update")
			}

			if err := e.api.UpdateVMConfig(ctx, node, vmid, changes); err != nil {
				return nil, err
			}
			return done("template %s updated", vmid), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "import_template",
		Description: "Download a container OS template from a URL onto a storage pool. Returns a task ID for the download.",
		Args: []ArgSpec{
			argNode,
			{Name: "storage", Type: TypeString, Description: "Storage pool to download onto", Required: true},
			{Name: "url", Type: TypeString, Description: "URL to download the template from", Required: true},
			{Name: "filename", Type: TypeString, Description: "Volume filename; derived from the URL when omitted"},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			fileURL := args.String("url")
			filename := args.String("filename")
			if filename == "" {
				parsed, err := url.Parse(fileURL)
				if err != nil || path.Base(parsed.Path) == "." || path.Base(parsed.Path) == "/" {
					return nil, errf(KindValidation, "cannot derive a filename from url %q; pass filename explicitly", fileURL)
				}
				filename = path.Base(parsed.Path)
			}

			upid, err := e.api.DownloadToStorage(ctx, args.String("node"), args.String("storage"), "vztmpl", fileURL, filename)
			if err != nil {
				return nil, err
			}
			return taskStarted(upid, "template download of %s started", filename), nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "clone_template",
		Description: "Create a new virtual machine from a template. The new guest ID is allocated automatically when not given. Returns a task ID.",
		Args: []ArgSpec{
			argNode,
			{Name: "vmid", Type: TypeString, Description: "Guest ID of the template to clone", Required: true},
			{Name: "new_vmid", Type: TypeInt, Description: "Guest ID for the new VM; allocated automatically when omitted"},
			{Name: "name", Type: TypeString, Description: "Name for the new VM"},
			{Name: "target_node", Type: TypeString, Description: "Node to place the new VM on"},
			{Name: "storage", Type: TypeString, Description: "Target storage for the new VM's disks"},
			{Name: "full_clone", Type: TypeBool, Description: "Make a full copy instead of a linked clone", Default: false},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			upid, newID, err := e.cloneGuest(ctx, args, e.api.CloneVM)
			if err != nil {
				return nil, err
			}
			res := taskStarted(upid, "creating VM %d from template %s", newID, args.String("vmid"))
			return struct {
				taskResult
				NewVMID int `json:"new_vmid"`
			}{res, newID}, nil
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "delete_template",
		Description: "Permanently delete a VM template and its disks.",
		Args:        []ArgSpec{argNode, argVMID},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			vmid := args.String("vmid")
			upid, err := e.api.DeleteVM(ctx, args.String("node"), vmid)
			if err != nil {
				return nil, err
			}
			return taskStarted(upid, "deletion started for template %s", vmid), nil
		},
	})
}
