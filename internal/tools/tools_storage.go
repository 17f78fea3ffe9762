package tools

import (
	"context"
)

func (e *Executor) registerStorageTools() {
	e.registry.MustRegister(Definition{
		Name:        "get_storage",
		Description: "List storage pools across the cluster with capacity and usage.",
		Args: []ArgSpec{
			{Name: "node", Type: TypeString, Description: "Limit the listing to one node"},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			if node := args.String("node"); node != "" {
				return e.api.GetNodeStorage(ctx, node)
			}
			return e.api.GetStorage(ctx)
		},
	})

	e.registry.MustRegister(Definition{
		Name:        "get_storage_content",
		Description: "List the contents of a storage pool: disk images, ISO files, container templates or backups.",
		Args: []ArgSpec{
			argNode,
			{Name: "storage", Type: TypeString, Description: "Storage pool name (e.g. 'local')", Required: true},
			{Name: "content", Type: TypeString, Description: "Filter by content type", Enum: []string{"images", "iso", "vztmpl", "backup", "rootdir", "snippets"}},
		},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			return e.api.GetStorageContent(ctx, args.String("node"), args.String("storage"), args.String("content"))
		},
	})
}
