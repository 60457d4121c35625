package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/ipc"
	"scribe/internal/logging"
	"scribe/internal/modelcache"
)

func newModelCommand(ctx *commandContext) *cobra.Command {
	modelCmd := &cobra.Command{
		Use:   "model",
		Short: "Manage cached WhisperX model snapshots",
	}

	modelCmd.AddCommand(newModelListCommand(ctx))
	modelCmd.AddCommand(newModelFetchCommand(ctx))
	modelCmd.AddCommand(newModelRemoveCommand(ctx))
	modelCmd.AddCommand(newModelPathCommand(ctx))

	return modelCmd
}

func (c *commandContext) modelManager() (*modelcache.Manager, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return modelcache.NewManager(cfg, logging.NewNop()), nil
}

func newModelListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached model snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			var models []ipc.ModelInfo

			client, dialErr := ctx.dialClient()
			if dialErr == nil {
				resp, err := client.ModelStatus()
				client.Close()
				if err != nil {
					return err
				}
				models = resp.Models
			} else {
				manager, err := ctx.modelManager()
				if err != nil {
					return err
				}
				cached, err := manager.List()
				if err != nil {
					return err
				}
				for _, model := range cached {
					models = append(models, ipc.ModelInfo{
						Name:      model.Name,
						Path:      model.Path,
						SizeBytes: model.SizeBytes,
						Complete:  model.Complete,
					})
				}
			}

			if jsonOutput {
				return writeJSON(cmd, ipc.ModelStatusResponse{Models: models})
			}
			if len(models) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No cached models")
				return nil
			}
			rows := make([][]string, 0, len(models))
			for _, model := range models {
				rows = append(rows, []string{
					model.Name,
					formatBytes(model.SizeBytes),
					yesNo(model.Complete),
					model.Path,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Model", "Size", "Complete", "Path"}, rows, 2))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the model list as JSON")
	return cmd
}

func newModelFetchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <model>",
		Short: "Download a model snapshot into the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model := strings.TrimSpace(args[0])
			if model == "" {
				return errors.New("model name is required")
			}
			manager, err := ctx.modelManager()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Fetching %s...\n", model)
			if err := manager.Ensure(cmd.Context(), model); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Model %s cached at %s\n", model, manager.Path(model))
			return nil
		},
	}
}

func newModelRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <model>",
		Short: "Remove a cached model snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model := strings.TrimSpace(args[0])
			manager, err := ctx.modelManager()
			if err != nil {
				return err
			}
			if err := manager.Remove(model); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", model)
			return nil
		},
	}
}

func newModelPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path <model>",
		Short: "Print the cache path for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model := strings.TrimSpace(args[0])
			manager, err := ctx.modelManager()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), manager.Path(model))
			return nil
		},
	}
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
