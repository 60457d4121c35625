package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/api"
	"scribe/internal/ipc"
	"scribe/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var local bool
	var model string
	var language string
	var align bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Queue a transcription job for an S3 key or local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileName := strings.TrimSpace(args[0])
			if fileName == "" {
				return errors.New("file name is required")
			}

			origin := string(queue.OriginS3)
			if local {
				origin = string(queue.OriginLocal)
				abs, err := filepath.Abs(fileName)
				if err != nil {
					return fmt.Errorf("resolve path: %w", err)
				}
				info, err := os.Stat(abs)
				if err != nil {
					if errors.Is(err, os.ErrNotExist) {
						return fmt.Errorf("file does not exist: %s", abs)
					}
					return fmt.Errorf("inspect file: %w", err)
				}
				if info.IsDir() {
					return fmt.Errorf("%s is a directory", abs)
				}
				fileName = abs
			}

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var job ipc.Job
				if client != nil {
					resp, err := client.Submit(ipc.SubmitRequest{
						FileName:  fileName,
						ModelSize: model,
						Language:  language,
						Align:     align,
						Origin:    origin,
					})
					if err != nil {
						return err
					}
					job = resp.Job
				} else {
					queued, err := submitViaStore(cmd, ctx, store, fileName, origin, model, language, align)
					if err != nil {
						return err
					}
					job = queued
				}

				if jsonOutput {
					return writeJSON(cmd, map[string]any{"job": job})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job #%d (%s)\n", job.ID, jobDisplayTitle(job))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Treat the argument as a local file path instead of an S3 key")
	cmd.Flags().StringVar(&model, "model", "", "WhisperX model override for this job")
	cmd.Flags().StringVar(&language, "language", "", "Language hint, empty or - for auto-detect")
	cmd.Flags().BoolVar(&align, "align", false, "Enable word-level alignment")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the queued job as JSON")
	return cmd
}

func submitViaStore(cmd *cobra.Command, ctx *commandContext, store *queue.Store, fileName, origin, model, language string, align bool) (ipc.Job, error) {
	opts := queue.JobOptions{
		Model:    strings.TrimSpace(model),
		Language: strings.TrimSpace(language),
		Align:    align,
	}

	var record *queue.Job
	var err error
	if origin == string(queue.OriginLocal) {
		record, err = store.NewLocalJob(cmd.Context(), fileName, opts)
	} else {
		cfg := ctx.configValue()
		if cfg == nil || !cfg.Storage.Enabled {
			return ipc.Job{}, errors.New("object storage is disabled; use --local or enable the [storage] section")
		}
		record, err = store.NewS3Job(cmd.Context(), fileName, opts)
	}
	if err != nil {
		return ipc.Job{}, err
	}
	return api.FromJob(record), nil
}
