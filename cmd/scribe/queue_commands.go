package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/api"
	"scribe/internal/ipc"
	"scribe/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the transcription queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueStopCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var stats map[string]int
				if client != nil {
					status, err := client.Status()
					if err != nil {
						return err
					}
					stats = status.QueueStats
				} else {
					raw, err := store.Stats(cmd.Context())
					if err != nil {
						return err
					}
					stats = make(map[string]int, len(raw))
					for status, count := range raw {
						stats[string(status)] = count
					}
				}

				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, 2))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var jobs []api.Job
				if client != nil {
					resp, err := client.QueueList(listStatuses)
					if err != nil {
						return err
					}
					jobs = resp.Jobs
				} else {
					var statuses []queue.Status
					for _, raw := range listStatuses {
						if parsed, ok := queue.ParseStatus(raw); ok {
							statuses = append(statuses, parsed)
						}
					}
					records, err := store.List(cmd.Context(), statuses...)
					if err != nil {
						return err
					}
					jobs = api.FromJobs(records)
				}

				if jsonOutput {
					return writeJSON(cmd, api.QueueListResponse{Jobs: jobs})
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(queueListHeaders, buildQueueListRows(jobs), 1))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the listing as JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <jobID>",
		Short: "Show details for a single job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			id := ids[0]

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var job *api.Job
				if client != nil {
					resp, err := client.QueueDescribe(id)
					if err != nil {
						return err
					}
					job = &resp.Job
				} else {
					record, err := store.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					if record == nil {
						return fmt.Errorf("job %d not found", id)
					}
					converted := api.FromJob(record)
					job = &converted
				}

				if jsonOutput {
					return writeJSON(cmd, api.JobResponse{Job: *job})
				}
				printJobDetails(cmd, *job)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit job details as JSON")
	return cmd
}

func printJobDetails(cmd *cobra.Command, job api.Job) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader(fmt.Sprintf("Job %d", job.ID), colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout, renderStatusLine("Title", statusInfo, jobDisplayTitle(job), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Status", statusInfo, formatStatusLabel(job.Status), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Origin", statusInfo, job.Origin, colorize))
	if job.SourceKey != "" {
		fmt.Fprintln(stdout, renderStatusLine("Source key", statusInfo, job.SourceKey, colorize))
	}
	if job.SourcePath != "" {
		fmt.Fprintln(stdout, renderStatusLine("Source path", statusInfo, job.SourcePath, colorize))
	}
	if job.Model != "" {
		fmt.Fprintln(stdout, renderStatusLine("Model", statusInfo, job.Model, colorize))
	}
	if job.Language != "" {
		fmt.Fprintln(stdout, renderStatusLine("Language", statusInfo, job.Language, colorize))
	}
	fmt.Fprintln(stdout, renderStatusLine("Align", statusInfo, yesNo(job.Align), colorize))
	if job.DetectedLanguage != "" {
		fmt.Fprintln(stdout, renderStatusLine("Detected", statusInfo, job.DetectedLanguage, colorize))
	}
	if job.Progress.Stage != "" {
		detail := fmt.Sprintf("%s %.0f%%", job.Progress.Stage, job.Progress.Percent)
		if job.Progress.Message != "" {
			detail += " (" + job.Progress.Message + ")"
		}
		fmt.Fprintln(stdout, renderStatusLine("Progress", statusInfo, detail, colorize))
	}
	if job.ResultPath != "" {
		fmt.Fprintln(stdout, renderStatusLine("Result", statusOK, job.ResultPath, colorize))
	}
	if job.ErrorMessage != "" {
		fmt.Fprintln(stdout, renderStatusLine("Error", statusError, job.ErrorMessage, colorize))
	}
	if job.NeedsReview {
		fmt.Fprintln(stdout, renderStatusLine("Review", statusWarn, job.ReviewReason, colorize))
	}
	fmt.Fprintln(stdout, renderStatusLine("Created", statusInfo, formatDisplayTime(job.CreatedAt), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Updated", statusInfo, formatDisplayTime(job.UpdatedAt), colorize))
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				var removed int64
				var label string
				var err error

				switch {
				case clearCompleted:
					label = "completed jobs"
					if client != nil {
						var resp *ipc.QueueClearCompletedResponse
						if resp, err = client.QueueClearCompleted(); err == nil {
							removed = resp.Removed
						}
					} else {
						removed, err = store.ClearCompleted(cmd.Context())
					}
				case clearFailed:
					label = "failed jobs"
					if client != nil {
						var resp *ipc.QueueClearFailedResponse
						if resp, err = client.QueueClearFailed(); err == nil {
							removed = resp.Removed
						}
					} else {
						removed, err = store.ClearFailed(cmd.Context())
					}
				default:
					label = "queue jobs"
					if client != nil {
						var resp *ipc.QueueClearResponse
						if resp, err = client.QueueClear(); err == nil {
							removed = resp.Removed
						}
					} else {
						removed, err = store.Clear(cmd.Context())
					}
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed jobs")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed jobs")
	return cmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Return in-flight jobs to their stage boundary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var updated int64
				var err error
				if client != nil {
					var resp *ipc.QueueResetResponse
					if resp, err = client.QueueReset(); err == nil {
						updated = resp.Updated
					}
				} else {
					updated, err = store.ResetStuckProcessing(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d jobs\n", updated)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [jobID...]",
		Short: "Retry failed queue jobs",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				var updated int64
				var retryErr error
				if client != nil {
					var resp *ipc.QueueRetryResponse
					if resp, retryErr = client.QueueRetry(ids); retryErr == nil {
						updated = resp.Updated
					}
				} else {
					updated, retryErr = store.RetryFailed(cmd.Context(), ids...)
				}
				if retryErr != nil {
					return retryErr
				}

				if len(ids) == 0 {
					fmt.Fprintf(out, "Retried %d failed jobs\n", updated)
					return nil
				}
				if updated == int64(len(ids)) {
					fmt.Fprintf(out, "Reset %d jobs for retry\n", updated)
					return nil
				}
				fmt.Fprintf(out, "Reset %d of %d jobs for retry (others were not failed)\n", updated, len(ids))
				return nil
			})
		},
	}
}

func newQueueStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <jobID...>",
		Short: "Stop jobs and park them in review",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var updated int64
				var stopErr error
				if client != nil {
					var resp *ipc.QueueStopResponse
					if resp, stopErr = client.QueueStop(ids); stopErr == nil {
						updated = resp.Updated
					}
				} else {
					updated, stopErr = store.StopJobs(cmd.Context(), ids...)
				}
				if stopErr != nil {
					return stopErr
				}

				out := cmd.OutOrStdout()
				if updated == int64(len(ids)) {
					fmt.Fprintf(out, "Stopped %d jobs\n", updated)
					return nil
				}
				fmt.Fprintf(out, "Stopped %d of %d jobs (others were already terminal)\n", updated, len(ids))
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <jobID...>",
		Short: "Remove jobs from the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				if client != nil {
					resp, err := client.QueueRemove(ids)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Removed %d jobs\n", resp.Removed)
					return nil
				}

				var count int64
				for _, id := range ids {
					removed, err := store.Remove(cmd.Context(), id)
					if err != nil {
						return err
					}
					if removed {
						count++
					} else {
						fmt.Fprintf(out, "Job %d not found\n", id)
					}
				}
				fmt.Fprintf(out, "Removed %d jobs\n", count)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show queue health summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var health queue.HealthSummary
				if client != nil {
					resp, err := client.QueueHealth()
					if err != nil {
						return err
					}
					health = queue.HealthSummary{
						Total:      resp.Total,
						Pending:    resp.Pending,
						Processing: resp.Processing,
						Failed:     resp.Failed,
						Review:     resp.Review,
						Completed:  resp.Completed,
					}
				} else {
					var err error
					health, err = store.Health(cmd.Context())
					if err != nil {
						return err
					}
				}

				fmt.Fprintf(cmd.OutOrStdout(),
					"Total: %d\nPending: %d\nProcessing: %d\nFailed: %d\nReview: %d\nCompleted: %d\n",
					health.Total, health.Pending, health.Processing,
					health.Failed, health.Review, health.Completed)
				return nil
			})
		},
	}
}
