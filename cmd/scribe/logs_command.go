package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/ipc"
	"scribe/internal/logs"
)

const logFollowInterval = time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log output",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			tail := func(offset int64) (ipc.LogTailResponse, error) {
				client, dialErr := ctx.dialClient()
				if dialErr == nil {
					defer client.Close()
					resp, err := client.LogTail(ipc.LogTailRequest{Offset: offset, Limit: lines})
					if err != nil {
						return ipc.LogTailResponse{}, err
					}
					return *resp, nil
				}
				result, err := logs.Tail(ctx.logPath(), logs.TailOptions{Offset: offset, Limit: lines})
				if err != nil {
					return ipc.LogTailResponse{}, err
				}
				return ipc.LogTailResponse{Lines: result.Lines, Offset: result.Offset}, nil
			}

			resp, err := tail(-1)
			if err != nil {
				return err
			}
			for _, line := range resp.Lines {
				fmt.Fprintln(stdout, line)
			}
			if !follow {
				return nil
			}

			offset := resp.Offset
			ticker := time.NewTicker(logFollowInterval)
			defer ticker.Stop()
			for {
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-ticker.C:
					resp, err := tail(offset)
					if err != nil {
						return err
					}
					for _, line := range resp.Lines {
						fmt.Fprintln(stdout, line)
					}
					offset = resp.Offset
				}
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show from the end of the log")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Poll the log for new lines")
	return cmd
}
