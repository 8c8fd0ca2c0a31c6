package main

import (
	"context"
	"fmt"
	"strconv"

	"mediagrab/downloader"

	"github.com/spf13/cobra"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "resolve <link>",
		Short: "List the items behind a link without downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.openApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := resolveLink(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, entries)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderEntries(entries))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// resolveLink runs a resolution job to completion
func resolveLink(ctx context.Context, a *app, link string) (downloader.MediaCollection, error) {
	job, err := a.resolver.Resolve(ctx, link)
	if err != nil {
		return nil, err
	}
	<-job.Done()
	res := job.Result()
	if res.State != downloader.JobSucceeded {
		return nil, res.Err
	}
	return res.Entries, nil
}

func renderEntries(entries downloader.MediaCollection) string {
	if len(entries) == 0 {
		return "No items found."
	}
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, []string{strconv.Itoa(i + 1), e.Title, e.CanonicalURL})
	}
	return renderTable([]string{"#", "Title", "URL"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft})
}
