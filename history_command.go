package main

import (
	"fmt"
	"strconv"
	"time"

	"mediagrab/history"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently finished jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.HistoryEnabled() {
				return fmt.Errorf("job history is disabled; set MEDIAGRAB_HISTORY_DB or history_db to enable it")
			}

			store, err := history.Open(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, records)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderHistory(records))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderHistory(records []history.JobRecord) string {
	if len(records) == 0 {
		return "No jobs recorded yet."
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.FinishedAt.Local().Format(time.DateTime),
			r.Kind,
			r.Outcome,
			itemsColumn(r),
			r.Duration().Round(time.Second).String(),
			r.Subject,
		})
	}
	return renderTable(
		[]string{"Finished", "Kind", "Outcome", "Items", "Took", "Subject"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func itemsColumn(r history.JobRecord) string {
	if r.TotalItems > 0 {
		return fmt.Sprintf("%d/%d", r.CompletedItems, r.TotalItems)
	}
	return strconv.Itoa(r.Entries)
}
