package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			source := cfg.Source
			if source == "" {
				source = "(defaults and environment)"
			}
			historyDB := cfg.HistoryDB
			if !cfg.HistoryEnabled() {
				historyDB = "(disabled)"
			}

			rows := [][]string{
				{"Config file", source},
				{"Download dir", cfg.DownloadDir},
				{"Platform", cfg.Platform},
				{"Media type", cfg.MediaType},
				{"yt-dlp", cfg.YtdlpPath},
				{"yt-dlp args", strings.Join(cfg.YtdlpArgs, " ")},
				{"Flat playlist", yesNo(cfg.FlatPlaylist)},
				{"History DB", historyDB},
				{"Progress interval", cfg.ProgressInterval.String()},
				{"Log level", cfg.LogLevel},
				{"Log format", cfg.LogFormat},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, rows, nil))
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
