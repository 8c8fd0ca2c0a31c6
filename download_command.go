package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"mediagrab/config"
	"mediagrab/downloader"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type downloadOptions struct {
	selection  string
	platform   string
	mediaType  string
	dest       string
	noProgress bool
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var opts downloadOptions

	cmd := &cobra.Command{
		Use:   "download <link>",
		Short: "Resolve a link and download the selected items",
		Long: `Resolve a link and download its items as one batch.

Items are numbered as printed by "mediagrab resolve". Use --select to pick a
subset, for example --select 1,3-5. Ctrl-C cancels the batch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req, err := opts.request(cfg)
			if err != nil {
				return err
			}

			var bar io.Writer
			if !opts.noProgress && isTerminal(cmd.ErrOrStderr()) {
				bar = cmd.ErrOrStderr()
			}

			a, err := ctx.openApp(bar != nil)
			if err != nil {
				return err
			}
			defer a.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			entries, err := resolveLink(runCtx, a, args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("nothing to download: %s has no items", args[0])
			}

			sel := downloader.NewSelection(entries)
			if opts.selection != "" {
				indexes, err := parseSelection(opts.selection, len(entries))
				if err != nil {
					return fmt.Errorf("invalid --select: %w", err)
				}
				if err := sel.Only(indexes...); err != nil {
					return err
				}
			}
			req.URLs = sel.SelectedURLs()

			res, err := runDownload(runCtx, a, req, batchTitle(sel), bar)
			if err != nil {
				return err
			}
			if res.State != downloader.JobSucceeded {
				return res.Err
			}
			if bar == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %d item(s) to %s\n", len(req.URLs), req.DestinationFolder)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.selection, "select", "s", "", "Items to download, e.g. 1,3-5 (default all)")
	flags.StringVar(&opts.platform, "platform", "", "Source platform: default or bandcamp")
	flags.StringVar(&opts.mediaType, "media-type", "", "Output type: video or audio")
	flags.StringVarP(&opts.dest, "dest", "d", "", "Destination folder")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

// request builds the download request from flags over configured defaults
func (o downloadOptions) request(cfg *config.Config) (downloader.DownloadRequest, error) {
	req := downloader.DownloadRequest{
		DestinationFolder: cfg.DownloadDir,
		Platform:          cfg.DownloadPlatform(),
		MediaType:         cfg.DownloadMediaType(),
	}
	if o.platform != "" {
		p, err := downloader.ParsePlatform(o.platform)
		if err != nil {
			return req, err
		}
		req.Platform = p
	}
	if o.mediaType != "" {
		m, err := downloader.ParseMediaType(o.mediaType)
		if err != nil {
			return req, err
		}
		req.MediaType = m
	}
	if o.dest != "" {
		dest, err := config.ExpandPath(o.dest)
		if err != nil {
			return req, err
		}
		req.DestinationFolder = dest
	}
	return req, nil
}

// runDownload submits req and waits for its terminal state, rendering
// progress to bar when it is non-nil
func runDownload(ctx context.Context, a *app, req downloader.DownloadRequest, title string, bar io.Writer) (downloader.JobResult, error) {
	var sub *downloader.Subscription
	if bar != nil {
		sub = a.hub.Subscribe()
		defer sub.Close()
	}

	job, err := a.orchestrator.Submit(ctx, req)
	if err != nil {
		return downloader.JobResult{}, err
	}

	if sub != nil {
		// the job ends on cancellation, so follow it past ctx
		followCtx := context.WithoutCancel(ctx)
		reporter := downloader.NewTerminalProgressReporter(bar, true)
		tracker := downloader.NewProgressTrackerWithInterval(reporter, a.cfg.ProgressInterval)
		if err := reporter.StartTracking(followCtx, job.ID, title); err != nil {
			a.logger.Warn("progress display unavailable", zap.Error(err))
		}
		if err := tracker.Start(followCtx); err != nil {
			a.logger.Warn("progress display unavailable", zap.Error(err))
		}
		if _, err := tracker.Follow(followCtx, sub, job.ID); err != nil {
			a.logger.Warn("progress display ended early", zap.Error(err))
		}
		tracker.Stop()
	}

	<-job.Done()
	return job.Result(), nil
}

func batchTitle(sel *downloader.DownloadSelection) string {
	var titles []string
	for _, e := range sel.Entries {
		if e.Included {
			titles = append(titles, e.Entry.Title)
		}
	}
	if len(titles) == 1 {
		return titles[0]
	}
	return fmt.Sprintf("%d item(s)", len(titles))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
