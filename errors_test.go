package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"testing"

	"mediagrab/downloader"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), "boom"},
		{"context cancelled", fmt.Errorf("wait: %w", context.Canceled), "Cancelled."},
		{"job cancelled", downloader.NewJobErrorWithCause(downloader.ErrorCancelled, "download cancelled", downloader.ErrCancelled), "Cancelled."},
		{"busy", downloader.NewJobErrorWithCause(downloader.ErrorValidation, "a download job is already running", downloader.ErrBusy), "Another job is already running"},
		{"validation", downloader.NewJobError(downloader.ErrorValidation, "no items selected"), "Invalid request: no items selected"},
		{"missing binary", downloader.NewJobErrorWithCause(downloader.ErrorResolution, "failed to resolve link", &exec.Error{Name: "yt-dlp", Err: exec.ErrNotFound}), "yt-dlp was not found"},
		{"timeout", downloader.NewJobErrorWithCause(downloader.ErrorDownload, "batch download failed", errors.New("ERROR: Read timed out")), "took too long"},
		{"ffmpeg", downloader.NewJobErrorWithCause(downloader.ErrorDownload, "batch download failed", errors.New("ERROR: ffprobe and ffmpeg not found")), "needs ffmpeg"},
		{"unknown cause", downloader.NewJobErrorWithCause(downloader.ErrorDownload, "batch download failed", errors.New("exit status 2")), "Download failed: exit status 2"},
		{"no cause", downloader.NewJobError(downloader.ErrorResolution, "engine returned no metadata"), "Could not resolve the link: engine returned no metadata"},
		{"internal", downloader.NewJobError(downloader.ErrorInternal, "panic"), "Something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := userMessage(tt.err)
			if tt.want == "" {
				if got != "" {
					t.Errorf("userMessage() = %q, want empty", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("userMessage() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(errors.New("boom")); got != exitFailure {
		t.Errorf("exitCode(plain) = %d", got)
	}
	if got := exitCode(downloader.NewJobError(downloader.ErrorCancelled, "download cancelled")); got != exitCancelled {
		t.Errorf("exitCode(cancelled) = %d", got)
	}
	if got := exitCode(context.Canceled); got != exitCancelled {
		t.Errorf("exitCode(context.Canceled) = %d", got)
	}
}
