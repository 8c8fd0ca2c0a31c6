package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"mediagrab/downloader"
)

const (
	exitFailure   = 1
	exitCancelled = 130
)

// userMessage turns a command error into a short message for the terminal
func userMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || downloader.IsJobError(err, downloader.ErrorCancelled) {
		return "Cancelled."
	}

	var je *downloader.JobError
	if !errors.As(err, &je) {
		return err.Error()
	}

	switch je.Type {
	case downloader.ErrorValidation:
		if errors.Is(je, downloader.ErrBusy) {
			return "Another job is already running. Wait for it to finish and try again."
		}
		return "Invalid request: " + je.Message
	case downloader.ErrorResolution:
		return describeEngineFailure("Could not resolve the link", je)
	case downloader.ErrorDownload:
		return describeEngineFailure("Download failed", je)
	default:
		return fmt.Sprintf("Something went wrong: %v", je)
	}
}

func describeEngineFailure(prefix string, je *downloader.JobError) string {
	if errors.Is(je, exec.ErrNotFound) {
		return prefix + ": yt-dlp was not found. Install it or set YTDLP_PATH."
	}
	if je.Cause == nil {
		return prefix + ": " + je.Message
	}

	cause := je.Cause.Error()
	errorMsg := strings.ToLower(cause)

	var hint string
	switch {
	case strings.Contains(errorMsg, "unsupported url"):
		hint = "the link is not supported by yt-dlp"
	case strings.Contains(errorMsg, "ffmpeg") || strings.Contains(errorMsg, "ffprobe"):
		hint = "postprocessing needs ffmpeg; install it and try again"
	case strings.Contains(errorMsg, "http error 403") || strings.Contains(errorMsg, "forbidden"):
		hint = "the site refused access; the media may be private or region locked"
	case strings.Contains(errorMsg, "http error 404") || strings.Contains(errorMsg, "not found"):
		hint = "the media was not found; check the link"
	case strings.Contains(errorMsg, "timed out") || strings.Contains(errorMsg, "timeout"):
		hint = "the site took too long to respond; try again"
	case strings.Contains(errorMsg, "network") || strings.Contains(errorMsg, "connection"):
		hint = "there was a network problem; check your connection and try again"
	}

	if hint == "" {
		return fmt.Sprintf("%s: %s", prefix, cause)
	}
	return fmt.Sprintf("%s: %s\n  %s", prefix, hint, cause)
}

func exitCode(err error) int {
	if errors.Is(err, context.Canceled) || downloader.IsJobError(err, downloader.ErrorCancelled) {
		return exitCancelled
	}
	return exitFailure
}
