// Package ytdlp implements downloader.MediaResolutionPort on top of the
// yt-dlp command line program.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"mediagrab/downloader"

	"go.uber.org/zap"
)

const (
	DefaultBinary = "yt-dlp"

	progressMarker = "[mediagrab:progress]"
	doneMarker     = "[mediagrab:done]"

	progressTemplate = "download:" + progressMarker + " %(progress.status)s %(progress._percent_str)s"
	doneTemplate     = "after_move:" + doneMarker + " %(filepath)s"

	maxLineSize = 1024 * 1024
	waitDelay   = 5 * time.Second
)

// Options configures the engine
type Options struct {
	// Binary is the yt-dlp executable name or path
	Binary string
	// FlatPlaylist lists playlist entries without extracting each one
	FlatPlaylist bool
	// ExtraArgs are appended to every invocation before the URLs
	ExtraArgs []string
}

// Engine runs yt-dlp as a child process per operation
type Engine struct {
	binary       string
	flatPlaylist bool
	extraArgs    []string
	logger       *zap.Logger
}

var _ downloader.MediaResolutionPort = (*Engine)(nil)

// NewEngine creates an engine; a nil logger discards operational logs
func NewEngine(opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = DefaultBinary
	}
	return &Engine{
		binary:       binary,
		flatPlaylist: opts.FlatPlaylist,
		extraArgs:    append([]string(nil), opts.ExtraArgs...),
		logger:       logger.Named("ytdlp"),
	}
}

// Binary returns the executable the engine invokes
func (e *Engine) Binary() string {
	return e.binary
}

// Resolve runs yt-dlp -J and decodes the single JSON document it prints
func (e *Engine) Resolve(ctx context.Context, link string, log downloader.Logger) (*downloader.RawInfo, error) {
	log = e.orDefault(log)

	var stdout bytes.Buffer
	err := e.run(ctx, e.resolveArgs(link), &stdout, func(line streamLine) error {
		routeLog(log, line)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var info downloader.RawInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp metadata: %w", err)
	}
	return &info, nil
}

// Download transfers every URL in one yt-dlp run. Progress lines are turned
// into hook calls; an error from the hook stops the process and is returned.
func (e *Engine) Download(ctx context.Context, req downloader.PortDownload, hook downloader.ProgressHook, log downloader.Logger) error {
	log = e.orDefault(log)
	return e.run(ctx, e.downloadArgs(req), nil, func(line streamLine) error {
		if update, ok := parseProgressLine(line.text); ok {
			if hook == nil {
				return nil
			}
			return hook(update)
		}
		if strings.HasPrefix(line.text, progressMarker) {
			return nil
		}
		routeLog(log, line)
		return nil
	})
}

func (e *Engine) orDefault(log downloader.Logger) downloader.Logger {
	if log == nil {
		return downloader.NewZapLogger(e.logger)
	}
	return log
}

func (e *Engine) resolveArgs(link string) []string {
	args := []string{"-J"}
	if e.flatPlaylist {
		args = append(args, "--flat-playlist")
	}
	args = append(args, e.extraArgs...)
	return append(args, "--", link)
}

func (e *Engine) downloadArgs(req downloader.PortDownload) []string {
	args := []string{
		"--newline",
		"--progress",
		"--no-simulate",
		"--progress-template", progressTemplate,
		"--print", doneTemplate,
		"-o", outputTemplate(req.OutputTemplate),
	}
	if req.FormatSpec != "" {
		args = append(args, "-f", req.FormatSpec)
	}
	args = append(args, postprocessorArgs(req.Postprocessors)...)
	if req.MergeFormat != "" {
		args = append(args, "--merge-output-format", req.MergeFormat)
	}
	args = append(args, e.extraArgs...)
	args = append(args, "--")
	return append(args, req.URLs...)
}

// outputTemplate converts {field} placeholders to yt-dlp's %(field)s syntax
func outputTemplate(tmpl string) string {
	var b strings.Builder
	for {
		start := strings.IndexByte(tmpl, '{')
		if start < 0 {
			break
		}
		end := strings.IndexByte(tmpl[start:], '}')
		if end < 0 {
			break
		}
		b.WriteString(strings.ReplaceAll(tmpl[:start], "%", "%%"))
		b.WriteString("%(" + tmpl[start+1:start+end] + ")s")
		tmpl = tmpl[start+end+1:]
	}
	b.WriteString(strings.ReplaceAll(tmpl, "%", "%%"))
	return b.String()
}

func postprocessorArgs(specs []downloader.PostprocessorSpec) []string {
	var args []string
	for _, pp := range specs {
		switch pp.Kind {
		case downloader.PostprocessorExtractAudio:
			args = append(args, "-x")
			if codec := pp.Params["codec"]; codec != "" {
				args = append(args, "--audio-format", codec)
			}
			if quality := pp.Params["quality"]; quality != "" {
				args = append(args, "--audio-quality", quality+"K")
			}
		case downloader.PostprocessorConvertContainer:
			if format := pp.Params["format"]; format != "" {
				args = append(args, "--recode-video", format)
			}
		case downloader.PostprocessorAttachMetadata:
			args = append(args, "--embed-metadata")
		case downloader.PostprocessorEmbedThumbnail:
			args = append(args, "--embed-thumbnail")
		}
	}
	return args
}

// parseProgressLine recognizes the lines produced by the progress and
// after_move templates. Template lines for other statuses are not updates.
func parseProgressLine(line string) (downloader.ProgressUpdate, bool) {
	if strings.HasPrefix(line, doneMarker) {
		return downloader.ProgressUpdate{Status: downloader.StatusFinished}, true
	}
	rest, ok := strings.CutPrefix(line, progressMarker)
	if !ok {
		return downloader.ProgressUpdate{}, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 || fields[0] != string(downloader.StatusDownloading) {
		return downloader.ProgressUpdate{}, false
	}
	update := downloader.ProgressUpdate{Status: downloader.StatusDownloading}
	if len(fields) > 1 {
		update.Percent = fields[1]
	}
	return update, true
}

type streamLine struct {
	text   string
	stderr bool
}

// routeLog forwards one engine output line to the job logger by prefix
func routeLog(log downloader.Logger, line streamLine) {
	text := strings.TrimSpace(line.text)
	if text == "" {
		return
	}
	switch {
	case strings.HasPrefix(text, "ERROR:"):
		log.Error(strings.TrimSpace(strings.TrimPrefix(text, "ERROR:")))
	case strings.HasPrefix(text, "WARNING:"):
		log.Warning(strings.TrimSpace(strings.TrimPrefix(text, "WARNING:")))
	case line.stderr:
		log.Debug(text)
	default:
		log.Info(text)
	}
}

// run starts the binary and feeds every output line to handle from a single
// goroutine. When stdout is non-nil it receives the raw standard output
// instead of the line handler.
func (e *Engine) run(ctx context.Context, args []string, stdout io.Writer, handle func(streamLine) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan streamLine, 64)
	errWriter := &lineWriter{out: lines, stderr: true}
	var outWriter *lineWriter

	cmd := exec.CommandContext(runCtx, e.binary, args...)
	// postprocessor children may keep the output open after yt-dlp is killed
	cmd.WaitDelay = waitDelay
	cmd.Stderr = errWriter
	if stdout != nil {
		cmd.Stdout = stdout
	} else {
		outWriter = &lineWriter{out: lines}
		cmd.Stdout = outWriter
	}

	started := time.Now()
	e.logger.Debug("starting yt-dlp", zap.String("binary", e.binary), zap.Strings("args", args))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	waitDone := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		if outWriter != nil {
			outWriter.flush()
		}
		errWriter.flush()
		close(lines)
		waitDone <- err
	}()

	var handleErr error
	var lastError string
	for line := range lines {
		if strings.HasPrefix(line.text, "ERROR:") {
			lastError = strings.TrimSpace(strings.TrimPrefix(line.text, "ERROR:"))
		}
		if handleErr != nil {
			continue
		}
		if err := handle(line); err != nil {
			handleErr = err
			e.logger.Info("stopping yt-dlp", zap.Error(err))
			cancel()
		}
	}
	waitErr := <-waitDone

	e.logger.Debug("yt-dlp exited",
		zap.Duration("elapsed", time.Since(started)),
		zap.Error(waitErr))

	switch {
	case handleErr != nil:
		return handleErr
	case ctx.Err() != nil:
		return ctx.Err()
	case waitErr != nil:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) && lastError != "" {
			return fmt.Errorf("yt-dlp failed (exit code: %w): %s", waitErr, lastError)
		}
		return fmt.Errorf("yt-dlp failed: %w", waitErr)
	}
	return nil
}

// lineWriter splits a process output stream into lines. exec drives each
// writer from one goroutine; flush runs after Wait returns.
type lineWriter struct {
	out    chan<- streamLine
	stderr bool
	buf    []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) > maxLineSize {
		w.emit(w.buf)
		w.buf = nil
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) emit(b []byte) {
	w.out <- streamLine{text: strings.TrimRight(string(b), "\r"), stderr: w.stderr}
}
