// Package upload hands finished files to an external upload script.
package upload

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Uploader runs "<script> <file> <destination>" in the background. Upload
// never blocks the caller and failures are only logged.
type Uploader struct {
	script  string
	dest    string
	timeout time.Duration
	log     *slog.Logger
	onError func()

	wg sync.WaitGroup
}

// New returns an uploader. An empty script disables uploads.
func New(script, dest string, timeout time.Duration, log *slog.Logger) *Uploader {
	return &Uploader{script: script, dest: dest, timeout: timeout, log: log.With("component", "upload")}
}

// OnError registers a hook called after each failed upload.
func (u *Uploader) OnError(fn func()) { u.onError = fn }

// Enabled reports whether an upload script is configured.
func (u *Uploader) Enabled() bool { return u.script != "" }

// Upload starts uploading path and returns immediately.
func (u *Uploader) Upload(path string) {
	if !u.Enabled() {
		u.log.Debug("upload skipped, no script configured", "file", path)
		return
	}

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()

		ctx := context.Background()
		if u.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, u.timeout)
			defer cancel()
		}

		start := time.Now()
		cmd := exec.CommandContext(ctx, u.script, path, u.dest)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		if err := cmd.Run(); err != nil {
			u.log.Warn("upload failed", "file", path, "dest", u.dest, "error", err, "output", strings.TrimSpace(out.String()))
			if u.onError != nil {
				u.onError()
			}
			return
		}
		u.log.Info("uploaded", "file", path, "dest", u.dest, "took", time.Since(start).Round(time.Millisecond))
	}()
}

// Wait blocks until every started upload has finished or ctx is done.
func (u *Uploader) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
