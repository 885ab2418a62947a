// Package upload drives chunked, resumable uploads against the backend's tus
// endpoint and keeps the registry of uploads in flight.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/openmined/storagebrowser/internal/metrics"
	"github.com/openmined/storagebrowser/internal/scopepath"
	"github.com/openmined/storagebrowser/internal/transport"
)

const discardTimeout = 10 * time.Second

// Coordinator starts resumable uploads and owns their registry.
type Coordinator struct {
	transport transport.Transport
	resolver  scopepath.Resolver
	registry  *Registry
	settings  Settings
}

func NewCoordinator(t transport.Transport, resolver scopepath.Resolver, settings Settings) *Coordinator {
	if settings.ChunkSize <= 0 {
		settings.ChunkSize = DefaultChunkSize
	}
	return &Coordinator{
		transport: t,
		resolver:  resolver,
		registry:  NewRegistry(),
		settings:  settings,
	}
}

func (c *Coordinator) Registry() *Registry {
	return c.registry
}

func (c *Coordinator) Settings() Settings {
	return c.settings
}

// Active returns the number of uploads in flight.
func (c *Coordinator) Active() int {
	return c.registry.Active()
}

// Start begins uploading content to the UI path uiPath. Empty content is a no-op
// and returns a nil upload. A live upload to the same backend path is aborted and
// replaced. Cancelling ctx aborts the upload.
func (c *Coordinator) Start(ctx context.Context, uiPath string, content Content, overwrite bool) (*Upload, error) {
	if content == nil || content.Size() <= 0 {
		return nil, nil
	}

	target := c.resolver.Resolve(uiPath)
	if target.Path == "/" {
		return nil, fmt.Errorf("upload %s: target is the root directory", uiPath)
	}

	u := newUpload(uuid.NewString(), target, content.Size(), overwrite, c.settings)

	runCtx, cancel := context.WithCancelCause(ctx)
	u.cancel = cancel

	if prev := c.registry.swap(u); prev != nil {
		slog.Info("upload superseded", "key", prev.key, "id", prev.id, "replacement", u.id)
		prev.superseded.Store(true)
		prev.abort()
	}

	slog.Debug("upload start", "id", u.id, "key", u.key, "size", u.size, "overwrite", overwrite, "chunkSize", u.chunkSize)
	metrics.RecordUploadStarted()

	go c.run(runCtx, u, content)
	return u, nil
}

// Abort cancels the upload registered under key.
func (c *Coordinator) Abort(key string) bool {
	u, ok := c.registry.Get(key)
	if !ok || !c.registry.remove(u) {
		return false
	}
	u.abort()
	return true
}

// AbortAll cancels every upload in flight and empties the registry. Each upload
// finishes with ErrAborted. Calling it with nothing in flight does nothing.
func (c *Coordinator) AbortAll() {
	uploads := c.registry.drain()
	for _, u := range uploads {
		u.abort()
	}
	if len(uploads) > 0 {
		slog.Info("upload abort all", "count", len(uploads))
	}
}

func (c *Coordinator) run(ctx context.Context, u *Upload, content Content) {
	defer u.cancel(nil)

	err := c.transfer(ctx, u, content)
	c.complete(ctx, u, err)

	// a superseded upload shares its backend path with the replacement, so its
	// partial file is left for the replacement to overwrite
	if u.State() == StateAborted && u.created.Load() && !u.superseded.Load() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
		defer cancel()
		if err := u.discard(dctx, c.transport); err != nil {
			slog.Debug("upload discard failed", "key", u.key, "error", err)
		}
	}
}

func (c *Coordinator) complete(ctx context.Context, u *Upload, err error) {
	c.registry.remove(u)

	state := StateSucceeded
	switch {
	case err == nil:
	case errors.Is(context.Cause(ctx), ErrAborted) || ctx.Err() != nil:
		state, err = StateAborted, ErrAborted
	default:
		state = StateFailed
		err = fmt.Errorf("upload %s: %w", u.key, err)
	}

	if !u.finish(state, err) {
		return
	}

	metrics.RecordUploadFinished(string(state))
	if state == StateFailed {
		slog.Error("upload failed", "id", u.id, "key", u.key, "uploaded", u.Uploaded(), "error", err)
	} else {
		slog.Info("upload finished", "id", u.id, "key", u.key, "state", state, "size", u.size, "took", time.Since(u.startedAt))
	}
}

func (c *Coordinator) transfer(ctx context.Context, u *Upload, content Content) error {
	u.setState(StateUploading)

	attempt := 0
	// backoff waits for the next retry slot, or returns err when the failure is
	// final.
	backoff := func(err error) error {
		if transport.IsConflict(err) || ctx.Err() != nil {
			return err
		}
		if attempt >= len(u.retryDelays) {
			return err
		}

		delay := u.retryDelays[attempt]
		attempt++
		metrics.RecordUploadRetry()
		slog.Warn("upload retry", "key", u.key, "attempt", attempt, "delay", delay, "error", err)

		if serr := sleep(ctx, delay); serr != nil {
			return err
		}
		return nil
	}

	for {
		err := u.create(ctx, c.transport)
		if err == nil {
			break
		}
		if err := backoff(err); err != nil {
			return err
		}
	}

	buf := make([]byte, min(u.chunkSize, u.size))
	var offset int64
	resync := false

	for offset < u.size {
		if resync {
			remote, err := u.head(ctx, c.transport)
			if err != nil {
				if err := backoff(err); err != nil {
					return err
				}
				continue
			}
			if remote > u.size {
				return fmt.Errorf("backend holds %d bytes of a %d byte upload", remote, u.size)
			}
			offset = remote
			resync = false
			u.publish(offset)
			continue
		}

		chunk := buf[:min(u.chunkSize, u.size-offset)]
		if n, err := content.ReadAt(chunk, offset); n < len(chunk) {
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return fmt.Errorf("read chunk at %d: %w", offset, err)
		}

		next, err := u.patch(ctx, c.transport, offset, chunk)
		if err != nil {
			if err := backoff(err); err != nil {
				return err
			}
			resync = true
			continue
		}

		if next <= offset || next > u.size {
			return fmt.Errorf("backend acknowledged offset %d after sending %d bytes at %d", next, len(chunk), offset)
		}

		metrics.RecordUploadBytes(next - offset)
		offset = next
		u.publish(offset)
	}

	return nil
}
