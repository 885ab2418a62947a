package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/openmined/storagebrowser/internal/scopepath"
)

// Poster is the simple, non-resumable upload path.
type Poster interface {
	Post(ctx context.Context, sp scopepath.ScopedPath, body io.Reader, overwrite bool) error
	MakeDir(ctx context.Context, sp scopepath.ScopedPath) error
}

// Dispatcher routes an upload to the coordinator or to the simple path.
type Dispatcher struct {
	coordinator *Coordinator
	poster      Poster
}

func NewDispatcher(coordinator *Coordinator, poster Poster) *Dispatcher {
	return &Dispatcher{coordinator: coordinator, poster: poster}
}

func (d *Dispatcher) Coordinator() *Coordinator {
	return d.coordinator
}

// Upload sends content to uiPath. A uiPath ending in "/" creates a directory.
// Resumable uploads return the running *Upload; simple uploads are finished when
// Upload returns and yield a nil *Upload.
func (d *Dispatcher) Upload(ctx context.Context, uiPath string, content Content, overwrite bool) (*Upload, error) {
	settings := d.coordinator.Settings()
	target := d.coordinator.resolver.Resolve(uiPath)

	if strings.HasSuffix(uiPath, "/") {
		if err := d.poster.MakeDir(ctx, target); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if UseResumable(uiPath, content, settings) {
		return d.coordinator.Start(ctx, uiPath, content, overwrite)
	}

	var body io.Reader = strings.NewReader("")
	if content != nil {
		body = io.NewSectionReader(content, 0, content.Size())
	}

	slog.Debug("upload simple", "key", target.Key(), "overwrite", overwrite)
	if err := d.poster.Post(ctx, target, body, overwrite); err != nil {
		return nil, fmt.Errorf("upload %s: %w", target.Key(), err)
	}
	return nil, nil
}
