// Package operation runs move and copy requests end to end: destination listing,
// conflict check, the backend calls and the navigation hint for the caller.
package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/openmined/storagebrowser/internal/conflict"
	"github.com/openmined/storagebrowser/internal/metrics"
	"github.com/openmined/storagebrowser/internal/resource"
	"github.com/openmined/storagebrowser/internal/scopepath"
	"github.com/openmined/storagebrowser/internal/transport"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 4

	conflictError   = "conflict"
	conflictMessage = "Conflict detected: File already exists at destination"
)

var (
	ErrNoItems    = errors.New("no items to transfer")
	ErrCrossScope = errors.New("moving or copying across scopes is not supported")
)

// Mode is the kind of transfer.
type Mode string

const (
	ModeMove Mode = "move"
	ModeCopy Mode = "copy"
)

func (m Mode) action() resource.Action {
	if m == ModeCopy {
		return resource.ActionCopy
	}
	return resource.ActionMove
}

// Item is a source entry. URL is its UI path, Name the name it gets at the
// destination. An empty Name keeps the source name.
type Item struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	IsDir bool   `json:"isDir,omitempty"`
}

// Options control a single Execute call.
type Options struct {
	Overwrite bool `json:"overwrite"`
	Rename    bool `json:"rename"`

	// CurrentPath is the UI directory the caller is showing. Copying into it
	// asks for a reload instead of a redirect.
	CurrentPath string `json:"currentPath,omitempty"`
}

// Result is the outcome of Execute. Failures are reported here, never returned
// as errors.
type Result struct {
	Success       bool             `json:"success"`
	Message       string           `json:"message,omitempty"`
	Error         string           `json:"error,omitempty"`
	Kind          transport.Kind   `json:"kind"`
	Conflict      *conflict.Result `json:"conflict,omitempty"`
	AffectedItems []string         `json:"affectedItems,omitempty"`
	RedirectPath  string           `json:"redirectPath,omitempty"`
	Reload        bool             `json:"reload,omitempty"`
	Preselect     string           `json:"preselect,omitempty"`
}

// Backend is the part of the storage API used by the executor.
type Backend interface {
	List(ctx context.Context, sp scopepath.ScopedPath) ([]resource.Entry, error)
	MoveCopy(ctx context.Context, action resource.Action, from, to scopepath.ScopedPath, overwrite, rename bool) error
}

// Executor runs move and copy operations.
type Executor struct {
	backend     Backend
	resolver    scopepath.Resolver
	concurrency int
}

type ExecutorOption func(*Executor)

// WithConcurrency bounds the number of backend calls issued at once.
func WithConcurrency(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func NewExecutor(backend Backend, resolver scopepath.Resolver, opts ...ExecutorOption) *Executor {
	e := &Executor{
		backend:     backend,
		resolver:    resolver,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Move(ctx context.Context, items []Item, destPath string, opts Options) *Result {
	return e.Execute(ctx, ModeMove, items, destPath, opts)
}

func (e *Executor) Copy(ctx context.Context, items []Item, destPath string, opts Options) *Result {
	return e.Execute(ctx, ModeCopy, items, destPath, opts)
}

// Execute moves or copies items into the UI directory destPath. The destination
// is listed and checked for name collisions before anything is changed. A
// collision without Overwrite or Rename stops the operation with a conflict
// result.
func (e *Executor) Execute(ctx context.Context, mode Mode, items []Item, destPath string, opts Options) *Result {
	res := e.execute(ctx, mode, items, destPath, opts)

	outcome := "success"
	switch {
	case res.Success:
	case res.Kind == transport.KindConflict:
		outcome = "conflict"
	default:
		outcome = "failed"
	}
	metrics.RecordOperation(string(mode), outcome)

	return res
}

func (e *Executor) execute(ctx context.Context, mode Mode, items []Item, destPath string, opts Options) *Result {
	dest, transfers, err := e.plan(items, destPath)
	if err != nil {
		return failure(err)
	}

	existing, err := e.backend.List(ctx, dest)
	if err != nil {
		slog.Warn("operation destination listing failed", "mode", mode, "dest", dest.Key(), "error", err)
		return failure(err)
	}

	check := conflict.Check(transfers, existing)
	if check.HasConflict && !opts.Overwrite && !opts.Rename {
		slog.Info("operation conflict", "mode", mode, "dest", dest.Key(), "duplicates", check.DuplicateNames)
		return &Result{
			Message:  conflictMessage,
			Error:    conflictError,
			Kind:     transport.KindConflict,
			Conflict: check,
		}
	}

	if err := e.send(ctx, mode, transfers, opts); err != nil {
		slog.Error("operation failed", "mode", mode, "dest", dest.Key(), "error", err)
		return failure(err)
	}

	return e.success(mode, transfers, destPath, opts, check)
}

// Check reports the collisions items would cause in destPath without changing
// anything.
func (e *Executor) Check(ctx context.Context, items []Item, destPath string) (*conflict.Result, error) {
	dest, transfers, err := e.plan(items, destPath)
	if err != nil {
		return nil, err
	}

	existing, err := e.backend.List(ctx, dest)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dest.Key(), err)
	}
	return conflict.Check(transfers, existing), nil
}

// CheckAndResolve runs Check and applies policy when there is a collision and
// the policy asks for something. The resolution is nil otherwise.
func (e *Executor) CheckAndResolve(ctx context.Context, items []Item, destPath string, policy conflict.Policy) (*conflict.Result, *conflict.Resolution, error) {
	check, err := e.Check(ctx, items, destPath)
	if err != nil {
		return nil, nil, err
	}

	if !check.HasConflict || (!policy.Overwrite && !policy.Rename && policy.CustomName == "") {
		return check, nil, nil
	}

	resolution := conflict.Resolve(check, policy)
	return check, &resolution, nil
}

// plan resolves the destination and builds one transfer per item.
func (e *Executor) plan(items []Item, destPath string) (scopepath.ScopedPath, []resource.TransferItem, error) {
	if len(items) == 0 {
		return scopepath.ScopedPath{}, nil, ErrNoItems
	}

	dest := e.resolver.Resolve(destPath)
	transfers := make([]resource.TransferItem, 0, len(items))
	for _, item := range items {
		from := e.resolver.Resolve(item.URL)
		name := item.Name
		if name == "" {
			name = scopepath.Base(from.Path)
		}

		t := resource.TransferItem{
			From: from,
			To:   scopepath.ScopedPath{Scope: dest.Scope, Path: scopepath.Join(dest.Path, name)},
			Name: name,
		}
		if !t.SameScope() {
			return dest, nil, fmt.Errorf("%w: %s to %s", ErrCrossScope, from.Key(), t.To.Key())
		}
		transfers = append(transfers, t)
	}

	return dest, transfers, nil
}

func (e *Executor) send(ctx context.Context, mode Mode, transfers []resource.TransferItem, opts Options) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, t := range transfers {
		g.Go(func() error {
			return e.backend.MoveCopy(gctx, mode.action(), t.From, t.To, opts.Overwrite, opts.Rename)
		})
	}

	return g.Wait()
}

func (e *Executor) success(mode Mode, transfers []resource.TransferItem, destPath string, opts Options, check *conflict.Result) *Result {
	affected := make([]string, len(transfers))
	for i, t := range transfers {
		affected[i] = t.Name
	}

	res := &Result{
		Success:       true,
		Message:       "Copy operation completed successfully",
		AffectedItems: affected,
	}
	// a renamed first item ends up under a name only the server knows
	if !opts.Rename || !slices.Contains(check.DuplicateNames, transfers[0].Name) {
		res.Preselect = e.resolver.UIPath(transfers[0].To)
	}

	if mode == ModeMove {
		res.Message = "Move operation completed successfully"
		res.RedirectPath = destPath
		return res
	}

	if opts.CurrentPath != "" && scopepath.Normalize(opts.CurrentPath) == scopepath.Normalize(destPath) {
		res.Reload = true
	} else {
		res.RedirectPath = destPath
	}
	return res
}

func failure(err error) *Result {
	return &Result{
		Error: transport.Message(err),
		Kind:  transport.KindOf(err),
	}
}
