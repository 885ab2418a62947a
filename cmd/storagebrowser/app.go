package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openmined/storagebrowser/internal/config"
	"github.com/openmined/storagebrowser/internal/kvstore"
	"github.com/openmined/storagebrowser/internal/operation"
	"github.com/openmined/storagebrowser/internal/resource"
	"github.com/openmined/storagebrowser/internal/s3list"
	"github.com/openmined/storagebrowser/internal/scopepath"
	"github.com/openmined/storagebrowser/internal/session"
	"github.com/openmined/storagebrowser/internal/storageapi"
	"github.com/openmined/storagebrowser/internal/transport"
	"github.com/openmined/storagebrowser/internal/upload"
	"github.com/openmined/storagebrowser/internal/workspace"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in, run 'storagebrowser login' first")

// app wires the client packages for one command invocation.
type app struct {
	cfg       *config.Config
	workspace *workspace.Workspace
	store     *kvstore.SqliteStore

	client      *transport.Client
	session     *session.Session
	resolver    scopepath.Resolver
	resources   *storageapi.Resources
	buckets     *storageapi.Buckets
	search      *storageapi.Search
	coordinator *upload.Coordinator
	dispatcher  *upload.Dispatcher
	executor    *operation.Executor
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	ws, err := workspace.NewWorkspace(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := ws.Setup(); err != nil {
		return nil, err
	}

	store, err := kvstore.OpenSqliteStore(ctx, ws.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}

	opts := []transport.ClientOption{transport.WithDebug(cfg.Debug)}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, transport.WithTimeout(cfg.RequestTimeout))
	}
	client, err := transport.NewClient(cfg.ServerURL, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}

	sess := session.New(client, store)
	if err := sess.Load(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("load session: %w", err)
	}
	client.SetCredentials(sess)

	resolver := scopepath.NewResolver(cfg.Backend(), sess)
	resources := storageapi.NewResources(client, resolver, storageapi.DefaultCacheSize, storageapi.DefaultCacheTTL)

	coordinator := upload.NewCoordinator(client, resolver, cfg.Upload)
	client.SetUploadTracker(coordinator)

	var backend operation.Backend = resources
	if cfg.ListingSource == config.ListingSourceS3 {
		lister, err := s3list.NewListerWithConfig(ctx, cfg.S3)
		if err != nil {
			store.Close()
			return nil, err
		}
		backend = &s3Backend{lister: lister, resources: resources}
	}

	slog.Debug("app", "server", cfg.ServerURL, "backend", cfg.Backend(), "listing", cfg.ListingSource, "data", ws.Root)

	return &app{
		cfg:         cfg,
		workspace:   ws,
		store:       store,
		client:      client,
		session:     sess,
		resolver:    resolver,
		resources:   resources,
		buckets:     storageapi.NewBuckets(client),
		search:      storageapi.NewSearch(client, resolver),
		coordinator: coordinator,
		dispatcher:  upload.NewDispatcher(coordinator, resources),
		executor:    operation.NewExecutor(backend, resolver),
	}, nil
}

// loadApp is the usual command prologue: config, wiring, and optionally the
// workspace lock.
func loadApp(cmd *cobra.Command, lock bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}

	if lock {
		if err := a.workspace.Lock(); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// requireSession renews the token when it is about to expire.
func (a *app) requireSession(ctx context.Context) error {
	err := a.session.EnsureValid(ctx)
	if errors.Is(err, session.ErrNotAuthenticated) {
		return errNotLoggedIn
	}
	return err
}

func (a *app) Close() {
	a.coordinator.AbortAll()
	if err := a.workspace.Unlock(); err != nil {
		slog.Warn("workspace unlock", "error", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("state close", "error", err)
	}
}

// s3Backend lists straight from the object store and sends mutations through
// the storage API.
type s3Backend struct {
	lister    *s3list.Lister
	resources *storageapi.Resources
}

func (b *s3Backend) List(ctx context.Context, sp scopepath.ScopedPath) ([]resource.Entry, error) {
	return b.lister.List(ctx, sp)
}

func (b *s3Backend) MoveCopy(ctx context.Context, action resource.Action, from, to scopepath.ScopedPath, overwrite, rename bool) error {
	return b.resources.MoveCopy(ctx, action, from, to, overwrite, rename)
}
