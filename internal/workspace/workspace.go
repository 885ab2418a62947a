// Package workspace owns the client's data directory: the session database,
// the logs and the lock that keeps two mutating commands apart.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/openmined/storagebrowser/internal/utils"
)

const (
	logsDir   = "logs"
	stateFile = "state.db"
	lockFile  = "storagebrowser.lock"
)

var ErrWorkspaceLocked = errors.New("workspace locked by another process")

type Workspace struct {
	Root      string
	LogsDir   string
	StatePath string

	flock *flock.Flock
}

func NewWorkspace(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", rootDir, err)
	}

	return &Workspace{
		Root:      root,
		LogsDir:   filepath.Join(root, logsDir),
		StatePath: filepath.Join(root, stateFile),
		flock:     flock.New(filepath.Join(root, lockFile)),
	}, nil
}

// Setup creates the directory layout. It does not take the lock.
func (w *Workspace) Setup() error {
	for _, dir := range []string{w.Root, w.LogsDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	slog.Debug("workspace", "root", w.Root)
	return nil
}

func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.Root); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.Root, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}

	return nil
}

func (w *Workspace) Unlock() error {
	// only the holder removes the lock file
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock workspace: %w", err)
	}

	return os.Remove(w.flock.Path())
}

// LockPath is the file the lock is held on.
func (w *Workspace) LockPath() string {
	return w.flock.Path()
}
