package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/openmined/storagebrowser/internal/conflict"
	"github.com/openmined/storagebrowser/internal/localtree"
	"github.com/openmined/storagebrowser/internal/resource"
	"github.com/openmined/storagebrowser/internal/scopepath"
	"github.com/openmined/storagebrowser/internal/transport"
	"github.com/openmined/storagebrowser/internal/upload"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const defaultUploadJobs = 3

// uploadTask is one local file or directory and where it goes.
type uploadTask struct {
	local  string
	remote string
	isDir  bool
	size   int64
}

// uploadProgress counts finished bytes plus the bytes of running uploads.
type uploadProgress struct {
	total int64
	files int

	finished  atomic.Int64
	completed atomic.Int64

	mu     sync.Mutex
	active map[*upload.Upload]struct{}
}

func newUploadProgress(tasks []uploadTask) *uploadProgress {
	p := &uploadProgress{active: map[*upload.Upload]struct{}{}}
	for _, t := range tasks {
		if !t.isDir {
			p.total += t.size
			p.files++
		}
	}
	return p
}

func (p *uploadProgress) track(u *upload.Upload) {
	p.mu.Lock()
	p.active[u] = struct{}{}
	p.mu.Unlock()
}

func (p *uploadProgress) done(u *upload.Upload, size int64) {
	if u != nil {
		p.mu.Lock()
		delete(p.active, u)
		p.mu.Unlock()
	}
	p.finished.Add(size)
	p.completed.Add(1)
}

// Bytes is the number of bytes sent so far.
func (p *uploadProgress) Bytes() int64 {
	n := p.finished.Load()
	p.mu.Lock()
	for u := range p.active {
		n += u.Uploaded()
	}
	p.mu.Unlock()
	return n
}

func (p *uploadProgress) Fraction() float64 {
	if p.total == 0 {
		return float64(p.completed.Load()) / float64(max(p.files, 1))
	}
	return min(float64(p.Bytes())/float64(p.total), 1)
}

func init() {
	rootCmd.AddCommand(newUploadCmd())
}

func newUploadCmd() *cobra.Command {
	var (
		overwrite bool
		excludes  []string
		jobs      int
		useTUI    bool
	)

	cmd := &cobra.Command{
		Use:   "upload <local>... <remote-dir>",
		Short: "Upload local files or directories",
		Long: `Upload local files or directories into a remote directory.

Directories are uploaded recursively. Entries matched by a .storagebrowserignore
file at the directory root or by --exclude are skipped. Local arguments may be
doublestar patterns such as "photos/**/*.jpg".`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, pattern := range excludes {
				if !doublestar.ValidatePattern(pattern) {
					return fmt.Errorf("invalid exclude pattern %q", pattern)
				}
			}

			sources, dest := args[:len(args)-1], args[len(args)-1]
			tasks, err := planUpload(sources, dest, excludes)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				return fmt.Errorf("nothing to upload")
			}

			a, err := loadApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if !overwrite {
				conflicts, err := checkUploadConflicts(cmd.Context(), a.resources, a.resolver, tasks)
				if err != nil {
					return err
				}
				if len(conflicts) > 0 {
					return reportUploadConflicts(w, conflicts)
				}
			}

			progress := newUploadProgress(tasks)

			if useTUI {
				if !isatty.IsTerminal(os.Stdout.Fd()) {
					return fmt.Errorf("--tui needs a terminal")
				}
				return RunUploadTUI(cmd.Context(), progress, func(ctx context.Context) error {
					return runUploads(ctx, a.dispatcher, tasks, overwrite, jobs, progress, io.Discard)
				})
			}

			if err := runUploads(cmd.Context(), a.dispatcher, tasks, overwrite, jobs, progress, w); err != nil {
				return err
			}
			printSuccess(w, "uploaded %d files (%s) to %s", progress.files, humanize.Bytes(uint64(progress.total)), dest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing remote files")
	cmd.Flags().StringArrayVarP(&excludes, "exclude", "x", nil, "skip local paths matching a doublestar pattern (repeatable)")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", defaultUploadJobs, "number of files uploaded at once")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "show an interactive progress bar")

	return cmd
}

// planUpload expands sources into upload tasks below the remote directory
// dest. Directories come before the files they contain.
func planUpload(sources []string, dest string, excludes []string) ([]uploadTask, error) {
	var tasks []uploadTask

	for _, src := range sources {
		if strings.ContainsAny(src, "*?[{") {
			matches, err := localtree.Glob(src)
			if err != nil {
				return nil, err
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no files match %q", src)
			}
			for _, m := range matches {
				fi, err := os.Stat(m)
				if err != nil {
					return nil, err
				}
				tasks = append(tasks, uploadTask{local: m, remote: remoteJoin(dest, filepath.Base(m)), size: fi.Size()})
			}
			continue
		}

		fi, err := os.Stat(src)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			tasks = append(tasks, uploadTask{local: src, remote: remoteJoin(dest, filepath.Base(src)), size: fi.Size()})
			continue
		}

		root, err := filepath.Abs(src)
		if err != nil {
			return nil, err
		}
		ignore := localtree.NewIgnoreList(root, excludes...)
		ignore.Load()

		entries, err := localtree.Walk(root, ignore)
		if err != nil {
			return nil, err
		}

		base := remoteJoin(dest, filepath.Base(root))
		tasks = append(tasks, uploadTask{local: root, remote: base, isDir: true})
		for _, e := range entries {
			tasks = append(tasks, uploadTask{
				local:  e.AbsPath,
				remote: remoteJoin(base, e.RelPath),
				isDir:  e.IsDir,
				size:   e.Size,
			})
		}
	}

	return tasks, nil
}

func remoteJoin(dir, rel string) string {
	return scopepath.Normalize(strings.TrimRight(dir, "/") + "/" + rel)
}

// remoteLister lists a remote directory.
type remoteLister interface {
	List(ctx context.Context, sp scopepath.ScopedPath) ([]resource.Entry, error)
}

// uploadConflict is the set of planned files that already exist in one remote
// directory.
type uploadConflict struct {
	Dir    string
	Result *conflict.Result
}

// checkUploadConflicts lists every remote directory receiving files once and
// checks the planned file names against it. A directory missing on the remote
// cannot collide.
func checkUploadConflicts(ctx context.Context, lister remoteLister, resolver scopepath.Resolver, tasks []uploadTask) ([]uploadConflict, error) {
	var dirs []string
	byDir := map[string][]resource.TransferItem{}
	for _, t := range tasks {
		if t.isDir {
			continue
		}
		dir, ok := scopepath.ParentOf(t.remote)
		if !ok {
			continue
		}
		if _, seen := byDir[dir]; !seen {
			dirs = append(dirs, dir)
		}
		byDir[dir] = append(byDir[dir], resource.TransferItem{
			To:   resolver.Resolve(t.remote),
			Name: scopepath.Base(t.remote),
		})
	}

	var conflicts []uploadConflict
	for _, dir := range dirs {
		existing, err := lister.List(ctx, resolver.Resolve(dir))
		if transport.StatusOf(err) == http.StatusNotFound {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		if res := conflict.Check(byDir[dir], existing); res.HasConflict {
			conflicts = append(conflicts, uploadConflict{Dir: dir, Result: res})
		}
	}
	return conflicts, nil
}

func reportUploadConflicts(w io.Writer, conflicts []uploadConflict) error {
	total := 0
	for _, c := range conflicts {
		total += len(c.Result.DuplicateNames)
		fmt.Fprintln(w, cyan.Render(c.Dir))
		printConflict(w, c.Result.DuplicateNames, c.Result.SuggestedName, "use --overwrite to replace them")
	}
	return fmt.Errorf("%d files already exist on the remote", total)
}

// runUploads creates the directories in order and then uploads the files with
// at most jobs transfers running at once.
func runUploads(ctx context.Context, d *upload.Dispatcher, tasks []uploadTask, overwrite bool, jobs int, progress *uploadProgress, w io.Writer) error {
	for _, t := range tasks {
		if !t.isDir {
			continue
		}
		if _, err := d.Upload(ctx, t.remote+"/", nil, false); err != nil {
			return fmt.Errorf("create %s: %w", t.remote, err)
		}
		slog.Debug("upload mkdir", "remote", t.remote)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(jobs, 1))

	for _, t := range tasks {
		if t.isDir {
			continue
		}
		g.Go(func() error {
			return uploadOne(gctx, d, t, overwrite, progress, w)
		})
	}

	return g.Wait()
}

func uploadOne(ctx context.Context, d *upload.Dispatcher, t uploadTask, overwrite bool, progress *uploadProgress, w io.Writer) error {
	f, err := upload.OpenFile(t.local)
	if err != nil {
		return err
	}
	defer f.Close()

	u, err := d.Upload(ctx, t.remote, f, overwrite)
	if err != nil {
		return err
	}
	if u != nil {
		progress.track(u)
		if err := u.Wait(); err != nil {
			progress.done(u, 0)
			return fmt.Errorf("upload %s: %w", t.remote, err)
		}
	}

	progress.done(u, f.Size())
	printSuccess(w, "%s %s", t.remote, gray.Render(humanize.Bytes(uint64(f.Size()))))
	return nil
}
