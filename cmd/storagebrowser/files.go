package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/storagebrowser/internal/resource"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newLsCmd(), newInfoCmd(), newUsageCmd(), newMkdirCmd(), newRmCmd())
}

type entryView struct {
	Name     string    `json:"name" yaml:"name"`
	Dir      bool      `json:"dir" yaml:"dir"`
	Size     int64     `json:"size" yaml:"size"`
	Type     string    `json:"type,omitempty" yaml:"type,omitempty"`
	Modified time.Time `json:"modified" yaml:"modified"`
	URL      string    `json:"url" yaml:"url"`
}

func toEntryViews(entries []resource.Entry) []entryView {
	views := make([]entryView, len(entries))
	for i, e := range entries {
		views[i] = entryView{
			Name:     e.Name,
			Dir:      e.IsDir,
			Size:     e.Size,
			Type:     e.Type,
			Modified: e.ModifiedAt,
			URL:      e.URL,
		}
	}
	return views
}

func pathArg(args []string) string {
	if len(args) == 0 {
		return "/"
	}
	return args[0]
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls [path]",
		Aliases: []string{"list"},
		Short:   "List a directory",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}

			res, err := a.resources.Fetch(cmd.Context(), a.resolver.Resolve(pathArg(args)))
			if err != nil {
				return err
			}
			if !res.IsDir {
				return renderResource(cmd, res)
			}

			views := toEntryViews(res.Items)
			return render(cmd, views, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				for _, v := range views {
					name, size := v.Name, humanize.Bytes(uint64(v.Size))
					if v.Dir {
						name, size = cyan.Render(v.Name+"/"), "-"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", size, gray.Render(humanize.Time(v.Modified)), name)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				_, err := fmt.Fprintln(w, gray.Render(fmt.Sprintf("%d directories, %d files", res.NumDirs, res.NumFiles)))
				return err
			})
		},
	}
}

type infoView struct {
	Name      string            `json:"name" yaml:"name"`
	Path      string            `json:"path" yaml:"path"`
	Dir       bool              `json:"dir" yaml:"dir"`
	Size      int64             `json:"size" yaml:"size"`
	Type      string            `json:"type,omitempty" yaml:"type,omitempty"`
	Modified  time.Time         `json:"modified" yaml:"modified"`
	Checksums map[string]string `json:"checksums,omitempty" yaml:"checksums,omitempty"`
}

func renderResource(cmd *cobra.Command, res *resource.Resource) error {
	view := infoView{
		Name:      res.Name,
		Path:      res.Path,
		Dir:       res.IsDir,
		Size:      res.Size,
		Type:      res.Type,
		Modified:  res.ModifiedAt,
		Checksums: res.Checksums,
	}
	return render(cmd, view, func(w io.Writer) error {
		fmt.Fprintf(w, "%s%s\n", gray.Render("Name      "), cyan.Render(view.Name))
		fmt.Fprintf(w, "%s%s\n", gray.Render("Path      "), view.Path)
		fmt.Fprintf(w, "%s%s (%d bytes)\n", gray.Render("Size      "), humanize.Bytes(uint64(view.Size)), view.Size)
		if view.Type != "" {
			fmt.Fprintf(w, "%s%s\n", gray.Render("Type      "), view.Type)
		}
		fmt.Fprintf(w, "%s%s\n", gray.Render("Modified  "), view.Modified.Format(time.RFC3339))
		for algo, sum := range view.Checksums {
			fmt.Fprintf(w, "%s%s\n", gray.Render(fmt.Sprintf("%-10s", strings.ToUpper(algo))), sum)
		}
		return nil
	})
}

func newInfoCmd() *cobra.Command {
	var checksum string

	cmd := &cobra.Command{
		Use:   "info <path>",
		Short: "Show details of a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}

			sp := a.resolver.Resolve(args[0])
			res, err := a.resources.Fetch(cmd.Context(), sp)
			if err != nil {
				return err
			}

			if checksum != "" && !res.IsDir {
				sum, err := a.resources.Checksum(cmd.Context(), sp, checksum)
				if err != nil {
					return err
				}
				res.Checksums = map[string]string{checksum: sum}
			}
			return renderResource(cmd, res)
		},
	}

	cmd.Flags().StringVar(&checksum, "checksum", "", "also compute a checksum (md5, sha1, sha256 or sha512)")
	return cmd
}

func newUsageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage [path]",
		Short: "Show the disk usage reported by the server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}

			usage, err := a.resources.Usage(cmd.Context(), a.resolver.Resolve(pathArg(args)))
			if err != nil {
				return err
			}
			return render(cmd, usage, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s of %s used\n", humanize.Bytes(usage.Used), humanize.Bytes(usage.Total))
				return err
			})
		},
	}
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>...",
		Short: "Create directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}

			for _, p := range args {
				if _, err := a.dispatcher.Upload(cmd.Context(), strings.TrimRight(p, "/")+"/", nil, false); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "created %s", p)
			}
			return nil
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>...",
		Short: "Delete files or directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}

			for _, p := range args {
				sp := a.resolver.Resolve(p)
				if sp.Path == "/" {
					return fmt.Errorf("refusing to delete the root of %s", p)
				}
				if err := a.resources.Delete(cmd.Context(), sp); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "deleted %s", p)
			}
			return nil
		},
	}
}
