package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newSearchCmd())
}

func newSearchCmd() *cobra.Command {
	var base string

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search below a directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}

			hits, err := a.search.Query(cmd.Context(), base, strings.Join(args, " "))
			if err != nil {
				return err
			}

			return render(cmd, hits, func(w io.Writer) error {
				for _, h := range hits {
					if h.Dir {
						fmt.Fprintf(w, "%s  %s\n", cyan.Render(h.Path+"/"), gray.Render(h.URL))
						continue
					}
					fmt.Fprintf(w, "%s  %s\n", h.Path, gray.Render(h.URL))
				}
				_, err := fmt.Fprintln(w, gray.Render(fmt.Sprintf("%d results", len(hits))))
				return err
			})
		},
	}

	cmd.Flags().StringVar(&base, "in", "/", "directory to search in")
	return cmd
}
