package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/openmined/storagebrowser/internal/conflict"
	"github.com/openmined/storagebrowser/internal/operation"
	"github.com/openmined/storagebrowser/internal/transport"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(
		newTransferCmd(operation.ModeMove, "mv", "Move files or directories into a directory"),
		newTransferCmd(operation.ModeCopy, "cp", "Copy files or directories into a directory"),
	)
}

func newTransferCmd(mode operation.Mode, use, short string) *cobra.Command {
	var opts operation.Options
	var checkOnly bool
	var customName string

	cmd := &cobra.Command{
		Use:   use + " <source>... <destination-dir>",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if customName != "" && !(checkOnly && opts.Rename) {
				return fmt.Errorf("--name needs --check and --rename")
			}
			a, err := loadApp(cmd, !checkOnly)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}

			sources, dest := args[:len(args)-1], args[len(args)-1]
			items := make([]operation.Item, len(sources))
			for i, src := range sources {
				items[i] = operation.Item{URL: src, IsDir: strings.HasSuffix(src, "/")}
			}

			if checkOnly {
				policy := conflict.Policy{Overwrite: opts.Overwrite, Rename: opts.Rename, CustomName: customName}
				check, resolution, err := a.executor.CheckAndResolve(cmd.Context(), items, dest, policy)
				if err != nil {
					return err
				}
				return render(cmd, checkView{Result: *check, Resolution: resolution}, func(w io.Writer) error {
					printCheck(w, dest, check, resolution)
					return nil
				})
			}

			res := a.executor.Execute(cmd.Context(), mode, items, dest, opts)
			if err := render(cmd, res, func(w io.Writer) error {
				switch {
				case res.Success:
					printSuccess(w, "%s", res.Message)
					for _, name := range res.AffectedItems {
						fmt.Fprintf(w, "  %s\n", cyan.Render(name))
					}
				case res.Kind == transport.KindConflict:
					fmt.Fprintln(w, red.Render(res.Message))
					printConflict(w, res.Conflict.DuplicateNames, res.Conflict.SuggestedName, renameHint)
				}
				return nil
			}); err != nil {
				return err
			}

			if !res.Success {
				return fmt.Errorf("%s failed: %s", mode, res.Error)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "replace existing entries at the destination")
	cmd.Flags().BoolVar(&opts.Rename, "rename", false, "let the server pick a free name on collision")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "only report collisions, change nothing")
	cmd.Flags().StringVar(&customName, "name", "", "with --check --rename, preferred name for the first collision")
	cmd.MarkFlagsMutuallyExclusive("overwrite", "rename")

	return cmd
}

type checkView struct {
	conflict.Result `yaml:",inline"`
	Resolution *conflict.Resolution `json:"resolution,omitempty" yaml:"resolution,omitempty"`
}

// printCheck shows the collisions in dest and, when a policy was given, what
// each colliding name would become.
func printCheck(w io.Writer, dest string, check *conflict.Result, resolution *conflict.Resolution) {
	if !check.HasConflict {
		printSuccess(w, "no conflicts in %s", dest)
		return
	}
	if resolution == nil {
		printConflict(w, check.DuplicateNames, check.SuggestedName, renameHint)
		return
	}
	for i, name := range check.DuplicateNames {
		if i < len(resolution.ResolvedNames) {
			fmt.Fprintf(w, "  %s %s -> %s\n", cyan.Render(string(resolution.Action)), name, resolution.ResolvedNames[i])
		}
	}
}

const renameHint = "use --overwrite or --rename to proceed"

func printConflict(w io.Writer, duplicates []string, suggested, hint string) {
	for _, name := range duplicates {
		fmt.Fprintf(w, "  %s %s\n", red.Render("exists"), name)
	}
	if suggested != "" {
		fmt.Fprintf(w, "%s %s\n", gray.Render("suggested name:"), suggested)
	}
	fmt.Fprintln(w, gray.Render(hint))
}
