package main

import (
	"fmt"
	"io"

	"github.com/openmined/storagebrowser/internal/scopepath"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newBucketsCmd())
}

func newBucketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "buckets",
		Aliases: []string{"scopes"},
		Short:   "List or switch the buckets of an S3 backend",
	}
	cmd.AddCommand(newBucketsListCmd(), newBucketsSwitchCmd())
	return cmd
}

func newBucketsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the buckets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}

			buckets, err := a.buckets.List(cmd.Context())
			if err != nil {
				return err
			}

			active := a.session.ActiveScope()
			return render(cmd, buckets, func(w io.Writer) error {
				for _, b := range buckets {
					if b.Name == active {
						fmt.Fprintf(w, "* %s  %s\n", green.Render(b.Name), gray.Render(scopepath.ToScoped(b.Name, "/")))
						continue
					}
					fmt.Fprintf(w, "  %s  %s\n", b.Name, gray.Render(scopepath.ToScoped(b.Name, "/")))
				}
				return nil
			})
		},
	}
}

func newBucketsSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <bucket>",
		Short: "Make a bucket the active scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}

			if err := a.buckets.Switch(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := a.session.SetCurrentScope(cmd.Context(), args[0]); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "active bucket is %s", args[0])
			return nil
		},
	}
}
