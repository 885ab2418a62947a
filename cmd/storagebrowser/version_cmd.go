package main

import (
	"fmt"
	"io"

	"github.com/openmined/storagebrowser/internal/version"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return render(cmd, version.Current(), func(w io.Writer) error {
				_, err := fmt.Fprintln(w, version.Detailed())
				return err
			})
		},
	}
}
