package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

var (
	red   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	green = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	cyan  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", color.New(color.FgHiRed, color.Bold).Sprint("ERROR"), err)
}

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", color.New(color.FgHiGreen).Sprint("✓"), fmt.Sprintf(format, args...))
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format := outputText
	if f := cmd.Flag("output"); f != nil {
		format = f.Value.String()
	}
	switch format {
	case outputText, outputJSON, outputYAML:
		return format, nil
	}
	return "", fmt.Errorf("unknown output format %q", format)
}

// render writes v as json or yaml when asked to, and calls text otherwise.
func render(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch format {
	case outputJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return text(w)
}
