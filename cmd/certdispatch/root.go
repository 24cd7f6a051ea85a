package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "certdispatch",
	Short: "Generate certificates and offer letters and e-mail them to recipients",
	Long: `certdispatch fills document templates with recipient details, converts
them to PDF and optionally e-mails the result. It runs as an HTTP service
or processes a CSV roster from the command line.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
