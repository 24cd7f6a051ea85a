package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"certdispatch/internal/config"
	"certdispatch/internal/domain"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process a CSV roster with Name, Email and Domain columns",
	RunE: func(cmd *cobra.Command, args []string) error {
		csvPath, _ := cmd.Flags().GetString("csv")
		kindName, _ := cmd.Flags().GetString("kind")
		send, _ := cmd.Flags().GetBool("send-email")
		strict, _ := cmd.Flags().GetBool("strict")

		kind, err := domain.ParseKind(kindName)
		if err != nil {
			return err
		}

		cfg := config.Load()
		if out, _ := cmd.Flags().GetString("output-dir"); out != "" {
			cfg.Documents.OutputDir = out
		}
		initLogging(cfg)

		rt, err := build(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		// The roster belongs to the caller, so no temporary dir is removed.
		res, err := rt.orchestrator.RunFile(cmd.Context(), csvPath, "", kind, send)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		if n := res.Failures(); strict && n > 0 {
			return fmt.Errorf("%d of %d rows failed", n, len(res.Results))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().String("csv", "", "Path to the CSV roster")
	batchCmd.Flags().String("kind", "certificate", "Document kind: certificate or offer_letter")
	batchCmd.Flags().Bool("send-email", false, "E-mail each rendered document to its recipient")
	batchCmd.Flags().Bool("strict", false, "Exit non-zero when any row fails")
	batchCmd.Flags().String("output-dir", "", "Override the configured output directory")
	_ = batchCmd.MarkFlagRequired("csv")
}
