// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

// audit.go exposes the append-only audit trail: listing entries and recent
// deployment runs, and exporting the log as zstd-compressed JSON lines for
// archival.

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/toeirei/deckhand/internal/db"
	"github.com/toeirei/deckhand/internal/i18n"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and export the audit log",
	}
	cmd.AddCommand(newAuditListCmd())
	cmd.AddCommand(newAuditRunsCmd())
	cmd.AddCommand(newAuditExportCmd())
	return cmd
}

func newAuditListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := db.GetAllAuditEntries()
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s  %-14s %s\n", e.Timestamp, e.Action, e.Details)
			}
			return nil
		},
	}
}

func newAuditRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent deployment runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := db.GetDeploymentResults(limit)
			if err != nil {
				return err
			}
			for _, r := range runs {
				line := fmt.Sprintf("%s  %-8s %s", r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.Target)
				if r.Stage != "" {
					line += fmt.Sprintf("  (failed at %s)", r.Stage)
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum number of runs to show")
	return cmd
}

func newAuditExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export the audit log as zstd-compressed JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := db.GetAllAuditEntries()
			if err != nil {
				return err
			}

			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("could not create export file: %w", err)
			}
			defer f.Close()

			zw, err := zstd.NewWriter(f)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(zw)
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					zw.Close()
					return fmt.Errorf("failed to encode audit entry %d: %w", e.ID, err)
				}
			}
			if err := zw.Close(); err != nil {
				return err
			}

			fmt.Printf(i18n.T("audit.exported")+"\n", len(entries), args[0])
			return nil
		},
	}
	return cmd
}
