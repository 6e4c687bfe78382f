// Package main is the CaseTrail administrative CLI. It opens the ledger
// database directly (read-only operations only) and exposes the compliance
// surface: chain verification, audit review queries, and bulk export.
//
// Commands:
//
//	casetrail-admin verify   - Recompute the full hash chain (or from a checkpoint)
//	casetrail-admin query    - Filtered, paginated audit review
//	casetrail-admin export   - Dump the ledger as jsonl, json, or csv
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/casetrail/casetrail/database"
	"github.com/casetrail/casetrail/models"
	"github.com/casetrail/casetrail/repositories"
	"github.com/casetrail/casetrail/services"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "casetrail-admin",
	Short: "CaseTrail — administrative tools for the tamper-evident audit ledger",
	Long: `casetrail-admin operates directly on the CaseTrail database file.

All commands are read-only with respect to the ledger: the audit_log table
is append-only by schema, and this tool only scans and verifies it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "casetrail.db", "path to the CaseTrail database file")
	rootCmd.AddCommand(verifyCmd, queryCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openRepo opens the database and returns the audit repository.
func openRepo() (repositories.AuditRepository, func(), error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, nil, fmt.Errorf("database file %s not found", dbPath)
	}
	if err := database.OpenDB(dbPath); err != nil {
		return nil, nil, err
	}
	repo := repositories.NewAuditRepository(database.GetDB())
	closer := func() { _ = database.CloseDB() }
	return repo, closer, nil
}

// ============================================================================
// verify
// ============================================================================

var (
	checkpointTimestamp string
	checkpointID        string
	checkpointHash      string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute the hash chain and report the first divergence, if any",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closer, err := openRepo()
		if err != nil {
			return err
		}
		defer closer()

		verifier := services.NewAuditVerifier(repo)

		var report *models.IntegrityReport
		if checkpointHash != "" {
			if checkpointTimestamp == "" || checkpointID == "" {
				return fmt.Errorf("--after-hash requires --after-timestamp and --after-id")
			}
			report, err = verifier.VerifyFrom(cmd.Context(), models.Checkpoint{
				Timestamp: checkpointTimestamp,
				ID:        checkpointID,
				Hash:      checkpointHash,
			})
		} else {
			report, err = verifier.VerifyChain(cmd.Context())
		}
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))

		if !report.Valid {
			// Non-zero exit so cron jobs and scripts notice a broken chain.
			os.Exit(2)
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&checkpointTimestamp, "after-timestamp", "", "checkpoint timestamp for bounded verification")
	verifyCmd.Flags().StringVar(&checkpointID, "after-id", "", "checkpoint entry ID for bounded verification")
	verifyCmd.Flags().StringVar(&checkpointHash, "after-hash", "", "trusted integrity hash at the checkpoint")
}

// ============================================================================
// query
// ============================================================================

var queryFilters models.AuditQueryFilters

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Filtered, paginated audit review",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closer, err := openRepo()
		if err != nil {
			return err
		}
		defer closer()

		query := services.NewAuditQueryService(repo)

		filters := queryFilters
		if success, err := cmd.Flags().GetString("success"); err == nil && success != "" {
			val := success == "true"
			filters.Success = &val
		}

		entries, err := query.Search(cmd.Context(), &filters)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		for _, entry := range entries {
			if err := enc.Encode(entry); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryFilters.From, "from", "", "lower timestamp bound (canonical format)")
	queryCmd.Flags().StringVar(&queryFilters.To, "to", "", "upper timestamp bound (canonical format)")
	queryCmd.Flags().StringVar((*string)(&queryFilters.EventType), "event-type", "", "filter by event type, e.g. case.create")
	queryCmd.Flags().StringVar(&queryFilters.UserID, "user", "", "filter by user ID")
	queryCmd.Flags().StringVar(&queryFilters.ResourceType, "resource-type", "", "filter by resource type")
	queryCmd.Flags().StringVar(&queryFilters.ResourceID, "resource-id", "", "filter by resource ID")
	queryCmd.Flags().String("success", "", "filter by outcome: true or false")
	queryCmd.Flags().IntVar(&queryFilters.Limit, "limit", 0, "maximum entries to return")
	queryCmd.Flags().IntVar(&queryFilters.Offset, "offset", 0, "entries to skip")
}

// ============================================================================
// export
// ============================================================================

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump the full ledger in chain order",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closer, err := openRepo()
		if err != nil {
			return err
		}
		defer closer()

		out := os.Stdout
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		query := services.NewAuditQueryService(repo)
		return query.Export(cmd.Context(), out, exportFormat)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "jsonl", "output format: jsonl, json, or csv")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
}
