package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/adintel/adintel/internal/db"
	"github.com/adintel/adintel/internal/pagemigration"
	"github.com/adintel/adintel/internal/snapshot"
	"github.com/spf13/cobra"
)

func newVerifyCmd(g *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the post-migration checks",
		Long: `Run every post-migration check and report each result.

All checks always run; the command exits 1 if any of them fail.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), *g)
			if err != nil {
				return err
			}
			defer e.close()

			report := pagemigration.NewVerifier(e.db, e.logger).Run(e.ctx)
			e.metrics.SetVerification(report.Passed, report.Failed)

			out := cmd.OutOrStdout()
			if asJSON {
				err = report.RenderJSON(out)
			} else {
				err = report.Render(out)
			}
			if err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			return report.Err()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the report as JSON")

	return cmd
}

func newStatusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the migration is needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), *g)
			if err != nil {
				return err
			}
			defer e.close()

			decision, err := pagemigration.NewGuard(e.db, e.logger).Evaluate(e.ctx)
			if err != nil {
				return err
			}
			marker, err := e.db.GetDataMigration(e.ctx, pagemigration.MarkerName)
			if err != nil {
				return err
			}
			version, err := e.db.CurrentVersion(e.ctx)
			if err != nil {
				return err
			}
			latest, err := snapshot.Latest(e.cfg.BackupDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Base schema version: %d\n", version)
			if decision.Needed {
				fmt.Fprintf(out, "Migration needed:    yes (%s)\n", decision.Reason)
			} else {
				fmt.Fprintf(out, "Migration needed:    no (%s)\n", decision.Reason)
			}
			if marker != nil {
				fmt.Fprintf(out, "Completed at:        %s\n", marker.AppliedAt.Format("2006-01-02 15:04:05 MST"))
				if len(marker.Details) > 0 {
					var details map[string]any
					if err := json.Unmarshal(marker.Details, &details); err == nil {
						fmt.Fprintf(out, "Run id:              %v\n", details["run_id"])
						fmt.Fprintf(out, "Pages migrated:      %v of %v\n", details["migrated"], details["total"])
					}
				}
			}
			if latest != "" {
				fmt.Fprintf(out, "Restore snapshot:    %s\n", latest)
			}
			if decision.Needed {
				return nil
			}

			samples, warnings, err := pagemigration.NewVerifier(e.db, e.logger).SampleBrands(e.ctx)
			if err != nil {
				return err
			}
			printSampleBrands(out, samples, warnings)
			return nil
		},
	}
}

func newRestoreCmd(g *globalFlags) *cobra.Command {
	var (
		from   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Reverse the migration from a backup snapshot",
		Long: `Reverse the page migration using a backup snapshot.

The legacy brands columns are re-created and filled from the snapshot, then
brand_pages, settings and the override columns are dropped and the
completion marker is removed. Every step can be repeated, so a failed
restore is resumed by running it again.

Without --from the newest snapshot in the backup directory that still holds
the legacy columns is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), *g)
			if err != nil {
				return err
			}
			defer e.close()

			path := from
			if path == "" {
				if path, err = snapshot.Latest(e.cfg.BackupDir); err != nil {
					return err
				}
				if path == "" {
					return fmt.Errorf("no snapshot taken before cleanup found in %s; pass --from", e.cfg.BackupDir)
				}
			}

			if !dryRun {
				release, err := pagemigration.AcquireLock(e.ctx, e.db, e.cfg.LockID)
				if err != nil {
					return err
				}
				defer release()
			}

			result, err := pagemigration.NewRestorer(e.db, e.logger).Restore(e.ctx, path, dryRun)
			e.metrics.SetRestored(result.Restored, len(result.Missing))
			if err != nil {
				var rerr *pagemigration.RestoreError
				if errors.As(err, &rerr) {
					e.logger.Error().Str("state", string(rerr.State)).Msg("restore failed; fix the cause and run it again")
				}
				return err
			}

			out := cmd.OutOrStdout()
			prefix := ""
			if dryRun {
				prefix = "[dry-run] "
			}
			fmt.Fprintf(out, "%sRestore %s from %s\n", prefix, result.State, result.Snapshot)
			fmt.Fprintf(out, "  Rows restored: %d of %d\n", result.Restored, result.Rows)
			if len(result.Missing) > 0 {
				fmt.Fprintf(out, "  Brands no longer present: %v\n", result.Missing)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Snapshot file to restore from")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report each step without changing anything")

	return cmd
}

// newBaseCmd manages the versioned base schema migrations.
func newBaseCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "base",
		Short: "Apply the base schema migrations",
		Long: `Apply the versioned base schema migrations that create the brands
table on a fresh install. Already applied migrations are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), *g)
			if err != nil {
				return err
			}
			defer e.close()

			e.logger.Info().Msg("running database migrations")
			if err := e.db.Migrate(e.ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			version, err := e.db.CurrentVersion(e.ctx)
			if err != nil {
				e.logger.Warn().Err(err).Msg("could not get current version")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Current schema version: %d\n", version)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the embedded base migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			migrations, err := db.GetMigrations()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(migrations) == 0 {
				fmt.Fprintln(out, "No migrations found")
				return nil
			}
			fmt.Fprintln(out, "Available migrations:")
			for _, m := range migrations {
				fmt.Fprintf(out, "  %03d: %s\n", m.Version, m.Name)
			}
			return nil
		},
	})

	return cmd
}

// printSampleBrands lists brands with their page counts and effective limits.
func printSampleBrands(w io.Writer, samples []pagemigration.SampleBrand, warnings []string) {
	if len(samples) == 0 {
		return
	}
	fmt.Fprintln(w, "Brand limits:")
	for _, b := range samples {
		state := "scraping"
		if !b.Limits.Enabled {
			state = "paused"
		}
		source := "global"
		if b.Limits.Overridden {
			source = "override"
		}
		fmt.Fprintf(w, "  %s (id %d): %d/%d pages active, max_ads=%d, max_daily_ads=%d (%s, %s)\n",
			b.BrandName, b.BrandID, b.ActivePageCount, b.PageCount,
			b.Limits.MaxAds, b.Limits.MaxDailyAds, source, state)
	}
	for _, warn := range warnings {
		fmt.Fprintf(w, "  ! %s\n", warn)
	}
}
