package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/edforecast/edforecast/internal/config"
	"github.com/edforecast/edforecast/internal/domain/forecast"
	"github.com/edforecast/edforecast/internal/domain/profile"
	"github.com/edforecast/edforecast/internal/platform/auth"
	"github.com/edforecast/edforecast/internal/platform/db"
)

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect the arrival and triage profiles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load every profile and report whether it is usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pc := profileConfig(cfg)
			pc.Strict = true
			set, err := profile.Load(cmd.Context(), pc)
			if err != nil {
				return fmt.Errorf("%s: %w", profile.Classify(err), err)
			}
			printProfileSummary(cmd.OutOrStdout(), set)
			return nil
		},
	})

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the loaded profiles as normalized CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			set, err := profile.Load(cmd.Context(), profileConfig(cfg))
			if err != nil {
				return err
			}
			written, err := exportProfiles(set, out)
			if err != nil {
				return err
			}
			for _, path := range written {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			}
			return nil
		},
	}
	exportCmd.Flags().String("out", ".", "Directory to write the CSV files to")
	cmd.AddCommand(exportCmd)

	return cmd
}

func printProfileSummary(w io.Writer, set *profile.Set) {
	fmt.Fprintf(w, "arrival profile:  %s\n", set.Sources.ArrivalFile)
	if set.Hourly != nil {
		fmt.Fprintf(w, "hourly profile:   %s\n", set.Sources.HourlyFile)
	} else {
		fmt.Fprintln(w, "hourly profile:   not configured")
	}
	fmt.Fprintf(w, "triage profile:   %s (%s)\n", set.Sources.TriageFile, strings.Join(set.Triage.Labels(), ", "))
	fmt.Fprintln(w, "OK")
}

// exportProfiles writes each grid and the triage table into dir and returns
// the written paths.
func exportProfiles(set *profile.Set, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	type export struct {
		name  string
		write func(io.Writer) error
	}
	exports := []export{
		{"arrival_profile.csv", func(w io.Writer) error { return profile.WriteGridCSV(w, set.Arrival, "hour") }},
		{"triage_by_hour_profile.csv", func(w io.Writer) error { return profile.WriteTriageCSV(w, set.Triage) }},
	}
	if set.Hourly != nil {
		exports = append(exports, export{"hourly_arrival_profile.csv", func(w io.Writer) error {
			return profile.WriteGridCSV(w, set.Hourly, "hour")
		}})
	}

	var written []string
	for _, ex := range exports {
		path := filepath.Join(dir, ex.name)
		if err := writeFile(path, ex.write); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			dir := migrationsDir(cmd, cfg)

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			dir := migrationsDir(cmd, cfg)

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func migrationsDir(cmd *cobra.Command, cfg *config.Config) string {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir
	}
	return cfg.MigrationsDir
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Version, s.Name, status, appliedAt)
	}
	tw.Flush()
}

func forecastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Print an influenza case forecast",
		RunE: func(cmd *cobra.Command, args []string) error {
			periods, _ := cmd.Flags().GetInt("periods")
			freq, _ := cmd.Flags().GetString("freq")
			g, err := forecast.ParseGranularity(freq)
			if err != nil {
				return err
			}
			if periods < 1 {
				return fmt.Errorf("--periods must be positive, got %d", periods)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := optionalPool(ctx, cfg)
			if err != nil {
				return err
			}
			if pool != nil {
				defer pool.Close()
			}

			logger := newLogger(cfg.Env)
			preds, err := newForecastService(cfg, pool, loc, logger).Forecast(ctx, periods, g)
			if err != nil {
				return err
			}
			printPredictions(cmd.OutOrStdout(), preds)
			return nil
		},
	}
	cmd.Flags().Int("periods", 7, "Number of periods to forecast")
	cmd.Flags().String("freq", "D", "Period length: D (daily) or W (weekly)")

	cmd.AddCommand(forecastImportCmd())
	return cmd
}

func printPredictions(w io.Writer, preds []forecast.Prediction) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PERIOD\tCASES\tLOWER\tUPPER")
	for _, p := range preds {
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.1f\n", p.Period.Format("2006-01-02"), p.Cases(), p.Lower, p.Upper)
	}
	tw.Flush()
}

// forecastImportCmd loads a daily case CSV into the flu_case_daily table in
// a single transaction.
func forecastImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a daily case CSV into PostgreSQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			column, _ := cmd.Flags().GetString("column")
			if column == "" {
				column = cfg.FluHistoryColumn
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			points, err := forecast.ReadDailyCSV(f, column)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			store := forecast.NewCaseHistoryPG(pool)
			var n int
			err = db.RunInTx(db.ContextWithPool(ctx, pool), func(ctx context.Context) error {
				n, err = store.UpsertDaily(ctx, points)
				return err
			})
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d day(s) from column %s.\n", n, column)
			return nil
		},
	}
	cmd.Flags().String("column", "", "Region column to import (default FLU_HISTORY_COLUMN)")
	return cmd
}

func optionalPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.FluHistorySource != "postgres" {
		return nil, nil
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, _ := cmd.Flags().GetString("sub")
			roles, _ := cmd.Flags().GetStringSlice("roles")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.AuthSigningKey == "" {
				return fmt.Errorf("AUTH_SIGNING_KEY is required to issue tokens")
			}
			tok, err := auth.IssueToken([]byte(cfg.AuthSigningKey), cfg.AuthIssuer, cfg.AuthAudience, sub, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("sub", "", "Token subject")
	cmd.Flags().StringSlice("roles", []string{"clinician"}, "Roles to grant")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("sub")
	return cmd
}
