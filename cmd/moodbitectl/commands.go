package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moodbite/backend/config"
	"github.com/moodbite/backend/internal/app"
	"github.com/moodbite/backend/internal/domain"
	"github.com/moodbite/backend/internal/infrastructure/logging"
)

type globalOptions struct {
	userID  string
	json    bool
	verbose bool
}

// requireUser fails commands that act on a user collection without --user
func (o *globalOptions) requireUser() error {
	if o.userID == "" {
		return errors.New("--user is required")
	}
	return nil
}

// withApp loads configuration, builds the application and runs fn
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if opts.verbose {
		if logger, err = logging.New("development", cfg.Log.Level); err != nil {
			return err
		}
		defer logger.Sync()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	return fn(ctx, a)
}

func collectionFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "collection", "c", string(domain.CollectionScanned),
		"collection (scanned_foods, diet_foods)")
}

func lookupCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup [barcode]",
		Short: "Resolve a barcode into a nutrition record without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				record, err := a.Scans.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				return printRecords(cmd.OutOrStdout(), opts.json, []domain.NutritionRecord{record})
			})
		},
	}
}

func scanCmd(opts *globalOptions) *cobra.Command {
	var (
		collection string
		date       string
	)

	cmd := &cobra.Command{
		Use:   "scan [barcode]",
		Short: "Look up a barcode and store it in a user's collection",
		Long: `Look up a barcode in Open Food Facts and store the normalized record.

Examples:
  moodbitectl scan 3017620422003 --user alice
  moodbitectl scan 3017620422003 --user alice --collection diet_foods --date 2024-03-05`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				record, err := a.Scans.Scan(ctx, opts.userID, domain.Collection(collection), args[0], date)
				if err != nil {
					return err
				}
				return printRecords(cmd.OutOrStdout(), opts.json, []domain.NutritionRecord{record})
			})
		},
	}

	collectionFlag(cmd, &collection)
	cmd.Flags().StringVarP(&date, "date", "d", "", "scan date yyyy-MM-dd (default today)")

	return cmd
}

func listCmd(opts *globalOptions) *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the records of a user's collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				records, err := a.Scans.List(ctx, opts.userID, domain.Collection(collection))
				if err != nil {
					return err
				}
				return printRecords(cmd.OutOrStdout(), opts.json, records)
			})
		},
	}

	collectionFlag(cmd, &collection)
	return cmd
}

func deleteCmd(opts *globalOptions) *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "delete [barcode]",
		Short: "Delete a record from a user's collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if err := a.Scans.Delete(ctx, opts.userID, domain.Collection(collection), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s from %s\n", args[0], collection)
				return nil
			})
		},
	}

	collectionFlag(cmd, &collection)
	return cmd
}

func moodCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mood [date] [mood]",
		Short: "Record a user's mood for a date, or list moods without arguments",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("accepts 0 or 2 args, received %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if len(args) == 2 {
					if err := a.Scans.SetMood(ctx, opts.userID, args[0], args[1]); err != nil {
						return err
					}
				}
				moods, err := a.Scans.ListMoods(ctx, opts.userID)
				if err != nil {
					return err
				}
				return printMoods(cmd.OutOrStdout(), opts.json, moods)
			})
		},
	}
	return cmd
}

func dashboardCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show a user's diet dashboard grouped by date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				dashboard, err := a.Dashboards.Build(ctx, opts.userID)
				if err != nil {
					return err
				}
				return printDashboard(cmd.OutOrStdout(), opts.json, dashboard)
			})
		},
	}
}

func seedCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate the shared catalog if it is empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				report, err := a.Seeder.SeedIfEmpty(ctx)
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), report)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seed %s: %d written, %d skipped, %d attempts\n",
					report.Outcome, report.Written, report.Skipped, report.Attempts)
				return nil
			})
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRecords(w io.Writer, asJSON bool, records []domain.NutritionRecord) error {
	if asJSON {
		if records == nil {
			records = []domain.NutritionRecord{}
		}
		return writeJSON(w, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No records.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BARCODE\tNAME\tKCAL\tSUGARS\tCARBS\tFAT\tPROTEIN\tDATE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%s\n",
			r.Barcode, r.ProductName, r.EnergyKcal, r.Sugars, r.Carbohydrates, r.Fat, r.Proteins, r.ScanDate)
	}
	return tw.Flush()
}

func printMoods(w io.Writer, asJSON bool, moods []domain.MoodRecord) error {
	if asJSON {
		if moods == nil {
			moods = []domain.MoodRecord{}
		}
		return writeJSON(w, moods)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tMOOD")
	for _, m := range moods {
		fmt.Fprintf(tw, "%s\t%s\n", m.Date, m.Mood)
	}
	return tw.Flush()
}

func printDashboard(w io.Writer, asJSON bool, d *domain.Dashboard) error {
	if asJSON {
		return writeJSON(w, d)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tITEMS\tKCAL\tSUGAR\tOVER\tMOOD\tTIP")
	for _, day := range d.Days {
		over := ""
		if day.ExceedsLimit {
			over = "yes"
		}
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.1f\t%s\t%s\t%s\n",
			day.Date, len(day.Records), day.Energy, day.Sugar, over, day.Mood, day.Tip)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nTotal: %.0f kcal (%.0f%% DV), sugar %.1f g (%.0f%% DV), limit %.0f g/day\n",
		d.Totals.Energy, d.PercentDaily.Energy, d.Totals.Sugar, d.PercentDaily.Sugar, d.SugarLimit)
	return nil
}
