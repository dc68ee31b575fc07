package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eraatools/ucprep/internal/config"
	"github.com/eraatools/ucprep/internal/store"
)

var (
	runsLimit       int
	runsShowCountry string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the most recent prepared runs",
	RunE:  runRuns,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its generation units and exports",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "maximal number of runs listed")
	runsShowCmd.Flags().StringVar(&runsShowCountry, "country", "",
		"restrict listed units to one country")
	runsCmd.AddCommand(runsShowCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	log, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()
	db, err := store.Open(cfg.DatabaseFile, debugSQL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.RunMigrations(cmd.Context(), db, log); err != nil {
		return err
	}

	runs, err := store.LatestRuns(cmd.Context(), db, runsLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tPHASE\tYEAR\tCY\tCOUNTRIES\tSTATUS\tCREATED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%v\t%s\t%s\n",
			run.RunID, run.Phase, run.TargetYear, run.ClimaticYear,
			[]string(run.Countries), run.Status, run.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	log, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()
	db, err := store.Open(cfg.DatabaseFile, debugSQL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.RunMigrations(cmd.Context(), db, log); err != nil {
		return err
	}

	run, err := store.GetRun(cmd.Context(), db, args[0])
	if err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s)\n", run.RunID, run.Status)
	fmt.Fprintf(out, "Phase: %s - TY %d - CY %d - countries %v\n",
		run.Phase, run.TargetYear, run.ClimaticYear, []string(run.Countries))
	fmt.Fprintf(out, "Period: %s -> %s\n",
		run.PeriodStart.Format("2006-01-02"), run.PeriodEnd.Format("2006-01-02"))

	units := run.Units
	if runsShowCountry != "" {
		units, err = store.UnitsForCountry(cmd.Context(), db, run.ID, runsShowCountry)
		if err != nil {
			return err
		}
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UNIT\tCOUNTRY\tAGG PROD TYPE\tP NOM (MW)\tCOMMITTABLE")
	for _, unit := range units {
		pNom, committable := "-", "-"
		if unit.PNom != nil {
			pNom = fmt.Sprintf("%.1f", *unit.PNom)
		}
		if unit.Committable != nil {
			committable = fmt.Sprintf("%t", *unit.Committable)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			unit.Name, unit.Country, unit.AggProdType, pNom, committable)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(run.Exports) > 0 {
		fmt.Fprintln(out, "Exports:")
		for _, export := range run.Exports {
			fmt.Fprintf(out, "- [%s] %s (%s, %d case(s))\n",
				export.Kind, export.FileName, export.DataType, export.NCases)
		}
	}
	return nil
}
