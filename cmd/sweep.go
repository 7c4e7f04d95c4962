package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/vendor-research/internal/pipeline"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Research every catalog category of a phase for a project",
	Long:  "Runs one research invocation per category of the phase, back to back with a fixed delay between them. A failed category is reported and the sweep continues.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		req := pipeline.SweepRequest{}
		req.ProjectID, _ = cmd.Flags().GetString("project")
		req.Location, _ = cmd.Flags().GetString("location")
		req.ZipCode, _ = cmd.Flags().GetString("zip")
		req.Phase, _ = cmd.Flags().GetString("phase")
		req.CustomContext, _ = cmd.Flags().GetString("context")
		req.Categories, _ = cmd.Flags().GetStringSlice("categories")
		asJSON, _ := cmd.Flags().GetBool("json")

		delay := time.Duration(cfg.Research.SweepDelaySecs) * time.Second
		if cmd.Flags().Changed("delay") {
			delay, _ = cmd.Flags().GetDuration("delay")
		}

		env, err := initEnv(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		items, err := env.Pipeline.Sweep(ctx, req, delay, func(category string, e pipeline.Event) {
			progressPrinter(os.Stderr, category)(e)
		})
		if asJSON {
			if werr := writeJSON(os.Stdout, items); werr != nil {
				return werr
			}
		} else {
			printSweep(items)
		}
		if err != nil {
			return eris.Wrap(err, "sweep")
		}
		return nil
	},
}

func printSweep(items []pipeline.SweepItem) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tFOUND\tDUPLICATES\tINSERTED\tERROR")
	var inserted, failed int
	for _, it := range items {
		if it.Result == nil {
			failed++
			fmt.Fprintf(tw, "%s\t-\t-\t-\t%s\n", it.Category, it.Error)
			continue
		}
		inserted += it.Result.Inserted
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t\n", it.Category, it.Result.Found, it.Result.Duplicates, it.Result.Inserted)
	}
	_ = tw.Flush()
	fmt.Fprintf(os.Stdout, "\n%d categories, %d vendors inserted, %d failed\n", len(items), inserted, failed)
}

func init() {
	f := sweepCmd.Flags()
	f.String("project", "", "project id (required)")
	f.String("location", "", `"City, ST" (default: project location)`)
	f.String("zip", "", "zip code (default: project zip)")
	f.String("phase", "", "construction phase (default from config)")
	f.String("context", "", "additional requirements for every category")
	f.StringSlice("categories", nil, "limit the sweep to these category keys")
	f.Duration("delay", 0, "delay between categories (default research.sweep_delay_secs)")
	f.Bool("json", false, "print the results as JSON")
	_ = sweepCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(sweepCmd)
}
