package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/vendor-research/internal/model"
	"github.com/sells-group/vendor-research/internal/store"
)

var stagingCmd = &cobra.Command{
	Use:   "staging",
	Short: "Inspect research staging records",
	Long:  "Every research invocation leaves a staging record with its query, raw research, extracted vendors and final status.",
}

// -- staging list --

var stagingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List staging records, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		project, _ := cmd.Flags().GetString("project")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		recs, err := st.ListStaging(ctx, store.StagingFilter{
			ProjectID: project,
			Status:    model.StagingStatus(status),
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "staging list")
		}

		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No staging records found.")
			return nil
		}
		printStagingTable(os.Stdout, recs)
		return nil
	},
}

func printStagingTable(w io.Writer, recs []model.StagingRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROJECT\tCATEGORY\tSTATUS\tVENDORS\tCREATED\tNOTES")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.ProjectID, r.CategoryName, r.Status, len(r.ExtractedVendors),
			r.CreatedAt.Format(time.DateTime), truncate(r.Notes, 60))
	}
	_ = tw.Flush()
}

// -- staging show --

var stagingShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one staging record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetStaging(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "staging show")
		}
		return writeJSON(os.Stdout, rec)
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	stagingListCmd.Flags().String("project", "", "filter by project id")
	stagingListCmd.Flags().String("status", "", "filter by status (e.g. failed, completed)")
	stagingListCmd.Flags().Int("limit", 20, "maximum records to show")

	stagingCmd.AddCommand(stagingListCmd, stagingShowCmd)
	rootCmd.AddCommand(stagingCmd)
}
