package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/vendor-research/internal/dedupe"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Find and remove duplicate vendors of a project",
	Long:  "Keeps the oldest vendor of each duplicate group. In architect categories, builders and contractors are flagged as well. Nothing is deleted unless --dry-run=false.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		req := dedupe.CleanupRequest{}
		req.ProjectID, _ = cmd.Flags().GetString("project")
		req.CategoryID, _ = cmd.Flags().GetString("category-id")
		req.DryRun, _ = cmd.Flags().GetBool("dry-run")
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := dedupe.Cleanup(ctx, st, req)
		if err != nil {
			return eris.Wrap(err, "dedupe")
		}

		if asJSON {
			return writeJSON(os.Stdout, res)
		}

		flagged := append(append([]dedupe.Flagged{}, res.Duplicates...), res.Builders...)
		if len(flagged) > 0 {
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tREASON\tKEEPS")
			for _, f := range flagged {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.ID, f.BusinessName, f.Reason, f.MatchedID)
			}
			_ = tw.Flush()
		}
		fmt.Fprintln(os.Stdout, res.Message)
		return nil
	},
}

func init() {
	f := dedupeCmd.Flags()
	f.String("project", "", "project id (required)")
	f.String("category-id", "", "limit to one category (enables the builder check)")
	f.Bool("dry-run", true, "report without deleting")
	f.Bool("json", false, "print the result as JSON")
	_ = dedupeCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(dedupeCmd)
}
