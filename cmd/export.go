package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/vendor-research/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a project's vendors to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		projectID, _ := cmd.Flags().GetString("project")
		categoryID, _ := cmd.Flags().GetString("category-id")
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = fmt.Sprintf("vendors-%s.xlsx", projectID)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		f, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", out)
		}
		n, err := export.ProjectVendors(ctx, st, projectID, categoryID, f)
		if cerr := f.Close(); err == nil && cerr != nil {
			err = eris.Wrapf(cerr, "export: close %s", out)
		}
		if err != nil {
			_ = os.Remove(out)
			return err
		}

		fmt.Fprintf(os.Stdout, "Wrote %d vendors to %s\n", n, out)
		return nil
	},
}

func init() {
	f := exportCmd.Flags()
	f.String("project", "", "project id (required)")
	f.String("category-id", "", "limit to one category")
	f.StringP("out", "o", "", "output path (default vendors-<project>.xlsx)")
	_ = exportCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(exportCmd)
}
