package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/vendor-research/internal/model"
	"github.com/sells-group/vendor-research/internal/pipeline"
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Research vendors of one category for a project",
	Example: `  vendor-research research --project p-123 --category architects --location "Austin, TX" --zip 78701
  vendor-research research --project p-123 --category engineers --specialization structural --json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		req := pipeline.Request{}
		req.ProjectID, _ = cmd.Flags().GetString("project")
		req.CategoryName, _ = cmd.Flags().GetString("category")
		req.CategoryID, _ = cmd.Flags().GetString("category-id")
		req.Location, _ = cmd.Flags().GetString("location")
		req.ZipCode, _ = cmd.Flags().GetString("zip")
		req.Specialization, _ = cmd.Flags().GetString("specialization")
		req.CustomContext, _ = cmd.Flags().GetString("context")
		req.Phase, _ = cmd.Flags().GetString("phase")
		asJSON, _ := cmd.Flags().GetBool("json")

		if req.CategoryName == "" && req.CategoryID == "" {
			return eris.New("research: --category or --category-id is required")
		}

		env, err := initEnv(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Run(ctx, req, progressPrinter(os.Stderr, ""))
		if err != nil {
			return eris.Wrap(err, "research")
		}

		if asJSON {
			return writeJSON(os.Stdout, res)
		}
		fmt.Fprintln(os.Stdout, res.Message())
		printVendors(os.Stdout, res.Vendors)
		return nil
	},
}

// progressPrinter writes one line per pipeline event. prefix tags the lines
// of a sweep with the category.
func progressPrinter(w io.Writer, prefix string) pipeline.EmitFunc {
	return func(e pipeline.Event) {
		if prefix != "" {
			fmt.Fprintf(w, "[%s] ", prefix)
		}
		fmt.Fprintf(w, "%3d%% %-12s %s\n", e.Progress, e.Stage, e.Message)
	}
}

func printVendors(w io.Writer, vendors []model.Vendor) {
	if len(vendors) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPHONE\tCITY\tRATING")
	for _, v := range vendors {
		rating := "-"
		if v.Rating != nil {
			rating = fmt.Sprintf("%.1f", *v.Rating)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.ID, v.BusinessName, v.Phone, v.City, rating)
	}
	_ = tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	f := researchCmd.Flags()
	f.String("project", "", "project id (required)")
	f.String("category", "", "category name or catalog key")
	f.String("category-id", "", "existing category id")
	f.String("location", "", `"City, ST" (default: project location)`)
	f.String("zip", "", "zip code (default: project zip)")
	f.String("specialization", "", "specialization value or label")
	f.String("context", "", "additional requirements")
	f.String("phase", "", "construction phase (default from config)")
	f.Bool("json", false, "print the result as JSON")
	_ = researchCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(researchCmd)
}
