package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vendor-research/internal/catalog"
	"github.com/sells-group/vendor-research/internal/model"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		zap.L().Info("store migrated", zap.String("driver", cfg.Store.Driver))

		seed, _ := cmd.Flags().GetBool("seed-categories")
		if !seed {
			return nil
		}

		c, err := catalog.Load(cfg.Research.CatalogPath)
		if err != nil {
			return err
		}
		cats := catalogCategories(c)
		n, err := st.UpsertCategories(ctx, cats)
		if err != nil {
			return eris.Wrap(err, "migrate: seed categories")
		}
		fmt.Fprintf(os.Stdout, "Upserted %d catalog categories (%d rows affected)\n", len(cats), n)
		return nil
	},
}

// catalogCategories flattens every phase of c into vendor categories.
func catalogCategories(c *catalog.Catalog) []model.VendorCategory {
	var out []model.VendorCategory
	for i := range c.Phases {
		p := &c.Phases[i]
		for _, cat := range p.Categories() {
			out = append(out, cat.VendorCategory(p.Name))
		}
	}
	return out
}

func init() {
	migrateCmd.Flags().Bool("seed-categories", false, "insert the catalog's categories")
	rootCmd.AddCommand(migrateCmd)
}
