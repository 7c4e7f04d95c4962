// Package export writes a project's vendors to a spreadsheet.
package export

import (
	"cmp"
	"context"
	"io"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/vendor-research/internal/model"
	"github.com/sells-group/vendor-research/internal/store"
)

// SheetName is the worksheet vendors are written to.
const SheetName = "Vendors"

// Header is the first row of the vendor sheet.
var Header = []string{
	"Category", "Business Name", "Contact", "Phone", "Email", "Website",
	"Address", "City", "State", "Zip", "Rating", "Reviews",
	"Cost Low", "Cost Avg", "Cost High", "Status", "Source", "AI Generated", "Created",
}

// WriteVendors writes vendors as one sheet to w. categories maps category ids
// to display names; unknown ids are written as-is.
func WriteVendors(w io.Writer, vendors []model.Vendor, categories map[string]string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	row := sheet.AddRow()
	for _, h := range Header {
		row.AddCell().SetString(h)
	}

	for i := range vendors {
		v := &vendors[i]
		category, ok := categories[v.CategoryID]
		if !ok {
			category = v.CategoryID
		}

		row := sheet.AddRow()
		for _, s := range []string{
			category, v.BusinessName, v.ContactName, v.Phone, v.Email, v.Website,
			v.Address, v.City, v.State, v.ZipCode,
		} {
			row.AddCell().SetString(s)
		}
		floatCell(row, v.Rating)
		if v.ReviewCount != nil {
			row.AddCell().SetInt(*v.ReviewCount)
		} else {
			row.AddCell()
		}
		floatCell(row, v.CostEstimateLow)
		floatCell(row, v.CostEstimateAvg)
		floatCell(row, v.CostEstimateHigh)
		row.AddCell().SetString(string(v.Status))
		row.AddCell().SetString(string(v.Source))
		row.AddCell().SetBool(v.AIGenerated)
		if v.CreatedAt.IsZero() {
			row.AddCell()
		} else {
			row.AddCell().SetString(v.CreatedAt.UTC().Format(time.RFC3339))
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

func floatCell(row *xlsx.Row, v *float64) {
	c := row.AddCell()
	if v != nil {
		c.SetFloat(*v)
	}
}

// ProjectVendors writes every vendor of a project, optionally limited to one
// category, ordered by category then creation time. It returns the number of
// vendors written.
func ProjectVendors(ctx context.Context, st store.Store, projectID, categoryID string, w io.Writer) (int, error) {
	if projectID == "" {
		return 0, eris.New("export: project id is required")
	}
	vendors, err := st.ListVendors(ctx, store.VendorFilter{
		ProjectID:  projectID,
		CategoryID: categoryID,
		Order:      store.OrderCreated,
	})
	if err != nil {
		return 0, eris.Wrap(err, "export: list vendors")
	}

	cats, err := st.ListCategories(ctx, "")
	if err != nil {
		return 0, eris.Wrap(err, "export: list categories")
	}
	names := make(map[string]string, len(cats))
	order := make(map[string]int, len(cats))
	for i, c := range cats {
		names[c.ID] = c.Name
		order[c.ID] = i
	}
	sortByCategory(vendors, order)

	if err := WriteVendors(w, vendors, names); err != nil {
		return 0, err
	}
	return len(vendors), nil
}

// sortByCategory groups vendors by category position, keeping the store's
// order within a category.
func sortByCategory(vendors []model.Vendor, order map[string]int) {
	slices.SortStableFunc(vendors, func(a, b model.Vendor) int {
		return cmp.Compare(order[a.CategoryID], order[b.CategoryID])
	})
}
