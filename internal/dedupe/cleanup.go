package dedupe

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vendor-research/internal/model"
	"github.com/sells-group/vendor-research/internal/store"
)

// VendorStore is the slice of store.Store that Cleanup needs.
type VendorStore interface {
	GetCategory(ctx context.Context, id string) (*model.VendorCategory, error)
	ListVendors(ctx context.Context, filter store.VendorFilter) ([]model.Vendor, error)
	DeleteVendors(ctx context.Context, ids []string) (int64, error)
}

// CleanupRequest selects the scope to sweep. With an empty CategoryID every
// category of the project is swept, each on its own.
type CleanupRequest struct {
	ProjectID  string `json:"project_id"`
	CategoryID string `json:"category_id,omitempty"`
	DryRun     bool   `json:"dry_run"`
}

// Flagged is a vendor selected for removal.
type Flagged struct {
	ID           string `json:"id"`
	BusinessName string `json:"business_name"`
	Reason       Reason `json:"reason"`
	MatchedID    string `json:"matched_id,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Address      string `json:"address,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// CleanupResult reports what Cleanup found and, outside dry runs, removed.
type CleanupResult struct {
	DryRun          bool      `json:"dry_run"`
	DuplicatesFound int       `json:"duplicates_found"`
	BuildersFound   int       `json:"builders_found"`
	TotalToRemove   int       `json:"total_to_remove"`
	Removed         int64     `json:"total_removed"`
	Duplicates      []Flagged `json:"duplicates"`
	Builders        []Flagged `json:"builders"`
	Message         string    `json:"message"`
}

// Cleanup sweeps a (project, category) scope for duplicates, keeping the
// oldest vendor of each group, and for builders listed under an architect
// category. Outside a dry run the flagged vendors are deleted.
func Cleanup(ctx context.Context, s VendorStore, req CleanupRequest) (*CleanupResult, error) {
	if req.ProjectID == "" {
		return nil, eris.New("dedupe: project id is required")
	}
	log := zap.L().With(
		zap.String("project_id", req.ProjectID),
		zap.String("category_id", req.CategoryID),
		zap.Bool("dry_run", req.DryRun),
	)

	vendors, err := s.ListVendors(ctx, store.VendorFilter{
		ProjectID:  req.ProjectID,
		CategoryID: req.CategoryID,
		Order:      store.OrderCreated,
	})
	if err != nil {
		return nil, eris.Wrap(err, "dedupe: load vendors")
	}

	res := &CleanupResult{DryRun: req.DryRun, Duplicates: []Flagged{}, Builders: []Flagged{}}
	if len(vendors) == 0 {
		res.Message = "No vendors found to deduplicate"
		return res, nil
	}

	for _, group := range byCategory(vendors, req.CategoryID) {
		for _, d := range FindDuplicates(group.vendors) {
			f := flag(d.Vendor, d.Reason)
			f.MatchedID = d.MatchedID
			res.Duplicates = append(res.Duplicates, f)
		}

		if group.categoryID == "" {
			continue
		}
		cat, err := s.GetCategory(ctx, group.categoryID)
		if err != nil {
			return nil, eris.Wrapf(err, "dedupe: load category %s", group.categoryID)
		}
		if !isArchitectCategory(cat.Name) {
			continue
		}
		for _, v := range group.vendors {
			if IsBuilderNotArchitect(v.BusinessName, v.Notes) {
				res.Builders = append(res.Builders, flag(v, ReasonBuilder))
			}
		}
	}

	res.DuplicatesFound = len(res.Duplicates)
	res.BuildersFound = len(res.Builders)
	ids := removalIDs(res.Duplicates, res.Builders)
	res.TotalToRemove = len(ids)

	log.Info("dedupe: scope analyzed",
		zap.Int("vendors", len(vendors)),
		zap.Int("duplicates", res.DuplicatesFound),
		zap.Int("builders", res.BuildersFound),
	)

	if req.DryRun {
		res.Message = fmt.Sprintf("Found %d vendors to remove (%d duplicates, %d builders)",
			res.TotalToRemove, res.DuplicatesFound, res.BuildersFound)
		return res, nil
	}

	if len(ids) > 0 {
		n, err := s.DeleteVendors(ctx, ids)
		if err != nil {
			return nil, eris.Wrap(err, "dedupe: delete vendors")
		}
		res.Removed = n
	}
	res.Message = fmt.Sprintf("Successfully removed %d vendors (%d duplicates, %d builders)",
		res.Removed, res.DuplicatesFound, res.BuildersFound)
	log.Info("dedupe: vendors removed", zap.Int64("removed", res.Removed))
	return res, nil
}

type categoryGroup struct {
	categoryID string
	vendors    []model.Vendor
}

// byCategory splits vendors into dedupe scopes in first-seen order. When
// categoryID is set the store already filtered on it and there is one scope.
func byCategory(vendors []model.Vendor, categoryID string) []categoryGroup {
	if categoryID != "" {
		return []categoryGroup{{categoryID: categoryID, vendors: vendors}}
	}
	index := make(map[string]int)
	var groups []categoryGroup
	for _, v := range vendors {
		i, ok := index[v.CategoryID]
		if !ok {
			i = len(groups)
			index[v.CategoryID] = i
			groups = append(groups, categoryGroup{categoryID: v.CategoryID})
		}
		groups[i].vendors = append(groups[i].vendors, v)
	}
	return groups
}

func flag(v model.Vendor, reason Reason) Flagged {
	return Flagged{
		ID:           v.ID,
		BusinessName: v.BusinessName,
		Reason:       reason,
		Phone:        v.Phone,
		Email:        v.Email,
		Address:      v.Address,
		Notes:        v.Notes,
	}
}

// removalIDs merges both lists; a vendor flagged twice is removed once.
func removalIDs(lists ...[]Flagged) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, list := range lists {
		for _, f := range list {
			if _, ok := seen[f.ID]; ok {
				continue
			}
			seen[f.ID] = struct{}{}
			ids = append(ids, f.ID)
		}
	}
	return ids
}
