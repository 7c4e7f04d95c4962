package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/vendor-research/internal/model"
)

// ErrNotFound is returned by Get and Update operations when no row matches.
var ErrNotFound = eris.New("store: not found")

// VendorOrder selects the ordering of ListVendors.
type VendorOrder string

const (
	// OrderCreated lists oldest first, the order the keep-oldest sweep needs.
	OrderCreated VendorOrder = "created_at"
	// OrderRating lists highest rated first; unrated vendors sort last.
	OrderRating VendorOrder = "rating"
)

// VendorFilter specifies criteria for listing vendors.
type VendorFilter struct {
	ProjectID  string             `json:"project_id"`
	CategoryID string             `json:"category_id,omitempty"`
	Status     model.VendorStatus `json:"status,omitempty"`
	Order      VendorOrder        `json:"order,omitempty"`
	Limit      int                `json:"limit,omitempty"`
}

// StagingFilter specifies criteria for listing staging records.
type StagingFilter struct {
	ProjectID string              `json:"project_id,omitempty"`
	Status    model.StagingStatus `json:"status,omitempty"`
	Limit     int                 `json:"limit,omitempty"`
}

// Store defines the persistence interface for vendor research.
type Store interface {
	// Projects
	GetProject(ctx context.Context, id string) (*model.Project, error)
	CreateProject(ctx context.Context, p *model.Project) error

	// Categories
	FindCategory(ctx context.Context, name, phase string) (*model.VendorCategory, error)
	CreateCategory(ctx context.Context, cat *model.VendorCategory) error
	GetCategory(ctx context.Context, id string) (*model.VendorCategory, error)
	ListCategories(ctx context.Context, phase string) ([]model.VendorCategory, error)
	UpsertCategories(ctx context.Context, cats []model.VendorCategory) (int64, error)

	// Vendors
	ListVendors(ctx context.Context, filter VendorFilter) ([]model.Vendor, error)
	InsertVendors(ctx context.Context, vendors []model.Vendor) ([]model.Vendor, error)
	UpdateVendorStatus(ctx context.Context, id string, status model.VendorStatus) error
	DeleteVendors(ctx context.Context, ids []string) (int64, error)

	// Staging
	CreateStaging(ctx context.Context, rec *model.StagingRecord) error
	UpdateStaging(ctx context.Context, rec *model.StagingRecord) error
	GetStaging(ctx context.Context, id string) (*model.StagingRecord, error)
	ListStaging(ctx context.Context, filter StagingFilter) ([]model.StagingRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// vendorColumns is the column order shared by inserts and selects.
var vendorColumns = []string{
	"id", "project_id", "category_id",
	"business_name", "contact_name", "phone", "email", "website",
	"address", "city", "state", "zip_code",
	"rating", "review_count", "cost_estimate_low", "cost_estimate_avg", "cost_estimate_high",
	"notes", "source", "status", "ai_generated", "created_at", "updated_at",
}

func vendorValues(v *model.Vendor) []any {
	return []any{
		v.ID, v.ProjectID, v.CategoryID,
		v.BusinessName, v.ContactName, v.Phone, v.Email, v.Website,
		v.Address, v.City, v.State, v.ZipCode,
		v.Rating, v.ReviewCount, v.CostEstimateLow, v.CostEstimateAvg, v.CostEstimateHigh,
		v.Notes, string(v.Source), string(v.Status), v.AIGenerated, v.CreatedAt, v.UpdatedAt,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanVendor(row scannable) (*model.Vendor, error) {
	var (
		v           model.Vendor
		source      string
		status      string
		reviewCount *int64
	)
	err := row.Scan(
		&v.ID, &v.ProjectID, &v.CategoryID,
		&v.BusinessName, &v.ContactName, &v.Phone, &v.Email, &v.Website,
		&v.Address, &v.City, &v.State, &v.ZipCode,
		&v.Rating, &reviewCount, &v.CostEstimateLow, &v.CostEstimateAvg, &v.CostEstimateHigh,
		&v.Notes, &source, &status, &v.AIGenerated, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Source = model.Source(source)
	v.Status = model.VendorStatus(status)
	if reviewCount != nil {
		v.ReviewCount = model.Ptr(int(*reviewCount))
	}
	return &v, nil
}

// prepareVendors assigns ids, timestamps and defaults before insert. Each
// vendor is stamped one microsecond after the previous one so created_at
// ordering reproduces batch order.
func prepareVendors(vendors []model.Vendor, newID func() string, now func() time.Time) []model.Vendor {
	out := make([]model.Vendor, len(vendors))
	ts := now()
	for i, v := range vendors {
		if v.ID == "" {
			v.ID = newID()
		}
		if v.Status == "" {
			v.Status = model.VendorStatusResearched
		}
		if v.Source == "" {
			v.Source = model.SourceAI
		}
		v.CreatedAt = ts.Add(time.Duration(i) * time.Microsecond)
		v.UpdatedAt = v.CreatedAt
		out[i] = v
	}
	return out
}

// vendorQuery builds the ListVendors select for the given dialect.
func vendorQuery(dialect goqu.DialectWrapper, filter VendorFilter) (string, []any, error) {
	cols := make([]any, len(vendorColumns))
	for i, c := range vendorColumns {
		cols[i] = c
	}
	ds := dialect.From("vendors").Prepared(true).Select(cols...).
		Where(goqu.Ex{"project_id": filter.ProjectID})
	if filter.CategoryID != "" {
		ds = ds.Where(goqu.Ex{"category_id": filter.CategoryID})
	}
	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"status": string(filter.Status)})
	}
	switch filter.Order {
	case OrderRating:
		ds = ds.Order(goqu.I("rating").Desc().NullsLast(), goqu.I("created_at").Asc())
	default:
		ds = ds.Order(goqu.I("created_at").Asc(), goqu.I("id").Asc())
	}
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	return ds.ToSQL()
}

const categorySelect = `SELECT id, name, category, phase, subcategory, description, typical_cost, created_at FROM vendor_categories`

func scanCategory(row scannable) (*model.VendorCategory, error) {
	var c model.VendorCategory
	err := row.Scan(&c.ID, &c.Name, &c.Category, &c.Phase, &c.Subcategory, &c.Description, &c.TypicalCost, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const stagingSelect = `SELECT id, project_id, category_name, search_query, raw_research, extracted_vendors,
	processing_status, processing_notes, created_at, processed_at FROM vendor_research_staging`

func marshalStagingPayload(rec *model.StagingRecord) (raw, extracted []byte, err error) {
	if rec.RawResearch != nil {
		if raw, err = json.Marshal(rec.RawResearch); err != nil {
			return nil, nil, eris.Wrap(err, "store: marshal raw research")
		}
	}
	if rec.ExtractedVendors != nil {
		if extracted, err = json.Marshal(rec.ExtractedVendors); err != nil {
			return nil, nil, eris.Wrap(err, "store: marshal extracted vendors")
		}
	}
	return raw, extracted, nil
}

func scanStaging(row scannable) (*model.StagingRecord, error) {
	var (
		rec       model.StagingRecord
		status    string
		raw       []byte
		extracted []byte
	)
	err := row.Scan(&rec.ID, &rec.ProjectID, &rec.CategoryName, &rec.SearchQuery, &raw, &extracted,
		&status, &rec.Notes, &rec.CreatedAt, &rec.ProcessedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = model.StagingStatus(status)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rec.RawResearch); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal raw research")
		}
	}
	if len(extracted) > 0 {
		if err := json.Unmarshal(extracted, &rec.ExtractedVendors); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal extracted vendors")
		}
	}
	return &rec, nil
}
