package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/vendor-research/internal/catalog"
	"github.com/sells-group/vendor-research/internal/extract"
	"github.com/sells-group/vendor-research/internal/model"
	"github.com/sells-group/vendor-research/internal/research"
	"github.com/sells-group/vendor-research/internal/store"
)

const austinResearch = `Here are qualified architects in the Austin, TX area:

1. **Barton Creek Architects**
Phone: (512) 555-0101
Address: 100 Congress Ave, Austin, TX 78701
Rating: 4.8 (56 reviews)

2. **Hill Country Design Studio**
Phone: 512-555-0202
Email: info@hillcountrydesign.example

3. **Barton Creek Architecture Group**
Phone: 512.555.0101
Website: https://bartoncreek.example
`

type stubResearcher struct {
	text  string
	err   error
	fail  map[string]error
	calls []research.Query
}

func (s *stubResearcher) Name() string { return "stub" }

func (s *stubResearcher) Research(_ context.Context, q research.Query) (*research.Output, error) {
	s.calls = append(s.calls, q)
	if err := s.fail[q.Category]; err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return &research.Output{Provider: "stub", Text: s.text}, nil
}

// failInsertStore fails every InsertVendors call.
type failInsertStore struct {
	store.Store
	err error
}

func (f failInsertStore) InsertVendors(context.Context, []model.Vendor) ([]model.Vendor, error) {
	return nil, f.err
}

// failListStore fails every ListVendors call.
type failListStore struct {
	store.Store
	err error
}

func (f failListStore) ListVendors(context.Context, store.VendorFilter) ([]model.Vendor, error) {
	return nil, f.err
}

// failStagingStore fails UpdateStaging for records reaching status.
type failStagingStore struct {
	store.Store
	status model.StagingStatus
	err    error
}

func (f failStagingStore) UpdateStaging(ctx context.Context, rec *model.StagingRecord) error {
	if rec.Status == f.status {
		return f.err
	}
	return f.Store.UpdateStaging(ctx, rec)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "vendors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedProject(t *testing.T, s store.Store) *model.Project {
	t.Helper()
	p := &model.Project{Name: "Lakeside Residence", Location: "Austin, TX", City: "Austin", State: "TX", ZipCode: "78701"}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func fallbackExtractor() extract.Strategy {
	return extract.NewChain(nil, extract.NewFallbackStrategy())
}

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

// collect records every emitted event.
type collect struct {
	events []Event
}

func (c *collect) emit(e Event) { c.events = append(c.events, e) }

func (c *collect) terminal() []Event {
	var out []Event
	for _, e := range c.events {
		if e.Terminal() {
			out = append(out, e)
		}
	}
	return out
}
