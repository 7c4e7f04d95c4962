package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vendor-research/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_InsertVendors_RollsBackBatch(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	p, c := seedScope(t, st)

	good := testVendor(p, c, "Austin Design Group")
	bad := testVendor(p, c, "Orphan Design")
	bad.CategoryID = "no-such-category"

	_, err := st.InsertVendors(ctx, []model.Vendor{good, bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: insert vendor Orphan Design")

	vendors, err := st.ListVendors(ctx, VendorFilter{ProjectID: p.ID})
	require.NoError(t, err)
	assert.Empty(t, vendors)
}

func TestSQLite_InsertVendors_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	out, err := st.InsertVendors(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSQLite_CreateCategory_DuplicateNamePhase(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateCategory(ctx, &model.VendorCategory{Name: "Plumber", Phase: "construction"}))
	err := st.CreateCategory(ctx, &model.VendorCategory{Name: "Plumber", Phase: "construction"})
	require.Error(t, err)

	require.NoError(t, st.CreateCategory(ctx, &model.VendorCategory{Name: "Plumber", Phase: "finishing"}))
}

func TestSQLite_ReviewCountCheck(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	p, c := seedScope(t, st)

	v := testVendor(p, c, "Negative Reviews Inc")
	v.ReviewCount = model.Ptr(-1)
	_, err := st.InsertVendors(ctx, []model.Vendor{v})
	require.Error(t, err)
}

func TestSQLite_UpsertCategories_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	n, err := st.UpsertCategories(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
