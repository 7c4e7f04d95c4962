package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // registers the postgres dialect
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/vendor-research/internal/db"
	"github.com/sells-group/vendor-research/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	dialect goqu.DialectWrapper
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresStore(pool, pool.Close), nil
}

func newPostgresStore(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: closeFn, dialect: goqu.Dialect("postgres")}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL,
	location   TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	zip_code   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS vendor_categories (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name         TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	phase        TEXT NOT NULL,
	subcategory  TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	typical_cost TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (name, phase)
);

CREATE TABLE IF NOT EXISTS vendors (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project_id         TEXT NOT NULL REFERENCES projects(id),
	category_id        TEXT NOT NULL REFERENCES vendor_categories(id),
	business_name      TEXT NOT NULL,
	contact_name       TEXT NOT NULL DEFAULT '',
	phone              TEXT NOT NULL DEFAULT '',
	email              TEXT NOT NULL DEFAULT '',
	website            TEXT NOT NULL DEFAULT '',
	address            TEXT NOT NULL DEFAULT '',
	city               TEXT NOT NULL DEFAULT '',
	state              TEXT NOT NULL DEFAULT '',
	zip_code           TEXT NOT NULL DEFAULT '',
	rating             DOUBLE PRECISION,
	review_count       INTEGER CHECK (review_count >= 0),
	cost_estimate_low  DOUBLE PRECISION,
	cost_estimate_avg  DOUBLE PRECISION,
	cost_estimate_high DOUBLE PRECISION,
	notes              TEXT NOT NULL DEFAULT '',
	source             TEXT NOT NULL DEFAULT 'ai',
	status             TEXT NOT NULL DEFAULT 'researched',
	ai_generated       BOOLEAN NOT NULL DEFAULT false,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_vendors_scope ON vendors(project_id, category_id, created_at);
CREATE INDEX IF NOT EXISTS idx_vendors_rating ON vendors(project_id, rating DESC NULLS LAST);

CREATE TABLE IF NOT EXISTS vendor_research_staging (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project_id        TEXT NOT NULL,
	category_name     TEXT NOT NULL,
	search_query      TEXT NOT NULL DEFAULT '',
	raw_research      JSONB,
	extracted_vendors JSONB,
	processing_status TEXT NOT NULL DEFAULT 'starting',
	processing_notes  TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_staging_project ON vendor_research_staging(project_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_staging_status ON vendor_research_staging(processing_status);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- projects ---

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, location, city, state, zip_code FROM projects WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Location, &p.City, &p.State, &p.ZipCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get project %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get project %s", id)
	}
	return &p, nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *model.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, name, location, city, state, zip_code, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Name, p.Location, p.City, p.State, p.ZipCode, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: insert project %s", p.Name)
}

// --- categories ---

// FindCategory returns nil, nil when no category matches.
func (s *PostgresStore) FindCategory(ctx context.Context, name, phase string) (*model.VendorCategory, error) {
	c, err := scanCategory(s.pool.QueryRow(ctx, categorySelect+` WHERE name = $1 AND phase = $2`, name, phase))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find category %s", name)
	}
	return c, nil
}

func (s *PostgresStore) CreateCategory(ctx context.Context, cat *model.VendorCategory) error {
	if cat.ID == "" {
		cat.ID = uuid.New().String()
	}
	cat.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO vendor_categories (id, name, category, phase, subcategory, description, typical_cost, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		cat.ID, cat.Name, cat.Category, cat.Phase, cat.Subcategory, cat.Description, cat.TypicalCost, cat.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert category %s", cat.Name)
}

func (s *PostgresStore) GetCategory(ctx context.Context, id string) (*model.VendorCategory, error) {
	c, err := scanCategory(s.pool.QueryRow(ctx, categorySelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get category %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get category %s", id)
	}
	return c, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context, phase string) ([]model.VendorCategory, error) {
	query := categorySelect
	var args []any
	if phase != "" {
		query += ` WHERE phase = $1`
		args = append(args, phase)
	}
	query += ` ORDER BY phase, name`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list categories")
	}
	defer rows.Close()

	var cats []model.VendorCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan category")
		}
		cats = append(cats, *c)
	}
	return cats, eris.Wrap(rows.Err(), "postgres: list categories iterate")
}

// UpsertCategories inserts catalog categories, refreshing descriptive
// columns of rows that already exist. Existing ids are preserved.
func (s *PostgresStore) UpsertCategories(ctx context.Context, cats []model.VendorCategory) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(cats))
	for _, c := range cats {
		id := c.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows = append(rows, []any{id, c.Name, c.Category, c.Phase, c.Subcategory, c.Description, c.TypicalCost, now})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.Upsert{
		Table:    "vendor_categories",
		Columns:  []string{"id", "name", "category", "phase", "subcategory", "description", "typical_cost", "created_at"},
		Conflict: []string{"name", "phase"},
		Update:   []string{"category", "subcategory", "description", "typical_cost"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert categories")
}

// --- vendors ---

func (s *PostgresStore) ListVendors(ctx context.Context, filter VendorFilter) ([]model.Vendor, error) {
	query, args, err := vendorQuery(s.dialect, filter)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build vendor query")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list vendors for project %s", filter.ProjectID)
	}
	defer rows.Close()

	vendors := []model.Vendor{}
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan vendor")
		}
		vendors = append(vendors, *v)
	}
	return vendors, eris.Wrap(rows.Err(), "postgres: list vendors iterate")
}

// InsertVendors copies the batch inside one transaction: either every
// vendor is stored or none is.
func (s *PostgresStore) InsertVendors(ctx context.Context, vendors []model.Vendor) ([]model.Vendor, error) {
	if len(vendors) == 0 {
		return []model.Vendor{}, nil
	}
	prepared := prepareVendors(vendors, uuid.NewString, func() time.Time { return time.Now().UTC() })

	rows := make([][]any, len(prepared))
	for i := range prepared {
		rows[i] = vendorValues(&prepared[i])
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert vendors: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := db.CopyFrom(ctx, tx, "vendors", vendorColumns, rows); err != nil {
		return nil, eris.Wrap(err, "postgres: insert vendors")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: insert vendors: commit tx")
	}
	return prepared, nil
}

func (s *PostgresStore) UpdateVendorStatus(ctx context.Context, id string, status model.VendorStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE vendors SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update vendor status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: vendor %s", id)
	}
	return nil
}

func (s *PostgresStore) DeleteVendors(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM vendors WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete %d vendors", len(ids))
	}
	return tag.RowsAffected(), nil
}

// --- staging ---

func (s *PostgresStore) CreateStaging(ctx context.Context, rec *model.StagingRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = model.StagingStarting
	}
	rec.CreatedAt = time.Now().UTC()

	raw, extracted, err := marshalStagingPayload(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO vendor_research_staging
		 (id, project_id, category_name, search_query, raw_research, extracted_vendors, processing_status, processing_notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.ProjectID, rec.CategoryName, rec.SearchQuery, raw, extracted,
		string(rec.Status), rec.Notes, rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert staging for project %s", rec.ProjectID)
}

func (s *PostgresStore) UpdateStaging(ctx context.Context, rec *model.StagingRecord) error {
	raw, extracted, err := marshalStagingPayload(rec)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE vendor_research_staging
		 SET raw_research = $1, extracted_vendors = $2, processing_status = $3, processing_notes = $4, processed_at = $5
		 WHERE id = $6`,
		raw, extracted, string(rec.Status), rec.Notes, rec.ProcessedAt, rec.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update staging %s", rec.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: staging %s", rec.ID)
	}
	return nil
}

func (s *PostgresStore) GetStaging(ctx context.Context, id string) (*model.StagingRecord, error) {
	rec, err := scanStaging(s.pool.QueryRow(ctx, stagingSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get staging %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get staging %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListStaging(ctx context.Context, filter StagingFilter) ([]model.StagingRecord, error) {
	query := stagingSelect + ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ProjectID != "" {
		query += fmt.Sprintf(` AND project_id = $%d`, argIdx)
		args = append(args, filter.ProjectID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND processing_status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list staging")
	}
	defer rows.Close()

	var recs []model.StagingRecord
	for rows.Next() {
		rec, err := scanStaging(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan staging")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list staging iterate")
}
