package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // registers the sqlite3 dialect
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/vendor-research/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db      *sql.DB
	dialect goqu.DialectWrapper
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, dialect: goqu.Dialect("sqlite3")}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	location   TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	zip_code   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS vendor_categories (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	phase        TEXT NOT NULL,
	subcategory  TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	typical_cost TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (name, phase)
);

CREATE TABLE IF NOT EXISTS vendors (
	id                 TEXT PRIMARY KEY,
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
	rating             REAL,
	review_count       INTEGER CHECK (review_count >= 0),
	cost_estimate_low  REAL,
	cost_estimate_avg  REAL,
	cost_estimate_high REAL,
	notes              TEXT NOT NULL DEFAULT '',
	source             TEXT NOT NULL DEFAULT 'ai',
	status             TEXT NOT NULL DEFAULT 'researched',
	ai_generated       BOOLEAN NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_vendors_scope ON vendors(project_id, category_id, created_at);

CREATE TABLE IF NOT EXISTS vendor_research_staging (
	id                TEXT PRIMARY KEY,
	project_id        TEXT NOT NULL,
	category_name     TEXT NOT NULL,
	search_query      TEXT NOT NULL DEFAULT '',
	raw_research      TEXT,
	extracted_vendors TEXT,
	processing_status TEXT NOT NULL DEFAULT 'starting',
	processing_notes  TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	processed_at      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_staging_project ON vendor_research_staging(project_id, created_at);
CREATE INDEX IF NOT EXISTS idx_staging_status ON vendor_research_staging(processing_status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- projects ---

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, location, city, state, zip_code FROM projects WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.Name, &p.Location, &p.City, &p.State, &p.ZipCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get project %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get project %s", id)
	}
	return &p, nil
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p *model.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, location, city, state, zip_code, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Location, p.City, p.State, p.ZipCode, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert project %s", p.Name)
}

// --- categories ---

// FindCategory returns nil, nil when no category matches.
func (s *SQLiteStore) FindCategory(ctx context.Context, name, phase string) (*model.VendorCategory, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx, categorySelect+` WHERE name = ? AND phase = ?`, name, phase))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find category %s", name)
	}
	return c, nil
}

func (s *SQLiteStore) CreateCategory(ctx context.Context, cat *model.VendorCategory) error {
	if cat.ID == "" {
		cat.ID = uuid.New().String()
	}
	cat.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vendor_categories (id, name, category, phase, subcategory, description, typical_cost, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cat.ID, cat.Name, cat.Category, cat.Phase, cat.Subcategory, cat.Description, cat.TypicalCost, cat.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert category %s", cat.Name)
}

func (s *SQLiteStore) GetCategory(ctx context.Context, id string) (*model.VendorCategory, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx, categorySelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get category %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get category %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) ListCategories(ctx context.Context, phase string) ([]model.VendorCategory, error) {
	query := categorySelect
	var args []any
	if phase != "" {
		query += ` WHERE phase = ?`
		args = append(args, phase)
	}
	query += ` ORDER BY phase, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list categories")
	}
	defer rows.Close()

	var cats []model.VendorCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan category")
		}
		cats = append(cats, *c)
	}
	return cats, eris.Wrap(rows.Err(), "sqlite: list categories iterate")
}

// UpsertCategories inserts catalog categories, refreshing descriptive
// columns of rows that already exist. Existing ids are preserved.
func (s *SQLiteStore) UpsertCategories(ctx context.Context, cats []model.VendorCategory) (int64, error) {
	if len(cats) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert categories: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vendor_categories (id, name, category, phase, subcategory, description, typical_cost, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name, phase) DO UPDATE SET
		   category = excluded.category,
		   subcategory = excluded.subcategory,
		   description = excluded.description,
		   typical_cost = excluded.typical_cost`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert categories: prepare")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for _, c := range cats {
		id := c.ID
		if id == "" {
			id = uuid.New().String()
		}
		res, err := stmt.ExecContext(ctx, id, c.Name, c.Category, c.Phase, c.Subcategory, c.Description, c.TypicalCost, now)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert category %s", c.Name)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert categories: commit tx")
	}
	return n, nil
}

// --- vendors ---

func (s *SQLiteStore) ListVendors(ctx context.Context, filter VendorFilter) ([]model.Vendor, error) {
	query, args, err := vendorQuery(s.dialect, filter)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build vendor query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list vendors for project %s", filter.ProjectID)
	}
	defer rows.Close()

	vendors := []model.Vendor{}
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vendor")
		}
		vendors = append(vendors, *v)
	}
	return vendors, eris.Wrap(rows.Err(), "sqlite: list vendors iterate")
}

// InsertVendors writes the batch inside one transaction: either every
// vendor is stored or none is.
func (s *SQLiteStore) InsertVendors(ctx context.Context, vendors []model.Vendor) ([]model.Vendor, error) {
	if len(vendors) == 0 {
		return []model.Vendor{}, nil
	}
	prepared := prepareVendors(vendors, uuid.NewString, func() time.Time { return time.Now().UTC() })

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert vendors: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(vendorColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vendors (`+strings.Join(vendorColumns, ", ")+`) VALUES (`+placeholders+`)`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert vendors: prepare")
	}
	defer stmt.Close()

	for i := range prepared {
		if _, err := stmt.ExecContext(ctx, vendorValues(&prepared[i])...); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert vendor %s", prepared[i].BusinessName)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert vendors: commit tx")
	}
	return prepared, nil
}

func (s *SQLiteStore) UpdateVendorStatus(ctx context.Context, id string, status model.VendorStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vendors SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update vendor status %s", id)
	}
	return checkRowsAffected(res, "vendor", id)
}

func (s *SQLiteStore) DeleteVendors(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := s.dialect.Delete("vendors").Prepared(true).Where(goqu.Ex{"id": ids}).ToSQL()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: build delete query")
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete %d vendors", len(ids))
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

// --- staging ---

func (s *SQLiteStore) CreateStaging(ctx context.Context, rec *model.StagingRecord) error {
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vendor_research_staging
		 (id, project_id, category_name, search_query, raw_research, extracted_vendors, processing_status, processing_notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProjectID, rec.CategoryName, rec.SearchQuery, nullableJSON(raw), nullableJSON(extracted),
		string(rec.Status), rec.Notes, rec.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert staging for project %s", rec.ProjectID)
}

func (s *SQLiteStore) UpdateStaging(ctx context.Context, rec *model.StagingRecord) error {
	raw, extracted, err := marshalStagingPayload(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE vendor_research_staging
		 SET raw_research = ?, extracted_vendors = ?, processing_status = ?, processing_notes = ?, processed_at = ?
		 WHERE id = ?`,
		nullableJSON(raw), nullableJSON(extracted), string(rec.Status), rec.Notes, rec.ProcessedAt, rec.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update staging %s", rec.ID)
	}
	return checkRowsAffected(res, "staging", rec.ID)
}

func (s *SQLiteStore) GetStaging(ctx context.Context, id string) (*model.StagingRecord, error) {
	rec, err := scanStaging(s.db.QueryRowContext(ctx, stagingSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get staging %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get staging %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) ListStaging(ctx context.Context, filter StagingFilter) ([]model.StagingRecord, error) {
	query := stagingSelect + ` WHERE 1=1`
	var args []any

	if filter.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		query += ` AND processing_status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list staging")
	}
	defer rows.Close()

	var recs []model.StagingRecord
	for rows.Next() {
		rec, err := scanStaging(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan staging")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list staging iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

// nullableJSON stores absent payloads as NULL rather than an empty blob.
func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
