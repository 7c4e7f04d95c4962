// Package pipeline runs one vendor research invocation end to end: resolve
// the category, research, extract, deduplicate and insert, recording every
// step on a staging row.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sells-group/vendor-research/internal/catalog"
	"github.com/sells-group/vendor-research/internal/dedupe"
	"github.com/sells-group/vendor-research/internal/extract"
	"github.com/sells-group/vendor-research/internal/model"
	"github.com/sells-group/vendor-research/internal/research"
	"github.com/sells-group/vendor-research/internal/store"
)

// DefaultPhase is the phase new categories are filed under.
const DefaultPhase = "Pre-Construction Planning & Design"

const tracerName = "github.com/sells-group/vendor-research/internal/pipeline"

var (
	// ErrConfig marks a missing capability. It is returned before any
	// staging record exists.
	ErrConfig = eris.New("pipeline: not configured")
	// ErrInvalidRequest marks a request that cannot be researched.
	ErrInvalidRequest = eris.New("pipeline: invalid request")
)

// Request is one research invocation.
type Request struct {
	ProjectID      string `json:"project_id"`
	Location       string `json:"location,omitempty"`
	ZipCode        string `json:"zip_code,omitempty"`
	CategoryID     string `json:"category_id,omitempty"`
	CategoryName   string `json:"category_name,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	CustomContext  string `json:"custom_context,omitempty"`
	Phase          string `json:"phase,omitempty"`
}

// Result reports the outcome of a successful invocation.
type Result struct {
	StagingID  string         `json:"staging_id"`
	CategoryID string         `json:"category_id"`
	Found      int            `json:"found"`
	Duplicates int            `json:"duplicates"`
	Inserted   int            `json:"inserted"`
	Vendors    []model.Vendor `json:"vendors"`
}

// Message is the human-readable summary sent with the complete event.
func (r *Result) Message() string {
	msg := fmt.Sprintf("Research complete! Added %d new vendors", r.Inserted)
	if r.Found > r.Inserted {
		msg += fmt.Sprintf(" (%d duplicates skipped)", r.Found-r.Inserted)
	}
	return msg + "."
}

// Orchestrator drives research invocations.
type Orchestrator struct {
	store        store.Store
	researcher   research.Researcher
	extractor    extract.Strategy
	catalog      *catalog.Catalog
	defaultPhase string
	tracer       trace.Tracer
	locks        *ScopeLocks
	now          func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCatalog resolves categories and specializations through c.
func WithCatalog(c *catalog.Catalog) Option {
	return func(o *Orchestrator) { o.catalog = c }
}

// WithDefaultPhase overrides DefaultPhase.
func WithDefaultPhase(phase string) Option {
	return func(o *Orchestrator) {
		if phase != "" {
			o.defaultPhase = phase
		}
	}
}

// WithTracerProvider records spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracer = tp.Tracer(tracerName) }
}

// New creates an Orchestrator. researcher and extractor may be nil; Run then
// fails with ErrConfig.
func New(st store.Store, researcher research.Researcher, extractor extract.Strategy, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:        st,
		researcher:   researcher,
		extractor:    extractor,
		defaultPhase: DefaultPhase,
		tracer:       otel.Tracer(tracerName),
		locks:        NewScopeLocks(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Locks returns the scope locks Sweep takes per category. Callers running
// single invocations share them to stay serialized with sweeps.
func (o *Orchestrator) Locks() *ScopeLocks { return o.locks }

// Run executes one invocation, reporting progress to emit (which may be nil).
// Exactly one terminal event is emitted whether Run succeeds or fails.
func (o *Orchestrator) Run(ctx context.Context, req Request, emit EmitFunc) (*Result, error) {
	prog := newProgress(emit)
	res, stagingID, err := o.run(ctx, req, prog)
	if err != nil {
		prog.fail(err.Error(), stagingID)
		return nil, err
	}
	prog.complete(res.Message(), res.StagingID, res.Vendors)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, prog *progress) (*Result, string, error) {
	if o.researcher == nil || o.extractor == nil {
		return nil, "", eris.Wrap(ErrConfig, "research and extraction capabilities are required")
	}
	if req.ProjectID == "" {
		return nil, "", eris.Wrap(ErrInvalidRequest, "project_id is required")
	}
	if req.CategoryID == "" && strings.TrimSpace(req.CategoryName) == "" {
		return nil, "", eris.Wrap(ErrInvalidRequest, "category_id or category_name is required")
	}
	phase := req.Phase
	if phase == "" {
		phase = o.defaultPhase
	}

	ctx, span := o.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("project_id", req.ProjectID),
		attribute.String("category", req.CategoryName),
		attribute.String("provider", o.researcher.Name()),
	))
	defer span.End()

	res, stagingID, err := o.execute(ctx, req, phase, prog)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, stagingID, err
	}
	span.SetAttributes(
		attribute.String("staging_id", res.StagingID),
		attribute.Int("vendors.found", res.Found),
		attribute.Int("vendors.inserted", res.Inserted),
	)
	return res, stagingID, nil
}

func (o *Orchestrator) execute(ctx context.Context, req Request, phase string, prog *progress) (*Result, string, error) {
	project, err := o.store.GetProject(ctx, req.ProjectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", eris.Wrapf(ErrInvalidRequest, "project %s not found", req.ProjectID)
	}
	if err != nil {
		return nil, "", eris.Wrap(err, "pipeline: load project")
	}
	location, zip := resolveLocation(req, project)
	if location == "" {
		return nil, "", eris.Wrap(ErrInvalidRequest, "location is required")
	}

	label := req.CategoryName
	if label == "" {
		label = "vendor"
	}
	prog.step(StageInitializing, 0, fmt.Sprintf("Starting comprehensive research for %s in %s...", label, location))

	// 1. Category.
	cat, specialization, err := o.resolveCategory(ctx, req, phase)
	if err != nil {
		return nil, "", err
	}
	log := zap.L().With(
		zap.String("project_id", req.ProjectID),
		zap.String("category", cat.Name),
	)
	prog.step(StageCategory, 5, fmt.Sprintf("Using vendor category %s", cat.Name))

	// 2. Staging row.
	query := research.Query{
		Category:       cat.Name,
		Specialization: specialization,
		Location:       location,
		ZipCode:        zip,
		Context:        req.CustomContext,
	}
	rec := &model.StagingRecord{
		ProjectID:    req.ProjectID,
		CategoryName: cat.Name,
		SearchQuery:  research.BuildQuery(query),
		RawResearch:  map[string]any{"initial": "Starting comprehensive vendor research..."},
		Status:       model.StagingStarting,
	}
	if err := o.store.CreateStaging(ctx, rec); err != nil {
		return nil, "", eris.Wrap(err, "pipeline: create staging record")
	}
	log = log.With(zap.String("staging_id", rec.ID))
	log.Info("pipeline: research started", zap.String("provider", o.researcher.Name()))

	// 3. Research.
	prog.step(StageResearching, 20, fmt.Sprintf("AI agent researching %s vendors with professional criteria...", cat.Name))
	out, err := o.research(ctx, query)
	if err != nil {
		o.markFailed(ctx, log, rec, "Research failed: "+err.Error())
		return nil, rec.ID, eris.Wrap(err, "pipeline: research")
	}
	rec.RawResearch = out.RawResearch()
	rec.Status = model.StagingResearchComplete
	if err := o.store.UpdateStaging(ctx, rec); err != nil {
		o.markFailed(ctx, log, rec, "Research failed: "+err.Error())
		return nil, rec.ID, eris.Wrap(err, "pipeline: record research")
	}

	// 4. Extract.
	prog.step(StageExtracting, 70, "Extracting and validating vendor information...")
	cands, err := o.extract(ctx, out.Text, location, zip)
	if err != nil {
		o.markFailed(ctx, log, rec, "Extraction failed: "+err.Error())
		return nil, rec.ID, eris.Wrap(err, "pipeline: extract")
	}
	rec.ExtractedVendors = cands
	rec.Status = model.StagingVendorsExtracted
	if len(cands) == 0 {
		rec.Status = model.StagingNoVendorsExtracted
	}
	rec.Notes = fmt.Sprintf("Extracted %d vendors from research data", len(cands))
	rec.ProcessedAt = model.Ptr(o.now())
	if err := o.store.UpdateStaging(ctx, rec); err != nil {
		o.markFailed(ctx, log, rec, "Extraction failed: "+err.Error())
		return nil, rec.ID, eris.Wrap(err, "pipeline: record extraction")
	}

	res := &Result{StagingID: rec.ID, CategoryID: cat.ID, Found: len(cands), Vendors: []model.Vendor{}}
	prog.step(StageSaving, 90, fmt.Sprintf("Checking for duplicates and saving %d vendors...", len(cands)))
	if len(cands) == 0 {
		log.Info("pipeline: no vendors extracted")
		return res, rec.ID, nil
	}

	// 5. Deduplicate.
	survivors, err := o.dedupe(ctx, log, req.ProjectID, cat.ID, cands)
	if err != nil {
		o.markFailed(ctx, log, rec, "Deduplication failed: "+err.Error())
		return nil, rec.ID, err
	}
	res.Duplicates = len(cands) - len(survivors)

	if len(survivors) == 0 {
		o.finish(ctx, log, rec, model.StagingCompleted, fmt.Sprintf("All %d vendors were duplicates, none inserted", len(cands)))
		return res, rec.ID, nil
	}

	// 6. Insert.
	inserted, err := o.insert(ctx, req.ProjectID, cat.ID, survivors)
	if err != nil {
		o.finish(ctx, log, rec, model.StagingInsertFailed, "Failed to insert vendors: "+err.Error())
		return nil, rec.ID, eris.Wrap(err, "pipeline: insert vendors")
	}
	res.Vendors = inserted
	res.Inserted = len(inserted)
	o.finish(ctx, log, rec, model.StagingCompleted,
		fmt.Sprintf("Inserted %d new vendors (%d duplicates skipped)", res.Inserted, res.Duplicates))

	log.Info("pipeline: research complete",
		zap.Int("found", res.Found),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("inserted", res.Inserted),
	)
	return res, rec.ID, nil
}

// resolveLocation prefers the request's location and zip, falling back to the
// project's.
func resolveLocation(req Request, p *model.Project) (location, zip string) {
	location = strings.TrimSpace(req.Location)
	if location == "" {
		location = strings.TrimSpace(p.Location)
	}
	if location == "" && p.City != "" {
		location = p.City
		if p.State != "" {
			location += ", " + p.State
		}
	}
	zip = strings.TrimSpace(req.ZipCode)
	if zip == "" {
		zip = p.ZipCode
	}
	return location, zip
}

// resolveCategory loads the category by id, or finds it by name and phase,
// creating it when absent. It also resolves the specialization label.
func (o *Orchestrator) resolveCategory(ctx context.Context, req Request, phase string) (*model.VendorCategory, string, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.category")
	defer span.End()

	var (
		cat *model.VendorCategory
		err error
	)
	if req.CategoryID != "" {
		cat, err = o.store.GetCategory(ctx, req.CategoryID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", eris.Wrapf(ErrInvalidRequest, "category %s not found", req.CategoryID)
		}
		if err != nil {
			return nil, "", eris.Wrap(err, "pipeline: load category")
		}
	}

	entry, inCatalog := o.catalogEntry(phase, req.CategoryName)
	if cat == nil {
		name := strings.TrimSpace(req.CategoryName)
		if inCatalog {
			name = entry.Name()
		}
		cat, err = o.store.FindCategory(ctx, name, phase)
		if err != nil {
			return nil, "", eris.Wrap(err, "pipeline: find category")
		}
		if cat == nil {
			cat = newCategory(name, phase, entry, inCatalog)
			if err := o.store.CreateCategory(ctx, cat); err != nil {
				return nil, "", eris.Wrap(err, "pipeline: create category")
			}
			zap.L().Info("pipeline: created vendor category", zap.String("category", cat.Name), zap.String("phase", phase))
		}
	} else if !inCatalog {
		entry, inCatalog = o.catalogEntry(cat.Phase, cat.Category)
	}

	specialization := strings.TrimSpace(req.Specialization)
	if inCatalog && specialization != "" {
		specialization = entry.Specialization(specialization)
	}
	span.SetAttributes(attribute.String("category_id", cat.ID))
	return cat, specialization, nil
}

func (o *Orchestrator) catalogEntry(phase, keyOrName string) (catalog.Category, bool) {
	if o.catalog == nil || keyOrName == "" {
		return catalog.Category{}, false
	}
	return o.catalog.Find(phase, keyOrName)
}

func newCategory(name, phase string, entry catalog.Category, inCatalog bool) *model.VendorCategory {
	if inCatalog {
		vc := entry.VendorCategory(phase)
		return &vc
	}
	return &model.VendorCategory{
		Name:        name,
		Category:    strings.ReplaceAll(strings.ToLower(name), " ", "_"),
		Phase:       phase,
		Description: fmt.Sprintf("Professional %s services for construction projects", name),
	}
}

func (o *Orchestrator) research(ctx context.Context, q research.Query) (*research.Output, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.research", trace.WithAttributes(
		attribute.String("provider", o.researcher.Name()),
	))
	defer span.End()

	out, err := o.researcher.Research(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "research failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("research.chars", len(out.Text)),
		attribute.Bool("research.cached", out.Cached),
	)
	return out, nil
}

func (o *Orchestrator) extract(ctx context.Context, text, location, zip string) ([]model.VendorCandidate, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.extract", trace.WithAttributes(
		attribute.String("strategy", o.extractor.Name()),
	))
	defer span.End()

	cands, err := o.extractor.Extract(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return nil, err
	}
	cands = extract.Validate(cands)
	extract.ApplyLocationDefaults(cands, location, zip)
	for i := range cands {
		cands[i].Source = model.SourceAI
	}
	span.SetAttributes(attribute.Int("vendors.extracted", len(cands)))
	return cands, nil
}

// dedupe drops candidates matching a stored vendor in scope, then later
// repeats within the batch itself.
func (o *Orchestrator) dedupe(ctx context.Context, log *zap.Logger, projectID, categoryID string, cands []model.VendorCandidate) ([]model.VendorCandidate, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.dedupe")
	defer span.End()

	existing, err := o.store.ListVendors(ctx, store.VendorFilter{
		ProjectID:  projectID,
		CategoryID: categoryID,
		Order:      store.OrderCreated,
	})
	if err != nil {
		span.RecordError(err)
		return nil, eris.Wrap(err, "pipeline: load existing vendors")
	}

	kept, dropped := dedupe.Deduplicate(cands, existing)
	kept, repeats := dedupe.Unique(kept)
	for _, d := range append(dropped, repeats...) {
		log.Debug("pipeline: duplicate skipped",
			zap.String("business_name", d.Candidate.BusinessName),
			zap.String("reason", string(d.Reason)),
			zap.String("matched_id", d.MatchedID),
		)
	}
	span.SetAttributes(
		attribute.Int("vendors.existing", len(existing)),
		attribute.Int("vendors.duplicates", len(dropped)+len(repeats)),
	)
	return kept, nil
}

func (o *Orchestrator) insert(ctx context.Context, projectID, categoryID string, cands []model.VendorCandidate) ([]model.Vendor, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.insert", trace.WithAttributes(
		attribute.Int("vendors.count", len(cands)),
	))
	defer span.End()

	vendors := make([]model.Vendor, len(cands))
	for i, c := range cands {
		vendors[i] = model.Vendor{
			ProjectID:       projectID,
			CategoryID:      categoryID,
			VendorCandidate: c,
			Status:          model.VendorStatusResearched,
			AIGenerated:     true,
		}
	}
	inserted, err := o.store.InsertVendors(ctx, vendors)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return nil, err
	}
	return inserted, nil
}

// finish moves rec to a final status. Store failures here are logged only:
// the invocation outcome is already decided.
func (o *Orchestrator) finish(ctx context.Context, log *zap.Logger, rec *model.StagingRecord, status model.StagingStatus, notes string) {
	rec.Status = status
	rec.Notes = notes
	rec.ProcessedAt = model.Ptr(o.now())
	if err := o.store.UpdateStaging(ctx, rec); err != nil {
		log.Error("pipeline: update staging record", zap.String("status", string(status)), zap.Error(err))
	}
}

func (o *Orchestrator) markFailed(ctx context.Context, log *zap.Logger, rec *model.StagingRecord, notes string) {
	log.Error("pipeline: research invocation failed", zap.String("notes", notes))
	o.finish(ctx, log, rec, model.StagingFailed, notes)
}
