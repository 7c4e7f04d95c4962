package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/sells-group/vendor-research/internal/model"
	"github.com/sells-group/vendor-research/internal/store"
)

func austinRequest(p *model.Project) Request {
	return Request{
		ProjectID:    p.ID,
		Location:     "Austin, TX",
		ZipCode:      "78701",
		CategoryName: "architects",
	}
}

func TestRun_AustinEndToEnd(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := seedProject(t, st)
	researcher := &stubResearcher{text: austinResearch}

	o := New(st, researcher, fallbackExtractor(), WithCatalog(defaultCatalog(t)))
	res, err := o.Run(ctx, austinRequest(p), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Found)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 2, res.Inserted)
	require.Len(t, res.Vendors, 2)
	assert.Equal(t, "Barton Creek Architects", res.Vendors[0].BusinessName)
	assert.Equal(t, "Hill Country Design Studio", res.Vendors[1].BusinessName)
	assert.Equal(t, "Research complete! Added 2 new vendors (1 duplicates skipped).", res.Message())

	// Category resolved through the catalog and created once.
	cat, err := st.FindCategory(ctx, "Architects", DefaultPhase)
	require.NoError(t, err)
	require.NotNil(t, cat)
	assert.Equal(t, "architects", cat.Category)
	assert.Equal(t, "$125-$250 per hour", cat.TypicalCost)
	assert.Equal(t, cat.ID, res.CategoryID)

	stored, err := st.ListVendors(ctx, store.VendorFilter{ProjectID: p.ID, CategoryID: cat.ID})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, v := range stored {
		assert.Equal(t, model.VendorStatusResearched, v.Status)
		assert.True(t, v.AIGenerated)
		assert.Equal(t, model.SourceAI, v.Source)
		assert.Equal(t, "Austin", v.City)
		assert.Equal(t, "TX", v.State)
		assert.Equal(t, "78701", v.ZipCode)
	}

	rec, err := st.GetStaging(ctx, res.StagingID)
	require.NoError(t, err)
	assert.Equal(t, model.StagingCompleted, rec.Status)
	assert.Equal(t, "Inserted 2 new vendors (1 duplicates skipped)", rec.Notes)
	assert.Equal(t, "Architects", rec.CategoryName)
	assert.True(t, strings.HasPrefix(rec.SearchQuery, "Find qualified Architects in Austin, TX 78701 area"))
	assert.Equal(t, austinResearch, rec.RawResearch["stub_research"])
	assert.Len(t, rec.ExtractedVendors, 3)
	assert.NotNil(t, rec.ProcessedAt)

	require.Len(t, researcher.calls, 1)
	assert.Equal(t, "Architects", researcher.calls[0].Category)
}

func TestRun_RepeatIsAllDuplicates(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := seedProject(t, st)
	o := New(st, &stubResearcher{text: austinResearch}, fallbackExtractor(), WithCatalog(defaultCatalog(t)))

	_, err := o.Run(ctx, austinRequest(p), nil)
	require.NoError(t, err)

	res, err := o.Run(ctx, austinRequest(p), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 3, res.Duplicates)
	assert.Empty(t, res.Vendors)
	assert.Equal(t, "Research complete! Added 0 new vendors (3 duplicates skipped).", res.Message())

	rec, err := st.GetStaging(ctx, res.StagingID)
	require.NoError(t, err)
	assert.Equal(t, model.StagingCompleted, rec.Status)
	assert.Equal(t, "All 3 vendors were duplicates, none inserted", rec.Notes)

	cats, err := st.ListCategories(ctx, DefaultPhase)
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func TestRun_NoVendorsExtracted(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := seedProject(t, st)
	ev := &collect{}

	o := New(st, &stubResearcher{text: "No qualified vendors could be verified for this area."}, fallbackExtractor())
	res, err := o.Run(ctx, austinRequest(p), ev.emit)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Found)
	assert.Equal(t, 0, res.Inserted)

	rec, err := st.GetStaging(ctx, res.StagingID)
	require.NoError(t, err)
	assert.Equal(t, model.StagingNoVendorsExtracted, rec.Status)
	assert.Equal(t, "Extracted 0 vendors from research data", rec.Notes)

	terms := ev.terminal()
	require.Len(t, terms, 1)
	assert.Equal(t, EventComplete, terms[0].Type)
	require.NotNil(t, terms[0].Count)
	assert.Equal(t, 0, *terms[0].Count)
}

func TestRun_ResearchFailed(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := seedProject(t, st)
	ev := &collect{}

	o := New(st, &stubResearcher{err: errors.New("perplexity: unexpected status 503")}, fallbackExtractor())
	_, err := o.Run(ctx, austinRequest(p), ev.emit)
	require.Error(t, err)

	recs, err := st.ListStaging(ctx, store.StagingFilter{ProjectID: p.ID})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.StagingFailed, recs[0].Status)
	assert.Equal(t, "Research failed: perplexity: unexpected status 503", recs[0].Notes)
	assert.NotNil(t, recs[0].ProcessedAt)

	terms := ev.terminal()
	require.Len(t, terms, 1)
	assert.Equal(t, EventError, terms[0].Type)
	assert.Equal(t, 20, terms[0].Progress)
	assert.Equal(t, recs[0].ID, terms[0].StagingID)
	assert.Equal(t, ev.events[len(ev.events)-1], terms[0])
}

func TestRun_InsertFailed(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := seedProject(t, st)
	failing := failInsertStore{Store: st, err: errors.New("disk full")}

	o := New(failing, &stubResearcher{text: austinResearch}, fallbackExtractor())
	_, err := o.Run(ctx, austinRequest(p), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	recs, err := st.ListStaging(ctx, store.StagingFilter{ProjectID: p.ID})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.StagingInsertFailed, recs[0].Status)
	assert.Equal(t, "Failed to insert vendors: disk full", recs[0].Notes)
	assert.Len(t, recs[0].ExtractedVendors, 3)
}

func TestRun_FailureNotesNameTheStage(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(store.Store) store.Store
		notes string
		cause string
	}{
		{
			name:  "extraction record write",
			wrap:  func(s store.Store) store.Store { return failStagingStore{Store: s, status: model.StagingVendorsExtracted, err: errors.New("lock timeout")} },
			notes: "Extraction failed: ",
			cause: "lock timeout",
		},
		{
			name:  "existing scope load",
			wrap:  func(s store.Store) store.Store { return failListStore{Store: s, err: errors.New("connection reset")} },
			notes: "Deduplication failed: ",
			cause: "connection reset",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := newTestStore(t)
			p := seedProject(t, st)

			o := New(tt.wrap(st), &stubResearcher{text: austinResearch}, fallbackExtractor())
			_, err := o.Run(ctx, austinRequest(p), nil)
			require.Error(t, err)

			recs, err := st.ListStaging(ctx, store.StagingFilter{ProjectID: p.ID})
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, model.StagingFailed, recs[0].Status)
			assert.True(t, strings.HasPrefix(recs[0].Notes, tt.notes), recs[0].Notes)
			assert.Contains(t, recs[0].Notes, tt.cause)
		})
	}
}

func TestRun_ConfigErrorBeforeStaging(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := seedProject(t, st)
	ev := &collect{}

	o := New(st, nil, fallbackExtractor())
	_, err := o.Run(ctx, austinRequest(p), ev.emit)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)

	recs, err := st.ListStaging(ctx, store.StagingFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs)

	require.Len(t, ev.events, 1)
	assert.Equal(t, EventError, ev.events[0].Type)
	assert.Equal(t, 0, ev.events[0].Progress)
}

func TestRun_InvalidRequests(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := seedProject(t, st)
	o := New(st, &stubResearcher{text: austinResearch}, fallbackExtractor())

	tests := []struct {
		name string
		req  Request
	}{
		{"no project", Request{CategoryName: "architects", Location: "Austin, TX"}},
		{"no category", Request{ProjectID: p.ID, Location: "Austin, TX"}},
		{"unknown project", Request{ProjectID: "missing", CategoryName: "architects", Location: "Austin, TX"}},
		{"unknown category id", Request{ProjectID: p.ID, CategoryID: "missing", Location: "Austin, TX"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Run(ctx, tt.req, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestRun_ProjectLocationDefaults(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := seedProject(t, st)
	researcher := &stubResearcher{text: austinResearch}

	o := New(st, researcher, fallbackExtractor())
	_, err := o.Run(ctx, Request{ProjectID: p.ID, CategoryName: "Structural Engineer"}, nil)
	require.NoError(t, err)

	require.Len(t, researcher.calls, 1)
	assert.Equal(t, "Austin, TX", researcher.calls[0].Location)
	assert.Equal(t, "78701", researcher.calls[0].ZipCode)

	// Outside the catalog the category is created from the request name.
	cat, err := st.FindCategory(ctx, "Structural Engineer", DefaultPhase)
	require.NoError(t, err)
	require.NotNil(t, cat)
	assert.Equal(t, "structural_engineer", cat.Category)
	assert.Equal(t, "Professional Structural Engineer services for construction projects", cat.Description)
}

func TestRun_CategoryByIDAndSpecialization(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := seedProject(t, st)
	cat := &model.VendorCategory{Name: "Architects", Category: "architects", Phase: DefaultPhase}
	require.NoError(t, st.CreateCategory(ctx, cat))
	researcher := &stubResearcher{text: austinResearch}

	o := New(st, researcher, fallbackExtractor(), WithCatalog(defaultCatalog(t)))
	res, err := o.Run(ctx, Request{
		ProjectID:      p.ID,
		CategoryID:     cat.ID,
		Specialization: "custom_home",
		CustomContext:  "Hill country lot",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, cat.ID, res.CategoryID)

	require.Len(t, researcher.calls, 1)
	assert.Equal(t, "Custom Home Architects", researcher.calls[0].Specialization)
	assert.Equal(t, "Hill country lot", researcher.calls[0].Context)

	rec, err := st.GetStaging(ctx, res.StagingID)
	require.NoError(t, err)
	assert.Contains(t, rec.SearchQuery, "Architects specializing in Custom Home Architects")
	assert.Contains(t, rec.SearchQuery, "Additional requirements: Hill country lot.")
}

func TestRun_StreamingProgress(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := seedProject(t, st)
	ev := &collect{}

	o := New(st, &stubResearcher{text: austinResearch}, fallbackExtractor())
	res, err := o.Run(ctx, austinRequest(p), ev.emit)
	require.NoError(t, err)

	var stages []Stage
	last := -1
	for _, e := range ev.events {
		stages = append(stages, e.Stage)
		assert.GreaterOrEqual(t, e.Progress, last, "progress must not decrease at %s", e.Stage)
		last = e.Progress
	}
	assert.Equal(t, []Stage{
		StageInitializing, StageCategory, StageResearching, StageExtracting, StageSaving, StageComplete,
	}, stages)

	terms := ev.terminal()
	require.Len(t, terms, 1)
	done := terms[0]
	assert.Equal(t, EventComplete, done.Type)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, res.StagingID, done.StagingID)
	require.NotNil(t, done.Count)
	assert.Equal(t, 2, *done.Count)
	assert.Len(t, done.Vendors, 2)
	assert.Equal(t, "Starting comprehensive research for architects in Austin, TX...", ev.events[0].Message)
	assert.Equal(t, "Checking for duplicates and saving 3 vendors...", ev.events[4].Message)
}

func TestRun_Spans(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := seedProject(t, st)

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })

	o := New(st, &stubResearcher{text: austinResearch}, fallbackExtractor(), WithTracerProvider(tp))
	_, err := o.Run(ctx, austinRequest(p), nil)
	require.NoError(t, err)

	var names []string
	var root sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
		if s.Name() == "pipeline.Run" {
			root = s
		}
	}
	assert.ElementsMatch(t, []string{
		"pipeline.category", "pipeline.research", "pipeline.extract",
		"pipeline.dedupe", "pipeline.insert", "pipeline.Run",
	}, names)

	require.NotNil(t, root)
	attrs := map[string]any{}
	for _, kv := range root.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, p.ID, attrs["project_id"])
	assert.Equal(t, int64(2), attrs["vendors.inserted"])
}

func TestRun_ResearchFailureSpanStatus(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := seedProject(t, st)

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	o := New(st, &stubResearcher{err: errors.New("timeout")}, fallbackExtractor(), WithTracerProvider(tp))
	_, err := o.Run(ctx, austinRequest(p), nil)
	require.Error(t, err)

	for _, s := range sr.Ended() {
		if s.Name() == "pipeline.Run" || s.Name() == "pipeline.research" {
			assert.Equal(t, "Error", s.Status().Code.String(), s.Name())
		}
	}
}
