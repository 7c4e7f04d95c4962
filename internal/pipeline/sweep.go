package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SweepRequest researches every catalog category of a phase for a project.
// Categories, when set, restricts the sweep to those keys or names.
type SweepRequest struct {
	ProjectID     string   `json:"project_id"`
	Location      string   `json:"location,omitempty"`
	ZipCode       string   `json:"zip_code,omitempty"`
	Phase         string   `json:"phase,omitempty"`
	CustomContext string   `json:"custom_context,omitempty"`
	Categories    []string `json:"categories,omitempty"`
}

// SweepItem is the outcome for one category.
type SweepItem struct {
	Category string  `json:"category"`
	Result   *Result `json:"result,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Sweep runs one invocation per category back to back, waiting at least delay
// between starts. Each category runs under its scope lock. A failed category
// is recorded and the sweep moves on; only cancellation stops it early. emit
// receives each category's events.
func (o *Orchestrator) Sweep(ctx context.Context, req SweepRequest, delay time.Duration, emit func(category string, e Event)) ([]SweepItem, error) {
	if o.catalog == nil {
		return nil, eris.Wrap(ErrConfig, "sweep needs a category catalog")
	}
	if o.researcher == nil || o.extractor == nil {
		return nil, eris.Wrap(ErrConfig, "research and extraction capabilities are required")
	}
	phase := req.Phase
	if phase == "" {
		phase = o.defaultPhase
	}
	p, ok := o.catalog.Phase(phase)
	if !ok {
		return nil, eris.Wrapf(ErrInvalidRequest, "phase %q not in catalog", phase)
	}

	var names []string
	if len(req.Categories) == 0 {
		for _, c := range p.Categories() {
			names = append(names, c.Name())
		}
	} else {
		for _, key := range req.Categories {
			c, ok := o.catalog.Find(phase, key)
			if !ok {
				return nil, eris.Wrapf(ErrInvalidRequest, "category %q not in phase %q", key, phase)
			}
			names = append(names, c.Name())
		}
	}

	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	limiter := rate.NewLimiter(limit, 1)
	log := zap.L().With(zap.String("project_id", req.ProjectID), zap.String("phase", phase))

	items := make([]SweepItem, 0, len(names))
	for _, name := range names {
		if err := limiter.Wait(ctx); err != nil {
			return items, eris.Wrap(err, "pipeline: sweep interrupted")
		}

		var categoryEmit EmitFunc
		if emit != nil {
			categoryEmit = func(e Event) { emit(name, e) }
		}
		unlock := o.locks.Lock(ScopeKey(req.ProjectID, "", name))
		res, err := o.Run(ctx, Request{
			ProjectID:     req.ProjectID,
			Location:      req.Location,
			ZipCode:       req.ZipCode,
			CategoryName:  name,
			CustomContext: req.CustomContext,
			Phase:         phase,
		}, categoryEmit)
		unlock()

		item := SweepItem{Category: name, Result: res}
		if err != nil {
			item.Error = err.Error()
			log.Warn("pipeline: sweep category failed", zap.String("category", name), zap.Error(err))
		}
		items = append(items, item)
	}

	log.Info("pipeline: sweep complete", zap.Int("categories", len(items)))
	return items, nil
}
