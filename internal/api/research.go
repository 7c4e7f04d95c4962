package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/vendor-research/internal/model"
	"github.com/sells-group/vendor-research/internal/pipeline"
)

type researchRequest struct {
	pipeline.Request
	Stream bool `json:"stream"`
}

type researchResponse struct {
	Success    bool           `json:"success"`
	Vendors    []model.Vendor `json:"vendors"`
	Count      int            `json:"count"`
	StagingID  string         `json:"staging_id"`
	Found      int            `json:"found"`
	Duplicates int            `json:"duplicates"`
	Message    string         `json:"message"`
}

// handleResearch runs one invocation. The pipeline runs detached from the
// request context so a disconnecting client never leaves a staging row
// half-written.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "research pipeline is not configured")
		return
	}
	var req researchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	unlock := s.locks.Lock(pipeline.ScopeKey(req.ProjectID, req.CategoryID, req.CategoryName))
	defer unlock()

	ctx := context.WithoutCancel(r.Context())
	if req.Stream {
		out := newNDJSON(w)
		_, _ = s.deps.Pipeline.Run(ctx, req.Request, func(e pipeline.Event) { out.write(e) })
		return
	}

	res, err := s.deps.Pipeline.Run(ctx, req.Request, nil)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, researchResponse{
		Success:    true,
		Vendors:    res.Vendors,
		Count:      res.Inserted,
		StagingID:  res.StagingID,
		Found:      res.Found,
		Duplicates: res.Duplicates,
		Message:    res.Message(),
	})
}

type sweepRequest struct {
	pipeline.SweepRequest
	Stream bool `json:"stream"`
}

type sweepEvent struct {
	Category string `json:"category"`
	pipeline.Event
}

type sweepSummary struct {
	Type  string               `json:"type"`
	Items []pipeline.SweepItem `json:"items"`
	Error string               `json:"error,omitempty"`
}

// handleSweep researches every category of a phase in turn. Streaming
// responses carry each category's events tagged with the category name and
// end with a summary line.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "research pipeline is not configured")
		return
	}
	var req sweepRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	unlock := s.locks.Lock(pipeline.ScopeKey(req.ProjectID, "", ""))
	defer unlock()

	ctx := context.WithoutCancel(r.Context())
	if req.Stream {
		out := newNDJSON(w)
		items, err := s.deps.Pipeline.Sweep(ctx, req.SweepRequest, s.deps.SweepDelay, func(category string, e pipeline.Event) {
			out.write(sweepEvent{Category: category, Event: e})
		})
		summary := sweepSummary{Type: "summary", Items: items}
		if err != nil {
			summary.Error = err.Error()
		}
		out.write(summary)
		return
	}

	items, err := s.deps.Pipeline.Sweep(ctx, req.SweepRequest, s.deps.SweepDelay, nil)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "items": items})
}

// ndjson writes one JSON document per line, flushing after each. Once a
// write fails the client is gone and later writes are dropped.
type ndjson struct {
	w       http.ResponseWriter
	enc     *json.Encoder
	flusher http.Flusher
	failed  bool
}

func newNDJSON(w http.ResponseWriter) *ndjson {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	f, _ := w.(http.Flusher)
	return &ndjson{w: w, enc: json.NewEncoder(w), flusher: f}
}

func (n *ndjson) write(v any) {
	if n.failed {
		return
	}
	if err := n.enc.Encode(v); err != nil {
		n.failed = true
		zap.L().Debug("api: stream client gone", zap.Error(err))
		return
	}
	if n.flusher != nil {
		n.flusher.Flush()
	}
}
