package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/vendor-research/internal/dedupe"
	"github.com/sells-group/vendor-research/internal/export"
	"github.com/sells-group/vendor-research/internal/model"
	"github.com/sells-group/vendor-research/internal/pipeline"
	"github.com/sells-group/vendor-research/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleListVendors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.VendorFilter{
		ProjectID:  chi.URLParam(r, "projectID"),
		CategoryID: q.Get("category_id"),
		Status:     model.VendorStatus(q.Get("status")),
		Order:      store.VendorOrder(q.Get("order")),
	}
	switch filter.Order {
	case "", store.OrderCreated, store.OrderRating:
	default:
		writeError(w, http.StatusBadRequest, "order must be created_at or rating")
		return
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown vendor status")
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	vendors, err := s.deps.Store.ListVendors(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list vendors", zap.String("project_id", filter.ProjectID), zap.Error(err))
		writeError(w, statusFor(err), "failed to list vendors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vendors": vendors, "count": len(vendors)})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var buf bytes.Buffer
	n, err := export.ProjectVendors(r.Context(), s.deps.Store, projectID, r.URL.Query().Get("category_id"), &buf)
	if err != nil {
		zap.L().Error("api: export vendors", zap.String("project_id", projectID), zap.Error(err))
		writeError(w, statusFor(err), "failed to export vendors")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="vendors-%s.xlsx"`, projectID))
	w.Header().Set("X-Vendor-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleVendorStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status model.VendorStatus `json:"status"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !body.Status.Valid() {
		writeError(w, http.StatusBadRequest, "status must be one of researched, contacted, quoted, selected, rejected")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.deps.Store.UpdateVendorStatus(r.Context(), id, body.Status); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			zap.L().Error("api: update vendor status", zap.String("vendor_id", id), zap.Error(err))
		}
		writeError(w, statusFor(err), "failed to update vendor status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id, "status": body.Status})
}

// handleDedupe sweeps stored vendors. dry_run defaults to true.
func (s *Server) handleDedupe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectID  string `json:"project_id"`
		CategoryID string `json:"category_id"`
		DryRun     *bool  `json:"dry_run"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "project_id is required")
		return
	}
	req := dedupe.CleanupRequest{ProjectID: body.ProjectID, CategoryID: body.CategoryID, DryRun: true}
	if body.DryRun != nil {
		req.DryRun = *body.DryRun
	}

	unlock := s.locks.Lock(pipeline.ScopeKey(body.ProjectID, body.CategoryID, ""))
	defer unlock()

	res, err := dedupe.Cleanup(r.Context(), s.deps.Store, req)
	if err != nil {
		zap.L().Error("api: dedupe vendors", zap.String("project_id", body.ProjectID), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": res})
}

func (s *Server) handleListStaging(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.StagingFilter{
		ProjectID: q.Get("project_id"),
		Status:    model.StagingStatus(q.Get("status")),
		Limit:     50,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	recs, err := s.deps.Store.ListStaging(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list staging", zap.Error(err))
		writeError(w, statusFor(err), "failed to list staging records")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs, "count": len(recs)})
}

func (s *Server) handleGetStaging(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.deps.Store.GetStaging(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "staging record not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get staging", zap.String("staging_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load staging record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
