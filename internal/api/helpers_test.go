package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/vendor-research/internal/catalog"
	"github.com/sells-group/vendor-research/internal/extract"
	"github.com/sells-group/vendor-research/internal/model"
	"github.com/sells-group/vendor-research/internal/pipeline"
	"github.com/sells-group/vendor-research/internal/research"
	"github.com/sells-group/vendor-research/internal/resilience"
	"github.com/sells-group/vendor-research/internal/store"
)

const researchText = `1. **Barton Creek Architects**
Phone: (512) 555-0101
Rating: 4.6

2. **Hill Country Design Studio**
Phone: 512-555-0202
Rating: 4.9

3. **Barton Creek Architecture Group**
Phone: 512.555.0101
`

type fixedResearcher struct {
	text string
	err  error
}

func (f *fixedResearcher) Name() string { return "fixed" }

func (f *fixedResearcher) Research(context.Context, research.Query) (*research.Output, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &research.Output{Provider: "fixed", Text: f.text}, nil
}

type env struct {
	store   store.Store
	project *model.Project
	srv     *httptest.Server
	server  *Server
}

func newEnv(t *testing.T, researcher research.Researcher) *env {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "vendors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	p := &model.Project{Name: "Lakeside Residence", Location: "Austin, TX", ZipCode: "78701"}
	require.NoError(t, st.CreateProject(ctx, p))

	cat, err := catalog.Default()
	require.NoError(t, err)

	deps := Deps{
		Store:    st,
		Catalog:  cat,
		Breakers: resilience.NewRegistry(resilience.FromConfig(5, 60)),
	}
	if researcher != nil {
		deps.Pipeline = pipeline.New(st, researcher, extract.NewChain(nil, extract.NewFallbackStrategy()), pipeline.WithCatalog(cat))
	}
	server := New(deps)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return &env{store: st, project: p, srv: srv, server: server}
}

func (e *env) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// seedVendors runs one research invocation so the project has vendors.
func (e *env) seedVendors(t *testing.T) []model.Vendor {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/research", map[string]any{
		"project_id": e.project.ID, "category_name": "architects",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[researchResponse](t, resp)
	require.True(t, body.Success)
	return body.Vendors
}

func splitLines(data []byte) [][]byte {
	var out [][]byte
	for _, l := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(l)) > 0 {
			out = append(out, l)
		}
	}
	return out
}

func stringsReader(s string) io.Reader { return strings.NewReader(s) }
