// Package research gathers unstructured vendor research text from an
// external provider for one category and location.
package research

import (
	"context"
	"errors"

	"github.com/sells-group/vendor-research/internal/resilience"
	"github.com/sells-group/vendor-research/pkg/firecrawl"
	"github.com/sells-group/vendor-research/pkg/jina"
	"github.com/sells-group/vendor-research/pkg/perplexity"
)

// Researcher produces research text for a query.
type Researcher interface {
	Name() string
	Research(ctx context.Context, q Query) (*Output, error)
}

// Output is the result of one research call.
type Output struct {
	Provider string   `json:"provider"`
	Text     string   `json:"text"`
	Sources  []string `json:"sources,omitempty"`
	Cached   bool     `json:"-"`
}

// RawResearch returns the map stored as the staging row's raw research.
func (o *Output) RawResearch() map[string]any {
	raw := map[string]any{o.Provider + "_research": o.Text}
	if len(o.Sources) > 0 {
		raw["sources"] = o.Sources
	}
	return raw
}

// classify marks upstream HTTP failures that may clear on their own as
// transient so the breaker only trips on those.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pe *perplexity.APIError
	if errors.As(err, &pe) {
		return resilience.ClassifyStatus(err, pe.StatusCode)
	}
	var fe *firecrawl.APIError
	if errors.As(err, &fe) {
		return resilience.ClassifyStatus(err, fe.StatusCode)
	}
	var je *jina.APIError
	if errors.As(err, &je) {
		return resilience.ClassifyStatus(err, je.StatusCode)
	}
	return err
}
