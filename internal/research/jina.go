package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vendor-research/pkg/jina"
)

// Jina researches vendors with a single web search and concatenates the
// result contents.
type Jina struct {
	client jina.Client
}

// NewJina creates a Jina researcher.
func NewJina(client jina.Client) *Jina {
	return &Jina{client: client}
}

// Name implements Researcher.
func (j *Jina) Name() string { return "jina" }

// Research implements Researcher.
func (j *Jina) Research(ctx context.Context, q Query) (*Output, error) {
	resp, err := j.client.Search(ctx, SearchTerms(q),
		jina.WithLocation(joinNonEmpty(q.Location, q.ZipCode)),
		jina.WithResultCount(jina.DefaultResultCount),
	)
	if err != nil {
		return nil, eris.Wrap(classify(err), "research: jina")
	}

	var (
		b       strings.Builder
		sources []string
	)
	for _, r := range resp.Data {
		body := strings.TrimSpace(r.Content)
		if body == "" {
			body = strings.TrimSpace(r.Description)
		}
		if body == "" {
			continue
		}
		fmt.Fprintf(&b, "## %s\n%s\n", r.Title, body)
		if r.URL != "" {
			fmt.Fprintf(&b, "Website: %s\n", r.URL)
			sources = append(sources, r.URL)
		}
		b.WriteString("\n")
	}

	zap.L().Debug("research: jina complete",
		zap.String("category", q.Category),
		zap.Int("results", len(resp.Data)),
	)

	return &Output{Provider: j.Name(), Text: strings.TrimSpace(b.String()), Sources: sources}, nil
}
