package research

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vendor-research/pkg/perplexity"
)

const perplexitySystemPrompt = "You are an expert construction industry researcher. Find qualified construction vendors with complete contact information, licensing details, and pricing estimates."

// Perplexity researches vendors with a single deep-research chat completion.
type Perplexity struct {
	client  perplexity.Client
	recency string
}

// NewPerplexity creates a Perplexity researcher. recency is the search
// recency filter ("month" when empty).
func NewPerplexity(client perplexity.Client, recency string) *Perplexity {
	if recency == "" {
		recency = "month"
	}
	return &Perplexity{client: client, recency: recency}
}

// Name implements Researcher.
func (p *Perplexity) Name() string { return "perplexity" }

// Research implements Researcher.
func (p *Perplexity) Research(ctx context.Context, q Query) (*Output, error) {
	temp, topP, penalty := 0.2, 0.9, 1.0
	maxTokens := 2000

	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: perplexitySystemPrompt},
			{Role: "user", Content: BuildQuery(q)},
		},
		Temperature:         &temp,
		TopP:                &topP,
		MaxTokens:           &maxTokens,
		SearchRecencyFilter: p.recency,
		FrequencyPenalty:    &penalty,
		WebSearch: &perplexity.WebSearchOptions{
			SearchContextSize: "high",
			UserLocation:      userLocation(q.Location),
		},
	})
	if err != nil {
		return nil, eris.Wrap(classify(err), "research: perplexity")
	}

	text := resp.Content()
	if strings.TrimSpace(text) == "" {
		return nil, eris.New("research: perplexity returned no content")
	}

	zap.L().Debug("research: perplexity complete",
		zap.String("category", q.Category),
		zap.Int("chars", len(text)),
		zap.Int("citations", len(resp.Citations)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return &Output{Provider: p.Name(), Text: text, Sources: resp.Citations}, nil
}

// userLocation turns "City, ST" into a search location. Projects are US
// only, so the country is fixed.
func userLocation(location string) *perplexity.UserLocation {
	city, rest, _ := strings.Cut(location, ",")
	loc := &perplexity.UserLocation{Country: "US", City: strings.TrimSpace(city)}
	if fields := strings.Fields(rest); len(fields) > 0 {
		loc.Region = fields[0]
	}
	return loc
}
