package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vendor-research/internal/model"
	"github.com/sells-group/vendor-research/pkg/anthropic"
)

const schemaSystemPrompt = `You are a data extraction specialist. Extract vendor information from research data and return ONLY valid JSON with no other text.

Return this exact structure:
{
  "vendors": [
    {
      "business_name": "Company Name",
      "contact_name": "Contact Person or null",
      "phone": "5125551234",
      "email": "email@example.com or null",
      "website": "https://website.com or null",
      "address": "Full street address",
      "city": "City",
      "state": "TX",
      "zip_code": "78701",
      "rating": 4.5,
      "review_count": 150,
      "cost_estimate_low": 5000,
      "cost_estimate_avg": 7500,
      "cost_estimate_high": 10000,
      "notes": "Key qualifications and specialties"
    }
  ]
}

Rules:
- Only include real businesses with a specific name. Never invent placeholder names.
- Phone numbers contain digits only.
- Use null for any value the research does not state.
- Ratings are on a 1-5 scale.`

const schemaUserPrefix = "Extract vendor information from this research data and format as JSON:\n\n"

// SchemaStrategy asks a language model to emit vendors matching a fixed
// JSON schema.
type SchemaStrategy struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewSchemaStrategy creates a SchemaStrategy backed by the given client.
func NewSchemaStrategy(client anthropic.Client, model string, maxTokens int64) *SchemaStrategy {
	if maxTokens <= 0 {
		maxTokens = 3000
	}
	return &SchemaStrategy{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: 0.1,
	}
}

// Name implements Strategy.
func (s *SchemaStrategy) Name() string { return "schema" }

// Extract implements Strategy. Invalid candidates are filtered before return.
func (s *SchemaStrategy) Extract(ctx context.Context, text string) ([]model.VendorCandidate, error) {
	if strings.TrimSpace(text) == "" {
		return []model.VendorCandidate{}, nil
	}

	temp := s.temperature
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		System:      anthropic.CachedSystem(schemaSystemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: schemaUserPrefix + text}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: schema request")
	}
	resp.Usage.LogCost(s.model, "extract")
	if resp.Truncated() {
		return nil, eris.Errorf("extract: schema response truncated at %d tokens", s.maxTokens)
	}

	var payload wirePayload
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &payload); err != nil {
		return nil, eris.Wrap(err, "extract: parse schema response")
	}

	cands := make([]model.VendorCandidate, 0, len(payload.Vendors))
	for _, v := range payload.Vendors {
		cands = append(cands, v.candidate())
	}
	return Validate(cands), nil
}
