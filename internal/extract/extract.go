// Package extract turns unstructured research text into vendor candidates.
package extract

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/vendor-research/internal/model"
)

// Strategy extracts vendor candidates from a block of research text.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, text string) ([]model.VendorCandidate, error)
}

// Chain runs a primary strategy and falls back to a second one when the
// primary fails or yields no valid candidates. Chain never returns an error:
// an empty slice means no vendors were found.
type Chain struct {
	primary  Strategy
	fallback Strategy
}

// NewChain builds a Chain. primary may be nil, in which case only the
// fallback runs.
func NewChain(primary, fallback Strategy) *Chain {
	return &Chain{primary: primary, fallback: fallback}
}

// Name implements Strategy.
func (c *Chain) Name() string {
	if c.primary == nil {
		return c.fallback.Name()
	}
	return c.primary.Name() + "+" + c.fallback.Name()
}

// Extract implements Strategy.
func (c *Chain) Extract(ctx context.Context, text string) ([]model.VendorCandidate, error) {
	log := zap.L().With(zap.Int("text_len", len(text)))

	if c.primary != nil {
		cands, err := c.primary.Extract(ctx, text)
		switch {
		case err != nil:
			log.Warn("extract: primary strategy failed, falling back",
				zap.String("strategy", c.primary.Name()),
				zap.Error(err),
			)
		case len(cands) == 0:
			log.Info("extract: primary strategy found no valid vendors, falling back",
				zap.String("strategy", c.primary.Name()),
			)
		default:
			log.Info("extract: vendors extracted",
				zap.String("strategy", c.primary.Name()),
				zap.Int("count", len(cands)),
			)
			return cands, nil
		}
	}

	cands, err := c.fallback.Extract(ctx, text)
	if err != nil {
		log.Warn("extract: fallback strategy failed", zap.String("strategy", c.fallback.Name()), zap.Error(err))
		return []model.VendorCandidate{}, nil
	}
	log.Info("extract: vendors extracted",
		zap.String("strategy", c.fallback.Name()),
		zap.Int("count", len(cands)),
	)
	return cands, nil
}

// Validate drops candidates whose business name is empty, at most two
// characters long, or contains the literal "contractor " (a placeholder
// guard that also rejects names like "Apex Contractor Services").
// Names are trimmed in place. The result is never nil.
func Validate(cands []model.VendorCandidate) []model.VendorCandidate {
	out := make([]model.VendorCandidate, 0, len(cands))
	for _, c := range cands {
		c.BusinessName = strings.TrimSpace(c.BusinessName)
		if !ValidName(c.BusinessName) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ValidName applies the business-name quality rule used by Validate.
func ValidName(name string) bool {
	if utf8.RuneCountInString(name) <= 2 {
		return false
	}
	return !strings.Contains(strings.ToLower(name), "contractor ")
}
