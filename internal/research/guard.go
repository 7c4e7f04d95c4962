package research

import (
	"context"

	"github.com/sells-group/vendor-research/internal/resilience"
)

// Guarded wraps a Researcher with a circuit breaker. Calls fail fast with
// resilience.ErrCircuitOpen while the provider is tripped. There is no retry.
type Guarded struct {
	next    Researcher
	breaker *resilience.Breaker
}

// NewGuarded returns next guarded by the registry's breaker for its name.
func NewGuarded(next Researcher, reg *resilience.Registry) *Guarded {
	return &Guarded{next: next, breaker: reg.Get(next.Name())}
}

// Name implements Researcher.
func (g *Guarded) Name() string { return g.next.Name() }

// Research implements Researcher.
func (g *Guarded) Research(ctx context.Context, q Query) (*Output, error) {
	return resilience.Do(ctx, g.breaker, func(ctx context.Context) (*Output, error) {
		return g.next.Research(ctx, q)
	})
}
