package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("invalid input: missing field"), false},
		{"marked", NewTransientError(errors.New("overloaded"), 503), true},
		{"marked and wrapped", eris.Wrap(NewTransientError(errors.New("rate limited"), 429), "research: perplexity"), true},
		{"connection reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), true},
		{"connection refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"net timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"message pattern", errors.New("net/http: TLS handshake timeout"), true},
		{"broken pipe text", errors.New("write: broken pipe"), true},
		{"caller cancelled", eris.Wrap(context.Canceled, "firecrawl: send request"), false},
		{"cancelled beats marking", NewTransientError(context.Canceled, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 402, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestClassifyStatus(t *testing.T) {
	base := errors.New("perplexity: unexpected status")

	err := ClassifyStatus(base, 503)
	var te *TransientError
	assert.ErrorAs(t, err, &te)
	assert.Equal(t, 503, te.StatusCode)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, base.Error(), err.Error())

	assert.Same(t, base, ClassifyStatus(base, 401))
	assert.NoError(t, ClassifyStatus(nil, 503))
}
