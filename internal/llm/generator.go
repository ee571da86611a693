// Package llm models text generation as a capability with a remote
// Gemini implementation and deterministic local fallbacks. LLM failures
// are recoverable by design: callers wrap the remote generator with
// WithFallback and a local closure that can always deliver a defined
// result.
package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrNoClient reports generation attempted without a configured remote
// client. WithFallback demotes it like any other generation error.
var ErrNoClient = errors.New("no llm client configured")

// Request is one generation call. Each caller specifies its own timeout
// and temperature; MaxWords is a soft hint forwarded to the model.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxWords    int
	Timeout     time.Duration
}

// Generator produces text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// Func adapts a deterministic closure into a Generator. The local
// fallbacks for turn generation, summarization and moderation are all
// built this way at their call sites, where the structured inputs live.
type Func func(ctx context.Context, req Request) (string, error)

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Name implements Generator.
func (f Func) Name() string { return "local" }

type fallbackGenerator struct {
	primary  Generator
	fallback Generator
	logger   *zap.Logger
}

// WithFallback returns a Generator that demotes to fallback on any
// primary error. A nil primary goes straight to the fallback, which is
// how the engine runs without an API key.
func WithFallback(primary, fallback Generator, logger *zap.Logger) Generator {
	return &fallbackGenerator{primary: primary, fallback: fallback, logger: logger}
}

func (g *fallbackGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if g.primary != nil {
		out, err := g.primary.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		g.logger.Warn("Generation demoted to local fallback",
			zap.String("generator", g.primary.Name()), zap.Error(err))
	}
	return g.fallback.Generate(ctx, req)
}

func (g *fallbackGenerator) Name() string {
	if g.primary != nil {
		return g.primary.Name() + "+fallback"
	}
	return g.fallback.Name()
}
