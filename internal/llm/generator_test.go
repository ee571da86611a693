package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGenerator struct {
	out  string
	err  error
	name string
}

func (s *stubGenerator) Generate(ctx context.Context, req Request) (string, error) {
	return s.out, s.err
}

func (s *stubGenerator) Name() string { return s.name }

func TestWithFallback_PrimarySucceeds(t *testing.T) {
	primary := &stubGenerator{out: "remote text", name: "remote"}
	fallback := Func(func(ctx context.Context, req Request) (string, error) {
		t.Fatal("fallback should not run")
		return "", nil
	})

	gen := WithFallback(primary, fallback, zap.NewNop())
	out, err := gen.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "remote text", out)
	assert.Equal(t, "remote+fallback", gen.Name())
}

func TestWithFallback_PrimaryFails(t *testing.T) {
	primary := &stubGenerator{err: errors.New("network down"), name: "remote"}
	gen := WithFallback(primary, Func(func(ctx context.Context, req Request) (string, error) {
		return "local text", nil
	}), zap.NewNop())

	out, err := gen.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "local text", out, "fallback output should win on primary failure")
}

func TestWithFallback_NilPrimary(t *testing.T) {
	gen := WithFallback(nil, Func(func(ctx context.Context, req Request) (string, error) {
		return "local text", nil
	}), zap.NewNop())

	out, err := gen.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "local text", out)
	assert.Equal(t, "local", gen.Name())
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "gemini-2.0-flash")
	assert.ErrorIs(t, err, ErrNoClient)
}
