package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request() Request {
	return Request{
		Question:   "¿Recomendaría el programa?",
		Results:    map[string]any{"kpis": map[string]any{"nps": 12.5}},
		Population: map[string]any{"dataset": "egresados", "programa": "ATI"},
		School:     "Computación",
	}
}

func TestPrompt(t *testing.T) {
	t.Parallel()

	p, err := Prompt(request())
	require.NoError(t, err)
	assert.Contains(t, p, "Escuela de Computación")
	assert.Contains(t, p, "Enunciado: ¿Recomendaría el programa?")
	assert.Contains(t, p, `Resultados: {"kpis":{"nps":12.5}}`)
	assert.Contains(t, p, `{"dataset":"egresados","programa":"ATI"}`)

	_, err = Prompt(Request{Results: func() {}})
	assert.Error(t, err)
}

func TestHTTPGeneratorGenerate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var in chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "gpt-4o-mini", in.Model)
		if assert.Len(t, in.Messages, 1) {
			assert.Contains(t, in.Messages[0].Content, "Computación")
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  El 60% recomienda el programa. "}}]}`))
	}))
	defer srv.Close()

	g, err := NewHTTPGenerator(Config{URL: srv.URL + "/v1/", APIKey: "sk-test"})
	require.NoError(t, err)
	text, err := g.Generate(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "El 60% recomienda el programa.", text)
}

func TestHTTPGeneratorEmptyCompletion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	g, err := NewHTTPGenerator(Config{URL: srv.URL})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), request())
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	g, err := NewHTTPGenerator(Config{URL: srv.URL, FailureThreshold: 2})
	require.NoError(t, err)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := g.Generate(ctx, request())
		require.Error(t, err)
	}
	_, err = g.Generate(ctx, request())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), hits.Load())
}

type failing struct{}

func (failing) Generate(context.Context, Request) (string, error) {
	return "", errors.New("service down")
}

type fixed string

func (f fixed) Generate(context.Context, Request) (string, error) { return string(f), nil }

func TestNarrateDegrades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	assert.Equal(t, "", Narrate(ctx, failing{}, request()))
	assert.Equal(t, "", Narrate(ctx, nil, request()))
	assert.Equal(t, "texto", Narrate(ctx, fixed("texto"), request()))
}

func TestNewHTTPGeneratorRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPGenerator(Config{})
	assert.Error(t, err)
}

func TestAPIKey(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "openai_api_key")
	require.NoError(t, os.WriteFile(p, []byte("sk-file\n"), 0o600))

	assert.Equal(t, "sk-env", APIKey("sk-env", p))
	assert.Equal(t, "sk-file", APIKey("", p))
	assert.Equal(t, "", APIKey("", filepath.Join(t.TempDir(), "missing")))
}
