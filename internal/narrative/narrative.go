// Package narrative turns analytics results into a short Spanish paragraph
// through an OpenAI-compatible chat-completion endpoint. Generation is best
// effort: Narrate degrades to an empty narrative on any failure.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/samvalverde/PAAA/internal/datasource/httpds"
	"github.com/samvalverde/PAAA/internal/logging"
	"github.com/samvalverde/PAAA/internal/metrics"
)

// ErrEmptyCompletion is returned when the service answers without text.
var ErrEmptyCompletion = errors.New("narrative: empty completion")

// Request is the input of one narrative: the survey statement, the
// analytics payload and the population that answered. Results and
// Population are rendered as JSON in the prompt.
type Request struct {
	Question   string
	Results    any
	Population any
	School     string
}

// Generator produces narrative text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Config configures HTTPGenerator. Requests go to URL + "/chat/completions".
// FailureThreshold consecutive failures open the breaker for OpenTimeout
// (defaults 3 and 30s).
type Config struct {
	URL              string
	APIKey           string
	Model            string
	Timeout          time.Duration
	MaxRetries       int
	FailureThreshold uint32
	OpenTimeout      time.Duration
	Transport        http.RoundTripper
}

const promptText = `Eres un importante estadístico que escribe en español y que debe realizar un análisis de una pregunta de encuesta aplicada a {{.Population}} de la Escuela de {{.School}} del Tecnológico de Costa Rica. La encuesta tiene como objetivo evaluar las condiciones de la ingeniería para la acreditación estatal.
Debes generar un único párrafo de análisis descriptivo, conciso y claro, usando los porcentajes provistos.

Enunciado: {{.Question}}
Resultados: {{.Results}}
`

var prompt = template.Must(template.New("narrative").Parse(promptText))

// Prompt renders the user prompt for req.
func Prompt(req Request) (string, error) {
	results, err := compactJSON(req.Results)
	if err != nil {
		return "", fmt.Errorf("narrative: encode results: %w", err)
	}
	population, err := compactJSON(req.Population)
	if err != nil {
		return "", fmt.Errorf("narrative: encode population: %w", err)
	}
	var b bytes.Buffer
	err = prompt.Execute(&b, map[string]string{
		"Question":   req.Question,
		"Results":    results,
		"Population": population,
		"School":     req.School,
	})
	if err != nil {
		return "", fmt.Errorf("narrative: render prompt: %w", err)
	}
	return b.String(), nil
}

// compactJSON encodes v without HTML escaping so accents and symbols stay
// readable. Strings are used verbatim.
func compactJSON(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// HTTPGenerator calls a chat-completion endpoint through a circuit breaker.
type HTTPGenerator struct {
	client   *httpds.Client
	endpoint string
	apiKey   string
	model    string
	cb       *gobreaker.CircuitBreaker[string]
}

// NewHTTPGenerator validates cfg and builds the generator.
func NewHTTPGenerator(cfg Config) (*HTTPGenerator, error) {
	if cfg.URL == "" {
		return nil, errors.New("narrative: url must not be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	threshold := cfg.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "narrative",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("narrative: circuit breaker state changed")
		},
	})
	return &HTTPGenerator{
		client: httpds.NewClient(httpds.Config{
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			Transport:  cfg.Transport,
		}),
		endpoint: strings.TrimRight(cfg.URL, "/") + "/chat/completions",
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		cb:       cb,
	}, nil
}

// Generate implements Generator. While the breaker is open it fails fast
// with gobreaker.ErrOpenState.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (string, error) {
	text, err := Prompt(req)
	if err != nil {
		return "", err
	}
	return g.cb.Execute(func() (string, error) {
		var hdr http.Header
		if g.apiKey != "" {
			hdr = http.Header{"Authorization": []string{"Bearer " + g.apiKey}}
		}
		var resp chatResponse
		in := chatRequest{Model: g.model, Messages: []chatMessage{{Role: "user", Content: text}}}
		if err := g.client.PostJSON(ctx, g.endpoint, in, &resp, hdr); err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return "", ErrEmptyCompletion
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
}

// Narrate runs g and returns "" instead of an error. A nil g yields "".
func Narrate(ctx context.Context, g Generator, req Request) string {
	if g == nil {
		metrics.RecordNarrative(true)
		return ""
	}
	text, err := g.Generate(ctx, req)
	if err != nil {
		logging.Warn().Err(err).Str("question", req.Question).Msg("narrative: generation failed, returning empty narrative")
		metrics.RecordNarrative(true)
		return ""
	}
	metrics.RecordNarrative(false)
	return text
}

// APIKey returns key when set, else the trimmed contents of secretPath
// (a mounted secret such as /run/secrets/openai_api_key), else "".
func APIKey(key, secretPath string) string {
	if key != "" {
		return key
	}
	if secretPath == "" {
		return ""
	}
	b, err := os.ReadFile(secretPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
