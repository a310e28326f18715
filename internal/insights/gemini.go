package insights

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-3-flash-preview"
	// DefaultBaseURL is the Generative Language REST root.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/"
	// APIVersion is the path segment the SDK prefixes to model calls.
	APIVersion = "v1beta"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("insights: api key not configured")

// Doer sends a request under a caller context. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// doerTransport lets the SDK's http.Client send through a Doer, so retries
// and the breaker apply to every SDK call.
type doerTransport struct {
	Doer Doer
}

func (t doerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.Doer.Do(req.Context(), req)
}

// Gemini generates text through the genai SDK.
type Gemini struct {
	HTTP    Doer
	BaseURL string
	APIKey  string
	Model   string

	once   sync.Once
	client *genai.Client
	err    error
}

func (g *Gemini) sdk(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		base := g.BaseURL
		if base == "" {
			base = DefaultBaseURL
		}
		g.client, g.err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     g.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: &http.Client{Transport: doerTransport{Doer: g.HTTP}},
			HTTPOptions: genai.HTTPOptions{
				BaseURL:    base,
				APIVersion: APIVersion,
			},
		})
		if g.err != nil {
			g.err = fmt.Errorf("insights: build client: %w", g.err)
		}
	})
	return g.client, g.err
}

// Generate returns the text of the first candidate. An empty string with a
// nil error means the model answered with no text.
func (g *Gemini) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	// The SDK falls back to environment keys, so an empty key stops here.
	if g == nil || strings.TrimSpace(g.APIKey) == "" {
		return "", ErrNotConfigured
	}
	if g.HTTP == nil {
		return "", errors.New("insights: http client not configured")
	}
	client, err := g.sdk(ctx)
	if err != nil {
		return "", err
	}
	model := g.Model
	if model == "" {
		model = DefaultModel
	}
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	})
	if err != nil {
		return "", fmt.Errorf("insights: generate: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
