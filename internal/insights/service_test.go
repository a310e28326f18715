package insights_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/novahub/internal/insights"
	"github.com/noah-isme/novahub/internal/order"
	"github.com/noah-isme/novahub/internal/resilience"
)

type capturedRequest struct {
	Path   string
	APIKey string
	Body   struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
		GenerationConfig struct {
			Temperature float64 `json:"temperature"`
		} `json:"generationConfig"`
	}
}

func geminiServer(t *testing.T, status int, answer string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var got []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var c capturedRequest
		c.Path = r.URL.Path
		c.APIKey = r.Header.Get("x-goog-api-key")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &c.Body)
		got = append(got, c)
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"candidates": []any{map[string]any{
					"content": map[string]any{"parts": []any{map[string]any{"text": answer}}},
				}},
			})
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func newGemini(srv *httptest.Server, key string) *insights.Gemini {
	return &insights.Gemini{
		HTTP:    resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 2, BaseBackoff: time.Millisecond, Target: "gemini-test"},
		BaseURL: srv.URL,
		APIKey:  key,
	}
}

type stubOrders struct{ orders []order.Order }

func (s stubOrders) List(context.Context, order.Scope, order.ListFilter) ([]order.Order, error) {
	return s.orders, nil
}

type failingGen struct{ calls int }

func (f *failingGen) Generate(context.Context, string, float64) (string, error) {
	f.calls++
	return "", errors.New("boom")
}

func TestProductDescriptionPrompt(t *testing.T) {
	srv, got := geminiServer(t, http.StatusOK, "  A stunning camera.  ")
	svc := &insights.Service{Gen: newGemini(srv, "k-123")}

	text := svc.ProductDescription(context.Background(), "Quantum Lens Camera", "Electronics", "Lumina Optics")
	require.Equal(t, "A stunning camera.", text)
	require.Len(t, *got, 1)
	req := (*got)[0]
	require.Equal(t, "/v1beta/models/gemini-3-flash-preview:generateContent", req.Path)
	require.Equal(t, "k-123", req.APIKey)
	require.InDelta(t, 0.7, req.Body.GenerationConfig.Temperature, 1e-6)
	prompt := req.Body.Contents[0].Parts[0].Text
	require.Contains(t, prompt, `item called "Quantum Lens Camera" by "Lumina Optics" in the "Electronics" category`)
	require.True(t, strings.HasSuffix(prompt, "Keep it under 100 words."))
}

func TestProductDescriptionKeepsQuotesVerbatim(t *testing.T) {
	srv, got := geminiServer(t, http.StatusOK, "ok")
	svc := &insights.Service{Gen: newGemini(srv, "k")}

	svc.ProductDescription(context.Background(), `The "Pro" Lens`, "Cameras", `O'Neil & Co`)
	require.Len(t, *got, 1)
	prompt := (*got)[0].Body.Contents[0].Parts[0].Text
	require.Contains(t, prompt, `item called "The "Pro" Lens" by "O'Neil & Co" in the "Cameras" category`)
	require.NotContains(t, prompt, `\"`)
}

func TestGeminiUsesConfiguredModel(t *testing.T) {
	srv, got := geminiServer(t, http.StatusOK, "hi")
	g := newGemini(srv, "k")
	g.Model = "gemini-2.5-pro"

	text, err := g.Generate(context.Background(), "hello", 0.2)
	require.NoError(t, err)
	require.Equal(t, "hi", text)
	require.Equal(t, "/v1beta/models/gemini-2.5-pro:generateContent", (*got)[0].Path)
	require.InDelta(t, 0.2, (*got)[0].Body.GenerationConfig.Temperature, 1e-6)
}

func TestSalesAnalysisUsesStoreOrders(t *testing.T) {
	srv, got := geminiServer(t, http.StatusOK, "Sales are steady. Bundle earbuds with chairs.")
	orders := stubOrders{orders: []order.Order{{ID: "482913", Total: decimal.RequireFromString("249.99"), Status: order.StatusPending}}}
	svc := &insights.Service{Gen: newGemini(srv, "k"), Orders: orders}

	text := svc.SalesAnalysis(context.Background(), nil)
	require.Equal(t, "Sales are steady. Bundle earbuds with chairs.", text)
	req := (*got)[0]
	require.InDelta(t, 0.5, req.Body.GenerationConfig.Temperature, 1e-6)
	prompt := req.Body.Contents[0].Parts[0].Text
	require.True(t, strings.HasPrefix(prompt, "As a business analyst, briefly summarize these sales trends and suggest one action to improve revenue: ["))
	require.Contains(t, prompt, `"id":"482913"`)
}

func TestFallbackTexts(t *testing.T) {
	srv, got := geminiServer(t, http.StatusOK, "")
	svc := &insights.Service{Gen: newGemini(srv, "k")}
	require.Equal(t, insights.DescriptionEmpty, svc.ProductDescription(context.Background(), "a", "b", "c"))
	require.Equal(t, insights.AnalysisEmpty, svc.SalesAnalysis(context.Background(), []order.Order{}))
	require.Len(t, *got, 2)

	down, downCalls := geminiServer(t, http.StatusServiceUnavailable, "")
	svc = &insights.Service{Gen: newGemini(down, "k")}
	require.Equal(t, insights.DescriptionFailed, svc.ProductDescription(context.Background(), "a", "b", "c"))
	require.Len(t, *downCalls, 2, "retried once")
	require.Equal(t, insights.AnalysisFailed, svc.SalesAnalysis(context.Background(), nil))

	gen := &failingGen{}
	svc = &insights.Service{Gen: gen}
	require.Equal(t, insights.AnalysisFailed, svc.SalesAnalysis(context.Background(), nil))
	require.Equal(t, 1, gen.calls)
}

func TestMissingKeySkipsNetwork(t *testing.T) {
	srv, got := geminiServer(t, http.StatusOK, "never")
	svc := &insights.Service{Gen: newGemini(srv, "")}
	require.Equal(t, insights.DescriptionFailed, svc.ProductDescription(context.Background(), "a", "b", "c"))
	require.Empty(t, *got)

	var nilSvc *insights.Service
	require.Equal(t, insights.AnalysisFailed, nilSvc.SalesAnalysis(context.Background(), nil))
}

func TestHandlers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Great chair."}]}}]}`))
	}))
	t.Cleanup(srv.Close)
	h := &insights.Handler{Svc: &insights.Service{Gen: newGemini(srv, "k"), Orders: stubOrders{}}}

	rec := httptest.NewRecorder()
	body := `{"name":"Nexus Gaming Chair","category":"Furniture","company_name":"Apex Comfort"}`
	h.ProductDescription(rec, httptest.NewRequest(http.MethodPost, "/admin/insights/product-description", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"data":{"text":"Great chair."}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ProductDescription(rec, httptest.NewRequest(http.MethodPost, "/admin/insights/product-description", strings.NewReader(`{"name":"x"}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	h.ProductDescription(rec, httptest.NewRequest(http.MethodPost, "/admin/insights/product-description", strings.NewReader(`{`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.SalesAnalysis(rec, httptest.NewRequest(http.MethodPost, "/admin/insights/sales", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, calls.Load())
}
