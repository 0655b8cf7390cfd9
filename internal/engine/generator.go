package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/af-corp/chatcenter/internal/config"
	"github.com/af-corp/chatcenter/internal/telemetry"
	"github.com/af-corp/chatcenter/internal/upstream"
)

// FallbackResponse is returned when the LLM call fails or comes back empty.
// Callers may rely on Generate never returning an empty string.
const FallbackResponse = "I couldn't generate a full answer right now. Please try again in a moment."

// LLM is the generation slice of the upstream client.
type LLM interface {
	Generate(ctx context.Context, prompt, model string, opts config.GenerationOpts) (string, error)
}

// Generator calls the LLM with the fixed per-model generation options and
// degrades to FallbackResponse on any failure.
type Generator struct {
	llm     LLM
	models  func() *config.ModelsConfig
	metrics *telemetry.Metrics
}

func NewGenerator(llm LLM, models func() *config.ModelsConfig, metrics *telemetry.Metrics) *Generator {
	return &Generator{llm: llm, models: models, metrics: metrics}
}

// Generate produces the reply text and reports the model used. The returned
// text is never empty.
func (g *Generator) Generate(ctx context.Context, prompt, requestedModel string) (string, string) {
	model, opts := g.models().Resolve(requestedModel)

	response, err := g.llm.Generate(ctx, prompt, model, opts)
	if err != nil {
		reason := "unavailable"
		if upstream.IsTimeout(err) {
			reason = "timeout"
		}
		slog.Warn("generation failed, using fallback", "model", model, "reason", reason, "error", err)
		if g.metrics != nil {
			g.metrics.RecordFallback(reason)
		}
		return FallbackResponse, model
	}

	if strings.TrimSpace(response) == "" {
		slog.Warn("generation returned empty body, using fallback", "model", model)
		if g.metrics != nil {
			g.metrics.RecordFallback("empty")
		}
		return FallbackResponse, model
	}

	return response, model
}
