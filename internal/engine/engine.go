// Package engine implements the chat-orchestration core: concurrent
// retrieval fan-out, prompt assembly, generation with fallback, and the
// fire-and-forget background persistence phase.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/af-corp/chatcenter/internal/telemetry"
	"github.com/af-corp/chatcenter/internal/types"
)

// Engine drives one chat turn end to end. The synchronous path is
// retrieve → assemble → generate; persistence happens afterwards on the
// background worker and can never affect the returned result.
type Engine struct {
	coordinator *Coordinator
	assembler   *Assembler
	generator   *Generator
	worker      *Worker
	metrics     *telemetry.Metrics
}

func New(coordinator *Coordinator, assembler *Assembler, generator *Generator, worker *Worker, metrics *telemetry.Metrics) *Engine {
	return &Engine{
		coordinator: coordinator,
		assembler:   assembler,
		generator:   generator,
		worker:      worker,
		metrics:     metrics,
	}
}

// ProcessChat handles one chat turn. The only error it can return is
// validation failure on the request itself; every upstream failure degrades
// into a normal-shaped result instead.
func (e *Engine) ProcessChat(ctx context.Context, req *types.ChatRequest) (*types.ChatResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chat request: %w", err)
	}

	start := req.ReceivedAt
	if start.IsZero() {
		start = time.Now()
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = types.NewSessionID(req.UserID)
	}

	bundle := e.coordinator.Retrieve(ctx, sessionID, req.Message, req.WebSearch)
	prompt := e.assembler.Assemble(req.Message, bundle)
	response, modelUsed := e.generator.Generate(ctx, prompt, req.Model)

	elapsed := time.Since(start)
	result := &types.ChatResult{
		Response:  response,
		SessionID: sessionID,
		Metadata: types.ChatMetadata{
			DetectedSystem:        DetectSystem(req.Message),
			RAGUsed:               bundle.RAGContext != "",
			ContextStats:          bundle.Context.Stats(),
			ProcessingTimeSeconds: elapsed.Seconds(),
			ModelUsed:             modelUsed,
		},
	}

	slog.Info("chat turn completed",
		"session_id", sessionID,
		"user_id", req.UserID,
		"model", modelUsed,
		"rag_used", result.Metadata.RAGUsed,
		"detected_system", result.Metadata.DetectedSystem,
		"duration_ms", elapsed.Milliseconds(),
	)
	if e.metrics != nil {
		e.metrics.RecordRequest(telemetry.RequestLabels{
			Status:     "200",
			Model:      modelUsed,
			RAGUsed:    result.Metadata.RAGUsed,
			DurationMs: float64(elapsed.Milliseconds()),
		})
	}

	// The caller has its result; everything after this point is detached.
	e.worker.Enqueue(Job{
		SessionID: sessionID,
		UserID:    req.UserID,
		Message:   req.Message,
		Response:  response,
		Model:     modelUsed,
	})

	return result, nil
}
