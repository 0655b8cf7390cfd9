package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/af-corp/chatcenter/internal/config"
	"github.com/af-corp/chatcenter/internal/history"
	"github.com/af-corp/chatcenter/internal/telemetry"
	"github.com/af-corp/chatcenter/internal/upstream"
)

// jobTimeout bounds one background job; it is detached from the originating
// request's context so fire-and-forget work survives client disconnects.
const jobTimeout = 30 * time.Second

// summaryTurnWindow is how many recent turns feed a summary regeneration.
const summaryTurnWindow = 20

// LearningSubmitter is the learning-submission slice of the upstream client.
type LearningSubmitter interface {
	SubmitLearning(ctx context.Context, sample upstream.LearningSample) error
}

// Job is one exchange handed to the background worker after the response has
// been sent.
type Job struct {
	SessionID string
	UserID    string
	Message   string
	Response  string
	Model     string
}

// Worker persists exchanges, extracts reminders, regenerates session
// summaries and submits learning samples — all best-effort, after the caller
// already has its response. The queue is bounded: when it is full the job is
// dropped and counted rather than blocking the request path. Sub-steps are
// independent; a failing step is logged and the rest still run.
type Worker struct {
	store   history.Store
	llm     LLM
	models  func() *config.ModelsConfig
	learn   LearningSubmitter
	cfg     config.BackgroundConfig
	metrics *telemetry.Metrics

	queue chan Job
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func NewWorker(store history.Store, llm LLM, models func() *config.ModelsConfig, learn LearningSubmitter, cfg config.BackgroundConfig, metrics *telemetry.Metrics) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Worker{
		store:   store,
		llm:     llm,
		models:  models,
		learn:   learn,
		cfg:     cfg,
		metrics: metrics,
		queue:   make(chan Job, cfg.QueueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the consumer goroutine.
func (w *Worker) Start() {
	go w.run()
}

// Enqueue hands a job to the worker without blocking. Returns false when the
// queue is full and the job was dropped.
func (w *Worker) Enqueue(job Job) bool {
	select {
	case w.queue <- job:
		if w.metrics != nil {
			w.metrics.BackgroundQueueDepth.Set(float64(len(w.queue)))
		}
		return true
	default:
		slog.Error("background queue full, dropping job",
			"session_id", job.SessionID,
			"user_id", job.UserID,
		)
		if w.metrics != nil {
			w.metrics.BackgroundDropped.Inc()
		}
		return false
	}
}

// Stop drains the queue and waits for in-flight work to finish.
func (w *Worker) Stop(ctx context.Context) {
	w.once.Do(func() { close(w.stop) })
	select {
	case <-w.done:
	case <-ctx.Done():
		slog.Warn("background worker stop timed out")
	}
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		select {
		case job := <-w.queue:
			w.process(job)
			if w.metrics != nil {
				w.metrics.BackgroundQueueDepth.Set(float64(len(w.queue)))
			}
		case <-w.stop:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case job := <-w.queue:
					w.process(job)
				default:
					return
				}
			}
		}
	}
}

func (w *Worker) process(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	w.runStep("persist", job, func() error {
		if err := w.store.AppendMessage(ctx, job.SessionID, job.UserID, "user", job.Message); err != nil {
			return err
		}
		return w.store.AppendMessage(ctx, job.SessionID, job.UserID, "assistant", job.Response)
	})

	w.runStep("reminder", job, func() error {
		for _, reminder := range ExtractReminders(job.Message) {
			if err := w.store.SaveReminder(ctx, job.SessionID, job.UserID, reminder); err != nil {
				return err
			}
		}
		return nil
	})

	w.runStep("summary", job, func() error {
		count, err := w.store.MessageCount(ctx, job.SessionID)
		if err != nil {
			return err
		}
		if w.cfg.SummaryInterval <= 0 || count == 0 || count%w.cfg.SummaryInterval != 0 {
			return nil
		}
		return w.regenerateSummary(ctx, job.SessionID)
	})

	w.runStep("learning", job, func() error {
		return w.learn.SubmitLearning(ctx, upstream.LearningSample{
			SessionID: job.SessionID,
			UserID:    job.UserID,
			Message:   job.Message,
			Response:  job.Response,
			Model:     job.Model,
		})
	})
}

// runStep isolates one sub-step: failures are logged and counted, never
// re-raised, so the remaining steps still run.
func (w *Worker) runStep(step string, job Job, fn func() error) {
	err := fn()
	outcome := "ok"
	if err != nil {
		outcome = "error"
		slog.Error("background step failed",
			"step", step,
			"session_id", job.SessionID,
			"user_id", job.UserID,
			"error", err,
		)
	}
	if w.metrics != nil {
		w.metrics.RecordBackgroundStep(step, outcome)
	}
}

func (w *Worker) regenerateSummary(ctx context.Context, sessionID string) error {
	turns, err := w.store.RecentTurns(ctx, sessionID, summaryTurnWindow)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("Summarize this conversation in a few sentences, keeping facts the assistant will need later:\n\n")
	for _, t := range turns {
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}

	model, opts := w.models().Resolve("")
	summary, err := w.llm.Generate(ctx, b.String(), model, opts)
	if err != nil {
		return fmt.Errorf("summary generation: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil
	}
	return w.store.SaveSummary(ctx, sessionID, summary)
}
