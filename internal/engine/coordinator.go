package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/af-corp/chatcenter/internal/cache"
	"github.com/af-corp/chatcenter/internal/telemetry"
	"github.com/af-corp/chatcenter/internal/types"
)

const (
	ragKeyPrefix = "rag_"
	expKeyPrefix = "exp_"
)

// Retriever is the slice of the upstream client the coordinator needs.
type Retriever interface {
	SearchKnowledge(ctx context.Context, query string, topK int) (string, error)
	SearchExperience(ctx context.Context, query string, topK int) (string, error)
	WebSearch(ctx context.Context, query string) (string, error)
}

// ContextSource loads the bounded conversational context for a session.
type ContextSource interface {
	Load(ctx context.Context, sessionID, latestMessage string) (*types.ContextSnapshot, error)
}

// Coordinator fans out the four independent retrieval operations for a turn
// and joins them into a RetrievalBundle. The bundle is always returned: a
// branch that fails or is skipped leaves its slot empty, and no branch
// failure ever propagates to the caller. Wall-clock time is bounded by the
// slowest branch, which is in turn bounded by the upstream timeouts.
type Coordinator struct {
	retriever Retriever
	contexts  ContextSource
	cache     *cache.Cache
	cacheTTL  time.Duration
	topK      int
	metrics   *telemetry.Metrics
}

func NewCoordinator(retriever Retriever, contexts ContextSource, responseCache *cache.Cache, cacheTTL time.Duration, topK int, metrics *telemetry.Metrics) *Coordinator {
	return &Coordinator{
		retriever: retriever,
		contexts:  contexts,
		cache:     responseCache,
		cacheTTL:  cacheTTL,
		topK:      topK,
		metrics:   metrics,
	}
}

// Retrieve runs the context, knowledge, experience and (gated) web branches
// concurrently and returns the joined bundle.
func (c *Coordinator) Retrieve(ctx context.Context, sessionID, message string, webSearchEnabled bool) *types.RetrievalBundle {
	bundle := &types.RetrievalBundle{}

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		defer c.recoverBranch("context")
		snap, err := c.contexts.Load(ctx, sessionID, message)
		if err != nil {
			c.branchFailed("context", sessionID, err)
			return
		}
		bundle.Context = snap
	}()

	go func() {
		defer wg.Done()
		defer c.recoverBranch("knowledge")
		text, err := c.cachedSearch(ctx, "knowledge", ragKeyPrefix+message, func() (string, error) {
			return c.retriever.SearchKnowledge(ctx, message, c.topK)
		})
		if err != nil {
			c.branchFailed("knowledge", sessionID, err)
			return
		}
		bundle.RAGContext = text
	}()

	go func() {
		defer wg.Done()
		defer c.recoverBranch("experience")
		text, err := c.cachedSearch(ctx, "experience", expKeyPrefix+message, func() (string, error) {
			return c.retriever.SearchExperience(ctx, message, c.topK)
		})
		if err != nil {
			c.branchFailed("experience", sessionID, err)
			return
		}
		bundle.RAGExperience = text
	}()

	go func() {
		defer wg.Done()
		defer c.recoverBranch("web")
		if !ShouldWebSearch(webSearchEnabled, message) {
			return
		}
		text, err := c.retriever.WebSearch(ctx, message)
		if err != nil {
			c.branchFailed("web", sessionID, err)
			return
		}
		bundle.WebResults = text
	}()

	wg.Wait()
	return bundle
}

// cachedSearch checks the response cache before issuing the upstream call.
// A hit short-circuits the network; a successful call (including an empty
// result) populates the cache. Failures are never cached.
func (c *Coordinator) cachedSearch(ctx context.Context, branch, key string, call func() (string, error)) (string, error) {
	if cached, ok := c.cache.Get(key); ok {
		if c.metrics != nil {
			c.metrics.RecordCacheOp(branch, "hit")
		}
		return cached, nil
	}
	if c.metrics != nil {
		c.metrics.RecordCacheOp(branch, "miss")
	}

	text, err := call()
	if err != nil {
		return "", err
	}
	c.cache.Set(key, text, c.cacheTTL)
	return text, nil
}

func (c *Coordinator) branchFailed(branch, sessionID string, err error) {
	slog.Warn("retrieval branch degraded",
		"branch", branch,
		"session_id", sessionID,
		"error", err,
	)
	if c.metrics != nil {
		c.metrics.RecordBranchFailure(branch)
	}
}

// recoverBranch keeps a panicking branch from taking down the request; the
// slot is simply left empty like any other failure.
func (c *Coordinator) recoverBranch(branch string) {
	if r := recover(); r != nil {
		slog.Error("retrieval branch panicked", "branch", branch, "panic", r)
		if c.metrics != nil {
			c.metrics.RecordBranchFailure(branch)
		}
	}
}
