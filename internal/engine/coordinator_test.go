package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/af-corp/chatcenter/internal/cache"
	"github.com/af-corp/chatcenter/internal/config"
	"github.com/af-corp/chatcenter/internal/history"
)

func newTestCoordinator(t *testing.T, stub *stubUpstream, ttl time.Duration) (*Coordinator, *history.MemoryStore) {
	t.Helper()
	store := history.NewMemoryStore()
	loader := history.NewContextLoader(store, config.ContextConfig{
		MaxTotalWords: 500, RecentTurns: 5, RelatedTurns: 3,
	})
	c := cache.New(ttl)
	t.Cleanup(c.Close)
	return NewCoordinator(stub, loader, c, ttl, 3, nil), store
}

func TestRetrieve_AllBranchesSucceed(t *testing.T) {
	stub := &stubUpstream{knowledge: "kb text", experience: "exp text", web: "web text"}
	coord, store := newTestCoordinator(t, stub, time.Minute)
	store.AppendMessage(context.Background(), "s1", "alice", "user", "earlier message")

	bundle := coord.Retrieve(context.Background(), "s1", "hello", true)

	if bundle.Context == nil || len(bundle.Context.Recent) != 1 {
		t.Error("expected context branch populated")
	}
	if bundle.RAGContext != "kb text" {
		t.Errorf("expected knowledge slot filled, got %q", bundle.RAGContext)
	}
	if bundle.RAGExperience != "exp text" {
		t.Errorf("expected experience slot filled, got %q", bundle.RAGExperience)
	}
	if bundle.WebResults != "web text" {
		t.Errorf("expected web slot filled, got %q", bundle.WebResults)
	}
}

func TestRetrieve_BranchFailureIsIsolated(t *testing.T) {
	stub := &stubUpstream{
		knowledgeErr: errors.New("rag down"),
		experience:   "exp text",
		web:          "web text",
	}
	coord, _ := newTestCoordinator(t, stub, time.Minute)

	bundle := coord.Retrieve(context.Background(), "s1", "hello", true)

	if bundle.RAGContext != "" {
		t.Errorf("failed branch should leave empty slot, got %q", bundle.RAGContext)
	}
	if bundle.RAGExperience != "exp text" {
		t.Error("sibling branch result should still be used")
	}
	if bundle.WebResults != "web text" {
		t.Error("sibling branch result should still be used")
	}
}

func TestRetrieve_AllBranchesFail(t *testing.T) {
	down := errors.New("down")
	stub := &stubUpstream{knowledgeErr: down, experienceErr: down, webErr: down}
	coord, _ := newTestCoordinator(t, stub, time.Minute)

	// Never raises; the bundle just comes back empty.
	bundle := coord.Retrieve(context.Background(), "s1", "hello", true)
	if bundle.RAGContext != "" || bundle.RAGExperience != "" || bundle.WebResults != "" {
		t.Errorf("expected empty bundle, got %+v", bundle)
	}
}

func TestRetrieve_WebBranchGated(t *testing.T) {
	stub := &stubUpstream{web: "web text"}
	coord, _ := newTestCoordinator(t, stub, time.Minute)

	coord.Retrieve(context.Background(), "s1", "tell me about our pricing", false)
	if _, _, web, _, _ := stub.counts(); web != 0 {
		t.Errorf("web search should not be called when gated off, got %d calls", web)
	}

	coord.Retrieve(context.Background(), "s1", "search for recent pricing changes", false)
	if _, _, web, _, _ := stub.counts(); web != 1 {
		t.Errorf("trigger word should enable web search, got %d calls", web)
	}
}

func TestRetrieve_CacheIdempotence(t *testing.T) {
	stub := &stubUpstream{knowledge: "kb text", experience: "exp text"}
	coord, _ := newTestCoordinator(t, stub, time.Minute)
	ctx := context.Background()

	coord.Retrieve(ctx, "s1", "identical query", false)
	coord.Retrieve(ctx, "s1", "identical query", false)

	knowledge, experience, _, _, _ := stub.counts()
	if knowledge != 1 {
		t.Errorf("expected exactly one knowledge call within TTL, got %d", knowledge)
	}
	if experience != 1 {
		t.Errorf("expected exactly one experience call within TTL, got %d", experience)
	}
}

func TestRetrieve_CacheExpiryTriggersSecondCall(t *testing.T) {
	stub := &stubUpstream{knowledge: "kb text"}
	coord, _ := newTestCoordinator(t, stub, 15*time.Millisecond)
	ctx := context.Background()

	coord.Retrieve(ctx, "s1", "identical query", false)
	time.Sleep(30 * time.Millisecond)
	coord.Retrieve(ctx, "s1", "identical query", false)

	if knowledge, _, _, _, _ := stub.counts(); knowledge != 2 {
		t.Errorf("expected a second outbound call after TTL expiry, got %d", knowledge)
	}
}

func TestRetrieve_FailuresAreNeverCached(t *testing.T) {
	stub := &stubUpstream{knowledgeErr: errors.New("rag down")}
	coord, _ := newTestCoordinator(t, stub, time.Minute)
	ctx := context.Background()

	coord.Retrieve(ctx, "s1", "query", false)

	stub.mu.Lock()
	stub.knowledgeErr = nil
	stub.knowledge = "kb text"
	stub.mu.Unlock()

	bundle := coord.Retrieve(ctx, "s1", "query", false)
	if bundle.RAGContext != "kb text" {
		t.Errorf("recovered branch should be retried, not served a cached failure, got %q", bundle.RAGContext)
	}
}

func TestRetrieve_DistinctCacheNamespaces(t *testing.T) {
	stub := &stubUpstream{knowledge: "kb", experience: "exp"}
	coord, _ := newTestCoordinator(t, stub, time.Minute)

	bundle := coord.Retrieve(context.Background(), "s1", "query", false)
	if bundle.RAGContext == bundle.RAGExperience {
		t.Error("knowledge and experience branches must not share cache entries")
	}
}

func TestRetrieve_WallClockBoundedBySlowestBranch(t *testing.T) {
	// Three slow branches at ~50ms each: concurrent fan-out finishes in one
	// branch duration, sequential would take three.
	delay := 50 * time.Millisecond
	stub := &slowRetriever{delay: delay}
	store := history.NewMemoryStore()
	loader := history.NewContextLoader(store, config.ContextConfig{MaxTotalWords: 100, RecentTurns: 2, RelatedTurns: 2})
	c := cache.New(time.Minute)
	defer c.Close()
	coord := NewCoordinator(stub, loader, c, time.Minute, 3, nil)

	start := time.Now()
	coord.Retrieve(context.Background(), "s1", "search something", true)
	elapsed := time.Since(start)

	if elapsed > 2*delay {
		t.Errorf("fan-out took %s, expected roughly one branch duration (%s)", elapsed, delay)
	}
}

type slowRetriever struct {
	delay time.Duration
}

func (s *slowRetriever) SearchKnowledge(ctx context.Context, query string, topK int) (string, error) {
	time.Sleep(s.delay)
	return "kb", nil
}

func (s *slowRetriever) SearchExperience(ctx context.Context, query string, topK int) (string, error) {
	time.Sleep(s.delay)
	return "exp", nil
}

func (s *slowRetriever) WebSearch(ctx context.Context, query string) (string, error) {
	time.Sleep(s.delay)
	return "web", nil
}
