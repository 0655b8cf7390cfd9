package engine

import (
	"context"
	"sync"
	"time"

	"github.com/af-corp/chatcenter/internal/config"
	"github.com/af-corp/chatcenter/internal/history"
	"github.com/af-corp/chatcenter/internal/upstream"
)

// stubUpstream implements Retriever, LLM and LearningSubmitter with
// programmable results, errors, delays and call counts.
type stubUpstream struct {
	mu sync.Mutex

	knowledge      string
	knowledgeErr   error
	knowledgeCalls int

	experience      string
	experienceErr   error
	experienceCalls int

	web      string
	webErr   error
	webCalls int

	response      string
	generateErr   error
	generateDelay time.Duration
	generateCalls int
	lastPrompt    string
	lastModel     string

	learnErr   error
	learnCalls int
}

func (s *stubUpstream) SearchKnowledge(ctx context.Context, query string, topK int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knowledgeCalls++
	return s.knowledge, s.knowledgeErr
}

func (s *stubUpstream) SearchExperience(ctx context.Context, query string, topK int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.experienceCalls++
	return s.experience, s.experienceErr
}

func (s *stubUpstream) WebSearch(ctx context.Context, query string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webCalls++
	return s.web, s.webErr
}

func (s *stubUpstream) Generate(ctx context.Context, prompt, model string, opts config.GenerationOpts) (string, error) {
	if s.generateDelay > 0 {
		time.Sleep(s.generateDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generateCalls++
	s.lastPrompt = prompt
	s.lastModel = model
	return s.response, s.generateErr
}

func (s *stubUpstream) SubmitLearning(ctx context.Context, sample upstream.LearningSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.learnCalls++
	return s.learnErr
}

func (s *stubUpstream) counts() (knowledge, experience, web, generate, learn int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.knowledgeCalls, s.experienceCalls, s.webCalls, s.generateCalls, s.learnCalls
}

// slowStore delays writes to simulate a slow persistence backend.
type slowStore struct {
	*history.MemoryStore
	writeDelay time.Duration
}

func (s *slowStore) AppendMessage(ctx context.Context, sessionID, userID, role, content string) error {
	time.Sleep(s.writeDelay)
	return s.MemoryStore.AppendMessage(ctx, sessionID, userID, role, content)
}

// failingStore fails every operation; used to prove background step isolation.
type failingStore struct {
	*history.MemoryStore
	err error
}

func (s *failingStore) AppendMessage(ctx context.Context, sessionID, userID, role, content string) error {
	return s.err
}

func (s *failingStore) SaveReminder(ctx context.Context, sessionID, userID, content string) error {
	return s.err
}

func (s *failingStore) MessageCount(ctx context.Context, sessionID string) (int, error) {
	return 0, s.err
}

func testModels() func() *config.ModelsConfig {
	cfg := &config.ModelsConfig{
		DefaultModel: "qwen2.5:14b",
		Models: map[string]config.GenerationOpts{
			"qwen2.5:14b": config.DefaultGenerationOpts(),
		},
	}
	return func() *config.ModelsConfig { return cfg }
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
