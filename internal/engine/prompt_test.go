package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/af-corp/chatcenter/internal/config"
	"github.com/af-corp/chatcenter/internal/types"
)

func testPromptConfig() config.PromptConfig {
	return config.PromptConfig{
		SummaryCap:    100,
		RecentCap:     200,
		RelatedCap:    150,
		WebCap:        80,
		KnowledgeCap:  100,
		ExperienceCap: 80,
		GlobalCap:     2000,
	}
}

func fullBundle() *types.RetrievalBundle {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &types.RetrievalBundle{
		Context: &types.ContextSnapshot{
			Summary: "user runs a warehouse",
			Recent: []types.Turn{
				{Role: "user", Content: "how is stock looking", CreatedAt: at},
				{Role: "assistant", Content: "stock is stable", CreatedAt: at},
			},
			Related: []types.Turn{
				{Role: "user", Content: "earlier stock question", CreatedAt: at},
			},
		},
		RAGContext:    "knowledge chunk",
		RAGExperience: "experience chunk",
		WebResults:    "web chunk",
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	a := NewAssembler(testPromptConfig())
	bundle := fullBundle()

	first := a.Assemble("what changed", bundle)
	for i := 0; i < 5; i++ {
		if got := a.Assemble("what changed", bundle); got != first {
			t.Fatal("assemble is not deterministic for identical inputs")
		}
	}
}

func TestAssemble_SectionOrder(t *testing.T) {
	a := NewAssembler(testPromptConfig())
	prompt := a.Assemble("question", fullBundle())

	order := []string{
		"## Session summary",
		"## Recent conversation",
		"## Related conversation",
		"## Web results",
		"## Knowledge base",
		"## Past experience",
		"## User message",
	}
	last := -1
	for _, header := range order {
		idx := strings.Index(prompt, header)
		if idx < 0 {
			t.Fatalf("missing section %q", header)
		}
		if idx < last {
			t.Errorf("section %q out of order", header)
		}
		last = idx
	}
}

func TestAssemble_OmittedSectionsLeaveNoTrace(t *testing.T) {
	a := NewAssembler(testPromptConfig())
	prompt := a.Assemble("question", &types.RetrievalBundle{})

	for _, header := range []string{
		"## Session summary",
		"## Recent conversation",
		"## Related conversation",
		"## Web results",
		"## Knowledge base",
		"## Past experience",
	} {
		if strings.Contains(prompt, header) {
			t.Errorf("empty bundle should omit %q entirely", header)
		}
	}
	if !strings.Contains(prompt, "## User message") {
		t.Error("user message section must always be present")
	}
	if !strings.Contains(prompt, "question") {
		t.Error("user message text missing")
	}
}

func TestAssemble_WebSectionPresenceFollowsBundle(t *testing.T) {
	a := NewAssembler(testPromptConfig())

	withoutWeb := a.Assemble("q", &types.RetrievalBundle{RAGContext: "kb"})
	if strings.Contains(withoutWeb, "## Web results") {
		t.Error("nil web results must not produce a web section")
	}

	longWeb := strings.Repeat("w", 500)
	withWeb := a.Assemble("q", &types.RetrievalBundle{WebResults: longWeb})
	if !strings.Contains(withWeb, "## Web results") {
		t.Error("web section missing despite web results present")
	}
	// Body truncated to the configured cap before concatenation.
	if strings.Contains(withWeb, longWeb) {
		t.Error("web body should have been truncated to its cap")
	}
	if !strings.Contains(withWeb, strings.Repeat("w", 80)) {
		t.Error("truncated web body missing")
	}
}

func TestAssemble_PerSectionCapsAppliedBeforeConcatenation(t *testing.T) {
	cfg := testPromptConfig()
	a := NewAssembler(cfg)

	bundle := &types.RetrievalBundle{
		RAGContext:    strings.Repeat("k", 1000),
		RAGExperience: strings.Repeat("e", 1000),
	}
	prompt := a.Assemble("q", bundle)

	if strings.Contains(prompt, strings.Repeat("k", cfg.KnowledgeCap+1)) {
		t.Error("knowledge section exceeds its cap")
	}
	if strings.Contains(prompt, strings.Repeat("e", cfg.ExperienceCap+1)) {
		t.Error("experience section exceeds its cap")
	}
}

func TestAssemble_GlobalCapAppendsConciseInstruction(t *testing.T) {
	cfg := testPromptConfig()
	cfg.GlobalCap = 200
	a := NewAssembler(cfg)

	prompt := a.Assemble(strings.Repeat("long message ", 100), &types.RetrievalBundle{})
	if !strings.HasSuffix(prompt, conciseInstruction) {
		t.Error("over-cap prompt should end with the concise instruction")
	}
	if got := len([]rune(prompt)); got > cfg.GlobalCap+len([]rune(conciseInstruction)) {
		t.Errorf("prompt length %d exceeds global cap plus instruction", got)
	}
}

func TestTruncateRunes_MultibyteSafe(t *testing.T) {
	s := "héllo wörld"
	got := truncateRunes(s, 6)
	if got != "héllo " {
		t.Errorf("got %q", got)
	}
	if truncateRunes("short", 100) != "short" {
		t.Error("under-cap strings must pass through unchanged")
	}
}
