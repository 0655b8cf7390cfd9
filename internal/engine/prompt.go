package engine

import (
	"strings"

	"github.com/af-corp/chatcenter/internal/config"
	"github.com/af-corp/chatcenter/internal/types"
)

const conciseInstruction = "\n\nContext was truncated. Answer concisely."

// Assembler composes the final LLM prompt from whatever retrieval results
// succeeded. It is a pure function of its inputs: fixed section order, fixed
// per-section caps applied before concatenation, and a global hard cap as the
// last-resort safety valve. Omitted sections leave no trace.
type Assembler struct {
	cfg config.PromptConfig
}

func NewAssembler(cfg config.PromptConfig) *Assembler {
	return &Assembler{cfg: cfg}
}

func (a *Assembler) Assemble(message string, bundle *types.RetrievalBundle) string {
	var b strings.Builder
	b.WriteString("You are the AI Stack Chat Center assistant.\n")

	if bundle.Context != nil {
		if bundle.Context.Summary != "" {
			writeSection(&b, "Session summary", bundle.Context.Summary, a.cfg.SummaryCap)
		}
		if len(bundle.Context.Recent) > 0 {
			writeSection(&b, "Recent conversation", renderTurns(bundle.Context.Recent), a.cfg.RecentCap)
		}
		if len(bundle.Context.Related) > 0 {
			writeSection(&b, "Related conversation", renderTurns(bundle.Context.Related), a.cfg.RelatedCap)
		}
	}
	if bundle.WebResults != "" {
		writeSection(&b, "Web results", bundle.WebResults, a.cfg.WebCap)
	}
	if bundle.RAGContext != "" {
		writeSection(&b, "Knowledge base", bundle.RAGContext, a.cfg.KnowledgeCap)
	}
	if bundle.RAGExperience != "" {
		writeSection(&b, "Past experience", bundle.RAGExperience, a.cfg.ExperienceCap)
	}

	b.WriteString("\n## User message\n")
	b.WriteString(message)
	b.WriteString("\n\nAnswer the user's message using the context above.")

	prompt := b.String()
	if a.cfg.GlobalCap > 0 && len([]rune(prompt)) > a.cfg.GlobalCap {
		prompt = truncateRunes(prompt, a.cfg.GlobalCap) + conciseInstruction
	}
	return prompt
}

func writeSection(b *strings.Builder, header, body string, limit int) {
	b.WriteString("\n## ")
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(truncateRunes(body, limit))
	b.WriteString("\n")
}

func renderTurns(turns []types.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return b.String()
}

// truncateRunes cuts s to at most n runes. Caps are rune counts so multibyte
// text never gets split mid-character.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
