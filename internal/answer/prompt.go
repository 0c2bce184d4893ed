package answer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cookeng/handbook-mcp/internal/manual"
)

const systemPrompt = "You are a technical assistant. When images are provided, " +
	"examine them carefully for specific information like locations on maps, " +
	"values in charts, or specifications in tables."

// contextClipRunes bounds how much of each chunk goes into the prompt;
// full sections would blow the context window with little gain.
const contextClipRunes = 500

// buildPrompt assembles the user message: the question, a summary of
// which pages matched, and a clipped excerpt of each chunk tagged with
// its section and page.
func buildPrompt(question string, chunks []manual.Chunk) string {
	pages := make([]string, 0, len(chunks))
	excerpts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		pages = append(pages, strconv.Itoa(c.Page))
		excerpts = append(excerpts, fmt.Sprintf("[%s - Page %d]\n%s...",
			c.Section, c.Page, clipRunes(c.Content, contextClipRunes)))
	}

	var b strings.Builder
	b.WriteString("You are a technical assistant helping with engineering specifications.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	fmt.Fprintf(&b, "Initial analysis from search system:\nFound relevant information on pages: %s\n\n",
		strings.Join(pages, ", "))
	fmt.Fprintf(&b, "Additional context from relevant sections:\n%s\n\n",
		strings.Join(excerpts, "\n"))
	b.WriteString("Please provide a comprehensive answer. If images are provided, " +
		"carefully examine them for specific information like maps, charts, or " +
		"diagrams that may contain data not in the text.")
	return b.String()
}

// clipRunes truncates by runes, not bytes; handbook text contains
// non-ASCII symbols (µ, °, Δ) that must not be split mid-encoding.
func clipRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
