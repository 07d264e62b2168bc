package prompts

import "fmt"

// compactionTemplate is the prompt sent to an LLM to summarize a
// conversation during session compaction. The single format verb is the
// conversation text.
const compactionTemplate = `Summarize this studio conversation concisely. You MUST preserve:
1. Preferences the artist stated (materials, brands, styles, working habits)
2. References to open or planned projects, by name
3. Unresolved supply gaps (things low, empty, or on the shopping list)
4. Decisions made and actions taken (tool calls, state changes)

Details that are fully resolved may be dropped. Keep the summary under
400 words. Use bullet points.

Conversation:
%s

Summary:`

// CompactionPrompt returns the fully interpolated prompt for session
// compaction. The caller passes the formatted conversation text
// (role: content pairs) to be summarized.
func CompactionPrompt(conversationText string) string {
	return fmt.Sprintf(compactionTemplate, conversationText)
}
