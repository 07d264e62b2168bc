package prompts

import (
	"strings"
	"testing"
	"time"
)

func TestSystemPromptIncludesDate(t *testing.T) {
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	got := SystemPrompt(now)
	if !strings.Contains(got, "Sunday, August 23, 2026") {
		t.Errorf("system prompt missing formatted date:\n%s", got)
	}
	if !strings.Contains(got, "plenty, low, or empty") {
		t.Error("system prompt missing level vocabulary")
	}
}

func TestCompactionPromptInterpolates(t *testing.T) {
	got := CompactionPrompt("User: my gouache is almost gone\n")
	if !strings.Contains(got, "my gouache is almost gone") {
		t.Error("conversation text not interpolated")
	}
	for _, must := range []string{"Preferences", "open or planned projects", "supply gaps"} {
		if !strings.Contains(got, must) {
			t.Errorf("compaction prompt missing %q", must)
		}
	}
}
