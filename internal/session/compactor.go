package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atelier-ai/atelier/internal/prompts"
)

// CompactionConfig controls compaction behavior.
type CompactionConfig struct {
	MaxTokens    int     // Context budget
	TriggerRatio float64 // Compact at this fill ratio (e.g., 0.7 = 70%)
	KeepRecent   int     // Number of recent entries to always keep
	MinEntries   int     // Minimum entries before considering compaction
}

// DefaultCompactionConfig returns sensible defaults.
func DefaultCompactionConfig() CompactionConfig {
	return CompactionConfig{
		MaxTokens:    8000,
		TriggerRatio: 0.7,
		KeepRecent:   10,
		MinEntries:   20,
	}
}

// CompactableStore is the store surface the compactor needs.
type CompactableStore interface {
	TokenCount(sessionID string) int
	EntriesForCompaction(sessionID string, keep int) []Entry
	MarkCompacted(sessionID string, before time.Time) error
	AddDigest(sessionID, digest string) error
}

// Summarizer generates a digest from entries.
type Summarizer interface {
	Summarize(ctx context.Context, entries []Entry) (string, error)
}

// Compactor folds old session entries into a digest when the token
// budget fills up. Compaction is lossy but idempotent: when there is
// nothing eligible it is a no-op, so running it twice in a row changes
// nothing.
type Compactor struct {
	store      CompactableStore
	config     CompactionConfig
	summarizer Summarizer
	logger     *slog.Logger
}

// NewCompactor creates a new compactor.
func NewCompactor(store CompactableStore, config CompactionConfig, summarizer Summarizer, logger *slog.Logger) *Compactor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compactor{
		store:      store,
		config:     config,
		summarizer: summarizer,
		logger:     logger,
	}
}

// NeedsCompaction checks if a session is over the trigger threshold.
func (c *Compactor) NeedsCompaction(sessionID string) bool {
	threshold := int(float64(c.config.MaxTokens) * c.config.TriggerRatio)
	return c.store.TokenCount(sessionID) > threshold
}

// Compact performs compaction on a session. Entries are never deleted;
// they are flagged compacted and replaced in context by a digest entry.
func (c *Compactor) Compact(ctx context.Context, sessionID string) error {
	entries := c.store.EntriesForCompaction(sessionID, c.config.KeepRecent)

	c.logger.Debug("compaction check",
		"session", sessionID,
		"eligible_entries", len(entries),
		"min_required", c.config.MinEntries,
		"keep_recent", c.config.KeepRecent,
		"token_count", c.store.TokenCount(sessionID),
		"max_tokens", c.config.MaxTokens,
	)

	if len(entries) < c.config.MinEntries {
		return nil // Not enough to bother
	}

	cutoff := entries[len(entries)-1].Timestamp

	digest, err := c.summarizer.Summarize(ctx, entries)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	formatted := formatDigest(entries, digest)

	if err := c.store.MarkCompacted(sessionID, cutoff.Add(time.Millisecond)); err != nil {
		return fmt.Errorf("mark compacted: %w", err)
	}
	if err := c.store.AddDigest(sessionID, formatted); err != nil {
		return fmt.Errorf("add digest: %w", err)
	}

	c.logger.Info("session compacted",
		"session", sessionID,
		"entries", len(entries),
		"digest_tokens", estimateTokens(formatted),
	)
	return nil
}

// formatDigest creates a structured digest entry.
func formatDigest(entries []Entry, digest string) string {
	if len(entries) == 0 {
		return digest
	}

	var sb strings.Builder
	sb.WriteString("[Session Digest]\n")
	sb.WriteString(fmt.Sprintf("Period: %s to %s\n",
		entries[0].Timestamp.Format("2006-01-02 15:04"),
		entries[len(entries)-1].Timestamp.Format("2006-01-02 15:04")))
	sb.WriteString(fmt.Sprintf("Entries compacted: %d\n\n", len(entries)))
	sb.WriteString(digest)
	return sb.String()
}

// LLMSummarizer uses the reasoning model to generate digests.
type LLMSummarizer struct {
	llmFunc func(ctx context.Context, prompt string) (string, error)
}

// NewLLMSummarizer creates a summarizer backed by an LLM call.
func NewLLMSummarizer(llmFunc func(ctx context.Context, prompt string) (string, error)) *LLMSummarizer {
	return &LLMSummarizer{llmFunc: llmFunc}
}

// Summarize generates a digest of the entries using the LLM.
func (s *LLMSummarizer) Summarize(ctx context.Context, entries []Entry) (string, error) {
	var sb strings.Builder
	for _, e := range entries {
		role := e.Role
		if len(role) > 0 {
			role = strings.ToUpper(role[:1]) + role[1:]
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n\n", role, e.Content))
	}
	return s.llmFunc(ctx, prompts.CompactionPrompt(sb.String()))
}

// SimpleSummarizer creates a basic extractive digest without an LLM
// (fallback when reasoning is unavailable during maintenance).
type SimpleSummarizer struct{}

// Summarize creates a simple extractive digest.
func (s *SimpleSummarizer) Summarize(_ context.Context, entries []Entry) (string, error) {
	var topics []string
	toolCalls := 0

	for _, e := range entries {
		if e.Role == "user" && len(e.Content) < 100 {
			topics = append(topics, "- "+e.Content)
		}
		if e.Role == "tool" {
			toolCalls++
		}
	}

	var sb strings.Builder
	sb.WriteString("Topics discussed:\n")
	if len(topics) > 0 {
		for _, t := range topics[:min(5, len(topics))] {
			sb.WriteString(t + "\n")
		}
	} else {
		sb.WriteString("- General studio conversation\n")
	}
	if toolCalls > 0 {
		sb.WriteString(fmt.Sprintf("\nActions taken:\n- %d tool calls\n", toolCalls))
	}
	return sb.String(), nil
}
