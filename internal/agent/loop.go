// Package agent implements the reason/act/observe loop that turns a
// chat message into tool calls against studio state and a final answer.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atelier-ai/atelier/internal/events"
	"github.com/atelier-ai/atelier/internal/llm"
	"github.com/atelier-ai/atelier/internal/prompts"
	"github.com/atelier-ai/atelier/internal/session"
	"github.com/atelier-ai/atelier/internal/tools"
)

// storeErrorEscalation is how many consecutive storage failures it
// takes before the turn gives up instead of letting the model retry.
const storeErrorEscalation = 3

// Config controls one loop instance.
type Config struct {
	// Model is the reasoning model identifier passed to the provider.
	Model string
	// MaxToolIterations caps tool executions per turn. When spent, the
	// model is forced to answer in text with whatever it has.
	MaxToolIterations int
	// DecisionTimeout bounds each individual reasoning call.
	DecisionTimeout time.Duration
}

// ToolInvocation summarizes one tool execution for the caller.
type ToolInvocation struct {
	Name      string `json:"name"`
	Succeeded bool   `json:"succeeded"`
}

// TurnResult is the outcome of a completed turn.
type TurnResult struct {
	Answer    string
	ToolCalls []ToolInvocation
	// Touched is the ordered, de-duplicated set of state domains that
	// successful tool calls affected. Failed calls contribute nothing.
	Touched []tools.Domain
	// Exhausted reports that the tool budget ran out and the answer was
	// forced from partial work.
	Exhausted bool
}

// Loop drives turns for all sessions.
type Loop struct {
	llm       llm.Client
	registry  *tools.Registry
	sessions  *session.Store
	compactor *session.Compactor
	locker    *session.Locker
	bus       *events.Bus
	logger    *slog.Logger
	cfg       Config

	now func() time.Time
}

// New creates a loop. compactor and bus may be nil; the loop then skips
// memory maintenance and event publishing.
func New(client llm.Client, registry *tools.Registry, sessions *session.Store,
	compactor *session.Compactor, bus *events.Bus, logger *slog.Logger, cfg Config) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = 8
	}
	if cfg.DecisionTimeout <= 0 {
		cfg.DecisionTimeout = 2 * time.Minute
	}
	return &Loop{
		llm:       client,
		registry:  registry,
		sessions:  sessions,
		compactor: compactor,
		locker:    session.NewLocker(),
		bus:       bus,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RunTurn processes one user message: it appends the message to the
// session, lets the model reason and call tools one at a time until it
// answers or the budget runs out, and returns the final answer with the
// domains the turn touched. Turns on the same session serialize.
func (l *Loop) RunTurn(ctx context.Context, sessionID, message string) (*TurnResult, error) {
	unlock := l.locker.Lock(sessionID)
	defer unlock()

	l.publish(events.KindTurnStart, map[string]any{"session": sessionID})

	if err := l.sessions.Append(sessionID, "user", message); err != nil {
		return nil, &TurnError{Kind: TurnStoreUnavailable, Answer: prompts.StoreUnavailableApology,
			Err: fmt.Errorf("append user entry: %w", err)}
	}

	msgs, err := l.transcript(sessionID)
	if err != nil {
		return nil, &TurnError{Kind: TurnStoreUnavailable, Answer: prompts.StoreUnavailableApology, Err: err}
	}

	result := &TurnResult{}
	toolCtx := tools.WithSessionID(ctx, sessionID)
	consecutiveStoreErrs := 0

	for iter := 0; iter < l.cfg.MaxToolIterations; iter++ {
		resp, err := l.decide(ctx, msgs, l.registry.List())
		if err != nil {
			// A decision that timed out gets the same treatment as a spent
			// budget: state committed so far stands, and the model is forced
			// to answer with what it has.
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				l.logger.Warn("decision timed out", "session", sessionID, "iteration", iter)
				break
			}
			return nil, &TurnError{Kind: TurnReasoningUnavailable,
				Answer: prompts.ReasoningUnavailableApology, Err: err}
		}

		if len(resp.Message.ToolCalls) == 0 {
			answer, err := l.ensureContent(ctx, msgs, resp.Message.Content)
			if err != nil {
				return nil, &TurnError{Kind: TurnReasoningUnavailable,
					Answer: prompts.ReasoningUnavailableApology, Err: err}
			}
			result.Answer = answer
			return result, l.finalize(ctx, sessionID, result)
		}

		// One tool per decision. Models sometimes emit several; only the
		// first runs, the rest are dropped so each action gets observed
		// before the next is chosen.
		call := resp.Message.ToolCalls[0]
		if extra := len(resp.Message.ToolCalls) - 1; extra > 0 {
			l.logger.Debug("dropping extra tool calls", "session", sessionID,
				"kept", call.Function.Name, "dropped", extra)
		}

		msgs = append(msgs, llm.Message{
			Role:      "assistant",
			Content:   resp.Message.Content,
			ToolCalls: []llm.ToolCall{call},
		})

		observation, invocation, execErr := l.executeTool(toolCtx, sessionID, call)
		msgs = append(msgs, llm.Message{Role: "tool", Content: observation, ToolCallID: call.ID})
		result.ToolCalls = append(result.ToolCalls, invocation)

		if invocation.Succeeded {
			consecutiveStoreErrs = 0
			if res := l.registry.Get(call.Function.Name); res != nil {
				result.Touched = mergeDomains(result.Touched, res.Domains)
			}
			continue
		}

		var serr *tools.StoreError
		if errors.As(execErr, &serr) {
			consecutiveStoreErrs++
			if consecutiveStoreErrs >= storeErrorEscalation {
				l.logger.Error("turn abandoned after repeated storage failures",
					"session", sessionID, "failures", consecutiveStoreErrs)
				return nil, &TurnError{Kind: TurnStoreUnavailable,
					Answer: prompts.StoreUnavailableApology, Err: serr}
			}
		} else {
			consecutiveStoreErrs = 0
		}
	}

	// Budget spent: force a text answer from what the model has.
	result.Exhausted = true
	msgs = append(msgs, llm.Message{Role: "system", Content: prompts.ExhaustedNudge})
	resp, err := l.decide(ctx, msgs, nil)
	if err != nil {
		return nil, &TurnError{Kind: TurnReasoningUnavailable,
			Answer: prompts.ReasoningUnavailableApology, Err: err}
	}
	result.Answer = resp.Message.Content
	if result.Answer == "" {
		result.Answer = prompts.EmptyResponseFallback
	}
	return result, l.finalize(ctx, sessionID, result)
}

// transcript builds the model conversation from the session: system
// prompt first, then every non-compacted entry in order.
func (l *Loop) transcript(sessionID string) ([]llm.Message, error) {
	entries, err := l.sessions.Context(sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("load session context: %w", err)
	}
	msgs := make([]llm.Message, 0, len(entries)+1)
	msgs = append(msgs, llm.Message{Role: "system", Content: prompts.SystemPrompt(l.now())})
	for _, e := range entries {
		msgs = append(msgs, llm.Message{Role: e.Role, Content: e.Content})
	}
	return msgs, nil
}

// decide makes one bounded reasoning call.
func (l *Loop) decide(ctx context.Context, msgs []llm.Message, toolDefs []map[string]any) (*llm.ChatResponse, error) {
	dctx, cancel := context.WithTimeout(ctx, l.cfg.DecisionTimeout)
	defer cancel()

	l.publish(events.KindLLMCall, map[string]any{"messages": len(msgs), "model": l.cfg.Model})
	resp, err := l.llm.Chat(dctx, l.cfg.Model, msgs, toolDefs)
	if err != nil {
		return nil, fmt.Errorf("reasoning call: %w", err)
	}
	l.publish(events.KindLLMResponse, map[string]any{
		"tool_calls": len(resp.Message.ToolCalls),
		"tokens":     resp.OutputTokens,
	})
	return resp, nil
}

// ensureContent nudges the model once if it answered with empty text,
// then falls back to a canned response.
func (l *Loop) ensureContent(ctx context.Context, msgs []llm.Message, content string) (string, error) {
	if content != "" {
		return content, nil
	}
	msgs = append(msgs, llm.Message{Role: "system", Content: prompts.EmptyResponseNudge})
	resp, err := l.decide(ctx, msgs, nil)
	if err != nil {
		return "", err
	}
	if resp.Message.Content == "" {
		return prompts.EmptyResponseFallback, nil
	}
	return resp.Message.Content, nil
}

// executeTool runs one call, records it for the activity view, and
// appends the observation to session memory. The returned observation
// is what the model sees next; failures become "Error: ..." text so the
// model can correct itself.
func (l *Loop) executeTool(ctx context.Context, sessionID string, call llm.ToolCall) (string, ToolInvocation, error) {
	name := call.Function.Name
	argsJSON, _ := json.Marshal(call.Function.Arguments)

	l.publish(events.KindToolCall, map[string]any{"tool": name, "session": sessionID})
	recordID, recErr := l.sessions.RecordToolCall(sessionID, name, string(argsJSON))
	if recErr != nil {
		l.logger.Warn("tool call not recorded", "tool", name, "error", recErr)
	}

	started := l.now()
	res, execErr := l.registry.Execute(ctx, name, string(argsJSON))
	elapsed := l.now().Sub(started)

	var observation string
	invocation := ToolInvocation{Name: name, Succeeded: execErr == nil}
	if execErr != nil {
		observation = "Error: " + execErr.Error()
		l.logger.Warn("tool failed", "tool", name, "session", sessionID, "error", execErr)
	} else {
		observation = res.Output
		l.logger.Debug("tool succeeded", "tool", name, "session", sessionID, "duration", elapsed)
	}

	if recordID != "" {
		errText := ""
		if execErr != nil {
			errText = execErr.Error()
		}
		resultText := ""
		if res != nil {
			resultText = res.Output
		}
		if err := l.sessions.CompleteToolCall(recordID, resultText, errText, elapsed); err != nil {
			l.logger.Warn("tool call completion not recorded", "tool", name, "error", err)
		}
	}
	if err := l.sessions.AppendToolResult(sessionID, name, observation); err != nil {
		l.logger.Warn("tool observation not persisted", "tool", name, "error", err)
	}

	l.publish(events.KindToolDone, map[string]any{
		"tool": name, "session": sessionID, "ok": execErr == nil, "ms": elapsed.Milliseconds(),
	})
	return observation, invocation, execErr
}

// finalize persists the answer, runs memory maintenance, and announces
// the turn.
func (l *Loop) finalize(ctx context.Context, sessionID string, result *TurnResult) error {
	if err := l.sessions.Append(sessionID, "assistant", result.Answer); err != nil {
		return &TurnError{Kind: TurnStoreUnavailable, Answer: prompts.StoreUnavailableApology,
			Err: fmt.Errorf("append assistant entry: %w", err)}
	}

	if l.compactor != nil && l.compactor.NeedsCompaction(sessionID) {
		if err := l.compactor.Compact(ctx, sessionID); err != nil {
			// Memory maintenance never fails the turn.
			l.logger.Warn("compaction failed", "session", sessionID, "error", err)
		} else {
			l.publish(events.KindCompaction, map[string]any{"session": sessionID})
		}
	}

	l.publish(events.KindTurnComplete, map[string]any{
		"session":    sessionID,
		"tool_calls": len(result.ToolCalls),
		"touched":    len(result.Touched),
		"exhausted":  result.Exhausted,
	})
	return nil
}

func (l *Loop) publish(kind string, data map[string]any) {
	l.bus.Publish(events.Event{
		Timestamp: l.now(),
		Source:    events.SourceAgent,
		Kind:      kind,
		Data:      data,
	})
}

// mergeDomains appends domains not already present, preserving first-seen order.
func mergeDomains(have, add []tools.Domain) []tools.Domain {
	for _, d := range add {
		found := false
		for _, h := range have {
			if h == d {
				found = true
				break
			}
		}
		if !found {
			have = append(have, d)
		}
	}
	return have
}
