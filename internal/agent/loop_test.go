package agent

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atelier-ai/atelier/internal/inspiration"
	"github.com/atelier-ai/atelier/internal/llm"
	"github.com/atelier-ai/atelier/internal/prompts"
	"github.com/atelier-ai/atelier/internal/session"
	"github.com/atelier-ai/atelier/internal/store"
	"github.com/atelier-ai/atelier/internal/tools"
	_ "modernc.org/sqlite"
)

// fakeClient scripts reasoning responses per call index.
type fakeClient struct {
	script func(call int, msgs []llm.Message, toolDefs []map[string]any) (*llm.ChatResponse, error)
	calls  int
}

func (f *fakeClient) Chat(_ context.Context, _ string, msgs []llm.Message, toolDefs []map[string]any) (*llm.ChatResponse, error) {
	call := f.calls
	f.calls++
	return f.script(call, msgs, toolDefs)
}

func (f *fakeClient) Ping(context.Context) error { return nil }

func textResponse(content string) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: content}, Done: true}, nil
}

func toolResponse(name string, args map[string]any) (*llm.ChatResponse, error) {
	var tc llm.ToolCall
	tc.ID = "call-" + name
	tc.Function.Name = name
	tc.Function.Arguments = args
	return &llm.ChatResponse{
		Message: llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{tc}},
		Done:    true,
	}, nil
}

func openDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestLoop wires a loop over in-temp-dir sqlite stores and the given
// scripted client.
func newTestLoop(t *testing.T, client llm.Client) (*Loop, *session.Store, *store.Store) {
	t.Helper()

	sessions, err := session.NewWithDB(openDB(t, "sessions.db"))
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	st, err := store.NewWithDB(openDB(t, "studio.db"))
	if err != nil {
		t.Fatalf("state store: %v", err)
	}
	registry, err := tools.NewRegistry(st, inspiration.NewMockProvider(), nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	loop := New(client, registry, sessions, nil, nil, nil, Config{
		Model:             "test-model",
		MaxToolIterations: 3,
		DecisionTimeout:   5 * time.Second,
	})
	return loop, sessions, st
}

func roles(t *testing.T, sessions *session.Store, sessionID string) []string {
	t.Helper()
	entries, err := sessions.Context(sessionID, 0)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Role
	}
	return out
}

func TestRunTurnPlainAnswer(t *testing.T) {
	client := &fakeClient{script: func(call int, _ []llm.Message, _ []map[string]any) (*llm.ChatResponse, error) {
		return textResponse("Hello! The studio awaits.")
	}}
	loop, sessions, _ := newTestLoop(t, client)

	res, err := loop.RunTurn(context.Background(), "s1", "hi")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.Answer != "Hello! The studio awaits." {
		t.Errorf("answer = %q", res.Answer)
	}
	if len(res.ToolCalls) != 0 || len(res.Touched) != 0 || res.Exhausted {
		t.Errorf("result = %+v, want no tools, no domains", res)
	}

	// A turn with no tool work leaves exactly user then assistant.
	got := roles(t, sessions, "s1")
	want := []string{"user", "assistant"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("entry roles = %v, want %v", got, want)
	}
}

func TestRunTurnToolThenAnswer(t *testing.T) {
	client := &fakeClient{script: func(call int, msgs []llm.Message, _ []map[string]any) (*llm.ChatResponse, error) {
		switch call {
		case 0:
			return toolResponse("add_supply", map[string]any{
				"name": "Ultramarine", "category": "paint", "level": "plenty",
			})
		default:
			// The observation from the tool call must be in the transcript.
			last := msgs[len(msgs)-1]
			if last.Role != "tool" || !strings.Contains(last.Content, "Ultramarine") {
				t.Errorf("last transcript message = %+v, want tool observation", last)
			}
			return textResponse("Added Ultramarine to your paints.")
		}
	}}
	loop, sessions, st := newTestLoop(t, client)

	res, err := loop.RunTurn(context.Background(), "s1", "I bought ultramarine")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.Answer != "Added Ultramarine to your paints." {
		t.Errorf("answer = %q", res.Answer)
	}
	if len(res.ToolCalls) != 1 || !res.ToolCalls[0].Succeeded || res.ToolCalls[0].Name != "add_supply" {
		t.Errorf("tool calls = %+v", res.ToolCalls)
	}
	if len(res.Touched) != 1 || res.Touched[0] != tools.DomainSupplies {
		t.Errorf("touched = %v, want [supplies]", res.Touched)
	}

	supplies, _ := st.ListSupplies(context.Background(), "")
	if len(supplies) != 1 {
		t.Errorf("store has %d supplies, want 1", len(supplies))
	}

	// One tool execution means exactly one tool entry between the user
	// message and the final answer.
	got := roles(t, sessions, "s1")
	want := []string{"user", "tool", "assistant"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("entry roles = %v, want %v", got, want)
	}
}

func TestRunTurnValidationFailureObserved(t *testing.T) {
	client := &fakeClient{script: func(call int, msgs []llm.Message, _ []map[string]any) (*llm.ChatResponse, error) {
		switch call {
		case 0:
			return toolResponse("add_supply", map[string]any{"category": "paint"})
		default:
			last := msgs[len(msgs)-1]
			if last.Role != "tool" || !strings.HasPrefix(last.Content, "Error:") {
				t.Errorf("observation = %+v, want Error text", last)
			}
			return textResponse("I need a name for that supply.")
		}
	}}
	loop, _, st := newTestLoop(t, client)

	res, err := loop.RunTurn(context.Background(), "s1", "add some paint")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if len(res.ToolCalls) != 1 || res.ToolCalls[0].Succeeded {
		t.Errorf("tool calls = %+v, want one failed call", res.ToolCalls)
	}
	if len(res.Touched) != 0 {
		t.Errorf("touched = %v, want empty after failed call", res.Touched)
	}
	supplies, _ := st.ListSupplies(context.Background(), "")
	if len(supplies) != 0 {
		t.Errorf("failed validation mutated the store")
	}
}

func TestRunTurnBudgetExhaustion(t *testing.T) {
	client := &fakeClient{script: func(call int, _ []llm.Message, toolDefs []map[string]any) (*llm.ChatResponse, error) {
		if toolDefs == nil {
			// Forced final answer: tools withheld.
			return textResponse("I checked the inventory three times; here is what I found.")
		}
		return toolResponse("list_supplies", nil)
	}}
	loop, _, _ := newTestLoop(t, client)

	res, err := loop.RunTurn(context.Background(), "s1", "keep checking")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if !res.Exhausted {
		t.Error("Exhausted = false, want true")
	}
	if res.Answer == "" {
		t.Error("exhausted turn must still produce a non-empty answer")
	}
	if len(res.ToolCalls) != 3 {
		t.Errorf("tool calls = %d, want MaxToolIterations (3)", len(res.ToolCalls))
	}
	// Read-only listing still marks its domain touched.
	if len(res.Touched) != 1 || res.Touched[0] != tools.DomainSupplies {
		t.Errorf("touched = %v", res.Touched)
	}
}

func TestRunTurnEmptyContentNudge(t *testing.T) {
	client := &fakeClient{script: func(call int, msgs []llm.Message, _ []map[string]any) (*llm.ChatResponse, error) {
		switch call {
		case 0:
			return textResponse("")
		default:
			last := msgs[len(msgs)-1]
			if last.Content != prompts.EmptyResponseNudge {
				t.Errorf("nudge = %q", last.Content)
			}
			return textResponse("Sorry, here is the answer.")
		}
	}}
	loop, _, _ := newTestLoop(t, client)

	res, err := loop.RunTurn(context.Background(), "s1", "hello?")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.Answer != "Sorry, here is the answer." {
		t.Errorf("answer = %q", res.Answer)
	}
}

func TestRunTurnEmptyContentFallback(t *testing.T) {
	client := &fakeClient{script: func(int, []llm.Message, []map[string]any) (*llm.ChatResponse, error) {
		return textResponse("")
	}}
	loop, _, _ := newTestLoop(t, client)

	res, err := loop.RunTurn(context.Background(), "s1", "hello?")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.Answer != prompts.EmptyResponseFallback {
		t.Errorf("answer = %q, want fallback", res.Answer)
	}
}

func TestRunTurnReasoningUnavailable(t *testing.T) {
	client := &fakeClient{script: func(int, []llm.Message, []map[string]any) (*llm.ChatResponse, error) {
		return nil, errors.New("connection refused")
	}}
	loop, _, _ := newTestLoop(t, client)

	_, err := loop.RunTurn(context.Background(), "s1", "hi")
	var terr *TurnError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want *TurnError", err)
	}
	if terr.Kind != TurnReasoningUnavailable {
		t.Errorf("kind = %s", terr.Kind)
	}
	if terr.Answer != prompts.ReasoningUnavailableApology {
		t.Errorf("answer = %q", terr.Answer)
	}
}

func TestRunTurnStoreEscalation(t *testing.T) {
	sessions, err := session.NewWithDB(openDB(t, "sessions.db"))
	if err != nil {
		t.Fatal(err)
	}

	// State store whose connection dies after setup: every tool call
	// from here on is a storage failure.
	stateDB := openDB(t, "studio.db")
	st, err := store.NewWithDB(stateDB)
	if err != nil {
		t.Fatal(err)
	}
	registry, err := tools.NewRegistry(st, inspiration.NewMockProvider(), nil)
	if err != nil {
		t.Fatal(err)
	}
	stateDB.Close()

	client := &fakeClient{script: func(int, []llm.Message, []map[string]any) (*llm.ChatResponse, error) {
		return toolResponse("list_supplies", nil)
	}}
	loop := New(client, registry, sessions, nil, nil, nil, Config{
		Model:             "test-model",
		MaxToolIterations: 8,
		DecisionTimeout:   5 * time.Second,
	})

	_, err = loop.RunTurn(context.Background(), "s1", "what do I have?")
	var terr *TurnError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want *TurnError", err)
	}
	if terr.Kind != TurnStoreUnavailable {
		t.Errorf("kind = %s", terr.Kind)
	}
	if terr.Answer != prompts.StoreUnavailableApology {
		t.Errorf("answer = %q", terr.Answer)
	}
	// Escalation happens at the threshold, not the iteration cap.
	if client.calls != 3 {
		t.Errorf("reasoning calls = %d, want 3", client.calls)
	}
}

func TestRunTurnSerializesPerSession(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	client := &fakeClient{script: func(int, []llm.Message, []map[string]any) (*llm.ChatResponse, error) {
		started <- struct{}{}
		<-release
		return textResponse("done")
	}}
	loop, _, _ := newTestLoop(t, client)

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			loop.RunTurn(context.Background(), "same", "hi")
			done <- struct{}{}
		}()
	}

	<-started
	select {
	case <-started:
		t.Fatal("second turn entered the loop while the first held the session lock")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	<-done
	<-done
}

func TestRunTurnDecisionTimeoutForcesAnswer(t *testing.T) {
	client := &fakeClient{script: func(call int, _ []llm.Message, toolDefs []map[string]any) (*llm.ChatResponse, error) {
		if toolDefs != nil {
			return nil, context.DeadlineExceeded
		}
		return textResponse("I ran out of time, but here is what I have.")
	}}
	loop, sessions, _ := newTestLoop(t, client)

	res, err := loop.RunTurn(context.Background(), "s1", "inventory everything")
	if err != nil {
		t.Fatalf("a timed-out decision should not fail the turn: %v", err)
	}
	if !res.Exhausted {
		t.Error("timed-out decision should report an exhausted turn")
	}
	if res.Answer != "I ran out of time, but here is what I have." {
		t.Errorf("answer = %q", res.Answer)
	}
	if client.calls != 2 {
		t.Errorf("reasoning calls = %d, want 2 (timeout, then forced text)", client.calls)
	}

	got := roles(t, sessions, "s1")
	want := []string{"user", "assistant"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("entry roles = %v, want %v", got, want)
	}
}
