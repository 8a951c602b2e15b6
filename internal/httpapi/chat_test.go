package httpapi

import (
	"encoding/json"
	"testing"

	"github.com/brightears/bmasia-music-brief/internal/adapters/llm"
)

func TestReconstructPending_NoPending(t *testing.T) {
	messages := []llm.Message{{Role: "user", Content: []llm.ContentBlock{{Type: "text", Text: "hi"}}}}
	out := reconstructPending(messages, nil, "")
	if len(out) != 1 {
		t.Fatalf("expected messages unchanged when no pending tool use, got %d", len(out))
	}
}

func TestReconstructPending_AppendsAssistantAndToolResult(t *testing.T) {
	messages := []llm.Message{{Role: "user", Content: []llm.ContentBlock{{Type: "text", Text: "hi"}}}}
	pending, _ := json.Marshal([]llm.ContentBlock{
		{Type: "text", Text: "What's your venue's vibe on weekends?"},
		{Type: "tool_use", ID: "tu_42", Name: "ask_structured_question", Input: map[string]any{"question": "vibe?"}},
	})
	out := reconstructPending(messages, pending, "Bustling")
	if len(out) != 3 {
		t.Fatalf("expected original message plus assistant+user pair, got %d", len(out))
	}
	assistant := out[1]
	if assistant.Role != "assistant" || len(assistant.Content) != 2 {
		t.Fatalf("expected reconstructed assistant message to carry the full echoed content array, got %+v", assistant)
	}
	userMsg := out[2]
	if userMsg.Role != "user" || len(userMsg.Content) != 1 {
		t.Fatalf("expected one tool_result in the reconstructed user message, got %+v", userMsg)
	}
	tr := userMsg.Content[0]
	if tr.Type != "tool_result" || tr.ToolUseID != "tu_42" {
		t.Fatalf("expected tool_result bound to tu_42, got %+v", tr)
	}
	if tr.Content != `The customer selected: "Bustling"` {
		t.Fatalf("unexpected tool_result content: %q", tr.Content)
	}
}

func TestReconstructPending_MissingToolUseBlock_ReturnsUnchanged(t *testing.T) {
	messages := []llm.Message{{Role: "user", Content: []llm.ContentBlock{{Type: "text", Text: "hi"}}}}
	pending, _ := json.Marshal([]llm.ContentBlock{{Type: "text", Text: "just prose, no tool_use"}})
	out := reconstructPending(messages, pending, "answer")
	if len(out) != 1 {
		t.Fatalf("expected messages unchanged when pending has no ask_structured_question block, got %d", len(out))
	}
}
