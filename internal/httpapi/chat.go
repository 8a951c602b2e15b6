package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/brightears/bmasia-music-brief/internal/adapters/llm"
	"github.com/brightears/bmasia-music-brief/internal/chatengine"
)

// chatRequest carries the prior conversation plus, when the previous turn
// ended on a structured_question, the opaque assistant content blob the
// client was handed back and the customer's answer to it. Per spec §4.4,
// pendingToolUse is treated as opaque by the client — it only echoes it
// back verbatim; the server does the reconstruction.
type chatRequest struct {
	Messages       []llm.Message   `json:"messages"`
	PendingToolUse json.RawMessage `json:"pendingToolUse,omitempty"`
	Answer         string          `json:"answer,omitempty"`
}

// reconstructPending appends the {assistant: <blob>, user: [tool_result]}
// pair described in spec §4.4 ahead of the next LLM call, given the raw
// assistant content-block array the client echoed back and the customer's
// answer. pending carries the whole assistant turn, not just the
// ask_structured_question block, since the model may have batched other
// tool_use blocks alongside it in the same turn.
func reconstructPending(messages []llm.Message, pending json.RawMessage, answer string) []llm.Message {
	if len(pending) == 0 {
		return messages
	}
	var assistantBlocks []llm.ContentBlock
	if err := json.Unmarshal(pending, &assistantBlocks); err != nil {
		return messages
	}
	var toolUseID string
	for _, b := range assistantBlocks {
		if b.Type == "tool_use" && b.Name == "ask_structured_question" {
			toolUseID = b.ID
			break
		}
	}
	if toolUseID == "" {
		return messages
	}
	out := append([]llm.Message{}, messages...)
	out = append(out, llm.Message{Role: "assistant", Content: assistantBlocks})
	out = append(out, llm.Message{Role: "user", Content: []llm.ContentBlock{{
		Type:      "tool_result",
		ToolUseID: toolUseID,
		Content:   fmt.Sprintf("The customer selected: %q", answer),
	}}})
	return out
}

// handleChat streams one chat turn as Server-Sent Events, per spec §4.11.
// The engine holds no server-side session state: the client resends the
// prior conversation, plus the pendingToolUse/answer round-trip for any
// structured_question it just answered, on every call.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Messages = reconstructPending(req.Messages, req.PendingToolUse, req.Answer)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	emit := func(ev chatengine.Event) {
		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return
		}
		if _, err := w.Write(payload); err != nil {
			return
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return
		}
		flusher.Flush()
	}

	if err := s.Engine.Run(r.Context(), req.Messages, emit); err != nil {
		logErrf("httpapi: chat turn ended with error: %v", err)
	}
}
