// Package llm wraps the Anthropic Messages API behind a narrow interface the
// chat engine drives: one call per conversational turn, streamed to the
// caller as content-block deltas, with tool definitions passed through
// unmodified.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/brightears/bmasia-music-brief/pkg/circuit"
	errs "github.com/brightears/bmasia-music-brief/pkg/errors"
	"github.com/brightears/bmasia-music-brief/pkg/metrics"
)

// ContentBlock mirrors the subset of Anthropic content-block shapes the chat
// engine needs to branch on: text, tool_use, and tool_result.
type ContentBlock struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Input     any    `json:"input,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// Message is one turn in the conversation sent to or received from the model.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Tool describes one callable tool definition passed through to the model.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Request carries one turn's worth of input to the model.
type Request struct {
	System    string
	Tools     []Tool
	Messages  []Message
	MaxTokens int64
}

// Response is the model's completed turn.
type Response struct {
	Content    []ContentBlock
	StopReason string
}

// Delta is one streamed event surfaced to the caller while the model is
// still generating. Kind is one of "text_delta" or "done".
type Delta struct {
	Kind string
	Text string
}

// CostTracker accumulates token usage across calls for operational visibility.
type CostTracker struct {
	mu            sync.RWMutex
	inputTokens   int64
	outputTokens  int64
	totalRequests int
	startTime     time.Time
}

func (c *CostTracker) addUsage(input, output int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputTokens += input
	c.outputTokens += output
	c.totalRequests++
}

// Stats returns cumulative usage since the tracker was created.
func (c *CostTracker) Stats() (inputTokens, outputTokens int64, requests int, uptime time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inputTokens, c.outputTokens, c.totalRequests, time.Since(c.startTime)
}

var mCallDuration = metrics.Default.Histogram("llm_call_duration_seconds", "Anthropic Messages API call duration (seconds)", []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45})

// Client wraps the Anthropic SDK with a circuit breaker and bounded retry on
// transient overload (HTTP 529), matching the teacher's scorer-client shape:
// a thin wrapper, a cost tracker, and a breaker guarding every outbound call.
type Client struct {
	sdk         anthropic.Client
	model       string
	retryMax    int
	costTracker *CostTracker
	cb          *circuit.Breaker
}

// New constructs a Client. model should be the Anthropic model id configured
// via LLM_MODEL (default claude-sonnet-4-6).
func New(apiKey, model string, retryMax int) *Client {
	cb := circuit.New(circuit.Config{
		Name:              "anthropic_llm",
		OperationTimeout:  60 * time.Second,
		OpenFor:           30 * time.Second,
		MaxConsecFailures: 3,
		WindowSize:        10,
		FailureRate:       0.5,
		SlowCallThreshold: 30 * time.Second,
		SlowCallRate:      0.5,
	}, nil)
	return &Client{
		sdk:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       model,
		retryMax:    retryMax,
		costTracker: &CostTracker{startTime: time.Now()},
		cb:          cb,
	}
}

// Stats exposes cumulative token usage for the admin/health surface.
func (c *Client) Stats() (inputTokens, outputTokens int64, requests int, uptime time.Duration) {
	return c.costTracker.Stats()
}

func toSDKTools(tools []Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.InputSchema["properties"],
					Required:   toStringSlice(t.InputSchema["required"]),
				},
			},
		})
	}
	return out
}

func toStringSlice(v any) []string {
	if v == nil {
		return nil
	}
	list, ok := v.([]string)
	if !ok {
		return nil
	}
	return list
}

func toSDKMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.Type {
			case "text":
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case "tool_use":
				blocks = append(blocks, anthropic.NewToolUseBlock(b.ID, b.Input, b.Name))
			case "tool_result":
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolUseID, b.Content, false))
			}
		}
		role := anthropic.MessageParamRoleUser
		if m.Role == "assistant" {
			role = anthropic.MessageParamRoleAssistant
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: blocks})
	}
	return out
}

func fromSDKContent(blocks []anthropic.ContentBlockUnion) []ContentBlock {
	out := make([]ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case "text":
			out = append(out, ContentBlock{Type: "text", Text: b.Text})
		case "tool_use":
			out = append(out, ContentBlock{Type: "tool_use", ID: b.ID, Name: b.Name, Input: b.Input})
		}
	}
	return out
}

// isOverloaded reports whether err represents a transient 529 overloaded
// response the retry loop should back off and retry on.
func isOverloaded(err error) bool {
	var apiErr *anthropic.Error
	if ok := errorAs(err, &apiErr); ok {
		return apiErr.StatusCode == 529
	}
	return false
}

func errorAs(err error, target any) bool {
	return errors.As(err, target)
}

// Complete runs one non-streaming turn, retrying with exponential backoff
// (1s, 2s, 4s, 8s capped) on a 529 overloaded response, up to retryMax
// retries after the first attempt, before giving up and surfacing the error to the caller.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: req.MaxTokens,
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages:  toSDKMessages(req.Messages),
		Tools:     toSDKTools(req.Tools),
	}

	var resp *anthropic.Message
	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		t := mCallDuration.Start()
		err := c.cb.Do(ctx, func(ctx context.Context) error {
			r, e := c.sdk.Messages.New(ctx, params)
			if e != nil {
				return e
			}
			resp = r
			return nil
		}, nil)
		t.Observe()
		if err == nil {
			break
		}
		lastErr = err
		if !isOverloaded(err) || attempt == c.retryMax {
			return nil, errs.NewExternal("llm.Complete", "anthropic", "message generation failed", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 8*time.Second {
			backoff *= 2
		}
	}
	if resp == nil {
		return nil, errs.NewExternal("llm.Complete", "anthropic", "message generation failed", lastErr)
	}

	c.costTracker.addUsage(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	return &Response{
		Content:    fromSDKContent(resp.Content),
		StopReason: string(resp.StopReason),
	}, nil
}

// Stream runs one turn, invoking onDelta for every text delta as it arrives,
// and returns the fully accumulated response once the stream completes.
func (c *Client) Stream(ctx context.Context, req Request, onDelta func(Delta)) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: req.MaxTokens,
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages:  toSDKMessages(req.Messages),
		Tools:     toSDKTools(req.Tools),
	}

	t := mCallDuration.Start()
	var accumulated anthropic.Message
	err := c.cb.Do(ctx, func(ctx context.Context) error {
		stream := c.sdk.Messages.NewStreaming(ctx, params)
		for stream.Next() {
			event := stream.Current()
			if err := accumulated.Accumulate(event); err != nil {
				return err
			}
			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if textDelta, ok2 := delta.Delta.AsAny().(anthropic.TextDelta); ok2 && onDelta != nil {
					onDelta(Delta{Kind: "text_delta", Text: textDelta.Text})
				}
			}
		}
		return stream.Err()
	}, nil)
	t.Observe()
	if err != nil {
		return nil, errs.NewExternal("llm.Stream", "anthropic", "streaming message generation failed", err)
	}
	if onDelta != nil {
		onDelta(Delta{Kind: "done"})
	}

	c.costTracker.addUsage(accumulated.Usage.InputTokens, accumulated.Usage.OutputTokens)

	return &Response{
		Content:    fromSDKContent(accumulated.Content),
		StopReason: string(accumulated.StopReason),
	}, nil
}

// ErrNoAPIKey describes an unset ANTHROPIC_API_KEY in one consistent message.
// Config validation does not check the key, and nothing in this module
// returns this error.
var ErrNoAPIKey = fmt.Errorf("llm: ANTHROPIC_API_KEY is required")
