package chatengine

import (
	"encoding/json"
	"testing"
)

func TestEvent_MarshalJSON_FlattensDataToTopLevel(t *testing.T) {
	ev := Event{Type: "text", Data: TextEvent{Text: "hello"}}
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out["type"] != "text" {
		t.Fatalf("expected type=text at top level, got %v", out["type"])
	}
	if out["content"] != "hello" {
		t.Fatalf("expected content=hello at top level, not nested under data, got %v", out)
	}
	if _, ok := out["data"]; ok {
		t.Fatalf("expected no nested data envelope, got %v", out)
	}
}

func TestEvent_MarshalJSON_NoData(t *testing.T) {
	ev := Event{Type: "done"}
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(out) != 1 || out["type"] != "done" {
		t.Fatalf("expected only {type:done}, got %v", out)
	}
}

func TestEvent_MarshalJSON_StructuredQuestion(t *testing.T) {
	idx := 1
	total := 3
	ev := Event{Type: "structured_question", Data: StructuredQuestionEvent{
		ToolUseID:        "tu_1",
		Question:         "How busy is your venue on weekends?",
		Options:          []string{"Quiet", "Bustling"},
		AllowCustom:      true,
		AllowSkip:        false,
		AllowMultiple:    false,
		QuestionIndex:    &idx,
		TotalQuestions:   &total,
		AssistantContent: json.RawMessage(`[{"type":"tool_use","id":"tu_1"}]`),
	}}
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out["toolUseId"] != "tu_1" {
		t.Fatalf("expected toolUseId at top level, got %v", out)
	}
	if out["allowCustom"] != true {
		t.Fatalf("expected allowCustom=true at top level, got %v", out)
	}
	if out["questionIndex"] != float64(1) {
		t.Fatalf("expected questionIndex=1, got %v", out["questionIndex"])
	}
	assistantContent, ok := out["assistantContent"].([]any)
	if !ok || len(assistantContent) != 1 {
		t.Fatalf("expected assistantContent to be a one-element array, got %v", out["assistantContent"])
	}
}

func TestEvent_MarshalJSON_RecommendationsWeekendFields(t *testing.T) {
	ev := Event{Type: "recommendations", Data: RecommendationsEvent{
		Recommendations: []MatchOut{{PlaylistID: "p1", Daypart: "opening"}},
		Dayparts:        []DaypartRecommendation{{DaypartKey: "opening", Label: "Opening"}},
		WeekendRecommendations: []MatchOut{{PlaylistID: "p2", Daypart: "opening"}},
		WeekendDayparts:        []DaypartRecommendation{{DaypartKey: "opening", Label: "Weekend Opening"}},
	}}
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := out["weekendRecommendations"]; !ok {
		t.Fatalf("expected weekendRecommendations at top level, got %v", out)
	}
	if _, ok := out["weekendDayparts"]; !ok {
		t.Fatalf("expected weekendDayparts at top level, got %v", out)
	}
}

func TestEvent_MarshalJSON_RecommendationsOmitsWeekendWhenAbsent(t *testing.T) {
	ev := Event{Type: "recommendations", Data: RecommendationsEvent{
		Recommendations: []MatchOut{{PlaylistID: "p1"}},
	}}
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := out["weekendRecommendations"]; ok {
		t.Fatalf("expected weekendRecommendations omitted when not computed, got %v", out)
	}
}
