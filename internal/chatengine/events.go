// Package chatengine runs the tool-calling conversational loop that turns a
// venue operator's chat messages into a structured brief, driving the
// four-tool fixed point described in spec §4.4 and streaming progress to the
// caller as server-sent events.
package chatengine

import "encoding/json"

// Event is one SSE frame. Per spec §6.2's wire format, frames are flat JSON
// objects — "type" alongside the payload's own fields, not a nested "data"
// envelope — so MarshalJSON splices Data's fields into the top level.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"-"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	out := map[string]json.RawMessage{}
	if e.Data != nil {
		raw, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
	}
	typeRaw, err := json.Marshal(e.Type)
	if err != nil {
		return nil, err
	}
	out["type"] = typeRaw
	return json.Marshal(out)
}

// TextEvent carries a complete assistant text block.
type TextEvent struct {
	Text string `json:"content"`
}

// TextDeltaEvent carries one streamed token/fragment of assistant text.
type TextDeltaEvent struct {
	Text string `json:"content"`
}

// StructuredQuestionEvent surfaces the ask_structured_question tool call.
// AssistantContent is the opaque content-block array the client must echo
// back unmodified in its next request's pendingToolUse field, from which the
// server rebuilds the tool_result message — the engine keeps
// no server-side session state between HTTP requests.
type StructuredQuestionEvent struct {
	ToolUseID        string          `json:"toolUseId"`
	Question         string          `json:"question"`
	Options          []string        `json:"options,omitempty"`
	AllowCustom      bool            `json:"allowCustom"`
	AllowSkip        bool            `json:"allowSkip"`
	AllowMultiple    bool            `json:"allowMultiple"`
	QuestionIndex    *int            `json:"questionIndex,omitempty"`
	TotalQuestions   *int            `json:"totalQuestions,omitempty"`
	AssistantContent json.RawMessage `json:"assistantContent"`
}

// RecommendationsEvent carries the generate_recommendations tool's output,
// shaped per spec §6.2's "recommendations" SSE frame. WeekendDayparts and
// WeekendRecommendations are populated only when the brief's weekend hours,
// vibes, or energy diverge from its weekday profile (spec §4.1's weekend
// variant).
type RecommendationsEvent struct {
	Recommendations         []MatchOut               `json:"recommendations"`
	Dayparts                []DaypartRecommendation  `json:"dayparts"`
	WeekendRecommendations  []MatchOut               `json:"weekendRecommendations,omitempty"`
	WeekendDayparts         []DaypartRecommendation  `json:"weekendDayparts,omitempty"`
	DesignerNotes           string                   `json:"designerNotes"`
	ExtractedBrief          any                      `json:"extractedBrief"`
	MultiZone               bool                     `json:"multiZone"`
	ZoneNames               []string                 `json:"zoneNames,omitempty"`
}

// DaypartRecommendation is one zone-daypart's matched playlists.
type DaypartRecommendation struct {
	DaypartKey string     `json:"daypartKey"`
	Label      string     `json:"label"`
	Matches    []MatchOut `json:"matches"`
}

// MatchOut is one scored playlist recommendation in wire form.
type MatchOut struct {
	PlaylistID   string `json:"playlistId"`
	PlaylistName string `json:"playlistName"`
	Daypart      string `json:"daypart"`
	Reason       string `json:"reason"`
	MatchScore   int    `json:"matchScore"`
}

// ErrorEvent reports a non-retryable failure that ends the turn.
type ErrorEvent struct {
	Message string `json:"content"`
}
