package chatengine

import "github.com/brightears/bmasia-music-brief/internal/adapters/llm"

const (
	toolAskStructuredQuestion = "ask_structured_question"
	toolResearchVenue         = "research_venue"
	toolLookupExistingClient  = "lookup_existing_client"
	toolGenerateRecommendations = "generate_recommendations"
)

// terminalTools end the conversational turn: the engine stops looping and
// emits the tool's corresponding SSE event instead of calling the model again.
var terminalTools = map[string]bool{
	toolAskStructuredQuestion:   true,
	toolGenerateRecommendations: true,
}

// toolDefinitions is the fixed tool set offered to the model on every turn.
func toolDefinitions() []llm.Tool {
	return []llm.Tool{
		{
			Name:        toolAskStructuredQuestion,
			Description: "Ask the venue operator one structured follow-up question, optionally with a fixed set of answer options. Ends this turn.",
			InputSchema: map[string]any{
				"properties": map[string]any{
					"question":       map[string]any{"type": "string"},
					"options":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"allowCustom":    map[string]any{"type": "boolean", "description": "Whether a free-text answer outside the listed options is acceptable."},
					"allowSkip":      map[string]any{"type": "boolean", "description": "Whether the operator may skip this question."},
					"allowMultiple":  map[string]any{"type": "boolean", "description": "Whether more than one option may be selected."},
					"questionIndex":  map[string]any{"type": "integer", "description": "1-based position of this question within the current line of questioning."},
					"totalQuestions": map[string]any{"type": "integer", "description": "Total number of questions planned in the current line of questioning."},
				},
				"required": []string{"question"},
			},
		},
		{
			Name:        toolResearchVenue,
			Description: "Run up to 4 sequential web searches about the venue to ground recommendations in real context (location, style, reviews).",
			InputSchema: map[string]any{
				"properties": map[string]any{
					"queries": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "maxItems": 4},
				},
				"required": []string{"queries"},
			},
		},
		{
			Name:        toolLookupExistingClient,
			Description: "Search the music platform's account list for an existing client matching the venue name.",
			InputSchema: map[string]any{
				"properties": map[string]any{
					"venueName": map[string]any{"type": "string"},
				},
				"required": []string{"venueName"},
			},
		},
		{
			Name:        toolGenerateRecommendations,
			Description: "Generate the final daypart/playlist recommendations and designer brief for this venue. Ends this turn.",
			InputSchema: map[string]any{
				"properties": map[string]any{
					"venueType":  map[string]any{"type": "string"},
					"vibes":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"avoidList":  map[string]any{"type": "string"},
					"vocals":     map[string]any{"type": "string"},
					"genreHints": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"hoursText":  map[string]any{"type": "string"},
					"baseEnergy": map[string]any{"type": "integer"},
					"weekendOverrides": map[string]any{
						"type":        "object",
						"description": "Present only when the venue's weekend hours, vibe, or energy genuinely diverge from its weekday profile (spec §4.1's weekend variant); omit entirely otherwise.",
						"properties": map[string]any{
							"hoursText":  map[string]any{"type": "string"},
							"baseEnergy": map[string]any{"type": "integer"},
							"vibes":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
							"genreHints": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						},
					},
				},
				"required": []string{"venueType", "vibes", "hoursText"},
			},
		},
	}
}
