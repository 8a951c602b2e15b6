package chatengine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/brightears/bmasia-music-brief/internal/accountcache"
	"github.com/brightears/bmasia-music-brief/internal/adapters/llm"
	"github.com/brightears/bmasia-music-brief/internal/adapters/search"
	"github.com/brightears/bmasia-music-brief/internal/brief"
	"github.com/brightears/bmasia-music-brief/internal/catalog"
	"github.com/brightears/bmasia-music-brief/internal/daypart"
	"github.com/brightears/bmasia-music-brief/internal/matcher"
)

const systemPrompt = `You are the BMAsia music brief assistant. Gather the venue's operating
hours, venue type, and musical preferences through conversation, then either ask one focused
structured follow-up question or generate final recommendations once you have enough
information. Use research_venue and lookup_existing_client as needed to ground your
questions and recommendations in real context.`

const maxTokensPerTurn = 2048

// Engine drives the tool-calling fixed point for one chat request.
type Engine struct {
	LLM      *llm.Client
	Search   *search.Client
	Accounts *accountcache.Cache
	Catalog  *catalog.Catalog
}

// Run executes turns until a terminal tool ends the conversation or the LLM
// stops without invoking a tool, emitting SSE-shaped events via emit as it
// goes. messages is the full prior conversation; the caller owns persistence
// of the growing transcript between HTTP requests (the engine holds no
// server-side session state).
func (e *Engine) Run(ctx context.Context, messages []llm.Message, emit func(Event)) error {
	const maxTurns = 10
	conversation := append([]llm.Message{}, messages...)

	for turn := 0; turn < maxTurns; turn++ {
		req := llm.Request{
			System:    systemPrompt,
			Tools:     toolDefinitions(),
			Messages:  conversation,
			MaxTokens: maxTokensPerTurn,
		}

		resp, err := e.LLM.Stream(ctx, req, func(d llm.Delta) {
			if d.Kind == "text_delta" && d.Text != "" {
				emit(Event{Type: "text_delta", Data: TextDeltaEvent{Text: d.Text}})
			}
		})
		if err != nil {
			emit(Event{Type: "error", Data: ErrorEvent{Message: err.Error()}})
			emit(Event{Type: "done"})
			return err
		}

		var fullText strings.Builder
		var toolUses []llm.ContentBlock
		for _, b := range resp.Content {
			switch b.Type {
			case "text":
				fullText.WriteString(b.Text)
			case "tool_use":
				toolUses = append(toolUses, b)
			}
		}
		if fullText.Len() > 0 {
			emit(Event{Type: "text", Data: TextEvent{Text: fullText.String()}})
		}

		if resp.StopReason != "tool_use" || len(toolUses) == 0 {
			emit(Event{Type: "done"})
			return nil
		}

		if terminal, ok := firstTerminal(toolUses); ok {
			// Spec §4.4: only generate_recommendations' follow-up message folds
			// in other batched tool_results; ask_structured_question ends the
			// turn outright with no further model call.
			var otherResults []llm.ContentBlock
			if terminal.Name == toolGenerateRecommendations {
				var others []llm.ContentBlock
				for _, b := range toolUses {
					if b.ID != terminal.ID {
						others = append(others, b)
					}
				}
				otherResults = e.runNonTerminal(ctx, others)
			}
			return e.runTerminal(ctx, terminal, resp.Content, otherResults, conversation, emit)
		}

		assistantBlocks := make([]llm.ContentBlock, 0, len(resp.Content))
		assistantBlocks = append(assistantBlocks, resp.Content...)
		conversation = append(conversation, llm.Message{Role: "assistant", Content: assistantBlocks})

		resultBlocks := e.runNonTerminal(ctx, toolUses)
		conversation = append(conversation, llm.Message{Role: "user", Content: resultBlocks})
	}

	emit(Event{Type: "error", Data: ErrorEvent{Message: "conversation exceeded maximum turns without resolving"}})
	emit(Event{Type: "done"})
	return fmt.Errorf("chatengine: exceeded max turns")
}

func firstTerminal(blocks []llm.ContentBlock) (llm.ContentBlock, bool) {
	for _, b := range blocks {
		if terminalTools[b.Name] {
			return b, true
		}
	}
	return llm.ContentBlock{}, false
}

// runTerminal executes a terminal tool call and emits the event that ends
// the turn (structured_question or recommendations). For
// generate_recommendations, per spec §4.4 it then issues a follow-up LLM
// call whose user content is the tool_result summarizing picks and daypart
// labels (plus any other batched tool_results), streamed token-by-token to
// the client; ask_structured_question has no follow-up call. Both paths end
// with a single done event.
func (e *Engine) runTerminal(ctx context.Context, tool llm.ContentBlock, assistantContent []llm.ContentBlock, otherResults []llm.ContentBlock, conversation []llm.Message, emit func(Event)) error {
	switch tool.Name {
	case toolAskStructuredQuestion:
		var args struct {
			Question       string   `json:"question"`
			Options        []string `json:"options"`
			AllowCustom    bool     `json:"allowCustom"`
			AllowSkip      bool     `json:"allowSkip"`
			AllowMultiple  bool     `json:"allowMultiple"`
			QuestionIndex  *int     `json:"questionIndex"`
			TotalQuestions *int     `json:"totalQuestions"`
		}
		decodeInput(tool.Input, &args)
		// The client echoes the full assistant turn back verbatim in its next
		// request's pendingToolUse field; the engine keeps no server-side
		// session state, so the whole content-block array travels with it.
		raw, _ := json.Marshal(assistantContent)
		emit(Event{Type: "structured_question", Data: StructuredQuestionEvent{
			ToolUseID:        tool.ID,
			Question:         args.Question,
			Options:          args.Options,
			AllowCustom:      args.AllowCustom,
			AllowSkip:        args.AllowSkip,
			AllowMultiple:    args.AllowMultiple,
			QuestionIndex:    args.QuestionIndex,
			TotalQuestions:   args.TotalQuestions,
			AssistantContent: raw,
		}})
		emit(Event{Type: "done"})
		return nil

	case toolGenerateRecommendations:
		var args struct {
			VenueType        string   `json:"venueType"`
			Vibes            []string `json:"vibes"`
			AvoidList        string   `json:"avoidList"`
			Vocals           string   `json:"vocals"`
			GenreHints       []string `json:"genreHints"`
			HoursText        string   `json:"hoursText"`
			BaseEnergy       int      `json:"baseEnergy"`
			WeekendOverrides *struct {
				HoursText  string   `json:"hoursText"`
				BaseEnergy int      `json:"baseEnergy"`
				Vibes      []string `json:"vibes"`
				GenreHints []string `json:"genreHints"`
			} `json:"weekendOverrides"`
		}
		decodeInput(tool.Input, &args)
		if args.BaseEnergy == 0 {
			args.BaseEnergy = 5
		}

		dayparts := daypart.Generate(args.HoursText, args.BaseEnergy)
		b := matcher.Brief{
			VenueType:  args.VenueType,
			Vibes:      args.Vibes,
			Energy:     args.BaseEnergy,
			AvoidList:  args.AvoidList,
			Vocals:     args.Vocals,
			GenreHints: args.GenreHints,
		}
		zoneMatches := matcher.MatchZone(e.Catalog, "default", b, dayparts, "standard")
		designerBrief := brief.Synthesize(e.Catalog, args.VenueType, args.Vibes, args.BaseEnergy, dayparts)

		out, wire := wireMatches(dayparts, zoneMatches.Matches)

		rec := RecommendationsEvent{
			Recommendations: wire,
			Dayparts:        out,
			DesignerNotes:   zoneMatches.DesignerNotes,
			ExtractedBrief:  designerBrief,
		}

		// Spec §4.1's weekend variant: only computed when the model judged the
		// weekend profile to genuinely diverge from the weekday one.
		if wo := args.WeekendOverrides; wo != nil {
			weekendEnergy := wo.BaseEnergy
			if weekendEnergy == 0 {
				weekendEnergy = args.BaseEnergy
			}
			weekendHours := wo.HoursText
			if weekendHours == "" {
				weekendHours = args.HoursText
			}
			weekendVibes := wo.Vibes
			if len(weekendVibes) == 0 {
				weekendVibes = args.Vibes
			}
			weekendGenreHints := wo.GenreHints
			if len(weekendGenreHints) == 0 {
				weekendGenreHints = args.GenreHints
			}
			weekendDayparts := daypart.Generate(weekendHours, weekendEnergy)
			weekendBrief := matcher.Brief{
				VenueType:  args.VenueType,
				Vibes:      weekendVibes,
				Energy:     weekendEnergy,
				AvoidList:  args.AvoidList,
				Vocals:     args.Vocals,
				GenreHints: weekendGenreHints,
			}
			weekendZoneMatches := matcher.MatchZone(e.Catalog, "default", weekendBrief, weekendDayparts, "weekend")
			rec.WeekendDayparts, rec.WeekendRecommendations = wireMatches(weekendDayparts, weekendZoneMatches.Matches)
		}

		emit(Event{Type: "recommendations", Data: rec})

		return e.narrateRecommendations(ctx, tool, assistantContent, otherResults, out, zoneMatches.DesignerNotes, conversation, emit)

	default:
		emit(Event{Type: "error", Data: ErrorEvent{Message: "unknown terminal tool: " + tool.Name}})
		emit(Event{Type: "done"})
		return fmt.Errorf("chatengine: unknown terminal tool %q", tool.Name)
	}
}

// wireMatches groups a flat match list back by daypart and produces the
// wire-shaped slices an SSE recommendations frame carries.
func wireMatches(dayparts []daypart.Daypart, matches []matcher.Match) ([]DaypartRecommendation, []MatchOut) {
	byDaypart := make(map[string]*DaypartRecommendation, len(dayparts))
	out := make([]DaypartRecommendation, 0, len(dayparts))
	for _, dp := range dayparts {
		out = append(out, DaypartRecommendation{DaypartKey: dp.Key, Label: dp.Label})
		byDaypart[dp.Key] = &out[len(out)-1]
	}
	wire := make([]MatchOut, 0, len(matches))
	for _, m := range matches {
		mo := MatchOut{PlaylistID: m.PlaylistID, PlaylistName: m.PlaylistName, Daypart: m.Daypart, Reason: m.Reason, MatchScore: m.MatchScore}
		wire = append(wire, mo)
		if dr, ok := byDaypart[m.Daypart]; ok {
			dr.Matches = append(dr.Matches, mo)
		}
	}
	return out, wire
}

// narrateRecommendations issues the follow-up LLM call described in spec
// §4.4: its user content is the tool_result summarizing picks and daypart
// labels (plus any other batched tool_results from the same assistant
// turn), and the model's reply is streamed token-by-token back to the
// client as text_delta events.
func (e *Engine) narrateRecommendations(ctx context.Context, tool llm.ContentBlock, assistantContent []llm.ContentBlock, otherResults []llm.ContentBlock, dayparts []DaypartRecommendation, notes string, conversation []llm.Message, emit func(Event)) error {
	var summary strings.Builder
	summary.WriteString("Recommendations generated. ")
	summary.WriteString(notes)
	summary.WriteString(" Picks by daypart:\n")
	for _, dp := range dayparts {
		fmt.Fprintf(&summary, "- %s:", dp.Label)
		for _, m := range dp.Matches {
			fmt.Fprintf(&summary, " %s (score %d);", m.PlaylistName, m.MatchScore)
		}
		summary.WriteString("\n")
	}
	summary.WriteString("Briefly summarize these picks for the venue operator in a warm, confident tone. Do not repeat the raw list verbatim.")

	results := append([]llm.ContentBlock{}, otherResults...)
	results = append(results, llm.ContentBlock{
		Type:      "tool_result",
		ToolUseID: tool.ID,
		Content:   summary.String(),
	})

	conversation = append(conversation, llm.Message{Role: "assistant", Content: assistantContent})
	conversation = append(conversation, llm.Message{Role: "user", Content: results})

	req := llm.Request{
		System:    systemPrompt,
		Tools:     toolDefinitions(),
		Messages:  conversation,
		MaxTokens: maxTokensPerTurn,
	}
	resp, err := e.LLM.Stream(ctx, req, func(d llm.Delta) {
		if d.Kind == "text_delta" && d.Text != "" {
			emit(Event{Type: "text_delta", Data: TextDeltaEvent{Text: d.Text}})
		}
	})
	if err != nil {
		emit(Event{Type: "error", Data: ErrorEvent{Message: err.Error()}})
		emit(Event{Type: "done"})
		return err
	}
	var fullText strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			fullText.WriteString(b.Text)
		}
	}
	if fullText.Len() > 0 {
		emit(Event{Type: "text", Data: TextEvent{Text: fullText.String()}})
	}
	emit(Event{Type: "done"})
	return nil
}

// runNonTerminal executes every non-terminal tool call from one turn
// concurrently and returns the corresponding tool_result content blocks in
// the same order as the input tool_use blocks.
func (e *Engine) runNonTerminal(ctx context.Context, toolUses []llm.ContentBlock) []llm.ContentBlock {
	results := make([]llm.ContentBlock, len(toolUses))
	var wg sync.WaitGroup
	for i, tool := range toolUses {
		wg.Add(1)
		go func(i int, tool llm.ContentBlock) {
			defer wg.Done()
			results[i] = llm.ContentBlock{
				Type:      "tool_result",
				ToolUseID: tool.ID,
				Content:   e.dispatchNonTerminal(ctx, tool),
			}
		}(i, tool)
	}
	wg.Wait()
	return results
}

func (e *Engine) dispatchNonTerminal(ctx context.Context, tool llm.ContentBlock) string {
	switch tool.Name {
	case toolResearchVenue:
		return e.researchVenue(ctx, tool)
	case toolLookupExistingClient:
		return e.lookupExistingClient(ctx, tool)
	default:
		return "unknown tool: " + tool.Name
	}
}

func (e *Engine) researchVenue(ctx context.Context, tool llm.ContentBlock) string {
	var args struct {
		Queries []string `json:"queries"`
	}
	decodeInput(tool.Input, &args)

	if len(args.Queries) > 4 {
		args.Queries = args.Queries[:4]
	}

	var sb strings.Builder
	for _, q := range args.Queries {
		results := e.Search.Search(ctx, q)
		if len(results) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "Query: %s\n", q)
		for _, r := range results {
			fmt.Fprintf(&sb, "- %s\n", r.Snippet)
		}
	}
	if sb.Len() == 0 {
		return "No search results found."
	}
	return sb.String()
}

func (e *Engine) lookupExistingClient(ctx context.Context, tool llm.ContentBlock) string {
	var args struct {
		VenueName string `json:"venueName"`
	}
	decodeInput(tool.Input, &args)

	matches := e.Accounts.Search(ctx, args.VenueName)
	switch {
	case len(matches) == 0:
		return "No existing client account found matching that name."
	case len(matches) == 1:
		return fmt.Sprintf("Found one matching account: %s (id=%s). This is very likely the same venue.", matches[0].Account.Name, matches[0].Account.ID)
	case len(matches) <= 5:
		var sb strings.Builder
		sb.WriteString("Found a few possible matches, confirm with the operator which one:\n")
		for _, m := range matches {
			fmt.Fprintf(&sb, "- %s (id=%s)\n", m.Account.Name, m.Account.ID)
		}
		return sb.String()
	default:
		return fmt.Sprintf("Found %d possible matches, too many to list; ask the operator for a more specific venue name.", len(matches))
	}
}

func decodeInput(input any, target any) {
	raw, err := json.Marshal(input)
	if err != nil {
		return
	}
	_ = json.Unmarshal(raw, target)
}
