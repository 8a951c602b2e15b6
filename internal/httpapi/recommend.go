package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/brightears/bmasia-music-brief/internal/adapters/llm"
	"github.com/brightears/bmasia-music-brief/internal/brief"
	"github.com/brightears/bmasia-music-brief/internal/daypart"
	"github.com/brightears/bmasia-music-brief/internal/matcher"
)

type recommendRequest struct {
	VenueType  string   `json:"venueType"`
	Vibes      []string `json:"vibes"`
	AvoidList  string   `json:"avoidList"`
	Vocals     string   `json:"vocals"`
	GenreHints []string `json:"genreHints"`
	HoursText  string   `json:"hours"`
	BaseEnergy int      `json:"energy"`
}

type recommendResponse struct {
	Dayparts       []daypartOut        `json:"dayparts"`
	DesignerNotes  string              `json:"designerNotes"`
	ExtractedBrief brief.DesignerBrief `json:"extractedBrief"`
}

type daypartOut struct {
	DaypartKey string     `json:"daypartKey"`
	Label      string     `json:"label"`
	Matches    []matchOut `json:"matches"`
}

type matchOut struct {
	PlaylistID   string `json:"playlistId"`
	PlaylistName string `json:"playlistName"`
	Reason       string `json:"reason"`
	MatchScore   int    `json:"matchScore"`
}

// handleRecommend runs the matcher end-to-end without the conversational
// engine, per spec §4.11's non-chat path. When an LLM client is configured
// it first asks the model to fill the same recommendation envelope
// directly; per spec §9's Open Question, any parse failure of that envelope
// (missing fences, trailing prose, malformed JSON) is treated purely as a
// signal to fall back to the deterministic matcher rather than surfaced to
// the caller.
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BaseEnergy == 0 {
		req.BaseEnergy = 5
	}

	dayparts := daypart.Generate(req.HoursText, req.BaseEnergy)

	if s.Engine != nil && s.Engine.LLM != nil {
		if resp, ok := s.llmRecommend(r.Context(), req, dayparts); ok {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
			return
		}
	}

	b := matcher.Brief{
		VenueType:  req.VenueType,
		Vibes:      req.Vibes,
		Energy:     req.BaseEnergy,
		AvoidList:  req.AvoidList,
		Vocals:     req.Vocals,
		GenreHints: req.GenreHints,
	}
	matches, notes := matcher.MatchAll(s.Catalog, b, dayparts)
	designerBrief := brief.Synthesize(s.Catalog, req.VenueType, req.Vibes, req.BaseEnergy, dayparts)

	byDaypart := make(map[string]*daypartOut, len(dayparts))
	resp := recommendResponse{DesignerNotes: notes, ExtractedBrief: designerBrief}
	for _, dp := range dayparts {
		resp.Dayparts = append(resp.Dayparts, daypartOut{DaypartKey: dp.Key, Label: dp.Label})
		byDaypart[dp.Key] = &resp.Dayparts[len(resp.Dayparts)-1]
	}
	for _, m := range matches {
		if dp, ok := byDaypart[m.Daypart]; ok {
			dp.Matches = append(dp.Matches, matchOut{PlaylistID: m.PlaylistID, PlaylistName: m.PlaylistName, Reason: m.Reason, MatchScore: m.MatchScore})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

var jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")

// extractJSONEnvelope tolerates the common ways a chat model wraps a JSON
// reply: a fenced code block, or leading/trailing prose around the first
// top-level object.
func extractJSONEnvelope(text string) (string, bool) {
	if m := jsonFenceRe.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// llmRecommend asks the model to fill the recommendation envelope directly
// from the catalog's playlist names, for a result that reads less
// mechanically than the deterministic matcher while staying within the
// real catalog. Any failure of the call or the parse returns ok=false so
// the caller falls back to matcher.MatchAll.
func (s *Server) llmRecommend(ctx context.Context, req recommendRequest, dayparts []daypart.Daypart) (recommendResponse, bool) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Venue type: %s\nVibes: %s\nEnergy: %d\nVocals: %s\nAvoid: %s\nGenre hints: %s\n",
		req.VenueType, strings.Join(req.Vibes, ", "), req.BaseEnergy, req.Vocals, req.AvoidList, strings.Join(req.GenreHints, ", "))
	prompt.WriteString("Dayparts:\n")
	for _, dp := range dayparts {
		fmt.Fprintf(&prompt, "- %s (%s, energy %d)\n", dp.Label, dp.Key, dp.Energy)
	}
	prompt.WriteString("Catalog:\n")
	for _, p := range s.Catalog.Playlists() {
		fmt.Fprintf(&prompt, "- id=%s name=%q: %s\n", p.ID, p.Name, p.Description)
	}
	prompt.WriteString(`Respond with ONLY a JSON object of the exact shape {"dayparts":[{"daypartKey":"...","label":"...","matches":[{"playlistId":"...","playlistName":"...","reason":"...","matchScore":55-95}]}],"designerNotes":"..."} choosing only playlist ids from the catalog above, at most 4 picks per daypart, no playlist id repeated across dayparts.`)

	resp, err := s.Engine.LLM.Complete(ctx, llm.Request{
		System:    "You are a precise JSON-only API. Output only the requested JSON object, no prose, no code fences.",
		Messages:  []llm.Message{{Role: "user", Content: []llm.ContentBlock{{Type: "text", Text: prompt.String()}}}},
		MaxTokens: 2048,
	})
	if err != nil {
		return recommendResponse{}, false
	}
	var text strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	envelope, ok := extractJSONEnvelope(text.String())
	if !ok {
		return recommendResponse{}, false
	}
	var out recommendResponse
	if err := json.Unmarshal([]byte(envelope), &out); err != nil {
		return recommendResponse{}, false
	}
	if len(out.Dayparts) == 0 {
		return recommendResponse{}, false
	}
	out.ExtractedBrief = brief.Synthesize(s.Catalog, req.VenueType, req.Vibes, req.BaseEnergy, dayparts)
	return out, true
}
