package chatengine

import (
	"testing"

	"github.com/brightears/bmasia-music-brief/internal/daypart"
	"github.com/brightears/bmasia-music-brief/internal/matcher"
)

func TestWireMatches_GroupsByDaypart(t *testing.T) {
	dayparts := []daypart.Daypart{
		{Key: "opening", Label: "Opening"},
		{Key: "peak", Label: "Peak"},
	}
	matches := []matcher.Match{
		{PlaylistID: "p1", PlaylistName: "Morning Glow", Daypart: "opening", MatchScore: 80},
		{PlaylistID: "p2", PlaylistName: "High Noon", Daypart: "peak", MatchScore: 90},
		{PlaylistID: "p3", PlaylistName: "Unmatched Daypart", Daypart: "nonexistent", MatchScore: 70},
	}

	out, wire := wireMatches(dayparts, matches)

	if len(out) != 2 {
		t.Fatalf("expected 2 daypart groups, got %d", len(out))
	}
	if len(wire) != 3 {
		t.Fatalf("expected all 3 matches in the flat wire list, got %d", len(wire))
	}
	if len(out[0].Matches) != 1 || out[0].Matches[0].PlaylistID != "p1" {
		t.Fatalf("expected opening daypart to carry p1, got %+v", out[0].Matches)
	}
	if len(out[1].Matches) != 1 || out[1].Matches[0].PlaylistID != "p2" {
		t.Fatalf("expected peak daypart to carry p2, got %+v", out[1].Matches)
	}
}

func TestWireMatches_EmptyInput(t *testing.T) {
	out, wire := wireMatches(nil, nil)
	if len(out) != 0 || len(wire) != 0 {
		t.Fatalf("expected empty slices for empty input, got %d dayparts, %d matches", len(out), len(wire))
	}
}
