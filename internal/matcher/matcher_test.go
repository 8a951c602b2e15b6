package matcher

import (
	"os"
	"strings"
	"testing"

	"github.com/brightears/bmasia-music-brief/internal/catalog"
	"github.com/brightears/bmasia-music-brief/internal/daypart"
)

func loadCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load(os.DirFS("../../catalog"), "syb_playlists.json")
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	return cat
}

func TestTokenizeAvoid_HyphenNormalizationAndFillerWords(t *testing.T) {
	terms := tokenizeAvoid("no hip-hop or rap")
	joined := strings.Join(terms, "|")
	if !strings.Contains(joined, "hip hop") {
		t.Fatalf("expected hyphen-normalized 'hip hop' term, got %v", terms)
	}
	if !strings.Contains(joined, "rap") {
		t.Fatalf("expected 'rap' term, got %v", terms)
	}
	for _, term := range terms {
		if term == "no" || term == "or" {
			t.Fatalf("filler token leaked into terms: %v", terms)
		}
	}
}

func TestMatchAll_NoDuplicatePicksAcrossDayparts(t *testing.T) {
	cat := loadCatalog(t)
	dps := daypart.Generate("17:00-02:00", 7)
	b := Brief{VenueType: "bar-lounge", Vibes: []string{"sophisticated", "trendy"}, Energy: 7}

	matches, _ := MatchAll(cat, b, dps)
	seen := map[string]bool{}
	for _, m := range matches {
		if seen[m.PlaylistID] {
			t.Fatalf("playlist %s picked more than once across dayparts", m.PlaylistID)
		}
		seen[m.PlaylistID] = true
	}
}

func TestMatchAll_AvoidListExcludesMatchingPlaylists(t *testing.T) {
	cat := loadCatalog(t)
	dps := daypart.Generate("07:00-18:00", 3)
	b := Brief{VenueType: "cafe", Vibes: []string{"warm", "relaxed"}, Energy: 3, AvoidList: "no edm, no hip hop", Vocals: "instrumental"}

	matches, _ := MatchAll(cat, b, dps)
	for _, m := range matches {
		p := findPlaylist(cat, m.PlaylistID)
		text := strings.ToLower(p.Name + " " + p.Description)
		if strings.Contains(text, "edm") || strings.Contains(text, "hip hop") {
			t.Fatalf("picked playlist %q violates avoid list: %s", p.Name, text)
		}
	}
}

func TestMatchAll_MatchScoreWithinPublishedRange(t *testing.T) {
	cat := loadCatalog(t)
	dps := daypart.Generate("17:00-02:00", 7)
	b := Brief{VenueType: "bar-lounge", Vibes: []string{"sophisticated", "trendy"}, Energy: 7, GenreHints: []string{"deep house", "nu-disco", "lounge", "cocktail"}}

	matches, _ := MatchAll(cat, b, dps)
	if len(matches) == 0 {
		t.Fatal("expected at least one match")
	}
	best := 0
	for _, m := range matches {
		if m.MatchScore < 55 || m.MatchScore > 95 {
			t.Fatalf("match score %d out of published [55,95] range", m.MatchScore)
		}
		if m.MatchScore > best {
			best = m.MatchScore
		}
	}
	if best < 85 {
		t.Fatalf("expected the best rooftop-bar pick to score in [85,95], got %d", best)
	}
}

func TestMatchAll_CategoryBonusFavorsVenueCategory(t *testing.T) {
	cat := loadCatalog(t)
	dps := daypart.Generate("06:00-18:00", 3)
	b := Brief{VenueType: "spa", Vibes: []string{"zen"}, Energy: 2}

	matches, _ := MatchAll(cat, b, dps)
	if len(matches) == 0 {
		t.Fatal("expected matches for a spa brief")
	}
	top := findPlaylist(cat, matches[0].PlaylistID)
	hasSpaOrLounge := false
	for _, c := range top.Categories {
		if c == "spa" || c == "lounge" {
			hasSpaOrLounge = true
		}
	}
	if !hasSpaOrLounge {
		t.Fatalf("expected top spa pick to carry a spa/lounge category, got %v", top.Categories)
	}
}

func TestMatchAll_ReasonMentionsVenueTypeOrAtmosphere(t *testing.T) {
	cat := loadCatalog(t)
	dps := daypart.Generate("17:00-02:00", 7)
	b := Brief{VenueType: "bar-lounge", Vibes: []string{"sophisticated"}, Energy: 7}

	matches, _ := MatchAll(cat, b, dps)
	for _, m := range matches {
		if !strings.Contains(m.Reason, "—") {
			t.Fatalf("expected reason to carry a descriptive suffix, got %q", m.Reason)
		}
	}
}

func findPlaylist(cat *catalog.Catalog, id string) catalog.Playlist {
	for _, p := range cat.Playlists() {
		if p.ID == id {
			return p
		}
	}
	return catalog.Playlist{}
}
