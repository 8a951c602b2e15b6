// Package catalog loads the immutable playlist catalog and the fixed
// vibe/genre/keyword tables the matcher and brief synthesizer score against.
package catalog

import (
	"encoding/json"
	"io/fs"
	"strings"
	"sync"

	errs "github.com/brightears/bmasia-music-brief/pkg/errors"
)

// Playlist is one row of the immutable catalog.
type Playlist struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	SYBID       string   `json:"sybId,omitempty"`
}

// Text returns the lowercased "name description" string the matcher scores
// keyword/genre hits against.
func (p Playlist) Text() string {
	return strings.ToLower(p.Name + " " + p.Description)
}

// VibeGenre maps one vibe to the genres it boosts and its BPM range, used by
// both the matcher's keyword table and the brief synthesizer's genre scoring.
type VibeGenre struct {
	Genres  []string
	BPM     [2]int
	Keywords []string
}

// Catalog is the process-wide, read-only set loaded at startup.
type Catalog struct {
	mu        sync.RWMutex
	playlists []Playlist
	vibeKw    map[string]VibeGenre
}

// Load parses syb_playlists.json from fsys (normally the embedded catalog FS)
// plus the fixed vibe table compiled into this package. The catalog file is
// read-only at runtime; no schema migration ever touches it.
func Load(fsys fs.FS, path string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, errs.NewValidation("catalog.Load", "failed to read catalog file", err)
	}
	var playlists []Playlist
	if err := json.Unmarshal(data, &playlists); err != nil {
		return nil, errs.NewValidation("catalog.Load", "failed to parse catalog JSON", err)
	}
	return &Catalog{playlists: playlists, vibeKw: defaultVibeGenres()}, nil
}

// Playlists returns the catalog in original load order; ties in matcher
// scoring are broken by this order.
func (c *Catalog) Playlists() []Playlist {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Playlist, len(c.playlists))
	copy(out, c.playlists)
	return out
}

// VibeGenres returns the fixed vibe -> {genres, bpm, keywords} table.
func (c *Catalog) VibeGenres() map[string]VibeGenre {
	return c.vibeKw
}

// VenueCategoryTargets returns the fixed category set a venue type should
// prefer, e.g. hotel-lobby -> {hotel, lounge}. Unknown venue types fall back
// to an empty set (no category bonus, not an error).
func VenueCategoryTargets(venueType string) map[string]bool {
	sets := map[string][]string{
		"hotel-lobby":  {"hotel", "lounge"},
		"bar-lounge":   {"bar", "lounge"},
		"cafe":         {"cafe", "restaurant"},
		"restaurant":   {"restaurant", "hotel"},
		"spa":          {"spa", "lounge"},
		"retail-store": {"store", "cafe"},
		"resort":       {"hotel", "lounge", "spa"},
	}
	cats, ok := sets[venueType]
	if !ok {
		return map[string]bool{}
	}
	out := make(map[string]bool, len(cats))
	for _, c := range cats {
		out[c] = true
	}
	return out
}

// defaultVibeGenres is the fixed VIBE_GENRES table referenced by spec §4.2
// (keyword boosts) and §4.3 (genre scoring / BPM ranges).
func defaultVibeGenres() map[string]VibeGenre {
	return map[string]VibeGenre{
		"sophisticated": {Genres: []string{"jazz", "nu-disco", "lounge"}, BPM: [2]int{90, 115}, Keywords: []string{"sophisticated", "elegant", "refined", "classy"}},
		"trendy":        {Genres: []string{"deep house", "nu-disco"}, BPM: [2]int{110, 125}, Keywords: []string{"trendy", "modern", "chic", "stylish"}},
		"warm":          {Genres: []string{"acoustic", "soul"}, BPM: [2]int{70, 100}, Keywords: []string{"warm", "cozy", "inviting", "friendly"}},
		"relaxed":       {Genres: []string{"chillout", "acoustic"}, BPM: [2]int{60, 95}, Keywords: []string{"relaxed", "calm", "easygoing", "laid-back"}},
		"zen":           {Genres: []string{"ambient", "nature"}, BPM: [2]int{50, 80}, Keywords: []string{"zen", "tranquil", "peaceful", "meditative"}},
		"tropical":      {Genres: []string{"reggae", "afrobeat"}, BPM: [2]int{95, 120}, Keywords: []string{"tropical", "beach", "island", "sunny"}},
		"energetic":     {Genres: []string{"dance", "pop"}, BPM: [2]int{120, 135}, Keywords: []string{"energetic", "upbeat", "lively", "vibrant"}},
		"romantic":      {Genres: []string{"soul", "jazz"}, BPM: [2]int{65, 95}, Keywords: []string{"romantic", "intimate", "soft", "dreamy"}},
	}
}
