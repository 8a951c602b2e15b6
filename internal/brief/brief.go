// Package brief synthesizes the designer-facing music brief: a scored genre
// list, a unified BPM range, and a per-daypart genre slice, derived from a
// venue's vibes and venue type.
package brief

import (
	"sort"
	"strings"

	"github.com/brightears/bmasia-music-brief/internal/catalog"
	"github.com/brightears/bmasia-music-brief/internal/daypart"
)

// DesignerBrief is the synthesized summary handed to the venue alongside the
// recommended playlists.
type DesignerBrief struct {
	Genres        []string             `json:"genres"`
	BPMRange      [2]int               `json:"bpmRange"`
	DaypartGenres map[string][]string  `json:"daypartGenres"`
	DaypartOrder  []string             `json:"daypartOrder"`
}

type genreScore struct {
	genre string
	score float64
}

// venueBooster is the fixed per-venue-type genre booster list (spec §4.3:
// "the venue's booster list adds +0.5 to each of its genres").
var venueBooster = map[string][]string{
	"hotel-lobby":  {"jazz", "lounge", "acoustic"},
	"bar-lounge":   {"deep house", "nu-disco", "lounge"},
	"cafe":         {"acoustic", "chillout", "soul"},
	"restaurant":   {"jazz", "soul", "lounge"},
	"spa":          {"ambient", "nature", "chillout"},
	"retail-store": {"pop", "dance"},
	"resort":       {"tropical", "reggae", "ambient"},
}

// scoreGenres scores every genre named by a selected vibe (+1.0 per vibe
// referencing it) plus the venue's fixed booster list (+0.5 each), then
// returns the top 8 by score (ties broken by first-seen order).
func scoreGenres(cat *catalog.Catalog, vibes []string, venueType string) []string {
	vibeTable := cat.VibeGenres()
	scores := map[string]float64{}
	order := []string{}

	add := func(genre string, amount float64) {
		if _, seen := scores[genre]; !seen {
			order = append(order, genre)
		}
		scores[genre] += amount
	}

	for _, vibe := range vibes {
		vg, ok := vibeTable[strings.ToLower(vibe)]
		if !ok {
			continue
		}
		for _, g := range vg.Genres {
			add(g, 1.0)
		}
	}

	for _, g := range venueBooster[venueType] {
		add(g, 0.5)
	}

	list := make([]genreScore, 0, len(order))
	for _, g := range order {
		list = append(list, genreScore{genre: g, score: scores[g]})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].score > list[j].score })

	n := 8
	if n > len(list) {
		n = len(list)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, list[i].genre)
	}
	return out
}

// bpmRange unions the BPM ranges of every vibe named, widening to cover all
// of them. If no vibe matches the table, a neutral default is returned.
func bpmRange(cat *catalog.Catalog, vibes []string) [2]int {
	vibeTable := cat.VibeGenres()
	lo, hi := 0, 0
	found := false
	for _, vibe := range vibes {
		vg, ok := vibeTable[strings.ToLower(vibe)]
		if !ok {
			continue
		}
		if !found {
			lo, hi = vg.BPM[0], vg.BPM[1]
			found = true
			continue
		}
		if vg.BPM[0] < lo {
			lo = vg.BPM[0]
		}
		if vg.BPM[1] > hi {
			hi = vg.BPM[1]
		}
	}
	if !found {
		return [2]int{80, 120}
	}
	return [2]int{lo, hi}
}

// daypartGenreSlice takes the top 6 genres when the daypart's energy is at
// or above the brief's base energy, else the top 5 (spec §4.3).
func daypartGenreSlice(genres []string, dp daypart.Daypart, baseEnergy int) []string {
	n := 5
	if dp.Energy >= baseEnergy {
		n = 6
	}
	if n > len(genres) {
		n = len(genres)
	}
	out := make([]string, n)
	copy(out, genres[:n])
	return out
}

// Synthesize builds the full DesignerBrief for a venue's vibes, venue type,
// base energy, and computed dayparts.
func Synthesize(cat *catalog.Catalog, venueType string, vibes []string, baseEnergy int, dayparts []daypart.Daypart) DesignerBrief {
	genres := scoreGenres(cat, vibes, venueType)

	daypartGenres := make(map[string][]string, len(dayparts))
	order := make([]string, 0, len(dayparts))
	for _, dp := range dayparts {
		daypartGenres[dp.Key] = daypartGenreSlice(genres, dp, baseEnergy)
		order = append(order, dp.Key)
	}

	return DesignerBrief{
		Genres:        genres,
		BPMRange:      bpmRange(cat, vibes),
		DaypartGenres: daypartGenres,
		DaypartOrder:  order,
	}
}
