// Package matcher implements the deterministic playlist-to-daypart scoring
// algorithm used whenever the LLM path is unavailable or its output cannot be
// parsed into a usable envelope.
package matcher

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/brightears/bmasia-music-brief/internal/catalog"
	"github.com/brightears/bmasia-music-brief/internal/daypart"
)

// Match is one scored playlist-for-daypart recommendation.
type Match struct {
	PlaylistID   string
	PlaylistName string
	Daypart      string
	Reason       string
	MatchScore   int
}

// Brief carries the zone-level (or base) inputs the matcher scores against.
// GenreHints is the spec's strongest positive signal, distinct from Vibes.
type Brief struct {
	VenueType string
	Vibes     []string
	Energy    int
	AvoidList string // free text, tokenized per spec §4.2 step 4
	Vocals    string // "instrumental" | "mostly-instrumental" | anything else
	GenreHints []string
}

// fillerTokens are stripped from avoidList terms before matching, per spec.
var fillerTokens = map[string]bool{
	"no":         true,
	"hits":       true,
	"mainstream": true,
}

var avoidSplitRe = regexp.MustCompile(`(?i)[,;]|\band\b|\bor\b`)

// tokenizeAvoid splits free text on commas/semicolons and the words and/or,
// strips filler tokens, and hyphen-normalizes every resulting term.
func tokenizeAvoid(avoidList string) []string {
	if strings.TrimSpace(avoidList) == "" {
		return nil
	}
	parts := avoidSplitRe.Split(avoidList, -1)
	var out []string
	for _, p := range parts {
		words := strings.Fields(normalizeHyphen(p))
		var kept []string
		for _, w := range words {
			if fillerTokens[w] {
				continue
			}
			kept = append(kept, w)
		}
		term := strings.TrimSpace(strings.Join(kept, " "))
		if term != "" {
			out = append(out, term)
		}
	}
	return out
}

func normalizeHyphen(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "-", " ")
}

var instrumentalRe = regexp.MustCompile(`(?i)instrumental|piano|ambient|nature`)
var mostlyInstrumentalRe = regexp.MustCompile(`(?i)instrumental|piano|acoustic`)

// dpEnergyCategories returns the fixed category set a daypart's energy level
// favors: low-energy dayparts lean spa/lounge, mid-energy cafe/restaurant/
// hotel/lounge, high-energy bar/store/lounge.
func dpEnergyCategories(energy int) map[string]bool {
	switch {
	case energy <= 3:
		return map[string]bool{"spa": true, "lounge": true}
	case energy <= 6:
		return map[string]bool{"cafe": true, "restaurant": true, "hotel": true, "lounge": true}
	default:
		return map[string]bool{"bar": true, "store": true, "lounge": true}
	}
}

// baseScore scores one playlist against the brief, independent of daypart,
// per spec §4.2 steps 1-5. Returns (score, categoryMatched, matchedVibes,
// excluded).
func baseScore(p catalog.Playlist, b Brief, cat *catalog.Catalog, avoidTerms []string) (score float64, categoryHit bool, matchedVibes []string, excluded bool) {
	text := p.Text()
	normText := normalizeHyphen(text)

	for _, term := range avoidTerms {
		if term != "" && strings.Contains(normText, term) {
			return 0, false, nil, true
		}
	}

	targets := catalog.VenueCategoryTargets(b.VenueType)
	intersection := 0
	for _, c := range p.Categories {
		if targets[c] {
			intersection++
		}
	}
	if intersection > 0 {
		score += 2.0 + float64(intersection)
		categoryHit = true
	}

	vibeTable := cat.VibeGenres()
	for _, vibe := range b.Vibes {
		vg, ok := vibeTable[strings.ToLower(vibe)]
		if !ok {
			continue
		}
		matched := false
		for _, kw := range vg.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				score += 0.5
				matched = true
			}
		}
		if matched {
			matchedVibes = append(matchedVibes, vibe)
		}
	}

	for _, hint := range b.GenreHints {
		if hint == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(hint)) {
			score += 2.0
		}
	}

	switch strings.ToLower(b.Vocals) {
	case "instrumental":
		if instrumentalRe.MatchString(text) {
			score += 1.5
		}
	case "mostly-instrumental":
		if mostlyInstrumentalRe.MatchString(text) {
			score += 0.8
		}
	}

	return score, categoryHit, matchedVibes, false
}

func humanizeVenueType(venueType string) string {
	return strings.ReplaceAll(venueType, "-", " ")
}

func reasonFor(p catalog.Playlist, categoryHit bool, matchedVibes []string, venueType string) string {
	descriptor := "the"
	if len(matchedVibes) > 0 {
		descriptor = "your " + strings.Join(matchedVibes, " and ")
	} else if categoryHit {
		descriptor = "your"
	}
	if categoryHit {
		return fmt.Sprintf("%s — fits %s %s", p.Description, descriptor, humanizeVenueType(venueType))
	}
	return fmt.Sprintf("%s — complements %s atmosphere", p.Description, descriptor)
}

// pickCap returns how many playlists to pick per daypart: ceil(12/len(dayparts)).
func pickCap(numDayparts int) int {
	if numDayparts <= 0 {
		return 12
	}
	return int(math.Ceil(12.0 / float64(numDayparts)))
}

type scoredPlaylist struct {
	playlist     catalog.Playlist
	base         float64
	categoryHit  bool
	matchedVibes []string
}

// MatchAll scores every catalog playlist once against the brief, then walks
// the dayparts in order assigning per-daypart picks, skipping playlists
// already picked in an earlier daypart within the same zone and any whose
// daypart-adjusted score is <= 0. Returns the flat pick list plus the fixed
// designer notes line.
func MatchAll(cat *catalog.Catalog, b Brief, dayparts []daypart.Daypart) ([]Match, string) {
	avoidTerms := tokenizeAvoid(b.AvoidList)
	playlists := cat.Playlists()

	scored := make([]scoredPlaylist, 0, len(playlists))
	for _, p := range playlists {
		base, catHit, vibes, excluded := baseScore(p, b, cat, avoidTerms)
		if excluded {
			continue
		}
		scored = append(scored, scoredPlaylist{playlist: p, base: base, categoryHit: catHit, matchedVibes: vibes})
	}

	picked := make(map[string]bool, len(playlists))
	cap := pickCap(len(dayparts))

	var out []Match
	for _, dp := range dayparts {
		dpCats := dpEnergyCategories(dp.Energy)

		type dpScored struct {
			sp      scoredPlaylist
			dpScore float64
		}
		candidates := make([]dpScored, 0, len(scored))
		maxDp := 0.0
		for _, sp := range scored {
			if picked[sp.playlist.ID] {
				continue
			}
			dpScore := sp.base
			for _, c := range sp.playlist.Categories {
				if dpCats[c] {
					dpScore += 1
					break
				}
			}
			if dpScore > maxDp {
				maxDp = dpScore
			}
			candidates = append(candidates, dpScored{sp: sp, dpScore: dpScore})
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].dpScore > candidates[j].dpScore
		})

		picks := 0
		for _, c := range candidates {
			if picks >= cap {
				break
			}
			if c.dpScore <= 0 {
				continue
			}
			picked[c.sp.playlist.ID] = true
			picks++
			out = append(out, Match{
				PlaylistID:   c.sp.playlist.ID,
				PlaylistName: c.sp.playlist.Name,
				Daypart:      dp.Key,
				Reason:       reasonFor(c.sp.playlist, c.sp.categoryHit, c.sp.matchedVibes, b.VenueType),
				MatchScore:   normalize(c.dpScore, maxDp),
			})
		}
	}

	return out, designerNotes(b)
}

// normalize maps a raw daypart-relative score onto the published [55,95]
// match-score scale: round(55 + raw/max*40), clamped.
func normalize(raw, max float64) int {
	if max <= 0 {
		return 55
	}
	v := 55 + (raw/max)*40
	if v < 55 {
		v = 55
	}
	if v > 95 {
		v = 95
	}
	return int(math.Round(v))
}

func designerNotes(b Brief) string {
	if len(b.Vibes) == 0 {
		return fmt.Sprintf("A %s-energy selection tailored to your %s.", energyWord(b.Energy), humanizeVenueType(b.VenueType))
	}
	return fmt.Sprintf("A %s-energy, %s selection tailored to your %s.", energyWord(b.Energy), strings.Join(b.Vibes, "/"), humanizeVenueType(b.VenueType))
}

func energyWord(e int) string {
	switch {
	case e <= 3:
		return "low"
	case e <= 6:
		return "moderate"
	default:
		return "high"
	}
}

// ZoneMatches is the full per-zone recommendation set (standard and, when
// requested, weekend variant), carrying the zone name through so multi-zone
// callers can tell recommendations apart.
type ZoneMatches struct {
	ZoneName       string
	Dayparts       []daypart.Daypart
	Matches        []Match
	DesignerNotes  string
	ScheduleType   string // "standard" | "weekend"
}

// MatchZone runs MatchAll for one zone, optionally under weekend overrides
// merged atop the base brief (spec §4.2 "multi-zone" / "weekend variant").
func MatchZone(cat *catalog.Catalog, zoneName string, base Brief, dayparts []daypart.Daypart, scheduleType string) ZoneMatches {
	matches, notes := MatchAll(cat, base, dayparts)
	return ZoneMatches{
		ZoneName:      zoneName,
		Dayparts:      dayparts,
		Matches:       matches,
		DesignerNotes: notes,
		ScheduleType:  scheduleType,
	}
}
