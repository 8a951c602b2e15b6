package brief

import (
	"os"
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

func TestSynthesize_TopGenresCappedAtEight(t *testing.T) {
	cat := loadCatalog(t)
	dps := daypart.Generate("17:00-02:00", 7)
	db := Synthesize(cat, "bar-lounge", []string{"sophisticated", "trendy", "energetic", "romantic"}, 7, dps)
	if len(db.Genres) > 8 {
		t.Fatalf("expected at most 8 genres, got %d: %v", len(db.Genres), db.Genres)
	}
	if len(db.Genres) == 0 {
		t.Fatal("expected at least one genre")
	}
}

func TestSynthesize_BPMRangeUnionsSelectedVibes(t *testing.T) {
	cat := loadCatalog(t)
	dps := daypart.Generate("17:00-02:00", 7)
	db := Synthesize(cat, "bar-lounge", []string{"sophisticated", "trendy"}, 7, dps)
	// sophisticated: [90,115], trendy: [110,125] -> union [90,125]
	if db.BPMRange[0] != 90 || db.BPMRange[1] != 125 {
		t.Fatalf("expected BPM range [90,125], got %v", db.BPMRange)
	}
}

func TestSynthesize_UnknownVibe_NeutralDefault(t *testing.T) {
	cat := loadCatalog(t)
	dps := daypart.Generate("17:00-02:00", 7)
	db := Synthesize(cat, "bar-lounge", []string{"nonexistent-vibe"}, 7, dps)
	if db.BPMRange[0] != 80 || db.BPMRange[1] != 120 {
		t.Fatalf("expected neutral default BPM range, got %v", db.BPMRange)
	}
}

func TestSynthesize_DaypartGenreCountFollowsEnergy(t *testing.T) {
	cat := loadCatalog(t)
	dps := daypart.Generate("06:00-23:00", 5) // 4 dayparts, energies [3,4,6,5]
	if len(dps) != 4 {
		t.Fatalf("test setup expected 4 dayparts, got %d", len(dps))
	}
	db := Synthesize(cat, "bar-lounge", []string{"sophisticated", "trendy", "energetic"}, 5, dps)

	for _, dp := range dps {
		genres := db.DaypartGenres[dp.Key]
		wantMax := 5
		if dp.Energy >= 5 {
			wantMax = 6
		}
		if len(genres) > wantMax {
			t.Errorf("daypart %s (energy %d): expected at most %d genres, got %d", dp.Key, dp.Energy, wantMax, len(genres))
		}
	}
}

func TestSynthesize_DaypartOrderMatchesDayparts(t *testing.T) {
	cat := loadCatalog(t)
	dps := daypart.Generate("17:00-02:00", 7)
	db := Synthesize(cat, "bar-lounge", []string{"sophisticated"}, 7, dps)
	if len(db.DaypartOrder) != len(dps) {
		t.Fatalf("expected daypart order to have %d entries, got %d", len(dps), len(db.DaypartOrder))
	}
	for i, dp := range dps {
		if db.DaypartOrder[i] != dp.Key {
			t.Errorf("daypart order[%d]: expected %s, got %s", i, dp.Key, db.DaypartOrder[i])
		}
	}
}
