package catalog

import (
	"os"
	"testing"
)

func TestLoad_ParsesPlaylists(t *testing.T) {
	cat, err := Load(os.DirFS("../../catalog"), "syb_playlists.json")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	playlists := cat.Playlists()
	if len(playlists) == 0 {
		t.Fatal("expected at least one playlist")
	}
	for _, p := range playlists {
		if p.ID == "" || p.Name == "" {
			t.Fatalf("playlist missing id/name: %+v", p)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(os.DirFS("../../catalog"), "does_not_exist.json")
	if err == nil {
		t.Fatal("expected an error for a missing catalog file")
	}
}

func TestVenueCategoryTargets_UnknownVenueType(t *testing.T) {
	targets := VenueCategoryTargets("does-not-exist")
	if len(targets) != 0 {
		t.Fatalf("expected empty target set for unknown venue type, got %v", targets)
	}
}

func TestVenueCategoryTargets_KnownVenueType(t *testing.T) {
	targets := VenueCategoryTargets("hotel-lobby")
	if !targets["hotel"] || !targets["lounge"] {
		t.Fatalf("expected hotel-lobby to target hotel/lounge, got %v", targets)
	}
}
