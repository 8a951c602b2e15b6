package accountcache

import (
	"context"
	"testing"
	"time"

	"github.com/brightears/bmasia-music-brief/internal/adapters/musicplatform"
)

func freshCache(accounts []musicplatform.Account) *Cache {
	return &Cache{accounts: accounts, lastRefresh: time.Now()}
}

func TestSearch_ExactMatchRanksFirst(t *testing.T) {
	c := freshCache([]musicplatform.Account{
		{ID: "1", Name: "The Grand Hotel Bangkok"},
		{ID: "2", Name: "Grand Hotel"},
		{ID: "3", Name: "Grand"},
	})

	matches := c.Search(context.Background(), "Grand Hotel")
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Account.ID != "2" || matches[0].Rank != 0 {
		t.Fatalf("expected exact match first, got %+v", matches[0])
	}
}

func TestSearch_PrefixBeforeSubstring(t *testing.T) {
	c := freshCache([]musicplatform.Account{
		{ID: "1", Name: "Old Grand Cafe"},   // substring
		{ID: "2", Name: "Grand Cafe Resort"}, // prefix
	})

	matches := c.Search(context.Background(), "grand cafe")
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Account.ID != "2" {
		t.Fatalf("expected prefix match to rank ahead of substring, got %+v", matches)
	}
}

func TestSearch_CaseInsensitive(t *testing.T) {
	c := freshCache([]musicplatform.Account{{ID: "1", Name: "SUNSET LOUNGE"}})
	matches := c.Search(context.Background(), "sunset lounge")
	if len(matches) != 1 {
		t.Fatalf("expected case-insensitive match, got %d results", len(matches))
	}
}

func TestSearch_EmptyNeedle_NoMatches(t *testing.T) {
	c := freshCache([]musicplatform.Account{{ID: "1", Name: "Anything"}})
	matches := c.Search(context.Background(), "   ")
	if matches != nil {
		t.Fatalf("expected no matches for blank query, got %v", matches)
	}
}

func TestSearch_NoMatch(t *testing.T) {
	c := freshCache([]musicplatform.Account{{ID: "1", Name: "Anything"}})
	matches := c.Search(context.Background(), "nonexistent")
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %d", len(matches))
	}
}
