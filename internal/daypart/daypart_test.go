package daypart

import "testing"

func TestGenerate_WrapsPastMidnight(t *testing.T) {
	dps := Generate("23:00 - 02:00", 5)
	if len(dps) != 2 {
		t.Fatalf("expected 2 dayparts for a 180min window, got %d", len(dps))
	}
	if dps[0].TimeRange != "23:00-00:30" {
		t.Fatalf("unexpected first range: %s", dps[0].TimeRange)
	}
	if dps[1].TimeRange != "00:30-02:00" {
		t.Fatalf("unexpected second range: %s", dps[1].TimeRange)
	}
}

func TestGenerate_Rooftop(t *testing.T) {
	dps := Generate("17:00-02:00", 7)
	if len(dps) != 3 {
		t.Fatalf("expected 3 dayparts, got %d", len(dps))
	}
	wantLabels := []string{"Opening", "Peak Hours", "Wind Down"}
	wantEnergy := []int{5, 7, 8}
	for i, dp := range dps {
		if dp.Energy != wantEnergy[i] {
			t.Errorf("daypart %d: expected energy %d, got %d", i, wantEnergy[i], dp.Energy)
		}
		if len(dp.Label) < len(wantLabels[i]) || dp.Label[:len(wantLabels[i])] != wantLabels[i] {
			t.Errorf("daypart %d: expected label to start with %q, got %q", i, wantLabels[i], dp.Label)
		}
	}
}

func TestGenerate_TenHourWindow_ThreeSegments(t *testing.T) {
	dps := Generate("09:00-19:00", 7)
	if len(dps) != 3 {
		t.Fatalf("expected 3 dayparts for a 10h window, got %d", len(dps))
	}
}

func TestGenerate_ShortWindow_TwoSegments(t *testing.T) {
	dps := Generate("09:00-14:00", 3)
	if len(dps) != 2 {
		t.Fatalf("expected 2 dayparts for a 5h window, got %d", len(dps))
	}
	if dps[0].Energy != 2 || dps[1].Energy != 4 {
		t.Fatalf("unexpected energies: %d, %d", dps[0].Energy, dps[1].Energy)
	}
}

func TestGenerate_FourSegments(t *testing.T) {
	dps := Generate("06:00-23:00", 5)
	if len(dps) != 4 {
		t.Fatalf("expected 4 dayparts for a 17h window, got %d", len(dps))
	}
	wantEnergy := []int{3, 4, 6, 5}
	for i, e := range wantEnergy {
		if dps[i].Energy != e {
			t.Errorf("daypart %d: expected energy %d, got %d", i, e, dps[i].Energy)
		}
	}
}

func TestGenerate_EmptyHours_Fallback(t *testing.T) {
	dps := Generate("", 5)
	if len(dps) != 3 {
		t.Fatalf("expected 3 fallback dayparts, got %d", len(dps))
	}
	wantIcons := []string{"sunrise", "sun", "moon"}
	for i, icon := range wantIcons {
		if dps[i].Icon != icon {
			t.Errorf("daypart %d: expected icon %s, got %s", i, icon, dps[i].Icon)
		}
	}
}

func TestGenerate_UnparseableHours_Fallback(t *testing.T) {
	dps := Generate("whenever we feel like it", 5)
	if len(dps) != 3 {
		t.Fatalf("expected 3 fallback dayparts, got %d", len(dps))
	}
}

func TestGenerate_FallbackUsesBaseEnergy(t *testing.T) {
	dps := Generate("", 9)
	wantEnergy := []int{7, 9, 10}
	for i, e := range wantEnergy {
		if dps[i].Energy != e {
			t.Errorf("daypart %d: expected energy %d, got %d", i, e, dps[i].Energy)
		}
	}
}

func TestGenerate_EnergyClamped(t *testing.T) {
	lo := Generate("07:00-18:00", 1)
	for _, dp := range lo {
		if dp.Energy < 1 {
			t.Fatalf("energy dropped below floor: %d", dp.Energy)
		}
	}
	hi := Generate("07:00-18:00", 10)
	for _, dp := range hi {
		if dp.Energy > 10 {
			t.Fatalf("energy exceeded ceiling: %d", dp.Energy)
		}
	}
}

func TestGenerate_Contiguous(t *testing.T) {
	dps := Generate("17:00-02:00", 7)
	for i := 1; i < len(dps); i++ {
		_, prevEnd := splitForTest(dps[i-1].TimeRange)
		start, _ := splitForTest(dps[i].TimeRange)
		if prevEnd != start {
			t.Errorf("daypart %d does not start where %d ended: %s vs %s", i, i-1, start, prevEnd)
		}
	}
}

func TestGenerate_ClockFormVariants(t *testing.T) {
	a := Generate("7am-6pm", 3)
	b := Generate("07:00-18:00", 3)
	if len(a) != len(b) {
		t.Fatalf("expected am/pm and 24h forms to segment the same way: %d vs %d", len(a), len(b))
	}
	if a[0].TimeRange != b[0].TimeRange {
		t.Fatalf("expected same first range, got %s vs %s", a[0].TimeRange, b[0].TimeRange)
	}
}

func splitForTest(r string) (start, end string) {
	for i := 0; i < len(r); i++ {
		if r[i] == '-' {
			return r[:i], r[i+1:]
		}
	}
	return r, r
}
